package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shouni/go-flowql/pkg/engine"
)

// EnvPrefix は API キー以外の環境変数の接頭辞です (例: FLOWQL_CACHE_BACKEND)。
const EnvPrefix = "FLOWQL"

// キャッシュのバックエンド
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config はアプリケーション全体の設定です。
type Config struct {
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Engines    EnginesConfig    `mapstructure:"engines"`
	Summarizer SummarizerConfig `mapstructure:"summarizer"`
	PageSpeed  PageSpeedConfig  `mapstructure:"pagespeed"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Server     ServerConfig     `mapstructure:"server"`
}

type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryStep    time.Duration `mapstructure:"retry_step"`
	MaxBodySize  int64         `mapstructure:"max_body_size"`
	WithFeed     bool          `mapstructure:"with_feed"`
}

type EngineConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type EnginesConfig struct {
	OpenAI     EngineConfig  `mapstructure:"openai"`
	Anthropic  EngineConfig  `mapstructure:"anthropic"`
	Gemini     EngineConfig  `mapstructure:"gemini"`
	Perplexity EngineConfig  `mapstructure:"perplexity"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	Burst      int           `mapstructure:"burst"`
}

// SummarizerConfig は要約・質問生成に使うモデルの設定です。APIキーは OpenAI のものを使います。
type SummarizerConfig struct {
	Model string `mapstructure:"model"`
}

type PageSpeedConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	TTL       time.Duration `mapstructure:"ttl"`
	Capacity  int           `mapstructure:"capacity"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

type BatchConfig struct {
	Concurrency int     `mapstructure:"concurrency"`
	RateLimit   float64 `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// APIキーは元の環境変数名で読み込む
var apiKeyEnv = map[string]string{
	"engines.openai.api_key":     "OPENAI_API_KEY",
	"engines.anthropic.api_key":  "ANTHROPIC_API_KEY",
	"engines.gemini.api_key":     "GOOGLE_API_KEY",
	"engines.perplexity.api_key": "PERPLEXITY_API_KEY",
	"pagespeed.api_key":          "PAGESPEED_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.probe_timeout", 5*time.Second)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.retry_step", time.Second)
	v.SetDefault("fetch.max_body_size", 2_000_000)
	v.SetDefault("fetch.with_feed", false)

	v.SetDefault("engines.openai.model", engine.DefaultChatGPTModel)
	v.SetDefault("engines.openai.base_url", "")
	v.SetDefault("engines.anthropic.model", engine.DefaultAnthropicModel)
	v.SetDefault("engines.anthropic.base_url", engine.DefaultAnthropicBaseURL)
	v.SetDefault("engines.gemini.model", engine.DefaultGeminiModel)
	v.SetDefault("engines.gemini.base_url", "")
	v.SetDefault("engines.perplexity.model", engine.DefaultPerplexityModel)
	v.SetDefault("engines.perplexity.base_url", engine.DefaultPerplexityBaseURL)
	v.SetDefault("engines.timeout", engine.DefaultTimeout)
	v.SetDefault("engines.rate_limit", 2.0)
	v.SetDefault("engines.burst", 2)

	v.SetDefault("summarizer.model", "gpt-4o-mini")

	v.SetDefault("pagespeed.base_url", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	v.SetDefault("pagespeed.timeout", 60*time.Second)

	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.ttl", time.Hour)
	v.SetDefault("cache.capacity", 256)
	v.SetDefault("cache.redis_addr", "localhost:6379")

	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.rate_limit", 1.0)

	v.SetDefault("server.addr", ":8080")

	for key := range apiKeyEnv {
		v.SetDefault(key, "")
	}
}

// LoadDotEnv は、カレントディレクトリに .env があれば環境変数として読み込みます。
// 既に設定されている環境変数は上書きしません。
func LoadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}

// Load は、既定値、設定ファイル (path が空でなければ)、環境変数の順に設定を読み込みます。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました (path: %s): %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range apiKeyEnv {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("環境変数のバインドに失敗しました (%s): %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("設定の展開に失敗しました: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の整合性を確認します。
func (c *Config) Validate() error {
	var errs []error
	if c.Fetch.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("fetch.max_attempts は1以上である必要があります: %d", c.Fetch.MaxAttempts))
	}
	if c.Fetch.MaxBodySize < 1 {
		errs = append(errs, fmt.Errorf("fetch.max_body_size は1以上である必要があります: %d", c.Fetch.MaxBodySize))
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		errs = append(errs, fmt.Errorf("cache.backend が不正です: %q (memory|redis|none)", c.Cache.Backend))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("batch.concurrency は1以上である必要があります: %d", c.Batch.Concurrency))
	}
	return errors.Join(errs...)
}

// EngineSettings は、回答エンジン生成用の設定に変換します。
func (c *Config) EngineSettings() engine.Settings {
	conv := func(e EngineConfig) engine.Config {
		return engine.Config{APIKey: e.APIKey, Model: e.Model, BaseURL: e.BaseURL, Timeout: c.Engines.Timeout}
	}
	return engine.Settings{
		ChatGPT:    conv(c.Engines.OpenAI),
		Claude:     conv(c.Engines.Anthropic),
		Gemini:     conv(c.Engines.Gemini),
		Perplexity: conv(c.Engines.Perplexity),
		RateLimit:  c.Engines.RateLimit,
		Burst:      c.Engines.Burst,
	}
}

// EngineAvailability は、エンジン名ごとに APIキーが設定されているかを返します (キー自体は返しません)。
func (c *Config) EngineAvailability() map[string]bool {
	return map[string]bool{
		engine.NameChatGPT:    strings.TrimSpace(c.Engines.OpenAI.APIKey) != "",
		engine.NameClaude:     strings.TrimSpace(c.Engines.Anthropic.APIKey) != "",
		engine.NameGemini:     strings.TrimSpace(c.Engines.Gemini.APIKey) != "",
		engine.NamePerplexity: strings.TrimSpace(c.Engines.Perplexity.APIKey) != "",
	}
}
