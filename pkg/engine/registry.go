package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/llm"
)

const (
	DefaultChatGPTModel      = "gpt-3.5-turbo"
	DefaultPerplexityModel   = "sonar"
	DefaultPerplexityBaseURL = "https://api.perplexity.ai"
	DefaultTimeout           = 60 * time.Second
)

// Config は1つのエンジンの接続設定です。
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Settings は既定の4エンジンの設定です。
type Settings struct {
	ChatGPT    Config
	Claude     Config
	Gemini     Config
	Perplexity Config

	// RateLimit はエンジンごとの毎秒リクエスト数です (0 は無制限)。
	RateLimit float64
	Burst     int
}

// NewDefaultSet は、ChatGPT・Claude・Gemini・Perplexity の順で4つのエンジンを返します。
// APIキーがないエンジンや生成に失敗したエンジンは利用不可エンジンになり、常に4つ返ります。
func NewDefaultSet(ctx context.Context, s Settings, poster JSONPoster, logger *zap.Logger) []Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	chatgpt := openAICompatible(NameChatGPT, withDefaults(s.ChatGPT, DefaultChatGPTModel, ""), logger)
	claude := NewClaude(withDefaults(s.Claude, DefaultAnthropicModel, DefaultAnthropicBaseURL), poster)
	gemini, err := NewGemini(ctx, withDefaults(s.Gemini, DefaultGeminiModel, ""))
	if err != nil {
		logger.Warn("Geminiエンジンを利用不可にしました", zap.Error(err))
	}
	perplexity := openAICompatible(NamePerplexity, withDefaults(s.Perplexity, DefaultPerplexityModel, DefaultPerplexityBaseURL), logger)

	engines := []Engine{chatgpt, claude, gemini, perplexity}
	for i, e := range engines {
		if !e.Available() {
			logger.Info("APIキーが未設定のためエンジンは利用できません", zap.String("engine", e.Name()))
		}
		engines[i] = WithRateLimit(e, s.RateLimit, s.Burst)
	}
	return engines
}

func openAICompatible(name string, cfg Config, logger *zap.Logger) Engine {
	client, err := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return Unavailable(name)
	}
	return FromCompleter(name, client)
}

func withDefaults(c Config, model, baseURL string) Config {
	if c.Model == "" {
		c.Model = model
	}
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
