package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Fetch.ProbeTimeout)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Fetch.RetryStep)
	assert.Equal(t, int64(2_000_000), cfg.Fetch.MaxBodySize)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Engines.OpenAI.Model)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ANTHROPIC_API_KEY", "ant-test")
	t.Setenv("FLOWQL_CACHE_BACKEND", "redis")
	t.Setenv("FLOWQL_CACHE_REDIS_ADDR", "redis:6379")
	t.Setenv("FLOWQL_FETCH_TIMEOUT", "30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Engines.OpenAI.APIKey)
	assert.Equal(t, "ant-test", cfg.Engines.Anthropic.APIKey)
	assert.Equal(t, CacheRedis, cfg.Cache.Backend)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)

	assert.Equal(t, map[string]bool{
		"ChatGPT":    true,
		"Claude":     true,
		"Gemini":     false,
		"Perplexity": false,
	}, cfg.EngineAvailability())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowql.yaml")
	content := `
fetch:
  max_attempts: 5
  with_feed: true
engines:
  rate_limit: 0.5
  perplexity:
    model: sonar-pro
cache:
  backend: none
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Fetch.MaxAttempts)
	assert.True(t, cfg.Fetch.WithFeed)
	assert.Equal(t, 0.5, cfg.Engines.RateLimit)
	assert.Equal(t, "sonar-pro", cfg.Engines.Perplexity.Model)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	// ファイルにない項目は既定値のまま
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)

	s := cfg.EngineSettings()
	assert.Equal(t, "sonar-pro", s.Perplexity.Model)
	assert.Equal(t, 0.5, s.RateLimit)
	assert.Equal(t, cfg.Engines.Timeout, s.Claude.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid backend", func(t *testing.T) {
		t.Setenv("FLOWQL_CACHE_BACKEND", "memcached")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache.backend")
	})

	t.Run("invalid attempts", func(t *testing.T) {
		t.Setenv("FLOWQL_FETCH_MAX_ATTEMPTS", "0")
		_, err := Load("")
		assert.Error(t, err)
	})
}
