package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	DefaultAnthropicModel   = "claude-3-haiku-20240307"
	anthropicVersion        = "2023-06-01"
)

// JSONPoster は、JSON を POST してレスポンスボディを返す機能です (httpclient.Client が満たします)。
type JSONPoster interface {
	PostJSON(ctx context.Context, url string, headers map[string]string, data any) ([]byte, error)
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicEngine struct {
	apiKey  string
	baseURL string
	model   string
	poster  JSONPoster
}

// NewClaude は Anthropic Messages API を使うエンジンを生成します。
// APIキーが空の場合は利用不可エンジンを返します。
func NewClaude(cfg Config, poster JSONPoster) Engine {
	if strings.TrimSpace(cfg.APIKey) == "" || poster == nil {
		return Unavailable(NameClaude)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	return &anthropicEngine{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		poster:  poster,
	}
}

func (e *anthropicEngine) Name() string    { return NameClaude }
func (e *anthropicEngine) Available() bool { return true }

func (e *anthropicEngine) Query(ctx context.Context, question string) (string, error) {
	headers := map[string]string{
		"x-api-key":         e.apiKey,
		"anthropic-version": anthropicVersion,
	}
	body := anthropicRequest{
		Model:     e.model,
		MaxTokens: queryMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: question}},
	}

	raw, err := e.poster.PostJSON(ctx, e.baseURL+"/messages", headers, body)
	if err != nil {
		return "", fmt.Errorf("Anthropic APIの呼び出しに失敗しました: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("Anthropic APIの応答の解析に失敗しました: %w", err)
	}
	if len(resp.Content) == 0 || strings.TrimSpace(resp.Content[0].Text) == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content[0].Text, nil
}
