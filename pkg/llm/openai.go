package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultOpenAITimeout = 60 * time.Second
)

// OpenAIClient は、OpenAI 互換の Chat Completions API を呼び出す Completer です。
// ベースURLを差し替えることで Perplexity などの互換APIにも使います。
type OpenAIClient struct {
	client openai.Client
	model  string
}

// OpenAIConfig は OpenAIClient の設定です。
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // 空の場合は OpenAI の既定値
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewOpenAI は新しい OpenAIClient を生成します。APIキーが空の場合は ErrMissingAPIKey を返します。
// SDK 側のリトライは無効にします (失敗時は呼び出し側で縮退させる)。
func NewOpenAI(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOpenAITimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Model は使用するモデル名を返します。
func (c *OpenAIClient) Model() string { return c.model }

// Complete は Chat Completions API を呼び出し、最初の選択肢の本文を返します。
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("チャット補完APIの呼び出しに失敗しました (model: %s): %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("チャット補完APIの応答に選択肢がありません (model: %s)", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}
