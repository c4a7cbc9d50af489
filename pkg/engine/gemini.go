package engine

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

type geminiEngine struct {
	client *genai.Client
	model  string
}

// NewGemini は Gemini API を使うエンジンを生成します。
// APIキーが空の場合やクライアントの生成に失敗した場合は利用不可エンジンを返します。
func NewGemini(ctx context.Context, cfg Config) (Engine, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Unavailable(NameGemini), nil
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return Unavailable(NameGemini), fmt.Errorf("Geminiクライアントの生成に失敗しました: %w", err)
	}
	return &geminiEngine{client: client, model: cfg.Model}, nil
}

func (e *geminiEngine) Name() string    { return NameGemini }
func (e *geminiEngine) Available() bool { return true }

func (e *geminiEngine) Query(ctx context.Context, question string) (string, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model, genai.Text(question), nil)
	if err != nil {
		return "", fmt.Errorf("Gemini APIの呼び出しに失敗しました: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
