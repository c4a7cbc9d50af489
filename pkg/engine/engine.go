package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/shouni/go-flowql/pkg/llm"
)

// エンジン名 (比較表の列順)
const (
	NameChatGPT    = "ChatGPT"
	NameClaude     = "Claude"
	NameGemini     = "Gemini"
	NamePerplexity = "Perplexity"
)

// Names は既定のエンジン名を列順に返します。
func Names() []string {
	return []string{NameChatGPT, NameClaude, NameGemini, NamePerplexity}
}

// 回答エンジンへの問い合わせパラメータ
const (
	queryTemperature = 0.7
	queryMaxTokens   = 500
)

// ErrUnavailable は、エンジンが利用できない (APIキー未設定など) ことを示します。
var ErrUnavailable = errors.New("エンジンが利用できません")

// ErrEmptyResponse は、エンジンが空の応答を返したことを示します。
var ErrEmptyResponse = errors.New("エンジンの応答が空です")

// Engine は、質問に自然文で回答するホスト型言語モデルです。
type Engine interface {
	Name() string
	Available() bool
	Query(ctx context.Context, question string) (string, error)
}

// ----------------------------------------------------------------------
// Completer ベースのエンジン (ChatGPT / Perplexity)
// ----------------------------------------------------------------------

type completerEngine struct {
	name      string
	completer llm.Completer
}

// FromCompleter は、llm.Completer を回答エンジンとして扱います。
func FromCompleter(name string, c llm.Completer) Engine {
	if c == nil {
		return Unavailable(name)
	}
	return &completerEngine{name: name, completer: c}
}

func (e *completerEngine) Name() string    { return e.name }
func (e *completerEngine) Available() bool { return true }

func (e *completerEngine) Query(ctx context.Context, question string) (string, error) {
	text, err := e.completer.Complete(ctx, llm.Request{
		Prompt:      question,
		Temperature: queryTemperature,
		MaxTokens:   queryMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s への問い合わせに失敗しました: %w", e.name, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// ----------------------------------------------------------------------
// 利用不可エンジン
// ----------------------------------------------------------------------

type unavailableEngine struct {
	name string
}

// Unavailable は、常に ErrUnavailable を返すエンジンです。
// APIキーが設定されていないエンジンの代わりに使い、結果表の列を欠けさせません。
func Unavailable(name string) Engine {
	return &unavailableEngine{name: name}
}

func (e *unavailableEngine) Name() string    { return e.name }
func (e *unavailableEngine) Available() bool { return false }

func (e *unavailableEngine) Query(ctx context.Context, question string) (string, error) {
	return "", fmt.Errorf("%s: %w", e.name, ErrUnavailable)
}

// ----------------------------------------------------------------------
// レート制限
// ----------------------------------------------------------------------

type rateLimited struct {
	Engine
	limiter *rate.Limiter
}

// WithRateLimit は、エンジンへの問い合わせを毎秒 rps 回 (バースト burst) に制限します。
// rps が 0 以下の場合は元のエンジンをそのまま返します。
func WithRateLimit(e Engine, rps float64, burst int) Engine {
	if rps <= 0 || !e.Available() {
		return e
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{Engine: e, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Query(ctx context.Context, question string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s のレート制限待機に失敗しました: %w", r.Name(), err)
	}
	return r.Engine.Query(ctx, question)
}
