package summarize

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/llm"
	"github.com/shouni/go-flowql/pkg/metrics"
	"github.com/shouni/go-flowql/pkg/types"
)

// MaxInputLength はモデルに送る本文の最大文字数です。
const MaxInputLength = 10000

// 縮退理由
const (
	ReasonUnavailable = "summarizer unavailable"
	ReasonNoContent   = "no content"
	ReasonCallFailed  = "model call failed"
	ReasonUnparseable = "unparseable reply"
)

const systemPrompt = `You are a business analyst. Analyze the provided website content and extract key business information. Return ONLY a JSON object with these exact fields:
{
  "companyName": "The exact name of the company",
  "whatTheyDo": "Brief description of what the company/entity does",
  "whoTheyServe": "Description of their target audience/customers",
  "cityAndCountry": "City and country where they are based",
  "servicesOffered": "Any services they offer",
  "pricing": "How much they charge for their services/products",
  "industry": "The industry the business operates in",
  "businessModel": "How the business makes money (e.g. subscription, one-time sales, services)"
}

If you cannot determine any field, use "Not found" as the value.`

// Summary は要約の結果です。Degraded が true の場合、Profile はすべて NotFound です。
type Summary struct {
	Profile  types.BusinessProfile
	Degraded bool
	Reason   string
}

// Summarizer は、統合済みの本文からモデルを使って BusinessProfile を推定します。
type Summarizer struct {
	completer llm.Completer
	logger    *zap.Logger
}

// Option は Summarizer の設定を行うための関数型です。
type Option func(*Summarizer)

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(s *Summarizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New は新しい Summarizer を生成します。completer が nil の場合、常に縮退した結果を返します。
func New(completer llm.Completer, opts ...Option) *Summarizer {
	s := &Summarizer{completer: completer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize は本文を要約します。失敗しても panic やエラーにはならず、縮退した Summary を返します。
// モデル呼び出しはリトライしません。
func (s *Summarizer) Summarize(ctx context.Context, compositeText string) Summary {
	if s.completer == nil {
		return s.degraded(ReasonUnavailable, nil)
	}
	text := strings.TrimSpace(compositeText)
	if text == "" {
		return s.degraded(ReasonNoContent, nil)
	}

	reply, err := s.completer.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      "Analyze this website content and extract business information:\n\n" + truncate(text, MaxInputLength),
		Temperature: 0.3,
	})
	if err != nil {
		return s.degraded(ReasonCallFailed, err)
	}

	var raw map[string]any
	if err := llm.DecodeJSON(reply, &raw); err != nil {
		return s.degraded(ReasonUnparseable, err)
	}
	return Summary{Profile: ProfileFromMap(raw)}
}

func (s *Summarizer) degraded(reason string, err error) Summary {
	metrics.SummaryDegraded.Inc()
	s.logger.Warn("事業要約を縮退させました", zap.String("reason", reason), zap.Error(err))
	return Summary{Profile: types.NotFoundProfile(), Degraded: true, Reason: reason}
}

// ProfileFromMap は、モデルの応答をフィールドごとに BusinessProfile へ写します。
// 欠けている項目や空の項目には NotFound を設定します。
func ProfileFromMap(raw map[string]any) types.BusinessProfile {
	return types.BusinessProfile{
		CompanyName:     field(raw, "companyName"),
		WhatTheyDo:      field(raw, "whatTheyDo"),
		WhoTheyServe:    field(raw, "whoTheyServe"),
		CityAndCountry:  field(raw, "cityAndCountry"),
		ServicesOffered: field(raw, "servicesOffered"),
		Pricing:         field(raw, "pricing"),
		Industry:        field(raw, "industry"),
		BusinessModel:   field(raw, "businessModel"),
	}
}

// NormalizeProfile は、空の項目を NotFound で埋めたプロファイルを返します。
func NormalizeProfile(p types.BusinessProfile) types.BusinessProfile {
	fill := func(v string) string {
		if v = strings.TrimSpace(v); v == "" {
			return types.NotFound
		}
		return v
	}
	return types.BusinessProfile{
		CompanyName:     fill(p.CompanyName),
		WhatTheyDo:      fill(p.WhatTheyDo),
		WhoTheyServe:    fill(p.WhoTheyServe),
		CityAndCountry:  fill(p.CityAndCountry),
		ServicesOffered: fill(p.ServicesOffered),
		Pricing:         fill(p.Pricing),
		Industry:        fill(p.Industry),
		BusinessModel:   fill(p.BusinessModel),
	}
}

// field はモデルの値を文字列に変換します。配列はカンマ区切りで連結します。
func field(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return types.NotFound
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if str := strings.TrimSpace(fmt.Sprint(item)); str != "" {
				parts = append(parts, str)
			}
		}
		s = strings.Join(parts, ", ")
	case map[string]any:
		return types.NotFound
	default:
		s = fmt.Sprint(t)
	}

	if s = strings.TrimSpace(s); s == "" {
		return types.NotFound
	}
	return s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
