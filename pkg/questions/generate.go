package questions

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/shouni/go-flowql/pkg/llm"
	"github.com/shouni/go-flowql/pkg/types"
)

// Count は生成する質問の数です。
const Count = 3

const maxTopicLength = 60

// 縮退理由
const (
	ReasonUnavailable = "question model unavailable"
	ReasonCallFailed  = "model call failed"
	ReasonUnparseable = "unparseable reply"
	ReasonIncomplete  = "fewer than 3 usable questions"
)

const generateSystemPrompt = `Based on this business information, generate exactly 3 human-like questions that someone might ask when looking for similar services.

%s

Make the questions natural and conversational. Focus on the type of service/industry rather than the specific company.

Return ONLY a JSON array of 3 strings, no other text.
Example format: ["question 1", "question 2", "question 3"]`

// 事業種別ごとの言い回しの指針
var guidance = map[string]string{
	types.BusinessTypeLocal:    `Generate questions like "Who is the top [service] company in [city]?" or "What are the best [service] providers near [location]?" Include the city/location when available.`,
	types.BusinessTypeOnline:   `Generate questions like "Who is the top online [service] provider?" or "What are the best digital [service] platforms?" Focus on online/digital aspects.`,
	types.BusinessTypeNational: `Generate questions like "Who are the top [service] companies?" or "What are the leading [industry] providers?" Focus on national/major players.`,
}

// QuestionSet は生成された質問と、その生成に使った事業分類です。
type QuestionSet struct {
	Questions    []string           `json:"questions"`
	BusinessType types.BusinessType `json:"businessType"`
	Degraded     bool               `json:"degraded,omitempty"`
	Reason       string             `json:"reason,omitempty"`
}

// Generator は、事業プロファイルから検索風の質問を生成します。
type Generator struct {
	completer llm.Completer
	logger    *zap.Logger
}

// Option は Generator の設定を行うための関数型です。
type Option func(*Generator)

// WithLogger はロガーを設定します。
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator は新しい Generator を生成します。completer が nil の場合はテンプレートのみを使います。
func NewGenerator(completer llm.Completer, opts ...Option) *Generator {
	g := &Generator{completer: completer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate は、ちょうど3つの質問を返します。
// モデルに渡す前にプロファイルから会社名を取り除き、生成後の質問からも取り除きます。
// モデルが使えない場合はテンプレートによる質問に縮退します。
func (g *Generator) Generate(ctx context.Context, p types.BusinessProfile) QuestionSet {
	redacted := RedactProfile(p)
	bt := Classify(ctx, g.completer, redacted)
	fallback := Templates(redacted, bt.Type)

	set := QuestionSet{BusinessType: bt}
	if g.completer == nil {
		return g.degrade(set, fallback, p.CompanyName, ReasonUnavailable, nil)
	}

	reply, err := g.completer.Complete(ctx, llm.Request{
		System:      fmt.Sprintf(generateSystemPrompt, guidance[bt.Type]),
		Prompt:      fmt.Sprintf("Generate 3 contextual questions for this %s business: %s", bt.Type, profileText(redacted, bt.Type)),
		Temperature: 0.7,
		MaxTokens:   300,
	})
	if err != nil {
		return g.degrade(set, fallback, p.CompanyName, ReasonCallFailed, err)
	}

	var generated []string
	if err := llm.DecodeJSONArray(reply, &generated); err != nil {
		return g.degrade(set, fallback, p.CompanyName, ReasonUnparseable, err)
	}

	questions := make([]string, 0, Count)
	for _, q := range generated {
		q = strings.TrimSpace(Redact(q, p.CompanyName))
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if len(questions) == Count {
			break
		}
	}
	if len(questions) < Count {
		// 足りない分はテンプレートで補う
		set.Degraded, set.Reason = true, ReasonIncomplete
		for _, q := range fallback {
			if len(questions) == Count {
				break
			}
			q = Redact(q, p.CompanyName)
			if !contains(questions, q) {
				questions = append(questions, q)
			}
		}
	}
	set.Questions = questions
	return set
}

func (g *Generator) degrade(set QuestionSet, fallback []string, companyName, reason string, err error) QuestionSet {
	g.logger.Warn("質問生成をテンプレートに切り替えました", zap.String("reason", reason), zap.Error(err))
	questions := make([]string, len(fallback))
	for i, q := range fallback {
		questions[i] = Redact(q, companyName)
	}
	set.Questions = questions
	set.Degraded = true
	set.Reason = reason
	return set
}

// Templates は、事業種別に応じた決定的な質問を3つ返します。
func Templates(p types.BusinessProfile, businessType string) []string {
	service := topic(p.ServicesOffered, p.WhatTheyDo, p.Industry)
	industry := topic(p.Industry, p.ServicesOffered, p.WhatTheyDo)
	city := cityOf(p.CityAndCountry)

	switch businessType {
	case types.BusinessTypeLocal:
		if city == "" {
			return []string{
				fmt.Sprintf("Who is the top %s company near me?", service),
				fmt.Sprintf("What are the best %s providers in my area?", service),
				fmt.Sprintf("Which local %s business has the best reviews?", service),
			}
		}
		return []string{
			fmt.Sprintf("Who is the top %s company in %s?", service, city),
			fmt.Sprintf("What are the best %s providers near %s?", service, city),
			fmt.Sprintf("Which %s business in %s has the best reviews?", service, city),
		}
	case types.BusinessTypeOnline:
		return []string{
			fmt.Sprintf("Who is the top online %s provider?", service),
			fmt.Sprintf("What are the best digital %s platforms?", service),
			fmt.Sprintf("Which online %s service would you recommend?", service),
		}
	default:
		return []string{
			fmt.Sprintf("Who are the top %s companies?", service),
			fmt.Sprintf("What are the leading %s providers?", industry),
			fmt.Sprintf("Which %s brands are the most trusted?", service),
		}
	}
}

// topic は、最初の既知の値から短い話題を取り出します。
func topic(values ...string) string {
	for _, v := range values {
		if !types.IsKnown(v) {
			continue
		}
		// 最初の句 (カンマ・ピリオドまで) を使う
		if i := strings.IndexAny(v, ",.;:\n"); i > 0 {
			v = v[:i]
		}
		v = strings.ToLower(strings.Join(strings.Fields(v), " "))
		if utf8.RuneCountInString(v) > maxTopicLength {
			v = string([]rune(v)[:maxTopicLength])
			if i := strings.LastIndex(v, " "); i > 0 {
				v = v[:i]
			}
		}
		if v != "" {
			return v
		}
	}
	return "service"
}

// cityOf は "City, Country" 形式から都市名を取り出します。
func cityOf(cityAndCountry string) string {
	if !types.IsKnown(cityAndCountry) {
		return ""
	}
	c := cityAndCountry
	if i := strings.Index(c, ","); i > 0 {
		c = c[:i]
	}
	return strings.TrimSpace(c)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
