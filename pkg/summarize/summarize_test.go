package summarize

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-flowql/pkg/llm"
	"github.com/shouni/go-flowql/pkg/types"
)

func allNotFound(t *testing.T, p types.BusinessProfile) {
	t.Helper()
	assert.Equal(t, types.NotFoundProfile(), p)
	for _, v := range []string{p.CompanyName, p.WhatTheyDo, p.WhoTheyServe, p.CityAndCountry, p.ServicesOffered, p.Pricing, p.Industry, p.BusinessModel} {
		assert.Equal(t, "Not found", v)
	}
}

func TestSummarize_ModelCallThrows(t *testing.T) {
	s := New(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "", errors.New("503 service unavailable")
	}))

	got := s.Summarize(context.Background(), "Acme Corp sells widgets in Springfield.")

	allNotFound(t, got.Profile)
	assert.True(t, got.Degraded)
	assert.Equal(t, ReasonCallFailed, got.Reason)
}

func TestSummarize_Degraded(t *testing.T) {
	tests := []struct {
		name      string
		completer llm.Completer
		text      string
		reason    string
	}{
		{"nil completer", nil, "content", ReasonUnavailable},
		{"empty content", llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
			t.Fatal("本文が空の場合はモデルを呼ばないこと")
			return "", nil
		}), "   ", ReasonNoContent},
		{"unparseable reply", llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
			return "I'm sorry, I can't do that.", nil
		}), "content", ReasonUnparseable},
		{"broken json", llm.CompleterFunc(func(context.Context, llm.Request) (string, error) {
			return `{"companyName": "Acme",}`, nil
		}), "content", ReasonUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.completer).Summarize(context.Background(), tt.text)
			allNotFound(t, got.Profile)
			assert.True(t, got.Degraded)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestSummarize_Success(t *testing.T) {
	var sent llm.Request
	s := New(llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		sent = req
		return "```json\n" + `{
			"companyName": "Acme Corp",
			"whatTheyDo": "Builds widgets",
			"whoTheyServe": "",
			"cityAndCountry": "Springfield, USA",
			"servicesOffered": ["Design", "Repair"],
			"pricing": 49
		}` + "\n```", nil
	}))

	long := strings.Repeat("あ", MaxInputLength+500)
	got := s.Summarize(context.Background(), long)

	require.False(t, got.Degraded)
	assert.Equal(t, types.BusinessProfile{
		CompanyName:     "Acme Corp",
		WhatTheyDo:      "Builds widgets",
		WhoTheyServe:    types.NotFound,
		CityAndCountry:  "Springfield, USA",
		ServicesOffered: "Design, Repair",
		Pricing:         "49",
		Industry:        types.NotFound,
		BusinessModel:   types.NotFound,
	}, got.Profile)

	// 本文は最大文字数に切り詰めて送られる
	body := strings.TrimPrefix(sent.Prompt, "Analyze this website content and extract business information:\n\n")
	assert.Equal(t, MaxInputLength, utf8.RuneCountInString(body))
	assert.Contains(t, sent.System, `"Not found"`)
}

func TestNormalizeProfile(t *testing.T) {
	got := NormalizeProfile(types.BusinessProfile{CompanyName: " Acme ", Pricing: ""})
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Equal(t, types.NotFound, got.Pricing)
	assert.Equal(t, types.NotFound, got.Industry)
}
