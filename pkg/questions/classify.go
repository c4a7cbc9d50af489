package questions

import (
	"context"
	"fmt"
	"strings"

	"github.com/shouni/go-flowql/pkg/llm"
	"github.com/shouni/go-flowql/pkg/types"
)

const classifySystemPrompt = `Analyze this business and classify it as one of three types:

1. "local" - Small local businesses that serve a specific geographic area (restaurants, plumbers, local retail, medical practices, etc.)
2. "national" - Large companies that operate across multiple regions/states (major brands, franchises, big corporations)
3. "online" - Digital-first businesses that primarily operate online (SaaS, fintech apps, e-commerce platforms, digital services)

Return ONLY a JSON object with this exact format:
{
  "type": "local|national|online",
  "reasoning": "brief explanation"
}`

// キーワードによる分類の手がかり
var (
	onlineKeywords = []string{
		"saas", "software", "app", "platform", "online", "e-commerce", "ecommerce", "digital",
		"cloud", "subscription", "marketplace", "fintech", "web-based", "api",
	}
	localKeywords = []string{
		"restaurant", "plumb", "dentist", "dental", "clinic", "salon", "cafe", "café", "bakery",
		"repair", "cleaning", "law firm", "local", "near", "shop", "studio", "gym", "contractor",
		"medical practice", "bar", "florist", "landscap", "electrician", "roofing",
	}
	b2bKeywords = []string{
		"business", "companies", "enterprise", "teams", "b2b", "organizations", "organisations",
		"agencies", "startups", "developers", "retailers", "brands",
	}
	b2cKeywords = []string{
		"consumer", "individuals", "families", "people", "homeowners", "patients", "students",
		"b2c", "personal", "parents", "travelers", "shoppers", "residents",
	}
)

// Classify は、事業の種別 (local/national/online) と顧客層を推定します。
// モデルが使えない場合や応答が不正な場合は、キーワードによる判定に切り替えます。
func Classify(ctx context.Context, completer llm.Completer, p types.BusinessProfile) types.BusinessType {
	bt := ClassifyHeuristic(p)
	if completer == nil {
		return bt
	}

	reply, err := completer.Complete(ctx, llm.Request{
		System:      classifySystemPrompt,
		Prompt:      "Classify this business: " + profileText(p, ""),
		Temperature: 0.3,
		MaxTokens:   150,
	})
	if err != nil {
		return bt
	}

	var parsed struct {
		Type      string `json:"type"`
		Reasoning string `json:"reasoning"`
	}
	if err := llm.DecodeJSON(reply, &parsed); err != nil {
		return bt
	}
	t := strings.ToLower(strings.TrimSpace(parsed.Type))
	if !isValidType(t) {
		return bt
	}
	return types.BusinessType{Type: t, Audience: bt.Audience, Reasoning: strings.TrimSpace(parsed.Reasoning)}
}

// ClassifyHeuristic は、モデルを使わずにキーワードで事業を分類します。
//   - オンライン系のキーワードがあれば online
//   - 所在地が分かっていて地域サービス系のキーワードがあれば local
//   - それ以外は national
func ClassifyHeuristic(p types.BusinessProfile) types.BusinessType {
	offering := lowerJoin(p.WhatTheyDo, p.ServicesOffered, p.Industry, p.BusinessModel)

	bt := types.BusinessType{Audience: Audience(p)}
	switch {
	case containsAny(offering, onlineKeywords):
		bt.Type = types.BusinessTypeOnline
		bt.Reasoning = "online keywords in offering"
	case types.IsKnown(p.CityAndCountry) && containsAny(offering, localKeywords):
		bt.Type = types.BusinessTypeLocal
		bt.Reasoning = "local service with a known location"
	default:
		bt.Type = types.BusinessTypeNational
		bt.Reasoning = "no online or local signals"
	}
	return bt
}

// Audience は、顧客層を B2B / B2C / B2B2C / Unknown に分類します。
func Audience(p types.BusinessProfile) string {
	text := lowerJoin(p.WhoTheyServe, p.WhatTheyDo, p.BusinessModel)
	b2b := containsAny(text, b2bKeywords)
	b2c := containsAny(text, b2cKeywords)
	switch {
	case b2b && b2c:
		return "B2B2C"
	case b2b:
		return "B2B"
	case b2c:
		return "B2C"
	default:
		return "Unknown"
	}
}

func isValidType(t string) bool {
	return t == types.BusinessTypeLocal || t == types.BusinessTypeNational || t == types.BusinessTypeOnline
}

// profileText はモデルに渡す事業情報のテキストを組み立てます。会社名は含めません。
func profileText(p types.BusinessProfile, businessType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nWhat they do: %s\n", p.WhatTheyDo)
	fmt.Fprintf(&b, "Who they serve: %s\n", p.WhoTheyServe)
	fmt.Fprintf(&b, "Location: %s\n", p.CityAndCountry)
	fmt.Fprintf(&b, "Services: %s\n", p.ServicesOffered)
	fmt.Fprintf(&b, "Industry: %s\n", p.Industry)
	if businessType != "" {
		fmt.Fprintf(&b, "Business Type: %s\n", businessType)
	}
	return b.String()
}

// lowerJoin は既知の値のみを小文字で連結します。
func lowerJoin(values ...string) string {
	var parts []string
	for _, v := range values {
		if types.IsKnown(v) {
			parts = append(parts, strings.ToLower(v))
		}
	}
	return " " + strings.Join(parts, " ") + " "
}

// containsAny は、いずれかのキーワードが単語の先頭から一致する場合に true を返します。
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWordPrefix(text, kw) {
			return true
		}
	}
	return false
}

func containsWordPrefix(text, kw string) bool {
	for i := 0; ; {
		idx := strings.Index(text[i:], kw)
		if idx < 0 {
			return false
		}
		pos := i + idx
		if pos == 0 || !isWordByte(text[pos-1]) {
			return true
		}
		i = pos + 1
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80
}
