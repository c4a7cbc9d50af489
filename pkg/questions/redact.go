package questions

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shouni/go-flowql/pkg/types"
)

// MinVariantLength は、部分一致で伏せ字にする表記の最小文字数です。
// これより短い表記 (例: "AB") は、単語として独立した出現だけを取り除きます。
const MinVariantLength = 3

// 末尾から取り除く法人格の表記
var legalSuffixes = []string{
	"incorporated", "inc", "llc", "l.l.c", "ltd", "limited", "corp", "corporation",
	"co", "company", "gmbh", "plc", "llp", "lp", "pty", "ag", "sa", "s.a", "bv", "oy", "ab",
	"k.k", "kk", "group", "holdings",
}

// Variants は、会社名から伏せ字対象の表記を長い順に返します。
// 対象は会社名そのもの、法人格を除いた名前、複数語の場合の先頭トークンです。
func Variants(companyName string) []string {
	name := strings.Join(strings.Fields(companyName), " ")
	if !types.IsKnown(name) {
		return nil
	}

	seen := make(map[string]struct{})
	var variants []string
	add := func(v string) {
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variants = append(variants, v)
	}

	add(name)
	add(strings.Trim(stripLegalSuffix(name), " ,.-&"))
	if tokens := strings.Fields(name); len(tokens) > 1 {
		add(strings.Trim(tokens[0], ",.-&"))
	}

	sort.SliceStable(variants, func(i, j int) bool {
		return utf8.RuneCountInString(variants[i]) > utf8.RuneCountInString(variants[j])
	})
	return variants
}

// stripLegalSuffix は末尾の法人格表記を (繰り返し) 取り除きます。
func stripLegalSuffix(name string) string {
	tokens := strings.Fields(name)
	for len(tokens) > 1 {
		last := strings.ToLower(strings.Trim(tokens[len(tokens)-1], ",."))
		if !isLegalSuffix(last) {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.TrimRight(strings.Join(tokens, " "), ",")
}

func isLegalSuffix(token string) bool {
	for _, s := range legalSuffixes {
		if token == s {
			return true
		}
	}
	return false
}

// Redact は、text から会社名とその派生表記を大文字小文字を区別せずに取り除きます。
// 取り除いた結果として新たな出現が生じないよう、出現がなくなるまで繰り返します。
func Redact(text, companyName string) string {
	variants := Variants(companyName)
	if len(variants) == 0 {
		return text
	}

	patterns := make([]redaction, len(variants))
	for i, v := range variants {
		patterns[i] = variantPattern(v)
	}

	out := text
	for {
		before := out
		for _, p := range patterns {
			out = p.re.ReplaceAllString(out, p.repl)
		}
		if out == before {
			break
		}
	}
	if out == text {
		return text
	}
	return strings.Join(strings.Fields(out), " ")
}

// 語間の空白は strings.Fields と同じ範囲の空白文字の並びに一致させる
const spaceRun = `[\s\v\p{Z}\x{85}]+`

// 短い表記の前後は文字・数字・下線以外 (または文字列の端) に限る
const wordEdge = `[^\p{L}\p{N}_]`

type redaction struct {
	re   *regexp.Regexp
	repl string
}

func variantPattern(v string) redaction {
	tokens := strings.Fields(v)
	for i, t := range tokens {
		tokens[i] = regexp.QuoteMeta(t)
	}
	body := strings.Join(tokens, spaceRun)
	if utf8.RuneCountInString(v) >= MinVariantLength {
		return redaction{re: regexp.MustCompile("(?i)" + body)}
	}
	// 隣接する出現は前後の区切りを共有するため、一度に取り切れない分は Redact の繰り返しで消える
	return redaction{
		re:   regexp.MustCompile("(?i)(^|" + wordEdge + ")(?:" + body + ")(" + wordEdge + "|$)"),
		repl: "${1}${2}",
	}
}

// RedactProfile は、会社名以外の各項目から会社名を取り除いたプロファイルを返します。
// 会社名の項目自体は NotFound に置き換えます。
func RedactProfile(p types.BusinessProfile) types.BusinessProfile {
	name := p.CompanyName
	r := func(v string) string {
		if !types.IsKnown(v) {
			return v
		}
		if out := Redact(v, name); out != "" {
			return out
		}
		return types.NotFound
	}
	return types.BusinessProfile{
		CompanyName:     types.NotFound,
		WhatTheyDo:      r(p.WhatTheyDo),
		WhoTheyServe:    r(p.WhoTheyServe),
		CityAndCountry:  r(p.CityAndCountry),
		ServicesOffered: r(p.ServicesOffered),
		Pricing:         r(p.Pricing),
		Industry:        r(p.Industry),
		BusinessModel:   r(p.BusinessModel),
	}
}
