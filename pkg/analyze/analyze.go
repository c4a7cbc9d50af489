package analyze

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shouni/go-flowql/pkg/extract"
	"github.com/shouni/go-flowql/pkg/types"
)

const (
	WordsPerMinute = 200
	MaxTopics      = 10
	MaxKeyPhrases  = 15

	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"

	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"

	FlagComplete  = "complete analysis"
	FlagTruncated = "entire website not analyzed"
)

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
)

var positiveWords = toSet(
	"good", "great", "excellent", "amazing", "wonderful", "fantastic", "awesome",
	"love", "like", "enjoy", "happy", "pleased", "satisfied", "success", "win",
	"best", "better", "improve", "benefit", "advantage", "solution", "help",
)

var negativeWords = toSet(
	"bad", "terrible", "awful", "horrible", "hate", "dislike", "sad", "angry",
	"disappointed", "frustrated", "problem", "issue", "error", "fail", "failure",
	"worst", "worse", "difficult", "hard", "challenge", "struggle", "trouble",
)

var commonWords = toSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had", "her",
	"was", "one", "our", "out", "day", "get", "has", "him", "his", "how", "its",
	"new", "now", "old", "see", "two", "who", "boy", "did", "may", "she", "use",
	"your", "come", "each", "from", "have", "here", "just", "like", "long", "make",
	"many", "over", "such", "take", "than", "them", "well", "were", "what", "will",
	"with", "would", "this", "that", "there", "they", "their",
)

// Analyze は、統合ページの本文と構造から簡易な統計を求めます。副作用はありません。
func Analyze(page types.CompositePage) types.ContentStats {
	words := strings.Fields(page.MainText)
	truncated := utf8.RuneCountInString(page.MainText) >= extract.MaxMainTextLength

	stats := types.ContentStats{
		WordCount:        len(words),
		ReadingTime:      int(math.Ceil(float64(len(words)) / WordsPerMinute)),
		Sentiment:        Sentiment(page.MainText),
		Topics:           Topics(page.Headings, page.Title),
		KeyPhrases:       KeyPhrases(page.MainText),
		Complexity:       Complexity(page.MainText),
		HeaderCount:      len(page.Headings),
		ParagraphCount:   countParagraphs(page.MainText),
		LinkCount:        len(page.Links),
		ImageCount:       len(page.Images),
		HasTitle:         page.Title != "",
		HasDescription:   page.Description != "",
		TitleLength:      utf8.RuneCountInString(page.Title),
		DescriptionLen:   utf8.RuneCountInString(page.Description),
		ContentTruncated: truncated,
		AnalysisFlag:     FlagComplete,
	}
	if truncated {
		stats.AnalysisFlag = FlagTruncated
	}
	return stats
}

// Sentiment は、肯定語と否定語の出現数を比べて感情を判定します。
func Sentiment(text string) string {
	pos, neg := 0, 0
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Topics は、見出しとタイトルに含まれる5文字以上の一般的でない単語を出現順に返します。
func Topics(headings []string, title string) []string {
	sources := append(append([]string{}, headings...), title)
	seen := make(map[string]bool)
	topics := []string{}
	for _, s := range sources {
		for _, w := range strings.Fields(strings.ToLower(s)) {
			if utf8.RuneCountInString(w) <= 4 || commonWords[w] || seen[w] {
				continue
			}
			seen[w] = true
			topics = append(topics, w)
			if len(topics) == MaxTopics {
				return topics
			}
		}
	}
	return topics
}

// KeyPhrases は、文ごとに4文字以上の単語からなる2語・3語の連なりを集めます。
// 一般的な単語を含むものは除きます。
func KeyPhrases(text string) []string {
	seen := make(map[string]bool)
	phrases := []string{}
	add := func(words ...string) bool {
		for _, w := range words {
			if utf8.RuneCountInString(w) <= 3 || commonWords[w] {
				return false
			}
		}
		p := strings.Join(words, " ")
		if seen[p] {
			return false
		}
		seen[p] = true
		phrases = append(phrases, p)
		return len(phrases) == MaxKeyPhrases
	}

	for _, sentence := range sentenceSplit.Split(text, -1) {
		words := strings.Fields(strings.ToLower(sentence))
		for i := 0; i+1 < len(words); i++ {
			if add(words[i], words[i+1]) {
				return phrases
			}
			if i+2 < len(words) && add(words[i], words[i+1], words[i+2]) {
				return phrases
			}
		}
	}
	return phrases
}

// Complexity は、1文あたりの単語数と平均単語長から文章の難しさを判定します。
func Complexity(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ComplexityLow
	}
	sentences := 0
	for _, s := range sentenceSplit.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}

	chars := 0
	for _, w := range words {
		chars += utf8.RuneCountInString(w)
	}
	avgWordsPerSentence := float64(len(words)) / float64(sentences)
	avgWordLength := float64(chars) / float64(len(words))

	score := 0
	switch {
	case avgWordsPerSentence > 20:
		score += 2
	case avgWordsPerSentence > 15:
		score++
	}
	switch {
	case avgWordLength > 6:
		score += 2
	case avgWordLength > 5:
		score++
	}

	switch {
	case score >= 3:
		return ComplexityHigh
	case score >= 1:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

func countParagraphs(text string) int {
	n := 0
	for _, p := range paragraphSplit.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			n++
		}
	}
	return n
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
