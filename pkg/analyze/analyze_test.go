package analyze

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/go-flowql/pkg/extract"
	"github.com/shouni/go-flowql/pkg/types"
)

func TestAnalyze(t *testing.T) {
	page := types.CompositePage{
		Title:       "Acme Plumbing Services",
		Description: "Fast repairs",
		MainText:    "We fix leaking pipes quickly. Great service and happy customers.\n\nEmergency plumbing available.",
		Headings:    []string{"Emergency Repairs", "About"},
		Links:       []string{"https://acme.example/a", "https://acme.example/b"},
		Images:      []string{"https://acme.example/logo.png"},
	}

	stats := Analyze(page)

	assert.Equal(t, 13, stats.WordCount)
	assert.Equal(t, 1, stats.ReadingTime)
	assert.Equal(t, SentimentPositive, stats.Sentiment)
	assert.Equal(t, []string{"emergency", "repairs", "about", "plumbing", "services"}, stats.Topics)
	assert.Equal(t, 2, stats.HeaderCount)
	assert.Equal(t, 2, stats.ParagraphCount)
	assert.Equal(t, 2, stats.LinkCount)
	assert.Equal(t, 1, stats.ImageCount)
	assert.True(t, stats.HasTitle)
	assert.True(t, stats.HasDescription)
	assert.Equal(t, 22, stats.TitleLength)
	assert.Equal(t, 12, stats.DescriptionLen)
	assert.False(t, stats.ContentTruncated)
	assert.Equal(t, FlagComplete, stats.AnalysisFlag)
}

func TestAnalyze_Truncated(t *testing.T) {
	text := strings.Repeat("a", extract.MaxMainTextLength)
	stats := Analyze(types.CompositePage{MainText: text})

	assert.True(t, stats.ContentTruncated)
	assert.Equal(t, FlagTruncated, stats.AnalysisFlag)
	assert.False(t, stats.HasTitle)
}

func TestAnalyze_Empty(t *testing.T) {
	stats := Analyze(types.CompositePage{})

	assert.Equal(t, 0, stats.WordCount)
	assert.Equal(t, 0, stats.ReadingTime)
	assert.Equal(t, SentimentNeutral, stats.Sentiment)
	assert.Equal(t, ComplexityLow, stats.Complexity)
	assert.Empty(t, stats.Topics)
	assert.Empty(t, stats.KeyPhrases)
}

func TestSentiment(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"great products and excellent support", SentimentPositive},
		{"a terrible problem with an awful error", SentimentNegative},
		{"good but bad", SentimentNeutral},
		{"", SentimentNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentiment(tt.text))
		})
	}
}

func TestReadingTimeRoundsUp(t *testing.T) {
	stats := Analyze(types.CompositePage{MainText: strings.Repeat("word ", 201)})
	assert.Equal(t, 2, stats.ReadingTime)
}

func TestTopics_Capped(t *testing.T) {
	headings := []string{"alpha1 bravo1 charlie1 delta1 echoes1 foxtrot1", "golfer1 hotel1 indigo1 juliet1 kilos1 limas1"}
	topics := Topics(headings, "")
	assert.Len(t, topics, MaxTopics)
	assert.Equal(t, "alpha1", topics[0])
}

func TestKeyPhrases(t *testing.T) {
	phrases := KeyPhrases("Custom wooden furniture built locally. The best for you.")

	assert.Equal(t, []string{"custom wooden", "custom wooden furniture", "wooden furniture", "wooden furniture built", "furniture built", "furniture built locally", "built locally"}, phrases)

	long := "alpha bravo charlie delta echoes foxtrot golfer hotel indigo juliet kilos."
	assert.Len(t, KeyPhrases(long), MaxKeyPhrases)
}

func TestComplexity(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"short simple sentences", "We fix pipes. We are fast.", ComplexityLow},
		{"long words", "Comprehensive infrastructure modernization consultancy.", ComplexityMedium},
		{"long sentence of long words", strings.Repeat("comprehensive ", 21) + "modernization.", ComplexityHigh},
		{"long sentence", strings.Repeat("we can do it ", 5) + "now.", ComplexityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Complexity(tt.text))
		})
	}
}
