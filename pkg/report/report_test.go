package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-flowql/pkg/types"
)

var engines = []string{"ChatGPT", "Claude", "Gemini", "Perplexity"}

func sampleResults() []types.VerificationResult {
	return []types.VerificationResult{
		{
			Question: "Best widget maker, in Springfield?",
			PerEngineResult: []types.EngineResult{
				{EngineName: "ChatGPT", Matched: true, Status: types.StatusOK},
				{EngineName: "Claude", Status: types.StatusOK},
				{EngineName: "Gemini", Status: types.StatusFail, Error: "boom"},
				{EngineName: "Perplexity", Matched: true, Status: types.StatusOK},
			},
		},
		{
			Question: "Who repairs widgets?",
			PerEngineResult: []types.EngineResult{
				{EngineName: "ChatGPT", Status: types.StatusOK},
				{EngineName: "Claude", Status: types.StatusOK},
				{EngineName: "Gemini", Status: types.StatusOK},
				{EngineName: "Perplexity", Status: types.StatusFail},
			},
		},
	}
}

func TestSymbol(t *testing.T) {
	tests := []struct {
		name string
		in   types.EngineResult
		want string
	}{
		{"matched", types.EngineResult{Matched: true, Status: types.StatusOK}, "✓"},
		{"missed", types.EngineResult{Status: types.StatusOK}, "✗"},
		{"failed", types.EngineResult{Status: types.StatusFail}, "Fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Symbol(tt.in))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults(), engines))

	want := "Question,ChatGPT,Claude,Gemini,Perplexity\n" +
		"\"Best widget maker, in Springfield?\",pass,fail,fail,pass\n" +
		"Who repairs widgets?,fail,fail,fail,fail\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_EmptyUsesFallbackHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil, engines))
	assert.Equal(t, "Question,ChatGPT,Claude,Gemini,Perplexity\n", buf.String())
}

func timedResults() []types.VerificationResult {
	return []types.VerificationResult{{
		Question: "Who repairs widgets?",
		PerEngineResult: []types.EngineResult{
			{EngineName: "ChatGPT", Matched: true, Status: types.StatusOK, ResponseTimeMs: 1250},
			{EngineName: "Claude", Status: types.StatusOK, ResponseTimeMs: 830},
			{EngineName: "Gemini", Status: types.StatusFail, ResponseTimeMs: 30000, Error: "timeout"},
			{EngineName: "Perplexity", Status: types.StatusFail, Unavailable: true},
		},
	}}
}

func TestWriteCSV_ResponseTimes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, timedResults(), engines, WithResponseTimes()))

	want := "Question,ChatGPT,Claude,Gemini,Perplexity,ChatGPT ms,Claude ms,Gemini ms,Perplexity ms\n" +
		"Who repairs widgets?,pass,fail,fail,fail,1250,830,30000,\n"
	assert.Equal(t, want, buf.String())
}

func TestResponseTime(t *testing.T) {
	assert.Equal(t, "1250ms", ResponseTime(types.EngineResult{Status: types.StatusOK, ResponseTimeMs: 1250}))
	assert.Equal(t, "", ResponseTime(types.EngineResult{Status: types.StatusFail, Unavailable: true}))
}

func TestRenderMatrix(t *testing.T) {
	out := RenderMatrix(sampleResults(), engines)

	for _, want := range []string{"Question", "ChatGPT", "Perplexity", "Who repairs widgets?", "✓", "✗", "Fail"} {
		assert.Contains(t, out, want)
	}

	timed := RenderMatrix(timedResults(), engines)
	for _, want := range []string{"✓ 1250ms", "✗ 830ms", "Fail 30000ms"} {
		assert.Contains(t, timed, want)
	}
}

func TestWrite(t *testing.T) {
	r := &types.Report{
		ID:      "run-1",
		URL:     "https://acme.example",
		Profile: types.NotFoundProfile(),
		Results: sampleResults(),
		Cached:  true,
	}

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatJSON, r, engines))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "run-1", decoded["id"])
		assert.Equal(t, "Not found", decoded["businessSummary"].(map[string]any)["companyName"])
		cell := decoded["results"].([]any)[0].(map[string]any)["perEngineResult"].([]any)[0].(map[string]any)
		assert.Contains(t, cell, "responseTimeMs")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatYAML, r, engines))

		var decoded types.Report
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, r.URL, decoded.URL)
		assert.Len(t, decoded.Results, 2)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, FormatTable, r, engines))
		assert.Contains(t, buf.String(), "https://acme.example (cached)")
		assert.Contains(t, buf.String(), "Company:")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, "CSV", r, engines))
		assert.True(t, strings.HasPrefix(buf.String(), "Question,"))
	})

	t.Run("unknown", func(t *testing.T) {
		err := Write(&bytes.Buffer{}, "xml", r, engines)
		assert.Error(t, err)
	})
}
