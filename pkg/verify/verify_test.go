package verify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/shouni/go-flowql/pkg/engine"
	"github.com/shouni/go-flowql/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeEngine はテスト用の engine.Engine 実装です。
type fakeEngine struct {
	name  string
	reply func(question string) (string, error)
	delay time.Duration
}

func (f *fakeEngine) Name() string    { return f.name }
func (f *fakeEngine) Available() bool { return true }

func (f *fakeEngine) Query(ctx context.Context, question string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply(question)
}

func fixed(name, reply string) *fakeEngine {
	return &fakeEngine{name: name, reply: func(string) (string, error) { return reply, nil }}
}

func failing(name string, err error) *fakeEngine {
	return &fakeEngine{name: name, reply: func(string) (string, error) { return "", err }}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		response string
		company  string
		want     bool
	}{
		{"exact mention", "I recommend Acme Corp for this.", "Acme Corp", true},
		{"different case", "I recommend acme corp for this.", "Acme Corp", false},
		{"substring inside word", "Try academic Acmeworks.", "Acme", true},
		{"absent", "No idea.", "Acme Corp", false},
		{"empty company", "anything", "", false},
		{"sentinel company", "Not found here", types.NotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.response, tt.company))
		})
	}
}

func TestVerify_Scenario(t *testing.T) {
	engines := []engine.Engine{
		fixed(engine.NameChatGPT, "I recommend Acme Corp for this."),
		fixed(engine.NameClaude, "I recommend acme corp for this."),
		failing(engine.NameGemini, errors.New("503 from upstream")),
		engine.Unavailable(engine.NamePerplexity),
	}
	v := New(engines, WithLogger(zaptest.NewLogger(t)))

	results := v.Verify(context.Background(), []string{"Who sells widgets?"}, "Acme Corp")

	require.Len(t, results, 1)
	row := results[0]
	assert.Equal(t, "Who sells widgets?", row.Question)
	require.Len(t, row.PerEngineResult, 4)

	chatgpt, claude, gemini, perplexity := row.PerEngineResult[0], row.PerEngineResult[1], row.PerEngineResult[2], row.PerEngineResult[3]

	assert.GreaterOrEqual(t, chatgpt.ResponseTimeMs, int64(0))
	chatgpt.ResponseTimeMs = 0
	assert.Equal(t, types.EngineResult{EngineName: "ChatGPT", ResponseText: "I recommend Acme Corp for this.", Matched: true, Status: types.StatusOK}, chatgpt)
	assert.False(t, claude.Matched)
	assert.Equal(t, types.StatusOK, claude.Status)

	assert.Equal(t, types.StatusFail, gemini.Status)
	assert.False(t, gemini.Matched)
	assert.Contains(t, gemini.Error, "503")
	assert.True(t, gemini.Transient())

	assert.Equal(t, "Perplexity", perplexity.EngineName)
	assert.Equal(t, types.StatusFail, perplexity.Status)
	assert.True(t, perplexity.Unavailable)
	assert.False(t, perplexity.Transient())

	assert.Equal(t, 1, MatchCount(results))
	assert.True(t, HasTransientFailure(results))
}

func TestVerify_ResponseTime(t *testing.T) {
	engines := []engine.Engine{
		&fakeEngine{name: "slow", delay: 30 * time.Millisecond, reply: func(string) (string, error) { return "Acme", nil }},
		&fakeEngine{name: "slow-fail", delay: 30 * time.Millisecond, reply: func(string) (string, error) { return "", errors.New("500") }},
	}

	results := New(engines).Verify(context.Background(), []string{"q"}, "Acme")

	require.Len(t, results[0].PerEngineResult, 2)
	for _, c := range results[0].PerEngineResult {
		assert.GreaterOrEqual(t, c.ResponseTimeMs, int64(30), c.EngineName)
	}
}

func TestHasTransientFailure(t *testing.T) {
	row := func(cells ...types.EngineResult) []types.VerificationResult {
		return []types.VerificationResult{{Question: "q", PerEngineResult: cells}}
	}
	ok := types.EngineResult{Status: types.StatusOK}
	unavailable := types.EngineResult{Status: types.StatusFail, Unavailable: true}
	failed := types.EngineResult{Status: types.StatusFail, Error: "timeout"}

	assert.False(t, HasTransientFailure(nil))
	assert.False(t, HasTransientFailure(row(ok, unavailable)))
	assert.True(t, HasTransientFailure(row(ok, failed)))
}

func TestVerify_AlwaysFullRows(t *testing.T) {
	engines := []engine.Engine{
		failing("a", errors.New("x")),
		failing("b", errors.New("y")),
		failing("c", errors.New("z")),
		failing("d", errors.New("w")),
	}
	v := New(engines)

	results := v.Verify(context.Background(), []string{"q1", "q2", "q3"}, "Acme")

	require.Len(t, results, 3)
	for _, r := range results {
		require.Len(t, r.PerEngineResult, 4)
		for i, c := range r.PerEngineResult {
			assert.Equal(t, v.EngineNames()[i], c.EngineName)
			assert.Equal(t, types.StatusFail, c.Status)
		}
	}
}

func TestVerify_PanicIsIsolated(t *testing.T) {
	engines := []engine.Engine{
		&fakeEngine{name: "boom", reply: func(string) (string, error) { panic("bad engine") }},
		fixed("ok", "Acme rocks"),
	}

	results := New(engines).Verify(context.Background(), []string{"q"}, "Acme")

	require.Len(t, results[0].PerEngineResult, 2)
	assert.Equal(t, types.StatusFail, results[0].PerEngineResult[0].Status)
	assert.True(t, results[0].PerEngineResult[1].Matched)
}

func TestVerify_QuestionsAreSequential(t *testing.T) {
	var inFlight, peak int32
	track := func(name string) *fakeEngine {
		return &fakeEngine{name: name, reply: func(q string) (string, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return q, nil
		}}
	}
	engines := []engine.Engine{track("a"), track("b"), track("c"), track("d")}

	results := New(engines).Verify(context.Background(), []string{"q1", "q2", "q3"}, "Acme")

	require.Len(t, results, 3)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(4))
	for i, r := range results {
		assert.Equal(t, []string{"q1", "q2", "q3"}[i], r.Question)
		assert.Equal(t, r.Question, r.PerEngineResult[0].ResponseText)
	}
}

func TestVerify_CanceledContext(t *testing.T) {
	engines := []engine.Engine{
		&fakeEngine{name: "slow", delay: time.Second, reply: func(string) (string, error) { return "Acme", nil }},
		fixed("fast", "Acme"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := New(engines).Verify(ctx, []string{"q"}, "Acme")

	require.Len(t, results[0].PerEngineResult, 2)
	assert.Equal(t, types.StatusFail, results[0].PerEngineResult[0].Status)
	assert.True(t, results[0].PerEngineResult[1].Matched)
}

func TestVerify_NoQuestions(t *testing.T) {
	results := New([]engine.Engine{fixed("a", "x")}).Verify(context.Background(), nil, "Acme")
	assert.Empty(t, results)
}
