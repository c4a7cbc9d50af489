package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-flowql/pkg/engine"
	"github.com/shouni/go-flowql/pkg/metrics"
	"github.com/shouni/go-flowql/pkg/types"
)

// Option は Verifier の設定を行う関数です。
type Option func(*Verifier)

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Verifier は、各エンジンの回答に会社名が含まれるかを確認します。
type Verifier struct {
	engines []engine.Engine
	logger  *zap.Logger
}

// New は新しい Verifier を生成します。engines の順序が結果の列順になります。
func New(engines []engine.Engine, opts ...Option) *Verifier {
	v := &Verifier{
		engines: engines,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// EngineNames は列順のエンジン名を返します。
func (v *Verifier) EngineNames() []string {
	names := make([]string, len(v.engines))
	for i, e := range v.engines {
		names[i] = e.Name()
	}
	return names
}

// Verify は、質問を1つずつ順番に処理し、各質問について全エンジンへ並行に問い合わせます。
// エンジンごとの失敗は該当セルの status="fail" になるだけで、エラーとしては返しません。
// 各 VerificationResult の PerEngineResult は常にエンジン数と同じ長さです。
func (v *Verifier) Verify(ctx context.Context, questions []string, companyName string) []types.VerificationResult {
	results := make([]types.VerificationResult, 0, len(questions))
	for _, q := range questions {
		results = append(results, types.VerificationResult{
			Question:        q,
			PerEngineResult: v.verifyQuestion(ctx, q, companyName),
		})
	}
	return results
}

func (v *Verifier) verifyQuestion(ctx context.Context, question, companyName string) []types.EngineResult {
	row := make([]types.EngineResult, len(v.engines))

	// 各ゴルーチンは自分のセルにだけ書き込み、エラーを返さない (他のエンジンを取り消さない)
	var g errgroup.Group
	for i, e := range v.engines {
		g.Go(func() error {
			row[i] = v.queryEngine(ctx, e, question, companyName)
			return nil
		})
	}
	_ = g.Wait()

	return row
}

func (v *Verifier) queryEngine(ctx context.Context, e engine.Engine, question, companyName string) (res types.EngineResult) {
	res = types.EngineResult{EngineName: e.Name(), Status: types.StatusFail}

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("エンジン呼び出し中にパニックが発生しました", zap.String("engine", e.Name()), zap.Any("panic", r))
			res = types.EngineResult{EngineName: e.Name(), Status: types.StatusFail, Error: "panic"}
			metrics.EngineQueries.WithLabelValues(e.Name(), types.StatusFail).Inc()
		}
	}()

	start := time.Now()
	text, err := e.Query(ctx, question)
	elapsed := time.Since(start)
	metrics.EngineLatency.WithLabelValues(e.Name()).Observe(elapsed.Seconds())
	res.ResponseTimeMs = elapsed.Milliseconds()

	if err != nil {
		metrics.EngineQueries.WithLabelValues(e.Name(), types.StatusFail).Inc()
		if errors.Is(err, engine.ErrUnavailable) {
			res.Unavailable = true
			v.logger.Debug("エンジンが利用できないためスキップしました", zap.String("engine", e.Name()))
		} else {
			v.logger.Warn("エンジンへの問い合わせに失敗しました", zap.String("engine", e.Name()), zap.Error(err))
		}
		res.Error = err.Error()
		return res
	}

	metrics.EngineQueries.WithLabelValues(e.Name(), types.StatusOK).Inc()
	res.Status = types.StatusOK
	res.ResponseText = text
	res.Matched = Matches(text, companyName)

	if res.Matched {
		metrics.CitationMatches.WithLabelValues(e.Name()).Inc()
		v.logger.Info("回答に会社名が含まれていました",
			zap.String("engine", e.Name()),
			zap.String("question", question),
			zap.String("company", companyName),
		)
	}
	return res
}

// Matches は、回答に会社名がそのまま (大文字小文字を区別して) 含まれるかを判定します。
// 会社名が空または番兵値の場合は常に false です。
func Matches(response, companyName string) bool {
	if !types.IsKnown(companyName) {
		return false
	}
	return strings.Contains(response, companyName)
}

// HasTransientFailure は、呼び出しに失敗したセル (利用不可のエンジンを除く) があるかを返します。
func HasTransientFailure(results []types.VerificationResult) bool {
	for _, r := range results {
		for _, c := range r.PerEngineResult {
			if c.Transient() {
				return true
			}
		}
	}
	return false
}

// MatchCount は、質問ごとの一致セル数の合計を返します。
func MatchCount(results []types.VerificationResult) int {
	n := 0
	for _, r := range results {
		for _, c := range r.PerEngineResult {
			if c.Matched {
				n++
			}
		}
	}
	return n
}
