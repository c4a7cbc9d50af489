package batch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shouni/go-flowql/pkg/types"
)

const (
	// DefaultMaxConcurrency は、並列解析のデフォルトの最大同時実行数を定義します。
	DefaultMaxConcurrency = 4
	// DefaultRateLimit は、1秒あたりに開始できる解析の数です。
	DefaultRateLimit = 1.0
)

// Analyzer は、1つのURLを解析してレポートを返す機能です (pipeline.Pipeline が満たします)。
type Analyzer interface {
	Run(ctx context.Context, rawURL string) (*types.Report, error)
}

// Option は Runner の設定を行う関数です。
type Option func(*Runner)

// WithMaxConcurrency は最大同時実行数を設定します。
func WithMaxConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxConcurrency = n
		}
	}
}

// WithRateLimit は1秒あたりの開始数を設定します。0 以下の場合は無制限です。
func WithRateLimit(perSecond float64) Option {
	return func(r *Runner) {
		r.rateLimit = perSecond
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner は、複数のURLを並列に解析します。
type Runner struct {
	analyzer       Analyzer
	maxConcurrency int     // 最大並列数
	rateLimit      float64 // 1秒あたりの開始数
	logger         *zap.Logger
}

// NewRunner は Runner を初期化します。
func NewRunner(analyzer Analyzer, opts ...Option) *Runner {
	r := &Runner{
		analyzer:       analyzer,
		maxConcurrency: DefaultMaxConcurrency,
		rateLimit:      DefaultRateLimit,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll は urls を並列に解析し、入力と同じ順序で結果を返します。
// 各結果は自分のエラーだけを持ち、1つの失敗が他のURLの処理を止めることはありません。
func (r *Runner) RunAll(ctx context.Context, urls []string) []types.URLResult {
	results := make([]types.URLResult, len(urls))

	var limiter *rate.Limiter
	if r.rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.rateLimit), 1)
	}

	// バッファ付きチャネルをセマフォとして使用し、同時実行数を制限する
	semaphore := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		results[i].URL = u

		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			results[i].Error = ctx.Err()
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			// 処理完了後にスロットを解放する
			defer func() { <-semaphore }()

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					results[i].Error = err
					return
				}
			}

			report, err := r.analyzer.Run(ctx, u)
			if err != nil {
				r.logger.Warn("URLの解析に失敗しました", zap.String("url", u), zap.Error(err))
				results[i].Error = fmt.Errorf("URL %s の解析に失敗しました: %w", u, err)
				return
			}
			results[i].Report = report
		}()
	}

	wg.Wait()
	return results
}
