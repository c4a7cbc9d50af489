package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultMaxAttempts は、初回を含めた最大試行回数です。
	DefaultMaxAttempts = 3

	// DefaultStep は、線形バックオフの刻み幅です。i 回目の失敗後に Step*i 待機します。
	DefaultStep = 1000 * time.Millisecond
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// NotifyFunc は、リトライ待機に入る直前に呼び出されます。
type NotifyFunc func(attempt int, err error, wait time.Duration)

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxAttempts int           // 初回を含めた最大試行回数 (1 以上)
	Step        time.Duration // 線形バックオフの刻み幅
	MaxInterval time.Duration // 1回あたりの待機時間の上限 (0 は上限なし)
	Notify      NotifyFunc    // 任意
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Step:        DefaultStep,
	}
}

// linearBackOff は、n 回目の待機時間を step*n とする backoff.BackOff の実装です。
type linearBackOff struct {
	step time.Duration
	max  time.Duration
	n    int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.n++
	d := l.step * time.Duration(l.n)
	if l.max > 0 && d > l.max {
		return l.max
	}
	return d
}

func (l *linearBackOff) Reset() { l.n = 0 }

// newBackOffPolicy は、Config からコンテキスト付きのバックオフポリシーを組み立てます。
func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOffContext {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	// WithMaxRetries(b, 0) は無制限を意味するため、1回のみの場合は StopBackOff を使う
	if attempts == 1 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	b := &linearBackOff{step: cfg.Step, max: cfg.MaxInterval}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Do は線形バックオフとカスタムエラー判定を使用して操作をリトライします。
// すべての試行が失敗した場合は、最後のエラーをラップして1つだけ返します。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	_, err := DoCount(ctx, cfg, operationName, op, shouldRetryFn)
	return err
}

// DoCount は Do と同じですが、実際の試行回数も返します。
func DoCount(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) (int, error) {
	bo := newBackOffPolicy(ctx, cfg)

	var lastErr error
	attempt := 0

	retryableOp := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if shouldRetryFn != nil && shouldRetryFn(err) {
			return err // リトライ対象
		}
		return backoff.Permanent(err) // 即時終了
	}

	notify := func(err error, wait time.Duration) {
		if cfg.Notify != nil {
			cfg.Notify(attempt, err, wait)
		}
	}

	err := backoff.RetryNotify(retryableOp, bo, notify)
	if err == nil {
		return attempt, nil
	}

	// コンテキストキャンセル/タイムアウトのエラー処理
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if lastErr != nil && !errors.Is(lastErr, err) {
			return attempt, fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル (%w): 最終エラー: %w", operationName, err, lastErr)
		}
		return attempt, fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, err)
	}

	if lastErr == nil {
		lastErr = err
	}
	return attempt, fmt.Errorf("%sに失敗しました (%d回試行): %w", operationName, attempt, lastErr)
}
