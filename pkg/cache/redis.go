package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shouni/go-flowql/pkg/metrics"
)

const redisPingTimeout = 3 * time.Second

// Redis は go-redis を使ったキャッシュです。複数プロセスでレポートを共有できます。
type Redis struct {
	cli *redis.Client
}

// NewRedis は addr の Redis に接続し、疎通を確認します。
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := cli.Ping(pingCtx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました (addr: %s): %w", addr, err)
	}
	return &Redis{cli: cli}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.cli.Get(ctx, key).Bytes()
	if err != nil {
		result := "error"
		if errors.Is(err, redis.Nil) {
			result = "miss"
		}
		metrics.CacheLookups.WithLabelValues("redis", result).Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := r.cli.Set(ctx, key, v, ttl).Err(); err != nil {
		return fmt.Errorf("Redisへの書き込みに失敗しました (key: %s): %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.cli.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("Redisからの削除に失敗しました (key: %s): %w", key, err)
	}
	return nil
}

// Close は接続を閉じます。
func (r *Redis) Close() error {
	return r.cli.Close()
}
