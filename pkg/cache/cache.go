package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/shouni/go-flowql/pkg/metrics"
)

const (
	DefaultTTL      = time.Hour
	DefaultCapacity = 256
)

// Cache は、レポートなどを保存するベストエフォートのキャッシュです。
// 値が見つからないことは処理の妨げになりません。失敗は呼び出し側で無視されます。
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, v []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ----------------------------------------------------------------------
// Nop
// ----------------------------------------------------------------------

// Nop は何も保存しないキャッシュです (キャッシュ無効時やテスト用)。
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool)               { return nil, false }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error                     { return nil }

// ----------------------------------------------------------------------
// プロセス内 LRU
// ----------------------------------------------------------------------

// LocalLRU は TTL 付きのプロセス内 LRU キャッシュです。
type LocalLRU struct {
	mu   sync.Mutex
	cap  int
	list *list.List               // 先頭 = 最近使ったもの
	m    map[string]*list.Element // key -> element
	now  func() time.Time
}

type lruEntry struct {
	key string
	val []byte
	exp time.Time
}

// NewLocalLRU は容量 capacity の LocalLRU を生成します。
func NewLocalLRU(capacity int) *LocalLRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LocalLRU{
		cap:  capacity,
		list: list.New(),
		m:    make(map[string]*list.Element, capacity),
		now:  time.Now,
	}
}

func (l *LocalLRU) Get(_ context.Context, key string) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		ent := el.Value.(lruEntry)
		if ent.exp.After(l.now()) {
			l.list.MoveToFront(el)
			metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
			return ent.val, true
		}
		// 期限切れ
		l.list.Remove(el)
		delete(l.m, key)
	}
	metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()
	return nil, false
}

func (l *LocalLRU) Set(_ context.Context, key string, v []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ent := lruEntry{key: key, val: v, exp: l.now().Add(ttl)}
	if el, ok := l.m[key]; ok {
		el.Value = ent
		l.list.MoveToFront(el)
		return nil
	}
	l.m[key] = l.list.PushFront(ent)
	if l.list.Len() > l.cap {
		if lru := l.list.Back(); lru != nil {
			delete(l.m, lru.Value.(lruEntry).key)
			l.list.Remove(lru)
		}
	}
	return nil
}

func (l *LocalLRU) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		l.list.Remove(el)
		delete(l.m, key)
	}
	return nil
}

// Len は保持しているエントリ数を返します (期限切れを含む)。
func (l *LocalLRU) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list.Len()
}
