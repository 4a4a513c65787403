package research

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Kocoro-lab/interplay/internal/circuitbreaker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PageCache stores raw page HTML between runs. Implementations swallow
// their own errors: a cache failure is a miss.
type PageCache interface {
	Get(ctx context.Context, url string) ([]byte, bool)
	Set(ctx context.Context, url string, body []byte, ttl time.Duration)
}

func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "interplay:page:" + hex.EncodeToString(sum[:16])
}

// LocalLRU is a simple in-process LRU with TTL
type LocalLRU struct {
	mu   sync.Mutex
	cap  int
	list *list.List               // front = most recent
	m    map[string]*list.Element // key -> element
}

type lruEntry struct {
	key  string
	body []byte
	exp  time.Time
}

// NewLocalLRU creates an LRU holding at most capacity pages.
func NewLocalLRU(capacity int) *LocalLRU {
	if capacity <= 0 {
		capacity = 256
	}
	return &LocalLRU{cap: capacity, list: list.New(), m: make(map[string]*list.Element, capacity)}
}

func (l *LocalLRU) Get(_ context.Context, url string) ([]byte, bool) {
	key := cacheKey(url)
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		ent := el.Value.(lruEntry)
		if ent.exp.After(time.Now()) {
			l.list.MoveToFront(el)
			return ent.body, true
		}
		l.list.Remove(el)
		delete(l.m, key)
	}
	return nil, false
}

func (l *LocalLRU) Set(_ context.Context, url string, body []byte, ttl time.Duration) {
	key := cacheKey(url)
	l.mu.Lock()
	defer l.mu.Unlock()
	if el, ok := l.m[key]; ok {
		el.Value = lruEntry{key: key, body: body, exp: time.Now().Add(ttl)}
		l.list.MoveToFront(el)
		return
	}
	l.m[key] = l.list.PushFront(lruEntry{key: key, body: body, exp: time.Now().Add(ttl)})
	if l.list.Len() > l.cap {
		if lru := l.list.Back(); lru != nil {
			delete(l.m, lru.Value.(lruEntry).key)
			l.list.Remove(lru)
		}
	}
}

// RedisCache uses circuit-breaker wrapped Redis
type RedisCache struct {
	cli    *circuitbreaker.RedisWrapper
	logger *zap.Logger
}

// NewRedisCache connects to addr and pings it once.
func NewRedisCache(addr, password string, db int, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	wrapper := circuitbreaker.NewRedisWrapper(rc, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := wrapper.Ping(ctx); err != nil {
		_ = wrapper.Close()
		return nil, err
	}
	return &RedisCache{cli: wrapper, logger: logger}, nil
}

func (r *RedisCache) Get(ctx context.Context, url string) ([]byte, bool) {
	b, err := r.cli.Get(ctx, cacheKey(url))
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("Page cache read failed", zap.String("url", url), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

func (r *RedisCache) Set(ctx context.Context, url string, body []byte, ttl time.Duration) {
	if err := r.cli.Set(ctx, cacheKey(url), body, ttl); err != nil {
		r.logger.Debug("Page cache write failed", zap.String("url", url), zap.Error(err))
	}
}

// Close releases the Redis connection.
func (r *RedisCache) Close() error { return r.cli.Close() }

// Ping checks the Redis connection through the breaker.
func (r *RedisCache) Ping(ctx context.Context) error { return r.cli.Ping(ctx) }

// BreakerOpen reports whether the breaker currently rejects calls.
func (r *RedisCache) BreakerOpen() bool { return r.cli.IsCircuitBreakerOpen() }
