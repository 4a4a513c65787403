package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisWrapper wraps the page cache's Redis client with a circuit breaker.
type RedisWrapper struct {
	client *redis.Client
	cb     *CircuitBreaker
}

// NewRedisWrapper creates a Redis wrapper with circuit breaker.
func NewRedisWrapper(client *redis.Client, logger *zap.Logger) *RedisWrapper {
	cb := NewCircuitBreaker("redis", CacheSettings().ToConfig(), logger)
	GlobalMetricsCollector.RegisterCircuitBreaker("redis", "page-cache", cb)
	return &RedisWrapper{client: client, cb: cb}
}

func (rw *RedisWrapper) record(err error) {
	GlobalMetricsCollector.RecordRequest("redis", "page-cache", err)
}

// Ping checks connectivity.
func (rw *RedisWrapper) Ping(ctx context.Context) error {
	err := rw.cb.Execute(ctx, func() error {
		return rw.client.Ping(ctx).Err()
	})
	rw.record(err)
	return err
}

// Get returns the value for key. A missing key returns redis.Nil and does
// not count against the breaker.
func (rw *RedisWrapper) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	var miss bool
	err := rw.cb.Execute(ctx, func() error {
		b, err := rw.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			miss = true
			return nil
		}
		val = b
		return err
	})
	rw.record(err)
	if err == nil && miss {
		return nil, redis.Nil
	}
	return val, err
}

// Set stores value under key with a TTL.
func (rw *RedisWrapper) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := rw.cb.Execute(ctx, func() error {
		return rw.client.Set(ctx, key, value, ttl).Err()
	})
	rw.record(err)
	return err
}

// Close closes the underlying client.
func (rw *RedisWrapper) Close() error {
	return rw.client.Close()
}

// IsCircuitBreakerOpen returns true if the circuit breaker is open.
func (rw *RedisWrapper) IsCircuitBreakerOpen() bool {
	return rw.cb.State() == StateOpen
}
