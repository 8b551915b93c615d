// internal/common/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"foodlog/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// Remote is a read-through Redis tier for provider payloads. It is optional:
// a nil *Remote is safe to call and behaves as an always-miss cache.
type Remote struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRemote creates a Redis-backed cache tier. Returns nil when no address
// is configured.
func NewRemote(cfg config.RedisConfig, ttl time.Duration) *Remote {
	if cfg.Address == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})
	return &Remote{client: rdb, ttl: ttl}
}

// Ping tests the Redis connection.
func (r *Remote) Ping(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Remote) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// Get retrieves a cached payload. Errors are treated as misses so a Redis
// outage never blocks a lookup.
func (r *Remote) Get(ctx context.Context, key string) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores a payload with the tier TTL. Write errors are ignored.
func (r *Remote) Set(ctx context.Context, key string, payload []byte) {
	if r == nil {
		return
	}
	r.client.Set(ctx, key, payload, r.ttl)
}
