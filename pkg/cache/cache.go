// Package cache provides a small byte cache with an in-memory and a Redis
// backend, selected by configuration.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/medistock/medistock-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

// Cache stores opaque values under string keys.
type Cache interface {
	// Get returns ErrMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Error is a constant cache error.
type Error string

func (e Error) Error() string { return string(e) }

// ErrMiss indicates the key was not found.
const ErrMiss Error = "cache miss"

// New builds the cache selected by cfg.Type ("memory" or "redis").
func New(ctx context.Context, cfg config.CacheConfig) (Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryCache(time.Minute), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisCache(client, "medistock"), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

// GetOrSet returns the cached value for key, calling load and storing its
// result on a miss. Errors from the cache itself fall back to load.
func GetOrSet(ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, nil
}
