package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache is the byte-level view of Redis used by the API and the projector.
// Redis is never the source of truth: callers fall back to the ledger on miss.
type Cache struct {
	C *redis.Client
}

// Get returns (nil, false, nil) on a cache miss.
func (c Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.C.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.C.Set(ctx, key, value, ttl).Err()
}

func (c Cache) Del(ctx context.Context, keys ...string) error {
	return c.C.Del(ctx, keys...).Err()
}

// SetIfAbsent writes key only when it does not exist yet.
func (c Cache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.C.SetNX(ctx, key, value, ttl).Result()
}

// Claim marks key as taken; false means someone else already holds it.
func (c Cache) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.SetIfAbsent(ctx, key, []byte("1"), ttl)
}
