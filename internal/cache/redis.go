package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in Redis under
// {prefix}{owner}:{generation}:{key}. Invalidation bumps the owner's
// generation counter; stale generations age out through their TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps a connected client. An empty prefix means "analytics:".
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "analytics:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, owner, key string) ([]byte, error) {
	if err := validateKey(owner); err != nil {
		return nil, err
	}
	gen, err := r.Generation(ctx, owner)
	if err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.entryKey(owner, gen, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set writes under gen. When gen has been superseded the entry lands in a
// generation Get no longer reads and ages out through its TTL.
func (r *RedisCache) Set(ctx context.Context, owner, key string, gen int64, value []byte, ttl time.Duration) error {
	if err := validateKey(owner); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, r.entryKey(owner, gen, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, owner string) error {
	if err := validateKey(owner); err != nil {
		return err
	}
	if err := r.client.Incr(ctx, r.generationKey(owner)).Err(); err != nil {
		return fmt.Errorf("redis incr: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Generation(ctx context.Context, owner string) (int64, error) {
	if err := validateKey(owner); err != nil {
		return 0, err
	}
	gen, err := r.client.Get(ctx, r.generationKey(owner)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get generation: %w", err)
	}
	return gen, nil
}

func (r *RedisCache) generationKey(owner string) string {
	return r.prefix + owner + ":gen"
}

func (r *RedisCache) entryKey(owner string, gen int64, key string) string {
	return fmt.Sprintf("%s%s:%d:%s", r.prefix, owner, gen, key)
}
