package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(redisURL string) *redis.Options {
	if !strings.Contains(redisURL, "://") {
		redisURL = "redis://" + redisURL
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Fallback to simple connection
		return &redis.Options{Addr: strings.TrimPrefix(redisURL, "redis://")}
	}
	return opt
}

// newRedisClient connects and pings the server.
func newRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	client := redis.NewClient(redisOptions(redisURL))

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
