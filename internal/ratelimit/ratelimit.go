// Package ratelimit counts requests per key in fixed windows. The Redis
// store lets several API instances share one budget per client.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow allows at most limit requests per key in each window.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisWindow connects to addr and checks the server is reachable.
func NewRedisWindow(ctx context.Context, addr, password string, limit int, window time.Duration) (*RedisWindow, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   2,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	if window < time.Second {
		window = time.Second
	}
	return &RedisWindow{
		client: client,
		prefix: "reviews:ratelimit:",
		limit:  int64(limit),
		window: window,
	}, nil
}

// Allow increments the counter for key and reports whether it is still
// within the limit, plus the time left in the current window.
func (w *RedisWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := w.prefix + key

	count, err := w.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := w.client.Expire(ctx, redisKey, w.window).Err(); err != nil {
			return false, 0, err
		}
	}

	ttl, err := w.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		// Expire failed after an earlier Incr; the key has no TTL.
		if err := w.client.Expire(ctx, redisKey, w.window).Err(); err != nil {
			return false, 0, err
		}
		ttl = w.window
	}
	return count <= w.limit, ttl, nil
}

func (w *RedisWindow) Close() error {
	return w.client.Close()
}
