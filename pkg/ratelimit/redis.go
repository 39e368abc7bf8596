package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements a fixed-window counter against a shared Redis
// instance: INCR the per-(key,window) counter and set its expiry on first
// increment. This is not a distributed-consensus rate limiter — it is a
// shared counter for the case where several instances of this process
// share one Redis, which is as far as the concurrency model's
// single-instance-against-one-store assumption extends; it is not a
// substitute for a dedicated rate-limiting service.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter wraps an existing Redis client. prefix namespaces keys
// so multiple deployments can share one Redis instance safely.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, cfg Config) (bool, time.Duration, error) {
	windowID := time.Now().UnixNano() / cfg.Window.Nanoseconds()
	redisKey := fmt.Sprintf("%s:ratelimit:%s:%d", r.prefix, key, windowID)

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, cfg.Window).Err(); err != nil {
			return false, 0, fmt.Errorf("ratelimit: redis expire: %w", err)
		}
	}
	if count > int64(cfg.Max) {
		ttl, err := r.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = cfg.Window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}
