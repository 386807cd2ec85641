package middlewares

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding-window limiter backed by a Redis sorted set,
// so the count survives restarts and is shared between replicas.
type RedisLimiter struct {
	client    redis.Cmdable
	keyPrefix string
	limit     int
	window    time.Duration
}

// slidingWindowScript prunes, counts and records in one atomic step so
// concurrent requests cannot all pass the count check before any of
// them is recorded.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)

	if count >= limit then
		return 0
	end

	redis.call('ZADD', key, now, now .. ':' .. count)
	redis.call('PEXPIRE', key, window_ms)

	return 1
`)

func NewRedisLimiter(client redis.Cmdable, keyPrefix string, limit int, window time.Duration) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}

	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := rl.keyPrefix + key
	now := time.Now()
	windowStart := now.Add(-rl.window).UnixMicro()

	result, err := slidingWindowScript.Run(ctx, rl.client, []string{redisKey},
		windowStart,
		now.UnixMicro(),
		rl.limit,
		rl.window.Milliseconds(),
	).Int()

	if err != nil {
		return false, 0, err
	}

	if result == 0 {
		return false, rl.window, nil
	}

	return true, 0, nil
}
