package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims the window, then records the event if the
// window still has room. Returns 1 when allowed, 0 otherwise.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	if redis.call('ZCARD', key) >= limit then
		return 0
	end

	local seq = redis.call('INCR', counter_key)
	redis.call('ZADD', key, now, now .. ':' .. seq)
	redis.call('PEXPIRE', key, window_ms)
	redis.call('PEXPIRE', counter_key, window_ms)
	return 1
`)

// RedisLimiter is a sliding-window limiter shared by every instance that
// talks to the same Redis.
type RedisLimiter struct {
	client *redis.Client
	config Config
	prefix string
}

// NewRedisLimiter creates a sliding-window limiter. Keys are stored under
// prefix.
func NewRedisLimiter(client *redis.Client, config Config, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		config: config.normalize(),
		prefix: prefix,
	}
}

// Allow records one event for key if the current window has room.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	redisKey := l.prefix + key

	res, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, redisKey + ":seq"},
		now.UnixMilli(),
		now.Add(-l.config.Window).UnixMilli(),
		l.config.Limit,
		l.config.Window.Milliseconds(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	return res == 1, nil
}

// Forget removes the window of key.
func (l *RedisLimiter) Forget(ctx context.Context, key string) error {
	redisKey := l.prefix + key
	return l.client.Del(ctx, redisKey, redisKey+":seq").Err()
}
