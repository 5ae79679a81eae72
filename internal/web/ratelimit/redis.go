package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, counts it and records the request when
// the count is under the limit. It returns {allowed, count}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, now)
	redis.call('EXPIRE', key, ttl)
	return {1, current + 1}
end
return {0, current}
`)

// RedisLimiter is a sliding window Limiter shared by every process using
// the same Redis
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
}

// RedisConfig configures a RedisLimiter
type RedisConfig struct {
	Client redis.UniversalClient
	Limit  int
	Window time.Duration
	// Prefix is prepended to every Redis key
	Prefix string
}

// NewRedisLimiter creates a RedisLimiter
func NewRedisLimiter(cfg RedisConfig) (*RedisLimiter, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if cfg.Limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}
	if cfg.Window <= 0 {
		return nil, errors.New("window must be greater than 0")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit:"
	}

	return &RedisLimiter{
		client: cfg.Client,
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: cfg.Prefix,
	}, nil
}

// Allow records a request for key if the window has room
func (l *RedisLimiter) Allow(ctx context.Context, key string) (*Info, error) {
	now := time.Now()
	ttl := int(l.window.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	res, err := slidingWindow.Run(ctx, l.client, []string{l.prefix + key},
		now.UnixNano(),
		now.Add(-l.window).UnixNano(),
		l.limit,
		ttl,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected redis script result %v", res)
	}

	return &Info{
		Limit:     l.limit,
		Remaining: max(l.limit-int(res[1]), 0),
		ResetAt:   now.Add(l.window),
		Allowed:   res[0] == 1,
	}, nil
}

// Reset forgets every request recorded for key
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.prefix+key).Err()
}

// Count returns the number of requests of key in the current window
func (l *RedisLimiter) Count(ctx context.Context, key string) (int, error) {
	windowStart := time.Now().Add(-l.window)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, l.prefix+key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	card := pipe.ZCard(ctx, l.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to get count: %w", err)
	}
	return int(card.Val()), nil
}
