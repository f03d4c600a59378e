package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fixedWindowScript increments the counter and starts the window on the
// first hit, atomically. Returns {count, remaining window in ms}.
var fixedWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local window = tonumber(ARGV[1])

	local count = redis.call('INCR', key)
	if count == 1 then
		redis.call('PEXPIRE', key, window)
	end

	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		redis.call('PEXPIRE', key, window)
		ttl = window
	end

	return {count, ttl}
`)

// RedisConfig holds configuration for the shared limiter.
type RedisConfig struct {
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// RedisLimiter is a fixed-window limiter whose counters live in Redis.
// Keys expire with their window, so no sweep is needed.
type RedisLimiter struct {
	client *redis.Client
	cfg    RedisConfig
	log    *zap.Logger
}

// NewRedisLimiter creates a new Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg RedisConfig, log *zap.Logger) *RedisLimiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit:"
	}
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// Admit implements Limiter. Redis failures admit the request (fail open).
func (l *RedisLimiter) Admit(ctx context.Context, key string) Decision {
	res, err := fixedWindowScript.Run(ctx, l.client, []string{l.cfg.KeyPrefix + key},
		l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.log.Warn("rate limiter redis error, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return Decision{Allowed: true}
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if count > int64(l.cfg.Limit) {
		return Decision{
			Allowed:    false,
			RetryAfter: ttl,
		}
	}

	return Decision{
		Allowed:   true,
		Remaining: l.cfg.Limit - int(count),
	}
}
