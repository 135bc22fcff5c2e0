package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"csv-share-access/internal/config"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// allowScript counts one attempt and returns the count with the remaining
// window in milliseconds. A key without expiry gets one, so a lost PEXPIRE
// cannot lock a key forever.
var allowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Redis shares fixed windows between instances. The window starts with the
// first attempt on a key and ends when its expiry elapses.
type Redis struct {
	client *redis.Client
	win    time.Duration
	max    int
	logger *slog.Logger
}

func NewRedis(ctx context.Context, max int, window time.Duration, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// Counting is not idempotent, a replayed script would count twice.
		MaxRetries: -1,
	})
	l := &Redis{client: client, win: window, max: max, logger: slog.With("component", "ratelimit", "store", "redis")}

	if _, err := retryRedisOperation(ctx, func() (string, error) {
		return client.Ping(ctx).Result()
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return l, nil
}

// Allow runs the counting script once. Errors are returned without retrying.
func (l *Redis) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := allowScript.Run(ctx, l.client, []string{keyPrefix + key}, l.win.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit check returned %d values", len(res))
	}
	allowed, wait := l.decide(res[0], time.Duration(res[1])*time.Millisecond)
	if !allowed {
		l.logger.Debug("Rate limit exceeded", "key", key, "count", res[0])
	}
	return allowed, wait, nil
}

// decide turns an attempt count and the remaining window into the result of Allow.
func (l *Redis) decide(count int64, ttl time.Duration) (bool, time.Duration) {
	if count <= int64(l.max) {
		return true, 0
	}
	if ttl <= 0 || ttl > l.win {
		ttl = l.win
	}
	return false, ttl
}

func (l *Redis) Close() error {
	return l.client.Close()
}

// retryRedisOperation runs an idempotent operation up to three times with 100ms, 200ms
// backoff between attempts.
func retryRedisOperation[T any](ctx context.Context, operation func() (T, error)) (T, error) {
	const maxRetries = 3
	const initialBackoff = 100 * time.Millisecond

	var lastErr error
	var zero T

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := initialBackoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}

		result, err := operation()
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}

	return zero, fmt.Errorf("redis operation failed after %d retries: %w", maxRetries, lastErr)
}
