package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"csv-share-access/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "admin_login:10.0.0.1", Key(KindAdminLogin, "10.0.0.1", ""))
	assert.Equal(t, "link_login:10.0.0.1:abc", Key(KindLinkLogin, "10.0.0.1", "abc"))
}

func TestMemory_WindowAndReset(t *testing.T) {
	l := NewMemory(5, time.Minute)
	defer l.Close()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, _, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", i+1)
	}
	ok, retry, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _, _ = l.Allow(ctx, "other")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _, _ = l.Allow(ctx, "k")
	assert.True(t, ok, "window reset")
}

func TestMemory_Cleanup(t *testing.T) {
	l := NewMemory(1, time.Second)
	defer l.Close()
	now := time.Now()
	l.now = func() time.Time { return now }

	_, _, _ = l.Allow(context.Background(), "a")
	now = now.Add(2 * time.Second)
	l.cleanup()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.buckets)
}

func TestMemory_CloseTwice(t *testing.T) {
	l := NewMemory(1, time.Second)
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

func TestNew(t *testing.T) {
	l, err := New(context.Background(), config.RateLimitConfig{Store: "memory", Attempts: 5, Window: time.Minute})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, l)
	l.Close()

	_, err = New(context.Background(), config.RateLimitConfig{Store: "memcached"})
	assert.Error(t, err)
}

func TestNewRedis_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, 5, time.Minute, config.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRetryRedisOperation(t *testing.T) {
	calls := 0
	got, err := retryRedisOperation(context.Background(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection reset")
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = retryRedisOperation(context.Background(), func() (int, error) {
		calls++
		return 0, errors.New("down")
	})
	assert.ErrorContains(t, err, "after 3 retries")
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = retryRedisOperation(ctx, func() (int, error) { return 0, errors.New("down") })
	assert.ErrorIs(t, err, context.Canceled)
}

// countingHook counts commands handed to the client.
type countingHook struct {
	calls int
}

func (h *countingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *countingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		h.calls++
		return next(ctx, cmd)
	}
}

func (h *countingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedis_AllowSendsOneCommand(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: time.Second})
	defer client.Close()
	hook := &countingHook{}
	client.AddHook(hook)

	l := &Redis{client: client, win: time.Minute, max: 5, logger: slog.Default()}
	allowed, _, err := l.Allow(context.Background(), Key(KindAdminLogin, "10.0.0.1", ""))
	assert.Error(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 1, hook.calls, "a failed count must not be replayed")
}

func TestRedis_Decide(t *testing.T) {
	l := &Redis{win: time.Minute, max: 2}
	tests := []struct {
		count   int64
		ttl     time.Duration
		allowed bool
		wait    time.Duration
	}{
		{1, time.Minute, true, 0},
		{2, 10 * time.Second, true, 0},
		{3, 10 * time.Second, false, 10 * time.Second},
		{4, 0, false, time.Minute},
		{4, 2 * time.Minute, false, time.Minute},
	}
	for _, tt := range tests {
		allowed, wait := l.decide(tt.count, tt.ttl)
		assert.Equal(t, tt.allowed, allowed, "count %d", tt.count)
		assert.Equal(t, tt.wait, wait, "count %d", tt.count)
	}
}
