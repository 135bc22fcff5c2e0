// Package ratelimit counts attempts per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"csv-share-access/internal/config"
)

// Attempt kinds.
const (
	KindAdminLogin = "admin_login"
	KindLinkLogin  = "link_login"
	KindRecovery   = "recovery"
)

type Limiter interface {
	// Allow counts one attempt for key. When the window is exhausted it
	// returns false and the time until the window resets.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Close() error
}

// Key builds "kind:ip" or "kind:ip:suffix".
func Key(kind, clientIP, suffix string) string {
	parts := []string{kind, clientIP}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, ":")
}

func New(ctx context.Context, cfg config.RateLimitConfig) (Limiter, error) {
	switch cfg.Store {
	case "", "memory":
		return NewMemory(cfg.Attempts, cfg.Window), nil
	case "redis":
		return NewRedis(ctx, cfg.Attempts, cfg.Window, cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported rate limit store %q", cfg.Store)
	}
}
