// Package cleanup prunes expired and resolved rows on a schedule.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"csv-share-access/internal/config"
	"csv-share-access/internal/storage"
)

type Store interface {
	PruneAdminSessions(ctx context.Context, now time.Time) (int64, error)
	PruneAuditEntries(ctx context.Context, olderThan time.Time) (int64, error)
	PruneRecoveryRequests(ctx context.Context, olderThan time.Time) (int64, error)
}

// Janitor runs a retention pass at start and then every interval.
type Janitor struct {
	store     Store
	retention config.RetentionConfig

	now       func() time.Time
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	logger    *slog.Logger
}

func NewJanitor(store Store, retention config.RetentionConfig) *Janitor {
	return &Janitor{
		store:     store,
		retention: retention,
		now:       time.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		logger:    slog.With("component", "cleanup"),
	}
}

// Run performs one retention pass.
func (j *Janitor) Run(ctx context.Context) (storage.CleanupResult, error) {
	var (
		result storage.CleanupResult
		err    error
	)
	now := j.now()

	if result.AdminSessions, err = j.store.PruneAdminSessions(ctx, now); err != nil {
		return result, fmt.Errorf("failed to prune admin sessions: %w", err)
	}
	if result.AuditLogs, err = j.store.PruneAuditEntries(ctx, now.Add(-j.retention.AuditLogs)); err != nil {
		return result, fmt.Errorf("failed to prune audit logs: %w", err)
	}
	if result.RecoveryRequests, err = j.store.PruneRecoveryRequests(ctx, now.Add(-j.retention.RecoveryRequests)); err != nil {
		return result, fmt.Errorf("failed to prune recovery requests: %w", err)
	}

	j.logger.Info("Cleanup finished",
		"admin_sessions", result.AdminSessions,
		"audit_logs", result.AuditLogs,
		"recovery_requests", result.RecoveryRequests,
	)
	return result, nil
}

// Start launches the background loop once. Later calls are no-ops.
func (j *Janitor) Start() {
	j.startOnce.Do(func() {
		go j.loop()
	})
}

func (j *Janitor) loop() {
	defer close(j.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-j.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	j.runLogged(ctx)

	interval := j.retention.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			j.runLogged(ctx)
		case <-j.stop:
			return
		}
	}
}

func (j *Janitor) runLogged(ctx context.Context) {
	if _, err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Error("Cleanup failed", "error", err)
	}
}

// Stop ends the loop and waits for a running pass to return. A janitor
// that was never started cannot be started after Stop.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	j.startOnce.Do(func() { close(j.done) })
	<-j.done
}
