// Package audit records admin and viewer actions. Recording is best effort:
// a failed write is logged and never fails the caller.
package audit

import (
	"context"
	"log/slog"
	"time"

	"csv-share-access/internal/storage"
	"csv-share-access/internal/utils"
)

type Action string

const (
	ActionAdminLogin        Action = "admin_login"
	ActionAdminLogout       Action = "admin_logout"
	ActionFileUploaded      Action = "csv_uploaded"
	ActionFileActivated     Action = "csv_activated"
	ActionFileDeleted       Action = "csv_deleted"
	ActionLinkCreated       Action = "link_created"
	ActionLinkUpdated       Action = "link_updated"
	ActionLinkDeleted       Action = "link_deleted"
	ActionViewerActivated   Action = "viewer_activated"
	ActionRecoveryRequested Action = "recovery_requested"
	ActionRecoveryApproved  Action = "recovery_approved"
	ActionRecoveryDenied    Action = "recovery_denied"
	ActionDeviceRevoked     Action = "device_revoked"
)

type Details map[string]any

type Store interface {
	CreateAuditEntry(ctx context.Context, entry storage.AuditEntry) error
}

type Logger struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func NewLogger(store Store) *Logger {
	return &Logger{
		store:  store,
		now:    time.Now,
		logger: slog.With("component", "audit"),
	}
}

// Log persists one audit entry. sessionID may be empty for viewer actions.
func (l *Logger) Log(ctx context.Context, action Action, details Details, sessionID string) {
	if details == nil {
		details = Details{}
	}
	entry := storage.AuditEntry{
		ID:        utils.NewID(),
		Action:    string(action),
		Details:   storage.JSON[map[string]any]{V: details},
		CreatedAt: l.now(),
	}
	if sessionID != "" {
		entry.SessionID = &sessionID
	}

	if err := l.store.CreateAuditEntry(context.WithoutCancel(ctx), entry); err != nil {
		l.logger.Error("Failed to write audit entry", "action", action, "error", err)
	}
}
