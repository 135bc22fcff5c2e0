package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"csv-share-access/internal/config"
	"csv-share-access/internal/dataset"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type Provider interface {
	Close() error
	Ping(ctx context.Context) error
	GetSchemaVersion(ctx context.Context) (int, error)

	// Admin session methods
	ReplaceAdminSessions(ctx context.Context, session AdminSession) error
	GetAdminSession(ctx context.Context, id string) (*AdminSession, error)
	DeleteAdminSessions(ctx context.Context) error
	PruneAdminSessions(ctx context.Context, now time.Time) (int64, error)

	// Access link methods
	CreateLink(ctx context.Context, link AccessLink) error
	GetLink(ctx context.Context, id string) (*AccessLink, error)
	ListLinks(ctx context.Context) ([]AccessLink, error)
	UpdateLinkName(ctx context.Context, id string, name string) error
	UpdateLinkActive(ctx context.Context, id string, active bool) error
	UpdateLinkOptions(ctx context.Context, id string, opts dataset.DisplayOptions) error
	DeleteLink(ctx context.Context, id string) error
	// MarkPasswordUsed sets password_used_at only if it is still null. It
	// reports whether this call made the transition.
	MarkPasswordUsed(ctx context.Context, id string, at time.Time) (bool, error)

	// Link device methods
	CreateDevice(ctx context.Context, device LinkDevice) error
	FindDevice(ctx context.Context, linkID, tokenHash, fingerprintHash string) (*LinkDevice, error)
	TouchDevice(ctx context.Context, id string, at time.Time) error
	ListDevices(ctx context.Context, linkID string) ([]LinkDevice, error)
	DeleteDevice(ctx context.Context, id string) error

	// Recovery request methods
	CreateRecoveryRequest(ctx context.Context, req RecoveryRequest) error
	GetRecoveryRequest(ctx context.Context, id string) (*RecoveryRequest, error)
	ListRecoveryRequests(ctx context.Context, statuses ...RequestStatus) ([]RecoveryRequest, error)
	// ResolveRecoveryRequest moves a request from one status to another only if
	// it is still in the from status.
	ResolveRecoveryRequest(ctx context.Context, id string, from, to RequestStatus, at time.Time) (bool, error)
	// ConsumeRecoveryRequest marks an approved request as redeemed, once.
	ConsumeRecoveryRequest(ctx context.Context, id string, at time.Time) (bool, error)
	PruneRecoveryRequests(ctx context.Context, olderThan time.Time) (int64, error)

	// Stored file methods
	CreateFile(ctx context.Context, file StoredFile) error
	GetFile(ctx context.Context, id string) (*StoredFile, error)
	ListFiles(ctx context.Context) ([]StoredFile, error)
	UpdateFileMessage(ctx context.Context, id string, message *string) error
	DeleteFile(ctx context.Context, id string) error

	// Settings methods
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error

	// Push subscription methods
	CreatePushSubscription(ctx context.Context, sub PushSubscription) error
	ListPushSubscriptions(ctx context.Context, kind SubscriptionKind, linkID string) ([]PushSubscription, error)
	DeletePushSubscriptions(ctx context.Context, ids []string) error
	DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error

	// Audit log methods
	CreateAuditEntry(ctx context.Context, entry AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error)
	PruneAuditEntries(ctx context.Context, olderThan time.Time) (int64, error)
}

func NewProvider(ctx context.Context, config *config.Storage) (Provider, error) {
	var (
		provider *SQLProvider
		err      error
	)

	switch config.Type {
	case "sqlite", "sqlite3":
		provider, err = NewSQLiteProvider(config)
	case "postgres", "postgresql":
		provider, err = NewPostgresProvider(config)
	default:
		slog.Error("Unsupported storage configuration", "type", config.Type)
		return nil, fmt.Errorf("unsupported storage type %q", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := provider.runMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		provider.Close()
		return nil, err
	}
	return provider, nil
}
