package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"csv-share-access/internal/dataset"
)

// Well known keys in app_settings.
const SettingCurrentFile = "current_file_id"

// JSON stores a value as a JSON text column.
type JSON[T any] struct {
	V T
}

func (j JSON[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSON[T]) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
	return json.Unmarshal(b, &j.V)
}

func (j JSON[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.V)
}

func (j JSON[T]) MarshalYAML() (any, error) {
	return j.V, nil
}

type AdminSession struct {
	ID            string    `db:"id" json:"-"`
	UserAgentHash string    `db:"user_agent_hash" json:"-"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type AccessLink struct {
	ID             string                       `db:"id" json:"id" yaml:"id"`
	FileID         *string                      `db:"file_id" json:"file_id" yaml:"file_id"`
	Name           string                       `db:"name" json:"name" yaml:"name"`
	Criteria       JSON[[]dataset.Criterion]    `db:"criteria" json:"criteria" yaml:"criteria"`
	PasswordSalt   string                       `db:"password_salt" json:"-" yaml:"-"`
	PasswordHash   string                       `db:"password_hash" json:"-" yaml:"-"`
	PasswordUsedAt *time.Time                   `db:"password_used_at" json:"password_used_at" yaml:"password_used_at"`
	Active         bool                         `db:"active" json:"active" yaml:"active"`
	DisplayOptions JSON[dataset.DisplayOptions] `db:"display_options" json:"display_options" yaml:"display_options"`
	CreatedAt      time.Time                    `db:"created_at" json:"created_at" yaml:"created_at"`
}

type LinkDevice struct {
	ID                string     `db:"id" json:"id" yaml:"id"`
	LinkID            string     `db:"link_id" json:"link_id" yaml:"link_id"`
	TokenHash         string     `db:"token_hash" json:"-" yaml:"-"`
	FingerprintHash   string     `db:"device_fingerprint_hash" json:"-" yaml:"-"`
	ApprovedRequestID *string    `db:"approved_request_id" json:"approved_request_id" yaml:"approved_request_id"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at" yaml:"created_at"`
	LastUsedAt        *time.Time `db:"last_used_at" json:"last_used_at" yaml:"last_used_at"`
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusDenied   RequestStatus = "denied"
)

type RecoveryRequest struct {
	ID              string        `db:"id" json:"id" yaml:"id"`
	LinkID          string        `db:"link_id" json:"link_id" yaml:"link_id"`
	FingerprintHash string        `db:"device_fingerprint_hash" json:"-" yaml:"-"`
	Message         string        `db:"message" json:"message" yaml:"message"`
	Status          RequestStatus `db:"status" json:"status" yaml:"status"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at" yaml:"created_at"`
	ResolvedAt      *time.Time    `db:"resolved_at" json:"resolved_at" yaml:"resolved_at"`
	ConsumedAt      *time.Time    `db:"consumed_at" json:"consumed_at" yaml:"consumed_at"`
}

type StoredFile struct {
	ID            string               `db:"id" json:"id" yaml:"id"`
	Filename      string               `db:"filename" json:"filename" yaml:"filename"`
	StoragePath   string               `db:"storage_path" json:"-" yaml:"storage_path"`
	Schema        JSON[dataset.Schema] `db:"schema" json:"schema" yaml:"schema"`
	RowCount      int                  `db:"row_count" json:"row_count" yaml:"row_count"`
	EncSalt       string               `db:"enc_salt" json:"-" yaml:"-"`
	EncIV         string               `db:"enc_iv" json:"-" yaml:"-"`
	EncTag        string               `db:"enc_tag" json:"-" yaml:"-"`
	UpdateMessage *string              `db:"update_message" json:"update_message" yaml:"update_message"`
	UploadedAt    time.Time            `db:"uploaded_at" json:"uploaded_at" yaml:"uploaded_at"`
}

type SubscriptionKind string

const (
	SubscriptionAdmin  SubscriptionKind = "admin"
	SubscriptionViewer SubscriptionKind = "viewer"
)

type PushSubscription struct {
	ID        string           `db:"id" json:"id"`
	Kind      SubscriptionKind `db:"kind" json:"kind"`
	LinkID    *string          `db:"link_id" json:"link_id"`
	Endpoint  string           `db:"endpoint" json:"endpoint"`
	Auth      string           `db:"auth" json:"-"`
	P256dh    string           `db:"p256dh" json:"-"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

type AuditEntry struct {
	ID        string               `db:"id" json:"id" yaml:"id"`
	Action    string               `db:"action" json:"action" yaml:"action"`
	Details   JSON[map[string]any] `db:"details" json:"details" yaml:"details"`
	SessionID *string              `db:"session_id" json:"session_id" yaml:"session_id"`
	CreatedAt time.Time            `db:"created_at" json:"created_at" yaml:"created_at"`
}

// CleanupResult counts rows removed by a retention pass.
type CleanupResult struct {
	AdminSessions    int64 `json:"admin_sessions" yaml:"admin_sessions"`
	AuditLogs        int64 `json:"audit_logs" yaml:"audit_logs"`
	RecoveryRequests int64 `json:"recovery_requests" yaml:"recovery_requests"`
}
