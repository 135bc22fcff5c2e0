// Package admin manages the single admin identity and its session.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"csv-share-access/internal/crypto"
	"csv-share-access/internal/storage"
)

// SESSION_TTL is the lifetime of an admin session and its cookie.
const SESSION_TTL = 8 * time.Hour

var ErrMissingCredentials = errors.New("admin email and password must be configured")

// SessionStore is the part of storage.Provider the manager needs.
type SessionStore interface {
	ReplaceAdminSessions(ctx context.Context, session storage.AdminSession) error
	GetAdminSession(ctx context.Context, id string) (*storage.AdminSession, error)
	DeleteAdminSessions(ctx context.Context) error
}

// Session is a freshly created admin session with its signed cookie value.
type Session struct {
	storage.AdminSession
	Cookie string
}

type Manager struct {
	store  SessionStore
	signer *crypto.Signer

	email        string
	passwordHash string

	now    func() time.Time
	logger *slog.Logger
}

// NewManager derives the admin password hash once, salted with the email.
func NewManager(store SessionStore, signer *crypto.Signer, email, password string) (*Manager, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	hash, err := crypto.PasswordHash(password, email)
	if err != nil {
		return nil, fmt.Errorf("failed to derive admin password hash: %w", err)
	}
	return &Manager{
		store:        store,
		signer:       signer,
		email:        email,
		passwordHash: hash,
		now:          time.Now,
		logger:       slog.With("component", "admin"),
	}, nil
}

func (m *Manager) VerifyCredentials(email, password string) bool {
	// Always run scrypt so a wrong email costs the same as a wrong password.
	passwordOK := crypto.VerifyPassword(password, m.email, m.passwordHash)
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(m.email)) == 1
	return emailOK && passwordOK
}

// CreateSession replaces every existing admin session with a new one bound to
// userAgent. The row key is the digest of the cookie token.
func (m *Manager) CreateSession(ctx context.Context, userAgent string) (*Session, error) {
	token, err := crypto.GenerateToken()
	if err != nil {
		return nil, err
	}
	now := m.now()
	session := storage.AdminSession{
		ID:            crypto.TokenDigest(token),
		UserAgentHash: crypto.Hash(userAgent),
		ExpiresAt:     now.Add(SESSION_TTL),
		CreatedAt:     now,
	}
	if err := m.store.ReplaceAdminSessions(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store admin session: %w", err)
	}
	return &Session{AdminSession: session, Cookie: m.CookieValue(token)}, nil
}

func (m *Manager) ValidateSession(ctx context.Context, signedCookie, userAgent string) bool {
	token, ok := m.signer.Verify(signedCookie)
	if !ok || token == "" {
		return false
	}
	session, err := m.store.GetAdminSession(ctx, crypto.TokenDigest(token))
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		m.logger.Error("Failed to load admin session", "error", err)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(session.UserAgentHash), []byte(crypto.Hash(userAgent))) != 1 {
		return false
	}
	return m.now().Before(session.ExpiresAt)
}

func (m *Manager) ClearSessions(ctx context.Context) error {
	return m.store.DeleteAdminSessions(ctx)
}

func (m *Manager) CookieValue(token string) string {
	return m.signer.Sign(token)
}

// SessionID returns the stored session id for a cookie, for audit
// attribution. It is empty when the cookie does not verify.
func (m *Manager) SessionID(signedCookie string) string {
	token, ok := m.signer.Verify(signedCookie)
	if !ok || token == "" {
		return ""
	}
	return crypto.TokenDigest(token)
}
