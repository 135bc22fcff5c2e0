package storage

import (
	"context"
	"time"
)

// ReplaceAdminSessions deletes every admin session and inserts the new one in
// a single transaction. Only one admin session is ever live.
func (p *SQLProvider) ReplaceAdminSessions(ctx context.Context, session AdminSession) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM admin_sessions"); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		p.q("INSERT INTO admin_sessions (id, user_agent_hash, expires_at, created_at) VALUES (?, ?, ?, ?)"),
		session.ID, session.UserAgentHash, utc(session.ExpiresAt), utc(session.CreatedAt),
	)
	if err != nil {
		return translate(err)
	}
	return tx.Commit()
}

func (p *SQLProvider) GetAdminSession(ctx context.Context, id string) (*AdminSession, error) {
	var session AdminSession
	err := p.db.GetContext(ctx, &session,
		p.q("SELECT id, user_agent_hash, expires_at, created_at FROM admin_sessions WHERE id = ?"), id)
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (p *SQLProvider) DeleteAdminSessions(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM admin_sessions")
	return err
}

func (p *SQLProvider) PruneAdminSessions(ctx context.Context, now time.Time) (int64, error) {
	return p.prune(ctx, "DELETE FROM admin_sessions WHERE expires_at <= ?", utc(now))
}
