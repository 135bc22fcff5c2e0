package storage

import (
	"context"
	"time"
)

func (p *SQLProvider) CreateAuditEntry(ctx context.Context, entry AuditEntry) error {
	_, err := p.db.ExecContext(ctx,
		p.q("INSERT INTO audit_logs (id, action, details, session_id, created_at) VALUES (?, ?, ?, ?, ?)"),
		entry.ID, entry.Action, entry.Details, entry.SessionID, utc(entry.CreatedAt),
	)
	return translate(err)
}

// ListAuditEntries returns the newest entries first.
func (p *SQLProvider) ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries := []AuditEntry{}
	err := p.db.SelectContext(ctx, &entries,
		p.q("SELECT id, action, details, session_id, created_at FROM audit_logs ORDER BY created_at DESC LIMIT ?"), limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *SQLProvider) PruneAuditEntries(ctx context.Context, olderThan time.Time) (int64, error) {
	return p.prune(ctx, "DELETE FROM audit_logs WHERE created_at < ?", utc(olderThan))
}
