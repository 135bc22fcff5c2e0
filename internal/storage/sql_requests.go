package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const requestColumns = `id, link_id, device_fingerprint_hash, message, status, created_at, resolved_at, consumed_at`

func (p *SQLProvider) CreateRecoveryRequest(ctx context.Context, req RecoveryRequest) error {
	_, err := p.db.ExecContext(ctx, p.q(`INSERT INTO recovery_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		req.ID, req.LinkID, req.FingerprintHash, req.Message, req.Status,
		utc(req.CreatedAt), req.ResolvedAt, req.ConsumedAt,
	)
	return translate(err)
}

func (p *SQLProvider) GetRecoveryRequest(ctx context.Context, id string) (*RecoveryRequest, error) {
	var req RecoveryRequest
	if err := p.db.GetContext(ctx, &req, p.q("SELECT "+requestColumns+" FROM recovery_requests WHERE id = ?"), id); err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// ListRecoveryRequests returns requests newest first, filtered to statuses
// when any are given.
func (p *SQLProvider) ListRecoveryRequests(ctx context.Context, statuses ...RequestStatus) ([]RecoveryRequest, error) {
	reqs := []RecoveryRequest{}
	if len(statuses) == 0 {
		err := p.db.SelectContext(ctx, &reqs, "SELECT "+requestColumns+" FROM recovery_requests ORDER BY created_at DESC")
		return reqs, err
	}

	query, args, err := sqlx.In("SELECT "+requestColumns+" FROM recovery_requests WHERE status IN (?) ORDER BY created_at DESC", statuses)
	if err != nil {
		return nil, err
	}
	if err := p.db.SelectContext(ctx, &reqs, p.q(query), args...); err != nil {
		return nil, err
	}
	return reqs, nil
}

func (p *SQLProvider) ResolveRecoveryRequest(ctx context.Context, id string, from, to RequestStatus, at time.Time) (bool, error) {
	return p.conditional(ctx,
		"UPDATE recovery_requests SET status = ?, resolved_at = ? WHERE id = ? AND status = ? RETURNING id",
		to, utc(at), id, from,
	)
}

func (p *SQLProvider) ConsumeRecoveryRequest(ctx context.Context, id string, at time.Time) (bool, error) {
	return p.conditional(ctx,
		"UPDATE recovery_requests SET consumed_at = ? WHERE id = ? AND status = ? AND consumed_at IS NULL RETURNING id",
		utc(at), id, RequestStatusApproved,
	)
}

// PruneRecoveryRequests removes denied and redeemed requests resolved before olderThan.
func (p *SQLProvider) PruneRecoveryRequests(ctx context.Context, olderThan time.Time) (int64, error) {
	return p.prune(ctx,
		`DELETE FROM recovery_requests
		WHERE (status = ? OR consumed_at IS NOT NULL) AND created_at < ?`,
		RequestStatusDenied, utc(olderThan),
	)
}
