package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const pushColumns = `id, kind, link_id, endpoint, auth, p256dh, created_at`

// CreatePushSubscription registers an endpoint. Re-subscribing an endpoint
// replaces its keys and owner.
func (p *SQLProvider) CreatePushSubscription(ctx context.Context, sub PushSubscription) error {
	_, err := p.db.ExecContext(ctx, p.q(`INSERT INTO push_subscriptions (`+pushColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET kind = excluded.kind, link_id = excluded.link_id,
			auth = excluded.auth, p256dh = excluded.p256dh`),
		sub.ID, sub.Kind, sub.LinkID, sub.Endpoint, sub.Auth, sub.P256dh, utc(sub.CreatedAt),
	)
	return translate(err)
}

// ListPushSubscriptions filters by kind, and by link when linkID is set.
func (p *SQLProvider) ListPushSubscriptions(ctx context.Context, kind SubscriptionKind, linkID string) ([]PushSubscription, error) {
	subs := []PushSubscription{}
	var err error
	if linkID == "" {
		err = p.db.SelectContext(ctx, &subs, p.q("SELECT "+pushColumns+" FROM push_subscriptions WHERE kind = ?"), kind)
	} else {
		err = p.db.SelectContext(ctx, &subs,
			p.q("SELECT "+pushColumns+" FROM push_subscriptions WHERE kind = ? AND link_id = ?"), kind, linkID)
	}
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (p *SQLProvider) DeletePushSubscriptions(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM push_subscriptions WHERE id IN (?)", ids)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, p.q(query), args...)
	return err
}

func (p *SQLProvider) DeletePushSubscriptionByEndpoint(ctx context.Context, endpoint string) error {
	return p.exec(ctx, "DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
}
