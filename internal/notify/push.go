package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"csv-share-access/internal/config"
	"csv-share-access/internal/storage"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// PUSH_TTL is how long a push service keeps an undelivered notification, in seconds.
const PUSH_TTL = 24 * 60 * 60

type SubscriptionStore interface {
	ListPushSubscriptions(ctx context.Context, kind storage.SubscriptionKind, linkID string) ([]storage.PushSubscription, error)
	DeletePushSubscriptions(ctx context.Context, ids []string) error
}

// Push sends the notification as an encrypted Web Push message, signed with
// the VAPID key pair, to every matching subscription. Endpoints answering 404
// or 410 are removed.
type Push struct {
	store  SubscriptionStore
	client *http.Client
	cfg    config.PushConfig
	logger *slog.Logger
}

func NewPush(store SubscriptionStore, cfg config.PushConfig) *Push {
	return &Push{
		store:  store,
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: slog.With("component", "notify", "channel", "push"),
	}
}

func (p *Push) NotifyAdmins(ctx context.Context, n Notification) {
	p.send(ctx, storage.SubscriptionAdmin, "", n)
}

func (p *Push) NotifyLinkSubscribers(ctx context.Context, linkID string, n Notification) {
	p.send(ctx, storage.SubscriptionViewer, linkID, n)
}

func (p *Push) send(ctx context.Context, kind storage.SubscriptionKind, linkID string, n Notification) {
	ctx = context.WithoutCancel(ctx)
	subs, err := p.store.ListPushSubscriptions(ctx, kind, linkID)
	if err != nil {
		p.logger.Error("Failed to list push subscriptions", "kind", kind, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	body, err := json.Marshal(n)
	if err != nil {
		p.logger.Error("Failed to encode notification", "error", err)
		return
	}

	var gone []string
	delivered := 0
	for _, sub := range subs {
		status, err := p.post(ctx, sub, body)
		switch {
		case err != nil:
			p.logger.Warn("Push delivery failed", "subscription_id", sub.ID, "error", err)
		case status == http.StatusNotFound || status == http.StatusGone:
			gone = append(gone, sub.ID)
		case status >= 300:
			p.logger.Warn("Push endpoint rejected notification", "subscription_id", sub.ID, "status", status)
		default:
			delivered++
		}
	}

	if len(gone) > 0 {
		if err := p.store.DeletePushSubscriptions(ctx, gone); err != nil {
			p.logger.Error("Failed to prune push subscriptions", "count", len(gone), "error", err)
		}
	}
	p.logger.Debug("Push notification sent", "kind", kind, "delivered", delivered, "pruned", len(gone), "total", len(subs))
}

func (p *Push) post(ctx context.Context, sub storage.PushSubscription, body []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.cfg.Subject,
		VAPIDPublicKey:  p.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: p.cfg.VAPIDPrivateKey,
		TTL:             PUSH_TTL,
		Urgency:         webpush.UrgencyNormal,
	})
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
