package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"csv-share-access/internal/email"
)

// Sender is satisfied by *email.Client.
type Sender interface {
	Send(ctx context.Context, msg *email.Message) error
}

// Mailer emails admin notifications to the admin address. Viewers have no
// address on file, so link notifications are not mailed.
type Mailer struct {
	sender Sender
	to     string
	logger *slog.Logger
}

func NewMailer(sender Sender, adminEmail string) *Mailer {
	return &Mailer{
		sender: sender,
		to:     adminEmail,
		logger: slog.With("component", "notify", "channel", "email"),
	}
}

func (m *Mailer) NotifyAdmins(ctx context.Context, n Notification) {
	body := fmt.Sprintf("<p>%s</p>", html.EscapeString(n.Body))
	if n.URL != "" {
		body += fmt.Sprintf(`<p><a href="%s">%s</a></p>`, html.EscapeString(n.URL), html.EscapeString(n.URL))
	}
	msg := &email.Message{
		To:      []string{m.to},
		Subject: n.Title,
		HTML:    body,
	}
	if err := m.sender.Send(context.WithoutCancel(ctx), msg); err != nil {
		m.logger.Error("Failed to email admin", "subject", n.Title, "error", err)
	}
}

func (m *Mailer) NotifyLinkSubscribers(context.Context, string, Notification) {}
