// Package notify delivers best-effort notifications to admins and link
// viewers. Delivery failures are logged and never returned to callers.
package notify

import (
	"context"
	"sync"
)

type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	URL   string            `json:"url,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

type Notifier interface {
	NotifyAdmins(ctx context.Context, n Notification)
	// NotifyLinkSubscribers notifies viewers of one link, or of every link
	// when linkID is empty.
	NotifyLinkSubscribers(ctx context.Context, linkID string, n Notification)
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifyAdmins(context.Context, Notification)                  {}
func (Nop) NotifyLinkSubscribers(context.Context, string, Notification) {}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

func (m Multi) NotifyAdmins(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.NotifyAdmins(ctx, n)
	}
}

func (m Multi) NotifyLinkSubscribers(ctx context.Context, linkID string, n Notification) {
	for _, notifier := range m {
		notifier.NotifyLinkSubscribers(ctx, linkID, n)
	}
}

// Async delivers through next without blocking the caller. Wait blocks until
// every delivery started so far has finished.
type Async struct {
	next Notifier
	wg   sync.WaitGroup
}

func NewAsync(next Notifier) *Async {
	return &Async{next: next}
}

func (a *Async) NotifyAdmins(ctx context.Context, n Notification) {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.next.NotifyAdmins(ctx, n)
	}()
}

func (a *Async) NotifyLinkSubscribers(ctx context.Context, linkID string, n Notification) {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.next.NotifyLinkSubscribers(ctx, linkID, n)
	}()
}

func (a *Async) Wait() {
	a.wg.Wait()
}
