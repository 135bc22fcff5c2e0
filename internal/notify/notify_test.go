package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"csv-share-access/internal/config"
	"csv-share-access/internal/email"
	"csv-share-access/internal/storage"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	admins []Notification
	links  map[string][]Notification
}

func (r *recorder) NotifyAdmins(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admins = append(r.admins, n)
}

func (r *recorder) NotifyLinkSubscribers(ctx context.Context, linkID string, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.links == nil {
		r.links = map[string][]Notification{}
	}
	r.links[linkID] = append(r.links[linkID], n)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg *email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newStore(t *testing.T) storage.Provider {
	t.Helper()
	p, err := storage.NewProvider(context.Background(), &config.Storage{
		Type:   "sqlite",
		SQLite: config.SQLiteStorage{Path: filepath.Join(t.TempDir(), "notify.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// subscriberKeys returns browser side subscription keys: a P-256 public key
// and a 16 byte auth secret, both base64url encoded.
func subscriberKeys(t *testing.T) (auth, p256dh string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(secret), base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
}

func pushConfig(t *testing.T) config.PushConfig {
	t.Helper()
	private, public, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return config.PushConfig{
		Enabled:         true,
		Timeout:         time.Second,
		VAPIDPublicKey:  public,
		VAPIDPrivateKey: private,
		Subject:         "mailto:admin@example.com",
	}
}

type pushRequest struct {
	authorization string
	encoding      string
	ttl           string
	body          []byte
}

func TestPush_DeliversAndPrunesGoneEndpoints(t *testing.T) {
	var (
		mu       sync.Mutex
		received []pushRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, pushRequest{
			authorization: r.Header.Get("Authorization"),
			encoding:      r.Header.Get("Content-Encoding"),
			ttl:           r.Header.Get("TTL"),
			body:          body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p := newStore(t)
	ctx := context.Background()
	auth, p256dh := subscriberKeys(t)
	for _, sub := range []storage.PushSubscription{
		{ID: "ok", Kind: storage.SubscriptionAdmin, Endpoint: srv.URL + "/ok", Auth: auth, P256dh: p256dh, CreatedAt: time.Now()},
		{ID: "gone", Kind: storage.SubscriptionAdmin, Endpoint: srv.URL + "/gone", Auth: auth, P256dh: p256dh, CreatedAt: time.Now()},
	} {
		require.NoError(t, p.CreatePushSubscription(ctx, sub))
	}

	cfg := pushConfig(t)
	NewPush(p, cfg).NotifyAdmins(ctx, Notification{Title: "New request", Body: "Team A wants back in"})

	mu.Lock()
	require.Len(t, received, 1)
	got := received[0]
	mu.Unlock()
	assert.True(t, strings.HasPrefix(got.authorization, "vapid t="), got.authorization)
	assert.Contains(t, got.authorization, "k="+cfg.VAPIDPublicKey)
	assert.Equal(t, "aes128gcm", got.encoding)
	assert.Equal(t, "86400", got.ttl)
	assert.NotContains(t, string(got.body), "New request")
	assert.NotContains(t, string(got.body), "Team A")

	left, err := p.ListPushSubscriptions(ctx, storage.SubscriptionAdmin, "")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "ok", left[0].ID)
}

func TestPush_FailedDeliveryIsKept(t *testing.T) {
	p := newStore(t)
	ctx := context.Background()
	auth, p256dh := subscriberKeys(t)
	require.NoError(t, p.CreatePushSubscription(ctx, storage.PushSubscription{
		ID: "down", Kind: storage.SubscriptionAdmin, Endpoint: "http://127.0.0.1:1/push", Auth: auth, P256dh: p256dh, CreatedAt: time.Now(),
	}))
	require.NoError(t, p.CreatePushSubscription(ctx, storage.PushSubscription{
		ID: "bad-keys", Kind: storage.SubscriptionAdmin, Endpoint: "http://127.0.0.1:1/push2", Auth: "a", P256dh: "k", CreatedAt: time.Now(),
	}))

	NewPush(p, pushConfig(t)).NotifyAdmins(ctx, Notification{Title: "x"})

	left, err := p.ListPushSubscriptions(ctx, storage.SubscriptionAdmin, "")
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

func TestMailer_NotifyAdmins(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(msg *email.Message) bool {
		return msg.To[0] == "admin@example.com" && msg.Subject == "New request" &&
			strings.Contains(msg.HTML, "&lt;script&gt;")
	})).Return(errors.New("smtp down")).Once()

	m := NewMailer(sender, "admin@example.com")
	assert.NotPanics(t, func() {
		m.NotifyAdmins(context.Background(), Notification{Title: "New request", Body: "<script>", URL: "https://share.local/admin"})
	})
	m.NotifyLinkSubscribers(context.Background(), "l1", Notification{Title: "ignored"})
	sender.AssertExpectations(t)
}

func TestMultiAndAsync(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	async := NewAsync(Multi{a, b, Nop{}})

	async.NotifyAdmins(context.Background(), Notification{Title: "admins"})
	async.NotifyLinkSubscribers(context.Background(), "l1", Notification{Title: "viewers"})
	async.Wait()

	for _, r := range []*recorder{a, b} {
		assert.Len(t, r.admins, 1)
		assert.Len(t, r.links["l1"], 1)
	}
}
