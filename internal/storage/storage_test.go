package storage

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"csv-share-access/internal/config"
	"csv-share-access/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) Provider {
	t.Helper()
	cfg := &config.Storage{
		Type:   "sqlite",
		SQLite: config.SQLiteStorage{Path: filepath.Join(t.TempDir(), "storage.db")},
	}
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func seedLink(t *testing.T, p Provider, id string) AccessLink {
	t.Helper()
	link := AccessLink{
		ID:           id,
		Name:         "Team " + id,
		Criteria:     JSON[[]dataset.Criterion]{V: []dataset.Criterion{{Column: "city", Op: dataset.OpEq, Value: "Oulu"}}},
		PasswordSalt: "salt",
		PasswordHash: "hash",
		Active:       true,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, p.CreateLink(context.Background(), link))
	return link
}

func TestNewProvider_MigratesToLatest(t *testing.T) {
	p := newTestProvider(t)
	version, err := p.GetSchemaVersion(context.Background())
	require.NoError(t, err)

	latest, err := NewMigrationRunner("sqlite3").GetLatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, version)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestMigrate_DownAndUp(t *testing.T) {
	p := newTestProvider(t).(*SQLProvider)
	ctx := context.Background()

	require.NoError(t, p.Migrate(ctx, 0))
	version, err := p.GetSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	require.NoError(t, p.Migrate(ctx, -1))
	seedLink(t, p, "l1")
}

func TestNewProvider_UnsupportedType(t *testing.T) {
	_, err := NewProvider(context.Background(), &config.Storage{Type: "mongo"})
	assert.Error(t, err)
}

func TestReplaceAdminSessions_KeepsOnlyLatest(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	now := time.Now()

	first := AdminSession{ID: "a", UserAgentHash: "ua", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	second := AdminSession{ID: "b", UserAgentHash: "ua", ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	require.NoError(t, p.ReplaceAdminSessions(ctx, first))
	require.NoError(t, p.ReplaceAdminSessions(ctx, second))

	_, err := p.GetAdminSession(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := p.GetAdminSession(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "ua", got.UserAgentHash)
	assert.WithinDuration(t, second.ExpiresAt, got.ExpiresAt, time.Millisecond)

	require.NoError(t, p.DeleteAdminSessions(ctx))
	_, err = p.GetAdminSession(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneAdminSessions(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, p.ReplaceAdminSessions(ctx, AdminSession{ID: "old", ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour)}))
	n, err := p.PruneAdminSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestLinks_CRUD(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")

	got, err := p.GetLink(ctx, "l1")
	require.NoError(t, err)
	assert.True(t, got.Active)
	assert.Nil(t, got.FileID)
	assert.Nil(t, got.PasswordUsedAt)
	require.Len(t, got.Criteria.V, 1)
	assert.Equal(t, "Oulu", got.Criteria.V[0].Value)

	require.NoError(t, p.UpdateLinkName(ctx, "l1", "Renamed"))
	require.NoError(t, p.UpdateLinkActive(ctx, "l1", false))
	require.NoError(t, p.UpdateLinkOptions(ctx, "l1", dataset.DisplayOptions{ShowSerial: true}))

	got, err = p.GetLink(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.False(t, got.Active)
	assert.True(t, got.DisplayOptions.V.ShowSerial)

	assert.ErrorIs(t, p.UpdateLinkName(ctx, "missing", "x"), ErrNotFound)

	links, err := p.ListLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, links, 1)

	require.NoError(t, p.DeleteLink(ctx, "l1"))
	_, err = p.GetLink(ctx, "l1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateLink_Duplicate(t *testing.T) {
	p := newTestProvider(t)
	link := seedLink(t, p, "l1")
	err := p.CreateLink(context.Background(), link)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMarkPasswordUsed_OnlyOnce(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")

	const workers = 8
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := p.MarkPasswordUsed(ctx, "l1", time.Now())
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins.Load())
	got, err := p.GetLink(ctx, "l1")
	require.NoError(t, err)
	assert.NotNil(t, got.PasswordUsedAt)
}

func TestDevices(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")
	seedLink(t, p, "l2")

	require.NoError(t, p.CreateDevice(ctx, LinkDevice{ID: "d1", LinkID: "l1", TokenHash: "t1", FingerprintHash: "f1", CreatedAt: time.Now()}))
	require.NoError(t, p.CreateDevice(ctx, LinkDevice{ID: "d2", LinkID: "l2", TokenHash: "t2", FingerprintHash: "f2", CreatedAt: time.Now()}))

	err := p.CreateDevice(ctx, LinkDevice{ID: "d3", LinkID: "l1", TokenHash: "t1", FingerprintHash: "f1", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicate)

	device, err := p.FindDevice(ctx, "l1", "t1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "d1", device.ID)
	assert.Nil(t, device.LastUsedAt)

	_, err = p.FindDevice(ctx, "l1", "t1", "other")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = p.FindDevice(ctx, "l2", "t1", "f1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.TouchDevice(ctx, "d1", time.Now()))
	device, err = p.FindDevice(ctx, "l1", "t1", "f1")
	require.NoError(t, err)
	assert.NotNil(t, device.LastUsedAt)

	all, err := p.ListDevices(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	one, err := p.ListDevices(ctx, "l2")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "d2", one[0].ID)

	require.NoError(t, p.DeleteLink(ctx, "l2"))
	all, err = p.ListDevices(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, p.DeleteDevice(ctx, "d1"))
	assert.ErrorIs(t, p.DeleteDevice(ctx, "d1"), ErrNotFound)
}

func TestRecoveryRequests_Transitions(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, p.CreateRecoveryRequest(ctx, RecoveryRequest{
			ID: id, LinkID: "l1", FingerprintHash: "f", Status: RequestStatusPending, CreatedAt: time.Now(),
		}))
	}

	ok, err := p.ResolveRecoveryRequest(ctx, "r1", RequestStatusPending, RequestStatusApproved, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.ResolveRecoveryRequest(ctx, "r1", RequestStatusPending, RequestStatusDenied, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "approved request must not move again")

	ok, err = p.ResolveRecoveryRequest(ctx, "r2", RequestStatusPending, RequestStatusDenied, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := p.GetRecoveryRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, RequestStatusApproved, got.Status)
	assert.NotNil(t, got.ResolvedAt)

	pending, err := p.ListRecoveryRequests(ctx, RequestStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "r3", pending[0].ID)

	visible, err := p.ListRecoveryRequests(ctx, RequestStatusPending, RequestStatusApproved)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	all, err := p.ListRecoveryRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreateRecoveryRequest_UnknownLink(t *testing.T) {
	p := newTestProvider(t)
	err := p.CreateRecoveryRequest(context.Background(), RecoveryRequest{
		ID: "r1", LinkID: "nope", FingerprintHash: "f", Status: RequestStatusPending, CreatedAt: time.Now(),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeRecoveryRequest(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")
	require.NoError(t, p.CreateRecoveryRequest(ctx, RecoveryRequest{ID: "r1", LinkID: "l1", FingerprintHash: "f", Status: RequestStatusPending, CreatedAt: time.Now()}))

	ok, err := p.ConsumeRecoveryRequest(ctx, "r1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "pending request cannot be consumed")

	_, err = p.ResolveRecoveryRequest(ctx, "r1", RequestStatusPending, RequestStatusApproved, time.Now())
	require.NoError(t, err)

	ok, err = p.ConsumeRecoveryRequest(ctx, "r1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.ConsumeRecoveryRequest(ctx, "r1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDevices_ApprovedRequestUnique(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")
	require.NoError(t, p.CreateRecoveryRequest(ctx, RecoveryRequest{ID: "r1", LinkID: "l1", FingerprintHash: "f", Status: RequestStatusApproved, CreatedAt: time.Now()}))

	reqID := "r1"
	require.NoError(t, p.CreateDevice(ctx, LinkDevice{ID: "d1", LinkID: "l1", TokenHash: "t1", FingerprintHash: "f", ApprovedRequestID: &reqID, CreatedAt: time.Now()}))
	err := p.CreateDevice(ctx, LinkDevice{ID: "d2", LinkID: "l1", TokenHash: "t2", FingerprintHash: "f", ApprovedRequestID: &reqID, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestPruneRecoveryRequests(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")
	old := time.Now().Add(-48 * time.Hour)
	used := time.Now().Add(-47 * time.Hour)

	reqs := []RecoveryRequest{
		{ID: "denied", Status: RequestStatusDenied, CreatedAt: old},
		{ID: "consumed", Status: RequestStatusApproved, CreatedAt: old, ConsumedAt: &used},
		{ID: "approved", Status: RequestStatusApproved, CreatedAt: old},
		{ID: "pending", Status: RequestStatusPending, CreatedAt: old},
		{ID: "fresh", Status: RequestStatusDenied, CreatedAt: time.Now()},
	}
	for _, r := range reqs {
		r.LinkID = "l1"
		r.FingerprintHash = "f"
		require.NoError(t, p.CreateRecoveryRequest(ctx, r))
	}

	n, err := p.PruneRecoveryRequests(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := p.ListRecoveryRequests(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 3)
}

func TestFilesAndSettings(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	file := StoredFile{
		ID:          "f1",
		Filename:    "people.csv",
		StoragePath: "csv/abc.enc",
		Schema:      JSON[dataset.Schema]{V: dataset.Schema{Columns: []dataset.Column{{Name: "age", Type: dataset.ColumnNumber}}}},
		RowCount:    3,
		EncSalt:     "s",
		EncIV:       "i",
		EncTag:      "t",
		UploadedAt:  time.Now(),
	}
	require.NoError(t, p.CreateFile(ctx, file))

	got, err := p.GetFile(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, dataset.ColumnNumber, got.Schema.V.Columns[0].Type)
	assert.Nil(t, got.UpdateMessage)

	msg := "new quarter"
	require.NoError(t, p.UpdateFileMessage(ctx, "f1", &msg))
	got, err = p.GetFile(ctx, "f1")
	require.NoError(t, err)
	require.NotNil(t, got.UpdateMessage)
	assert.Equal(t, msg, *got.UpdateMessage)

	_, err = p.GetSetting(ctx, SettingCurrentFile)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, p.SetSetting(ctx, SettingCurrentFile, "f0"))
	require.NoError(t, p.SetSetting(ctx, SettingCurrentFile, "f1"))
	value, err := p.GetSetting(ctx, SettingCurrentFile)
	require.NoError(t, err)
	assert.Equal(t, "f1", value)

	fileID := "f1"
	link := seedLink(t, p, "l1")
	link.ID = "l2"
	link.FileID = &fileID
	require.NoError(t, p.CreateLink(ctx, link))

	require.NoError(t, p.DeleteFile(ctx, "f1"))
	orphan, err := p.GetLink(ctx, "l2")
	require.NoError(t, err)
	assert.Nil(t, orphan.FileID)

	require.NoError(t, p.DeleteSetting(ctx, SettingCurrentFile))
	_, err = p.GetSetting(ctx, SettingCurrentFile)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPushSubscriptions(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	seedLink(t, p, "l1")
	linkID := "l1"

	subs := []PushSubscription{
		{ID: "s1", Kind: SubscriptionAdmin, Endpoint: "https://push.example/1", Auth: "a", P256dh: "k"},
		{ID: "s2", Kind: SubscriptionViewer, LinkID: &linkID, Endpoint: "https://push.example/2", Auth: "a", P256dh: "k"},
		{ID: "s3", Kind: SubscriptionAdmin, Endpoint: "https://push.example/3", Auth: "a", P256dh: "k"},
	}
	for _, s := range subs {
		s.CreatedAt = time.Now()
		require.NoError(t, p.CreatePushSubscription(ctx, s))
	}

	resub := subs[0]
	resub.ID = "s9"
	resub.Auth = "rotated"
	resub.CreatedAt = time.Now()
	require.NoError(t, p.CreatePushSubscription(ctx, resub))

	admins, err := p.ListPushSubscriptions(ctx, SubscriptionAdmin, "")
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	viewers, err := p.ListPushSubscriptions(ctx, SubscriptionViewer, "l1")
	require.NoError(t, err)
	assert.Len(t, viewers, 1)

	require.NoError(t, p.DeletePushSubscriptions(ctx, []string{"s1", "s3"}))
	require.NoError(t, p.DeletePushSubscriptions(ctx, nil))
	admins, err = p.ListPushSubscriptions(ctx, SubscriptionAdmin, "")
	require.NoError(t, err)
	assert.Empty(t, admins)

	require.NoError(t, p.DeletePushSubscriptionByEndpoint(ctx, "https://push.example/2"))
	assert.ErrorIs(t, p.DeletePushSubscriptionByEndpoint(ctx, "https://push.example/2"), ErrNotFound)
}

func TestAuditEntries(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.CreateAuditEntry(ctx, AuditEntry{
		ID: "e1", Action: "link.created", Details: JSON[map[string]any]{V: map[string]any{"name": "x"}}, CreatedAt: time.Now().Add(-100 * 24 * time.Hour),
	}))
	require.NoError(t, p.CreateAuditEntry(ctx, AuditEntry{
		ID: "e2", Action: "file.uploaded", Details: JSON[map[string]any]{V: map[string]any{}}, CreatedAt: time.Now(),
	}))

	entries, err := p.ListAuditEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, "x", entries[1].Details.V["name"])

	n, err := p.PruneAuditEntries(ctx, time.Now().Add(-90*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
