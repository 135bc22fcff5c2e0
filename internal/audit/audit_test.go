package audit

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"csv-share-access/internal/config"
	"csv-share-access/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateAuditEntry(ctx context.Context, entry storage.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func TestLog_Persists(t *testing.T) {
	p, err := storage.NewProvider(context.Background(), &config.Storage{
		Type:   "sqlite",
		SQLite: config.SQLiteStorage{Path: filepath.Join(t.TempDir(), "audit.db")},
	})
	require.NoError(t, err)
	defer p.Close()

	l := NewLogger(p)
	l.Log(context.Background(), ActionLinkCreated, Details{"link_id": "abc"}, "session-1")
	l.Log(context.Background(), ActionViewerActivated, nil, "")

	entries, err := p.ListAuditEntries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byAction := map[string]storage.AuditEntry{}
	for _, e := range entries {
		byAction[e.Action] = e
	}
	created := byAction[string(ActionLinkCreated)]
	assert.Equal(t, "abc", created.Details.V["link_id"])
	require.NotNil(t, created.SessionID)
	assert.Equal(t, "session-1", *created.SessionID)
	assert.Nil(t, byAction[string(ActionViewerActivated)].SessionID)
}

func TestLog_SwallowsErrors(t *testing.T) {
	store := new(mockStore)
	store.On("CreateAuditEntry", mock.Anything, mock.MatchedBy(func(e storage.AuditEntry) bool {
		return e.Action == string(ActionAdminLogin)
	})).Return(errors.New("database is locked"))

	l := NewLogger(store)
	assert.NotPanics(t, func() {
		l.Log(context.Background(), ActionAdminLogin, nil, "")
	})
	store.AssertExpectations(t)
}
