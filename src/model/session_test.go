package model

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/fxportal/src/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionLifecycle(t *testing.T) {
	db := openTestDB(t)

	s := &PortalSession{
		ID:           "sid-1",
		Email:        "trader@example.tn",
		IDToken:      "id-1",
		RefreshToken: "refresh-1",
		Roles:        []string{"User", "Admin"},
		ExpiresAt:    time.Now().Add(time.Hour),
		ClientIP:     "10.0.0.1",
	}
	require.NoError(t, CreateSession(db, s))

	got, err := GetSessionByID(db, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "trader@example.tn", got.Email)
	assert.Equal(t, []string{"User", "Admin"}, got.Roles)
	assert.Equal(t, "refresh-1", got.RefreshToken)

	require.NoError(t, UpdateSessionTokens(db, "sid-1", "trader@example.tn", "id-2", "refresh-2", []string{"User"}))
	got, err = GetSessionByID(db, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "id-2", got.IDToken)
	assert.Equal(t, []string{"User"}, got.Roles)

	assert.ErrorIs(t, UpdateSessionTokens(db, "missing", "", "x", "y", nil), ErrSessionNotFound)

	require.NoError(t, DeleteSession(db, "sid-1"))
	_, err = GetSessionByID(db, "sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateSessionReplacesExistingRow(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, CreateSession(db, &PortalSession{
		ID: "sid-1", Email: "alice@fx.tn", IDToken: "alice-id", RefreshToken: "alice-refresh",
		Roles: []string{"Admin"}, ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, CreateSession(db, &PortalSession{
		ID: "sid-1", Email: "bob@fx.tn", IDToken: "bob-id", RefreshToken: "bob-refresh",
		Roles: []string{"User"}, ExpiresAt: time.Now().Add(time.Hour),
	}))

	got, err := GetSessionByID(db, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "bob@fx.tn", got.Email)
	assert.Equal(t, "bob-id", got.IDToken)
	assert.Equal(t, "bob-refresh", got.RefreshToken)
	assert.Equal(t, []string{"User"}, got.Roles)
}

func TestExpiredSessions(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, CreateSession(db, &PortalSession{ID: "old", IDToken: "a", ExpiresAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, CreateSession(db, &PortalSession{ID: "new", IDToken: "b", ExpiresAt: time.Now().Add(time.Hour)}))

	_, err := GetSessionByID(db, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	n, err := DeleteExpiredSessions(db, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = GetSessionByID(db, "new")
	assert.NoError(t, err)
}

func TestLoginHistory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, RecordLogin(db, "a@example.tn", "1.1.1.1", "ua-1"))
	require.NoError(t, RecordLogin(db, "a@example.tn", "2.2.2.2", "ua-2"))
	require.NoError(t, RecordLogin(db, "b@example.tn", "3.3.3.3", "ua-3"))

	events, err := ListLoginHistory(db, "a@example.tn", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2.2.2.2", events[0].IPAddress)

	events, err = ListLoginHistory(db, "nobody@example.tn", 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
