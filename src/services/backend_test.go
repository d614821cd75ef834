package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/database"
	"github.com/username/fxportal/src/store"
)

const (
	testToken   = "id-token-1"
	testRefresh = "refresh-1"
)

// fakeBackend is an in-process brokerage backend that counts the calls it receives.
type fakeBackend struct {
	mux    *http.ServeMux
	mu     sync.Mutex
	calls  map[string]int
	client *apiclient.Client
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{mux: http.NewServeMux(), calls: map[string]int{}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.calls[r.Method+" "+r.URL.Path]++
		fb.mu.Unlock()
		fb.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := apiclient.New(apiclient.Options{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	fb.client = client
	return fb
}

func (fb *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	fb.mux.HandleFunc(pattern, h)
}

func (fb *fakeBackend) count(call string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.calls[call]
}

// authed answers 401 unless the request carries testToken.
func authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(apiclient.AuthParam) != testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "INVALID_ID_TOKEN"})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

type harness struct {
	backend *fakeBackend
	db      *sql.DB
	auth    *AuthService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fb := newFakeBackend(t)
	db := openTestDB(t)
	return &harness{backend: fb, db: db, auth: NewAuthService(fb.client, db, time.Hour)}
}

// signIn registers a sign-in route for email with roles and logs a fresh workspace in.
func (h *harness) signIn(t *testing.T, email string, roles ...string) *store.Workspace {
	t.Helper()
	h.backend.handle("POST /admin/signin", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"email":        email,
			"idToken":      testToken,
			"refreshToken": testRefresh,
			"expiresIn":    "3600",
			"roles":        roles,
		})
	})
	ws := store.NewWorkspace("")
	_, err := h.auth.Login(context.Background(), ws, email, "secret123", ClientMeta{IP: "127.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return ws
}
