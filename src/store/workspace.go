package store

import (
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/net/publicsuffix"
)

// Workspace is the application context of one browser session: the session store
// plus the domain stores, passed by handle to every service call.
type Workspace struct {
	ID        string
	Session   *SessionStore
	Orders    *OrdersStore
	Dashboard *DashboardStore

	jar       http.CookieJar
	probeMu   sync.Mutex
	refreshMu sync.Mutex
}

// NewWorkspace creates an empty workspace. An empty id draws a fresh one.
func NewWorkspace(id string) *Workspace {
	if id == "" {
		id = uuid.NewString()
	}
	// cookiejar.New only fails on invalid options.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Workspace{
		ID:        id,
		Session:   NewSessionStore(),
		Orders:    NewOrdersStore(),
		Dashboard: NewDashboardStore(),
		jar:       jar,
	}
}

// Jar holds the backend cookies of this session.
func (w *Workspace) Jar() http.CookieJar {
	return w.jar
}

// RefreshLock serializes backend token refreshes of this session.
func (w *Workspace) RefreshLock() sync.Locker {
	return &w.refreshMu
}

// SessionView exposes the session read-only.
func (w *Workspace) SessionView() SessionView {
	return w.Session
}

// ResolveOnce runs probe unless the session has already been probed.
// Concurrent callers wait for the first probe and do not repeat it.
func (w *Workspace) ResolveOnce(probe func()) {
	w.probeMu.Lock()
	defer w.probeMu.Unlock()
	if w.Session.State().Probed {
		return
	}
	probe()
}

const (
	DefaultWorkspaceExpiration = 30 * time.Minute
	WorkspaceCleanupInterval   = 10 * time.Minute
)

// Registry keeps live workspaces in memory, keyed by portal session id.
// Idle workspaces expire and are rebuilt from the session table on the next request.
type Registry struct {
	cache *cache.Cache
}

func NewRegistry(expiration, cleanup time.Duration) *Registry {
	return &Registry{cache: cache.New(expiration, cleanup)}
}

func (r *Registry) Get(id string) (*Workspace, bool) {
	v, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	ws, ok := v.(*Workspace)
	return ws, ok
}

// Put registers ws, keeping an already registered workspace with the same id.
// It returns the workspace that ended up registered.
func (r *Registry) Put(ws *Workspace) *Workspace {
	if err := r.cache.Add(ws.ID, ws, cache.DefaultExpiration); err != nil {
		if existing, ok := r.Get(ws.ID); ok {
			return existing
		}
		r.cache.SetDefault(ws.ID, ws)
	}
	return ws
}

// Touch extends the lifetime of a live workspace.
func (r *Registry) Touch(ws *Workspace) {
	r.cache.SetDefault(ws.ID, ws)
}

func (r *Registry) Drop(id string) {
	r.cache.Delete(id)
}

func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
