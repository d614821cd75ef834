package handlers

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/model"
	"github.com/username/fxportal/src/security"
	"github.com/username/fxportal/src/services"
	"github.com/username/fxportal/src/store"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	requestIDContextKey contextKey = "requestID"
	workspaceContextKey contextKey = "workspace"

	sessionCookieName = "fxportal_session"
)

// ContextualLoggerMiddleware gives every request a logger tagged with its requestID.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ProxyHeadersMiddleware marks requests forwarded over https as secure.
func ProxyHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-Proto") == "https" {
			r.URL.Scheme = "https"
			r.TLS = &tls.ConnectionState{}
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware rejects requests once the shared limiter is exhausted.
func RateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Sessions binds each request to the workspace of its browser session.
// The cookie carries a signed portal session id; the workspace lives in the registry
// and is rebuilt from the session table after it expired from memory.
type Sessions struct {
	auth     *services.AuthService
	registry *store.Registry
	tokens   *security.SessionTokens
	secure   bool
}

func NewSessions(auth *services.AuthService, registry *store.Registry, tokens *security.SessionTokens, secure bool) *Sessions {
	return &Sessions{auth: auth, registry: registry, tokens: tokens, secure: secure}
}

// Middleware puts the request workspace in the context. Requests without a valid
// session get a fresh anonymous workspace that is only registered on sign-in.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws := s.load(r)
		ctx := context.WithValue(r.Context(), workspaceContextKey, ws)
		ctx = logger.ToContext(ctx, logger.FromContext(ctx).With(slog.String("sessionID", ws.ID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) load(r *http.Request) *store.Workspace {
	log := logger.FromContext(r.Context())
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return store.NewWorkspace("")
	}
	sid, err := s.tokens.Parse(cookie.Value)
	if err != nil {
		log.Debug("Ignoring invalid session cookie", "error", err)
		return store.NewWorkspace("")
	}
	if ws, ok := s.registry.Get(sid); ok {
		s.registry.Touch(ws)
		return ws
	}
	ws, err := s.auth.Resume(r.Context(), sid)
	if err != nil {
		if !errors.Is(err, model.ErrSessionNotFound) {
			log.Error("Failed to resume portal session", "error", err)
		}
		return store.NewWorkspace("")
	}
	return s.registry.Put(ws)
}

// Start registers ws and hands its session cookie to the browser.
func (s *Sessions) Start(w http.ResponseWriter, r *http.Request, ws *store.Workspace) error {
	s.registry.Put(ws)
	token, expiresAt, err := s.tokens.Issue(ws.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Drop forgets ws without touching the browser cookie.
func (s *Sessions) Drop(ws *store.Workspace) {
	s.registry.Drop(ws.ID)
}

// End forgets ws and clears the session cookie.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request, ws *store.Workspace) {
	s.Drop(ws)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// WorkspaceFromContext returns the workspace bound by Sessions.Middleware.
func WorkspaceFromContext(ctx context.Context) (*store.Workspace, bool) {
	ws, ok := ctx.Value(workspaceContextKey).(*store.Workspace)
	return ws, ok
}

func workspace(r *http.Request) *store.Workspace {
	if ws, ok := WorkspaceFromContext(r.Context()); ok {
		return ws
	}
	return store.NewWorkspace("")
}

func clientMeta(r *http.Request) services.ClientMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return services.ClientMeta{IP: ip, UserAgent: r.UserAgent()}
}
