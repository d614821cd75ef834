package handlers

import (
	"log/slog"
	"net/http"

	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/security"
)

const (
	csrfCookieName = "fxportal_csrf"
	csrfHeaderName = "X-CSRF-Token"
	csrfMaxAge     = 3600
)

type CSRFHandler struct {
	csrf   *security.CSRF
	secure bool
}

func NewCSRFHandler(csrf *security.CSRF, secure bool) *CSRFHandler {
	return &CSRFHandler{csrf: csrf, secure: secure}
}

// GetCSRFToken issues a double-submit token: the same value goes to a cookie and to
// the response, and state-changing requests must echo it in the X-CSRF-Token header.
func (h *CSRFHandler) GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.Generate()
	if err != nil {
		logger.FromContext(r.Context()).Error("Error generating CSRF token", "error", err)
		sendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   h.secure || r.TLS != nil,
		MaxAge:   csrfMaxAge,
	})
	w.Header().Set(csrfHeaderName, token)
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

// Middleware rejects state-changing requests whose header token does not match the cookie.
func (h *CSRFHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		headerToken := r.Header.Get(csrfHeaderName)
		cookieToken := ""
		if cookie, err := r.Cookie(csrfCookieName); err == nil {
			cookieToken = cookie.Value
		}
		if h.csrf.Matches(headerToken, cookieToken) {
			next.ServeHTTP(w, r)
			return
		}

		logger.FromContext(r.Context()).Warn("CSRF Validation Failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Bool("headerTokenExists", headerToken != ""),
			slog.Bool("cookieExists", cookieToken != ""),
			slog.String("origin", r.Header.Get("Origin")),
		)
		sendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
	})
}
