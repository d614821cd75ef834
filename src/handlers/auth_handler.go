package handlers

import (
	"errors"
	"net/http"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/services"
	"github.com/username/fxportal/src/store"
)

type AuthHandler struct {
	auth      *services.AuthService
	tca       *services.TCAService
	sessions  *Sessions
	adminRole string
}

func NewAuthHandler(auth *services.AuthService, tca *services.TCAService, sessions *Sessions, adminRole string) *AuthHandler {
	return &AuthHandler{auth: auth, tca: tca, sessions: sessions, adminRole: adminRole}
}

// sessionResponse is the identity the frontend sees. Tokens stay on the server.
type sessionResponse struct {
	Authenticated  bool     `json:"authenticated"`
	Email          string   `json:"email,omitempty"`
	Roles          []string `json:"roles"`
	IsAdmin        bool     `json:"isAdmin"`
	ErrorMessage   string   `json:"errorMessage,omitempty"`
	SuccessMessage string   `json:"successMessage,omitempty"`
}

func newSessionResponse(state store.SessionState, adminRole string) sessionResponse {
	roles := state.Session.Roles
	if roles == nil {
		roles = []string{}
	}
	return sessionResponse{
		Authenticated:  state.Session.IsAuthenticated(),
		Email:          state.Session.Email,
		Roles:          roles,
		IsAdmin:        state.Session.IsAdmin(adminRole),
		ErrorMessage:   state.ErrorMessage,
		SuccessMessage: state.SuccessMessage,
	}
}

// sendAuthError answers a failed login or signup with the mapped backend message.
func sendAuthError(w http.ResponseWriter, r *http.Request, err error, rejected int) {
	var authErr *services.AuthError
	if !errors.As(err, &authErr) {
		sendServiceError(w, r, err)
		return
	}
	status := rejected
	var apiErr *apiclient.APIError
	if errors.Is(err, apiclient.ErrNetwork) || (errors.As(err, &apiErr) && apiErr.Status >= 500) {
		status = http.StatusBadGateway
	}
	logger.FromContext(r.Context()).Info("Authentication failed", "code", authErr.Code)
	sendJSONError(w, authErr.Message, status)
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var creds models.LoginCredentials
	if !decodeJSON(w, r, &creds) {
		return
	}
	ws := store.NewWorkspace("")
	if _, err := h.auth.Login(r.Context(), ws, creds.Email, creds.Password, clientMeta(r)); err != nil {
		sendAuthError(w, r, err, http.StatusUnauthorized)
		return
	}
	if err := h.switchSession(w, r, ws); err != nil {
		logger.FromContext(r.Context()).Error("Failed to issue session cookie", "error", err)
		sendJSONError(w, apiclient.GenericErrorMessage, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(ws.Session.State(), h.adminRole))
}

func (h *AuthHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var form models.SignupForm
	if !decodeJSON(w, r, &form) {
		return
	}
	ws := store.NewWorkspace("")
	if _, err := h.auth.Signup(r.Context(), ws, form, clientMeta(r)); err != nil {
		sendAuthError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := h.switchSession(w, r, ws); err != nil {
		logger.FromContext(r.Context()).Error("Failed to issue session cookie", "error", err)
		sendJSONError(w, apiclient.GenericErrorMessage, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, newSessionResponse(ws.Session.State(), h.adminRole))
}

// switchSession binds the freshly signed-in ws to the browser under a new session id
// and retires the workspace the browser held before, with everything cached for it.
func (h *AuthHandler) switchSession(w http.ResponseWriter, r *http.Request, ws *store.Workspace) error {
	if prev, ok := WorkspaceFromContext(r.Context()); ok && prev.ID != ws.ID {
		if prev.Session.State().Session.Token() != nil {
			h.auth.Logout(r.Context(), prev)
		}
		h.tca.Forget(prev)
		h.sessions.Drop(prev)
	}
	return h.sessions.Start(w, r, ws)
}

// MeHandler resolves the auto-login probe and returns the current identity.
func (h *AuthHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	state := h.auth.CheckAutoLogin(r.Context(), workspace(r))
	writeJSON(w, http.StatusOK, newSessionResponse(state, h.adminRole))
}

func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	ws := workspace(r)
	h.auth.Logout(r.Context(), ws)
	h.tca.Forget(ws)
	h.sessions.End(w, r, ws)
	writeJSON(w, http.StatusOK, map[string]string{"redirect": loginPath})
}

const defaultLoginHistoryLimit = 20

// HandleLoginHistory lists the recent portal logins of the signed-in user.
func (h *AuthHandler) HandleLoginHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		sendJSONError(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	if limit == 0 {
		limit = defaultLoginHistoryLimit
	}
	email := workspace(r).Session.State().Session.Email
	events, err := h.auth.LoginHistory(email, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list login history", "error", err)
		sendJSONError(w, "Failed to load login history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
