package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/model"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/store"
	"golang.org/x/oauth2"
)

const (
	signinPath         = "/admin/signin"
	signupPath         = "/admin/signup"
	mePath             = "/admin/me"
	logoutPath         = "/admin/logout"
	forgotPasswordPath = "/profile/forgot-password"
	resetPasswordPath  = "/profile/reset-password"

	autoLoginTimeout = 20 * time.Second

	SignupSuccessMessage = "Your account has been created."
)

// authMessages maps backend error codes to the text shown on the login and register pages.
var authMessages = map[string]string{
	"EMAIL_EXISTS":                "This email address is already in use.",
	"EMAIL_NOT_FOUND":             "No account exists for this email address.",
	"INVALID_PASSWORD":            "The password is invalid.",
	"INVALID_LOGIN_CREDENTIALS":   "Invalid email or password.",
	"INVALID_EMAIL":               "The email address is invalid.",
	"USER_DISABLED":               "This account has been disabled.",
	"WEAK_PASSWORD":               "The password must be at least 6 characters.",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "Too many attempts. Please try again later.",
}

// AuthError is a failed login or signup.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// AuthMessage returns the user-facing text for a login or signup failure.
func AuthMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if msg, ok := authMessages[apiErr.Code()]; ok {
			return msg
		}
	}
	return apiclient.Message(err)
}

func newAuthError(err error) *AuthError {
	authErr := &AuthError{Message: AuthMessage(err), Err: err}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		authErr.Code = apiErr.Code()
	}
	return authErr
}

// AuthService is the only writer of workspace sessions. It signs users in and out
// against the backend and keeps the portal_sessions table in step.
type AuthService struct {
	backend       Backend
	db            *sql.DB
	sessionExpiry time.Duration
}

func NewAuthService(backend Backend, db *sql.DB, sessionExpiry time.Duration) *AuthService {
	return &AuthService{backend: backend, db: db, sessionExpiry: sessionExpiry}
}

// sessionCredentials binds a workspace to the client: the token is read from the
// session store and rotations are dispatched back into it.
type sessionCredentials struct {
	ws   *store.Workspace
	auth *AuthService
}

func (c sessionCredentials) Token() *oauth2.Token {
	return c.ws.Session.State().Session.Token()
}

func (c sessionCredentials) Rotate(ctx context.Context, tok *oauth2.Token) {
	c.auth.rotate(ctx, c.ws, tok)
}

func (c sessionCredentials) Jar() http.CookieJar {
	return c.ws.Jar()
}

func (c sessionCredentials) RefreshLock() sync.Locker {
	return c.ws.RefreshLock()
}

// anonymousCredentials carries the session cookies but no token, for sign-in calls.
type anonymousCredentials struct {
	ws *store.Workspace
}

func (anonymousCredentials) Token() *oauth2.Token { return nil }
func (anonymousCredentials) Rotate(context.Context, *oauth2.Token) {}
func (c anonymousCredentials) Jar() http.CookieJar { return c.ws.Jar() }

// Credentials returns the backend credentials of ws.
func (s *AuthService) Credentials(ws *store.Workspace) apiclient.Credentials {
	return sessionCredentials{ws: ws, auth: s}
}

func (s *AuthService) rotate(ctx context.Context, ws *store.Workspace, tok *oauth2.Token) {
	state := ws.Session.Dispatch(store.TokensRefreshed{Token: tok})
	sess := state.Session
	err := model.UpdateSessionTokens(s.db, ws.ID, sess.Email, sess.IDToken, sess.RefreshToken, sess.Roles)
	if err != nil && !errors.Is(err, model.ErrSessionNotFound) {
		logger.FromContext(ctx).Error("Failed to persist rotated tokens", "error", err)
	}
}

func sessionFromAuth(resp models.AuthResponse, fallbackEmail string) models.Session {
	sess := models.Session{
		Email:        strings.TrimSpace(resp.Email),
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resp.ExpiresIn,
		Roles:        resp.AllRoles(),
	}
	if sess.Email == "" {
		sess.Email = fallbackEmail
	}
	if resp.ExpiresIn > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return sess
}

// Login signs ws in with email and password.
func (s *AuthService) Login(ctx context.Context, ws *store.Workspace, email, password string, meta ClientMeta) (models.Session, error) {
	email = strings.TrimSpace(email)
	errs := validation.FieldErrors{}
	errs.Check("email", validation.ValidateStringNotEmpty(email, "email"))
	errs.Check("password", validation.ValidateStringNotEmpty(password, "password"))
	if err := errs.Err(); err != nil {
		return models.Session{}, err
	}

	ws.Session.Dispatch(store.LoginStarted{})
	var resp models.AuthResponse
	body := models.LoginCredentials{Email: email, Password: password, ReturnSecureToken: true}
	err := s.backend.Do(ctx, anonymousCredentials{ws}, apiclient.Request{Method: http.MethodPost, Path: signinPath, Body: body}, &resp)
	if err == nil && resp.IDToken == "" {
		err = &apiclient.APIError{Status: http.StatusBadGateway, Message: apiclient.GenericErrorMessage}
	}
	if err != nil {
		authErr := newAuthError(err)
		ws.Session.Dispatch(store.LoginFailed{Message: authErr.Message})
		logger.FromContext(ctx).Info("Login failed", "email", email, "code", authErr.Code, "error", err)
		return models.Session{}, authErr
	}

	sess := sessionFromAuth(resp, email)
	ws.Session.Dispatch(store.LoginSucceeded{Session: sess})
	s.persist(ctx, ws.ID, sess, meta)
	logger.FromContext(ctx).Info("User logged in", "email", sess.Email, "roles", sess.Roles)
	return sess, nil
}

// Signup registers a new account and signs ws in with it.
func (s *AuthService) Signup(ctx context.Context, ws *store.Workspace, form models.SignupForm, meta ClientMeta) (models.Session, error) {
	form = validation.SanitizeSignupForm(form)
	if err := validation.ValidateSignupForm(form); err != nil {
		return models.Session{}, err
	}

	ws.Session.Dispatch(store.SignupStarted{})
	body := map[string]any{
		"email":             form.Email,
		"password":          form.Password,
		"firstName":         form.FirstName,
		"lastName":          form.LastName,
		"company":           form.Company,
		"phone":             form.Phone,
		"returnSecureToken": true,
	}
	var resp models.AuthResponse
	err := s.backend.Do(ctx, anonymousCredentials{ws}, apiclient.Request{Method: http.MethodPost, Path: signupPath, Body: body}, &resp)
	if err == nil && resp.IDToken == "" {
		err = &apiclient.APIError{Status: http.StatusBadGateway, Message: apiclient.GenericErrorMessage}
	}
	if err != nil {
		authErr := newAuthError(err)
		ws.Session.Dispatch(store.SignupFailed{Message: authErr.Message})
		logger.FromContext(ctx).Info("Signup failed", "email", form.Email, "code", authErr.Code, "error", err)
		return models.Session{}, authErr
	}

	sess := sessionFromAuth(resp, form.Email)
	ws.Session.Dispatch(store.SignupSucceeded{Session: sess, Message: SignupSuccessMessage})
	s.persist(ctx, ws.ID, sess, meta)
	logger.FromContext(ctx).Info("User signed up", "email", sess.Email)
	return sess, nil
}

func (s *AuthService) persist(ctx context.Context, sid string, sess models.Session, meta ClientMeta) {
	row := &model.PortalSession{
		ID:           sid,
		Email:        sess.Email,
		IDToken:      sess.IDToken,
		RefreshToken: sess.RefreshToken,
		Roles:        sess.Roles,
		ExpiresAt:    time.Now().Add(s.sessionExpiry),
		UserAgent:    meta.UserAgent,
		ClientIP:     meta.IP,
	}
	if err := model.CreateSession(s.db, row); err != nil {
		logger.FromContext(ctx).Error("Failed to persist portal session", "error", err)
	}
	if err := model.RecordLogin(s.db, sess.Email, meta.IP, meta.UserAgent); err != nil {
		logger.FromContext(ctx).Warn("Failed to record login", "error", err)
	}
}

// Logout tells the backend the session ended, then always clears it locally.
func (s *AuthService) Logout(ctx context.Context, ws *store.Workspace) {
	if ws.Session.State().Session.Token() != nil {
		err := s.backend.Do(ctx, s.Credentials(ws), apiclient.Request{Method: http.MethodPost, Path: logoutPath}, nil)
		if err != nil {
			logger.FromContext(ctx).Warn("Backend logout failed", "error", err)
		}
	}
	ws.Session.Dispatch(store.LoggedOut{})
	if err := model.DeleteSession(s.db, ws.ID); err != nil {
		logger.FromContext(ctx).Error("Failed to delete portal session", "error", err)
	}
	logger.FromContext(ctx).Info("User logged out")
}

// ExpireSession signs ws out after the backend rejected its tokens.
func (s *AuthService) ExpireSession(ctx context.Context, ws *store.Workspace) {
	ws.Session.Dispatch(store.LoggedOut{Message: apiclient.ExpiredErrorMessage})
	if err := model.DeleteSession(s.db, ws.ID); err != nil {
		logger.FromContext(ctx).Error("Failed to delete expired portal session", "error", err)
	}
	logger.FromContext(ctx).Info("Portal session expired")
}

// Resume rebuilds the workspace of a persisted session. Its identity stays empty
// until CheckAutoLogin confirms the tokens with the backend.
func (s *AuthService) Resume(ctx context.Context, sid string) (*store.Workspace, error) {
	row, err := model.GetSessionByID(s.db, sid)
	if err != nil {
		return nil, err
	}
	ws := store.NewWorkspace(row.ID)
	ws.Session.Dispatch(store.SessionRestored{Session: models.Session{
		Email:        row.Email,
		IDToken:      row.IDToken,
		RefreshToken: row.RefreshToken,
		Roles:        row.Roles,
	}})
	logger.FromContext(ctx).Debug("Portal session resumed", "sid", sid)
	return ws, nil
}

// CheckAutoLogin probes /admin/me once per workspace. Failures leave the session
// anonymous and are never surfaced.
func (s *AuthService) CheckAutoLogin(ctx context.Context, ws *store.Workspace) store.SessionState {
	ws.ResolveOnce(func() {
		current := ws.Session.State().Session
		if current.Token() == nil {
			ws.Session.Dispatch(store.AutoLoginResolved{})
			return
		}

		// The outcome is shared by every request of this browser.
		meCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), autoLoginTimeout)
		defer cancel()

		var resp models.AuthResponse
		err := s.backend.Do(meCtx, s.Credentials(ws), apiclient.Request{Method: http.MethodGet, Path: mePath}, &resp)
		if err == nil && strings.TrimSpace(resp.Email) == "" {
			err = errors.New("identity probe returned no email")
		}
		if err != nil {
			ws.Session.Dispatch(store.AutoLoginResolved{})
			if errors.Is(err, apiclient.ErrUnauthorized) {
				if delErr := model.DeleteSession(s.db, ws.ID); delErr != nil {
					logger.FromContext(ctx).Error("Failed to delete rejected portal session", "error", delErr)
				}
			}
			logger.FromContext(ctx).Debug("Auto-login probe failed", "error", err)
			return
		}

		// Tokens may have rotated during the probe.
		sess := ws.Session.State().Session
		sess.Email = strings.TrimSpace(resp.Email)
		sess.Roles = resp.AllRoles()
		if resp.IDToken != "" {
			sess = sess.WithToken(&oauth2.Token{AccessToken: resp.IDToken, RefreshToken: resp.RefreshToken})
		}
		ws.Session.Dispatch(store.AutoLoginResolved{Session: sess})
		if err := model.UpdateSessionTokens(s.db, ws.ID, sess.Email, sess.IDToken, sess.RefreshToken, sess.Roles); err != nil &&
			!errors.Is(err, model.ErrSessionNotFound) {
			logger.FromContext(ctx).Error("Failed to persist resolved identity", "error", err)
		}
	})
	return ws.Session.State()
}

// ForgotPassword asks the backend to mail a reset link.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	errs := validation.FieldErrors{}
	errs.Check("email", validation.ValidateEmail(email))
	if err := errs.Err(); err != nil {
		return err
	}
	req := apiclient.Request{Method: http.MethodPost, Path: forgotPasswordPath, Body: map[string]string{"email": email}}
	if err := s.backend.Do(ctx, nil, req, nil); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	return nil
}

// ResetPassword sets a new password with the token of a reset link.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) error {
	errs := validation.FieldErrors{}
	errs.Check("token", validation.ValidateStringNotEmpty(token, "token"))
	errs.Check("password", validation.ValidatePassword(password))
	if password != confirm {
		errs.Add("confirmPassword", "passwords do not match")
	}
	if err := errs.Err(); err != nil {
		return err
	}
	req := apiclient.Request{
		Method: http.MethodPost,
		Path:   resetPasswordPath,
		Body:   map[string]string{"token": token, "password": password},
	}
	if err := s.backend.Do(ctx, nil, req, nil); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// LoginHistory lists the last logins of email, newest first.
func (s *AuthService) LoginHistory(email string, limit int) ([]model.LoginEvent, error) {
	return model.ListLoginHistory(s.db, email, limit)
}

// PurgeExpired deletes the persisted sessions that expired before now.
func (s *AuthService) PurgeExpired(now time.Time) (int64, error) {
	return model.DeleteExpiredSessions(s.db, now)
}
