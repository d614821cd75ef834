package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/metrics"
	"github.com/username/fxportal/src/model"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/store"
)

func TestLoginPersistsSession(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "admin@fx.tn", "User", "Admin")

	state := ws.Session.State()
	assert.True(t, state.Session.IsAuthenticated())
	assert.True(t, state.Session.IsAdmin(models.DefaultAdminRole))
	assert.True(t, state.Probed)
	assert.False(t, state.Loading)

	row, err := model.GetSessionByID(h.db, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@fx.tn", row.Email)
	assert.Equal(t, testToken, row.IDToken)

	history, err := h.auth.LoginHistory("admin@fx.tn", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "127.0.0.1", history[0].IPAddress)
}

func TestLoginValidationMakesNoCall(t *testing.T) {
	h := newHarness(t)
	ws := store.NewWorkspace("")

	_, err := h.auth.Login(context.Background(), ws, " ", "", ClientMeta{})
	require.ErrorIs(t, err, validation.ErrValidationFailed)
	var fields validation.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Zero(t, h.backend.count("POST /admin/signin"))
}

func TestLoginMapsBackendCodes(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("POST /admin/signin", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]string{"message": "INVALID_LOGIN_CREDENTIALS"}})
	})
	ws := store.NewWorkspace("")

	_, err := h.auth.Login(context.Background(), ws, "a@fx.tn", "wrong-pass", ClientMeta{})
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "INVALID_LOGIN_CREDENTIALS", authErr.Code)
	assert.Equal(t, "Invalid email or password.", authErr.Message)

	state := ws.Session.State()
	assert.False(t, state.Session.IsAuthenticated())
	assert.Equal(t, "Invalid email or password.", state.ErrorMessage)
	assert.False(t, state.Loading)
}

func TestSignupValidatesBeforeCalling(t *testing.T) {
	h := newHarness(t)
	ws := store.NewWorkspace("")

	_, err := h.auth.Signup(context.Background(), ws, models.SignupForm{
		Email: "not-an-email", Password: "123", ConfirmPassword: "1234",
	}, ClientMeta{})
	var fields validation.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Zero(t, h.backend.count("POST /admin/signup"))
}

func TestSignupSucceeds(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("POST /admin/signup", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"idToken": testToken, "refreshToken": testRefresh, "role": "User"})
	})
	ws := store.NewWorkspace("")

	sess, err := h.auth.Signup(context.Background(), ws, models.SignupForm{
		Email: "new@fx.tn", Password: "secret1", ConfirmPassword: "secret1",
	}, ClientMeta{})
	require.NoError(t, err)
	assert.Equal(t, "new@fx.tn", sess.Email)
	assert.Equal(t, []string{"User"}, sess.Roles)
	assert.Equal(t, SignupSuccessMessage, ws.Session.State().SuccessMessage)
}

func TestCheckAutoLoginProbesOnce(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "admin@fx.tn", "Admin")
	h.backend.handle("GET /admin/me", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"email": "admin@fx.tn", "roles": []string{"Admin", "User"}})
	}))

	resumed, err := h.auth.Resume(context.Background(), ws.ID)
	require.NoError(t, err)
	assert.False(t, resumed.Session.State().Session.IsAuthenticated())

	state := h.auth.CheckAutoLogin(context.Background(), resumed)
	assert.True(t, state.Probed)
	assert.Equal(t, "admin@fx.tn", state.Session.Email)
	assert.Equal(t, []string{"Admin", "User"}, state.Session.Roles)

	h.auth.CheckAutoLogin(context.Background(), resumed)
	assert.Equal(t, 1, h.backend.count("GET /admin/me"))
}

func TestCheckAutoLoginOutlivesCancelledRequest(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "admin@fx.tn", "Admin")
	h.backend.handle("GET /admin/me", authed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"email": "admin@fx.tn", "roles": []string{"Admin"}})
	}))

	resumed, err := h.auth.Resume(context.Background(), ws.ID)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := h.auth.CheckAutoLogin(ctx, resumed)
	assert.True(t, state.Probed)
	assert.True(t, state.Session.IsAuthenticated())
	assert.Equal(t, "admin@fx.tn", state.Session.Email)
	assert.Equal(t, 1, h.backend.count("GET /admin/me"))
}

func TestCheckAutoLoginWithoutTokenResolvesAnonymous(t *testing.T) {
	h := newHarness(t)
	ws := store.NewWorkspace("")

	state := h.auth.CheckAutoLogin(context.Background(), ws)
	assert.True(t, state.Probed)
	assert.False(t, state.Session.IsAuthenticated())
	assert.Empty(t, state.ErrorMessage)
	assert.Zero(t, h.backend.count("GET /admin/me"))
}

func TestCheckAutoLoginFailureStaysSilent(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "user@fx.tn", "User")
	h.backend.handle("GET /admin/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
	})

	resumed, err := h.auth.Resume(context.Background(), ws.ID)
	require.NoError(t, err)
	state := h.auth.CheckAutoLogin(context.Background(), resumed)
	assert.True(t, state.Probed)
	assert.False(t, state.Session.IsAuthenticated())
	assert.Empty(t, state.ErrorMessage)

	// Only a rejected token removes the persisted session.
	_, err = model.GetSessionByID(h.db, ws.ID)
	assert.NoError(t, err)
}

func TestTokenRefreshIsPersisted(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "user@fx.tn", "User")
	h.backend.handle("POST /admin/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"idToken": "id-token-2", "refreshToken": "refresh-2", "expiresIn": 3600})
	})
	h.backend.handle("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get(apiclient.AuthParam) != "id-token-2" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "TOKEN_EXPIRED"})
			return
		}
		writeJSON(w, http.StatusOK, []models.Order{{ID: 1, Status: models.OrderStatusPending}})
	})

	orders, err := NewOrderService(h.backend.client, h.auth, 0).FetchOrders(context.Background(), ws)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, 1, h.backend.count("POST /admin/token/refresh"))

	assert.Equal(t, "id-token-2", ws.Session.State().Session.IDToken)
	row, err := model.GetSessionByID(h.db, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "id-token-2", row.IDToken)
	assert.Equal(t, "refresh-2", row.RefreshToken)
}

func TestRejectedRefreshExpiresSession(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "user@fx.tn", "User")
	h.backend.handle("POST /admin/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "TOKEN_EXPIRED"})
	})
	h.backend.handle("GET /orders", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "TOKEN_EXPIRED"})
	})

	_, err := NewOrderService(h.backend.client, h.auth, 0).FetchOrders(context.Background(), ws)
	require.ErrorIs(t, err, apiclient.ErrUnauthorized)

	state := ws.Session.State()
	assert.False(t, state.Session.IsAuthenticated())
	assert.Equal(t, apiclient.ExpiredErrorMessage, state.ErrorMessage)
	_, err = model.GetSessionByID(h.db, ws.ID)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestLogoutAlwaysClears(t *testing.T) {
	h := newHarness(t)
	ws := h.signIn(t, "user@fx.tn", "User")
	h.backend.handle("POST /admin/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "down"})
	})

	h.auth.Logout(context.Background(), ws)
	assert.Equal(t, 1, h.backend.count("POST /admin/logout"))
	assert.False(t, ws.Session.State().Session.IsAuthenticated())
	_, err := model.GetSessionByID(h.db, ws.ID)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	h.backend.handle("POST /profile/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "sent"})
	})
	h.backend.handle("POST /profile/reset-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Reset link expired"})
	})

	assert.Error(t, h.auth.ForgotPassword(context.Background(), "nope"))
	require.NoError(t, h.auth.ForgotPassword(context.Background(), "user@fx.tn"))

	err := h.auth.ResetPassword(context.Background(), "tok", "secret1", "secret2")
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
	assert.Zero(t, h.backend.count("POST /profile/reset-password"))

	err = h.auth.ResetPassword(context.Background(), "tok", "secret1", "secret1")
	require.Error(t, err)
	assert.Equal(t, "Reset link expired", apiclient.Message(err))
}

func TestJanitorPurgesExpiredSessions(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, model.CreateSession(h.db, &model.PortalSession{ID: "old", Email: "a@fx.tn", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, model.CreateSession(h.db, &model.PortalSession{ID: "live", Email: "b@fx.tn", ExpiresAt: time.Now().Add(time.Hour)}))

	j := NewJanitor(h.auth, metrics.New())
	require.Error(t, j.Schedule("not a schedule"))
	require.NoError(t, j.Schedule("@every 1h"))
	assert.Equal(t, int64(1), j.RunOnce())

	_, err := model.GetSessionByID(h.db, "live")
	assert.NoError(t, err)
}
