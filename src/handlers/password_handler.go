package handlers

import (
	"net/http"

	"github.com/username/fxportal/src/services"
)

type PasswordHandler struct {
	auth *services.AuthService
}

func NewPasswordHandler(auth *services.AuthService) *PasswordHandler {
	return &PasswordHandler{auth: auth}
}

func (h *PasswordHandler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "If an account exists for this email, a reset link has been sent."})
}

func (h *PasswordHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset successfully.", "redirect": loginPath})
}
