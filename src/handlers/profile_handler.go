package handlers

import (
	"net/http"

	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/services"
)

type ProfileHandler struct {
	profile *services.ProfileService
}

func NewProfileHandler(profile *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profile: profile}
}

func (h *ProfileHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profile.GetProfile(r.Context(), workspace(r))
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var form models.ProfileForm
	if !decodeJSON(w, r, &form) {
		return
	}
	profile, err := h.profile.UpdateProfile(r.Context(), workspace(r), form)
	if err != nil {
		sendServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
