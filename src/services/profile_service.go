package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/username/fxportal/src/apiclient"
	"github.com/username/fxportal/src/logger"
	"github.com/username/fxportal/src/models"
	"github.com/username/fxportal/src/security/validation"
	"github.com/username/fxportal/src/store"
)

const (
	profilePath = "/profile/me"
	avatarPath  = "/profile/avatar"
)

type ProfileService struct {
	caller
	maxAvatarSize int64
}

func NewProfileService(backend Backend, auth *AuthService, maxAvatarSize int64) *ProfileService {
	return &ProfileService{caller: caller{backend: backend, auth: auth}, maxAvatarSize: maxAvatarSize}
}

func (s *ProfileService) GetProfile(ctx context.Context, ws *store.Workspace) (models.Profile, error) {
	var profile models.Profile
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodGet, Path: profilePath}, &profile); err != nil {
		return models.Profile{}, err
	}
	if profile.Email == "" {
		profile.Email = ws.Session.State().Session.Email
	}
	return profile, nil
}

// UpdateProfile saves the sanitized form and returns the stored profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, ws *store.Workspace, form models.ProfileForm) (models.Profile, error) {
	form, err := validation.ValidateProfileForm(form)
	if err != nil {
		return models.Profile{}, err
	}
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPut, Path: profilePath, Body: form}, nil); err != nil {
		return models.Profile{}, err
	}
	logger.FromContext(ctx).Info("Profile updated")
	return s.GetProfile(ctx, ws)
}

// UploadAvatar sends a profile picture after checking its type and size, and returns its URL.
func (s *ProfileService) UploadAvatar(ctx context.Context, ws *store.Workspace, up Upload) (string, error) {
	detected, err := validation.ValidateImage(up.Content, up.Size, s.maxAvatarSize)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidUpload, err)
	}
	up.ContentType = detected

	var resp struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := s.do(ctx, ws, apiclient.Request{Method: http.MethodPost, Path: avatarPath, File: ptr(uploadFile("avatar", up, nil))}, &resp); err != nil {
		return "", err
	}
	logger.FromContext(ctx).Info("Avatar uploaded", "contentType", detected, "size", up.Size)
	return resp.AvatarURL, nil
}
