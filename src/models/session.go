package models

import (
	"slices"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAdminRole is the role name that unlocks admin-only routes.
const DefaultAdminRole = "Admin"

// Session is the identity of the signed-in user as returned by the backend.
// The zero value is the anonymous session.
type Session struct {
	Email        string    `json:"email"`
	IDToken      string    `json:"idToken"`
	Roles        []string  `json:"roles"`
	ExpiresIn    Seconds   `json:"expiresIn"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"-"`
}

// IsAuthenticated reports whether the session carries an identity.
func (s Session) IsAuthenticated() bool {
	return s.Email != ""
}

// HasRole reports whether role is one of the session roles.
func (s Session) HasRole(role string) bool {
	return slices.Contains(s.Roles, role)
}

// IsAdmin reports whether the session is authenticated and holds adminRole.
func (s Session) IsAdmin(adminRole string) bool {
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}
	return s.IsAuthenticated() && s.HasRole(adminRole)
}

// Token returns the backend credential pair, or nil when there is none.
func (s Session) Token() *oauth2.Token {
	if s.IDToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.IDToken,
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

// WithToken returns a copy of s carrying the rotated credential pair.
// An empty refresh token keeps the current one.
func (s Session) WithToken(tok *oauth2.Token) Session {
	if tok == nil {
		return s
	}
	s.IDToken = tok.AccessToken
	if tok.RefreshToken != "" {
		s.RefreshToken = tok.RefreshToken
	}
	s.ExpiresAt = tok.Expiry
	if !tok.Expiry.IsZero() {
		s.ExpiresIn = Seconds(time.Until(tok.Expiry).Seconds())
	}
	return s
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	s.Roles = slices.Clone(s.Roles)
	return s
}

// AuthResponse is the body of /admin/signin, /admin/signup and /admin/me.
type AuthResponse struct {
	Email        string   `json:"email"`
	IDToken      string   `json:"idToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    Seconds  `json:"expiresIn"`
	Roles        []string `json:"roles"`
	Role         string   `json:"role"` // some backend versions send a single role
}

// AllRoles merges Roles and Role without duplicates.
func (r AuthResponse) AllRoles() []string {
	roles := slices.Clone(r.Roles)
	if r.Role != "" && !slices.Contains(roles, r.Role) {
		roles = append(roles, r.Role)
	}
	if roles == nil {
		roles = []string{}
	}
	return roles
}

// LoginCredentials is the body posted to /admin/signin.
type LoginCredentials struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

// SignupForm holds the registration fields as typed by the user.
type SignupForm struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Company         string `json:"company"`
	Phone           string `json:"phone"`
}
