package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "fxportal"

var ErrInvalidSession = errors.New("invalid portal session token")

// SessionClaims identify a portal session. The backend tokens never leave the server;
// the cookie only carries the opaque session id.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionTokens signs and verifies the portal session cookie.
type SessionTokens struct {
	key    []byte
	expiry time.Duration
	now    func() time.Time
}

func NewSessionTokens(key []byte, expiry time.Duration) *SessionTokens {
	return &SessionTokens{key: key, expiry: expiry, now: time.Now}
}

// Expiry is the lifetime of issued tokens.
func (s *SessionTokens) Expiry() time.Duration {
	return s.expiry
}

// Issue returns a signed token for the session id.
func (s *SessionTokens) Issue(sid string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiry)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sid,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies a token and returns its session id.
func (s *SessionTokens) Parse(token string) (string, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", errors.Join(ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return "", ErrInvalidSession
	}
	return claims.Subject, nil
}
