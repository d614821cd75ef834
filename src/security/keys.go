package security

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the minimum length of the master session secret.
const MinSecretLength = 32

var ErrWeakSecret = fmt.Errorf("session secret must be at least %d characters", MinSecretLength)

var hkdfSalt = []byte("fxportal")

// Keys are the purpose-bound keys derived from the master secret.
type Keys struct {
	Session []byte // signs the portal session cookie
	CSRF    []byte // signs CSRF tokens
}

// DeriveKeys expands the master secret into independent keys.
func DeriveKeys(secret string) (Keys, error) {
	if len(secret) < MinSecretLength {
		return Keys{}, ErrWeakSecret
	}
	session, err := derive(secret, "portal-session-v1")
	if err != nil {
		return Keys{}, err
	}
	csrf, err := derive(secret, "portal-csrf-v1")
	if err != nil {
		return Keys{}, err
	}
	return Keys{Session: session, CSRF: csrf}, nil
}

func derive(secret, info string) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(secret), hkdfSalt, []byte(info))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, errors.Join(errors.New("derive key "+info), err)
	}
	return key, nil
}
