// Package auth guards the webhook and the admin surface.
//
// SHARED SECRETS:
// The webhook secret and the admin token are compared in constant time, so
// response timing does not reveal how many leading bytes were right.
//
// The admin token may instead be configured as a bcrypt hash
// (ADMIN_TOKEN='$2a$12$...'), so the plain secret never has to sit in the
// deployment environment. `trackctl hash-token` produces one.
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost
//	 version
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/clicktrail/internal/apperror"
)

// DefaultCost is the bcrypt work factor used by HashSecret.
const DefaultCost = 12

// SecretVerifier checks a presented secret against the configured one.
type SecretVerifier struct {
	configured []byte
	hashed     bool
}

// NewSecretVerifier verifies against configured. A value starting with "$2"
// is treated as a bcrypt hash.
func NewSecretVerifier(configured string) (*SecretVerifier, error) {
	if configured == "" {
		return nil, errors.New("auth: empty secret")
	}
	v := &SecretVerifier{configured: []byte(configured)}
	if strings.HasPrefix(configured, "$2") {
		if _, err := bcrypt.Cost(v.configured); err != nil {
			return nil, fmt.Errorf("auth: malformed bcrypt hash: %w", err)
		}
		v.hashed = true
	}
	return v, nil
}

// NewPlainSecretVerifier never interprets configured as a hash. Used for the
// webhook secret, whose value Telegram echoes back verbatim.
func NewPlainSecretVerifier(configured string) (*SecretVerifier, error) {
	if configured == "" {
		return nil, errors.New("auth: empty secret")
	}
	return &SecretVerifier{configured: []byte(configured)}, nil
}

// Hashed reports whether the configured secret is a bcrypt hash.
func (v *SecretVerifier) Hashed() bool { return v.hashed }

// Verify returns nil if presented matches, or an error wrapping
// apperror.ErrUnauthorized.
func (v *SecretVerifier) Verify(presented string) error {
	if presented == "" {
		return apperror.Unauthorized("missing credentials")
	}

	if v.hashed {
		// bcrypt compares in constant time internally.
		err := bcrypt.CompareHashAndPassword(v.configured, []byte(presented))
		if err != nil {
			return apperror.Unauthorized("invalid credentials")
		}
		return nil
	}

	if subtle.ConstantTimeCompare(v.configured, []byte(presented)) != 1 {
		return apperror.Unauthorized("invalid credentials")
	}
	return nil
}

// Key returns the bytes the ticket signing key is derived from. For a hashed
// admin token that is the hash itself, which is as secret as the token.
func (v *SecretVerifier) Key() []byte {
	out := make([]byte, len(v.configured))
	copy(out, v.configured)
	return out
}

// HashSecret returns the bcrypt hash of plaintext for use as ADMIN_TOKEN.
//
// bcrypt silently truncates input longer than 72 bytes; such secrets are
// rejected instead.
func HashSecret(plaintext string, cost int) (string, error) {
	if plaintext == "" {
		return "", errors.New("auth: secret must not be empty")
	}
	if len(plaintext) > 72 {
		return "", errors.New("auth: secret must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing secret: %w", err)
	}
	return string(hashed), nil
}
