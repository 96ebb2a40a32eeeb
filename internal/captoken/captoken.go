// Package captoken implements the bearer capability tokens that substitute
// for authentication on recipient-facing resources. Anyone holding a token
// has read access to the resource it addresses for the token's lifetime.
package captoken

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Token is an unguessable, URL-embeddable credential for a single resource.
type Token string

var (
	ErrMalformed = errors.New("captoken: malformed token")
	ErrExpired   = errors.New("captoken: token expired")
)

// New generates a fresh unguessable token.
func New() Token {
	return Token(uuid.NewString())
}

// Parse validates the shape of an inbound token without consulting storage.
// Lookup against storage remains the sole authorization decision.
func Parse(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMalformed
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", ErrMalformed
	}
	return Token(raw), nil
}

func (t Token) String() string { return string(t) }

// Validity bounds a token in time. Signature-request tokens carry no bound;
// the zero value never expires.
type Validity struct {
	ExpiresAt time.Time
}

// Check reports ErrExpired when the validity window has passed.
func (v Validity) Check(now time.Time) error {
	if v.ExpiresAt.IsZero() {
		return nil
	}
	if now.After(v.ExpiresAt) {
		return ErrExpired
	}
	return nil
}
