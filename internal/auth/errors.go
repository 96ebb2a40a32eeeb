package auth

import "errors"

var (
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
	ErrInvalidInput  = errors.New("auth: invalid input")
	ErrUnauthorized  = errors.New("auth: unauthorized")

	// ErrInvalidToken is the single failure surfaced for any credential
	// problem. Routes never learn whether a token was expired, malformed
	// or revoked.
	ErrInvalidToken = errors.New("auth: invalid token")
)
