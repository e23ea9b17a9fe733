package auth

import "errors"

// Sentinel errors for token checks.
var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid session token")
	ErrWrongSession = errors.New("token issued for another session")
	ErrNoSecret     = errors.New("session secret not configured")
)
