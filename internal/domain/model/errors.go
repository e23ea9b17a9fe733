package model

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers classify with errors.Is.
var (
	// ErrValidationRejected is a user-facing rejection reported verbatim.
	ErrValidationRejected = errors.New("action rejected")
	// ErrIntegrityRejected is an anti-cheat rejection reported generically.
	ErrIntegrityRejected = errors.New("submission rejected")
	// ErrRateLimited means the caller must wait before retrying.
	ErrRateLimited = errors.New("rate limited")
	// ErrNotFound means the referenced session or entry does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means a concurrent write won the race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrStorage is the only internal, non-recoverable class.
	ErrStorage = errors.New("storage failure")
)

// Rejection attaches a human-readable reason to a taxonomy kind.
type Rejection struct {
	Kind   error
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func (r *Rejection) Unwrap() error { return r.Kind }

// Reject builds a Rejection of the given kind.
func Reject(kind error, format string, args ...any) error {
	return &Rejection{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Reason extracts the user-facing reason, falling back to err.Error().
func Reason(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
