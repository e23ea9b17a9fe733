package scoregate

import (
	"fmt"
	"time"

	"github.com/okian/streetwise/internal/domain/model"
)

// RateLimitError is returned when a player resubmits inside the cooldown.
// It unwraps to model.ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("submitted too recently, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return model.ErrRateLimited }

// RateLimited builds a RateLimitError with a retry hint.
func RateLimited(retryAfter time.Duration) error {
	return &RateLimitError{RetryAfter: retryAfter}
}

func reject(format string, args ...any) error {
	return model.Reject(model.ErrIntegrityRejected, format, args...)
}
