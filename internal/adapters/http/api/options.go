package api

import (
	"net/http"

	"github.com/okian/streetwise/internal/adapters/http/auth"
	"github.com/okian/streetwise/pkg/logger"
)

const defaultMaxLimit = 100

// Option applies a configuration option to the Server.
type Option func(*options)

type options struct {
	tokens     *auth.Issuer
	maxLimit   int
	submitRate int
	live       http.Handler
	logger     logger.Logger
}

func defaultOptions() options {
	return options{maxLimit: defaultMaxLimit}
}

// WithTokens requires a session token on action requests. Without it
// sessions are unauthenticated.
func WithTokens(issuer *auth.Issuer) Option {
	return func(o *options) {
		o.tokens = issuer
	}
}

// WithMaxLimit caps the leaderboard page size.
func WithMaxLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxLimit = n
		}
	}
}

// WithSubmitRate limits POST /scores to perMinute requests per client IP.
// Zero disables the limit.
func WithSubmitRate(perMinute int) Option {
	return func(o *options) {
		if perMinute >= 0 {
			o.submitRate = perMinute
		}
	}
}

// WithLiveFeed mounts h at GET /leaderboard/live.
func WithLiveFeed(h http.Handler) Option {
	return func(o *options) {
		o.live = h
	}
}

// WithLogger sets the API logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
