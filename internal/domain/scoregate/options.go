package scoregate

import "time"

// Default thresholds. None has a derivation beyond play-testing; all are
// overridable.
const (
	DefaultMinDuration    = 5 * time.Minute
	DefaultCooldown       = 5 * time.Minute
	DefaultScoreTolerance = 1000
	DefaultMinScore       = -1_000_000
	DefaultMaxScore       = 100_000_000
	DefaultHashLength     = 16
	DefaultMaxNameLength  = 24
)

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithMinDuration sets the shortest plausible run.
func WithMinDuration(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.minDuration = d
		}
	}
}

// WithCooldown sets the window between accepted submissions per player.
func WithCooldown(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.cooldown = d
		}
	}
}

// WithScoreTolerance sets the allowed gap between score and cash minus debt.
func WithScoreTolerance(n int) Option {
	return func(g *Gate) {
		if n >= 0 {
			g.tolerance = n
		}
	}
}

// WithScoreBand sets the plausible score range, inclusive.
func WithScoreBand(lo, hi int) Option {
	return func(g *Gate) {
		if lo <= hi {
			g.minScore, g.maxScore = lo, hi
		}
	}
}

// WithHashLength sets how many hex characters of the digest are compared.
func WithHashLength(n int) Option {
	return func(g *Gate) {
		if n > 0 && n <= 64 {
			g.hashLength = n
		}
	}
}

// WithHistory sets the lookup for a player's latest accepted submission.
func WithHistory(h History) Option {
	return func(g *Gate) {
		g.history = h
	}
}
