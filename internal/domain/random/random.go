// Package random abstracts the randomness consumed by the game engine so
// tests can inject seeded or scripted sources.
package random

import "math/rand/v2"

// Source yields uniform draws. *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	// Float64 returns a number in [0.0, 1.0).
	Float64() float64
	// IntN returns a number in [0, n). It panics if n <= 0.
	IntN(n int) int
}

// globalSource delegates to the math/rand/v2 top-level functions, which are
// safe for concurrent use.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }
func (globalSource) IntN(n int) int   { return rand.IntN(n) }

// Default returns the process-wide concurrency-safe source.
func Default() Source { return globalSource{} }

// Seeded returns a deterministic source. Not safe for concurrent use.
func Seeded(seed uint64) Source {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // game randomness, not crypto
}

// Between returns a uniform integer in [lo, hi].
func Between(src Source, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + src.IntN(hi-lo+1)
}

// FloatBetween returns a uniform float in [lo, hi).
func FloatBetween(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Chance reports whether a draw lands under probability p.
func Chance(src Source, p float64) bool {
	return src.Float64() < p
}
