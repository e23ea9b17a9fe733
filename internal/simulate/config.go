// Package simulate plays batches of random-strategy games, either against
// the engine in-process or against a running server over HTTP, and reports
// the spread of final net worth.
package simulate

import (
	"errors"
	"runtime"
	"time"
)

// ErrInvalidConfig is returned for unusable run settings.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds run settings.
type Config struct {
	Games   int
	Workers int
	// Seed makes local runs reproducible: game i draws from Seed+i.
	Seed uint64

	// BaseURL switches to remote mode when set.
	BaseURL string
	Timeout time.Duration
	// DeclaredDuration is the run length claimed in remote score
	// submissions. It must satisfy the server's minimum.
	DeclaredDuration time.Duration
	// HashLength must match the server's hash_length.
	HashLength int
	TopN       int

	OutputFile string
	Verbose    bool
}

// DefaultConfig returns settings for a quick local batch.
func DefaultConfig() Config {
	return Config{
		Games:            1000,
		Workers:          runtime.NumCPU(),
		Seed:             1,
		Timeout:          10 * time.Second,
		DeclaredDuration: 6 * time.Minute,
		HashLength:       16,
		TopN:             20,
	}
}

// Validate reports unusable settings.
func (c Config) Validate() error {
	switch {
	case c.Games < 1:
		return errors.Join(ErrInvalidConfig, errors.New("games must be positive"))
	case c.Workers < 1:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.BaseURL != "" && c.Timeout <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("timeout must be positive"))
	case c.BaseURL != "" && (c.HashLength < 1 || c.TopN < 1):
		return errors.Join(ErrInvalidConfig, errors.New("hash length and top must be positive"))
	}
	return nil
}
