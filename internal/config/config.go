// Package config defines service configuration and its loading hooks.
//
// Conventions:
//   - New returns defaults; Load layers a YAML file and environment on top.
//   - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// StorageDriver is memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`
	SQLitePath    string `koanf:"sqlite_path"`
	PostgresDSN   string `koanf:"postgres_dsn"`

	// CatalogPath optionally points at a YAML commodity/location catalog.
	CatalogPath string `koanf:"catalog_path"`

	// SessionSecret signs session tokens. Empty disables token checks.
	SessionSecret        string `koanf:"session_secret"`
	SessionTokenTTLHours int    `koanf:"session_token_ttl_hours"`

	// ArchiveQueueSize bounds the in-memory archive queue.
	ArchiveQueueSize int `koanf:"archive_queue_size"`
	// ArchiveWorkerCount sets the number of archive workers.
	ArchiveWorkerCount int `koanf:"archive_worker_count"`

	// CooldownCacheSize caps the per-player submission tracker.
	CooldownCacheSize int `koanf:"cooldown_cache_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// Score gate thresholds.
	MinRunMinutes         int `koanf:"min_run_minutes"`
	SubmitCooldownMinutes int `koanf:"submit_cooldown_minutes"`
	ScoreTolerance        int `koanf:"score_tolerance"`
	MinScore              int `koanf:"min_score"`
	MaxScore              int `koanf:"max_score"`
	HashLength            int `koanf:"hash_length"`

	// SessionTTLHours is how long an idle session survives the janitor.
	SessionTTLHours int `koanf:"session_ttl_hours"`
	// JanitorCron is a standard five-field cron spec, or an @every descriptor.
	JanitorCron string `koanf:"janitor_cron"`

	// SubmitRatePerMinute limits POST /scores per client IP. 0 disables it.
	SubmitRatePerMinute int `koanf:"submit_rate_per_minute"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		StorageDriver:         "memory",
		SQLitePath:            "tmp/streetwise.sqlite",
		SessionTokenTTLHours:  48,
		ArchiveQueueSize:      10_000,
		ArchiveWorkerCount:    runtime.NumCPU(),
		CooldownCacheSize:     50_000,
		MaxLeaderboardLimit:   100,
		MinRunMinutes:         5,
		SubmitCooldownMinutes: 5,
		ScoreTolerance:        1000,
		MinScore:              -1_000_000,
		MaxScore:              100_000_000,
		HashLength:            16,
		SessionTTLHours:       24,
		JanitorCron:           "@every 10m",
		SubmitRatePerMinute:   30,
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StorageDriver != "memory" && c.StorageDriver != "sqlite" && c.StorageDriver != "postgres":
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	case c.StorageDriver == "postgres" && c.PostgresDSN == "":
		return fmt.Errorf("%w: postgres_dsn is required for postgres storage", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.MinScore >= c.MaxScore:
		return fmt.Errorf("%w: min_score must be below max_score", ErrInvalidConfig)
	case c.HashLength < 1 || c.HashLength > 64:
		return fmt.Errorf("%w: hash_length must be within [1, 64]", ErrInvalidConfig)
	case c.ScoreTolerance < 0 || c.MinRunMinutes < 0 || c.SubmitCooldownMinutes < 0:
		return fmt.Errorf("%w: gate thresholds must not be negative", ErrInvalidConfig)
	}
	if _, err := cron.ParseStandard(c.JanitorCron); err != nil {
		return fmt.Errorf("%w: janitor_cron: %w", ErrInvalidConfig, err)
	}
	return nil
}

// MinRun returns the minimum accepted run duration.
func (c *Config) MinRun() time.Duration {
	return time.Duration(c.MinRunMinutes) * time.Minute
}

// SubmitCooldown returns the per-player resubmission window.
func (c *Config) SubmitCooldown() time.Duration {
	return time.Duration(c.SubmitCooldownMinutes) * time.Minute
}

// SessionTTL returns the idle-session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// TokenTTL returns the session token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.SessionTokenTTLHours) * time.Hour
}

// StorageDSN returns the data source for the selected driver.
func (c *Config) StorageDSN() string {
	if c.StorageDriver == "postgres" {
		return c.PostgresDSN
	}
	return c.SQLitePath
}
