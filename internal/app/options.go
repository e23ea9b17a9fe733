package service

import (
	"time"

	"github.com/okian/streetwise/internal/adapters/repository"
	"github.com/okian/streetwise/internal/domain/engine"
	"github.com/okian/streetwise/internal/domain/scoregate"
	"github.com/okian/streetwise/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEngine sets the game engine.
func WithEngine(e *engine.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithStores sets the persistence collaborators.
func WithStores(stores *repository.Stores) Option {
	return func(s *Service) {
		if stores != nil {
			s.stores = stores
		}
	}
}

// WithGateOptions configures the score gate. The leaderboard is always
// wired in as the gate's submission history.
func WithGateOptions(opts ...scoregate.Option) Option {
	return func(s *Service) {
		s.gateOpts = append(s.gateOpts, opts...)
	}
}

// WithWorkerCount sets the number of archive workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the archive queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithCooldownSize caps the number of players tracked for resubmission.
func WithCooldownSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.cooldownSize = size
		}
	}
}

// WithSessionTTL sets how long an untouched session is kept.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithJanitorSchedule sets the cron spec for pruning.
func WithJanitorSchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.janitorSpec = spec
		}
	}
}

// WithPublisher receives every accepted leaderboard entry.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides uuid generation for session ids.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
