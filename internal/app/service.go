// Package service is the application layer behind the HTTP API: it loads
// and saves sessions around engine calls, admits scores through the gate
// and runs the background archive and janitor jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/streetwise/internal/adapters/mq/queue"
	"github.com/okian/streetwise/internal/adapters/mq/worker"
	"github.com/okian/streetwise/internal/adapters/repository"
	"github.com/okian/streetwise/internal/domain/cooldown"
	"github.com/okian/streetwise/internal/domain/engine"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/scoregate"
	"github.com/okian/streetwise/pkg/logger"
	"github.com/okian/streetwise/pkg/metrics"
)

// Publisher is told about every accepted leaderboard entry.
type Publisher interface {
	Publish(e model.Entry)
}

// ActionResult is what an admitted action returns to the caller.
type ActionResult struct {
	Session  *model.Session
	Messages []model.Message
	Events   []model.Event
	Ended    bool
}

// SubmissionResult is an accepted score with its leaderboard position.
type SubmissionResult struct {
	Entry model.Entry
	Rank  int
}

// Service implements the API dependencies for the game and leaderboard.
type Service struct {
	mu sync.RWMutex

	engine   *engine.Engine
	stores   *repository.Stores
	gate     *scoregate.Gate
	gateOpts []scoregate.Option
	cooldown cooldown.Tracker
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	cron     *cron.Cron

	publisher Publisher

	locksMu sync.Mutex
	locks   map[string]*sessionLock

	workerCount  int
	queueSize    int
	cooldownSize int
	sessionTTL   time.Duration
	janitorSpec  string

	now   func() time.Time
	newID func() string

	started bool
	logger  logger.Logger
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type nopPublisher struct{}

func (nopPublisher) Publish(model.Entry) {}

// New constructs a Service. Without WithStores it keeps everything in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:  runtime.NumCPU(),
		queueSize:    10_000,
		cooldownSize: 50_000,
		sessionTTL:   24 * time.Hour,
		janitorSpec:  "@every 10m",
		publisher:    nopPublisher{},
		locks:        make(map[string]*sessionLock),
		now:          time.Now,
		newID:        uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.engine == nil {
		s.engine = engine.New(nil, engine.WithClock(s.now))
	}
	if s.stores == nil {
		s.stores = repository.NewMemoryStores()
	}
	s.gate = scoregate.New(append(s.gateOpts, scoregate.WithHistory(s.stores.Leaderboard))...)
	s.cooldown = cooldown.NewInMemoryTracker(cooldown.WithMaxSize(s.cooldownSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	return s
}

// Start launches the archive workers and the janitor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Background work runs until Stop, not until the caller's ctx ends.
	bg := context.WithoutCancel(ctx)
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.janitorSpec, func() { s.Sweep(bg) }); err != nil {
		return fmt.Errorf("register janitor %q: %w", s.janitorSpec, err)
	}

	s.pool = worker.NewPool(s.workerCount, s.queue, s.stores.Archive)
	s.pool.Start(ctx)
	s.cron.Start()

	s.started = true
	s.logger.Info(ctx, "game service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.String("janitor", s.janitorSpec),
	)
	return nil
}

// Stop stops the janitor and drains the archive queue.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping game service...")
	cronDone := s.cron.Stop()
	err := s.pool.Shutdown(ctx)
	select {
	case <-cronDone.Done():
	case <-ctx.Done():
	}

	s.started = false
	s.logger.Info(ctx, "game service stopped")
	return err
}

// lockSession serializes actions on one session within this process.
func (s *Service) lockSession(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

// NewSession starts and stores a fresh run.
func (s *Service) NewSession(ctx context.Context) (*model.Session, error) {
	sess := s.engine.NewSession(s.newID())
	if err := s.stores.Sessions.Create(ctx, sess); err != nil {
		return nil, storageError("create session", err)
	}
	metrics.IncrementSessionsCreated()
	s.logger.Debug(ctx, "session created", logger.String("session", sess.ID))
	return sess, nil
}

// Session returns the stored session.
func (s *Service) Session(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.stores.Sessions.Get(ctx, id)
	if err != nil {
		return nil, storageError("load session "+id, err)
	}
	return sess, nil
}

// Act validates and applies one action to a stored session. Rejections wrap
// model.ErrValidationRejected and leave the stored session untouched.
func (s *Service) Act(ctx context.Context, id string, a model.Action) (ActionResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordActionLatency(float64(time.Since(start).Milliseconds()))
	}()

	unlock := s.lockSession(id)
	defer unlock()

	sess, err := s.stores.Sessions.Get(ctx, id)
	if err != nil {
		return ActionResult{}, storageError("load session "+id, err)
	}

	res, err := s.engine.Execute(sess, a)
	if err != nil {
		metrics.RecordAction(string(a.Type), "rejected")
		s.logger.Debug(ctx, "action rejected",
			logger.String("session", id),
			logger.String("type", string(a.Type)),
			logger.String("reason", model.Reason(err)),
		)
		return ActionResult{}, err
	}

	if err := s.stores.Sessions.Update(ctx, res.Session, sess.Version); err != nil {
		outcome := "error"
		if errors.Is(err, model.ErrVersionConflict) {
			outcome = "conflict"
		}
		metrics.RecordAction(string(a.Type), outcome)
		return ActionResult{}, storageError("save session "+id, err)
	}
	metrics.RecordAction(string(a.Type), "ok")

	if a.Type == model.ActionResolve && sess.Pending != nil {
		metrics.RecordEncounterResolved(string(sess.Pending.Kind), string(a.Data.Choice))
	}
	for _, ev := range res.Events {
		metrics.RecordEventDrawn(string(ev.Kind))
	}
	if res.Ended {
		s.finish(ctx, res.Session)
	}

	return ActionResult{
		Session:  res.Session,
		Messages: res.Messages,
		Events:   res.Events,
		Ended:    res.Ended,
	}, nil
}

// finish hands a completed run to the archive workers.
func (s *Service) finish(ctx context.Context, sess *model.Session) {
	metrics.IncrementGamesCompleted()
	job := model.ArchiveJob{SessionID: sess.ID, Snapshot: *sess.Clone(), EndedAt: s.now()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		metrics.RecordArchiveJob("dropped")
		s.logger.Warn(ctx, "archive queue rejected finished session",
			logger.String("session", sess.ID), logger.Error(err))
		return
	}
	s.logger.Info(ctx, "game over",
		logger.String("session", sess.ID),
		logger.Int("netWorth", sess.Player.NetWorth()),
	)
}

// SubmitScore runs a submission through the gate and, if admitted, records
// it on the leaderboard.
func (s *Service) SubmitScore(ctx context.Context, sub model.Submission) (SubmissionResult, error) {
	now := s.now()

	if err := s.gate.Admit(ctx, sub, now); err != nil {
		s.recordSubmissionFailure(ctx, sub, err)
		return SubmissionResult{}, err
	}

	// The history check above is not atomic; the tracker closes the race
	// between two concurrent submissions from the same player.
	key := model.PlayerKey(sub.PlayerName)
	window := s.gate.Cooldown()
	if window > 0 {
		if ok, wait := s.cooldown.Reserve(ctx, key, now, window); !ok {
			err := scoregate.RateLimited(wait)
			s.recordSubmissionFailure(ctx, sub, err)
			return SubmissionResult{}, err
		}
	}

	gd := sub.GameData
	stored, err := s.stores.Leaderboard.Insert(ctx, model.Entry{
		PlayerName:  strings.TrimSpace(sub.PlayerName),
		Score:       gd.Score,
		Day:         gd.Day,
		NetWorth:    gd.PlayerStats.Cash - gd.PlayerStats.Debt,
		DurationMs:  gd.EndTime - gd.StartTime,
		Hash:        strings.ToLower(strings.TrimSpace(sub.IntegrityHash)),
		SubmittedAt: now,
	})
	if err != nil {
		if window > 0 {
			s.cooldown.Release(ctx, key, now)
		}
		err = storageError("insert entry", err)
		s.recordSubmissionFailure(ctx, sub, err)
		return SubmissionResult{}, err
	}

	ranked, err := s.stores.Leaderboard.Rank(ctx, stored.ID)
	if err != nil {
		s.logger.Warn(ctx, "rank lookup failed after insert",
			logger.String("entry", stored.ID), logger.Error(err))
		ranked = stored
	}

	metrics.RecordSubmission("accepted")
	s.publisher.Publish(ranked)
	s.logger.Info(ctx, "score accepted",
		logger.String("player", stored.PlayerName),
		logger.Int("score", stored.Score),
		logger.Int("rank", ranked.Rank),
	)
	return SubmissionResult{Entry: ranked, Rank: ranked.Rank}, nil
}

func (s *Service) recordSubmissionFailure(ctx context.Context, sub model.Submission, err error) {
	outcome := "error"
	switch {
	case errors.Is(err, model.ErrIntegrityRejected):
		outcome = "rejected"
	case errors.Is(err, model.ErrRateLimited):
		outcome = "rate_limited"
	}
	metrics.RecordSubmission(outcome)
	s.logger.Info(ctx, "score refused",
		logger.String("player", sub.PlayerName),
		logger.String("outcome", outcome),
		logger.String("reason", model.Reason(err)),
	)
}

// Leaderboard returns the top entries for a timeframe.
func (s *Service) Leaderboard(ctx context.Context, limit int, tf model.Timeframe) ([]model.Entry, error) {
	entries, err := s.stores.Leaderboard.Top(ctx, model.LeaderboardQuery{Limit: limit, Since: tf.Since(s.now())})
	if err != nil {
		if errors.Is(err, repository.ErrInvalidLimit) {
			return nil, err
		}
		return nil, storageError("leaderboard", err)
	}
	return entries, nil
}

// Rank returns a leaderboard entry with its global rank.
func (s *Service) Rank(ctx context.Context, entryID string) (model.Entry, error) {
	e, err := s.stores.Leaderboard.Rank(ctx, entryID)
	if err != nil {
		return model.Entry{}, storageError("rank "+entryID, err)
	}
	return e, nil
}

// Sweep prunes idle sessions and expired cooldown entries. The janitor runs
// it on schedule.
func (s *Service) Sweep(ctx context.Context) {
	metrics.IncrementJanitorRuns()
	now := s.now()

	n, err := s.stores.Sessions.DeleteBefore(ctx, now.Add(-s.sessionTTL))
	if err != nil {
		s.logger.Error(ctx, "prune sessions failed", logger.Error(err))
	} else {
		metrics.RecordJanitorPruned("sessions", n)
	}

	pruned := s.cooldown.Prune(ctx, now.Add(-s.gate.Cooldown()))
	metrics.RecordJanitorPruned("cooldowns", pruned)

	if count, err := s.stores.Sessions.Count(ctx); err == nil {
		metrics.UpdateActiveSessions(count)
	}
	s.logger.Debug(ctx, "janitor sweep",
		logger.Int("sessions", n),
		logger.Int("cooldowns", pruned),
	)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueCapacity": s.queueSize,
		"queueLength":   s.queue.Len(ctx),
		"cooldowns":     s.cooldown.Size(),
	}
	if n, err := s.stores.Sessions.Count(ctx); err == nil {
		stats["sessions"] = n
		metrics.UpdateActiveSessions(n)
	}
	if n, err := s.stores.Leaderboard.Count(ctx); err == nil {
		stats["leaderboardEntries"] = n
		metrics.UpdateLeaderboardSize(n)
	}
	if s.pool != nil {
		stats["archived"] = s.pool.Processed()
	}
	return stats
}

// storageError keeps domain sentinels intact and tags everything else as a
// storage failure.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrVersionConflict),
		errors.Is(err, model.ErrStorage):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, model.ErrStorage, err)
	}
}
