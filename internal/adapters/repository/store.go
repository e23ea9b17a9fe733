// Package repository holds the session, leaderboard and archive stores.
package repository

import (
	"context"
	"time"

	"github.com/okian/streetwise/internal/domain/model"
)

// SessionStore persists live game sessions.
type SessionStore interface {
	// Create stores a new session. Returns an error if the id is taken.
	Create(ctx context.Context, s *model.Session) error
	// Get returns a copy of the stored session or ErrNotFound.
	Get(ctx context.Context, id string) (*model.Session, error)
	// Update replaces the session if its stored version equals
	// expectedVersion and bumps s.Version. Returns ErrVersionConflict when
	// another writer got there first.
	Update(ctx context.Context, s *model.Session, expectedVersion int64) error
	// DeleteBefore removes sessions last updated before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
	// Count returns the number of stored sessions.
	Count(ctx context.Context) (int, error)
}

// LeaderboardStore holds accepted score entries.
type LeaderboardStore interface {
	// Insert stores an entry, assigning an id when empty, and returns it.
	Insert(ctx context.Context, e model.Entry) (model.Entry, error)
	// Get returns the entry with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Entry, error)
	// Top returns up to q.Limit entries submitted at or after q.Since,
	// ordered by score desc then id asc, with dense ranks.
	Top(ctx context.Context, q model.LeaderboardQuery) ([]model.Entry, error)
	// Rank returns the entry with its global dense rank.
	Rank(ctx context.Context, id string) (model.Entry, error)
	// LatestForPlayer returns the most recent entry for a player key.
	LatestForPlayer(ctx context.Context, playerKey string) (model.Entry, error)
	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)
}

// ArchiveStore keeps finished runs.
type ArchiveStore interface {
	// Archive stores a finished session. Archiving the same session twice
	// is a no-op.
	Archive(ctx context.Context, job model.ArchiveJob) error
}

// Stores bundles the collaborators a service needs.
type Stores struct {
	Sessions    SessionStore
	Leaderboard LeaderboardStore
	Archive     ArchiveStore
	close       func() error
}

// Close releases the underlying database, if any.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// NewMemoryStores returns process-local stores.
func NewMemoryStores() *Stores {
	return &Stores{
		Sessions:    NewMemorySessionStore(),
		Leaderboard: NewTreapStore(),
		Archive:     NewMemoryArchive(),
	}
}

// Open returns stores for driver: "memory", "sqlite" or "postgres". dsn is
// the sqlite path or the postgres connection string.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Stores, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStores(), nil
	case DriverSQLite, DriverPostgres:
		db, err := OpenSQL(ctx, driver, dsn, opts...)
		if err != nil {
			return nil, err
		}
		return &Stores{Sessions: db.Sessions(), Leaderboard: db.Leaderboard(), Archive: db, close: db.Close}, nil
	default:
		return nil, ErrUnsupportedDriver
	}
}
