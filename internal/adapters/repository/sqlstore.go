package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/pkg/metrics"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// Storage drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const entryColumns = "id, player_name, score, day, net_worth, duration_ms, hash, submitted_at"

// SQLStore implements SessionStore, LeaderboardStore and ArchiveStore on
// database/sql, for SQLite (modernc) and Postgres (pgx).
type SQLStore struct {
	dialect      string
	db           *sql.DB
	maxOpenConns int
	pingTimeout  time.Duration
}

// OpenSQL connects, pings and migrates the database.
func OpenSQL(ctx context.Context, dialect, dsn string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{dialect: dialect, maxOpenConns: 4, pingTimeout: 10 * time.Second}
	for _, opt := range opts {
		opt(s)
	}

	var driverName string
	switch dialect {
	case DriverSQLite:
		driverName = "sqlite"
		if dsn == "" {
			dsn = filepath.Join("tmp", "streetwise.sqlite")
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		s.maxOpenConns = 1
	case DriverPostgres:
		driverName = "pgx"
		if strings.TrimSpace(dsn) == "" {
			return nil, errors.New("postgres storage requires a dsn")
		}
	default:
		return nil, ErrUnsupportedDriver
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetMaxIdleConns(s.maxOpenConns)
	s.db = db

	pctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}
	if err := s.applyMigrations(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) bind(pos int) string {
	if s.dialect == DriverPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQLStore) insertQuery(table string, cols []string) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = s.bind(i + 1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		strings.Join(ph, ", "),
	)
}

func (s *SQLStore) applyMigrations(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		body, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		q := s.insertQuery("schema_migrations", []string{"version", "applied_at"})
		if _, err := tx.ExecContext(ctx, q, base, time.Now().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// storageErr tags driver failures with model.ErrStorage.
func storageErr(op string, err error) error {
	metrics.RecordErrorByComponent("repository", "storage")
	return fmt.Errorf("%s: %w: %w", op, model.ErrStorage, err)
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
}

// Sessions.

func (s *SQLStore) Create(ctx context.Context, sess *model.Session) error {
	defer observeUpdate(time.Now())

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = "+s.bind(1), sess.ID).Scan(&exists)
	if err != nil {
		return storageErr("create session", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}
	q := s.insertQuery("sessions", []string{"id", "version", "payload", "updated_at"})
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Version, string(payload), sess.UpdatedAt.UnixMilli()); err != nil {
		return storageErr("create session", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*model.Session, error) {
	defer observeQuery(time.Now())

	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM sessions WHERE id = "+s.bind(1), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get session", err)
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		return nil, storageErr("decode session", err)
	}
	return &sess, nil
}

func (s *SQLStore) Update(ctx context.Context, sess *model.Session, expectedVersion int64) error {
	defer observeUpdate(time.Now())

	next := *sess
	next.Version = expectedVersion + 1
	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	q := fmt.Sprintf("UPDATE sessions SET version = %s, payload = %s, updated_at = %s WHERE id = %s AND version = %s",
		s.bind(1), s.bind(2), s.bind(3), s.bind(4), s.bind(5))
	res, err := s.db.ExecContext(ctx, q, next.Version, string(payload), next.UpdatedAt.UnixMilli(), sess.ID, expectedVersion)
	if err != nil {
		return storageErr("update session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update session", err)
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = "+s.bind(1), sess.ID).Scan(&exists); err != nil {
			return storageErr("update session", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		metrics.RecordErrorByComponent("repository", "version_conflict")
		return ErrVersionConflict
	}
	sess.Version = next.Version
	return nil
}

func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	defer observeUpdate(time.Now())

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < "+s.bind(1), cutoff.UnixMilli())
	if err != nil {
		return 0, storageErr("prune sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("prune sessions", err)
	}
	return int(n), nil
}

func (s *SQLStore) countRows(ctx context.Context, table string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, storageErr("count "+table, err)
	}
	return n, nil
}

// Leaderboard.

func (s *SQLStore) Insert(ctx context.Context, e model.Entry) (model.Entry, error) {
	defer observeUpdate(time.Now())

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Rank = 0
	q := s.insertQuery("entries", []string{
		"id", "player_name", "player_key", "score", "day", "net_worth", "duration_ms", "hash", "submitted_at",
	})
	_, err := s.db.ExecContext(ctx, q,
		e.ID, e.PlayerName, model.PlayerKey(e.PlayerName), e.Score, e.Day, e.NetWorth,
		e.DurationMs, e.Hash, e.SubmittedAt.UnixMilli())
	if err != nil {
		return model.Entry{}, storageErr("insert entry", err)
	}
	if n, err := s.countRows(ctx, "entries"); err == nil {
		metrics.UpdateLeaderboardSize(n)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (model.Entry, error) {
	var (
		e  model.Entry
		at int64
	)
	if err := r.Scan(&e.ID, &e.PlayerName, &e.Score, &e.Day, &e.NetWorth, &e.DurationMs, &e.Hash, &at); err != nil {
		return model.Entry{}, err
	}
	e.SubmittedAt = time.UnixMilli(at).UTC()
	return e, nil
}

func (s *SQLStore) entryBy(ctx context.Context, op, where string, args ...any) (model.Entry, error) {
	defer observeQuery(time.Now())

	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE "+where, args...)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Entry{}, ErrNotFound
	}
	if err != nil {
		return model.Entry{}, storageErr(op, err)
	}
	return e, nil
}

func (s *SQLStore) GetEntry(ctx context.Context, id string) (model.Entry, error) {
	return s.entryBy(ctx, "get entry", "id = "+s.bind(1), id)
}

func (s *SQLStore) Top(ctx context.Context, q model.LeaderboardQuery) ([]model.Entry, error) {
	defer observeQuery(time.Now())

	if q.Limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	since := int64(0)
	if !q.Since.IsZero() {
		since = q.Since.UnixMilli()
	}
	query := fmt.Sprintf("SELECT %s FROM entries WHERE submitted_at >= %s ORDER BY score DESC, id ASC LIMIT %s",
		entryColumns, s.bind(1), s.bind(2))
	rows, err := s.db.QueryContext(ctx, query, since, q.Limit)
	if err != nil {
		return nil, storageErr("top entries", err)
	}
	defer rows.Close()

	out := make([]model.Entry, 0, q.Limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("scan entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate entries", err)
	}
	assignRanksWithTies(out)
	return out, nil
}

func (s *SQLStore) Rank(ctx context.Context, id string) (model.Entry, error) {
	e, err := s.GetEntry(ctx, id)
	if err != nil {
		return model.Entry{}, err
	}
	var higher int
	err = s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT score) FROM entries WHERE score > "+s.bind(1), e.Score).Scan(&higher)
	if err != nil {
		return model.Entry{}, storageErr("rank entry", err)
	}
	e.Rank = higher + 1
	return e, nil
}

func (s *SQLStore) LatestForPlayer(ctx context.Context, playerKey string) (model.Entry, error) {
	return s.entryBy(ctx, "latest entry",
		"player_key = "+s.bind(1)+" ORDER BY submitted_at DESC, id DESC LIMIT 1", playerKey)
}

// Archive.

func (s *SQLStore) Archive(ctx context.Context, job model.ArchiveJob) error {
	defer observeUpdate(time.Now())

	payload, err := json.Marshal(&job.Snapshot)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}
	q := s.insertQuery("archives", []string{"session_id", "net_worth", "day", "payload", "ended_at"}) +
		" ON CONFLICT (session_id) DO NOTHING"
	_, err = s.db.ExecContext(ctx, q,
		job.SessionID, job.Snapshot.Player.NetWorth(), job.Snapshot.Day, string(payload), job.EndedAt.UnixMilli())
	if err != nil {
		return storageErr("archive session", err)
	}
	return nil
}

// Sessions returns the SessionStore view of the database.
func (s *SQLStore) Sessions() SessionStore { return sqlSessions{s} }

// Leaderboard returns the LeaderboardStore view of the database.
func (s *SQLStore) Leaderboard() LeaderboardStore { return sqlLeaderboard{s} }

type sqlSessions struct{ *SQLStore }

func (v sqlSessions) Count(ctx context.Context) (int, error) { return v.countRows(ctx, "sessions") }

type sqlLeaderboard struct{ *SQLStore }

func (v sqlLeaderboard) Get(ctx context.Context, id string) (model.Entry, error) {
	return v.GetEntry(ctx, id)
}

func (v sqlLeaderboard) Count(ctx context.Context) (int, error) { return v.countRows(ctx, "entries") }
