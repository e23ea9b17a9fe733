package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/pkg/metrics"
)

// MemorySessionStore keeps sessions in a map. Values are cloned on the way
// in and out so callers never share state with the store.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
}

// NewMemorySessionStore returns an empty session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*model.Session)}
}

func (m *MemorySessionStore) Create(_ context.Context, s *model.Session) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrAlreadyExists
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*model.Session, error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds())) }()

	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Update(_ context.Context, s *model.Session, expectedVersion int64) error {
	start := time.Now()
	defer func() { metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds())) }()

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion {
		metrics.RecordErrorByComponent("repository", "version_conflict")
		return ErrVersionConflict
	}
	s.Version = expectedVersion + 1
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *MemorySessionStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

// MemoryArchive keeps finished runs in memory, keyed by session id.
type MemoryArchive struct {
	mu   sync.RWMutex
	jobs map[string]model.ArchiveJob
}

// NewMemoryArchive returns an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{jobs: make(map[string]model.ArchiveJob)}
}

func (a *MemoryArchive) Archive(_ context.Context, job model.ArchiveJob) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.jobs[job.SessionID]; ok {
		return nil
	}
	job.Snapshot = *job.Snapshot.Clone()
	a.jobs[job.SessionID] = job
	return nil
}

// Lookup returns the archived run for a session.
func (a *MemoryArchive) Lookup(sessionID string) (model.ArchiveJob, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	job, ok := a.jobs[sessionID]
	return job, ok
}

// Len returns the number of archived runs.
func (a *MemoryArchive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.jobs)
}
