package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/pkg/metrics"
)

// Treap-based, in-memory LeaderboardStore.
//
// Ordering: score DESC, then entry id ASC (deterministic).
// The BST comparator treats "less" as "ranks earlier", so in-order
// traversal yields the leaderboard from best to worst.

type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score int, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// countAbove returns how many nodes under n hold a score strictly above
// score. Left subtrees hold the higher scores, so one root-to-leaf walk
// suffices.
func countAbove(n *node, score int) int {
	c := 0
	for n != nil {
		if n.score > score {
			c += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// collect appends entries in rank order, skipping those submitted before
// since, until limit entries are gathered. limit <= 0 means no limit.
func collect(n *node, since time.Time, limit int, byID map[string]model.Entry, out *[]model.Entry) {
	if n == nil || (limit > 0 && len(*out) >= limit) {
		return
	}
	collect(n.left, since, limit, byID, out)
	if limit > 0 && len(*out) >= limit {
		return
	}
	if e, ok := byID[n.id]; ok && !e.SubmittedAt.Before(since) {
		*out = append(*out, e)
	}
	collect(n.right, since, limit, byID, out)
}

// TreapStore is an in-memory LeaderboardStore.
type TreapStore struct {
	mu       sync.RWMutex
	root     *node
	byID     map[string]model.Entry
	byPlayer map[string]string
	// scores holds one node per distinct score and distinct counts the
	// entries behind each; a dense rank is countAbove(scores) + 1.
	scores   *node
	distinct map[int]int
}

// NewTreapStore constructs an empty treap store.
func NewTreapStore() *TreapStore {
	return &TreapStore{
		byID:     make(map[string]model.Entry),
		byPlayer: make(map[string]string),
		distinct: make(map[int]int),
	}
}

// Insert implements LeaderboardStore.Insert with O(log n) expected time.
func (s *TreapStore) Insert(_ context.Context, e model.Entry) (model.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Rank = 0

	s.mu.Lock()
	if _, ok := s.byID[e.ID]; ok {
		s.mu.Unlock()
		return model.Entry{}, ErrAlreadyExists
	}
	s.byID[e.ID] = e
	if s.distinct[e.Score] == 0 {
		s.scores = insert(s.scores, "", e.Score, rand.Uint64())
	}
	s.distinct[e.Score]++
	key := model.PlayerKey(e.PlayerName)
	if prev, ok := s.byID[s.byPlayer[key]]; !ok || !e.SubmittedAt.Before(prev.SubmittedAt) {
		s.byPlayer[key] = e.ID
	}
	s.root = insert(s.root, e.ID, e.Score, rand.Uint64())
	n := len(s.byID)
	s.mu.Unlock()

	metrics.UpdateLeaderboardSize(n)
	return e, nil
}

func (s *TreapStore) Get(_ context.Context, id string) (model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return model.Entry{}, ErrNotFound
	}
	return e, nil
}

// Top returns the best entries for the query window with dense ranks.
func (s *TreapStore) Top(_ context.Context, q model.LeaderboardQuery) ([]model.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if q.Limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Entry, 0, min(q.Limit, len(s.byID)))
	collect(s.root, q.Since, q.Limit, s.byID, &out)
	assignRanksWithTies(out)
	return out, nil
}

// Rank returns the entry with its dense rank across the whole board.
func (s *TreapStore) Rank(_ context.Context, id string) (model.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Entry{}, ErrNotFound
	}
	e.Rank = countAbove(s.scores, e.Score) + 1
	return e, nil
}

func (s *TreapStore) LatestForPlayer(_ context.Context, playerKey string) (model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[s.byPlayer[playerKey]]
	if !ok {
		return model.Entry{}, ErrNotFound
	}
	return e, nil
}

// Count returns the total number of entries.
func (s *TreapStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// assignRanksWithTies assigns dense ranks to entries already in score
// order. Equal scores share a rank and the next score takes the next rank.
func assignRanksWithTies(entries []model.Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameScoreCount := 1
		for j := i + 1; j < len(entries) && entries[j].Score == entries[i].Score; j++ {
			entries[j].Rank = currentRank
			sameScoreCount++
		}

		currentRank++
		i += sameScoreCount - 1
	}
}
