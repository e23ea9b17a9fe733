// Package cooldown tracks the last accepted score submission per player so a
// resubmission inside the cooldown window can be refused atomically.
package cooldown

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker records accepted submissions per player key.
type Tracker interface {
	// Reserve atomically checks whether key is outside its cooldown window
	// and, if so, records now as its latest acceptance. When the key is still
	// cooling down it returns false and the time left to wait.
	Reserve(ctx context.Context, key string, now time.Time, window time.Duration) (bool, time.Duration)

	// Release rolls back a reservation, restoring whatever was recorded
	// before it. Use it only when the reserved submission failed to persist.
	Release(ctx context.Context, key string, reservedAt time.Time)

	// Prune forgets every key last accepted before cutoff and returns how
	// many were removed.
	Prune(ctx context.Context, cutoff time.Time) int

	Size() int64
}

// node is an entry in the insertion-ordered list. head is the newest.
type node struct {
	key   string
	at    time.Time
	prev  time.Time // acceptance replaced by this reservation, zero if none
	newer *node
	older *node
}

func (n *node) reset() {
	*n = node{}
}

// inMemoryTracker keeps reservations in a map plus a doubly linked list
// ordered by reservation time so eviction and pruning start from the tail.
type inMemoryTracker struct {
	mu       sync.Mutex
	entries  map[string]*node
	head     *node
	tail     *node
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryTracker creates a tracker with configuration options.
func NewInMemoryTracker(opts ...Option) Tracker {
	t := &inMemoryTracker{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.entries = make(map[string]*node)
	t.nodePool = sync.Pool{
		New: func() interface{} {
			return &node{}
		},
	}
	return t
}

func (t *inMemoryTracker) Reserve(ctx context.Context, key string, now time.Time, window time.Duration) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var prev time.Time
	if n, exists := t.entries[key]; exists {
		if wait := n.at.Add(window).Sub(now); wait > 0 {
			return false, wait
		}
		prev = n.at
		t.remove(n)
	}

	if t.maxSize > 0 && len(t.entries) >= t.maxSize {
		t.remove(t.tail)
	}

	n := t.nodePool.Get().(*node)
	n.key = key
	n.at = now
	n.prev = prev
	t.pushFront(n)
	return true, 0
}

func (t *inMemoryTracker) Release(ctx context.Context, key string, reservedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, exists := t.entries[key]
	if !exists || !n.at.Equal(reservedAt) {
		return
	}
	prev := n.prev
	t.remove(n)
	if prev.IsZero() {
		return
	}
	// Restore the earlier acceptance at its place in age order.
	r := t.nodePool.Get().(*node)
	r.key = key
	r.at = prev
	t.insertByAge(r)
}

func (t *inMemoryTracker) Prune(ctx context.Context, cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for t.tail != nil && t.tail.at.Before(cutoff) {
		t.remove(t.tail)
		removed++
	}
	return removed
}

func (t *inMemoryTracker) Size() int64 {
	return t.size.Load()
}

// pushFront links n as the newest entry. Must be called with t.mu held.
func (t *inMemoryTracker) pushFront(n *node) {
	n.older = t.head
	n.newer = nil
	if t.head != nil {
		t.head.newer = n
	}
	t.head = n
	if t.tail == nil {
		t.tail = n
	}
	t.entries[n.key] = n
	t.size.Add(1)
}

// insertByAge links n behind every entry newer than it. Must be called with
// t.mu held.
func (t *inMemoryTracker) insertByAge(n *node) {
	cur := t.head
	for cur != nil && cur.at.After(n.at) {
		cur = cur.older
	}
	if cur == t.head {
		t.pushFront(n)
		return
	}
	// n goes between cur.newer and cur (cur may be nil: n becomes the tail).
	var newer *node
	if cur == nil {
		newer = t.tail
		t.tail = n
	} else {
		newer = cur.newer
		cur.newer = n
	}
	n.newer = newer
	n.older = cur
	newer.older = n
	t.entries[n.key] = n
	t.size.Add(1)
}

// remove unlinks n and returns it to the pool. Must be called with t.mu held.
func (t *inMemoryTracker) remove(n *node) {
	if n == nil {
		return
	}
	if n.newer != nil {
		n.newer.older = n.older
	} else {
		t.head = n.older
	}
	if n.older != nil {
		n.older.newer = n.newer
	} else {
		t.tail = n.newer
	}
	delete(t.entries, n.key)
	t.size.Add(-1)
	n.reset()
	t.nodePool.Put(n)
}
