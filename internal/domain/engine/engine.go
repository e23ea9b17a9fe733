// Package engine is the authoritative game-state transition engine: it
// validates player actions against a session snapshot and applies them on a
// private copy.
package engine

import (
	"time"

	"github.com/okian/streetwise/internal/domain/events"
	"github.com/okian/streetwise/internal/domain/market"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRandom injects the randomness source. Tests pass seeded or scripted
// sources; the source must be safe for concurrent use if the engine is shared.
func WithRandom(src random.Source) Option {
	return func(e *Engine) {
		if src != nil {
			e.src = src
		}
	}
}

// WithEvents replaces the random event engine.
func WithEvents(ev *events.Engine) Option {
	return func(e *Engine) {
		if ev != nil {
			e.events = ev
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine holds only immutable collaborators; every call works on values
// passed in, so one Engine serves all sessions.
type Engine struct {
	catalog *market.Catalog
	events  *events.Engine
	src     random.Source
	now     func() time.Time
}

// New constructs an Engine over catalog. A nil catalog means the default.
func New(catalog *market.Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = market.DefaultCatalog()
	}
	e := &Engine{
		catalog: catalog,
		events:  events.New(),
		src:     random.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine prices against.
func (e *Engine) Catalog() *market.Catalog { return e.catalog }

// NewSession initializes a fresh run at the catalog's start location with
// day-one prices.
func (e *Engine) NewSession(id string) *model.Session {
	now := e.now()
	return &model.Session{
		ID: id,
		Player: model.Player{
			Cash:         model.StartingCash,
			Debt:         model.StartingDebt,
			Location:     e.catalog.Start,
			Inventory:    map[string]int{},
			MaxInventory: model.BaseInventory,
			Health:       model.StartingHealth,
		},
		Day:           1,
		CurrentPrices: e.catalog.Prices(1, e.catalog.Start, nil, e.src),
		Running:       true,
		StartedAt:     now,
		UpdatedAt:     now,
	}
}
