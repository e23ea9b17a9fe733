// Package events implements the weighted random event system that fires on
// every day advance, and the second phase of confrontation encounters.
package events

import (
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
)

// Weighted pairs an event kind with its selection weight.
type Weighted struct {
	Kind   model.EventKind
	Weight int
}

// Table is an ordered roulette table. Order matters: ties resolve to the
// earlier entry.
type Table []Weighted

// DefaultTable sums to 100 so weights read as percentages.
func DefaultTable() Table {
	return Table{
		{Kind: model.EventNothing, Weight: 30},
		{Kind: model.EventRumor, Weight: 12},
		{Kind: model.EventBenefactor, Weight: 6},
		{Kind: model.EventStreetFind, Weight: 8},
		{Kind: model.EventBust, Weight: 8},
		{Kind: model.EventSurge, Weight: 6},
		{Kind: model.EventCrash, Weight: 6},
		{Kind: model.EventSickness, Weight: 8},
		{Kind: model.EventPolice, Weight: 8},
		{Kind: model.EventMugging, Weight: 8},
	}
}

// Total returns the sum of positive weights.
func (t Table) Total() int {
	total := 0
	for _, w := range t {
		if w.Weight > 0 {
			total += w.Weight
		}
	}
	return total
}

// Pick runs a cumulative-weight roulette: r = u*total, then weights are
// subtracted in table order until r is no longer positive. One draw per call.
// An empty table picks EventNothing.
func (t Table) Pick(src random.Source) model.EventKind {
	total := t.Total()
	if total == 0 {
		return model.EventNothing
	}
	r := src.Float64() * float64(total)
	last := model.EventNothing
	for _, w := range t {
		if w.Weight <= 0 {
			continue
		}
		last = w.Kind
		r -= float64(w.Weight)
		if r <= 0 {
			return w.Kind
		}
	}
	// Only reachable through float rounding at u close to 1.
	return last
}
