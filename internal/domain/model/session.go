// Package model contains domain models passed between layers.
package model

import (
	"slices"
	"time"
)

// Game rules shared by the engine, the score gate and the API.
const (
	MaxDays           = 30
	StartingCash      = 2000
	StartingDebt      = 5000
	BaseInventory     = 100
	StartingHealth    = 100
	MinHealth         = 10
	MaxHealth         = 100
	DailyInterestRate = 0.05
)

// Price is one row of a location's market board.
type Price struct {
	Name  string `json:"name"`
	Price int    `json:"price"`
}

// Player holds the trader's wallet, stash and condition.
type Player struct {
	Cash         int            `json:"cash"`
	Debt         int            `json:"debt"`
	Location     string         `json:"location"`
	Inventory    map[string]int `json:"inventory"`
	MaxInventory int            `json:"maxInventory"`
	Health       int            `json:"health"`
}

// Carried returns the total number of units held.
func (p Player) Carried() int {
	total := 0
	for _, qty := range p.Inventory {
		total += qty
	}
	return total
}

// FreeSpace returns the remaining inventory capacity.
func (p Player) FreeSpace() int {
	return p.MaxInventory - p.Carried()
}

// NetWorth is cash minus debt; it is also the run's score.
func (p Player) NetWorth() int {
	return p.Cash - p.Debt
}

// ConditionKind tags a lingering market condition.
type ConditionKind string

const (
	ConditionBust  ConditionKind = "bust"
	ConditionSurge ConditionKind = "surge"
)

// Condition is an active market modifier consumed by price generation.
// A bust names the commodities it affects; a surge affects every commodity.
type Condition struct {
	Kind        ConditionKind `json:"kind"`
	Commodities []string      `json:"commodities,omitempty"`
	UntilDay    int           `json:"untilDay"`
}

// Affects reports whether the condition applies to commodity name.
func (c Condition) Affects(name string) bool {
	if c.Kind == ConditionSurge {
		return true
	}
	return slices.Contains(c.Commodities, name)
}

// EncounterKind identifies a confrontation awaiting a player decision.
type EncounterKind string

const (
	EncounterPolice  EncounterKind = "police"
	EncounterMugging EncounterKind = "mugging"
)

// Choice is the player's answer to an encounter.
type Choice string

const (
	ChoicePay   Choice = "pay"
	ChoiceRun   Choice = "run"
	ChoiceFight Choice = "fight"
)

// Encounter is a pending confrontation. Nothing is mutated until the player
// answers with a resolve action.
type Encounter struct {
	Kind    EncounterKind `json:"kind"`
	Demand  int           `json:"demand"`
	Choices []Choice      `json:"choices"`
}

// Offers reports whether c is a valid answer.
func (e Encounter) Offers(c Choice) bool {
	return slices.Contains(e.Choices, c)
}

// Stats counts what happened during a run.
type Stats struct {
	Trades         int `json:"trades"`
	Travels        int `json:"travels"`
	Events         int `json:"events"`
	EncountersWon  int `json:"encountersWon"`
	EncountersLost int `json:"encountersLost"`
}

// Session is one playthrough's state.
type Session struct {
	ID            string      `json:"id"`
	Version       int64       `json:"version"`
	Player        Player      `json:"player"`
	Day           int         `json:"day"`
	CurrentPrices []Price     `json:"currentPrices"`
	Running       bool        `json:"running"`
	Over          bool        `json:"over"`
	Pending       *Encounter  `json:"pending,omitempty"`
	Conditions    []Condition `json:"conditions,omitempty"`
	Stats         Stats       `json:"stats"`
	StartedAt     time.Time   `json:"startedAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// PriceOf returns the current price for a commodity.
func (s *Session) PriceOf(name string) (int, bool) {
	for _, p := range s.CurrentPrices {
		if p.Name == name {
			return p.Price, true
		}
	}
	return 0, false
}

// Clone returns a deep copy so mutations never leak into the original.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Player.Inventory = make(map[string]int, len(s.Player.Inventory))
	for k, v := range s.Player.Inventory {
		c.Player.Inventory[k] = v
	}
	c.CurrentPrices = slices.Clone(s.CurrentPrices)
	if s.Pending != nil {
		p := *s.Pending
		p.Choices = slices.Clone(s.Pending.Choices)
		c.Pending = &p
	}
	if s.Conditions != nil {
		c.Conditions = make([]Condition, len(s.Conditions))
		for i, cond := range s.Conditions {
			cond.Commodities = slices.Clone(cond.Commodities)
			c.Conditions[i] = cond
		}
	}
	return &c
}
