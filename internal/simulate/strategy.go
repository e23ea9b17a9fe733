package simulate

import (
	"github.com/okian/streetwise/internal/domain/market"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
)

// maxActionsPerDay forces a travel once a strategy has dithered this long.
const maxActionsPerDay = 4

// Strategy picks the next action for a session. step counts the actions
// already taken on the current day.
type Strategy interface {
	Next(s *model.Session, catalog *market.Catalog, step int, src random.Source) model.Action
}

// RandomStrategy trades a little, pays debt when flush and wanders the map.
// On the last day it liquidates and settles debt before ending the run.
type RandomStrategy struct{}

// Next implements Strategy.
func (RandomStrategy) Next(s *model.Session, catalog *market.Catalog, step int, src random.Source) model.Action {
	if s.Pending != nil {
		return model.Resolve(s.Pending.Choices[src.IntN(len(s.Pending.Choices))])
	}
	if s.Day >= model.MaxDays {
		return finalAction(s, catalog)
	}
	if step >= maxActionsPerDay {
		return model.Travel(randomDestination(s, catalog, src))
	}

	switch roll := src.Float64(); {
	case roll < 0.35:
		if a, ok := sellSomething(s, src); ok {
			return a
		}
	case roll < 0.75:
		if a, ok := buySomething(s, src); ok {
			return a
		}
	case roll < 0.85:
		if s.Player.Debt > 0 && s.Player.Cash > s.Player.Debt {
			return model.Repay(s.Player.Debt)
		}
	}
	return model.Travel(randomDestination(s, catalog, src))
}

func finalAction(s *model.Session, catalog *market.Catalog) model.Action {
	for _, p := range s.CurrentPrices {
		if qty := s.Player.Inventory[p.Name]; qty > 0 {
			return model.Sell(p.Name, qty)
		}
	}
	if s.Player.Debt > 0 && s.Player.Cash > 0 {
		return model.Repay(min(s.Player.Cash, s.Player.Debt))
	}
	return model.Travel(s.Player.Location)
}

func sellSomething(s *model.Session, src random.Source) (model.Action, bool) {
	var held []model.Price
	for _, p := range s.CurrentPrices {
		if s.Player.Inventory[p.Name] > 0 {
			held = append(held, p)
		}
	}
	if len(held) == 0 {
		return model.Action{}, false
	}
	p := held[src.IntN(len(held))]
	qty := 1 + src.IntN(s.Player.Inventory[p.Name])
	return model.Sell(p.Name, qty), true
}

func buySomething(s *model.Session, src random.Source) (model.Action, bool) {
	var affordable []model.Price
	for _, p := range s.CurrentPrices {
		if p.Price > 0 && p.Price <= s.Player.Cash {
			affordable = append(affordable, p)
		}
	}
	space := s.Player.FreeSpace()
	if len(affordable) == 0 || space <= 0 {
		return model.Action{}, false
	}
	p := affordable[src.IntN(len(affordable))]
	most := min(s.Player.Cash/p.Price, space)
	qty := 1 + src.IntN(most)
	return model.Buy(p.Name, qty, qty*p.Price), true
}

func randomDestination(s *model.Session, catalog *market.Catalog, src random.Source) string {
	others := make([]string, 0, len(catalog.Locations))
	for _, loc := range catalog.Locations {
		if loc.Name != s.Player.Location {
			others = append(others, loc.Name)
		}
	}
	if len(others) == 0 {
		return s.Player.Location
	}
	return others[src.IntN(len(others))]
}
