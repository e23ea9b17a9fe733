package engine

import (
	"github.com/okian/streetwise/internal/domain/model"
)

// costTolerance is the rounding slack allowed between the client-declared
// purchase cost and the server-side recomputation.
const costTolerance = 1

// Validate decides admissibility without touching s. It returns nil or a
// model.Rejection of kind model.ErrValidationRejected whose reason is safe to
// show the player.
func (e *Engine) Validate(s *model.Session, a model.Action) error {
	if s == nil {
		return reject("no active game")
	}
	if !s.Running || s.Over {
		return reject("the game is over")
	}
	if s.Day > model.MaxDays {
		return reject("the game is over")
	}
	if s.Pending != nil && a.Type != model.ActionResolve {
		return reject("you must deal with the %s first", s.Pending.Kind)
	}

	switch a.Type {
	case model.ActionBuy:
		return e.validateBuy(s, a.Data)
	case model.ActionSell:
		return e.validateSell(s, a.Data)
	case model.ActionTravel:
		// Any destination goes; uncatalogued places price like a street.
		return nil
	case model.ActionRepay:
		return validateRepay(s, a.Data)
	case model.ActionResolve:
		if s.Pending == nil {
			return reject("there is nothing to resolve")
		}
		if !s.Pending.Offers(a.Data.Choice) {
			return reject("%q is not an option right now", a.Data.Choice)
		}
		return nil
	default:
		return reject("unknown action %q", a.Type)
	}
}

func (e *Engine) validateBuy(s *model.Session, d model.ActionData) error {
	price, ok := s.PriceOf(d.Commodity)
	if !ok {
		return reject("%q is not sold here", d.Commodity)
	}
	if d.Quantity < 1 {
		return reject("quantity must be at least 1")
	}
	cost := price * d.Quantity
	if diff := d.ExpectedCost - cost; diff > costTolerance || diff < -costTolerance {
		return reject("price changed: %d %s now cost $%d", d.Quantity, d.Commodity, cost)
	}
	if cost > s.Player.Cash {
		return reject("not enough cash: need $%d, have $%d", cost, s.Player.Cash)
	}
	if d.Quantity > s.Player.FreeSpace() {
		return reject("not enough space: room for %d more", s.Player.FreeSpace())
	}
	return nil
}

func (e *Engine) validateSell(s *model.Session, d model.ActionData) error {
	if _, ok := s.PriceOf(d.Commodity); !ok {
		return reject("%q is not traded here", d.Commodity)
	}
	if d.Quantity < 1 {
		return reject("quantity must be at least 1")
	}
	if held := s.Player.Inventory[d.Commodity]; d.Quantity > held {
		return reject("you only have %d %s", held, d.Commodity)
	}
	return nil
}

func validateRepay(s *model.Session, d model.ActionData) error {
	switch {
	case d.Amount < 1:
		return reject("amount must be at least $1")
	case d.Amount > s.Player.Cash:
		return reject("not enough cash: have $%d", s.Player.Cash)
	case d.Amount > s.Player.Debt:
		return reject("you only owe $%d", s.Player.Debt)
	}
	return nil
}

func reject(format string, args ...any) error {
	return model.Reject(model.ErrValidationRejected, format, args...)
}
