package engine

import (
	"fmt"
	"math"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
)

const (
	buyFlavorChance  = 0.10
	sellFlavorChance = 0.15
)

var buyFlavor = []string{
	"The seller counts the bills twice and nods.",
	"\"Pleasure doing business,\" he mutters.",
	"You stuff the goods into your coat and move on.",
}

var sellFlavor = []string{
	"The buyer doesn't even haggle. Should have asked for more.",
	"Cash in hand. Time to disappear.",
	"\"Come back anytime,\" she says, already walking away.",
}

// Result is the outcome of an admitted action.
type Result struct {
	Session  *model.Session
	Messages []model.Message
	Events   []model.Event
	// Ended is set when this action finished the game.
	Ended bool
}

// Execute validates a and applies it to a deep copy of s. On rejection s is
// untouched and the error carries the reason.
func (e *Engine) Execute(s *model.Session, a model.Action) (Result, error) {
	if err := e.Validate(s, a); err != nil {
		return Result{}, err
	}

	next := s.Clone()
	res := Result{Session: next}

	switch a.Type {
	case model.ActionBuy:
		e.buy(next, a.Data, &res)
	case model.ActionSell:
		e.sell(next, a.Data, &res)
	case model.ActionTravel:
		e.travel(next, a.Data.Destination, &res)
	case model.ActionRepay:
		next.Player.Cash -= a.Data.Amount
		next.Player.Debt -= a.Data.Amount
		res.Messages = append(res.Messages, success("You pay $%d toward your debt. $%d left to go.", a.Data.Amount, next.Player.Debt))
	case model.ActionResolve:
		res.Messages = append(res.Messages, e.events.Resolve(next, a.Data.Choice, e.src)...)
	}

	next.UpdatedAt = e.now()
	return res, nil
}

func (e *Engine) buy(s *model.Session, d model.ActionData, res *Result) {
	price, _ := s.PriceOf(d.Commodity)
	cost := price * d.Quantity
	s.Player.Cash -= cost
	s.Player.Inventory[d.Commodity] += d.Quantity
	s.Stats.Trades++
	res.Messages = append(res.Messages, success("Bought %d %s for $%d.", d.Quantity, d.Commodity, cost))
	if random.Chance(e.src, buyFlavorChance) {
		res.Messages = append(res.Messages, info("%s", buyFlavor[e.src.IntN(len(buyFlavor))]))
	}
}

func (e *Engine) sell(s *model.Session, d model.ActionData, res *Result) {
	price, _ := s.PriceOf(d.Commodity)
	revenue := price * d.Quantity
	s.Player.Cash += revenue
	if left := s.Player.Inventory[d.Commodity] - d.Quantity; left > 0 {
		s.Player.Inventory[d.Commodity] = left
	} else {
		delete(s.Player.Inventory, d.Commodity)
	}
	s.Stats.Trades++
	res.Messages = append(res.Messages, success("Sold %d %s for $%d.", d.Quantity, d.Commodity, revenue))
	if random.Chance(e.src, sellFlavorChance) {
		res.Messages = append(res.Messages, info("%s", sellFlavor[e.src.IntN(len(sellFlavor))]))
	}
}

// travel advances one day. Leaving on the last day ends the run instead;
// the day counter never passes MaxDays.
func (e *Engine) travel(s *model.Session, dest string, res *Result) {
	if s.Day >= model.MaxDays {
		s.Running = false
		s.Over = true
		res.Ended = true
		res.Messages = append(res.Messages, info("Day %d is over. You finish with a net worth of $%d.", s.Day, s.Player.NetWorth()))
		return
	}

	s.Player.Location = dest
	s.Day++
	s.Player.Debt = int(math.Floor(float64(s.Player.Debt) * (1 + model.DailyInterestRate)))
	s.Conditions = activeConditions(s.Conditions, s.Day)
	s.CurrentPrices = e.catalog.Prices(s.Day, dest, s.Conditions, e.src)
	s.Stats.Travels++
	res.Messages = append(res.Messages, info("Day %d. You arrive at %s.", s.Day, dest))

	if ev := e.events.Draw(s, e.src); ev != nil {
		res.Events = append(res.Events, *ev)
	}
}

// activeConditions drops conditions that expired before day.
func activeConditions(conds []model.Condition, day int) []model.Condition {
	var out []model.Condition
	for _, c := range conds {
		if c.UntilDay >= day {
			out = append(out, c)
		}
	}
	return out
}

func success(format string, args ...any) model.Message {
	return model.Message{Category: model.CategorySuccess, Text: fmt.Sprintf(format, args...)}
}

func info(format string, args ...any) model.Message {
	return model.Message{Category: model.CategoryInfo, Text: fmt.Sprintf(format, args...)}
}
