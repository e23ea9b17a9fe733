package market

import (
	"math"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
)

// Condition multipliers applied during price generation.
const (
	bustMultiplier  = 3.0
	surgeMultiplier = 1.5
	baseFloor       = 0.5
)

// Prices derives the board for a location on a given day. Each commodity
// consumes exactly one draw from src:
//
//	price = floor(base * (0.5 + u*volatility) * locationModifier * conditions)
//
// Conditions whose UntilDay is before day are ignored. Unknown locations
// price like a plain street.
func (c *Catalog) Prices(day int, location string, active []model.Condition, src random.Source) []model.Price {
	mod := 1.0
	if loc, ok := c.Location(location); ok {
		mod = loc.Kind.Modifier()
	}

	out := make([]model.Price, 0, len(c.Commodities))
	for _, com := range c.Commodities {
		p := float64(com.BasePrice) * (baseFloor + src.Float64()*com.Volatility)
		p *= mod
		for _, cond := range active {
			if cond.UntilDay < day || !cond.Affects(com.Name) {
				continue
			}
			switch cond.Kind {
			case model.ConditionBust:
				p *= bustMultiplier
			case model.ConditionSurge:
				p *= surgeMultiplier
			}
		}
		out = append(out, model.Price{Name: com.Name, Price: int(math.Floor(p))})
	}
	return out
}
