package events

import (
	"fmt"
	"math"
	"slices"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
)

// Effect bounds.
const (
	benefactorMin = 500
	benefactorMax = 2000
	findMin       = 50
	findMax       = 300

	bustMinGoods  = 2
	bustMaxGoods  = 3
	bustMinFactor = 2.0
	bustMaxFactor = 4.0

	surgeMinFactor = 1.5
	surgeMaxFactor = 2.5
	crashMinFactor = 0.3
	crashMaxFactor = 0.7

	treatmentMin  = 200
	treatmentMax  = 800
	sicknessMinHP = 10
	sicknessMaxHP = 25

	policeDemandPct  = 20
	policeDemandMin  = 100
	muggingMinPct    = 10
	muggingMaxPct    = 30
	muggingDemandMin = 50
)

var rumors = []string{
	"A regular tells you the harbor cranes are idle again. Nobody knows why.",
	"Someone is handing out flyers for a sneaker drop that never happens.",
	"You overhear two dealers arguing about who owns the Uptown corner.",
	"A street preacher warns that the market always wins.",
	"The subway is running late. Same as every day.",
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithTable replaces the default roulette table.
func WithTable(t Table) Option {
	return func(e *Engine) {
		if t.Total() > 0 {
			e.table = t
		}
	}
}

// Engine selects and applies random events. It holds no per-session state.
type Engine struct {
	table Table
}

// New constructs an Engine with the default table unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		table: DefaultTable(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the roulette table in use.
func (e *Engine) Table() Table { return e.table }

// Draw picks one event kind and applies it to s. It returns nil when the
// nothing-happens kind is selected.
func (e *Engine) Draw(s *model.Session, src random.Source) *model.Event {
	return e.Apply(s, e.table.Pick(src), src)
}

// Apply is the central dispatcher: kind-specific mutation of s. Price shocks
// never touch cash; health stays within [MinHealth, MaxHealth].
func (e *Engine) Apply(s *model.Session, kind model.EventKind, src random.Source) *model.Event {
	var ev *model.Event
	switch kind {
	case model.EventRumor:
		ev = &model.Event{Category: model.CategoryInfo, Text: rumors[src.IntN(len(rumors))]}
	case model.EventBenefactor:
		gift := random.Between(src, benefactorMin, benefactorMax)
		s.Player.Cash += gift
		ev = &model.Event{Category: model.CategorySuccess, Text: fmt.Sprintf("An old friend from the neighborhood slips you $%d. No questions asked.", gift)}
	case model.EventStreetFind:
		found := random.Between(src, findMin, findMax)
		s.Player.Cash += found
		ev = &model.Event{Category: model.CategorySuccess, Text: fmt.Sprintf("You find a wallet on the sidewalk with $%d inside.", found)}
	case model.EventBust:
		ev = e.bust(s, src)
	case model.EventSurge:
		factor := random.FloatBetween(src, surgeMinFactor, surgeMaxFactor)
		shockAll(s, factor)
		s.Conditions = append(s.Conditions, model.Condition{Kind: model.ConditionSurge, UntilDay: s.Day + 1})
		ev = &model.Event{Category: model.CategoryInfo, Text: "Tourists flood the streets. Everyone is buying and prices are climbing!"}
	case model.EventCrash:
		factor := random.FloatBetween(src, crashMinFactor, crashMaxFactor)
		shockAll(s, factor)
		ev = &model.Event{Category: model.CategoryInfo, Text: "A warehouse full of knockoffs just hit the street. Prices are crashing!"}
	case model.EventSickness:
		ev = sickness(s, src)
	case model.EventPolice:
		demand := max(policeDemandMin, s.Player.Cash*policeDemandPct/100)
		ev = encounter(s, model.EncounterPolice, demand,
			fmt.Sprintf("Officer Hardass stops you and wants $%d to look the other way.", demand))
	case model.EventMugging:
		pct := random.Between(src, muggingMinPct, muggingMaxPct)
		demand := max(muggingDemandMin, s.Player.Cash*pct/100)
		ev = encounter(s, model.EncounterMugging, demand,
			fmt.Sprintf("A mugger corners you in an alley and demands $%d.", demand))
	default:
		return nil
	}
	ev.Kind = kind
	s.Stats.Events++
	return ev
}

// bust shocks 2-3 distinct commodities upward and leaves a one-day
// condition so the shortage lingers into tomorrow's prices.
func (e *Engine) bust(s *model.Session, src random.Source) *model.Event {
	n := min(random.Between(src, bustMinGoods, bustMaxGoods), len(s.CurrentPrices))
	idx := make([]int, len(s.CurrentPrices))
	for i := range idx {
		idx[i] = i
	}
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		j := i + src.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		p := &s.CurrentPrices[idx[i]]
		p.Price = int(math.Floor(float64(p.Price) * random.FloatBetween(src, bustMinFactor, bustMaxFactor)))
		names = append(names, p.Name)
	}
	s.Conditions = append(s.Conditions, model.Condition{Kind: model.ConditionBust, Commodities: names, UntilDay: s.Day + 1})
	return &model.Event{
		Category: model.CategoryWarning,
		Text:     fmt.Sprintf("Customs seized a shipment. %s are suddenly scarce and expensive!", joinNames(names)),
	}
}

func sickness(s *model.Session, src random.Source) *model.Event {
	cost := random.Between(src, treatmentMin, treatmentMax)
	if s.Player.Cash >= cost {
		s.Player.Cash -= cost
		return &model.Event{Category: model.CategoryWarning, Text: fmt.Sprintf("You came down with something nasty. The clinic charged $%d.", cost)}
	}
	loss := random.Between(src, sicknessMinHP, sicknessMaxHP)
	s.Player.Health = clampHealth(s.Player.Health - loss)
	return &model.Event{Category: model.CategoryWarning, Text: fmt.Sprintf("You got sick and couldn't afford the $%d clinic. You lose %d health.", cost, loss)}
}

// encounter records the pending decision; nothing else is mutated until the
// player resolves it.
func encounter(s *model.Session, kind model.EncounterKind, demand int, text string) *model.Event {
	enc := model.Encounter{
		Kind:    kind,
		Demand:  demand,
		Choices: []model.Choice{model.ChoicePay, model.ChoiceRun, model.ChoiceFight},
	}
	s.Pending = &enc
	view := enc
	view.Choices = slices.Clone(enc.Choices)
	return &model.Event{
		Category:         model.CategoryWarning,
		Text:             text,
		RequiresDecision: true,
		Encounter:        &view,
	}
}

func shockAll(s *model.Session, factor float64) {
	for i := range s.CurrentPrices {
		p := &s.CurrentPrices[i]
		p.Price = int(math.Floor(float64(p.Price) * factor))
	}
}

func clampHealth(h int) int {
	return min(max(h, model.MinHealth), model.MaxHealth)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return "Goods"
	case 1:
		return names[0]
	}
	out := names[0]
	for _, n := range names[1 : len(names)-1] {
		out += ", " + n
	}
	return out + " and " + names[len(names)-1]
}
