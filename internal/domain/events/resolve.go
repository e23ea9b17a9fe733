package events

import (
	"fmt"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
)

// Encounter outcome odds and penalties.
const (
	policeEscapeChance = 0.6
	policeWinChance    = 0.3
	policeRunHP        = 10
	policeFightHP      = 30

	muggingEscapeChance = 0.5
	muggingWinChance    = 0.4
	muggingRunHP        = 15
	muggingFightHP      = 25
	muggerWalletMin     = 50
	muggerWalletMax     = 200
)

// Resolve applies the player's answer to the pending encounter and clears
// it. The caller must have validated that an encounter is pending and offers
// choice. Cash never goes negative and health stays clamped.
func (e *Engine) Resolve(s *model.Session, choice model.Choice, src random.Source) []model.Message {
	enc := s.Pending
	if enc == nil {
		return nil
	}
	s.Pending = nil

	switch enc.Kind {
	case model.EncounterPolice:
		return resolvePolice(s, enc.Demand, choice, src)
	case model.EncounterMugging:
		return resolveMugging(s, enc.Demand, choice, src)
	default:
		return nil
	}
}

func resolvePolice(s *model.Session, demand int, choice model.Choice, src random.Source) []model.Message {
	switch choice {
	case model.ChoicePay:
		paid := takeCash(s, demand)
		return []model.Message{warn("You hand over $%d. The officer pockets it and walks away.", paid)}
	case model.ChoiceRun:
		if random.Chance(src, policeEscapeChance) {
			s.Stats.EncountersWon++
			return []model.Message{ok("You duck into the subway and lose him.")}
		}
		s.Stats.EncountersLost++
		s.Player.Inventory = map[string]int{}
		s.Player.Health = clampHealth(s.Player.Health - policeRunHP)
		return []model.Message{warn("He tackles you. Your whole stash is confiscated and you lose %d health.", policeRunHP)}
	case model.ChoiceFight:
		if random.Chance(src, policeWinChance) {
			s.Stats.EncountersWon++
			return []model.Message{ok("You shove him into a trash can and get away clean.")}
		}
		s.Stats.EncountersLost++
		s.Player.Health = clampHealth(s.Player.Health - policeFightHP)
		paid := takeCash(s, demand)
		return []model.Message{warn("Bad idea. You take a beating (-%d health) and he takes $%d.", policeFightHP, paid)}
	}
	return nil
}

func resolveMugging(s *model.Session, demand int, choice model.Choice, src random.Source) []model.Message {
	switch choice {
	case model.ChoicePay:
		paid := takeCash(s, demand)
		return []model.Message{warn("You give up $%d. The mugger disappears into the crowd.", paid)}
	case model.ChoiceRun:
		if random.Chance(src, muggingEscapeChance) {
			s.Stats.EncountersWon++
			return []model.Message{ok("You sprint three blocks and the mugger gives up.")}
		}
		s.Stats.EncountersLost++
		s.Player.Health = clampHealth(s.Player.Health - muggingRunHP)
		paid := takeCash(s, demand)
		return []model.Message{warn("He catches you. You lose %d health and $%d.", muggingRunHP, paid)}
	case model.ChoiceFight:
		if random.Chance(src, muggingWinChance) {
			s.Stats.EncountersWon++
			loot := random.Between(src, muggerWalletMin, muggerWalletMax)
			s.Player.Cash += loot
			return []model.Message{ok("You knock the mugger out cold and take his wallet: $%d.", loot)}
		}
		s.Stats.EncountersLost++
		s.Player.Health = clampHealth(s.Player.Health - muggingFightHP)
		paid := takeCash(s, demand)
		return []model.Message{warn("The mugger was tougher than he looked. You lose %d health and $%d.", muggingFightHP, paid)}
	}
	return nil
}

// takeCash removes up to amount and returns what was actually taken.
func takeCash(s *model.Session, amount int) int {
	taken := min(amount, s.Player.Cash)
	if taken < 0 {
		taken = 0
	}
	s.Player.Cash -= taken
	return taken
}

func ok(format string, args ...any) model.Message {
	return model.Message{Category: model.CategorySuccess, Text: fmt.Sprintf(format, args...)}
}

func warn(format string, args ...any) model.Message {
	return model.Message{Category: model.CategoryWarning, Text: fmt.Sprintf(format, args...)}
}
