package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/okian/streetwise/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestSession_Clone(t *testing.T) {
	convey.Convey("Given a populated session", t, func() {
		s := &model.Session{
			ID:  "s-1",
			Day: 4,
			Player: model.Player{
				Cash:         900,
				Inventory:    map[string]int{"Vinyl": 3},
				MaxInventory: 100,
			},
			CurrentPrices: []model.Price{{Name: "Vinyl", Price: 55}},
			Pending:       &model.Encounter{Kind: model.EncounterPolice, Demand: 200, Choices: []model.Choice{model.ChoicePay}},
			Conditions:    []model.Condition{{Kind: model.ConditionBust, Commodities: []string{"Vinyl"}, UntilDay: 5}},
		}

		convey.Convey("When the clone is mutated", func() {
			c := s.Clone()
			c.Player.Inventory["Vinyl"] = 99
			c.CurrentPrices[0].Price = 1
			c.Pending.Demand = 1
			c.Pending.Choices[0] = model.ChoiceRun
			c.Conditions[0].Commodities[0] = "Comics"

			convey.Convey("Then the original is untouched", func() {
				convey.So(s.Player.Inventory["Vinyl"], convey.ShouldEqual, 3)
				convey.So(s.CurrentPrices[0].Price, convey.ShouldEqual, 55)
				convey.So(s.Pending.Demand, convey.ShouldEqual, 200)
				convey.So(s.Pending.Choices[0], convey.ShouldEqual, model.ChoicePay)
				convey.So(s.Conditions[0].Commodities[0], convey.ShouldEqual, "Vinyl")
			})
		})

		convey.Convey("When looking up prices", func() {
			p, ok := s.PriceOf("Vinyl")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(p, convey.ShouldEqual, 55)

			_, ok = s.PriceOf("Spices")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})

	convey.Convey("Cloning a nil session yields nil", t, func() {
		var s *model.Session
		convey.So(s.Clone(), convey.ShouldBeNil)
	})
}

func TestPlayer_Capacity(t *testing.T) {
	convey.Convey("Given a player carrying goods", t, func() {
		p := model.Player{Cash: 100, Debt: 40, Inventory: map[string]int{"A": 10, "B": 15}, MaxInventory: 100}

		convey.So(p.Carried(), convey.ShouldEqual, 25)
		convey.So(p.FreeSpace(), convey.ShouldEqual, 75)
		convey.So(p.NetWorth(), convey.ShouldEqual, 60)
	})
}

func TestCondition_Affects(t *testing.T) {
	convey.Convey("A bust affects only named commodities", t, func() {
		c := model.Condition{Kind: model.ConditionBust, Commodities: []string{"Phones"}}
		convey.So(c.Affects("Phones"), convey.ShouldBeTrue)
		convey.So(c.Affects("Vinyl"), convey.ShouldBeFalse)
	})

	convey.Convey("A surge affects everything", t, func() {
		c := model.Condition{Kind: model.ConditionSurge}
		convey.So(c.Affects("Vinyl"), convey.ShouldBeTrue)
	})
}

func TestTimeframe(t *testing.T) {
	convey.Convey("Given timeframe strings", t, func() {
		now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

		tf, err := model.ParseTimeframe("")
		convey.So(err, convey.ShouldBeNil)
		convey.So(tf, convey.ShouldEqual, model.TimeframeAll)
		convey.So(tf.Since(now).IsZero(), convey.ShouldBeTrue)

		tf, err = model.ParseTimeframe("Daily")
		convey.So(err, convey.ShouldBeNil)
		convey.So(tf.Since(now), convey.ShouldEqual, now.Add(-24*time.Hour))

		tf, err = model.ParseTimeframe("weekly")
		convey.So(err, convey.ShouldBeNil)
		convey.So(tf.Since(now), convey.ShouldEqual, now.Add(-7*24*time.Hour))

		_, err = model.ParseTimeframe("monthly")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestRejection(t *testing.T) {
	convey.Convey("Given a rejection", t, func() {
		err := model.Reject(model.ErrValidationRejected, "not enough cash (need %d)", 50)

		convey.So(errors.Is(err, model.ErrValidationRejected), convey.ShouldBeTrue)
		convey.So(errors.Is(err, model.ErrIntegrityRejected), convey.ShouldBeFalse)
		convey.So(model.Reason(err), convey.ShouldEqual, "not enough cash (need 50)")
		convey.So(model.Reason(errors.New("plain")), convey.ShouldEqual, "plain")
		convey.So(model.Reason(nil), convey.ShouldEqual, "")
	})
}

func TestPlayerKey(t *testing.T) {
	convey.Convey("Player keys ignore case and padding", t, func() {
		convey.So(model.PlayerKey(" Ana "), convey.ShouldEqual, "ana")
		convey.So(model.PlayerKey("ANA"), convey.ShouldEqual, model.PlayerKey("ana"))
		convey.So(model.PlayerKey("Big Al"), convey.ShouldEqual, "big al")
	})
}
