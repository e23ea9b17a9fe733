package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/streetwise/internal/domain/engine"
	"github.com/okian/streetwise/internal/domain/market"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
	. "github.com/smartystreets/goconvey/convey"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func scripted(floats ...float64) *random.Scripted {
	return &random.Scripted{Floats: floats}
}

func newEngine(src random.Source) *engine.Engine {
	return engine.New(market.DefaultCatalog(),
		engine.WithRandom(src),
		engine.WithClock(func() time.Time { return fixedNow }),
	)
}

func shouldReject(actual any, expected ...any) string {
	err, _ := actual.(error)
	if err == nil {
		return "expected a rejection, got nil"
	}
	if !errors.Is(err, model.ErrValidationRejected) {
		return "expected ErrValidationRejected, got " + err.Error()
	}
	return ""
}

func TestNewSession(t *testing.T) {
	Convey("Given an engine", t, func() {
		eng := newEngine(random.Seeded(7))

		Convey("When a session is created", func() {
			s := eng.NewSession("abc")

			Convey("Then it starts with the documented defaults", func() {
				So(s.ID, ShouldEqual, "abc")
				So(s.Day, ShouldEqual, 1)
				So(s.Running, ShouldBeTrue)
				So(s.Over, ShouldBeFalse)
				So(s.Player.Cash, ShouldEqual, 2000)
				So(s.Player.Debt, ShouldEqual, 5000)
				So(s.Player.MaxInventory, ShouldEqual, 100)
				So(s.Player.Health, ShouldEqual, 100)
				So(s.Player.Location, ShouldEqual, "Downtown")
				So(len(s.Player.Inventory), ShouldEqual, 0)
				So(s.StartedAt, ShouldEqual, fixedNow)
			})

			Convey("Then day-one prices cover the catalog", func() {
				So(len(s.CurrentPrices), ShouldEqual, len(eng.Catalog().Commodities))
				for i, p := range s.CurrentPrices {
					So(p.Name, ShouldEqual, eng.Catalog().Commodities[i].Name)
					So(p.Price, ShouldBeGreaterThanOrEqualTo, 0)
				}
			})
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a fresh session with Sneakers at 300", t, func() {
		eng := newEngine(scripted())
		s := eng.NewSession("v")
		s.CurrentPrices[0].Price = 300

		Convey("Buy admits costs within one unit of the server price", func() {
			So(eng.Validate(s, model.Buy("Sneakers", 5, 1500)), ShouldBeNil)
			So(eng.Validate(s, model.Buy("Sneakers", 5, 1501)), ShouldBeNil)
			So(eng.Validate(s, model.Buy("Sneakers", 5, 1499)), ShouldBeNil)
		})

		Convey("Buy rejects a manipulated expected cost", func() {
			err := eng.Validate(s, model.Buy("Sneakers", 5, 1000))
			So(err, shouldReject)
			So(model.Reason(err), ShouldContainSubstring, "$1500")
			So(eng.Validate(s, model.Buy("Sneakers", 5, 1502)), shouldReject)
		})

		Convey("Buy rejects insufficient cash", func() {
			So(eng.Validate(s, model.Buy("Sneakers", 7, 2100)), shouldReject)
		})

		Convey("Buy rejects insufficient capacity", func() {
			s.Player.Inventory["Comics"] = 98
			So(eng.Validate(s, model.Buy("Sneakers", 3, 900)), shouldReject)
			So(eng.Validate(s, model.Buy("Sneakers", 2, 600)), ShouldBeNil)
		})

		Convey("Buy rejects unknown goods and non-positive quantities", func() {
			So(eng.Validate(s, model.Buy("Spices", 1, 10)), shouldReject)
			So(eng.Validate(s, model.Buy("Sneakers", 0, 0)), shouldReject)
			So(eng.Validate(s, model.Buy("Sneakers", -2, -600)), shouldReject)
		})

		Convey("Sell rejects more than held", func() {
			s.Player.Inventory["Sneakers"] = 3
			So(eng.Validate(s, model.Sell("Sneakers", 4)), shouldReject)
			So(eng.Validate(s, model.Sell("Sneakers", 3)), ShouldBeNil)
			So(eng.Validate(s, model.Sell("Watches", 1)), shouldReject)
		})

		Convey("Travel is admissible anywhere, including the current location", func() {
			So(eng.Validate(s, model.Travel("Harbor")), ShouldBeNil)
			So(eng.Validate(s, model.Travel("Downtown")), ShouldBeNil)
			So(eng.Validate(s, model.Travel("Atlantis")), ShouldBeNil)
		})

		Convey("Repay is bounded by cash and debt", func() {
			So(eng.Validate(s, model.Repay(1500)), ShouldBeNil)
			So(eng.Validate(s, model.Repay(0)), shouldReject)
			So(eng.Validate(s, model.Repay(2001)), shouldReject)
			s.Player.Cash = 9000
			So(eng.Validate(s, model.Repay(5001)), shouldReject)
		})

		Convey("Resolve needs a pending encounter offering the choice", func() {
			So(eng.Validate(s, model.Resolve(model.ChoicePay)), shouldReject)
			s.Pending = &model.Encounter{Kind: model.EncounterMugging, Demand: 50, Choices: []model.Choice{model.ChoicePay}}
			So(eng.Validate(s, model.Resolve(model.ChoiceFight)), shouldReject)
			So(eng.Validate(s, model.Resolve(model.ChoicePay)), ShouldBeNil)
		})

		Convey("A pending encounter blocks every other action", func() {
			s.Pending = &model.Encounter{Kind: model.EncounterPolice, Demand: 400, Choices: []model.Choice{model.ChoicePay}}
			err := eng.Validate(s, model.Travel("Harbor"))
			So(err, shouldReject)
			So(model.Reason(err), ShouldContainSubstring, "police")
		})

		Convey("Unknown action kinds are rejected", func() {
			So(eng.Validate(s, model.Action{Type: "steal"}), shouldReject)
		})

		Convey("A finished game accepts nothing", func() {
			s.Running = false
			s.Over = true
			So(eng.Validate(s, model.Travel("Harbor")), shouldReject)
		})

		Convey("A day past the maximum accepts nothing", func() {
			s.Day = model.MaxDays + 1
			So(eng.Validate(s, model.Sell("Sneakers", 1)), shouldReject)
		})

		Convey("A nil session is rejected", func() {
			So(eng.Validate(nil, model.Travel("Harbor")), shouldReject)
		})
	})
}

func TestExecute(t *testing.T) {
	Convey("Given a fresh session and a scripted source", t, func() {
		eng := newEngine(scripted())
		s := eng.NewSession("x")

		Convey("Example: buy 5 at 300 then sell them all", func() {
			s.CurrentPrices[0].Price = 300

			res, err := eng.Execute(s, model.Buy("Sneakers", 5, 1500))
			So(err, ShouldBeNil)
			So(res.Session.Player.Cash, ShouldEqual, 500)
			So(res.Session.Player.Inventory["Sneakers"], ShouldEqual, 5)
			So(len(res.Session.Player.Inventory), ShouldEqual, 1)
			So(res.Messages[0].Category, ShouldEqual, model.CategorySuccess)

			Convey("Then the original snapshot is untouched", func() {
				So(s.Player.Cash, ShouldEqual, 2000)
				So(len(s.Player.Inventory), ShouldEqual, 0)
			})

			Convey("Then selling at a changed price removes the key", func() {
				bought := res.Session
				bought.CurrentPrices[0].Price = 340
				res, err := eng.Execute(bought, model.Sell("Sneakers", 5))
				So(err, ShouldBeNil)
				So(res.Session.Player.Cash, ShouldEqual, 500+5*340)
				_, held := res.Session.Player.Inventory["Sneakers"]
				So(held, ShouldBeFalse)
				So(res.Session.Stats.Trades, ShouldEqual, 2)
			})

			Convey("Then a partial sale keeps the remainder", func() {
				res, err := eng.Execute(res.Session, model.Sell("Sneakers", 2))
				So(err, ShouldBeNil)
				So(res.Session.Player.Inventory["Sneakers"], ShouldEqual, 3)
			})
		})

		Convey("Buy cost comes from the session's prices, not the client", func() {
			s.CurrentPrices[0].Price = 300
			res, err := eng.Execute(s, model.Buy("Sneakers", 5, 1501))
			So(err, ShouldBeNil)
			So(res.Session.Player.Cash, ShouldEqual, 500)
		})

		Convey("A rejected action leaves the session and returns no result", func() {
			before := s.Clone()
			res, err := eng.Execute(s, model.Buy("Sneakers", 1000, 1))
			So(err, shouldReject)
			So(res.Session, ShouldBeNil)
			So(s, ShouldResemble, before)
		})

		Convey("Example: travel from day 1 compounds 5000 debt to 5250", func() {
			res, err := eng.Execute(s, model.Travel("Grand Central"))
			So(err, ShouldBeNil)
			next := res.Session
			So(next.Day, ShouldEqual, 2)
			So(next.Player.Debt, ShouldEqual, 5250)
			So(next.Player.Location, ShouldEqual, "Grand Central")
			So(next.Stats.Travels, ShouldEqual, 1)
			So(next.UpdatedAt, ShouldEqual, fixedNow)

			Convey("Then prices are regenerated with the hub modifier", func() {
				So(len(next.CurrentPrices), ShouldEqual, 7)
				// u=0: 300 * 0.5 * 1.2
				So(next.CurrentPrices[0].Price, ShouldEqual, 180)
				names := map[string]bool{}
				for _, p := range next.CurrentPrices {
					So(p.Price, ShouldBeGreaterThanOrEqualTo, 0)
					So(names[p.Name], ShouldBeFalse)
					names[p.Name] = true
				}
			})

			Convey("Then a zero draw selects no event", func() {
				So(len(res.Events), ShouldEqual, 0)
			})
		})

		Convey("Travel to an uncatalogued place prices it like a street", func() {
			res, err := eng.Execute(s, model.Travel("Atlantis"))
			So(err, ShouldBeNil)
			So(res.Session.Player.Location, ShouldEqual, "Atlantis")
			So(res.Session.Day, ShouldEqual, 2)
			So(res.Session.Player.Debt, ShouldEqual, 5250)
			// u=0: 300 * 0.5 * 1.0
			So(res.Session.CurrentPrices[0].Price, ShouldEqual, 150)
		})

		Convey("Travel prunes expired conditions and prices with the live ones", func() {
			s.Day = 3
			s.Conditions = []model.Condition{
				{Kind: model.ConditionBust, Commodities: []string{"Sneakers"}, UntilDay: 4},
				{Kind: model.ConditionSurge, UntilDay: 3},
			}
			res, err := eng.Execute(s, model.Travel("Downtown"))
			So(err, ShouldBeNil)
			So(len(res.Session.Conditions), ShouldEqual, 1)
			So(res.Session.CurrentPrices[0].Price, ShouldEqual, 450)
			So(res.Session.CurrentPrices[1].Price, ShouldEqual, 750)
			So(len(s.Conditions), ShouldEqual, 2)
		})

		Convey("Repay moves cash into debt", func() {
			res, err := eng.Execute(s, model.Repay(1500))
			So(err, ShouldBeNil)
			So(res.Session.Player.Cash, ShouldEqual, 500)
			So(res.Session.Player.Debt, ShouldEqual, 3500)
		})

		Convey("Traveling on the final day ends the game", func() {
			s.Day = model.MaxDays
			res, err := eng.Execute(s, model.Travel("Harbor"))
			So(err, ShouldBeNil)
			So(res.Ended, ShouldBeTrue)
			So(res.Session.Day, ShouldEqual, model.MaxDays)
			So(res.Session.Running, ShouldBeFalse)
			So(res.Session.Over, ShouldBeTrue)
			So(res.Session.Player.Debt, ShouldEqual, 5000)

			_, err = eng.Execute(res.Session, model.Travel("Harbor"))
			So(err, shouldReject)
		})
	})

	Convey("Given a travel that draws a police stop", t, func() {
		// Seven draws price day one, seven more price day two, then the
		// roulette lands in the police band.
		draws := make([]float64, 14, 15)
		eng := newEngine(scripted(append(draws, 0.88)...))
		s := eng.NewSession("p")

		res, err := eng.Execute(s, model.Travel("Harbor"))
		So(err, ShouldBeNil)

		Convey("Then the encounter is pending and nothing was taken", func() {
			So(len(res.Events), ShouldEqual, 1)
			So(res.Events[0].Kind, ShouldEqual, model.EventPolice)
			So(res.Events[0].RequiresDecision, ShouldBeTrue)
			So(res.Session.Pending, ShouldNotBeNil)
			So(res.Session.Player.Cash, ShouldEqual, 2000)
		})

		Convey("Then only resolve is admissible", func() {
			_, err := eng.Execute(res.Session, model.Travel("Uptown"))
			So(err, shouldReject)
		})

		Convey("Then paying resolves it", func() {
			paid, err := eng.Execute(res.Session, model.Resolve(model.ChoicePay))
			So(err, ShouldBeNil)
			So(paid.Session.Pending, ShouldBeNil)
			So(paid.Session.Player.Cash, ShouldEqual, 1600)
			So(len(paid.Messages), ShouldEqual, 1)
			So(res.Session.Pending, ShouldNotBeNil)
		})
	})
}

func TestInvariantsUnderRandomPlay(t *testing.T) {
	Convey("Given many random games", t, func() {
		src := random.Seeded(2024)
		eng := newEngine(src)
		names := eng.Catalog().Names()
		places := eng.Catalog().Locations

		for game := 0; game < 20; game++ {
			s := eng.NewSession("r")
			for step := 0; step < 400 && s.Running; step++ {
				var a model.Action
				switch {
				case s.Pending != nil:
					a = model.Resolve(s.Pending.Choices[src.IntN(len(s.Pending.Choices))])
				default:
					name := names[src.IntN(len(names))]
					qty := 1 + src.IntN(20)
					price, _ := s.PriceOf(name)
					switch src.IntN(4) {
					case 0:
						a = model.Buy(name, qty, price*qty)
					case 1:
						a = model.Sell(name, qty)
					case 2:
						a = model.Repay(1 + src.IntN(500))
					default:
						a = model.Travel(places[src.IntN(len(places))].Name)
					}
				}

				res, err := eng.Execute(s, a)
				if err != nil {
					So(errors.Is(err, model.ErrValidationRejected), ShouldBeTrue)
					continue
				}
				s = res.Session
				So(s.Player.Carried(), ShouldBeLessThanOrEqualTo, s.Player.MaxInventory)
				So(s.Player.Cash, ShouldBeGreaterThanOrEqualTo, 0)
				So(s.Player.Debt, ShouldBeGreaterThanOrEqualTo, 0)
				So(s.Player.Health, ShouldBeBetweenOrEqual, model.MinHealth, model.MaxHealth)
				So(s.Day, ShouldBeLessThanOrEqualTo, model.MaxDays)
				for _, qty := range s.Player.Inventory {
					So(qty, ShouldBeGreaterThan, 0)
				}
			}
		}
	})
}
