package scoregate_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/scoregate"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeHistory struct {
	entries map[string]model.Entry
	err     error
	calls   int
}

func (f *fakeHistory) LatestForPlayer(_ context.Context, key string) (model.Entry, error) {
	f.calls++
	if f.err != nil {
		return model.Entry{}, f.err
	}
	e, ok := f.entries[key]
	if !ok {
		return model.Entry{}, model.ErrNotFound
	}
	return e, nil
}

const startMs = int64(1_700_000_000_000)

func validSubmission() model.Submission {
	gd := model.GameData{
		Score:       12000,
		Day:         30,
		StartTime:   startMs,
		EndTime:     startMs + 10*60*1000,
		PlayerStats: model.PlayerStats{Cash: 17000, Debt: 5000, MaxInventory: 100, Health: 80},
	}
	return model.Submission{
		PlayerName:    "Ana",
		GameData:      gd,
		IntegrityHash: scoregate.Hash(gd, scoregate.DefaultHashLength),
	}
}

// resign recomputes the hash after a test mutates the payload, so only the
// check under test can fail.
func resign(sub model.Submission) model.Submission {
	sub.IntegrityHash = scoregate.Hash(sub.GameData, scoregate.DefaultHashLength)
	return sub
}

func shouldBeIntegrityRejection(actual any, _ ...any) string {
	err, _ := actual.(error)
	if !errors.Is(err, model.ErrIntegrityRejected) {
		return "expected an integrity rejection"
	}
	return ""
}

func TestHash(t *testing.T) {
	Convey("Given a fixed game outcome", t, func() {
		gd := validSubmission().GameData

		Convey("Then the digest is stable and truncated", func() {
			So(scoregate.Hash(gd, 16), ShouldEqual, "3f6561723ba4eb1a")
			So(len(scoregate.Hash(gd, 0)), ShouldEqual, 64)
			So(strings.HasPrefix(scoregate.Hash(gd, 0), scoregate.Hash(gd, 16)), ShouldBeTrue)
		})

		Convey("Then any critical field changes it", func() {
			base := scoregate.Hash(gd, 16)
			gd.PlayerStats.Health = 81
			So(scoregate.Hash(gd, 16), ShouldNotEqual, base)
		})

		Convey("Then declared events do not take part", func() {
			base := scoregate.Hash(gd, 16)
			gd.GameEvents = []string{"bust"}
			So(scoregate.Hash(gd, 16), ShouldEqual, base)
		})
	})
}

func TestGate_Check(t *testing.T) {
	Convey("Given a gate with default thresholds", t, func() {
		g := scoregate.New()
		sub := validSubmission()

		Convey("A plausible, correctly signed run passes", func() {
			So(g.Check(sub), ShouldBeNil)
		})

		Convey("Hash comparison ignores case and padding", func() {
			sub.IntegrityHash = " " + strings.ToUpper(sub.IntegrityHash) + " "
			So(g.Check(sub), ShouldBeNil)
		})

		Convey("A run under five minutes is rejected", func() {
			sub.GameData.EndTime = startMs + 4*60*1000 + 59*1000
			So(g.Check(resign(sub)), shouldBeIntegrityRejection)
		})

		Convey("A run of exactly five minutes passes", func() {
			sub.GameData.EndTime = startMs + 5*60*1000
			So(g.Check(resign(sub)), ShouldBeNil)
		})

		Convey("A run that ends before it starts is rejected", func() {
			sub.GameData.EndTime = startMs - 1
			So(g.Check(resign(sub)), shouldBeIntegrityRejection)
		})

		Convey("A score outside the band is rejected", func() {
			sub.GameData.Score = 200_000_000
			sub.GameData.PlayerStats.Cash = 200_005_000
			So(g.Check(resign(sub)), shouldBeIntegrityRejection)
		})

		Convey("A day outside [1, 30] is rejected", func() {
			sub.GameData.Day = 31
			So(g.Check(resign(sub)), shouldBeIntegrityRejection)
			sub.GameData.Day = 0
			So(g.Check(resign(sub)), shouldBeIntegrityRejection)
		})

		Convey("A score more than 1000 away from net worth is rejected", func() {
			sub.GameData.Score = 13001
			err := g.Check(resign(sub))
			So(err, shouldBeIntegrityRejection)
			So(model.Reason(err), ShouldContainSubstring, "net worth")
		})

		Convey("A score exactly 1000 away from net worth passes", func() {
			sub.GameData.Score = 11000
			So(g.Check(resign(sub)), ShouldBeNil)
		})

		Convey("A tampered payload with the original hash is rejected", func() {
			sub.GameData.PlayerStats.Cash += 500
			sub.GameData.Score += 500
			err := g.Check(sub)
			So(err, shouldBeIntegrityRejection)
			So(model.Reason(err), ShouldContainSubstring, "hash")
		})

		Convey("Invalid names are rejected", func() {
			for _, name := range []string{"", "   ", strings.Repeat("x", 25), "<script>", "a\nb"} {
				sub.PlayerName = name
				So(g.Check(sub), shouldBeIntegrityRejection)
			}
		})
	})

	Convey("Given a gate with custom thresholds", t, func() {
		g := scoregate.New(
			scoregate.WithMinDuration(time.Minute),
			scoregate.WithScoreTolerance(10),
			scoregate.WithHashLength(8),
		)
		sub := validSubmission()
		sub.GameData.EndTime = startMs + 2*60*1000
		sub.IntegrityHash = scoregate.Hash(sub.GameData, 8)

		So(g.Check(sub), ShouldBeNil)
		So(g.Hash(sub.GameData), ShouldEqual, sub.IntegrityHash)

		sub.GameData.Score = 12011
		sub.IntegrityHash = scoregate.Hash(sub.GameData, 8)
		So(g.Check(sub), shouldBeIntegrityRejection)
	})
}

func TestGate_Admit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	Convey("Given a gate with history", t, func() {
		hist := &fakeHistory{entries: map[string]model.Entry{}}
		g := scoregate.New(scoregate.WithHistory(hist))
		sub := validSubmission()

		Convey("A first submission is admitted", func() {
			So(g.Admit(ctx, sub, now), ShouldBeNil)
			So(hist.calls, ShouldEqual, 1)
		})

		Convey("A resubmission within five minutes is rate limited", func() {
			hist.entries["ana"] = model.Entry{PlayerName: "Ana", SubmittedAt: now.Add(-2 * time.Minute)}
			sub.PlayerName = " ANA "
			err := g.Admit(ctx, sub, now)
			So(errors.Is(err, model.ErrRateLimited), ShouldBeTrue)

			var rl *scoregate.RateLimitError
			So(errors.As(err, &rl), ShouldBeTrue)
			So(rl.RetryAfter, ShouldEqual, 3*time.Minute)
		})

		Convey("A resubmission after the cooldown is admitted", func() {
			hist.entries["ana"] = model.Entry{SubmittedAt: now.Add(-5 * time.Minute)}
			So(g.Admit(ctx, sub, now), ShouldBeNil)
		})

		Convey("Integrity checks run before the history lookup", func() {
			sub.IntegrityHash = "0000000000000000"
			So(g.Admit(ctx, sub, now), shouldBeIntegrityRejection)
			So(hist.calls, ShouldEqual, 0)
		})

		Convey("A history failure is a storage error", func() {
			hist.err = errors.New("disk on fire")
			err := g.Admit(ctx, sub, now)
			So(errors.Is(err, model.ErrStorage), ShouldBeTrue)
		})
	})

	Convey("Given a gate without history", t, func() {
		g := scoregate.New()
		So(g.Admit(ctx, validSubmission(), now), ShouldBeNil)
		So(g.Cooldown(), ShouldEqual, 5*time.Minute)
	})
}
