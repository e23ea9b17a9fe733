package cooldown_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/streetwise/internal/domain/cooldown"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryTracker(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	window := 5 * time.Minute

	Convey("Given a new tracker", t, func() {
		tr := cooldown.NewInMemoryTracker()

		Convey("Then it starts empty", func() {
			So(tr.Size(), ShouldEqual, 0)
		})

		Convey("When a player is reserved for the first time", func() {
			ok, wait := tr.Reserve(ctx, "alice", t0, window)

			Convey("Then the reservation succeeds", func() {
				So(ok, ShouldBeTrue)
				So(wait, ShouldEqual, 0)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("Then a second reservation inside the window is refused", func() {
				ok, wait := tr.Reserve(ctx, "alice", t0.Add(2*time.Minute), window)
				So(ok, ShouldBeFalse)
				So(wait, ShouldEqual, 3*time.Minute)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("Then a reservation exactly at the window edge succeeds", func() {
				ok, _ := tr.Reserve(ctx, "alice", t0.Add(window), window)
				So(ok, ShouldBeTrue)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("Then other players are independent", func() {
				ok, _ := tr.Reserve(ctx, "bob", t0, window)
				So(ok, ShouldBeTrue)
				So(tr.Size(), ShouldEqual, 2)
			})
		})

		Convey("When a reservation is released", func() {
			tr.Reserve(ctx, "alice", t0, window)
			tr.Release(ctx, "alice", t0)

			Convey("Then the player may submit again immediately", func() {
				So(tr.Size(), ShouldEqual, 0)
				ok, _ := tr.Reserve(ctx, "alice", t0.Add(time.Second), window)
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When a reservation that replaced an older one is released", func() {
			tr.Reserve(ctx, "alice", t0, window)
			tr.Reserve(ctx, "bob", t0.Add(time.Minute), window)
			later := t0.Add(10 * time.Minute)
			tr.Reserve(ctx, "alice", later, window)
			tr.Release(ctx, "alice", later)

			Convey("Then the earlier acceptance is restored in age order", func() {
				So(tr.Size(), ShouldEqual, 2)
				So(tr.Prune(ctx, t0.Add(30*time.Second)), ShouldEqual, 1)
				So(tr.Size(), ShouldEqual, 1)
				ok, _ := tr.Reserve(ctx, "bob", t0.Add(2*time.Minute), window)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When releasing with a stale reservation time", func() {
			tr.Reserve(ctx, "alice", t0, window)
			tr.Release(ctx, "alice", t0.Add(-time.Hour))

			Convey("Then nothing changes", func() {
				So(tr.Size(), ShouldEqual, 1)
			})
		})

		Convey("When releasing an unknown key", func() {
			tr.Release(ctx, "ghost", t0)
			So(tr.Size(), ShouldEqual, 0)
		})

		Convey("When pruning", func() {
			for i := 0; i < 5; i++ {
				tr.Reserve(ctx, fmt.Sprintf("p%d", i), t0.Add(time.Duration(i)*time.Minute), window)
			}
			removed := tr.Prune(ctx, t0.Add(3*time.Minute))

			Convey("Then only entries older than the cutoff go", func() {
				So(removed, ShouldEqual, 3)
				So(tr.Size(), ShouldEqual, 2)
				ok, _ := tr.Reserve(ctx, "p0", t0.Add(4*time.Minute), window)
				So(ok, ShouldBeTrue)
				ok, _ = tr.Reserve(ctx, "p4", t0.Add(5*time.Minute), window)
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded tracker", t, func() {
		tr := cooldown.NewInMemoryTracker(cooldown.WithMaxSize(3))
		for i := 0; i < 3; i++ {
			tr.Reserve(ctx, fmt.Sprintf("p%d", i), t0.Add(time.Duration(i)*time.Second), window)
		}

		Convey("When it is at capacity", func() {
			ok, _ := tr.Reserve(ctx, "p3", t0.Add(3*time.Second), window)

			Convey("Then the oldest entry is evicted", func() {
				So(ok, ShouldBeTrue)
				So(tr.Size(), ShouldEqual, 3)
				ok, _ := tr.Reserve(ctx, "p0", t0.Add(4*time.Second), window)
				So(ok, ShouldBeTrue)
				ok, _ = tr.Reserve(ctx, "p3", t0.Add(5*time.Second), window)
				So(ok, ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded tracker", t, func() {
		tr := cooldown.NewInMemoryTracker(cooldown.WithMaxSize(0))

		Convey("When many players are reserved", func() {
			for i := 0; i < 1000; i++ {
				tr.Reserve(ctx, fmt.Sprintf("p%d", i), t0, window)
			}
			So(tr.Size(), ShouldEqual, 1000)
		})
	})

	Convey("Given concurrent submissions from the same player", t, func() {
		tr := cooldown.NewInMemoryTracker()
		var wg sync.WaitGroup
		var accepted atomic.Int32

		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := tr.Reserve(ctx, "alice", t0, window); ok {
					accepted.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one is accepted", func() {
			So(accepted.Load(), ShouldEqual, 1)
			So(tr.Size(), ShouldEqual, 1)
		})
	})
}
