package simulate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/streetwise/internal/domain/engine"
	"github.com/okian/streetwise/internal/domain/market"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
	"github.com/okian/streetwise/pkg/logger"
)

// maxSteps bounds a single game; a strategy that never travels is a bug.
const maxSteps = model.MaxDays * (maxActionsPerDay + 4)

// ErrRunaway is returned when a game does not finish within maxSteps.
var ErrRunaway = errors.New("game did not finish")

// Outcome summarizes one finished game.
type Outcome struct {
	NetWorth int
	Day      int
	Actions  int
	Rejected int
	Stats    model.Stats
}

// Play runs one game to completion with strat. Rejected actions are counted
// and followed by a forced travel.
func Play(eng *engine.Engine, strat Strategy, src random.Source, id string) (Outcome, error) {
	sess := eng.NewSession(id)
	var out Outcome
	day, step := sess.Day, 0

	for i := 0; i < maxSteps; i++ {
		if sess.Day != day {
			day, step = sess.Day, 0
		}
		a := strat.Next(sess, eng.Catalog(), step, src)
		res, err := eng.Execute(sess, a)
		if err != nil {
			if !errors.Is(err, model.ErrValidationRejected) {
				return out, err
			}
			out.Rejected++
			step = maxActionsPerDay
			continue
		}
		out.Actions++
		step++
		sess = res.Session
		if res.Ended {
			out.NetWorth = sess.Player.NetWorth()
			out.Day = sess.Day
			out.Stats = sess.Stats
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: session %s after %d steps", ErrRunaway, id, maxSteps)
}

// RunLocal plays cfg.Games games against an in-process engine over catalog.
func RunLocal(ctx context.Context, cfg Config, catalog *market.Catalog) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = market.DefaultCatalog()
	}

	start := time.Now()
	log := logger.Get().Named("simulate")
	log.Info(ctx, "starting local simulation",
		logger.Int("games", cfg.Games),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", int64(cfg.Seed)),
	)

	outcomes := make([]Outcome, cfg.Games)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Games; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			src := random.Seeded(cfg.Seed + uint64(i))
			eng := engine.New(catalog, engine.WithRandom(src))
			out, err := Play(eng, RandomStrategy{}, src, fmt.Sprintf("sim-%d", i))
			if err != nil {
				return err
			}
			outcomes[i] = out
			if cfg.Verbose {
				log.Debug(gctx, "game finished", logger.Int("game", i), logger.Int("netWorth", out.NetWorth))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("local simulation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := NewReport(outcomes)
	report.Duration = time.Since(start)
	return report, nil
}
