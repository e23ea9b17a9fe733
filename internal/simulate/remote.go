package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/streetwise/internal/domain/market"
	"github.com/okian/streetwise/internal/domain/model"
	"github.com/okian/streetwise/internal/domain/random"
	"github.com/okian/streetwise/internal/domain/scoregate"
	"github.com/okian/streetwise/pkg/logger"
)

// ErrUnexpectedStatus is returned when the server answers outside the API
// contract.
var ErrUnexpectedStatus = errors.New("unexpected status")

// client talks to the game API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// do sends body as JSON and decodes the response into out when the status
// is one of ok. It returns the status code.
func (c *client) do(ctx context.Context, method, path, token string, body, out any, ok ...int) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	for _, code := range ok {
		if resp.StatusCode == code {
			if out != nil {
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
				}
			}
			return resp.StatusCode, nil
		}
	}
	return resp.StatusCode, fmt.Errorf("%w: %s %s answered %d", ErrUnexpectedStatus, method, path, resp.StatusCode)
}

type sessionResponse struct {
	Session *model.Session `json:"session"`
	Token   string         `json:"token"`
}

type actionResponse struct {
	Admissible bool           `json:"admissible"`
	Reason     string         `json:"reason"`
	Session    *model.Session `json:"session"`
	Ended      bool           `json:"ended"`
}

// playRemote plays one game through the API and returns its final state.
func (c *client) playRemote(ctx context.Context, strat Strategy, catalog *market.Catalog, src random.Source) (Outcome, *model.Session, error) {
	var created sessionResponse
	if _, err := c.do(ctx, http.MethodPost, "/sessions", "", nil, &created, http.StatusCreated); err != nil {
		return Outcome{}, nil, err
	}
	sess := created.Session
	path := "/sessions/" + sess.ID + "/actions"

	var out Outcome
	day, step := sess.Day, 0
	for i := 0; i < maxSteps; i++ {
		if sess.Day != day {
			day, step = sess.Day, 0
		}
		var res actionResponse
		code, err := c.do(ctx, http.MethodPost, path, created.Token, strat.Next(sess, catalog, step, src), &res,
			http.StatusOK, http.StatusUnprocessableEntity)
		if err != nil {
			return out, nil, err
		}
		if code == http.StatusUnprocessableEntity {
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
			return out, sess, nil
		}
	}
	return out, nil, fmt.Errorf("%w: session %s after %d steps", ErrRunaway, sess.ID, maxSteps)
}

// submit posts the finished run as a score claiming cfg.DeclaredDuration.
func (c *client) submit(ctx context.Context, cfg Config, name string, sess *model.Session) (bool, error) {
	end := time.Now()
	gd := model.GameData{
		Score:     sess.Player.NetWorth(),
		Day:       sess.Day,
		StartTime: end.Add(-cfg.DeclaredDuration).UnixMilli(),
		EndTime:   end.UnixMilli(),
		PlayerStats: model.PlayerStats{
			Cash:         sess.Player.Cash,
			Debt:         sess.Player.Debt,
			MaxInventory: sess.Player.MaxInventory,
			Health:       sess.Player.Health,
		},
	}
	sub := model.Submission{PlayerName: name, GameData: gd, IntegrityHash: scoregate.Hash(gd, cfg.HashLength)}
	code, err := c.do(ctx, http.MethodPost, "/scores", "", sub, nil,
		http.StatusCreated, http.StatusUnprocessableEntity, http.StatusTooManyRequests)
	if err != nil {
		return false, err
	}
	return code == http.StatusCreated, nil
}

// RunRemote plays cfg.Games games against the server at cfg.BaseURL,
// submits every finished run and checks the leaderboard ordering.
func RunRemote(ctx context.Context, cfg Config, catalog *market.Catalog) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	}
	if catalog == nil {
		catalog = market.DefaultCatalog()
	}

	start := time.Now()
	log := logger.Get().Named("simulate")
	c := newClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if _, err := c.do(ctx, http.MethodGet, "/healthz", "", nil, nil, http.StatusOK); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "starting remote simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("games", cfg.Games),
		logger.Int("workers", cfg.Workers),
	)

	// Step 2: Play and submit concurrently
	outcomes := make([]Outcome, cfg.Games)
	var (
		mu        sync.Mutex
		submitted int
		accepted  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Games; i++ {
		g.Go(func() error {
			src := random.Seeded(cfg.Seed + uint64(i))
			out, sess, err := c.playRemote(gctx, RandomStrategy{}, catalog, src)
			if err != nil {
				return err
			}
			outcomes[i] = out
			ok, err := c.submit(gctx, cfg, fmt.Sprintf("sim-%d-%d", cfg.Seed, i), sess)
			if err != nil {
				return err
			}
			mu.Lock()
			submitted++
			if ok {
				accepted++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("remote simulation: %w", err)
	}

	// Step 3: Verify the leaderboard
	var top []model.Entry
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/leaderboard?limit=%d", cfg.TopN), "", nil, &top, http.StatusOK); err != nil {
		return nil, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	report := NewReport(outcomes)
	report.Submitted = submitted
	report.Accepted = accepted
	report.LeaderboardOrdered = verifyOrder(top)
	report.Duration = time.Since(start)
	if !report.LeaderboardOrdered {
		log.Warn(ctx, "leaderboard is not ordered by score", logger.Int("entries", len(top)))
	}
	return report, nil
}

// verifyOrder checks descending scores with dense ranks.
func verifyOrder(entries []model.Entry) bool {
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		switch {
		case cur.Score > prev.Score:
			return false
		case cur.Score == prev.Score && cur.Rank != prev.Rank:
			return false
		case cur.Score < prev.Score && cur.Rank != prev.Rank+1:
			return false
		}
	}
	return true
}
