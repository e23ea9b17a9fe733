// Package scoregate decides whether a completed run may enter the
// leaderboard. It checks plausibility, recomputes the integrity hash and
// enforces a per-player cooldown. It never persists anything.
package scoregate

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/streetwise/internal/domain/model"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

// History looks up a player's most recent accepted entry by player key.
// Implementations return model.ErrNotFound when there is none.
type History interface {
	LatestForPlayer(ctx context.Context, playerKey string) (model.Entry, error)
}

// Gate holds the anti-cheat thresholds.
type Gate struct {
	minDuration time.Duration
	cooldown    time.Duration
	tolerance   int
	minScore    int
	maxScore    int
	hashLength  int
	history     History
}

// New constructs a Gate with default thresholds unless overridden.
func New(opts ...Option) *Gate {
	g := &Gate{
		minDuration: DefaultMinDuration,
		cooldown:    DefaultCooldown,
		tolerance:   DefaultScoreTolerance,
		minScore:    DefaultMinScore,
		maxScore:    DefaultMaxScore,
		hashLength:  DefaultHashLength,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Cooldown returns the per-player resubmission window.
func (g *Gate) Cooldown() time.Duration { return g.cooldown }

// Admit returns nil when sub may be accepted at now. Plausibility and hash
// failures wrap model.ErrIntegrityRejected; their reasons are meant for logs,
// not for the submitter. A resubmission inside the cooldown returns a
// *RateLimitError. History failures wrap model.ErrStorage.
func (g *Gate) Admit(ctx context.Context, sub model.Submission, now time.Time) error {
	if err := g.Check(sub); err != nil {
		return err
	}
	if g.history == nil || g.cooldown == 0 {
		return nil
	}

	last, err := g.history.LatestForPlayer(ctx, model.PlayerKey(sub.PlayerName))
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("%w: history lookup: %w", model.ErrStorage, err)
	}
	if wait := last.SubmittedAt.Add(g.cooldown).Sub(now); wait > 0 {
		return RateLimited(wait)
	}
	return nil
}

// Check runs the stateless checks: name, duration, score band, day range,
// net-worth agreement and integrity hash.
func (g *Gate) Check(sub model.Submission) error {
	name := strings.TrimSpace(sub.PlayerName)
	if name == "" || len(name) > DefaultMaxNameLength || !namePattern.MatchString(name) {
		return reject("invalid player name %q", sub.PlayerName)
	}

	gd := sub.GameData
	if gd.EndTime < gd.StartTime {
		return reject("run ends before it starts")
	}
	if d := gd.Duration(); d < g.minDuration {
		return reject("run too short: %s < %s", d, g.minDuration)
	}
	if gd.Score < g.minScore || gd.Score > g.maxScore {
		return reject("score %d outside [%d, %d]", gd.Score, g.minScore, g.maxScore)
	}
	if gd.Day < 1 || gd.Day > model.MaxDays {
		return reject("day %d outside [1, %d]", gd.Day, model.MaxDays)
	}
	netWorth := gd.PlayerStats.Cash - gd.PlayerStats.Debt
	if gap := gd.Score - netWorth; gap > g.tolerance || gap < -g.tolerance {
		return reject("score %d disagrees with net worth %d", gd.Score, netWorth)
	}

	want := g.Hash(gd)
	got := strings.ToLower(strings.TrimSpace(sub.IntegrityHash))
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return reject("integrity hash mismatch")
	}
	return nil
}

// Hash computes the truncated integrity digest for gd.
func (g *Gate) Hash(gd model.GameData) string {
	return Hash(gd, g.hashLength)
}

// Hash returns the first length lowercase hex characters of
// SHA-256("score|day|startMs|endMs|cash|debt|maxInventory|health").
func Hash(gd model.GameData, length int) string {
	fields := []int64{
		int64(gd.Score),
		int64(gd.Day),
		gd.StartTime,
		gd.EndTime,
		int64(gd.PlayerStats.Cash),
		int64(gd.PlayerStats.Debt),
		int64(gd.PlayerStats.MaxInventory),
		int64(gd.PlayerStats.Health),
	}
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = strconv.FormatInt(f, 10)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	digest := hex.EncodeToString(sum[:])
	if length <= 0 || length > len(digest) {
		return digest
	}
	return digest[:length]
}
