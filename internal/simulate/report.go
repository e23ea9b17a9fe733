package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/okian/streetwise/pkg/logger"
)

const directoryPermission = 0o750

// Report is the net-worth distribution of a batch plus remote counters.
type Report struct {
	Games    int           `json:"games"`
	Actions  int           `json:"actions"`
	Rejected int           `json:"rejected"`
	Duration time.Duration `json:"duration"`

	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"stdDev"`
	Min      int     `json:"min"`
	P10      int     `json:"p10"`
	Median   int     `json:"median"`
	P90      int     `json:"p90"`
	P99      int     `json:"p99"`
	Max      int     `json:"max"`
	Positive int     `json:"positive"`

	EncountersWon  int `json:"encountersWon"`
	EncountersLost int `json:"encountersLost"`

	// Remote mode only.
	Submitted          int  `json:"submitted,omitempty"`
	Accepted           int  `json:"accepted,omitempty"`
	LeaderboardOrdered bool `json:"leaderboardOrdered,omitempty"`
}

// NewReport summarizes outcomes.
func NewReport(outcomes []Outcome) *Report {
	r := &Report{Games: len(outcomes)}
	if len(outcomes) == 0 {
		return r
	}

	worth := make([]int, len(outcomes))
	var sum float64
	for i, o := range outcomes {
		worth[i] = o.NetWorth
		sum += float64(o.NetWorth)
		r.Actions += o.Actions
		r.Rejected += o.Rejected
		r.EncountersWon += o.Stats.EncountersWon
		r.EncountersLost += o.Stats.EncountersLost
		if o.NetWorth > 0 {
			r.Positive++
		}
	}
	slices.Sort(worth)

	r.Mean = sum / float64(len(worth))
	var sq float64
	for _, w := range worth {
		d := float64(w) - r.Mean
		sq += d * d
	}
	r.StdDev = math.Sqrt(sq / float64(len(worth)))
	r.Min = worth[0]
	r.Max = worth[len(worth)-1]
	r.P10 = percentile(worth, 10)
	r.Median = percentile(worth, 50)
	r.P90 = percentile(worth, 90)
	r.P99 = percentile(worth, 99)
	return r
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []int, p int) int {
	rank := int(math.Ceil(float64(p) / 100 * float64(len(sorted))))
	return sorted[max(rank-1, 0)]
}

// Log writes the report through the package logger.
func (r *Report) Log(ctx context.Context) {
	logger.Get().Info(ctx, "simulation report",
		logger.Int("games", r.Games),
		logger.Int("actions", r.Actions),
		logger.Int("rejected", r.Rejected),
		logger.Duration("duration", r.Duration),
		logger.Float64("mean", r.Mean),
		logger.Float64("stdDev", r.StdDev),
		logger.Int("min", r.Min),
		logger.Int("p10", r.P10),
		logger.Int("median", r.Median),
		logger.Int("p90", r.P90),
		logger.Int("p99", r.P99),
		logger.Int("max", r.Max),
		logger.Int("positive", r.Positive),
		logger.Int("submitted", r.Submitted),
		logger.Int("accepted", r.Accepted),
	)
}

// Save writes the report as indented JSON, creating parent directories.
func (r *Report) Save(filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
