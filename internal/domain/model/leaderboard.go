package model

import (
	"fmt"
	"strings"
	"time"
)

// PlayerStats is the end-of-run snapshot declared by the client.
type PlayerStats struct {
	Cash         int `json:"cash"`
	Debt         int `json:"debt"`
	MaxInventory int `json:"maxInventory"`
	Health       int `json:"health"`
}

// GameData is the declared outcome of a finished run. Timestamps are unix
// milliseconds as produced by browser clocks.
type GameData struct {
	Score       int         `json:"score"`
	Day         int         `json:"day"`
	StartTime   int64       `json:"startTime"`
	EndTime     int64       `json:"endTime"`
	PlayerStats PlayerStats `json:"playerStats"`
	GameEvents  []string    `json:"gameEvents,omitempty"`
}

// Duration is the declared wall-clock length of the run.
func (g GameData) Duration() time.Duration {
	return time.Duration(g.EndTime-g.StartTime) * time.Millisecond
}

// Submission is a score-submission request.
type Submission struct {
	PlayerName    string   `json:"playerName"`
	GameData      GameData `json:"gameData"`
	IntegrityHash string   `json:"integrityHash"`
}

// PlayerKey normalizes a display name for per-player lookups, so "Ana" and
// " ana " share one cooldown.
func PlayerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Entry is an accepted, immutable leaderboard row.
type Entry struct {
	ID          string    `json:"id"`
	PlayerName  string    `json:"playerName"`
	Score       int       `json:"score"`
	Day         int       `json:"day"`
	NetWorth    int       `json:"netWorth"`
	DurationMs  int64     `json:"durationMs"`
	Hash        string    `json:"hash"`
	SubmittedAt time.Time `json:"submittedAt"`
	Rank        int       `json:"rank,omitempty"`
}

// Timeframe filters leaderboard queries by submission time.
type Timeframe string

const (
	TimeframeAll    Timeframe = "all"
	TimeframeDaily  Timeframe = "daily"
	TimeframeWeekly Timeframe = "weekly"
)

// ParseTimeframe accepts all, daily or weekly (case-insensitive); empty means all.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(strings.ToLower(strings.TrimSpace(s))) {
	case "", TimeframeAll:
		return TimeframeAll, nil
	case TimeframeDaily:
		return TimeframeDaily, nil
	case TimeframeWeekly:
		return TimeframeWeekly, nil
	default:
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
}

// Since returns the earliest submission time included by the timeframe.
// The zero time means no lower bound.
func (t Timeframe) Since(now time.Time) time.Time {
	switch t {
	case TimeframeDaily:
		return now.Add(-24 * time.Hour)
	case TimeframeWeekly:
		return now.Add(-7 * 24 * time.Hour)
	default:
		return time.Time{}
	}
}

// LeaderboardQuery selects a ranked slice of entries.
type LeaderboardQuery struct {
	Limit int
	Since time.Time
}

// ArchiveJob carries a finished session to long-term storage.
type ArchiveJob struct {
	SessionID string
	Snapshot  Session
	EndedAt   time.Time
}
