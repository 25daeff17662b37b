// Package agentstats derives the per-agent signals the routing engine
// consumes: industry expertise learned from closed leads, and availability/
// capacity status from current workload. Everything here is a pure function
// of already-materialized history; callers do the I/O.
package agentstats

import (
	"math"
	"sort"
	"time"
)

// HistoricalLead is one closed lead from an agent's history, as supplied by
// a LeadHistory source.
type HistoricalLead struct {
	LeadID    string
	Industry  string
	DealSize  float64
	Converted bool
	ClosedAt  time.Time
}

// fullVolume is the per-industry lead count at which volume no longer
// discounts the expertise score.
const fullVolume = 10

// IndustryScores derives a 0–100 expertise score per industry from closed
// leads. The score blends the industry conversion rate with a volume factor
// so one lucky close does not read as deep expertise. Deterministic for a
// given history.
func IndustryScores(history []HistoricalLead) map[string]float64 {
	type tally struct {
		total, won int
	}
	byIndustry := make(map[string]*tally)
	for _, l := range history {
		if l.Industry == "" {
			continue
		}
		t := byIndustry[l.Industry]
		if t == nil {
			t = &tally{}
			byIndustry[l.Industry] = t
		}
		t.total++
		if l.Converted {
			t.won++
		}
	}

	scores := make(map[string]float64, len(byIndustry))
	for industry, t := range byIndustry {
		rate := float64(t.won) / float64(t.total)
		volume := math.Min(float64(t.total)/fullVolume, 1)
		scores[industry] = math.Round(100 * rate * (0.5 + 0.5*volume))
	}
	return scores
}

// ConversionRate returns won/total over the history, or nil when there is no
// history at all so the absence is distinguishable from a 0% rate.
func ConversionRate(history []HistoricalLead) *float64 {
	if len(history) == 0 {
		return nil
	}
	var won int
	for _, l := range history {
		if l.Converted {
			won++
		}
	}
	rate := float64(won) / float64(len(history))
	return &rate
}

// ConversionRateSince applies the same formula over the sub-window starting
// at since. Only the window differs from ConversionRate; the formula is
// intentionally shared.
func ConversionRateSince(history []HistoricalLead, since time.Time) *float64 {
	var windowed []HistoricalLead
	for _, l := range history {
		if !l.ClosedAt.Before(since) {
			windowed = append(windowed, l)
		}
	}
	return ConversionRate(windowed)
}

// hotStreakWindow and hotStreakMin define the momentum signal: this many
// conversions inside the trailing window.
const (
	hotStreakWindow = 14 * 24 * time.Hour
	hotStreakMin    = 3
)

// HotStreak reports whether the agent closed enough deals recently to count
// as on a streak, and how many wins fell inside the window.
func HotStreak(history []HistoricalLead, now time.Time) (bool, int) {
	cutoff := now.Add(-hotStreakWindow)
	var wins int
	for _, l := range history {
		if l.Converted && !l.ClosedAt.Before(cutoff) {
			wins++
		}
	}
	return wins >= hotStreakMin, wins
}

// BurnoutScore derives a 0–100 indicator of declining recent activity: the
// drop in recent win rate versus the long-run rate, scaled by how active the
// agent has been. 0 means no decline signal.
func BurnoutScore(history []HistoricalLead, now time.Time, recentWindow time.Duration) float64 {
	overall := ConversionRate(history)
	recent := ConversionRateSince(history, now.Add(-recentWindow))
	if overall == nil || recent == nil || *overall <= 0 {
		return 0
	}
	decline := (*overall - *recent) / *overall
	if decline <= 0 {
		return 0
	}
	activity := math.Min(float64(len(history))/fullVolume, 1)
	return math.Round(100 * decline * activity)
}

// TopIndustries returns up to n industries ordered by descending expertise,
// ties broken by name for stable output.
func TopIndustries(scores map[string]float64, n int) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
