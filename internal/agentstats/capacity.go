package agentstats

import (
	"fmt"
	"math"
)

// CapacityLimits is the configured ceiling set for one org.
type CapacityLimits struct {
	MaxActiveLeads int `yaml:"max_active_leads"`
	DailyLimit     int `yaml:"daily_limit"`
	WeeklyLimit    int `yaml:"weekly_limit"`
	MonthlyLimit   int `yaml:"monthly_limit"`
}

// Workload is an agent's current counted load, read from lead history.
// Counts may be slightly stale; gating tolerates that.
type Workload struct {
	ActiveLeads  int
	DailyCount   int
	WeeklyCount  int
	MonthlyCount int
}

// CapacityStatus reports counts against limits with derived flags and a
// human-readable warning when any limit is breached.
type CapacityStatus struct {
	Workload Workload
	Limits   CapacityLimits

	AtActiveLimit  bool
	AtDailyLimit   bool
	AtWeeklyLimit  bool
	AtMonthlyLimit bool
	Warning        string
}

// AnyLimitReached reports whether the agent should be gated out on capacity.
func (c CapacityStatus) AnyLimitReached() bool {
	return c.AtActiveLimit || c.AtDailyLimit || c.AtWeeklyLimit || c.AtMonthlyLimit
}

// Capacity compares a workload against limits. A zero limit means unlimited.
func Capacity(w Workload, limits CapacityLimits) CapacityStatus {
	s := CapacityStatus{Workload: w, Limits: limits}
	s.AtActiveLimit = limits.MaxActiveLeads > 0 && w.ActiveLeads >= limits.MaxActiveLeads
	s.AtDailyLimit = limits.DailyLimit > 0 && w.DailyCount >= limits.DailyLimit
	s.AtWeeklyLimit = limits.WeeklyLimit > 0 && w.WeeklyCount >= limits.WeeklyLimit
	s.AtMonthlyLimit = limits.MonthlyLimit > 0 && w.MonthlyCount >= limits.MonthlyLimit

	switch {
	case s.AtActiveLimit:
		s.Warning = fmt.Sprintf("at active-lead limit (%d/%d in treatment)", w.ActiveLeads, limits.MaxActiveLeads)
	case s.AtDailyLimit:
		s.Warning = fmt.Sprintf("daily limit reached (%d/%d)", w.DailyCount, limits.DailyLimit)
	case s.AtWeeklyLimit:
		s.Warning = fmt.Sprintf("weekly limit reached (%d/%d)", w.WeeklyCount, limits.WeeklyLimit)
	case s.AtMonthlyLimit:
		s.Warning = fmt.Sprintf("monthly limit reached (%d/%d)", w.MonthlyCount, limits.MonthlyLimit)
	}
	return s
}

// AvailabilityScore derives a 0–100 availability score from the agent's raw
// availability fraction and how loaded they are against the active-lead
// limit. At or past any limit the score is 0.
func AvailabilityScore(availability float64, status CapacityStatus) float64 {
	if status.AnyLimitReached() {
		return 0
	}
	availability = math.Max(0, math.Min(1, availability))
	headroom := 1.0
	if status.Limits.MaxActiveLeads > 0 {
		headroom = 1 - float64(status.Workload.ActiveLeads)/float64(status.Limits.MaxActiveLeads)
	}
	return math.Round(100 * availability * headroom)
}
