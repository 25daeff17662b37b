package routing

import (
	"time"
)

// NormalizedLead is one incoming sales opportunity after column mapping and
// validation have already happened upstream. It is immutable for the duration
// of a routing cycle.
type NormalizedLead struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Industry   string            `json:"industry,omitempty"`
	DealSize   float64           `json:"deal_size"`
	Source     string            `json:"source,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// AgentProfile is a read-only performance snapshot for one sales agent,
// computed by an external aggregation job over a trailing window.
type AgentProfile struct {
	ID   string `json:"agent_id"`
	Name string `json:"agent_name"`

	// Performance — nil means not enough history
	ConversionRate       *float64 `json:"conversion_rate,omitempty"`
	RecentConversionRate *float64 `json:"recent_conversion_rate,omitempty"`
	TotalLeads           int      `json:"total_leads"`
	ConvertedLeads       int      `json:"converted_leads"`
	AvgDealSize          float64  `json:"avg_deal_size"`
	AvgResponseSeconds   float64  `json:"avg_response_seconds"`

	// Capacity
	Availability       float64 `json:"availability"` // 0.0–1.0
	CurrentActiveLeads int     `json:"current_active_leads"`
	LeadsToday         int     `json:"leads_today"`
	LeadsThisWeek      int     `json:"leads_this_week"`
	LeadsThisMonth     int     `json:"leads_this_month"`

	// Momentum
	HotStreak      bool    `json:"hot_streak"`
	HotStreakCount int     `json:"hot_streak_count"`
	BurnoutScore   float64 `json:"burnout_score"` // 0–100

	// Expertise: industry name → score 0–100, plus the agent's strongest
	// industries in descending order for display.
	IndustryScores map[string]float64 `json:"industry_scores,omitempty"`
	TopIndustries  []string           `json:"top_industries,omitempty"`

	ComputedAt time.Time `json:"computed_at"`
	WindowDays int       `json:"window_days"`
}

// IndustryScore returns the agent's expertise score for an industry, and
// whether any score was recorded at all.
func (a AgentProfile) IndustryScore(industry string) (float64, bool) {
	if industry == "" || a.IndustryScores == nil {
		return 0, false
	}
	s, ok := a.IndustryScores[industry]
	return s, ok
}

// RuleEvaluationResult captures one rule's outcome for one (lead, agent) pair.
type RuleEvaluationResult struct {
	RuleID       string       `json:"rule_id"`
	RuleName     string       `json:"rule_name"`
	Category     RuleCategory `json:"category"`
	Applied      bool         `json:"applied"`
	MatchScore   float64      `json:"match_score"`   // 0.0–1.0
	Contribution float64      `json:"contribution"`  // weight × match score
	Explanation  string       `json:"explanation,omitempty"`
	Trace        string       `json:"trace,omitempty"`
	Warning      string       `json:"warning,omitempty"` // set when the rule failed closed
}

// RankIneligible is the reserved rank for agents removed by gating. They never
// compete with eligible agents for rank 1.
const RankIneligible = -1

// AgentScore is the full scoring outcome for one agent.
type AgentScore struct {
	AgentID          string                 `json:"agent_id"`
	AgentName        string                 `json:"agent_name"`
	RawScore         float64                `json:"raw_score"`
	NormalizedScore  float64                `json:"normalized_score"` // 0–100 relative to best
	Rank             int                    `json:"rank"`             // 1 = best, RankIneligible for gated-out agents
	Eligible         bool                   `json:"eligible"`
	IneligibleReason string                 `json:"ineligible_reason,omitempty"`
	TieBreak         bool                   `json:"tie_break"`
	TieBreakReason   string                 `json:"tie_break_reason,omitempty"`
	Rules            []RuleEvaluationResult `json:"rules,omitempty"`
}

// ScoringResult is the ranked outcome of one routing cycle.
type ScoringResult struct {
	Scores        []AgentScore `json:"scores"`
	Top           *AgentScore  `json:"top,omitempty"`
	Alternates    []AgentScore `json:"alternates,omitempty"`
	TotalAgents   int          `json:"total_agents"`
	EligibleCount int          `json:"eligible_count"`
	GatingSummary string       `json:"gating_summary,omitempty"`
	Warnings      []string     `json:"warnings,omitempty"`
}
