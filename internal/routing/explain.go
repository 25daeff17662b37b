package routing

import (
	"fmt"
	"sort"
	"strings"
)

// ExplanationSchemaVersion is bumped whenever the explanation shape changes,
// so persisted explanations stay decodable.
const ExplanationSchemaVersion = 1

// Confidence tiers derived from the score gap between rank 1 and rank 2.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Decision modes recorded on an explanation.
const (
	DecisionModeManual         = "manual"
	DecisionModeAuto           = "auto"
	DecisionModeHybrid         = "hybrid"
	DecisionModeRandomFallback = "random fallback"
)

// ReasonDetail is one rule's contribution rendered for a human reader.
type ReasonDetail struct {
	Category     RuleCategory `json:"category"`
	RuleID       string       `json:"rule_id"`
	Score        float64      `json:"score"`        // match score 0–1
	Contribution float64      `json:"contribution"` // points
	Text         string       `json:"text"`
}

// RoutingExplanation is the auditable record of why a lead went where it
// did. It is a pure function of a ScoringResult; identical inputs always
// produce identical explanations.
type RoutingExplanation struct {
	SchemaVersion  int    `json:"schema_version"`
	LeadSummary    string `json:"lead_summary"`
	AgentID        string `json:"agent_id,omitempty"`
	AgentName      string `json:"agent_name,omitempty"`
	Confidence     string `json:"confidence"`
	Summary        string `json:"summary"`
	DecisionMode   string `json:"decision_mode,omitempty"`

	PrimaryReasons   []ReasonDetail     `json:"primary_reasons,omitempty"`
	SecondaryFactors []ReasonDetail     `json:"secondary_factors,omitempty"`
	RuleScores       map[string]float64 `json:"rule_scores,omitempty"` // rule id → contribution points

	GatingSummary string   `json:"gating_summary,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

const (
	burnoutWarnThreshold  = 75
	industryWarnThreshold = 30
	secondaryMinPoints    = 1.0
)

// Explain renders a ScoringResult into a structured explanation. When no
// agent survived gating it produces a degenerate explanation carrying the
// gating summary instead of failing.
func Explain(lead NormalizedLead, result ScoringResult, profiles map[string]AgentProfile) RoutingExplanation {
	e := RoutingExplanation{
		SchemaVersion: ExplanationSchemaVersion,
		LeadSummary:   leadSummary(lead),
		GatingSummary: result.GatingSummary,
	}

	e.Warnings = append(e.Warnings, result.Warnings...)

	if result.Top == nil {
		e.Confidence = ConfidenceLow
		e.Summary = "No eligible agent: " + result.GatingSummary
		e.Warnings = append(e.Warnings, "no eligible agents after gating: "+result.GatingSummary)
		return e
	}

	top := *result.Top
	e.AgentID = top.AgentID
	e.AgentName = top.AgentName
	e.Confidence = confidenceTier(result)

	applied := appliedByContribution(top.Rules)
	for i, r := range applied {
		d := reasonDetail(r)
		if i < 3 {
			e.PrimaryReasons = append(e.PrimaryReasons, d)
		} else if len(e.SecondaryFactors) < 3 && r.Contribution > secondaryMinPoints {
			e.SecondaryFactors = append(e.SecondaryFactors, d)
		}
	}

	e.RuleScores = make(map[string]float64, len(top.Rules))
	for _, r := range top.Rules {
		e.RuleScores[r.RuleID] = r.Contribution
	}

	e.Summary = summaryText(lead, top, applied)
	e.Warnings = append(e.Warnings, warnings(lead, result, profiles[top.AgentID])...)
	return e
}

func confidenceTier(result ScoringResult) string {
	if result.EligibleCount < 2 {
		return ConfidenceLow
	}
	gap := result.Top.NormalizedScore
	for _, s := range result.Scores {
		if s.Eligible && s.AgentID != result.Top.AgentID {
			gap = result.Top.NormalizedScore - s.NormalizedScore
			break
		}
	}
	switch {
	case gap < 5:
		return ConfidenceLow
	case gap < 10:
		return ConfidenceMedium
	default:
		return ConfidenceHigh
	}
}

func appliedByContribution(rules []RuleEvaluationResult) []RuleEvaluationResult {
	var applied []RuleEvaluationResult
	for _, r := range rules {
		if r.Applied {
			applied = append(applied, r)
		}
	}
	sort.SliceStable(applied, func(i, j int) bool {
		if applied[i].Contribution != applied[j].Contribution {
			return applied[i].Contribution > applied[j].Contribution
		}
		return applied[i].RuleID < applied[j].RuleID
	})
	return applied
}

func reasonDetail(r RuleEvaluationResult) ReasonDetail {
	text := fmt.Sprintf("%s: %s (+%.1f pts)", CategoryLabel(r.Category), r.Explanation, r.Contribution)
	return ReasonDetail{
		Category:     r.Category,
		RuleID:       r.RuleID,
		Score:        r.MatchScore,
		Contribution: r.Contribution,
		Text:         text,
	}
}

// CategoryLabel maps a rule category onto its display name.
func CategoryLabel(c RuleCategory) string {
	switch c {
	case CategoryPerformance:
		return "Performance"
	case CategoryCapacity:
		return "Capacity"
	case CategoryExpertise:
		return "Industry Expertise"
	case CategoryMomentum:
		return "Momentum"
	default:
		return "Other"
	}
}

func leadSummary(lead NormalizedLead) string {
	name := lead.Name
	if name == "" {
		name = lead.ID
	}
	if lead.Industry != "" {
		return fmt.Sprintf("%s (%s, deal size %.0f)", name, lead.Industry, lead.DealSize)
	}
	return fmt.Sprintf("%s (deal size %.0f)", name, lead.DealSize)
}

func summaryText(lead NormalizedLead, top AgentScore, applied []RuleEvaluationResult) string {
	if len(applied) == 0 {
		return fmt.Sprintf("%s is the best available match for %s with no scoring rules applied.",
			top.AgentName, leadSummary(lead))
	}
	lead2 := leadSummary(lead)
	driver := CategoryLabel(applied[0].Category)
	return fmt.Sprintf("%s is the best match for %s (score %.0f/100), driven primarily by %s.",
		top.AgentName, lead2, top.NormalizedScore, driver)
}

func warnings(lead NormalizedLead, result ScoringResult, top AgentProfile) []string {
	var w []string
	if result.EligibleCount == 1 {
		w = append(w, "only one eligible agent; no meaningful comparison was possible")
	}
	if confidenceTier(result) == ConfidenceLow {
		w = append(w, "low confidence: the score gap to the runner-up is small")
	}
	if lead.Industry != "" {
		if s, ok := top.IndustryScore(lead.Industry); !ok || s < industryWarnThreshold {
			msg := fmt.Sprintf("recommended agent has little recorded experience in %q", lead.Industry)
			if len(top.TopIndustries) > 0 {
				msg += "; strongest in " + strings.Join(top.TopIndustries, ", ")
			}
			w = append(w, msg)
		}
	}
	if top.BurnoutScore > burnoutWarnThreshold {
		w = append(w, fmt.Sprintf("recommended agent has a high burnout score (%.0f/100)", top.BurnoutScore))
	}
	return w
}
