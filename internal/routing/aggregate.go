package routing

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// tieEpsilon is the normalized-score gap below which two agents are
// considered tied and the deterministic tie-break chain decides.
const tieEpsilon = 0.01

const maxAlternates = 3

// Evaluate runs the full decision pipeline for one lead: gating, per-agent
// rule evaluation, normalization to 0–100 against the best eligible raw
// score, and deterministic ranking. It is pure — no I/O, no clock, no
// randomness — so repeated calls with identical inputs are bit-identical.
func Evaluate(lead NormalizedLead, agents []AgentProfile, rules []ScoringRule, cfg GatingConfig, logger *slog.Logger) ScoringResult {
	gated := Gate(agents, lead, cfg)
	normalized := NormalizeWeights(rules)

	result := ScoringResult{
		TotalAgents:   len(agents),
		EligibleCount: len(gated.Eligible),
		GatingSummary: gated.Summary(),
	}
	result.Warnings = append(result.Warnings, weightWarnings(rules)...)

	var maxRaw float64
	warned := make(map[string]bool)
	scores := make([]AgentScore, 0, len(gated.Eligible))
	for _, a := range gated.Eligible {
		s := AgentScore{AgentID: a.ID, AgentName: a.Name, Eligible: true}
		for _, r := range normalized {
			if !r.Enabled {
				continue
			}
			rr := EvaluateRule(r, lead, a, logger)
			s.RawScore += rr.Contribution
			s.Rules = append(s.Rules, rr)
			if rr.Warning != "" && !warned[rr.RuleID] {
				warned[rr.RuleID] = true
				result.Warnings = append(result.Warnings, rr.Warning)
			}
		}
		if s.RawScore > maxRaw {
			maxRaw = s.RawScore
		}
		scores = append(scores, s)
	}

	for i := range scores {
		if maxRaw > 0 {
			scores[i].NormalizedScore = scores[i].RawScore / maxRaw * 100
		}
	}

	profileByID := make(map[string]AgentProfile, len(agents))
	for _, a := range agents {
		profileByID[a.ID] = a
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return lessAgentScore(scores[i], scores[j], profileByID)
	})

	for i := range scores {
		scores[i].Rank = i + 1
		if i+1 < len(scores) && math.Abs(scores[i].NormalizedScore-scores[i+1].NormalizedScore) < tieEpsilon {
			winner, reason := breakTie(profileByID[scores[i].AgentID], profileByID[scores[i+1].AgentID])
			if winner == scores[i].AgentID {
				scores[i].TieBreak = true
				scores[i].TieBreakReason = reason
			}
		}
	}

	// Ineligible agents trail with the reserved rank, never competing for
	// rank 1. Sorted by ID so output is stable regardless of input order.
	inel := append([]IneligibleAgent(nil), gated.Ineligible...)
	sort.Slice(inel, func(i, j int) bool { return inel[i].Agent.ID < inel[j].Agent.ID })
	for _, ia := range inel {
		scores = append(scores, AgentScore{
			AgentID:          ia.Agent.ID,
			AgentName:        ia.Agent.Name,
			Rank:             RankIneligible,
			Eligible:         false,
			IneligibleReason: ia.Reason,
		})
	}

	result.Scores = scores
	if len(gated.Eligible) > 0 {
		top := scores[0]
		result.Top = &top
		for i := 1; i < len(scores) && i <= maxAlternates; i++ {
			if !scores[i].Eligible {
				break
			}
			result.Alternates = append(result.Alternates, scores[i])
		}
	}
	return result
}

// weightWarnings reports enabled-weight drift from 100 before the
// proportional rescale absorbs it, so misconfigured weights surface to the
// caller and not just to logs.
func weightWarnings(rules []ScoringRule) []string {
	sum := EnabledWeightSum(rules)
	switch {
	case sum <= 0 && hasEnabled(rules):
		return []string{"enabled rule weights sum to 0; weights split evenly"}
	case sum > 0 && math.Abs(sum-100) > 0.01:
		return []string{fmt.Sprintf("enabled rule weights sum to %.2f; rescaled to 100", sum)}
	}
	return nil
}

func hasEnabled(rules []ScoringRule) bool {
	for _, r := range rules {
		if r.Enabled {
			return true
		}
	}
	return false
}

// lessAgentScore orders two eligible agents: higher normalized score first,
// ties resolved by the deterministic tie-break chain.
func lessAgentScore(a, b AgentScore, profiles map[string]AgentProfile) bool {
	if math.Abs(a.NormalizedScore-b.NormalizedScore) >= tieEpsilon {
		return a.NormalizedScore > b.NormalizedScore
	}
	winner, _ := breakTie(profiles[a.AgentID], profiles[b.AgentID])
	return winner == a.AgentID
}

// breakTie resolves a score tie between two agents and reports which
// criterion decided. The chain is total: higher availability, lower current
// workload, higher historical conversion rate, an active hot streak, and
// finally the lexically smaller agent id so ordering never depends on input
// order.
func breakTie(a, b AgentProfile) (winnerID, reason string) {
	if a.Availability != b.Availability {
		if a.Availability > b.Availability {
			return a.ID, "higher availability"
		}
		return b.ID, "higher availability"
	}
	if a.CurrentActiveLeads != b.CurrentActiveLeads {
		if a.CurrentActiveLeads < b.CurrentActiveLeads {
			return a.ID, "lower workload"
		}
		return b.ID, "lower workload"
	}
	ar, br := rateOrZero(a.ConversionRate), rateOrZero(b.ConversionRate)
	if ar != br {
		if ar > br {
			return a.ID, "higher conversion rate"
		}
		return b.ID, "higher conversion rate"
	}
	if a.HotStreak != b.HotStreak {
		if a.HotStreak {
			return a.ID, "hot streak active"
		}
		return b.ID, "hot streak active"
	}
	if a.ID < b.ID {
		return a.ID, "agent id"
	}
	return b.ID, "agent id"
}

func rateOrZero(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}
