package proposal

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/routing"
)

// DecisionConfig controls how a scoring result becomes a proposal.
type DecisionConfig struct {
	Mode             Mode    `yaml:"mode"`
	AutoApproveScore float64 `yaml:"auto_approve_score"` // normalized 0–100
	MinConfidence    string  `yaml:"min_confidence"`     // "", low, medium, high
	ExpiryHours      int     `yaml:"expiry_hours"`       // 0 = never expires
	OverrideAllowed  bool    `yaml:"override_allowed"`
	RandomFallback   bool    `yaml:"random_fallback"`
}

// Decision is the outcome of Decide: a proposal ready to persist plus
// whether the caller should apply it without human review.
type Decision struct {
	Proposal        *Proposal
	ShouldAutoApply bool
	Reason          string
}

// Decide builds a proposal from a scoring result and chooses between manual
// approval and auto-apply. The random source is injected so the fallback
// path is testable; a nil rng disables random fallback regardless of config.
func Decide(lead routing.NormalizedLead, result routing.ScoringResult, expl routing.RoutingExplanation,
	agents []routing.AgentProfile, cfg DecisionConfig, versions Versions, rng *rand.Rand, now time.Time) Decision {

	p := &Proposal{
		ID:             uuid.New(),
		LeadID:         lead.ID,
		Status:         StatusProposed,
		Mode:           cfg.Mode,
		IdempotencyKey: IdempotencyKey(lead.ID, versions),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if cfg.ExpiryHours > 0 {
		exp := now.Add(time.Duration(cfg.ExpiryHours) * time.Hour)
		p.ExpiresAt = &exp
	}

	if result.Top == nil {
		return decideNoMatch(p, expl, agents, cfg, rng)
	}

	top := *result.Top
	p.AgentID = top.AgentID
	p.AgentName = top.AgentName
	p.Score = top.NormalizedScore
	p.Confidence = expl.Confidence
	for _, alt := range result.Alternates {
		p.Alternates = append(p.Alternates, Alternate{
			AgentID: alt.AgentID, AgentName: alt.AgentName, Score: alt.NormalizedScore,
		})
	}
	expl.DecisionMode = string(cfg.Mode)

	auto, reason := shouldAutoApply(top.NormalizedScore, expl.Confidence, cfg)
	p.Explanation = expl
	return Decision{Proposal: p, ShouldAutoApply: auto, Reason: reason}
}

func shouldAutoApply(score float64, confidence string, cfg DecisionConfig) (bool, string) {
	if cfg.Mode == ModeManual {
		return false, "manual mode: all assignments reviewed"
	}
	if score < cfg.AutoApproveScore {
		return false, fmt.Sprintf("score %.0f below auto-approve threshold %.0f", score, cfg.AutoApproveScore)
	}
	if cfg.Mode == ModeHybrid && confidence == routing.ConfidenceLow {
		return false, "hybrid mode: low confidence requires review"
	}
	if cfg.MinConfidence != "" && confidenceRank(confidence) < confidenceRank(cfg.MinConfidence) {
		return false, fmt.Sprintf("confidence %q below required %q", confidence, cfg.MinConfidence)
	}
	return true, fmt.Sprintf("score %.0f meets auto-approve threshold %.0f", score, cfg.AutoApproveScore)
}

// decideNoMatch handles the zero-eligible-agents outcome. Auto mode with
// random fallback picks uniformly from the whole pool — not just eligible
// agents — and says so; everything else yields a zero-score pending proposal
// for a human.
func decideNoMatch(p *Proposal, expl routing.RoutingExplanation, agents []routing.AgentProfile,
	cfg DecisionConfig, rng *rand.Rand) Decision {

	if cfg.Mode == ModeAuto && cfg.RandomFallback && rng != nil && len(agents) > 0 {
		pick := agents[rng.Intn(len(agents))]
		p.AgentID = pick.ID
		p.AgentName = pick.Name
		p.Score = 0
		p.Confidence = routing.ConfidenceLow
		expl.AgentID = pick.ID
		expl.AgentName = pick.Name
		expl.DecisionMode = routing.DecisionModeRandomFallback
		expl.Warnings = append(expl.Warnings,
			fmt.Sprintf("no agent passed gating; %s was selected at random from %d agents", pick.Name, len(agents)))
		p.Explanation = expl
		return Decision{
			Proposal:        p,
			ShouldAutoApply: true,
			Reason:          "no eligible agent: random fallback selection",
		}
	}

	p.Score = 0
	p.Confidence = routing.ConfidenceLow
	expl.DecisionMode = string(cfg.Mode)
	p.Explanation = expl
	return Decision{
		Proposal:        p,
		ShouldAutoApply: false,
		Reason:          "no eligible agent: pending manual review",
	}
}

func confidenceRank(c string) int {
	switch c {
	case routing.ConfidenceHigh:
		return 3
	case routing.ConfidenceMedium:
		return 2
	case routing.ConfidenceLow:
		return 1
	}
	return 0
}
