package routing

import (
	"fmt"
	"strings"
)

// GatingConfig controls hard eligibility filtering applied before any scoring.
type GatingConfig struct {
	RequireAvailability bool     `yaml:"require_availability"`
	MinAvailability     float64  `yaml:"min_availability"` // used when RequireAvailability is set
	MinConversionRate   *float64 `yaml:"min_conversion_rate,omitempty"`
	MinIndustryScore    *float64 `yaml:"min_industry_score,omitempty"`
	ExcludeBurnout      bool     `yaml:"exclude_burnout"`
	BurnoutThreshold    float64  `yaml:"burnout_threshold"`
	DailyLeadLimit      int      `yaml:"daily_lead_limit"` // 0 = unlimited
}

// IneligibleAgent pairs a gated-out agent with the single reason that
// excluded it. Checks run in a fixed order and the first failure wins.
type IneligibleAgent struct {
	Agent  AgentProfile
	Reason string
}

// GateResult partitions the candidate pool.
type GateResult struct {
	Eligible   []AgentProfile
	Ineligible []IneligibleAgent
}

// Gate applies the eligibility policy to the candidate pool. Zero eligible
// agents is a valid outcome, not an error; the caller decides what to do.
//
// Check order: basic eligibility (availability > 0, daily quota), the
// availability requirement, minimum conversion rate, minimum industry
// expertise for the lead's industry, burnout ceiling.
func Gate(agents []AgentProfile, lead NormalizedLead, cfg GatingConfig) GateResult {
	var res GateResult
	for _, a := range agents {
		if reason := gateOne(a, lead, cfg); reason != "" {
			res.Ineligible = append(res.Ineligible, IneligibleAgent{Agent: a, Reason: reason})
			continue
		}
		res.Eligible = append(res.Eligible, a)
	}
	return res
}

func gateOne(a AgentProfile, lead NormalizedLead, cfg GatingConfig) string {
	if a.Availability <= 0 {
		return "no availability"
	}
	if cfg.DailyLeadLimit > 0 && a.LeadsToday >= cfg.DailyLeadLimit {
		return fmt.Sprintf("daily lead quota reached (%d/%d)", a.LeadsToday, cfg.DailyLeadLimit)
	}
	if cfg.RequireAvailability && a.Availability < cfg.MinAvailability {
		return fmt.Sprintf("availability %.0f%% below required %.0f%%", a.Availability*100, cfg.MinAvailability*100)
	}
	if cfg.MinConversionRate != nil {
		if a.ConversionRate == nil || *a.ConversionRate < *cfg.MinConversionRate {
			return fmt.Sprintf("conversion rate below minimum %.0f%%", *cfg.MinConversionRate*100)
		}
	}
	if cfg.MinIndustryScore != nil && lead.Industry != "" {
		s, ok := a.IndustryScore(lead.Industry)
		if !ok || s < *cfg.MinIndustryScore {
			return fmt.Sprintf("industry expertise for %q below minimum %.0f", lead.Industry, *cfg.MinIndustryScore)
		}
	}
	if cfg.ExcludeBurnout && a.BurnoutScore > cfg.BurnoutThreshold {
		return fmt.Sprintf("burnout score %.0f above threshold %.0f", a.BurnoutScore, cfg.BurnoutThreshold)
	}
	return ""
}

// Summary renders a short human-readable gating summary for explanations.
func (g GateResult) Summary() string {
	if len(g.Ineligible) == 0 {
		return fmt.Sprintf("%d of %d agents eligible", len(g.Eligible), len(g.Eligible))
	}
	reasons := make(map[string]int)
	for _, ia := range g.Ineligible {
		reasons[shortReason(ia.Reason)]++
	}
	parts := make([]string, 0, len(reasons))
	for _, key := range []string{"no availability", "daily quota", "availability", "conversion rate", "industry expertise", "burnout"} {
		if n, ok := reasons[key]; ok {
			parts = append(parts, fmt.Sprintf("%d excluded by %s", n, key))
		}
	}
	return fmt.Sprintf("%d of %d agents eligible (%s)",
		len(g.Eligible), len(g.Eligible)+len(g.Ineligible), strings.Join(parts, ", "))
}

func shortReason(reason string) string {
	switch {
	case strings.HasPrefix(reason, "no availability"):
		return "no availability"
	case strings.HasPrefix(reason, "daily lead quota"):
		return "daily quota"
	case strings.HasPrefix(reason, "availability"):
		return "availability"
	case strings.HasPrefix(reason, "conversion rate"):
		return "conversion rate"
	case strings.HasPrefix(reason, "industry expertise"):
		return "industry expertise"
	case strings.HasPrefix(reason, "burnout"):
		return "burnout"
	}
	return "other"
}
