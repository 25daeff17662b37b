package routing

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// fieldValue is a resolved field from a lead or agent profile. Either num or
// str is meaningful, per isNum.
type fieldValue struct {
	num   float64
	str   string
	isNum bool
}

// resolveField walks a dotted path into the lead or agent. Supported roots
// are "lead" and "agent"; "agent.industry_scores.<name>" does the nested
// expertise lookup, and "agent.industry_score" resolves against the lead's
// own industry.
func resolveField(path string, lead NormalizedLead, agent AgentProfile) (fieldValue, bool) {
	parts := strings.SplitN(path, ".", 3)
	if len(parts) < 2 {
		return fieldValue{}, false
	}

	switch parts[0] {
	case "lead":
		return resolveLeadField(parts[1:], lead)
	case "agent":
		return resolveAgentField(parts[1:], lead, agent)
	}
	return fieldValue{}, false
}

func resolveLeadField(parts []string, lead NormalizedLead) (fieldValue, bool) {
	switch parts[0] {
	case "industry":
		return fieldValue{str: lead.Industry}, true
	case "deal_size", "dealSize":
		return fieldValue{num: lead.DealSize, isNum: true}, true
	case "source":
		return fieldValue{str: lead.Source}, true
	case "name":
		return fieldValue{str: lead.Name}, true
	case "attributes":
		if len(parts) < 2 || lead.Attributes == nil {
			return fieldValue{}, false
		}
		v, ok := lead.Attributes[parts[1]]
		if !ok {
			return fieldValue{}, false
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return fieldValue{num: n, isNum: true}, true
		}
		return fieldValue{str: v}, true
	}
	return fieldValue{}, false
}

func resolveAgentField(parts []string, lead NormalizedLead, agent AgentProfile) (fieldValue, bool) {
	switch parts[0] {
	case "availability":
		return fieldValue{num: agent.Availability, isNum: true}, true
	case "conversion_rate", "conversionRate":
		if agent.ConversionRate == nil {
			return fieldValue{}, false
		}
		return fieldValue{num: *agent.ConversionRate, isNum: true}, true
	case "recent_conversion_rate":
		if agent.RecentConversionRate == nil {
			return fieldValue{}, false
		}
		return fieldValue{num: *agent.RecentConversionRate, isNum: true}, true
	case "current_active_leads", "currentActiveLeads":
		return fieldValue{num: float64(agent.CurrentActiveLeads), isNum: true}, true
	case "leads_today":
		return fieldValue{num: float64(agent.LeadsToday), isNum: true}, true
	case "total_leads":
		return fieldValue{num: float64(agent.TotalLeads), isNum: true}, true
	case "avg_deal_size":
		return fieldValue{num: agent.AvgDealSize, isNum: true}, true
	case "avg_response_seconds":
		return fieldValue{num: agent.AvgResponseSeconds, isNum: true}, true
	case "burnout_score":
		return fieldValue{num: agent.BurnoutScore, isNum: true}, true
	case "hot_streak":
		if agent.HotStreak {
			return fieldValue{num: 1, isNum: true}, true
		}
		return fieldValue{num: 0, isNum: true}, true
	case "hot_streak_count":
		return fieldValue{num: float64(agent.HotStreakCount), isNum: true}, true
	case "industry_score":
		// Expertise for the lead's own industry.
		s, ok := agent.IndustryScore(lead.Industry)
		if !ok {
			return fieldValue{}, false
		}
		return fieldValue{num: s, isNum: true}, true
	case "industry_scores", "industryScores":
		if len(parts) < 2 {
			return fieldValue{}, false
		}
		s, ok := agent.IndustryScore(parts[1])
		if !ok {
			return fieldValue{}, false
		}
		return fieldValue{num: s, isNum: true}, true
	}
	return fieldValue{}, false
}

// evalCondition evaluates a condition tree. The second return is false when
// the condition referenced an unknown field or operator; callers fail closed.
func evalCondition(c Condition, lead NormalizedLead, agent AgentProfile) (matched, ok bool) {
	if len(c.All) > 0 {
		for _, sub := range c.All {
			m, subOK := evalCondition(sub, lead, agent)
			if !subOK {
				return false, false
			}
			if !m {
				return false, true
			}
		}
		return true, true
	}
	if len(c.Any) > 0 {
		for _, sub := range c.Any {
			m, subOK := evalCondition(sub, lead, agent)
			if !subOK {
				return false, false
			}
			if m {
				return true, true
			}
		}
		return false, true
	}
	if c.Field == "" {
		// Empty condition: unconditional rule.
		return true, true
	}

	fv, found := resolveField(c.Field, lead, agent)
	if c.Op == OpExists {
		return found, true
	}
	if !found {
		// Missing data is a non-match, not an error.
		return false, true
	}
	return compare(fv, c.Op, c.Value)
}

func compare(fv fieldValue, op Operator, raw interface{}) (matched, ok bool) {
	want, wantIsNum := coerce(raw)

	if fv.isNum && wantIsNum.isNum {
		switch op {
		case OpEq:
			return fv.num == wantIsNum.num, true
		case OpNeq:
			return fv.num != wantIsNum.num, true
		case OpGt:
			return fv.num > wantIsNum.num, true
		case OpGte:
			return fv.num >= wantIsNum.num, true
		case OpLt:
			return fv.num < wantIsNum.num, true
		case OpLte:
			return fv.num <= wantIsNum.num, true
		}
		return false, false
	}

	switch op {
	case OpEq:
		return strings.EqualFold(fv.str, want), true
	case OpNeq:
		return !strings.EqualFold(fv.str, want), true
	case OpContains:
		return strings.Contains(strings.ToLower(fv.str), strings.ToLower(want)), true
	}
	return false, false
}

// coerce turns a config-supplied comparison value into a string plus its
// numeric form when it has one.
func coerce(raw interface{}) (string, fieldValue) {
	switch v := raw.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), fieldValue{num: v, isNum: true}
	case int:
		return strconv.Itoa(v), fieldValue{num: float64(v), isNum: true}
	case int64:
		return strconv.FormatInt(v, 10), fieldValue{num: float64(v), isNum: true}
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return v, fieldValue{num: n, isNum: true}
		}
		return v, fieldValue{str: v}
	case bool:
		if v {
			return "true", fieldValue{num: 1, isNum: true}
		}
		return "false", fieldValue{num: 0, isNum: true}
	case nil:
		return "", fieldValue{}
	default:
		return fmt.Sprintf("%v", v), fieldValue{}
	}
}

// EvaluateRule evaluates one rule against one (lead, agent) pair. A disabled
// rule or a false condition yields applied=false with zero contribution; a
// malformed rule fails closed to score 0 and is logged as a config error.
func EvaluateRule(rule ScoringRule, lead NormalizedLead, agent AgentProfile, logger *slog.Logger) RuleEvaluationResult {
	res := RuleEvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Category: rule.Category,
	}

	if !rule.Enabled {
		res.Explanation = "rule disabled"
		return res
	}

	matched, ok := evalCondition(rule.Condition, lead, agent)
	if !ok {
		logger.Warn("rule condition malformed, failing closed",
			"rule_id", rule.ID, "field", rule.Condition.Field, "op", rule.Condition.Op)
		res.Explanation = "condition malformed; rule skipped"
		res.Trace = "condition: error"
		res.Warning = "rule \"" + rule.ID + "\": condition malformed; failed closed to 0"
		return res
	}
	if !matched {
		res.Explanation = "condition not met"
		res.Trace = "condition: false"
		return res
	}
	res.Trace = "condition: true"

	score, detail, scoreOK := matchScore(rule.Score, lead, agent)
	if !scoreOK {
		logger.Warn("rule score spec unsupported, failing closed",
			"rule_id", rule.ID, "method", rule.Score.Method, "function", rule.Score.Unsupported)
		res.Explanation = "unsupported score function \"" + rule.Score.Unsupported + "\"; scored 0"
		res.Warning = "rule \"" + rule.ID + "\": unsupported score function \"" + rule.Score.Unsupported + "\"; failed closed to 0"
		return res
	}

	res.Applied = true
	res.MatchScore = clamp01(score)
	res.Contribution = rule.Weight * res.MatchScore
	res.Explanation = detail
	return res
}

// matchScore computes the [0,1] match score for a satisfied condition.
func matchScore(spec ScoreSpec, lead NormalizedLead, agent AgentProfile) (float64, string, bool) {
	switch spec.Method {
	case MethodFixed:
		return spec.Value, "fixed score", true

	case MethodRatio:
		v, found := resolveField(spec.Field, lead, agent)
		if !found || !v.isNum || spec.RatioMax <= 0 {
			return 0, "ratio source unavailable", true
		}
		return v.num / spec.RatioMax, fmt.Sprintf("%s=%.2f of max %.2f", spec.Field, v.num, spec.RatioMax), true

	case MethodInverseRatio:
		v, found := resolveField(spec.Field, lead, agent)
		if !found || !v.isNum || spec.RatioMax <= 0 {
			return 0, "inverse ratio source unavailable", true
		}
		return 1 - v.num/spec.RatioMax, fmt.Sprintf("%s=%.2f (lower is better, max %.2f)", spec.Field, v.num, spec.RatioMax), true

	case MethodRange:
		v, found := resolveField(spec.Field, lead, agent)
		if !found || !v.isNum || spec.RangeMax <= spec.RangeMin {
			return 0, "range source unavailable", true
		}
		t := (v.num - spec.RangeMin) / (spec.RangeMax - spec.RangeMin)
		t = clamp01(t)
		return spec.ScoreMin + t*(spec.ScoreMax-spec.ScoreMin), fmt.Sprintf("%s=%.2f mapped from [%.0f,%.0f]", spec.Field, v.num, spec.RangeMin, spec.RangeMax), true

	case MethodBuiltin:
		return builtinScore(spec.Builtin, lead, agent)

	default:
		return 0, "", false
	}
}

func builtinScore(fn BuiltinFunc, lead NormalizedLead, agent AgentProfile) (float64, string, bool) {
	switch fn {
	case BuiltinIndustryMatch:
		s, ok := agent.IndustryScore(lead.Industry)
		if !ok {
			return 0, "no expertise recorded for industry \"" + lead.Industry + "\"", true
		}
		return s / 100, fmt.Sprintf("industry %q expertise %.0f/100", lead.Industry, s), true
	case BuiltinAvailability:
		return agent.Availability, fmt.Sprintf("availability %.0f%%", agent.Availability*100), true
	case BuiltinConversionRate:
		if agent.ConversionRate == nil {
			return 0, "no conversion history", true
		}
		return *agent.ConversionRate, fmt.Sprintf("conversion rate %.0f%%", *agent.ConversionRate*100), true
	case BuiltinRecentConversion:
		// Same formula as the historical rate; only the aggregation window
		// upstream differs.
		if agent.RecentConversionRate == nil {
			return 0, "no recent conversion history", true
		}
		return *agent.RecentConversionRate, fmt.Sprintf("recent conversion rate %.0f%%", *agent.RecentConversionRate*100), true
	}
	return 0, "", false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
