package routing

import (
	"math"
)

// RuleCategory groups rules for explanation rendering.
type RuleCategory string

const (
	CategoryPerformance RuleCategory = "performance"
	CategoryCapacity    RuleCategory = "capacity"
	CategoryExpertise   RuleCategory = "expertise"
	CategoryMomentum    RuleCategory = "momentum"
	CategoryOther       RuleCategory = "other"
)

// Operator is a comparison operator in a simple condition.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpContains Operator = "contains"
	OpExists   Operator = "exists"
)

// Condition is either a simple field comparison or a compound AND/OR node.
// Exactly one of All, Any, or Field should be set; an empty condition is
// always true.
type Condition struct {
	All []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Condition `json:"any,omitempty" yaml:"any,omitempty"`

	Field string      `json:"field,omitempty" yaml:"field,omitempty"` // dotted path into lead.* or agent.*
	Op    Operator    `json:"op,omitempty" yaml:"op,omitempty"`
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// ScoreMethod is the closed set of match-score strategies. Unknown function
// names at the config boundary map to MethodUnsupported, which always scores 0.
type ScoreMethod string

const (
	MethodFixed        ScoreMethod = "fixed"
	MethodRatio        ScoreMethod = "ratio"
	MethodInverseRatio ScoreMethod = "inverse_ratio"
	MethodRange        ScoreMethod = "range"
	MethodBuiltin      ScoreMethod = "builtin"
	MethodUnsupported  ScoreMethod = "unsupported"
)

// BuiltinFunc is the fixed catalog of named score functions.
type BuiltinFunc string

const (
	BuiltinIndustryMatch    BuiltinFunc = "industry_match"
	BuiltinAvailability     BuiltinFunc = "availability"
	BuiltinConversionRate   BuiltinFunc = "conversion_rate"
	BuiltinRecentConversion BuiltinFunc = "recent_conversion_rate"
)

// ScoreSpec describes how a rule turns a matched condition into a score in
// [0,1]. Which fields are meaningful depends on Method.
type ScoreSpec struct {
	Method ScoreMethod `json:"method" yaml:"method"`

	Value float64 `json:"value,omitempty" yaml:"value,omitempty"` // fixed

	Field    string  `json:"field,omitempty" yaml:"field,omitempty"` // ratio, inverse_ratio, range source
	RatioMax float64 `json:"ratio_max,omitempty" yaml:"ratio_max,omitempty"`

	RangeMin float64 `json:"range_min,omitempty" yaml:"range_min,omitempty"`
	RangeMax float64 `json:"range_max,omitempty" yaml:"range_max,omitempty"`
	ScoreMin float64 `json:"score_min,omitempty" yaml:"score_min,omitempty"`
	ScoreMax float64 `json:"score_max,omitempty" yaml:"score_max,omitempty"`

	Builtin BuiltinFunc `json:"builtin,omitempty" yaml:"builtin,omitempty"`

	// Unrecognized legacy function name preserved for the warning message.
	Unsupported string `json:"unsupported,omitempty" yaml:"unsupported,omitempty"`
}

// ScoringRule is one weighted, conditional scoring unit.
type ScoringRule struct {
	ID        string       `json:"id" yaml:"id"`
	Name      string       `json:"name" yaml:"name"`
	Weight    float64      `json:"weight" yaml:"weight"` // 0–100
	Enabled   bool         `json:"enabled" yaml:"enabled"`
	Category  RuleCategory `json:"category" yaml:"category"`
	Condition Condition    `json:"condition" yaml:"condition"`
	Score     ScoreSpec    `json:"score" yaml:"score"`
}

// ParseBuiltin maps a config-supplied function name onto the closed catalog.
// Unknown names yield an unsupported spec rather than an error, so one bad
// rule cannot abort a whole evaluation.
func ParseBuiltin(name string) ScoreSpec {
	switch BuiltinFunc(name) {
	case BuiltinIndustryMatch, BuiltinAvailability, BuiltinConversionRate, BuiltinRecentConversion:
		return ScoreSpec{Method: MethodBuiltin, Builtin: BuiltinFunc(name)}
	default:
		return ScoreSpec{Method: MethodUnsupported, Unsupported: name}
	}
}

// NormalizeWeights rescales the weights of enabled rules so they sum to
// exactly 100. Rounding drift from the proportional rescale is absorbed
// entirely by the last enabled rule. Disabled rules keep their weights.
func NormalizeWeights(rules []ScoringRule) []ScoringRule {
	out := make([]ScoringRule, len(rules))
	copy(out, rules)

	var enabled []int
	var sum float64
	for i, r := range out {
		if r.Enabled {
			enabled = append(enabled, i)
			sum += r.Weight
		}
	}
	if len(enabled) == 0 {
		return out
	}

	if sum <= 0 {
		// Degenerate config: split evenly
		share := round2(100 / float64(len(enabled)))
		var acc float64
		for n, i := range enabled {
			if n == len(enabled)-1 {
				out[i].Weight = round2(100 - acc)
			} else {
				out[i].Weight = share
				acc += share
			}
		}
		return out
	}

	scale := 100 / sum
	var acc float64
	for n, i := range enabled {
		if n == len(enabled)-1 {
			out[i].Weight = round2(100 - acc)
			continue
		}
		w := round2(out[i].Weight * scale)
		out[i].Weight = w
		acc += w
	}
	return out
}

// EnabledWeightSum returns the summed weight of enabled rules.
func EnabledWeightSum(rules []ScoringRule) float64 {
	var sum float64
	for _, r := range rules {
		if r.Enabled {
			sum += r.Weight
		}
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
