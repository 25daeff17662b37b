package routing

import (
	"reflect"
	"strings"
	"testing"
)

func scoredResult(topScore, runnerUp float64, eligible int) ScoringResult {
	top := AgentScore{
		AgentID: "A", AgentName: "Dana", NormalizedScore: topScore, Rank: 1, Eligible: true,
		Rules: []RuleEvaluationResult{
			{RuleID: "industryMatch", Category: CategoryExpertise, Applied: true, MatchScore: 0.8, Contribution: 40, Explanation: "industry \"Legal\" expertise 80/100"},
			{RuleID: "conversionHistorical", Category: CategoryPerformance, Applied: true, MatchScore: 0.5, Contribution: 25, Explanation: "conversion rate 50%"},
			{RuleID: "availability", Category: CategoryCapacity, Applied: true, MatchScore: 0.9, Contribution: 9, Explanation: "availability 90%"},
			{RuleID: "hotStreak", Category: CategoryMomentum, Applied: true, MatchScore: 1, Contribution: 5, Explanation: "hot streak"},
			{RuleID: "tiny", Category: CategoryOther, Applied: true, MatchScore: 0.1, Contribution: 0.5, Explanation: "noise"},
			{RuleID: "skipped", Category: CategoryOther, Applied: false},
		},
	}
	result := ScoringResult{
		Top:           &top,
		Scores:        []AgentScore{top},
		EligibleCount: eligible,
		TotalAgents:   eligible,
		GatingSummary: "2 of 2 agents eligible",
	}
	if eligible > 1 {
		result.Scores = append(result.Scores, AgentScore{
			AgentID: "B", NormalizedScore: runnerUp, Rank: 2, Eligible: true,
		})
	}
	return result
}

func TestExplainConfidenceTiers(t *testing.T) {
	tests := []struct {
		name     string
		top      float64
		runnerUp float64
		eligible int
		want     string
	}{
		{"single agent is low", 100, 0, 1, ConfidenceLow},
		{"tiny gap is low", 100, 96, 2, ConfidenceLow},
		{"mid gap is medium", 100, 93, 2, ConfidenceMedium},
		{"boundary nine point nine is medium", 100, 90.1, 2, ConfidenceMedium},
		{"ten points is high", 100, 90, 2, ConfidenceHigh},
		{"wide gap is high", 100, 40, 2, ConfidenceHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Explain(testLead(), scoredResult(tt.top, tt.runnerUp, tt.eligible), nil)
			if e.Confidence != tt.want {
				t.Errorf("confidence = %q, want %q", e.Confidence, tt.want)
			}
		})
	}
}

func TestExplainReasonSelection(t *testing.T) {
	e := Explain(testLead(), scoredResult(100, 80, 2), nil)

	if len(e.PrimaryReasons) != 3 {
		t.Fatalf("primary reasons = %d, want 3", len(e.PrimaryReasons))
	}
	if e.PrimaryReasons[0].RuleID != "industryMatch" {
		t.Errorf("top reason = %s, want industryMatch", e.PrimaryReasons[0].RuleID)
	}
	if !strings.Contains(e.PrimaryReasons[0].Text, "Industry Expertise") {
		t.Errorf("reason text should carry the category label: %q", e.PrimaryReasons[0].Text)
	}

	// Next-3 with contribution > 1 point: hotStreak qualifies, "tiny" (0.5) does not.
	if len(e.SecondaryFactors) != 1 || e.SecondaryFactors[0].RuleID != "hotStreak" {
		t.Errorf("secondary factors = %+v", e.SecondaryFactors)
	}

	// Not-applied rules still appear in the per-rule score map.
	if _, ok := e.RuleScores["skipped"]; !ok {
		t.Error("rule_scores should cover every evaluated rule")
	}
}

func TestExplainStableForIdenticalInputs(t *testing.T) {
	lead := testLead()
	result := scoredResult(100, 92, 2)
	first := Explain(lead, result, nil)
	for i := 0; i < 5; i++ {
		if again := Explain(lead, result, nil); !reflect.DeepEqual(first, again) {
			t.Fatal("explanation changed between identical runs")
		}
	}
}

func TestExplainWarnings(t *testing.T) {
	t.Run("single eligible agent", func(t *testing.T) {
		e := Explain(testLead(), scoredResult(100, 0, 1), nil)
		if !hasWarning(e, "only one eligible agent") {
			t.Errorf("warnings = %v", e.Warnings)
		}
	})

	t.Run("low confidence", func(t *testing.T) {
		e := Explain(testLead(), scoredResult(100, 97, 2), nil)
		if !hasWarning(e, "low confidence") {
			t.Errorf("warnings = %v", e.Warnings)
		}
	})

	t.Run("no industry experience", func(t *testing.T) {
		profiles := map[string]AgentProfile{
			"A": {ID: "A", IndustryScores: map[string]float64{"Legal": 10}, TopIndustries: []string{"Retail", "Finance"}},
		}
		e := Explain(testLead(), scoredResult(100, 80, 2), profiles)
		if !hasWarning(e, "little recorded experience") {
			t.Errorf("warnings = %v", e.Warnings)
		}
		if !hasWarning(e, "strongest in Retail, Finance") {
			t.Errorf("specialties missing: %v", e.Warnings)
		}
	})

	t.Run("high burnout", func(t *testing.T) {
		profiles := map[string]AgentProfile{
			"A": {ID: "A", BurnoutScore: 90, IndustryScores: map[string]float64{"Legal": 80}},
		}
		e := Explain(testLead(), scoredResult(100, 80, 2), profiles)
		if !hasWarning(e, "burnout") {
			t.Errorf("warnings = %v", e.Warnings)
		}
	})

	t.Run("clean recommendation has no spurious warnings", func(t *testing.T) {
		profiles := map[string]AgentProfile{
			"A": {ID: "A", BurnoutScore: 10, IndustryScores: map[string]float64{"Legal": 80}},
		}
		e := Explain(testLead(), scoredResult(100, 80, 2), profiles)
		if len(e.Warnings) != 0 {
			t.Errorf("unexpected warnings: %v", e.Warnings)
		}
	})
}

func TestExplainDegenerateNoEligibleAgents(t *testing.T) {
	result := ScoringResult{
		TotalAgents:   3,
		EligibleCount: 0,
		GatingSummary: "0 of 3 agents eligible (3 excluded by no availability)",
	}
	e := Explain(testLead(), result, nil)

	if e.AgentID != "" {
		t.Error("no agent should be recommended")
	}
	if e.Confidence != ConfidenceLow {
		t.Errorf("confidence = %q, want low", e.Confidence)
	}
	if !strings.Contains(e.Summary, "No eligible agent") {
		t.Errorf("summary = %q", e.Summary)
	}
	if !hasWarning(e, "no eligible agents") {
		t.Errorf("warnings = %v", e.Warnings)
	}
	if e.GatingSummary == "" {
		t.Error("gating summary must be carried through")
	}
}

func hasWarning(e RoutingExplanation, substr string) bool {
	for _, w := range e.Warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestExplainCarriesResultWarnings(t *testing.T) {
	result := scoredResult(90, 60, 2)
	result.Warnings = []string{"rule \"quantum\": unsupported score function \"quantum_score\"; failed closed to 0"}

	e := Explain(testLead(), result, nil)
	if !hasWarning(e, "quantum_score") {
		t.Errorf("result warnings must surface in the explanation: %v", e.Warnings)
	}

	degenerate := ScoringResult{GatingSummary: "all gated", Warnings: []string{"enabled rule weights sum to 110.00; rescaled to 100"}}
	e = Explain(testLead(), degenerate, nil)
	if !hasWarning(e, "rescaled to 100") {
		t.Errorf("warnings must survive the no-eligible-agent path: %v", e.Warnings)
	}
}
