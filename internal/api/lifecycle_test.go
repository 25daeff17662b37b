package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora-crm/leadrouter/internal/crm"
	"github.com/velora-crm/leadrouter/internal/events"
	"github.com/velora-crm/leadrouter/internal/guard"
	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/router"
	"github.com/velora-crm/leadrouter/internal/routing"
	"github.com/velora-crm/leadrouter/internal/store"
)

type lifecycleCRM struct {
	assignments []crm.Assignment
}

func (f *lifecycleCRM) ListAgents(context.Context, string) ([]crm.Agent, error) { return nil, nil }

func (f *lifecycleCRM) AssignLead(_ context.Context, _ string, a crm.Assignment) error {
	f.assignments = append(f.assignments, a)
	return nil
}

type lifecycleRules struct{}

func (lifecycleRules) RoutingPolicy(string) router.Policy {
	conv := routing.ScoreSpec{Method: routing.MethodBuiltin, Builtin: routing.BuiltinConversionRate}
	return router.Policy{
		Rules: []routing.ScoringRule{
			{ID: "conv", Name: "Conversion", Weight: 100, Enabled: true, Category: routing.CategoryPerformance, Score: conv},
		},
		Decision: proposal.DecisionConfig{Mode: proposal.ModeManual, ExpiryHours: 24, OverrideAllowed: true},
		Versions: proposal.Versions{Schema: "s1", Mapping: "m1", RuleSet: "r1"},
	}
}

type lifecycleProfiles struct{}

func (lifecycleProfiles) Profiles(context.Context, string, time.Time) ([]routing.AgentProfile, error) {
	high, low := 0.8, 0.3
	return []routing.AgentProfile{
		{ID: "agent-a", Name: "Dana", Availability: 0.9, ConversionRate: &high},
		{ID: "agent-b", Name: "Bea", Availability: 0.4, ConversionRate: &low},
	}, nil
}

// TestManualLifecycleOverHTTP drives route → list → approve → apply through
// the real service and HTTP surface.
func TestManualLifecycleOverHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fc := &lifecycleCRM{}
	svc := router.New(store.NewMemoryStore(), guard.NewMemoryGuard(), fc,
		events.NewPublisher(nil, logger), lifecycleProfiles{}, lifecycleRules{}, time.Minute, logger)
	h := NewRouter(svc, "", logger)

	rec := doReq(t, h, "POST", "/api/v1/leads/route", routeRequest{
		Lead: routing.NormalizedLead{ID: "lead-1", Industry: "Legal", DealSize: 12000},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p proposal.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, proposal.StatusProposed, p.Status)
	assert.Equal(t, "agent-a", p.AgentID)
	assert.Empty(t, fc.assignments, "manual mode must not write back yet")

	rec = doReq(t, h, "GET", "/api/v1/proposals?status=proposed", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/approve",
		decisionRequest{Actor: "manager"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/apply", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var applied proposal.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &applied))
	assert.Equal(t, proposal.StatusApplied, applied.Status)
	assert.Equal(t, "agent-a", applied.AppliedAgentID)
	require.Len(t, fc.assignments, 1)
	assert.Equal(t, "lead-1", fc.assignments[0].LeadID)

	// Re-applying is a no-op success, not a second writeback.
	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/apply", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, fc.assignments, 1)
}

func TestRejectLifecycleOverHTTP(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := router.New(store.NewMemoryStore(), guard.NewMemoryGuard(), &lifecycleCRM{},
		events.NewPublisher(nil, logger), lifecycleProfiles{}, lifecycleRules{}, time.Minute, logger)
	h := NewRouter(svc, "", logger)

	rec := doReq(t, h, "POST", "/api/v1/leads/route", routeRequest{
		Lead: routing.NormalizedLead{ID: "lead-2"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var p proposal.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))

	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/reject",
		decisionRequest{Actor: "manager", Reason: "duplicate lead"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rejected proposal.Proposal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rejected))
	assert.Equal(t, proposal.StatusRejected, rejected.Status)
	assert.Equal(t, "duplicate lead", rejected.Reason)

	// Rejected is terminal: apply must 409.
	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/apply", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
