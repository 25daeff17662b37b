package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/router"
	"github.com/velora-crm/leadrouter/internal/routing"
	"github.com/velora-crm/leadrouter/internal/store"
)

// mockService records calls and returns canned results.
type mockService struct {
	proposals  map[uuid.UUID]*proposal.Proposal
	routeErr   error
	applyErr   error
	lastFilter store.ProposalFilter
	lastRoute  router.RouteRequest
}

func newMockService() *mockService {
	return &mockService{proposals: make(map[uuid.UUID]*proposal.Proposal)}
}

func (m *mockService) add(p *proposal.Proposal) *proposal.Proposal {
	m.proposals[p.ID] = p
	return p
}

func (m *mockService) Route(_ context.Context, req router.RouteRequest) (*proposal.Proposal, error) {
	m.lastRoute = req
	if m.routeErr != nil {
		return nil, m.routeErr
	}
	p := &proposal.Proposal{
		ID: uuid.New(), OrgID: req.OrgID, LeadID: req.Lead.ID,
		AgentID: "agent-a", Status: proposal.StatusProposed,
	}
	m.proposals[p.ID] = p
	return p, nil
}

func (m *mockService) Get(_ context.Context, orgID string, id uuid.UUID) (*proposal.Proposal, error) {
	p, ok := m.proposals[id]
	if !ok || p.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func (m *mockService) List(_ context.Context, filter store.ProposalFilter) ([]*proposal.Proposal, error) {
	m.lastFilter = filter
	var out []*proposal.Proposal
	for _, p := range m.proposals {
		if p.OrgID == filter.OrgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockService) Approve(ctx context.Context, orgID string, id uuid.UUID, actor string) (*proposal.Proposal, error) {
	p, err := m.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != proposal.StatusProposed {
		return p, fmt.Errorf("%w: approve from %s", proposal.ErrInvalidTransition, p.Status)
	}
	p.Status = proposal.StatusApproved
	p.DecidedBy = actor
	return p, nil
}

func (m *mockService) Reject(ctx context.Context, orgID string, id uuid.UUID, actor, reason string) (*proposal.Proposal, error) {
	p, err := m.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	p.Status = proposal.StatusRejected
	p.RejectedBy = actor
	p.Reason = reason
	return p, nil
}

func (m *mockService) Override(ctx context.Context, orgID string, id uuid.UUID, actor, agentID, agentName, reason string) (*proposal.Proposal, error) {
	p, err := m.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	p.Status = proposal.StatusOverridden
	p.AgentID = agentID
	p.AgentName = agentName
	return p, nil
}

func (m *mockService) Apply(ctx context.Context, orgID string, id uuid.UUID) (*proposal.Proposal, error) {
	p, err := m.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if m.applyErr != nil {
		p.Status = proposal.StatusWritebackFailed
		p.ApplyError = m.applyErr.Error()
		return p, m.applyErr
	}
	p.Status = proposal.StatusApplied
	return p, nil
}

func (m *mockService) Stats(_ context.Context, orgID string) (*store.ProposalStats, error) {
	return &store.ProposalStats{TotalApplied: 7}, nil
}

func testRouter(m *mockService, adminToken string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(m, adminToken, logger)
}

func doReq(t *testing.T, h http.Handler, method, path string, body interface{}, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("X-Org-ID", "org-1")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouteEndpoint(t *testing.T) {
	m := newMockService()
	h := testRouter(m, "")

	rec := doReq(t, h, "POST", "/api/v1/leads/route", routeRequest{
		BoardID: "board-1",
		Lead:    routing.NormalizedLead{ID: "lead-1", Industry: "Legal"},
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if m.lastRoute.OrgID != "org-1" || m.lastRoute.Lead.ID != "lead-1" || m.lastRoute.BoardID != "board-1" {
		t.Errorf("route request = %+v", m.lastRoute)
	}

	var got proposal.Proposal
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.LeadID != "lead-1" {
		t.Errorf("lead = %s", got.LeadID)
	}
}

func TestRouteValidation(t *testing.T) {
	h := testRouter(newMockService(), "")

	rec := doReq(t, h, "POST", "/api/v1/leads/route", routeRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty lead id: status = %d", rec.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/leads/route", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-Org-ID", "org-1")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d", rec.Code)
	}
}

func TestOrgHeaderRequired(t *testing.T) {
	h := testRouter(newMockService(), "")
	req := httptest.NewRequest("GET", "/api/v1/proposals", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGetNotFound(t *testing.T) {
	h := testRouter(newMockService(), "")
	rec := doReq(t, h, "GET", "/api/v1/proposals/"+uuid.NewString(), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}

	rec = doReq(t, h, "GET", "/api/v1/proposals/not-a-uuid", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d", rec.Code)
	}
}

func TestApproveAndConflict(t *testing.T) {
	m := newMockService()
	p := m.add(&proposal.Proposal{ID: uuid.New(), OrgID: "org-1", Status: proposal.StatusProposed})
	h := testRouter(m, "")

	rec := doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/approve",
		decisionRequest{Actor: "manager"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body.String())
	}

	// Approving again is a state-machine violation → 409.
	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/approve",
		decisionRequest{Actor: "manager"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double approve: status = %d", rec.Code)
	}

	// Actor is mandatory.
	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/reject",
		decisionRequest{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing actor: status = %d", rec.Code)
	}
}

func TestOverrideRequiresAgent(t *testing.T) {
	m := newMockService()
	p := m.add(&proposal.Proposal{ID: uuid.New(), OrgID: "org-1", Status: proposal.StatusProposed})
	h := testRouter(m, "")

	rec := doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/override",
		decisionRequest{Actor: "manager"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}

	rec = doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/override",
		decisionRequest{Actor: "manager", AgentID: "agent-b", AgentName: "Bea"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("override: %d %s", rec.Code, rec.Body.String())
	}
	var got proposal.Proposal
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.AgentID != "agent-b" || got.Status != proposal.StatusOverridden {
		t.Errorf("proposal = %+v", got)
	}
}

func TestApplyWritebackFailure(t *testing.T) {
	m := newMockService()
	m.applyErr = fmt.Errorf("crm writeback: 502")
	p := m.add(&proposal.Proposal{ID: uuid.New(), OrgID: "org-1", Status: proposal.StatusApproved})
	h := testRouter(m, "")

	rec := doReq(t, h, "POST", "/api/v1/proposals/"+p.ID.String()+"/apply", nil, nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	var got proposal.Proposal
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != proposal.StatusWritebackFailed {
		t.Errorf("body status = %s", got.Status)
	}
}

func TestListPassesFilter(t *testing.T) {
	m := newMockService()
	m.add(&proposal.Proposal{ID: uuid.New(), OrgID: "org-1"})
	h := testRouter(m, "")

	rec := doReq(t, h, "GET", "/api/v1/proposals?status=proposed&lead_id=lead-1&limit=5&offset=10", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if m.lastFilter.OrgID != "org-1" || m.lastFilter.LeadID != "lead-1" ||
		m.lastFilter.Limit != 5 || m.lastFilter.Offset != 10 {
		t.Errorf("filter = %+v", m.lastFilter)
	}
	if m.lastFilter.Status == nil || *m.lastFilter.Status != proposal.StatusProposed {
		t.Errorf("status filter = %v", m.lastFilter.Status)
	}
}

func TestExplainEndpoint(t *testing.T) {
	m := newMockService()
	p := m.add(&proposal.Proposal{
		ID: uuid.New(), OrgID: "org-1",
		Explanation: routing.RoutingExplanation{SchemaVersion: 1, Summary: "Dana wins on conversion"},
	})
	h := testRouter(m, "")

	rec := doReq(t, h, "GET", "/api/v1/proposals/"+p.ID.String()+"/explain", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got routing.RoutingExplanation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.SchemaVersion != 1 || got.Summary == "" {
		t.Errorf("explanation = %+v", got)
	}
}

func TestStatsRequiresAdminToken(t *testing.T) {
	m := newMockService()
	h := testRouter(m, "secret")

	rec := doReq(t, h, "GET", "/api/v1/stats", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}

	rec = doReq(t, h, "GET", "/api/v1/stats", nil, map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: status = %d", rec.Code)
	}
	var got store.ProposalStats
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.TotalApplied != 7 {
		t.Errorf("stats = %+v", got)
	}
}
