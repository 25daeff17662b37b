package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/router"
	"github.com/velora-crm/leadrouter/internal/routing"
	"github.com/velora-crm/leadrouter/internal/store"
)

// RoutingService is the slice of the orchestrator the API needs. Tests
// substitute a mock.
type RoutingService interface {
	Route(ctx context.Context, req router.RouteRequest) (*proposal.Proposal, error)
	Get(ctx context.Context, orgID string, id uuid.UUID) (*proposal.Proposal, error)
	List(ctx context.Context, filter store.ProposalFilter) ([]*proposal.Proposal, error)
	Approve(ctx context.Context, orgID string, id uuid.UUID, actor string) (*proposal.Proposal, error)
	Reject(ctx context.Context, orgID string, id uuid.UUID, actor, reason string) (*proposal.Proposal, error)
	Override(ctx context.Context, orgID string, id uuid.UUID, actor, agentID, agentName, reason string) (*proposal.Proposal, error)
	Apply(ctx context.Context, orgID string, id uuid.UUID) (*proposal.Proposal, error)
	Stats(ctx context.Context, orgID string) (*store.ProposalStats, error)
}

type ProposalsHandler struct {
	svc RoutingService
}

func NewProposalsHandler(svc RoutingService) *ProposalsHandler {
	return &ProposalsHandler{svc: svc}
}

type routeRequest struct {
	BoardID string                 `json:"board_id,omitempty"`
	ItemID  string                 `json:"item_id,omitempty"`
	Lead    routing.NormalizedLead `json:"lead"`
}

// Route runs a routing cycle for one lead.
// POST /api/v1/leads/route
func (h *ProposalsHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Lead.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lead.id is required"})
		return
	}

	p, err := h.svc.Route(r.Context(), router.RouteRequest{
		OrgID:   orgID(r),
		BoardID: req.BoardID,
		ItemID:  req.ItemID,
		Lead:    req.Lead,
	})
	if err != nil {
		if p != nil && p.Status == proposal.StatusWritebackFailed {
			writeJSON(w, http.StatusBadGateway, p)
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// List returns proposals for the caller's org, newest first.
// GET /api/v1/proposals?status=&lead_id=&limit=&offset=
func (h *ProposalsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.ProposalFilter{OrgID: orgID(r)}
	if s := r.URL.Query().Get("status"); s != "" {
		status := proposal.Status(s)
		filter.Status = &status
	}
	filter.LeadID = r.URL.Query().Get("lead_id")
	if v := r.URL.Query().Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	proposals, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposals": proposals,
		"count":     len(proposals),
	})
}

// Get returns one proposal.
// GET /api/v1/proposals/{id}
func (h *ProposalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), orgID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Explain returns the versioned explanation payload for a proposal.
// GET /api/v1/proposals/{id}/explain
func (h *ProposalsHandler) Explain(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), orgID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Explanation)
}

type decisionRequest struct {
	Actor     string `json:"actor"`
	AgentID   string `json:"agent_id,omitempty"`
	AgentName string `json:"agent_name,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Approve accepts the recommendation.
// POST /api/v1/proposals/{id}/approve
func (h *ProposalsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Approve(r.Context(), orgID(r), id, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Reject declines the recommendation.
// POST /api/v1/proposals/{id}/reject
func (h *ProposalsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Reject(r.Context(), orgID(r), id, req.Actor, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Override swaps in a different agent.
// POST /api/v1/proposals/{id}/override
func (h *ProposalsHandler) Override(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	req, ok := decodeDecision(w, r)
	if !ok {
		return
	}
	if req.AgentID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "agent_id is required"})
		return
	}
	p, err := h.svc.Override(r.Context(), orgID(r), id, req.Actor, req.AgentID, req.AgentName, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Apply writes the decided assignment back to the CRM.
// POST /api/v1/proposals/{id}/apply
func (h *ProposalsHandler) Apply(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Apply(r.Context(), orgID(r), id)
	if err != nil {
		if p != nil && p.Status == proposal.StatusWritebackFailed {
			writeJSON(w, http.StatusBadGateway, p)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid proposal id"})
		return uuid.Nil, false
	}
	return id, true
}

func decodeDecision(w http.ResponseWriter, r *http.Request) (decisionRequest, bool) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return req, false
	}
	if req.Actor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actor is required"})
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "proposal not found"})
	case errors.Is(err, proposal.ErrAlreadyApplied),
		errors.Is(err, proposal.ErrInvalidTransition),
		errors.Is(err, proposal.ErrExpired):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
