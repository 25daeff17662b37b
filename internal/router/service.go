// Package router orchestrates a routing cycle end to end: profile loading,
// rule evaluation, decision, persistence, and the exactly-once apply path.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/crm"
	"github.com/velora-crm/leadrouter/internal/events"
	"github.com/velora-crm/leadrouter/internal/guard"
	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/routing"
	"github.com/velora-crm/leadrouter/internal/store"
)

// Policy is everything org-specific the engine needs for one cycle.
type Policy struct {
	Rules    []routing.ScoringRule
	Gating   routing.GatingConfig
	Decision proposal.DecisionConfig
	Versions proposal.Versions
}

// RuleSource resolves the policy in effect for an org. The config-backed
// implementation lives in the config package.
type RuleSource interface {
	RoutingPolicy(orgID string) Policy
}

// ProfileSource loads the agent pool with fresh performance snapshots.
type ProfileSource interface {
	Profiles(ctx context.Context, orgID string, now time.Time) ([]routing.AgentProfile, error)
}

// RouteRequest is one lead to place, with its CRM location for writeback.
type RouteRequest struct {
	OrgID   string
	BoardID string
	ItemID  string
	Lead    routing.NormalizedLead
}

type Service struct {
	store     store.Store
	guard     guard.ApplyGuard
	crm       crm.Client
	publisher *events.Publisher
	profiles  ProfileSource
	rules     RuleSource
	logger    *slog.Logger

	rng   *rand.Rand
	rngMu sync.Mutex
	nowFn func() time.Time

	sweepInterval time.Duration
	stopOnce      sync.Once
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

func New(s store.Store, g guard.ApplyGuard, c crm.Client, pub *events.Publisher,
	profiles ProfileSource, rules RuleSource, sweepInterval time.Duration, logger *slog.Logger) *Service {

	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	return &Service{
		store:         s,
		guard:         g,
		crm:           c,
		publisher:     pub,
		profiles:      profiles,
		rules:         rules,
		logger:        logger,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		nowFn:         time.Now,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// Route runs one full cycle for a lead. Re-routing the same lead under an
// unchanged configuration returns the existing proposal untouched.
func (s *Service) Route(ctx context.Context, req RouteRequest) (*proposal.Proposal, error) {
	started := s.nowFn()
	policy := s.rules.RoutingPolicy(req.OrgID)
	s.publisher.LeadReceived(req.OrgID, req.Lead, started)

	agents, err := s.profiles.Profiles(ctx, req.OrgID, started)
	if err != nil {
		return nil, fmt.Errorf("load agent profiles: %w", err)
	}

	result := routing.Evaluate(req.Lead, agents, policy.Rules, policy.Gating, s.logger)
	expl := routing.Explain(req.Lead, result, profileMap(agents))

	s.rngMu.Lock()
	decision := proposal.Decide(req.Lead, result, expl, agents, policy.Decision, policy.Versions, s.rng, started)
	s.rngMu.Unlock()

	p := decision.Proposal
	p.OrgID = req.OrgID
	p.BoardID = req.BoardID
	p.ItemID = req.ItemID
	p.Reason = decision.Reason

	stored, created, err := s.store.CreateOrGet(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("persist proposal: %w", err)
	}
	routingDuration.Observe(s.nowFn().Sub(started).Seconds())
	if !created {
		s.logger.Info("duplicate routing request, returning existing proposal",
			"org_id", req.OrgID, "lead_id", req.Lead.ID,
			"proposal_id", stored.ID, "status", stored.Status)
		duplicateRoutes.Inc()
		return stored, nil
	}

	leadsRouted.WithLabelValues(string(stored.Mode), stored.Confidence).Inc()
	s.publisher.ProposalChanged(stored, started)
	s.logger.Info("lead routed",
		"org_id", req.OrgID, "lead_id", req.Lead.ID, "proposal_id", stored.ID,
		"agent_id", stored.AgentID, "score", stored.Score,
		"confidence", stored.Confidence, "auto_apply", decision.ShouldAutoApply,
		"reason", decision.Reason)

	if !decision.ShouldAutoApply {
		return stored, nil
	}

	if err := proposal.Approve(stored, proposal.ActorAuto, s.nowFn()); err != nil {
		return stored, fmt.Errorf("auto-approve: %w", err)
	}
	if err := s.store.Update(ctx, stored); err != nil {
		return stored, fmt.Errorf("persist auto-approval: %w", err)
	}
	s.publisher.ProposalChanged(stored, s.nowFn())

	applied, err := s.Apply(ctx, req.OrgID, stored.ID)
	if err != nil {
		// The proposal survives in writeback_failed for a retry.
		s.logger.Warn("auto-apply failed", "proposal_id", stored.ID, "error", err)
		if applied != nil {
			return applied, nil
		}
		return stored, nil
	}
	return applied, nil
}

// Approve moves a pending proposal to approved on behalf of a reviewer.
func (s *Service) Approve(ctx context.Context, orgID string, id uuid.UUID, actor string) (*proposal.Proposal, error) {
	return s.transition(ctx, orgID, id, "approve", func(p *proposal.Proposal, now time.Time) error {
		return proposal.Approve(p, actor, now)
	})
}

// Reject declines a pending proposal; the lead stays unassigned.
func (s *Service) Reject(ctx context.Context, orgID string, id uuid.UUID, actor, reason string) (*proposal.Proposal, error) {
	return s.transition(ctx, orgID, id, "reject", func(p *proposal.Proposal, now time.Time) error {
		return proposal.Reject(p, actor, reason, now)
	})
}

// Override swaps the recommended agent for one of the reviewer's choosing.
func (s *Service) Override(ctx context.Context, orgID string, id uuid.UUID, actor, agentID, agentName, reason string) (*proposal.Proposal, error) {
	allowReoverride := s.rules.RoutingPolicy(orgID).Decision.OverrideAllowed
	return s.transition(ctx, orgID, id, "override", func(p *proposal.Proposal, now time.Time) error {
		return proposal.Override(p, actor, agentID, agentName, reason, allowReoverride, now)
	})
}

func (s *Service) transition(ctx context.Context, orgID string, id uuid.UUID, name string,
	fn func(*proposal.Proposal, time.Time) error) (*proposal.Proposal, error) {

	p, err := s.fetch(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	if err := fn(p, now); err != nil {
		return p, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return p, fmt.Errorf("persist %s: %w", name, err)
	}
	transitions.WithLabelValues(name).Inc()
	s.publisher.ProposalChanged(p, now)
	return p, nil
}

// Apply writes the assignment back to the CRM, at most once per proposal.
// An already-applied proposal is a successful no-op. A writeback failure
// leaves the proposal in writeback_failed and releases the claim so the
// next Apply can retry.
func (s *Service) Apply(ctx context.Context, orgID string, id uuid.UUID) (*proposal.Proposal, error) {
	p, err := s.fetch(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if p.Status == proposal.StatusApplied {
		return p, nil
	}
	if !proposal.CanApply(p) {
		return p, fmt.Errorf("%w: cannot apply from %s", proposal.ErrInvalidTransition, p.Status)
	}

	claimed, err := s.guard.Begin(ctx, orgID, id.String())
	if err != nil {
		return p, fmt.Errorf("apply guard: %w", err)
	}
	if !claimed {
		// Another caller holds the claim. Losing the begin race is a
		// no-op success: return the record as it stands.
		s.logger.Info("apply already claimed, skipping",
			"org_id", orgID, "proposal_id", id)
		return p, nil
	}

	now := s.nowFn()
	assignErr := s.crm.AssignLead(ctx, orgID, crm.Assignment{
		LeadID:     p.LeadID,
		BoardID:    p.BoardID,
		ItemID:     p.ItemID,
		AgentID:    p.AgentID,
		ProposalID: p.ID.String(),
		Score:      p.Score,
		Summary:    p.Explanation.Summary,
	})
	if assignErr != nil {
		if err := proposal.MarkWritebackFailed(p, assignErr.Error(), now); err != nil {
			return p, err
		}
		if err := s.store.Update(ctx, p); err != nil {
			return p, fmt.Errorf("persist writeback failure: %w", err)
		}
		if err := s.guard.Remove(ctx, orgID, id.String()); err != nil {
			s.logger.Error("release apply guard failed; retries blocked until TTL",
				"proposal_id", id, "error", err)
		}
		applyFailures.Inc()
		s.publisher.ProposalChanged(p, now)
		return p, fmt.Errorf("crm writeback: %w", assignErr)
	}

	if err := proposal.MarkApplied(p, p.AgentID, now); err != nil {
		return p, err
	}
	if err := s.store.Update(ctx, p); err != nil {
		return p, fmt.Errorf("persist apply: %w", err)
	}
	transitions.WithLabelValues("apply").Inc()
	s.publisher.ProposalChanged(p, now)
	s.publisher.LeadRouted(p, now)
	s.logger.Info("assignment applied",
		"org_id", orgID, "proposal_id", id, "lead_id", p.LeadID, "agent_id", p.AppliedAgentID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, orgID string, id uuid.UUID) (*proposal.Proposal, error) {
	return s.fetch(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, filter store.ProposalFilter) ([]*proposal.Proposal, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) Stats(ctx context.Context, orgID string) (*store.ProposalStats, error) {
	return s.store.Stats(ctx, orgID)
}

// fetch loads a proposal and refuses cross-org access.
func (s *Service) fetch(ctx context.Context, orgID string, id uuid.UUID) (*proposal.Proposal, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func profileMap(agents []routing.AgentProfile) map[string]routing.AgentProfile {
	m := make(map[string]routing.AgentProfile, len(agents))
	for _, a := range agents {
		m[a.ID] = a
	}
	return m
}
