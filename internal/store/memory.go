package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/agentstats"
	"github.com/velora-crm/leadrouter/internal/proposal"
)

// MemoryStore is a mutex-guarded map implementation of Store used by tests
// and local development. Lead history is seeded directly via AddLead.
type MemoryStore struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]*proposal.Proposal
	byKey     map[string]uuid.UUID // "<org>|<idempotency_key>"
	leads     []memoryLead
}

type memoryLead struct {
	orgID      string
	agentID    string
	assignedAt time.Time
	closedAt   *time.Time
	lead       agentstats.HistoricalLead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[uuid.UUID]*proposal.Proposal),
		byKey:     make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Close() error { return nil }

func keyFor(orgID, idempotencyKey string) string {
	return orgID + "|" + idempotencyKey
}

func (s *MemoryStore) CreateOrGet(_ context.Context, p *proposal.Proposal) (*proposal.Proposal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byKey[keyFor(p.OrgID, p.IdempotencyKey)]; ok {
		return clone(s.proposals[id]), false, nil
	}
	s.proposals[p.ID] = clone(p)
	s.byKey[keyFor(p.OrgID, p.IdempotencyKey)] = p.ID
	return clone(p), true, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

func (s *MemoryStore) GetByKey(_ context.Context, orgID, idempotencyKey string) (*proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[keyFor(orgID, idempotencyKey)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.proposals[id]), nil
}

func (s *MemoryStore) Update(_ context.Context, p *proposal.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[p.ID]; !ok {
		return ErrNotFound
	}
	s.proposals[p.ID] = clone(p)
	return nil
}

func (s *MemoryStore) List(_ context.Context, filter ProposalFilter) ([]*proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*proposal.Proposal
	for _, p := range s.proposals {
		if filter.OrgID != "" && p.OrgID != filter.OrgID {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.LeadID != "" && p.LeadID != filter.LeadID {
			continue
		}
		out = append(out, clone(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListExpirable(_ context.Context, now time.Time) ([]*proposal.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*proposal.Proposal
	for _, p := range s.proposals {
		if p.Status == proposal.StatusProposed && p.Expired(now) {
			out = append(out, clone(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context, orgID string) (*ProposalStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &ProposalStats{}
	var appliedScoreSum float64
	for _, p := range s.proposals {
		if p.OrgID != orgID {
			continue
		}
		switch p.Status {
		case proposal.StatusProposed:
			stats.TotalProposed++
		case proposal.StatusApproved:
			stats.TotalApproved++
		case proposal.StatusApplied:
			stats.TotalApplied++
			appliedScoreSum += p.Score
			if p.DecidedBy == proposal.ActorAuto {
				stats.TotalAutoApplied++
			}
		case proposal.StatusRejected:
			stats.TotalRejected++
		case proposal.StatusOverridden:
			stats.TotalOverridden++
		case proposal.StatusWritebackFailed:
			stats.TotalWritebackFailed++
		case proposal.StatusExpired:
			stats.TotalExpired++
		}
	}
	if stats.TotalApplied > 0 {
		stats.AvgAppliedScore = appliedScoreSum / float64(stats.TotalApplied)
		stats.AutoApplyRatio = float64(stats.TotalAutoApplied) / float64(stats.TotalApplied)
	}
	return stats, nil
}

// AddLead seeds one lead into the in-memory history. A nil closedAt means
// the lead is still active.
func (s *MemoryStore) AddLead(orgID string, lead agentstats.HistoricalLead, agentID string, assignedAt time.Time, closedAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads = append(s.leads, memoryLead{
		orgID: orgID, agentID: agentID, assignedAt: assignedAt, closedAt: closedAt, lead: lead,
	})
}

func (s *MemoryStore) ClosedLeads(_ context.Context, orgID, agentID string, since time.Time) ([]agentstats.HistoricalLead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []agentstats.HistoricalLead
	for _, l := range s.leads {
		if l.orgID != orgID || l.agentID != agentID || l.closedAt == nil {
			continue
		}
		if l.closedAt.Before(since) {
			continue
		}
		out = append(out, l.lead)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Before(out[j].ClosedAt) })
	return out, nil
}

func (s *MemoryStore) ActiveLeadCount(_ context.Context, orgID, agentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, l := range s.leads {
		if l.orgID == orgID && l.agentID == agentID && l.closedAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) AssignedCountSince(_ context.Context, orgID, agentID string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, l := range s.leads {
		if l.orgID == orgID && l.agentID == agentID && !l.assignedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func clone(p *proposal.Proposal) *proposal.Proposal {
	cp := *p
	if p.Alternates != nil {
		cp.Alternates = append([]proposal.Alternate(nil), p.Alternates...)
	}
	return &cp
}
