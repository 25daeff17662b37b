package events

import (
	"log/slog"
	"time"

	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/routing"
)

// ProposalEvent is the envelope for every lifecycle subject. Consumers key
// off Status rather than parsing the subject.
type ProposalEvent struct {
	ProposalID string    `json:"proposal_id"`
	OrgID      string    `json:"org_id"`
	LeadID     string    `json:"lead_id"`
	AgentID    string    `json:"agent_id,omitempty"`
	Status     string    `json:"status"`
	Score      float64   `json:"score"`
	Mode       string    `json:"mode"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher emits proposal lifecycle events. A nil client makes every emit a
// no-op, so callers never branch on whether NATS is configured.
type Publisher struct {
	client Client
	logger *slog.Logger
}

func NewPublisher(client Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// ProposalChanged publishes the event for the proposal's current status.
// Publish failures are logged, never propagated: routing must not fail
// because the event bus is down.
func (p *Publisher) ProposalChanged(prop *proposal.Proposal, at time.Time) {
	if p == nil || p.client == nil {
		return
	}
	subject := subjectFor(prop)
	if subject == "" {
		return
	}
	ev := ProposalEvent{
		ProposalID: prop.ID.String(),
		OrgID:      prop.OrgID,
		LeadID:     prop.LeadID,
		AgentID:    prop.AgentID,
		Status:     string(prop.Status),
		Score:      prop.Score,
		Mode:       string(prop.Mode),
		Reason:     prop.Reason,
		At:         at,
	}
	if err := p.client.Publish(subject, ev); err != nil {
		p.logger.Warn("publish proposal event failed",
			"subject", subject, "proposal_id", prop.ID, "error", err)
	}
}

// LeadEvent is the envelope for lead-level subjects.
type LeadEvent struct {
	LeadID   string    `json:"lead_id"`
	OrgID    string    `json:"org_id"`
	Industry string    `json:"industry,omitempty"`
	DealSize float64   `json:"deal_size,omitempty"`
	Source   string    `json:"source,omitempty"`
	At       time.Time `json:"at"`
}

// LeadReceived marks the start of a routing cycle for a lead.
func (p *Publisher) LeadReceived(orgID string, lead routing.NormalizedLead, at time.Time) {
	if p == nil || p.client == nil {
		return
	}
	ev := LeadEvent{
		LeadID:   lead.ID,
		OrgID:    orgID,
		Industry: lead.Industry,
		DealSize: lead.DealSize,
		Source:   lead.Source,
		At:       at,
	}
	if err := p.client.Publish(SubjectLeadReceived(lead.ID), ev); err != nil {
		p.logger.Warn("publish lead received event failed",
			"lead_id", lead.ID, "error", err)
	}
}

// LeadRouted publishes the terminal routed event once a lead's assignment
// lands in the CRM.
func (p *Publisher) LeadRouted(prop *proposal.Proposal, at time.Time) {
	if p == nil || p.client == nil {
		return
	}
	ev := ProposalEvent{
		ProposalID: prop.ID.String(),
		OrgID:      prop.OrgID,
		LeadID:     prop.LeadID,
		AgentID:    prop.AppliedAgentID,
		Status:     string(prop.Status),
		Score:      prop.Score,
		Mode:       string(prop.Mode),
		At:         at,
	}
	if err := p.client.Publish(SubjectLeadRouted(prop.LeadID), ev); err != nil {
		p.logger.Warn("publish lead routed event failed",
			"lead_id", prop.LeadID, "proposal_id", prop.ID, "error", err)
	}
}

func subjectFor(prop *proposal.Proposal) string {
	id := prop.ID.String()
	switch prop.Status {
	case proposal.StatusProposed:
		return SubjectProposalCreated(id)
	case proposal.StatusApproved:
		return SubjectProposalApproved(id)
	case proposal.StatusRejected:
		return SubjectProposalRejected(id)
	case proposal.StatusOverridden:
		return SubjectProposalOverridden(id)
	case proposal.StatusApplied:
		return SubjectProposalApplied(id)
	case proposal.StatusWritebackFailed:
		return SubjectProposalFailed(id)
	case proposal.StatusExpired:
		return SubjectProposalExpired(id)
	}
	return ""
}
