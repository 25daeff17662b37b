package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/agentstats"
	"github.com/velora-crm/leadrouter/internal/proposal"
)

// ErrNotFound is returned when no proposal matches the lookup.
var ErrNotFound = errors.New("proposal not found")

// ProposalFilter narrows List results. Zero values mean "any".
type ProposalFilter struct {
	OrgID  string
	Status *proposal.Status
	LeadID string
	Limit  int
	Offset int
}

// ProposalStats summarizes an org's proposal pipeline.
type ProposalStats struct {
	TotalProposed        int     `json:"total_proposed"`
	TotalApproved        int     `json:"total_approved"`
	TotalApplied         int     `json:"total_applied"`
	TotalRejected        int     `json:"total_rejected"`
	TotalOverridden      int     `json:"total_overridden"`
	TotalWritebackFailed int     `json:"total_writeback_failed"`
	TotalExpired         int     `json:"total_expired"`
	TotalAutoApplied     int     `json:"total_auto_applied"`
	AvgAppliedScore      float64 `json:"avg_applied_score"`
	AutoApplyRatio       float64 `json:"auto_apply_ratio"`
}

// Store persists proposals and serves the lead-history reads that profile
// building needs. CreateOrGet is the idempotency boundary: a second create
// under the same key returns the existing record untouched, whatever its
// state.
type Store interface {
	CreateOrGet(ctx context.Context, p *proposal.Proposal) (*proposal.Proposal, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*proposal.Proposal, error)
	GetByKey(ctx context.Context, orgID, idempotencyKey string) (*proposal.Proposal, error)
	Update(ctx context.Context, p *proposal.Proposal) error
	List(ctx context.Context, filter ProposalFilter) ([]*proposal.Proposal, error)
	ListExpirable(ctx context.Context, now time.Time) ([]*proposal.Proposal, error)
	Stats(ctx context.Context, orgID string) (*ProposalStats, error)

	agentstats.LeadHistory

	Close() error
}
