package proposal

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/routing"
)

// Status is a proposal's lifecycle state.
type Status string

const (
	StatusProposed        Status = "proposed"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusOverridden      Status = "overridden"
	StatusApplied         Status = "applied"
	StatusWritebackFailed Status = "writeback_failed"
	StatusExpired         Status = "expired"
)

// Mode is the configured decision mode for an org.
type Mode string

const (
	ModeManual Mode = "manual"
	ModeAuto   Mode = "auto"
	ModeHybrid Mode = "hybrid"
)

// ActorAuto is recorded as the approving actor on auto-applied proposals.
const ActorAuto = "auto-router"

// Alternate is a runner-up recommendation carried on the proposal.
type Alternate struct {
	AgentID   string  `json:"agent_id"`
	AgentName string  `json:"agent_name"`
	Score     float64 `json:"score"`
}

// Proposal is the persisted record of one routing decision and its
// approval/apply lifecycle. It is created once per idempotency key and only
// mutated through the transition functions in machine.go.
type Proposal struct {
	ID    uuid.UUID `json:"id"`
	OrgID string    `json:"org_id"`

	LeadID  string `json:"lead_id"`
	BoardID string `json:"board_id,omitempty"`
	ItemID  string `json:"item_id,omitempty"`

	AgentID    string      `json:"agent_id,omitempty"`
	AgentName  string      `json:"agent_name,omitempty"`
	Score      float64     `json:"score"`
	Confidence string      `json:"confidence"`
	Alternates []Alternate `json:"alternates,omitempty"`

	Explanation routing.RoutingExplanation `json:"explanation"`

	Status         Status `json:"status"`
	Mode           Mode   `json:"mode"`
	IdempotencyKey string `json:"idempotency_key"`

	// Writeback outcome
	AppliedAgentID string     `json:"applied_agent_id,omitempty"`
	AppliedAt      *time.Time `json:"applied_at,omitempty"`
	ApplySucceeded bool       `json:"apply_succeeded"`
	ApplyError     string     `json:"apply_error,omitempty"`

	// Audit trail
	DecidedBy  string `json:"decided_by,omitempty"`
	RejectedBy string `json:"rejected_by,omitempty"`
	Reason     string `json:"reason,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the proposal's expiry has passed at the given
// instant. A proposal with no expiry never expires.
func (p *Proposal) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApplied || s == StatusRejected || s == StatusExpired
}

// Versions identifies the configuration in effect when a proposal was
// created. Re-processing the same lead under unchanged versions produces the
// same idempotency key and is therefore a no-op at creation time.
type Versions struct {
	Schema  string `json:"schema" yaml:"schema"`
	Mapping string `json:"mapping" yaml:"mapping"`
	RuleSet string `json:"rule_set" yaml:"rule_set"`
}

// IdempotencyKey derives the deterministic duplicate-creation key for a lead
// under a configuration snapshot.
func IdempotencyKey(leadID string, v Versions) string {
	h := sha256.Sum256([]byte(leadID + "|" + v.Schema + "|" + v.Mapping + "|" + v.RuleSet))
	return hex.EncodeToString(h[:])
}
