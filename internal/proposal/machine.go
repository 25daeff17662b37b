package proposal

import (
	"errors"
	"fmt"
	"time"
)

// Typed lifecycle errors. ErrExpired is distinct from not-found on purpose:
// callers surface the two differently.
var (
	ErrInvalidTransition = errors.New("invalid proposal transition")
	ErrExpired           = errors.New("proposal expired")
	ErrAlreadyApplied    = errors.New("proposal already applied")
)

// Approve moves PROPOSED → APPROVED. Fails on anything else, and on an
// expired proposal even if its status was never swept to EXPIRED.
func Approve(p *Proposal, actor string, now time.Time) error {
	if p.Status == StatusApplied {
		return ErrAlreadyApplied
	}
	if p.Status != StatusProposed {
		return transitionErr(p.Status, StatusApproved)
	}
	if p.Expired(now) {
		return ErrExpired
	}
	p.Status = StatusApproved
	p.DecidedBy = actor
	p.UpdatedAt = now
	return nil
}

// Reject moves PROPOSED → REJECTED with the actor's reason.
func Reject(p *Proposal, actor, reason string, now time.Time) error {
	if p.Status != StatusProposed {
		return transitionErr(p.Status, StatusRejected)
	}
	p.Status = StatusRejected
	p.RejectedBy = actor
	p.Reason = reason
	p.UpdatedAt = now
	return nil
}

// Override replaces the recommended agent without re-running gating or
// scoring, moving PROPOSED → OVERRIDDEN. When allowReoverride is set an
// already-overridden proposal may be overridden again.
func Override(p *Proposal, actor, agentID, agentName, reason string, allowReoverride bool, now time.Time) error {
	switch p.Status {
	case StatusProposed:
	case StatusOverridden:
		if !allowReoverride {
			return transitionErr(p.Status, StatusOverridden)
		}
	default:
		return transitionErr(p.Status, StatusOverridden)
	}
	if p.Expired(now) {
		return ErrExpired
	}
	p.AgentID = agentID
	p.AgentName = agentName
	p.Status = StatusOverridden
	p.DecidedBy = actor
	p.Reason = reason
	p.UpdatedAt = now
	return nil
}

// CanApply reports whether the proposal is in a state from which writeback
// may be attempted (including a retry after a failed writeback).
func CanApply(p *Proposal) bool {
	switch p.Status {
	case StatusApproved, StatusOverridden, StatusWritebackFailed:
		return true
	}
	return false
}

// MarkApplied records a successful writeback. APPLIED is terminal.
func MarkApplied(p *Proposal, agentID string, now time.Time) error {
	if p.Status == StatusApplied {
		return ErrAlreadyApplied
	}
	if !CanApply(p) {
		return transitionErr(p.Status, StatusApplied)
	}
	p.Status = StatusApplied
	p.AppliedAgentID = agentID
	p.AppliedAt = &now
	p.ApplySucceeded = true
	p.ApplyError = ""
	p.UpdatedAt = now
	return nil
}

// MarkWritebackFailed records a failed writeback attempt, keeping the
// verbatim failure reason so a retry can be audited later.
func MarkWritebackFailed(p *Proposal, cause string, now time.Time) error {
	if !CanApply(p) {
		return transitionErr(p.Status, StatusWritebackFailed)
	}
	p.Status = StatusWritebackFailed
	p.ApplySucceeded = false
	p.ApplyError = cause
	p.UpdatedAt = now
	return nil
}

// Expire moves PROPOSED → EXPIRED once the deadline has passed. Callers
// drive this; the engine never watches a clock on its own.
func Expire(p *Proposal, now time.Time) error {
	if p.Status != StatusProposed {
		return transitionErr(p.Status, StatusExpired)
	}
	if !p.Expired(now) {
		return fmt.Errorf("proposal %s not yet past expiry: %w", p.ID, ErrInvalidTransition)
	}
	p.Status = StatusExpired
	p.UpdatedAt = now
	return nil
}

func transitionErr(from, to Status) error {
	return fmt.Errorf("%s → %s: %w", from, to, ErrInvalidTransition)
}
