// Package guard provides the exactly-once barrier around proposal apply.
// Begin claims a proposal for writeback; only the claimant proceeds, and
// a failed writeback releases the claim so a retry can take it.
package guard

import (
	"context"
	"sync"
	"time"
)

// ApplyGuard serializes apply attempts for a proposal across processes.
type ApplyGuard interface {
	// Begin claims the proposal. It returns true exactly once per claim;
	// concurrent and repeated calls see false until the claim is removed
	// or its TTL lapses.
	Begin(ctx context.Context, orgID, proposalID string) (bool, error)
	// Remove releases the claim so the apply can be retried.
	Remove(ctx context.Context, orgID, proposalID string) error
}

// MemoryGuard is a single-process ApplyGuard for tests and setups without
// Redis. TTL is not enforced; claims live until removed.
type MemoryGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{claims: make(map[string]time.Time)}
}

func (g *MemoryGuard) Begin(_ context.Context, orgID, proposalID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey(orgID, proposalID)
	if _, taken := g.claims[key]; taken {
		return false, nil
	}
	g.claims[key] = time.Now()
	return true, nil
}

func (g *MemoryGuard) Remove(_ context.Context, orgID, proposalID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, guardKey(orgID, proposalID))
	return nil
}

func guardKey(orgID, proposalID string) string {
	return "applyguard:" + orgID + ":" + proposalID
}
