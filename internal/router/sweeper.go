package router

import (
	"context"
	"time"

	"github.com/velora-crm/leadrouter/internal/proposal"
)

// Start launches the expiry sweeper. Stop blocks until it drains.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.sweepLoop(ctx)
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Service) sweepLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepExpired(ctx)
		}
	}
}

// SweepExpired expires every pending proposal whose deadline has passed.
// It is safe to call concurrently with routing; Expire only fires from
// PROPOSED, so a proposal decided mid-sweep is left alone.
func (s *Service) SweepExpired(ctx context.Context) {
	now := s.nowFn()
	due, err := s.store.ListExpirable(ctx, now)
	if err != nil {
		s.logger.Error("list expirable proposals failed", "error", err)
		return
	}
	for _, p := range due {
		if err := proposal.Expire(p, now); err != nil {
			continue
		}
		if err := s.store.Update(ctx, p); err != nil {
			s.logger.Error("persist expiry failed", "proposal_id", p.ID, "error", err)
			continue
		}
		expiredProposals.Inc()
		s.publisher.ProposalChanged(p, now)
		s.logger.Info("proposal expired", "proposal_id", p.ID, "lead_id", p.LeadID)
	}
}
