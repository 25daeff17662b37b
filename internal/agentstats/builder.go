package agentstats

import (
	"context"
	"fmt"
	"time"

	"github.com/velora-crm/leadrouter/internal/routing"
)

// LeadHistory is the read side the builder needs. The Postgres store
// satisfies it; tests use an in-memory stub.
type LeadHistory interface {
	ClosedLeads(ctx context.Context, orgID, agentID string, since time.Time) ([]HistoricalLead, error)
	ActiveLeadCount(ctx context.Context, orgID, agentID string) (int, error)
	AssignedCountSince(ctx context.Context, orgID, agentID string, since time.Time) (int, error)
}

// Builder assembles AgentProfile snapshots from lead history. Profiles are
// windowed: only leads closed inside the trailing window contribute.
type Builder struct {
	history      LeadHistory
	windowDays   int
	recentWindow time.Duration
}

func NewBuilder(history LeadHistory, windowDays int, recentWindow time.Duration) *Builder {
	if windowDays <= 0 {
		windowDays = 90
	}
	if recentWindow <= 0 {
		recentWindow = 14 * 24 * time.Hour
	}
	return &Builder{history: history, windowDays: windowDays, recentWindow: recentWindow}
}

// Build computes one agent's profile at the given instant. Identity fields
// (name) are the caller's to fill in; Build only owns derived numbers.
func (b *Builder) Build(ctx context.Context, orgID, agentID string, now time.Time) (routing.AgentProfile, error) {
	since := now.AddDate(0, 0, -b.windowDays)
	history, err := b.history.ClosedLeads(ctx, orgID, agentID, since)
	if err != nil {
		return routing.AgentProfile{}, fmt.Errorf("load closed leads for %s: %w", agentID, err)
	}
	active, err := b.history.ActiveLeadCount(ctx, orgID, agentID)
	if err != nil {
		return routing.AgentProfile{}, fmt.Errorf("count active leads for %s: %w", agentID, err)
	}
	today, err := b.history.AssignedCountSince(ctx, orgID, agentID, startOfDay(now))
	if err != nil {
		return routing.AgentProfile{}, fmt.Errorf("count daily leads for %s: %w", agentID, err)
	}
	week, err := b.history.AssignedCountSince(ctx, orgID, agentID, startOfWeek(now))
	if err != nil {
		return routing.AgentProfile{}, fmt.Errorf("count weekly leads for %s: %w", agentID, err)
	}
	month, err := b.history.AssignedCountSince(ctx, orgID, agentID, startOfMonth(now))
	if err != nil {
		return routing.AgentProfile{}, fmt.Errorf("count monthly leads for %s: %w", agentID, err)
	}

	p := routing.AgentProfile{
		ID:                 agentID,
		TotalLeads:         len(history),
		CurrentActiveLeads: active,
		LeadsToday:         today,
		LeadsThisWeek:      week,
		LeadsThisMonth:     month,
		IndustryScores:     IndustryScores(history),
		ComputedAt:         now,
		WindowDays:         b.windowDays,
	}
	p.TopIndustries = TopIndustries(p.IndustryScores, 3)
	p.ConversionRate = ConversionRate(history)
	p.RecentConversionRate = ConversionRateSince(history, now.Add(-b.recentWindow))
	p.HotStreak, p.HotStreakCount = HotStreak(history, now)
	p.BurnoutScore = BurnoutScore(history, now, b.recentWindow)

	var dealTotal float64
	for _, l := range history {
		dealTotal += l.DealSize
		if l.Converted {
			p.ConvertedLeads++
		}
	}
	if len(history) > 0 {
		p.AvgDealSize = dealTotal / float64(len(history))
	}
	return p, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// startOfWeek is the most recent Monday 00:00 UTC.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
