package router

import (
	"context"
	"fmt"
	"time"

	"github.com/velora-crm/leadrouter/internal/agentstats"
	"github.com/velora-crm/leadrouter/internal/crm"
	"github.com/velora-crm/leadrouter/internal/routing"
)

// CRMProfileSource builds the routing pool by joining the CRM roster with
// performance snapshots derived from lead history. Roster availability is
// scaled down by active-lead headroom; an agent at any daily, weekly,
// monthly, or active-lead limit is surfaced with zero availability so
// gating excludes them.
type CRMProfileSource struct {
	crm     crm.Client
	builder *agentstats.Builder
	limits  agentstats.CapacityLimits
}

func NewCRMProfileSource(c crm.Client, builder *agentstats.Builder, limits agentstats.CapacityLimits) *CRMProfileSource {
	return &CRMProfileSource{crm: c, builder: builder, limits: limits}
}

func (p *CRMProfileSource) Profiles(ctx context.Context, orgID string, now time.Time) ([]routing.AgentProfile, error) {
	roster, err := p.crm.ListAgents(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	profiles := make([]routing.AgentProfile, 0, len(roster))
	for _, agent := range roster {
		profile, err := p.builder.Build(ctx, orgID, agent.ID, now)
		if err != nil {
			return nil, fmt.Errorf("build profile for %s: %w", agent.ID, err)
		}
		profile.Name = agent.Name

		status := agentstats.Capacity(agentstats.Workload{
			ActiveLeads:  profile.CurrentActiveLeads,
			DailyCount:   profile.LeadsToday,
			WeeklyCount:  profile.LeadsThisWeek,
			MonthlyCount: profile.LeadsThisMonth,
		}, p.effectiveLimits(agent))
		profile.Availability = agentstats.AvailabilityScore(agent.Availability, status) / 100

		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// effectiveLimits lets a per-agent CRM setting tighten the org default.
func (p *CRMProfileSource) effectiveLimits(agent crm.Agent) agentstats.CapacityLimits {
	limits := p.limits
	if agent.MaxActive > 0 && (limits.MaxActiveLeads == 0 || agent.MaxActive < limits.MaxActiveLeads) {
		limits.MaxActiveLeads = agent.MaxActive
	}
	if agent.DailyLimit > 0 && (limits.DailyLimit == 0 || agent.DailyLimit < limits.DailyLimit) {
		limits.DailyLimit = agent.DailyLimit
	}
	return limits
}
