package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	leadsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadrouter_leads_routed_total",
		Help: "Routing cycles that produced a new proposal, by mode and confidence.",
	}, []string{"mode", "confidence"})

	duplicateRoutes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadrouter_duplicate_routes_total",
		Help: "Routing requests answered by an existing proposal via the idempotency key.",
	})

	transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadrouter_proposal_transitions_total",
		Help: "Proposal lifecycle transitions by kind.",
	}, []string{"kind"})

	applyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadrouter_apply_failures_total",
		Help: "CRM writeback attempts that failed.",
	})

	expiredProposals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadrouter_proposals_expired_total",
		Help: "Proposals expired by the sweeper.",
	})

	routingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "leadrouter_routing_duration_seconds",
		Help:    "Wall time of one routing cycle up to persistence.",
		Buckets: prometheus.DefBuckets,
	})
)
