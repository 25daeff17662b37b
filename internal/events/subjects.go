package events

const (
	StreamName   = "LEADROUTER_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectLeadReceived(leadID string) string { return "crm.lead." + leadID + ".received" }
func SubjectLeadRouted(leadID string) string   { return "crm.lead." + leadID + ".routed" }

func SubjectProposalCreated(proposalID string) string    { return "crm.proposal." + proposalID + ".created" }
func SubjectProposalApproved(proposalID string) string   { return "crm.proposal." + proposalID + ".approved" }
func SubjectProposalRejected(proposalID string) string   { return "crm.proposal." + proposalID + ".rejected" }
func SubjectProposalOverridden(proposalID string) string { return "crm.proposal." + proposalID + ".overridden" }
func SubjectProposalApplied(proposalID string) string    { return "crm.proposal." + proposalID + ".applied" }
func SubjectProposalFailed(proposalID string) string     { return "crm.proposal." + proposalID + ".writeback_failed" }
func SubjectProposalExpired(proposalID string) string    { return "crm.proposal." + proposalID + ".expired" }
