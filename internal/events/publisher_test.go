package events

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/velora-crm/leadrouter/internal/proposal"
	"github.com/velora-crm/leadrouter/internal/routing"
)

type fakeClient struct {
	subjects []string
	payloads []interface{}
	err      error
}

func (f *fakeClient) Publish(subject string, data interface{}) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func (f *fakeClient) Subscribe(string, func(string, []byte)) error { return nil }
func (f *fakeClient) Close()                                       {}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProposalChangedSubjects(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	statuses := []struct {
		status proposal.Status
		suffix string
	}{
		{proposal.StatusProposed, ".created"},
		{proposal.StatusApproved, ".approved"},
		{proposal.StatusRejected, ".rejected"},
		{proposal.StatusOverridden, ".overridden"},
		{proposal.StatusApplied, ".applied"},
		{proposal.StatusWritebackFailed, ".writeback_failed"},
		{proposal.StatusExpired, ".expired"},
	}

	for _, tc := range statuses {
		fc := &fakeClient{}
		pub := NewPublisher(fc, discard())
		p := &proposal.Proposal{ID: uuid.New(), OrgID: "org-1", LeadID: "lead-1", Status: tc.status}
		pub.ProposalChanged(p, now)

		if len(fc.subjects) != 1 {
			t.Fatalf("%s: published %d events", tc.status, len(fc.subjects))
		}
		want := "crm.proposal." + p.ID.String() + tc.suffix
		if fc.subjects[0] != want {
			t.Errorf("%s: subject = %s, want %s", tc.status, fc.subjects[0], want)
		}
	}
}

func TestProposalEventPayload(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fc := &fakeClient{}
	pub := NewPublisher(fc, discard())

	p := &proposal.Proposal{
		ID: uuid.New(), OrgID: "org-1", LeadID: "lead-1", AgentID: "agent-a",
		Status: proposal.StatusApproved, Score: 87.5, Mode: proposal.ModeHybrid,
	}
	pub.ProposalChanged(p, now)

	ev, ok := fc.payloads[0].(ProposalEvent)
	if !ok {
		t.Fatalf("payload type %T", fc.payloads[0])
	}
	if ev.OrgID != "org-1" || ev.Status != "approved" || ev.Score != 87.5 || !ev.At.Equal(now) {
		t.Errorf("event = %+v", ev)
	}

	// The envelope must round-trip as JSON for NATS consumers.
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	var back ProposalEvent
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	fc := &fakeClient{err: io.ErrClosedPipe}
	pub := NewPublisher(fc, discard())
	p := &proposal.Proposal{ID: uuid.New(), Status: proposal.StatusApplied}
	pub.ProposalChanged(p, time.Now()) // must not panic or propagate
}

func TestNilClientNoOp(t *testing.T) {
	pub := NewPublisher(nil, discard())
	pub.ProposalChanged(&proposal.Proposal{ID: uuid.New(), Status: proposal.StatusApplied}, time.Now())
	pub.LeadRouted(&proposal.Proposal{ID: uuid.New()}, time.Now())

	var nilPub *Publisher
	nilPub.ProposalChanged(&proposal.Proposal{ID: uuid.New()}, time.Now())
}

func TestLeadReceived(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	fc := &fakeClient{}
	p := NewPublisher(fc, discard())

	p.LeadReceived("org-1", routing.NormalizedLead{
		ID: "lead-1", Industry: "Legal", DealSize: 5000, Source: "webform",
	}, now)

	if len(fc.subjects) != 1 || fc.subjects[0] != SubjectLeadReceived("lead-1") {
		t.Fatalf("subjects = %v", fc.subjects)
	}
	raw, err := json.Marshal(fc.payloads[0])
	if err != nil {
		t.Fatal(err)
	}
	var ev LeadEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.LeadID != "lead-1" || ev.OrgID != "org-1" || ev.Industry != "Legal" || ev.DealSize != 5000 {
		t.Errorf("event = %+v", ev)
	}

	var nilPub *Publisher
	nilPub.LeadReceived("org-1", routing.NormalizedLead{ID: "lead-2"}, now)
}
