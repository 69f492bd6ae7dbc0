package store

import (
	"context"
	"testing"

	"github.com/lazypower/strata/internal/sector"
)

func TestApprovedProposals(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	save := func(p Proposal) {
		t.Helper()
		if err := db.SaveProposal(ctx, p); err != nil {
			t.Fatalf("SaveProposal(%s): %v", p.ID, err)
		}
	}
	save(Proposal{
		ID: "p-ok", AffectedEdgeIDs: []string{"e-1", "e-2"},
		ProposedAction: ProposedAction{Action: "reclassify", NewSector: "episodic"},
		ApprovalLevel:  ApprovalBilateral, ApprovedByPartyA: true, ApprovedByPartyB: true,
		Status: "APPROVED", CreatedAt: 2,
	})
	save(Proposal{
		ID: "p-pending", AffectedEdgeIDs: []string{"e-1"},
		ProposedAction: ProposedAction{NewSector: "episodic"},
		ApprovalLevel:  ApprovalBilateral, Status: "pending", CreatedAt: 3,
	})
	save(Proposal{
		ID: "p-other-sector", AffectedEdgeIDs: []string{"e-1"},
		ProposedAction: ProposedAction{NewSector: "reflective"},
		ApprovalLevel:  ApprovalBilateral, Status: ProposalApproved, CreatedAt: 4,
	})
	save(Proposal{
		ID: "p-other-edge", AffectedEdgeIDs: []string{"e-9"},
		ProposedAction: ProposedAction{NewSector: "episodic"},
		ApprovalLevel:  ApprovalBilateral, Status: ProposalApproved, CreatedAt: 5,
	})

	got, err := db.ApprovedProposals(ctx, "e-1", sector.Episodic)
	if err != nil {
		t.Fatalf("ApprovedProposals: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p-ok" {
		t.Fatalf("got %+v, want only p-ok", got)
	}
	p := got[0]
	if !p.ApprovedByPartyA || !p.ApprovedByPartyB {
		t.Error("party flags not decoded")
	}
	if len(p.AffectedEdgeIDs) != 2 || p.ProposedAction.Action != "reclassify" {
		t.Errorf("decoded proposal = %+v", p)
	}

	none, err := db.ApprovedProposals(ctx, "e-2", sector.Reflective)
	if err != nil {
		t.Fatalf("ApprovedProposals: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d, want 0", len(none))
	}
}
