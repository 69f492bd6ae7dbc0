package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lazypower/strata/internal/sector"
)

// Approval levels a proposal may require.
const (
	ApprovalBilateral = "bilateral"
	ApprovalIOOnly    = "io_only"
)

// ProposalApproved is the status of a proposal that has cleared review.
const ProposalApproved = "approved"

// ProposedAction is the change a proposal asks for.
type ProposedAction struct {
	Action    string `json:"action"`
	NewSector string `json:"new_sector"`
}

// Proposal is a consent record. The consent subsystem writes these; strata
// only reads them.
type Proposal struct {
	ID               string         `json:"id"`
	AffectedEdgeIDs  []string       `json:"affected_edge_ids"`
	ProposedAction   ProposedAction `json:"proposed_action"`
	ApprovalLevel    string         `json:"approval_level"`
	ApprovedByPartyA bool           `json:"approved_by_party_a"`
	ApprovedByPartyB bool           `json:"approved_by_party_b"`
	Status           string         `json:"status"`
	CreatedAt        int64          `json:"created_at"`
}

// ApprovedProposals returns approved proposals that name edgeID among their
// affected edges and target the given sector, newest first.
func (db *DB) ApprovedProposals(ctx context.Context, edgeID string, target sector.Sector) ([]Proposal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT p.id, p.affected_edge_ids, p.proposed_action, p.approval_level,
			p.approved_by_party_a, p.approved_by_party_b, p.status, p.created_at
		FROM consent_proposals p
		WHERE lower(p.status) = ?
		  AND json_extract(p.proposed_action, '$.new_sector') = ?
		  AND EXISTS (SELECT 1 FROM json_each(p.affected_edge_ids) WHERE json_each.value = ?)
		ORDER BY p.created_at DESC, p.id
	`, ProposalApproved, string(target), edgeID)
	if err != nil {
		return nil, fmt.Errorf("approved proposals: %w", err)
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		var p Proposal
		var affected, action string
		var partyA, partyB int
		if err := rows.Scan(&p.ID, &affected, &action, &p.ApprovalLevel,
			&partyA, &partyB, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		if err := json.Unmarshal([]byte(affected), &p.AffectedEdgeIDs); err != nil {
			return nil, fmt.Errorf("decode affected_edge_ids for %s: %w", p.ID, err)
		}
		if err := json.Unmarshal([]byte(action), &p.ProposedAction); err != nil {
			return nil, fmt.Errorf("decode proposed_action for %s: %w", p.ID, err)
		}
		p.ApprovedByPartyA = partyA != 0
		p.ApprovedByPartyB = partyB != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProposal inserts or replaces a proposal. Used by tooling and tests that
// stand in for the consent subsystem.
func (db *DB) SaveProposal(ctx context.Context, p Proposal) error {
	affected, err := json.Marshal(p.AffectedEdgeIDs)
	if err != nil {
		return fmt.Errorf("encode affected_edge_ids: %w", err)
	}
	action, err := json.Marshal(p.ProposedAction)
	if err != nil {
		return fmt.Errorf("encode proposed_action: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO consent_proposals (id, affected_edge_ids, proposed_action, approval_level,
			approved_by_party_a, approved_by_party_b, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, string(affected), string(action), p.ApprovalLevel,
		boolInt(p.ApprovedByPartyA), boolInt(p.ApprovedByPartyB), p.Status, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
