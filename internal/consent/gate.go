// Package consent decides whether a constitutive edge may change sector.
//
// Non-constitutive edges are not gated. A constitutive edge needs an
// approved proposal naming it and the target sector, signed off at the
// proposal's approval level. Any failure to read proposals denies.
package consent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lazypower/strata/internal/logger"
	"github.com/lazypower/strata/internal/metrics"
	"github.com/lazypower/strata/internal/sector"
	"github.com/lazypower/strata/internal/store"
)

// ErrNoSource is returned when a gated edge is checked with no proposal source.
var ErrNoSource = errors.New("no proposal source configured")

// ProposalSource looks up approved proposals for an edge and target sector.
// *store.DB satisfies it.
type ProposalSource interface {
	ApprovedProposals(ctx context.Context, edgeID string, target sector.Sector) ([]store.Proposal, error)
}

// Decision is the result of a gate check. Allowed is true when the edge is
// not gated or a satisfying proposal was found.
type Decision struct {
	Gated      bool
	Approved   bool
	ProposalID string
}

// Allowed reports whether the change may proceed.
func (d Decision) Allowed() bool {
	return !d.Gated || d.Approved
}

func (d Decision) outcome() string {
	switch {
	case !d.Gated:
		return "ungated"
	case d.Approved:
		return "approved"
	default:
		return "denied"
	}
}

// Gate guards reclassification of constitutive edges.
type Gate struct {
	src ProposalSource
	log *slog.Logger
}

// NewGate returns a gate backed by src.
func NewGate(src ProposalSource, log *slog.Logger) *Gate {
	return &Gate{src: src, log: logger.OrDiscard(log).With(logger.Scope("consent"))}
}

// Check decides whether actor may move edge to target. On a lookup error the
// returned decision is gated and unapproved.
func (g *Gate) Check(ctx context.Context, edge *store.Edge, target sector.Sector, actor string) (Decision, error) {
	if !edge.Constitutive() {
		d := Decision{}
		g.record(ctx, edge, target, actor, d, nil)
		return d, nil
	}

	denied := Decision{Gated: true}
	if g.src == nil {
		g.record(ctx, edge, target, actor, denied, ErrNoSource)
		return denied, ErrNoSource
	}

	proposals, err := g.src.ApprovedProposals(ctx, edge.ID, target)
	if err != nil {
		err = fmt.Errorf("lookup proposals for edge %s: %w", edge.ID, err)
		g.record(ctx, edge, target, actor, denied, err)
		return denied, err
	}

	d := denied
	for _, p := range proposals {
		if Satisfied(p, edge.ID, target) {
			d.Approved = true
			d.ProposalID = p.ID
			break
		}
	}
	g.record(ctx, edge, target, actor, d, nil)
	return d, nil
}

// record emits the consent check event. A failed lookup is logged at warn
// with outcome "error".
func (g *Gate) record(ctx context.Context, edge *store.Edge, target sector.Sector, actor string, d Decision, err error) {
	outcome := d.outcome()
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("edge_id", edge.ID),
		slog.String("target", string(target)),
		slog.String("actor", actor),
		slog.Bool("gated", d.Gated),
		slog.Bool("approved", d.Approved),
		slog.String("proposal_id", d.ProposalID),
	}
	if err != nil {
		outcome = "error"
		level = slog.LevelWarn
		attrs = append(attrs, logger.Error(err))
	}
	attrs = append(attrs, slog.String("outcome", outcome))
	metrics.ConsentChecks.WithLabelValues(outcome).Inc()
	g.log.LogAttrs(ctx, level, "consent check", attrs...)
}

// Satisfied reports whether p approves moving edgeID to target: approved
// status, the edge among its affected ids, the exact target sector, and the
// sign-offs its level needs (both parties for bilateral, party A for io_only).
// Unknown levels never pass.
func Satisfied(p store.Proposal, edgeID string, target sector.Sector) bool {
	if !strings.EqualFold(p.Status, store.ProposalApproved) || p.ProposedAction.NewSector != string(target) {
		return false
	}
	named := false
	for _, id := range p.AffectedEdgeIDs {
		if id == edgeID {
			named = true
			break
		}
	}
	if !named {
		return false
	}
	switch p.ApprovalLevel {
	case store.ApprovalBilateral:
		return p.ApprovedByPartyA && p.ApprovedByPartyB
	case store.ApprovalIOOnly:
		return p.ApprovedByPartyA
	}
	return false
}
