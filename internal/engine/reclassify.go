package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lazypower/strata/internal/apperror"
	"github.com/lazypower/strata/internal/logger"
	"github.com/lazypower/strata/internal/metrics"
	"github.com/lazypower/strata/internal/sector"
	"github.com/lazypower/strata/internal/store"
)

// StatusSuccess is the status of a completed reclassification. Failures
// carry their status in the returned *apperror.Error's Code.
const StatusSuccess = "success"

const consentHint = "create a consent proposal for this edge and target sector, and have it approved by both parties"

// ReclassifyRequest names the edge to move and where to move it.
type ReclassifyRequest struct {
	EdgeRef
	NewSector string `json:"new_sector"`
	Actor     string `json:"actor"`
}

// ReclassifyResult describes a completed reclassification.
type ReclassifyResult struct {
	Status     string         `json:"status"`
	EdgeID     string         `json:"edge_id"`
	FromSector sector.Sector  `json:"from_sector"`
	ToSector   sector.Sector  `json:"to_sector"`
	ProposalID string         `json:"proposal_id,omitempty"`
	Audit      map[string]any `json:"audit"`
}

// Reclassify moves one edge to a new sector. It is the only path that
// changes a stored sector after creation. Constitutive edges need an
// approved proposal; if that cannot be confirmed nothing is written.
// Reclassifying to the current sector succeeds and refreshes the audit.
func (e *Engine) Reclassify(ctx context.Context, req ReclassifyRequest) (*ReclassifyResult, error) {
	res, err := e.reclassify(ctx, req)
	status := StatusSuccess
	if err != nil {
		status = apperror.ErrInternal.Code
		if appErr, ok := apperror.As(err); ok {
			status = appErr.Code
		}
		e.log.Warn("reclassification rejected",
			slog.String("status", status),
			slog.String("edge", req.EdgeRef.String()),
			slog.String("edge_id", req.EdgeID),
			slog.String("new_sector", req.NewSector),
			slog.String("actor", req.Actor),
			logger.Error(err))
	}
	metrics.Reclassifications.WithLabelValues(status).Inc()
	return res, err
}

func (e *Engine) reclassify(ctx context.Context, req ReclassifyRequest) (*ReclassifyResult, error) {
	to, err := sector.Parse(req.NewSector)
	if err != nil {
		return nil, apperror.ErrInvalidSector.
			WithMessage(err.Error()).
			WithDetails(map[string]any{"legal_sectors": sector.Names()})
	}
	req, err = validateReclassify(req)
	if err != nil {
		return nil, err
	}

	edge, err := e.resolveEdge(ctx, req.EdgeRef)
	if err != nil {
		return nil, err
	}

	decision, err := e.gate.Check(ctx, edge, to, req.Actor)
	if err != nil {
		return nil, e.storageErr("consent lookup", err)
	}
	if !decision.Allowed() {
		return nil, apperror.ErrConsentRequired.WithDetails(map[string]any{
			"edge_id": edge.ID,
			"hint":    consentHint,
		})
	}

	from := edge.MemorySector
	audit := map[string]any{
		"from_sector": string(from),
		"to_sector":   string(to),
		"timestamp":   e.now().UTC().Format(time.RFC3339Nano),
		"actor":       req.Actor,
	}
	updated, err := e.DB.UpdateEdgeSector(ctx, store.SectorUpdate{
		EdgeID: edge.ID,
		To:     to,
		Audit:  audit,
		// An ungated decision only holds while the edge stays unprotected.
		Unprotected: !decision.Gated,
	})
	if errors.Is(err, store.ErrEdgeProtected) {
		return nil, apperror.ErrStorage.
			WithMessage("edge became constitutive during reclassification; retry").
			WithInternal(err).
			WithDetails(map[string]any{"edge_id": edge.ID})
	}
	if err != nil {
		return nil, e.storageErr("update edge sector", err)
	}
	if updated == nil {
		return nil, apperror.NewNotFound("edge", edge.ID)
	}

	e.log.Info("memory sector reclassified",
		slog.String("edge_id", updated.ID),
		slog.String("from_sector", string(from)),
		slog.String("to_sector", string(to)),
		slog.String("actor", req.Actor),
		slog.String("proposal_id", decision.ProposalID))

	return &ReclassifyResult{
		Status:     StatusSuccess,
		EdgeID:     updated.ID,
		FromSector: from,
		ToSector:   updated.MemorySector,
		ProposalID: decision.ProposalID,
		Audit:      lastReclassification(updated, audit),
	}, nil
}

func lastReclassification(edge *store.Edge, fallback map[string]any) map[string]any {
	if a, ok := edge.Properties[store.PropLastReclassification].(map[string]any); ok {
		return a
	}
	return fallback
}
