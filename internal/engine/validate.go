package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/lazypower/strata/internal/apperror"
	"github.com/lazypower/strata/internal/sector"
	"github.com/lazypower/strata/internal/store"
)

// Input size limits.
const (
	maxNameChars     = 256
	maxRelationChars = 128
	maxActorChars    = 128
)

// requireText trims s and rejects it when empty or longer than max runes.
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.NewValidation(field + " is required")
	}
	if n := utf8.RuneCountInString(s); n > max {
		return "", apperror.NewValidation(fmt.Sprintf("%s too long (%d chars, max %d)", field, n, max))
	}
	return s, nil
}

// validateRelation accepts any non-empty relation without whitespace. The
// vocabulary is open; case is preserved since the classifier matches exactly.
func validateRelation(rel string) (string, error) {
	rel, err := requireText("relation", rel, maxRelationChars)
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(rel, " \t\r\n") {
		return "", apperror.NewValidation(fmt.Sprintf("relation %q must not contain whitespace", rel))
	}
	return rel, nil
}

func validateNode(req AddNodeRequest) (AddNodeRequest, error) {
	var err error
	if req.Label, err = requireText("label", req.Label, maxNameChars); err != nil {
		return req, err
	}
	if req.Name, err = requireText("name", req.Name, maxNameChars); err != nil {
		return req, err
	}
	if req.VectorID != nil && strings.TrimSpace(*req.VectorID) == "" {
		req.VectorID = nil
	}
	return req, nil
}

func validateEdge(req AddEdgeRequest) (AddEdgeRequest, error) {
	var err error
	if req.SourceID, err = requireText("source_id", req.SourceID, maxNameChars); err != nil {
		return req, err
	}
	if req.TargetID, err = requireText("target_id", req.TargetID, maxNameChars); err != nil {
		return req, err
	}
	if req.Relation, err = validateRelation(req.Relation); err != nil {
		return req, err
	}
	if req.Weight != nil {
		w := *req.Weight
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return req, apperror.NewValidation(fmt.Sprintf("weight must be a finite non-negative number, got %v", w))
		}
	}
	return req, nil
}

func validateRef(ref EdgeRef) (EdgeRef, error) {
	var err error
	if ref.SourceName, err = requireText("source_name", ref.SourceName, maxNameChars); err != nil {
		return ref, err
	}
	if ref.TargetName, err = requireText("target_name", ref.TargetName, maxNameChars); err != nil {
		return ref, err
	}
	if ref.Relation, err = validateRelation(ref.Relation); err != nil {
		return ref, err
	}
	ref.EdgeID = strings.TrimSpace(ref.EdgeID)
	return ref, nil
}

func validateReclassify(req ReclassifyRequest) (ReclassifyRequest, error) {
	var err error
	if req.EdgeRef, err = validateRef(req.EdgeRef); err != nil {
		return req, err
	}
	if req.Actor, err = requireText("actor", req.Actor, maxActorChars); err != nil {
		return req, err
	}
	return req, nil
}

// validateNeighbors converts a request into a store query. Depth is clamped
// by the store; negative depths are rejected here.
func validateNeighbors(req NeighborRequest) (store.NeighborQuery, error) {
	var q store.NeighborQuery
	id, err := requireText("node_id", req.NodeID, maxNameChars)
	if err != nil {
		return q, err
	}
	if req.MaxDepth < 0 {
		return q, apperror.NewValidation(fmt.Sprintf("max_depth must be >= 0, got %d", req.MaxDepth))
	}
	dir, err := store.ParseDirection(req.Direction)
	if err != nil {
		return q, apperror.NewValidation(err.Error())
	}
	sectors, err := sector.ParseList(req.SectorFilter)
	if err != nil {
		return q, apperror.ErrInvalidSector.
			WithMessage(err.Error()).
			WithDetails(map[string]any{"legal_sectors": sector.Names()})
	}
	rel := strings.TrimSpace(req.RelationType)

	return store.NeighborQuery{
		NodeID:            id,
		RelationType:      rel,
		MaxDepth:          req.MaxDepth,
		Direction:         dir,
		IncludeSuperseded: req.IncludeSuperseded,
		PropertiesFilter:  req.PropertiesFilter,
		SectorFilter:      sectors,
	}, nil
}

func validatePath(start, end string, maxDepth int) (string, string, error) {
	start, err := requireText("start_name", start, maxNameChars)
	if err != nil {
		return "", "", err
	}
	end, err = requireText("end_name", end, maxNameChars)
	if err != nil {
		return "", "", err
	}
	if maxDepth < 0 {
		return "", "", apperror.NewValidation(fmt.Sprintf("max_depth must be >= 0, got %d", maxDepth))
	}
	return start, end, nil
}
