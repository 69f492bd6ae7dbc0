package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/lazypower/strata/internal/sector"
)

// Direction selects which edges a traversal follows from a node.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
	Both     Direction = "both"
)

// ParseDirection accepts outgoing/out, incoming/in, and both. Empty is Both.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "both":
		return Both, nil
	case "outgoing", "out":
		return Outgoing, nil
	case "incoming", "in":
		return Incoming, nil
	}
	return "", fmt.Errorf("invalid direction %q", raw)
}

const (
	DefaultNeighborDepth = 1
	MaxNeighborDepth     = 5
)

// NeighborQuery describes a breadth-first neighborhood expansion.
//
// SectorFilter nil means every sector is traversable; a non-nil empty
// slice means none is.
type NeighborQuery struct {
	NodeID            string
	RelationType      string
	MaxDepth          int
	Direction         Direction
	IncludeSuperseded bool
	PropertiesFilter  map[string]any
	SectorFilter      []sector.Sector
}

// Neighbor is a node reached by traversal, with the edge that first reached
// it and its hop distance from the start node.
type Neighbor struct {
	Node  Node `json:"node"`
	Edge  Edge `json:"edge"`
	Depth int  `json:"depth"`
}

func clampDepth(d, def, max int) int {
	if d <= 0 {
		return def
	}
	if d > max {
		return max
	}
	return d
}

// QueryNeighbors expands the graph level by level from q.NodeID. Only
// traversable edges (matching every filter) are followed; each node is
// reported once, at the depth it was first reached. The returned edges are
// touched as read.
func (db *DB) QueryNeighbors(ctx context.Context, q NeighborQuery) ([]Neighbor, error) {
	if q.SectorFilter != nil && len(q.SectorFilter) == 0 {
		return []Neighbor{}, nil
	}
	filter, err := normalizeFilter(q.PropertiesFilter)
	if err != nil {
		return nil, err
	}
	if q.Direction == "" {
		q.Direction = Both
	}
	depth := clampDepth(q.MaxDepth, DefaultNeighborDepth, MaxNeighborDepth)

	visited := map[string]bool{q.NodeID: true}
	frontier := []string{q.NodeID}
	result := []Neighbor{}

	for level := 1; level <= depth && len(frontier) > 0; level++ {
		edges, err := frontierEdges(ctx, db, frontier, q)
		if err != nil {
			return nil, err
		}

		type reached struct {
			nodeID string
			edge   Edge
		}
		var found []reached
		var next []string
		inFrontier := setOf(frontier)
		for _, e := range edges {
			if !matchProperties(e.Properties, filter) {
				continue
			}
			for _, other := range stepTargets(e, inFrontier, q.Direction) {
				if visited[other] {
					continue
				}
				visited[other] = true
				next = append(next, other)
				found = append(found, reached{nodeID: other, edge: e})
			}
		}

		nodes, err := nodesByIDs(ctx, db, next)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			n, ok := nodes[f.nodeID]
			if !ok {
				continue
			}
			result = append(result, Neighbor{Node: n, Edge: f.edge, Depth: level})
		}
		frontier = next
	}

	if len(result) > 0 {
		ids := make([]string, len(result))
		for i, nb := range result {
			ids[i] = nb.Edge.ID
		}
		if err := db.TouchEdges(ctx, ids); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// stepTargets returns the far endpoints of e reachable from the frontier in
// the given direction.
func stepTargets(e Edge, inFrontier map[string]bool, dir Direction) []string {
	var out []string
	if (dir == Outgoing || dir == Both) && inFrontier[e.SourceID] {
		out = append(out, e.TargetID)
	}
	if (dir == Incoming || dir == Both) && inFrontier[e.TargetID] {
		out = append(out, e.SourceID)
	}
	return out
}

// frontierEdges loads every edge touching the frontier that passes the
// relation, sector, and superseded filters.
func frontierEdges(ctx context.Context, q queryer, frontier []string, nq NeighborQuery) ([]Edge, error) {
	ph := placeholders(len(frontier))
	var where []string
	var args []any

	switch nq.Direction {
	case Outgoing:
		where = append(where, "source_id IN ("+ph+")")
		args = append(args, stringArgs(frontier)...)
	case Incoming:
		where = append(where, "target_id IN ("+ph+")")
		args = append(args, stringArgs(frontier)...)
	default:
		where = append(where, "(source_id IN ("+ph+") OR target_id IN ("+ph+"))")
		args = append(args, stringArgs(frontier)...)
		args = append(args, stringArgs(frontier)...)
	}

	if nq.RelationType != "" {
		where = append(where, "relation = ?")
		args = append(args, nq.RelationType)
	}
	if nq.SectorFilter != nil {
		where = append(where, "COALESCE(memory_sector, ?) IN ("+placeholders(len(nq.SectorFilter))+")")
		args = append(args, string(sector.Default))
		for _, s := range nq.SectorFilter {
			args = append(args, string(s))
		}
	}
	if !nq.IncludeSuperseded {
		where = append(where, "json_extract(properties, '$."+PropSupersededBy+"') IS NULL")
	}

	rows, err := q.QueryContext(ctx,
		"SELECT "+edgeColumns+" FROM edges WHERE "+strings.Join(where, " AND ")+" ORDER BY created_at, id",
		args...)
	if err != nil {
		return nil, fmt.Errorf("frontier edges: %w", err)
	}
	return collectEdges(rows)
}

func setOf(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
