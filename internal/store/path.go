package store

import (
	"context"
)

const (
	DefaultPathDepth = 4
	MaxPathDepth     = 10
)

// Path is the result of a shortest-path search between two node names.
type Path struct {
	Found bool   `json:"found"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type prevEntry struct {
	nodeID string
	edge   Edge
}

// FindPath returns a shortest path (fewest hops) between any node named
// start and any node named end, following edges in either direction.
// Superseded edges are not followed. A path longer than maxDepth hops is
// reported as not found.
func (db *DB) FindPath(ctx context.Context, start, end string, maxDepth int) (*Path, error) {
	notFound := &Path{Found: false, Nodes: []Node{}, Edges: []Edge{}}

	starts, err := db.NodesByName(ctx, start)
	if err != nil {
		return nil, err
	}
	ends, err := db.NodesByName(ctx, end)
	if err != nil {
		return nil, err
	}
	if len(starts) == 0 || len(ends) == 0 {
		return notFound, nil
	}

	isEnd := make(map[string]bool, len(ends))
	for _, n := range ends {
		isEnd[n.ID] = true
	}
	for _, n := range starts {
		if isEnd[n.ID] {
			return &Path{Found: true, Nodes: []Node{n}, Edges: []Edge{}}, nil
		}
	}

	depth := clampDepth(maxDepth, DefaultPathDepth, MaxPathDepth)
	visited := make(map[string]bool)
	prev := make(map[string]prevEntry)
	var frontier []string
	for _, n := range starts {
		visited[n.ID] = true
		frontier = append(frontier, n.ID)
	}

	q := NeighborQuery{Direction: Both}
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		edges, err := frontierEdges(ctx, db, frontier, q)
		if err != nil {
			return nil, err
		}
		inFrontier := setOf(frontier)
		var next []string
		for _, e := range edges {
			for _, pair := range [][2]string{{e.SourceID, e.TargetID}, {e.TargetID, e.SourceID}} {
				from, to := pair[0], pair[1]
				if !inFrontier[from] || visited[to] {
					continue
				}
				visited[to] = true
				prev[to] = prevEntry{nodeID: from, edge: e}
				if isEnd[to] {
					return db.reconstructPath(ctx, to, prev)
				}
				next = append(next, to)
			}
		}
		frontier = next
	}
	return notFound, nil
}

func (db *DB) reconstructPath(ctx context.Context, endID string, prev map[string]prevEntry) (*Path, error) {
	ids := []string{endID}
	var edges []Edge
	for cur := endID; ; {
		p, ok := prev[cur]
		if !ok {
			break
		}
		edges = append(edges, p.edge)
		ids = append(ids, p.nodeID)
		cur = p.nodeID
	}
	reverse(ids)
	reverse(edges)

	byID, err := nodesByIDs(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, byID[id])
	}
	return &Path{Found: true, Nodes: nodes, Edges: edges}, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
