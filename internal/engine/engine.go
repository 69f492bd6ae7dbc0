package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lazypower/strata/internal/apperror"
	"github.com/lazypower/strata/internal/consent"
	"github.com/lazypower/strata/internal/decay"
	"github.com/lazypower/strata/internal/logger"
	"github.com/lazypower/strata/internal/sector"
	"github.com/lazypower/strata/internal/store"
)

// Engine exposes the memory graph operations: classification, relevance
// scoring, graph reads and writes, and consent-gated reclassification.
// It holds no mutable state of its own and is safe for concurrent use.
type Engine struct {
	DB         *store.DB
	Decay      *decay.Config
	scorer     *decay.Scorer
	classifier *sector.Classifier
	gate       *consent.Gate
	log        *slog.Logger
	root       *slog.Logger
	now        func() time.Time
}

// New creates an Engine. A nil cfg uses the built-in decay defaults.
// Proposals are read from db until SetProposalSource says otherwise.
func New(db *store.DB, cfg *decay.Config, log *slog.Logger) *Engine {
	if cfg == nil {
		cfg = decay.Defaults()
	}
	log = logger.OrDiscard(log)
	e := &Engine{
		DB:         db,
		Decay:      cfg,
		scorer:     decay.NewScorer(cfg, log),
		classifier: sector.NewClassifier(log),
		log:        log.With(logger.Scope("engine")),
		root:       log,
		now:        time.Now,
	}
	var src consent.ProposalSource
	if db != nil {
		src = db
	}
	e.gate = consent.NewGate(src, log)
	return e
}

// SetProposalSource replaces the consent proposal lookup.
func (e *Engine) SetProposalSource(src consent.ProposalSource) {
	e.gate = consent.NewGate(src, e.root)
}

// ClassifyMemorySector returns the sector the rules assign to an edge with
// the given relation and properties.
func (e *Engine) ClassifyMemorySector(relation string, props map[string]any) sector.Result {
	return e.classifier.Classify(relation, props)
}

// DecayConfig returns the active per-sector decay parameters.
func (e *Engine) DecayConfig() map[sector.Sector]decay.SectorDecay {
	return e.Decay.Sectors()
}

// CalculateRelevance scores an edge in [0, 1].
func (e *Engine) CalculateRelevance(edge *store.Edge) float64 {
	return e.scorer.Score(edge.DecayInput())
}

// AddNodeRequest is the input to AddNode.
type AddNodeRequest struct {
	Label      string         `json:"label"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	VectorID   *string        `json:"vector_id,omitempty"`
}

// AddNodeResult reports the stored node and whether it was newly created.
type AddNodeResult struct {
	NodeID  string      `json:"node_id"`
	Created bool        `json:"created"`
	Node    *store.Node `json:"node"`
}

// AddNode creates a node or merges properties into the node with the same
// (label, name).
func (e *Engine) AddNode(ctx context.Context, req AddNodeRequest) (*AddNodeResult, error) {
	req, err := validateNode(req)
	if err != nil {
		return nil, err
	}
	node, created, err := e.DB.AddNode(ctx, store.NodeInput{
		Label: req.Label, Name: req.Name, Properties: req.Properties, VectorID: req.VectorID,
	})
	if err != nil {
		return nil, e.storageErr("add node", err)
	}
	e.log.Debug("node stored",
		slog.String("node_id", node.ID),
		slog.String("label", node.Label),
		slog.String("name", node.Name),
		slog.Bool("created", created))
	return &AddNodeResult{NodeID: node.ID, Created: created, Node: node}, nil
}

// AddEdgeRequest is the input to AddEdge.
type AddEdgeRequest struct {
	SourceID   string         `json:"source_id"`
	TargetID   string         `json:"target_id"`
	Relation   string         `json:"relation"`
	Weight     *float64       `json:"weight,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// AddEdgeResult reports the stored edge, whether it was newly created, and
// the sector it was classified into.
type AddEdgeResult struct {
	EdgeID       string        `json:"edge_id"`
	Created      bool          `json:"created"`
	MemorySector sector.Sector `json:"memory_sector"`
	Edge         *store.Edge   `json:"edge"`
}

// AddEdge creates an edge or merges into the edge with the same
// (source, target, relation), classifying the merged properties.
func (e *Engine) AddEdge(ctx context.Context, req AddEdgeRequest) (*AddEdgeResult, error) {
	req, err := validateEdge(req)
	if err != nil {
		return nil, err
	}

	edge, created, err := e.DB.AddEdge(ctx, store.EdgeInput{
		SourceID: req.SourceID, TargetID: req.TargetID, Relation: req.Relation,
		Weight: req.Weight, Properties: req.Properties,
	}, func(relation string, props map[string]any) sector.Result {
		return e.classifier.Classify(relation, props)
	})
	if errors.Is(err, store.ErrNodeNotFound) {
		return nil, apperror.ErrNotFound.WithMessage(err.Error()).WithInternal(err)
	}
	if err != nil {
		return nil, e.storageErr("add edge", err)
	}

	if !created && edge.Constitutive() && req.Properties != nil {
		// Upserts never move a constitutive edge; only Reclassify can.
		if proposed := e.classifier.Classify(edge.Relation, edge.Properties).Sector; proposed != edge.MemorySector {
			e.log.Warn("constitutive edge kept its sector on upsert",
				slog.String("edge_id", edge.ID),
				slog.String("memory_sector", string(edge.MemorySector)),
				slog.String("classified_as", string(proposed)))
		}
	}

	e.log.Debug("edge stored",
		slog.String("edge_id", edge.ID),
		slog.String("relation", edge.Relation),
		slog.String("memory_sector", string(edge.MemorySector)),
		slog.Bool("created", created))
	return &AddEdgeResult{EdgeID: edge.ID, Created: created, MemorySector: edge.MemorySector, Edge: edge}, nil
}

// EdgeRef names an edge by endpoint names and relation, optionally pinned to
// one id.
type EdgeRef struct {
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
	Relation   string `json:"relation"`
	EdgeID     string `json:"edge_id,omitempty"`
}

// GetEdge resolves ref to exactly one edge.
func (e *Engine) GetEdge(ctx context.Context, ref EdgeRef) (*store.Edge, error) {
	ref, err := validateRef(ref)
	if err != nil {
		return nil, err
	}
	return e.resolveEdge(ctx, ref)
}

// resolveEdge filters candidates by EdgeID before judging ambiguity.
func (e *Engine) resolveEdge(ctx context.Context, ref EdgeRef) (*store.Edge, error) {
	candidates, err := e.DB.FindEdges(ctx, ref.SourceName, ref.TargetName, ref.Relation)
	if err != nil {
		return nil, e.storageErr("find edges", err)
	}
	if ref.EdgeID != "" {
		var pinned []store.Edge
		for _, c := range candidates {
			if c.ID == ref.EdgeID {
				pinned = append(pinned, c)
			}
		}
		candidates = pinned
	}

	switch len(candidates) {
	case 0:
		return nil, apperror.NewNotFound("edge", ref.String())
	case 1:
		return &candidates[0], nil
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return nil, apperror.ErrAmbiguous.WithDetails(map[string]any{"candidates": ids})
}

func (r EdgeRef) String() string {
	return r.SourceName + " -[" + r.Relation + "]-> " + r.TargetName
}

// EdgeRelevance is an edge id with its current score.
type EdgeRelevance struct {
	EdgeID       string        `json:"edge_id"`
	MemorySector sector.Sector `json:"memory_sector"`
	Constitutive bool          `json:"constitutive"`
	Relevance    float64       `json:"relevance"`
}

// Relevance loads an edge by id and scores it.
func (e *Engine) Relevance(ctx context.Context, edgeID string) (*EdgeRelevance, error) {
	edge, err := e.DB.GetEdge(ctx, edgeID)
	if err != nil {
		return nil, e.storageErr("get edge", err)
	}
	if edge == nil {
		return nil, apperror.NewNotFound("edge", edgeID)
	}
	return &EdgeRelevance{
		EdgeID:       edge.ID,
		MemorySector: edge.MemorySector,
		Constitutive: edge.Constitutive(),
		Relevance:    e.CalculateRelevance(edge),
	}, nil
}

// EngageEdge records active use of an edge, resetting its decay clock.
func (e *Engine) EngageEdge(ctx context.Context, edgeID string) (*store.Edge, error) {
	edge, err := e.DB.EngageEdge(ctx, edgeID)
	if err != nil {
		return nil, e.storageErr("engage edge", err)
	}
	if edge == nil {
		return nil, apperror.NewNotFound("edge", edgeID)
	}
	e.log.Debug("edge engaged", slog.String("edge_id", edge.ID))
	return edge, nil
}

// NeighborRequest is the input to QueryNeighbors. A nil SectorFilter means
// every sector; a non-nil empty one matches nothing.
type NeighborRequest struct {
	NodeID            string         `json:"node_id"`
	RelationType      string         `json:"relation_type,omitempty"`
	MaxDepth          int            `json:"max_depth,omitempty"`
	Direction         string         `json:"direction,omitempty"`
	IncludeSuperseded bool           `json:"include_superseded,omitempty"`
	PropertiesFilter  map[string]any `json:"properties_filter,omitempty"`
	SectorFilter      []string       `json:"sector_filter"`
	WithRelevance     bool           `json:"with_relevance,omitempty"`
}

// NeighborResult is one reached node, the edge that reached it, and
// optionally that edge's relevance.
type NeighborResult struct {
	Node      store.Node `json:"node"`
	Edge      store.Edge `json:"edge"`
	Depth     int        `json:"depth"`
	Relevance *float64   `json:"relevance,omitempty"`
}

// QueryNeighbors traverses outward from a node. Sector and property filters
// apply to every hop, not only the last one.
func (e *Engine) QueryNeighbors(ctx context.Context, req NeighborRequest) ([]NeighborResult, error) {
	q, err := validateNeighbors(req)
	if err != nil {
		return nil, err
	}

	start := e.now()
	found, err := e.DB.QueryNeighbors(ctx, q)
	if err != nil {
		return nil, e.storageErr("query neighbors", err)
	}

	out := make([]NeighborResult, len(found))
	for i, nb := range found {
		out[i] = NeighborResult{Node: nb.Node, Edge: nb.Edge, Depth: nb.Depth}
		if req.WithRelevance {
			score := e.CalculateRelevance(&nb.Edge)
			out[i].Relevance = &score
		}
	}
	e.log.Debug("neighbors queried",
		slog.String("node_id", q.NodeID),
		slog.Int("depth", q.MaxDepth),
		slog.Int("sector_filter", len(q.SectorFilter)),
		slog.Int("results", len(out)),
		slog.Duration("elapsed", e.now().Sub(start)))
	return out, nil
}

// FindPath returns a shortest path between two node names.
func (e *Engine) FindPath(ctx context.Context, startName, endName string, maxDepth int) (*store.Path, error) {
	startName, endName, err := validatePath(startName, endName, maxDepth)
	if err != nil {
		return nil, err
	}
	p, err := e.DB.FindPath(ctx, startName, endName, maxDepth)
	if err != nil {
		return nil, e.storageErr("find path", err)
	}
	return p, nil
}

// storageErr logs and wraps a store failure. Context errors keep their
// identity through Unwrap.
func (e *Engine) storageErr(op string, err error) error {
	e.log.Error("storage operation failed", slog.String("op", op), logger.Error(err))
	return apperror.NewStorage(op, err)
}
