package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/strata/internal/decay"
	"github.com/lazypower/strata/internal/sector"
)

// ErrNodeNotFound is returned when an edge endpoint does not exist.
var ErrNodeNotFound = errors.New("node not found")

// Edge is a directed, typed relationship between two nodes.
type Edge struct {
	ID           string         `json:"id"`
	SourceID     string         `json:"source_id"`
	TargetID     string         `json:"target_id"`
	Relation     string         `json:"relation"`
	Weight       float64        `json:"weight"`
	Properties   map[string]any `json:"properties"`
	MemorySector sector.Sector  `json:"memory_sector"`
	AccessCount  int            `json:"access_count"`
	LastAccessed *int64         `json:"last_accessed,omitempty"`
	LastEngaged  *int64         `json:"last_engaged,omitempty"`
	CreatedAt    int64          `json:"created_at"`
	ModifiedAt   int64          `json:"modified_at"`
}

// Constitutive reports whether the edge is protected from decay and from
// unilateral reclassification.
func (e *Edge) Constitutive() bool {
	return IsConstitutive(e.Properties)
}

// Superseded reports whether the edge has been replaced by another.
func (e *Edge) Superseded() bool {
	v, ok := e.Properties[PropSupersededBy]
	return ok && v != nil
}

// DecayInput returns the edge fields the relevance scorer reads.
func (e *Edge) DecayInput() decay.Input {
	in := decay.Input{
		Sector:       e.MemorySector,
		Constitutive: e.Constitutive(),
		AccessCount:  e.AccessCount,
	}
	if e.LastEngaged != nil {
		t := time.UnixMilli(*e.LastEngaged)
		in.LastEngaged = &t
	}
	return in
}

// EdgeInput is the caller-supplied part of an edge.
type EdgeInput struct {
	SourceID   string
	TargetID   string
	Relation   string
	Weight     *float64
	Properties map[string]any
}

// ClassifyFunc picks a sector for an edge's relation and merged properties.
type ClassifyFunc func(relation string, props map[string]any) sector.Result

var edgeColumnNames = []string{
	"id", "source_id", "target_id", "relation", "weight", "properties",
	"memory_sector", "access_count", "last_accessed", "last_engaged",
	"created_at", "modified_at",
}

var edgeColumns = strings.Join(edgeColumnNames, ", ")

func edgeColumnsAs(alias string) string {
	cols := make([]string, len(edgeColumnNames))
	for i, c := range edgeColumnNames {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func scanEdge(s scanner) (*Edge, error) {
	var e Edge
	var props string
	var memSector sql.NullString
	var lastAccessed, lastEngaged sql.NullInt64
	if err := s.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &props,
		&memSector, &e.AccessCount, &lastAccessed, &lastEngaged,
		&e.CreatedAt, &e.ModifiedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeProperties(props)
	if err != nil {
		return nil, err
	}
	e.Properties = decoded
	// Rows written before sectors existed carry NULL.
	e.MemorySector = sector.Normalize(memSector.String)
	if lastAccessed.Valid {
		e.LastAccessed = &lastAccessed.Int64
	}
	if lastEngaged.Valid {
		e.LastEngaged = &lastEngaged.Int64
	}
	return &e, nil
}

func collectEdges(rows *sql.Rows) ([]Edge, error) {
	defer rows.Close()
	var edges []Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, *e)
	}
	return edges, rows.Err()
}

// AddEdge creates an edge or merges into the existing edge with the same
// (source, target, relation). The sector is re-derived from the merged
// properties on every write, except on a constitutive edge, which keeps its
// stored sector and constitutive markers. The bool result reports whether a
// row was created.
func (db *DB) AddEdge(ctx context.Context, in EdgeInput, classify ClassifyFunc) (*Edge, bool, error) {
	if classify == nil {
		classify = sector.Classify
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin add edge: %w", err)
	}
	defer tx.Rollback()

	for _, id := range []string{in.SourceID, in.TargetID} {
		ok, err := nodeExists(ctx, tx, id)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}

	existing, err := scanEdge(tx.QueryRowContext(ctx,
		"SELECT "+edgeColumns+" FROM edges WHERE source_id = ? AND target_id = ? AND relation = ?",
		in.SourceID, in.TargetID, in.Relation))
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("get edge: %w", err)
	}

	weight := 1.0
	var props map[string]any
	var memSector sector.Sector
	switch {
	case existing == nil:
		props = mergeProperties(nil, in.Properties)
		memSector = classify(in.Relation, props).Sector
	case existing.Constitutive():
		weight = existing.Weight
		props = mergeProperties(existing.Properties, in.Properties)
		for _, k := range []string{PropIsConstitutive, PropEdgeType} {
			if v, ok := existing.Properties[k]; ok {
				props[k] = v
			}
		}
		memSector = existing.MemorySector
	default:
		weight = existing.Weight
		props = mergeProperties(existing.Properties, in.Properties)
		memSector = classify(in.Relation, props).Sector
	}
	if in.Weight != nil {
		weight = *in.Weight
	}
	// The audit entry is written only by UpdateEdgeSector.
	delete(props, PropLastReclassification)
	if existing != nil {
		if v, ok := existing.Properties[PropLastReclassification]; ok {
			props[PropLastReclassification] = v
		}
	}

	encoded, err := encodeProperties(props)
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UnixMilli()
	newID := uuid.NewString()
	edge, err := scanEdge(tx.QueryRowContext(ctx, `
		INSERT INTO edges (id, source_id, target_id, relation, weight, properties, memory_sector,
			access_count, last_engaged, created_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT(source_id, target_id, relation) DO UPDATE SET
			weight = excluded.weight,
			properties = excluded.properties,
			memory_sector = excluded.memory_sector,
			last_engaged = excluded.last_engaged,
			modified_at = excluded.modified_at
		RETURNING `+edgeColumns,
		newID, in.SourceID, in.TargetID, in.Relation, weight, encoded, string(memSector),
		now, now, now))
	if err != nil {
		return nil, false, fmt.Errorf("upsert edge: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit add edge: %w", err)
	}
	return edge, edge.ID == newID, nil
}

// GetEdge returns an edge by id, or nil if not found.
func (db *DB) GetEdge(ctx context.Context, id string) (*Edge, error) {
	e, err := scanEdge(db.QueryRowContext(ctx, "SELECT "+edgeColumns+" FROM edges WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get edge: %w", err)
	}
	return e, nil
}

// FindEdges returns every edge named by (source name, target name, relation).
// More than one result means a node name repeats across labels.
func (db *DB) FindEdges(ctx context.Context, sourceName, targetName, relation string) ([]Edge, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+edgeColumnsAs("e")+`
		FROM edges e
		JOIN nodes s ON s.id = e.source_id
		JOIN nodes t ON t.id = e.target_id
		WHERE s.name = ? AND t.name = ? AND e.relation = ?
		ORDER BY e.created_at, e.id
	`, sourceName, targetName, relation)
	if err != nil {
		return nil, fmt.Errorf("find edges: %w", err)
	}
	return collectEdges(rows)
}

// ErrEdgeProtected is returned by UpdateEdgeSector when an update restricted
// to unprotected edges finds the edge constitutive at write time.
var ErrEdgeProtected = errors.New("edge became constitutive")

// constitutivePredicate is IsConstitutive over the properties column. It is
// never NULL.
const constitutivePredicate = `COALESCE((
	json_type(properties, '$.` + PropIsConstitutive + `') = 'true'
	OR (json_type(properties, '$.` + PropIsConstitutive + `') = 'text'
		AND lower(json_extract(properties, '$.` + PropIsConstitutive + `')) = 'true')
	OR (json_type(properties, '$.` + PropEdgeType + `') = 'text'
		AND json_extract(properties, '$.` + PropEdgeType + `') = '` + EdgeTypeConstitutive + `')
), 0)`

// SectorUpdate moves one edge to a new sector.
type SectorUpdate struct {
	EdgeID string
	To     sector.Sector
	Audit  map[string]any
	// Unprotected makes the write conditional on the edge not being
	// constitutive when the statement runs.
	Unprotected bool
}

// UpdateEdgeSector sets an edge's sector and records the audit entry under
// last_reclassification in a single statement. Returns nil if the edge does
// not exist, and ErrEdgeProtected if u.Unprotected is set and the edge is
// constitutive. Nothing is written in either case.
func (db *DB) UpdateEdgeSector(ctx context.Context, u SectorUpdate) (*Edge, error) {
	raw, err := json.Marshal(u.Audit)
	if err != nil {
		return nil, fmt.Errorf("encode audit: %w", err)
	}
	where := "id = ?"
	if u.Unprotected {
		where += " AND NOT " + constitutivePredicate
	}
	e, err := scanEdge(db.QueryRowContext(ctx, `
		UPDATE edges SET
			memory_sector = ?,
			properties = json_set(COALESCE(NULLIF(properties, ''), '{}'), '$.`+PropLastReclassification+`', json(?)),
			modified_at = ?
		WHERE `+where+`
		RETURNING `+edgeColumns,
		string(u.To), string(raw), time.Now().UnixMilli(), u.EdgeID))
	if err == sql.ErrNoRows {
		if !u.Unprotected {
			return nil, nil
		}
		current, err := db.GetEdge(ctx, u.EdgeID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("update edge sector %s: %w", u.EdgeID, ErrEdgeProtected)
	}
	if err != nil {
		return nil, fmt.Errorf("update edge sector: %w", err)
	}
	return e, nil
}

// TouchEdges records a read of each edge: access_count++ and last_accessed.
func (db *DB) TouchEdges(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{time.Now().UnixMilli()}, stringArgs(ids)...)
	_, err := db.ExecContext(ctx, `
		UPDATE edges SET access_count = access_count + 1, last_accessed = ?
		WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return fmt.Errorf("touch edges: %w", err)
	}
	return nil
}

// EngageEdge marks an edge as actively used, resetting its decay clock.
// Returns nil if the edge does not exist.
func (db *DB) EngageEdge(ctx context.Context, id string) (*Edge, error) {
	e, err := scanEdge(db.QueryRowContext(ctx,
		"UPDATE edges SET last_engaged = ? WHERE id = ? RETURNING "+edgeColumns,
		time.Now().UnixMilli(), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("engage edge: %w", err)
	}
	return e, nil
}

// EdgeCount returns the number of edges.
func (db *DB) EdgeCount(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM edges").Scan(&count)
	return count, err
}

// SectorCounts returns the number of edges per sector, NULL counted as the default.
func (db *DB) SectorCounts(ctx context.Context) (map[sector.Sector]int, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COALESCE(memory_sector, ?), COUNT(*) FROM edges GROUP BY 1
	`, string(sector.Default))
	if err != nil {
		return nil, fmt.Errorf("sector counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[sector.Sector]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scan sector count: %w", err)
		}
		counts[sector.Normalize(s)] += n
	}
	return counts, rows.Err()
}
