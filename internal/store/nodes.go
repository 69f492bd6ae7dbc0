package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Node is a graph entity. Identity is (Label, Name); Name alone may repeat
// across labels.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
	VectorID   *string        `json:"vector_id,omitempty"`
	CreatedAt  int64          `json:"created_at"`
}

// NodeInput is the caller-supplied part of a node.
type NodeInput struct {
	Label      string
	Name       string
	Properties map[string]any
	VectorID   *string
}

const nodeColumns = "id, label, name, properties, vector_id, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*Node, error) {
	var n Node
	var props string
	var vectorID sql.NullString
	if err := s.Scan(&n.ID, &n.Label, &n.Name, &props, &vectorID, &n.CreatedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeProperties(props)
	if err != nil {
		return nil, err
	}
	n.Properties = decoded
	if vectorID.Valid {
		n.VectorID = &vectorID.String
	}
	return &n, nil
}

// AddNode creates a node or merges properties into the existing node with
// the same (label, name). The bool result reports whether a row was created.
func (db *DB) AddNode(ctx context.Context, in NodeInput) (*Node, bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin add node: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanNode(tx.QueryRowContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE label = ? AND name = ?", in.Label, in.Name))
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("get node: %w", err)
	}

	props := in.Properties
	vectorID := in.VectorID
	if existing != nil {
		props = mergeProperties(existing.Properties, in.Properties)
		if vectorID == nil {
			vectorID = existing.VectorID
		}
	}
	encoded, err := encodeProperties(props)
	if err != nil {
		return nil, false, err
	}

	newID := uuid.NewString()
	node, err := scanNode(tx.QueryRowContext(ctx, `
		INSERT INTO nodes (id, label, name, properties, vector_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(label, name) DO UPDATE SET
			properties = excluded.properties,
			vector_id = excluded.vector_id
		RETURNING `+nodeColumns,
		newID, in.Label, in.Name, encoded, vectorID, time.Now().UnixMilli()))
	if err != nil {
		return nil, false, fmt.Errorf("upsert node: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit add node: %w", err)
	}
	return node, node.ID == newID, nil
}

// GetNode returns a node by id, or nil if not found.
func (db *DB) GetNode(ctx context.Context, id string) (*Node, error) {
	n, err := scanNode(db.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM nodes WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

// NodesByName returns every node with the given name, oldest first.
func (db *DB) NodesByName(ctx context.Context, name string) ([]Node, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE name = ? ORDER BY created_at, id", name)
	if err != nil {
		return nil, fmt.Errorf("nodes by name: %w", err)
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

// NodeCount returns the number of nodes.
func (db *DB) NodeCount(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM nodes").Scan(&count)
	return count, err
}

func nodesByIDs(ctx context.Context, q queryer, ids []string) (map[string]Node, error) {
	out := make(map[string]Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx,
		"SELECT "+nodeColumns+" FROM nodes WHERE id IN ("+placeholders(len(ids))+")",
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("nodes by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out[n.ID] = *n
	}
	return out, rows.Err()
}

func nodeExists(ctx context.Context, q queryer, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM nodes WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check node %s: %w", id, err)
	}
	return true, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}
