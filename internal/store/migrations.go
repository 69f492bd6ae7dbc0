package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "nodes: graph entities, identity (label, name)",
		SQL: `
CREATE TABLE nodes (
    id          TEXT PRIMARY KEY,
    label       TEXT NOT NULL,
    name        TEXT NOT NULL,
    properties  TEXT NOT NULL DEFAULT '{}',
    vector_id   TEXT,
    created_at  INTEGER NOT NULL,

    UNIQUE (label, name)
);

CREATE INDEX idx_nodes_name ON nodes(name);
`,
	},
	{
		Version:     2,
		Description: "edges: relationships, identity (source_id, target_id, relation)",
		SQL: `
CREATE TABLE edges (
    id             TEXT PRIMARY KEY,
    source_id      TEXT NOT NULL,
    target_id      TEXT NOT NULL,
    relation       TEXT NOT NULL,
    weight         REAL NOT NULL DEFAULT 1.0,
    properties     TEXT NOT NULL DEFAULT '{}',

    -- Decay inputs
    access_count   INTEGER NOT NULL DEFAULT 0,
    last_accessed  INTEGER,
    last_engaged   INTEGER,

    created_at     INTEGER NOT NULL,
    modified_at    INTEGER NOT NULL,

    UNIQUE (source_id, target_id, relation),
    FOREIGN KEY (source_id) REFERENCES nodes(id),
    FOREIGN KEY (target_id) REFERENCES nodes(id)
);

CREATE INDEX idx_edges_source   ON edges(source_id);
CREATE INDEX idx_edges_target   ON edges(target_id);
CREATE INDEX idx_edges_relation ON edges(relation);
`,
	},
	{
		Version:     3,
		Description: "edges.memory_sector: NULL reads as semantic for pre-sector rows",
		SQL: `
ALTER TABLE edges ADD COLUMN memory_sector TEXT
    CHECK (memory_sector IS NULL OR memory_sector IN ('emotional', 'episodic', 'semantic', 'procedural', 'reflective'));

CREATE INDEX idx_edges_source_sector ON edges(source_id, memory_sector);
CREATE INDEX idx_edges_target_sector ON edges(target_id, memory_sector);
`,
	},
	{
		Version:     4,
		Description: "consent_proposals: owned by the consent subsystem, created here only if absent",
		SQL: `
CREATE TABLE IF NOT EXISTS consent_proposals (
    id                   TEXT PRIMARY KEY,
    affected_edge_ids    TEXT NOT NULL DEFAULT '[]',
    proposed_action      TEXT NOT NULL DEFAULT '{}',
    approval_level       TEXT NOT NULL DEFAULT 'bilateral',
    approved_by_party_a  INTEGER NOT NULL DEFAULT 0,
    approved_by_party_b  INTEGER NOT NULL DEFAULT 0,
    status               TEXT NOT NULL DEFAULT 'pending',
    created_at           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_consent_proposals_status ON consent_proposals(status);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
