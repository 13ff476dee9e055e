// Package graph turns extracted subject-predicate-object triples into a
// persistent knowledge graph and answers context-retrieval queries over it.
package graph

import "time"

// Entity is one endpoint of a triple, identified by label.
type Entity struct {
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Triple is a subject-predicate-object fact extracted from text, the unit
// of knowledge ingestion. Confidence is always clamped to [0,1].
type Triple struct {
	Subject    Entity  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     Entity  `json:"object"`
	Confidence float64 `json:"confidence"`
}

// Node is a deduplicated graph node. Labels are unique; the first
// reference to a label creates the node and later references reuse it.
type Node struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Relation is a provenance-tagged edge. Multiple relations may exist
// between the same node pair; edges are never deduplicated.
type Relation struct {
	ID          string         `json:"id"`
	FromNodeID  string         `json:"fromNodeId"`
	ToNodeID    string         `json:"toNodeId"`
	Predicate   string         `json:"predicateType"`
	Properties  map[string]any `json:"properties,omitempty"`
	SourceDocID string         `json:"sourceDocId"`
	Confidence  float64        `json:"confidence"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// NodeRef is the flat node shape returned by context retrieval.
type NodeRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// Stats summarizes graph size.
type Stats struct {
	Nodes     int64 `json:"nodes"`
	Relations int64 `json:"relations"`
}

// Schema is the graph store schema. Label uniqueness is case-insensitive
// so concurrent label upserts converge on one row.
const Schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id TEXT PRIMARY KEY,
	label TEXT NOT NULL COLLATE NOCASE,
	type TEXT NOT NULL DEFAULT 'entity',
	properties TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label);

CREATE TABLE IF NOT EXISTS relations (
	id TEXT PRIMARY KEY,
	from_node_id TEXT NOT NULL REFERENCES nodes(id),
	to_node_id TEXT NOT NULL REFERENCES nodes(id),
	predicate TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	source_doc_id TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_node_id);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_node_id);
CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source_doc_id);
`

// clamp bounds a confidence value to [0,1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
