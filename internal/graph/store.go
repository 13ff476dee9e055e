package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrEmptyLabel rejects node upserts without a usable label.
var ErrEmptyLabel = errors.New("node label is empty")

// Store is the sqlite-backed graph store. One Store per process; the
// underlying pool is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the graph database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open graph db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertNode creates the node for label on first reference and returns
// the existing node afterwards. Concurrent upserts for the same label
// converge through the unique index: the insert is a no-op on conflict
// and the follow-up select observes whichever row won.
func (s *Store) UpsertNode(ctx context.Context, label, nodeType string) (*Node, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, ErrEmptyLabel
	}
	if nodeType == "" {
		nodeType = "entity"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (id, label, type, properties) VALUES (?, ?, ?, '{}')
		 ON CONFLICT(label) DO NOTHING`,
		uuid.NewString(), label, nodeType)
	if err != nil {
		return nil, fmt.Errorf("upsert node %q: %w", label, err)
	}

	node, ok, err := s.NodeByLabel(ctx, label)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("upsert node %q: row vanished after insert", label)
	}
	return node, nil
}

// NodeByLabel fetches a node by label, case-insensitively.
func (s *Store) NodeByLabel(ctx context.Context, label string) (*Node, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, type, properties, created_at FROM nodes WHERE label = ?`, label)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query node %q: %w", label, err)
	}
	return node, true, nil
}

// NodesByLabels fetches every node whose label equals one of labels
// (case-insensitive).
func (s *Store) NodesByLabels(ctx context.Context, labels []string) ([]*Node, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(labels))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(labels))
	for i, l := range labels {
		args[i] = l
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, type, properties, created_at FROM nodes WHERE label IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes by labels: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// NodesByIDs fetches nodes by primary key.
func (s *Store) NodesByIDs(ctx context.Context, ids []string) ([]*Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, type, properties, created_at FROM nodes WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes by ids: %w", err)
	}
	defer rows.Close()
	return collectNodes(rows)
}

// InsertRelation appends a new edge. Edges are never deduplicated:
// repeated facts from different documents stay distinct.
func (s *Store) InsertRelation(ctx context.Context, fromNodeID, toNodeID, predicate, sourceDocID string, confidence float64, properties map[string]any) (*Relation, error) {
	props := "{}"
	if len(properties) > 0 {
		data, err := json.Marshal(properties)
		if err != nil {
			return nil, fmt.Errorf("marshal relation properties: %w", err)
		}
		props = string(data)
	}
	rel := &Relation{
		ID:          uuid.NewString(),
		FromNodeID:  fromNodeID,
		ToNodeID:    toNodeID,
		Predicate:   predicate,
		Properties:  properties,
		SourceDocID: sourceDocID,
		Confidence:  clamp(confidence),
		CreatedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relations (id, from_node_id, to_node_id, predicate, properties, source_doc_id, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.FromNodeID, rel.ToNodeID, rel.Predicate, props, rel.SourceDocID, rel.Confidence, rel.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert relation %s-[%s]->%s: %w", fromNodeID, predicate, toNodeID, err)
	}
	return rel, nil
}

// RelationsTouching returns every relation with an endpoint in nodeIDs.
func (s *Store) RelationsTouching(ctx context.Context, nodeIDs []string) ([]*Relation, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(nodeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(nodeIDs)*2)
	for _, id := range nodeIDs {
		args = append(args, id)
	}
	for _, id := range nodeIDs {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_node_id, to_node_id, predicate, properties, source_doc_id, confidence, created_at
		 FROM relations
		 WHERE from_node_id IN (`+placeholders+`) OR to_node_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query relations: %w", err)
	}
	defer rows.Close()

	var out []*Relation
	for rows.Next() {
		var rel Relation
		var props string
		if err := rows.Scan(&rel.ID, &rel.FromNodeID, &rel.ToNodeID, &rel.Predicate, &props, &rel.SourceDocID, &rel.Confidence, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		if props != "" && props != "{}" {
			_ = json.Unmarshal([]byte(props), &rel.Properties)
		}
		out = append(out, &rel)
	}
	return out, rows.Err()
}

// RelationsBySource returns all relations stamped with sourceDocID.
func (s *Store) RelationsBySource(ctx context.Context, sourceDocID string) ([]*Relation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_node_id, to_node_id, predicate, properties, source_doc_id, confidence, created_at
		 FROM relations WHERE source_doc_id = ?`, sourceDocID)
	if err != nil {
		return nil, fmt.Errorf("query relations by source: %w", err)
	}
	defer rows.Close()

	var out []*Relation
	for rows.Next() {
		var rel Relation
		var props string
		if err := rows.Scan(&rel.ID, &rel.FromNodeID, &rel.ToNodeID, &rel.Predicate, &props, &rel.SourceDocID, &rel.Confidence, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relation: %w", err)
		}
		if props != "" && props != "{}" {
			_ = json.Unmarshal([]byte(props), &rel.Properties)
		}
		out = append(out, &rel)
	}
	return out, rows.Err()
}

// Stats returns node and relation counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&st.Nodes); err != nil {
		return st, fmt.Errorf("count nodes: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations`).Scan(&st.Relations); err != nil {
		return st, fmt.Errorf("count relations: %w", err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*Node, error) {
	var node Node
	var props string
	if err := row.Scan(&node.ID, &node.Label, &node.Type, &props, &node.CreatedAt); err != nil {
		return nil, err
	}
	if props != "" && props != "{}" {
		_ = json.Unmarshal([]byte(props), &node.Properties)
	}
	return &node, nil
}

func collectNodes(rows *sql.Rows) ([]*Node, error) {
	var out []*Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		out = append(out, node)
	}
	return out, rows.Err()
}
