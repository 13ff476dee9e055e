package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/curvesy/argus/internal/events"
)

// Publisher receives graph lifecycle events. Satisfied by
// *events.Distributor.
type Publisher interface {
	Publish(e events.Event)
}

// Pipeline is the knowledge ingestion pipeline. Its public operations
// never raise: failures degrade to an empty or partial result plus a
// log line.
type Pipeline struct {
	store      *Store
	capability Capability
	pub        Publisher
}

// NewPipeline wires the pipeline. capability may be nil when only
// pre-extracted triples and retrieval are used.
func NewPipeline(store *Store, capability Capability, pub Publisher) *Pipeline {
	return &Pipeline{store: store, capability: capability, pub: pub}
}

// IngestResult summarizes one ingest call.
type IngestResult struct {
	Nodes     int `json:"nodes"`
	Relations int `json:"relations"`
	Skipped   int `json:"skipped"`
}

// ExtractTriples runs the extraction capability over text. Unparsable
// output yields an empty list, never an error.
func (p *Pipeline) ExtractTriples(ctx context.Context, text string) []Triple {
	if p.capability == nil {
		slog.Warn("ExtractTriples called without an extraction capability")
		return nil
	}
	raw, err := p.capability.Extract(ctx, text)
	if err != nil {
		slog.Warn("Triple extraction failed", "error", err)
		return nil
	}
	triples := ParseTriples(raw)
	if len(triples) == 0 {
		slog.Warn("Triple extraction produced no parsable relationships", "bytes", len(raw))
	}
	return triples
}

// rawTriple tolerates both string endpoints and {label,type} objects.
type rawTriple struct {
	Subject    json.RawMessage `json:"subject"`
	Predicate  string          `json:"predicate"`
	Object     json.RawMessage `json:"object"`
	Confidence *float64        `json:"confidence"`
}

// ParseTriples decodes extraction output into triples. The relationships
// array may sit at the top level or under a "relationships" key; invalid
// entries are skipped.
func ParseTriples(raw []byte) []Triple {
	var items []rawTriple
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapper struct {
			Relationships []rawTriple `json:"relationships"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil
		}
		items = wrapper.Relationships
	}

	out := make([]Triple, 0, len(items))
	for _, item := range items {
		subject, ok := parseEntity(item.Subject)
		if !ok {
			continue
		}
		object, ok := parseEntity(item.Object)
		if !ok {
			continue
		}
		predicate := strings.TrimSpace(item.Predicate)
		if predicate == "" {
			continue
		}
		confidence := 1.0
		if item.Confidence != nil {
			confidence = clamp(*item.Confidence)
		}
		out = append(out, Triple{
			Subject:    subject,
			Predicate:  predicate,
			Object:     object,
			Confidence: confidence,
		})
	}
	return out
}

func parseEntity(raw json.RawMessage) (Entity, bool) {
	if len(raw) == 0 {
		return Entity{}, false
	}
	var label string
	if err := json.Unmarshal(raw, &label); err == nil {
		label = strings.TrimSpace(label)
		if label == "" {
			return Entity{}, false
		}
		return Entity{Label: label, Type: "entity"}, true
	}
	var ent Entity
	if err := json.Unmarshal(raw, &ent); err != nil {
		return Entity{}, false
	}
	ent.Label = strings.TrimSpace(ent.Label)
	if ent.Label == "" {
		return Entity{}, false
	}
	if ent.Type == "" {
		ent.Type = "entity"
	}
	return ent, true
}

// Ingest upserts both endpoint nodes and appends one relation per triple,
// stamped with sourceDocID. A triple is skipped whole when a node upsert
// fails, so no edge ever dangles.
func (p *Pipeline) Ingest(ctx context.Context, triples []Triple, sourceDocID string) IngestResult {
	var res IngestResult
	seen := make(map[string]struct{})

	for _, triple := range triples {
		subject, err := p.store.UpsertNode(ctx, triple.Subject.Label, triple.Subject.Type)
		if err != nil {
			slog.Warn("Skipping triple: subject upsert failed",
				"label", triple.Subject.Label, "source", sourceDocID, "error", err)
			res.Skipped++
			continue
		}
		countNode(seen, subject.ID, &res)

		object, err := p.store.UpsertNode(ctx, triple.Object.Label, triple.Object.Type)
		if err != nil {
			slog.Warn("Skipping triple: object upsert failed",
				"label", triple.Object.Label, "source", sourceDocID, "error", err)
			res.Skipped++
			continue
		}
		countNode(seen, object.ID, &res)

		if _, err := p.store.InsertRelation(ctx, subject.ID, object.ID, triple.Predicate, sourceDocID, triple.Confidence, nil); err != nil {
			slog.Warn("Skipping triple: relation insert failed",
				"predicate", triple.Predicate, "source", sourceDocID, "error", err)
			res.Skipped++
			continue
		}
		res.Relations++
	}

	if res.Relations > 0 {
		p.publish(events.Event{
			Type:  events.TypeKnowledgeGraphUpdate,
			RunID: sourceDocID,
			Payload: events.KnowledgeGraphUpdatePayload{
				SourceDocID: sourceDocID,
				Nodes:       res.Nodes,
				Relations:   res.Relations,
			},
		})
	}
	return res
}

func countNode(seen map[string]struct{}, id string, res *IngestResult) {
	if _, ok := seen[id]; !ok {
		seen[id] = struct{}{}
		res.Nodes++
	}
}

// IngestText extracts triples from text and ingests them under
// sourceDocID.
func (p *Pipeline) IngestText(ctx context.Context, text, sourceDocID string) IngestResult {
	return p.Ingest(ctx, p.ExtractTriples(ctx, text), sourceDocID)
}

// minTokenLen filters noise tokens from retrieval queries.
const minTokenLen = 3

// RetrieveContext tokenizes query, finds nodes whose label equals a
// retained token (case-insensitive), expands one hop over touching
// relations, and returns the deduplicated flat set. Missing nodes yield
// an empty result, never an error.
func (p *Pipeline) RetrieveContext(ctx context.Context, query string) []NodeRef {
	var tokens []string
	for _, tok := range strings.Fields(query) {
		if len(tok) >= minTokenLen {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return []NodeRef{}
	}

	direct, err := p.store.NodesByLabels(ctx, tokens)
	if err != nil {
		slog.Warn("Context retrieval: node lookup failed", "error", err)
		return []NodeRef{}
	}
	if len(direct) == 0 {
		return []NodeRef{}
	}

	result := make([]NodeRef, 0, len(direct))
	seen := make(map[string]struct{}, len(direct))
	directIDs := make([]string, 0, len(direct))
	for _, node := range direct {
		directIDs = append(directIDs, node.ID)
		seen[node.ID] = struct{}{}
		result = append(result, NodeRef{ID: node.ID, Label: node.Label, Type: node.Type})
	}

	relations, err := p.store.RelationsTouching(ctx, directIDs)
	if err != nil {
		slog.Warn("Context retrieval: relation lookup failed", "error", err)
		return result
	}

	var hopIDs []string
	for _, rel := range relations {
		for _, id := range []string{rel.FromNodeID, rel.ToNodeID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				hopIDs = append(hopIDs, id)
			}
		}
	}
	if len(hopIDs) == 0 {
		return result
	}

	neighbors, err := p.store.NodesByIDs(ctx, hopIDs)
	if err != nil {
		slog.Warn("Context retrieval: neighbor lookup failed", "error", err)
		return result
	}
	for _, node := range neighbors {
		result = append(result, NodeRef{ID: node.ID, Label: node.Label, Type: node.Type})
	}
	return result
}

func (p *Pipeline) publish(e events.Event) {
	if p.pub != nil {
		p.pub.Publish(e)
	}
}
