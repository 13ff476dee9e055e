package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/curvesy/argus/internal/events"
)

// fakeCapability returns scripted extraction output.
type fakeCapability struct {
	raw []byte
	err error
}

func (f *fakeCapability) Extract(context.Context, string) ([]byte, error) {
	return f.raw, f.err
}

type capturePublisher struct {
	events []events.Event
}

func (c *capturePublisher) Publish(e events.Event) { c.events = append(c.events, e) }

func triple(subject, predicate, object string) Triple {
	return Triple{
		Subject:    Entity{Label: subject, Type: "entity"},
		Predicate:  predicate,
		Object:     Entity{Label: object, Type: "entity"},
		Confidence: 0.9,
	}
}

func TestParseTriplesWrappedArray(t *testing.T) {
	raw := []byte(`{"relationships": [
		{"subject": "payment", "predicate": "depends_on", "object": "delivery", "confidence": 0.8},
		{"subject": "party a", "predicate": "owes", "object": "party b"}
	]}`)
	triples := ParseTriples(raw)
	if len(triples) != 2 {
		t.Fatalf("parsed %d triples, want 2", len(triples))
	}
	if triples[0].Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", triples[0].Confidence)
	}
	// Missing confidence defaults to full trust.
	if triples[1].Confidence != 1.0 {
		t.Errorf("default confidence = %v, want 1.0", triples[1].Confidence)
	}
}

func TestParseTriplesBareArray(t *testing.T) {
	raw := []byte(`[{"subject": "a1", "predicate": "links", "object": "b1"}]`)
	if got := ParseTriples(raw); len(got) != 1 {
		t.Fatalf("parsed %d triples, want 1", len(got))
	}
}

func TestParseTriplesObjectEndpoints(t *testing.T) {
	raw := []byte(`{"relationships": [
		{"subject": {"label": "acme", "type": "organization"}, "predicate": "supplies", "object": {"label": "widgets"}}
	]}`)
	triples := ParseTriples(raw)
	if len(triples) != 1 {
		t.Fatalf("parsed %d triples, want 1", len(triples))
	}
	if triples[0].Subject.Type != "organization" {
		t.Errorf("subject type = %q, want organization", triples[0].Subject.Type)
	}
	if triples[0].Object.Type != "entity" {
		t.Errorf("object type = %q, want entity default", triples[0].Object.Type)
	}
}

func TestParseTriplesSkipsInvalidEntries(t *testing.T) {
	raw := []byte(`{"relationships": [
		{"subject": "", "predicate": "links", "object": "b"},
		{"subject": "a", "predicate": "", "object": "b"},
		{"subject": "a", "predicate": "links", "object": "b"},
		{"predicate": "links"}
	]}`)
	if got := ParseTriples(raw); len(got) != 1 {
		t.Fatalf("parsed %d triples, want 1 valid entry", len(got))
	}
}

func TestParseTriplesClampsConfidence(t *testing.T) {
	raw := []byte(`[{"subject": "a", "predicate": "links", "object": "b", "confidence": 3.5}]`)
	triples := ParseTriples(raw)
	if len(triples) != 1 || triples[0].Confidence != 1 {
		t.Fatalf("confidence not clamped: %+v", triples)
	}
}

func TestExtractTriplesUnparsableOutput(t *testing.T) {
	pipeline := NewPipeline(newTestStore(t), &fakeCapability{raw: []byte("I could not find any relationships.")}, nil)
	if got := pipeline.ExtractTriples(context.Background(), "some text"); len(got) != 0 {
		t.Fatalf("expected empty list for unparsable output, got %d", len(got))
	}
}

func TestExtractTriplesCapabilityError(t *testing.T) {
	pipeline := NewPipeline(newTestStore(t), &fakeCapability{err: errors.New("rate limited")}, nil)
	if got := pipeline.ExtractTriples(context.Background(), "some text"); got != nil {
		t.Fatalf("expected nil on capability error, got %v", got)
	}
}

func TestIngestSharedSubjectLabel(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, nil, nil)
	ctx := context.Background()

	pipeline.Ingest(ctx, []Triple{triple("payment", "depends_on", "delivery")}, "doc-1")
	pipeline.Ingest(ctx, []Triple{triple("payment", "precedes", "termination")}, "doc-2")

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	// payment, delivery, termination.
	if st.Nodes != 3 {
		t.Errorf("node count = %d, want 3 (payment deduplicated)", st.Nodes)
	}
	if st.Relations != 2 {
		t.Errorf("relation count = %d, want 2", st.Relations)
	}
}

func TestIngestSkipsTripleOnBadNode(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, nil, nil)
	ctx := context.Background()

	res := pipeline.Ingest(ctx, []Triple{
		triple("", "links", "orphan"),
		triple("kept", "links", "partner"),
	}, "doc-1")

	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if res.Relations != 1 {
		t.Errorf("relations = %d, want 1", res.Relations)
	}
	// The failed triple must not leave a dangling edge or orphan object node.
	if _, ok, _ := store.NodeByLabel(ctx, "orphan"); ok {
		t.Error("skipped triple created its object node")
	}
}

func TestIngestEmitsKnowledgeGraphUpdate(t *testing.T) {
	pub := &capturePublisher{}
	pipeline := NewPipeline(newTestStore(t), nil, pub)

	pipeline.Ingest(context.Background(), []Triple{triple("a", "links", "b")}, "doc-1")

	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	e := pub.events[0]
	if e.Type != events.TypeKnowledgeGraphUpdate {
		t.Errorf("event type = %s", e.Type)
	}
	payload := e.Payload.(events.KnowledgeGraphUpdatePayload)
	if payload.SourceDocID != "doc-1" || payload.Relations != 1 {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestRetrieveContextDirectAndOneHop(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, nil, nil)
	ctx := context.Background()

	pipeline.Ingest(ctx, []Triple{
		triple("payment", "depends_on", "delivery"),
		triple("payment", "governed_by", "delivery"), // second edge to the same neighbor
		triple("warranty", "covers", "repairs"),
	}, "doc-1")

	got := pipeline.RetrieveContext(ctx, "payment clause")

	labels := map[string]bool{}
	for _, ref := range got {
		if labels[ref.ID] {
			t.Errorf("duplicate node %s in result", ref.Label)
		}
		labels[ref.Label] = true
		labels[ref.ID] = true
	}
	if !labels["payment"] {
		t.Error("missing direct match payment")
	}
	if !labels["delivery"] {
		t.Error("missing one-hop neighbor delivery")
	}
	if labels["warranty"] || labels["repairs"] {
		t.Error("unrelated nodes leaked into the result")
	}
}

func TestRetrieveContextCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, nil, nil)
	ctx := context.Background()

	pipeline.Ingest(ctx, []Triple{triple("Payment", "depends_on", "Delivery")}, "doc-1")

	if got := pipeline.RetrieveContext(ctx, "PAYMENT terms"); len(got) != 2 {
		t.Fatalf("retrieved %d nodes, want 2 (case-insensitive match + hop)", len(got))
	}
}

func TestRetrieveContextShortTokensDiscarded(t *testing.T) {
	store := newTestStore(t)
	pipeline := NewPipeline(store, nil, nil)
	ctx := context.Background()

	// "ab" is a real label but the query token is too short to match.
	pipeline.Ingest(ctx, []Triple{triple("ab", "links", "partner")}, "doc-1")

	if got := pipeline.RetrieveContext(ctx, "ab is of to"); len(got) != 0 {
		t.Fatalf("retrieved %d nodes, short tokens must be discarded", len(got))
	}
}

func TestRetrieveContextNoMatches(t *testing.T) {
	pipeline := NewPipeline(newTestStore(t), nil, nil)
	got := pipeline.RetrieveContext(context.Background(), "nothing here matches")
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty (non-nil) result, got %v", got)
	}
}
