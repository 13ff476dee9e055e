package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/curvesy/argus/internal/events"
	"github.com/curvesy/argus/internal/graph"
	"github.com/curvesy/argus/internal/orchestrator"
	"github.com/curvesy/argus/internal/schema"
)

type fakeBackend struct {
	raw     []byte
	pingErr error
}

func (f *fakeBackend) Analyze(context.Context, orchestrator.Request) ([]byte, error) {
	return f.raw, nil
}

func (f *fakeBackend) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T) (*Server, *graph.Store, *events.Distributor) {
	t.Helper()
	store, err := graph.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	dist := events.NewDistributor(16)
	backends := map[schema.Kind]orchestrator.Backend{
		schema.KindTopology: &fakeBackend{raw: []byte(`{"components": 2, "cycles": 1, "voids": 0, "features": 3}`)},
	}
	orch := orchestrator.New(backends, orchestrator.DefaultPolicies(), dist, 3)
	pipeline := graph.NewPipeline(store, nil, dist)
	return New(orch, pipeline, store, dist), store, dist
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analyze", map[string]any{
		"subjectId": "contract-9",
		"kinds":     []string{"topology"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result struct {
		RunID string `json:"runId"`
		Tasks []struct {
			Kind   string `json:"kind"`
			Status string `json:"status"`
		} `json:"tasks"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].Status != string(orchestrator.StatusSucceeded) {
		t.Fatalf("unexpected composite result: %s", rec.Body.String())
	}
	if result.Confidence == nil || *result.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", result.Confidence)
	}
}

func TestAnalyzeRejectsUnknownKind(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/analyze", map[string]any{
		"subjectId": "contract-9",
		"kinds":     []string{"astrology"},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestEndpointWithRelationships(t *testing.T) {
	srv, store, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/ingest", map[string]any{
		"source": "doc-1",
		"data": map[string]any{
			"relationships": []map[string]any{
				{"subject": "payment", "predicate": "depends_on", "object": "delivery", "confidence": 0.8},
			},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result graph.IngestResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Nodes != 2 || result.Relations != 1 {
		t.Errorf("unexpected ingest result: %+v", result)
	}

	st, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Relations != 1 {
		t.Errorf("relations persisted = %d, want 1", st.Relations)
	}
}

func TestIngestRejectsEmptyData(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/ingest", map[string]any{
		"source": "doc-1",
		"data":   map[string]any{"unexpected": true},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestContextEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	ctx := context.Background()

	from, _ := store.UpsertNode(ctx, "payment", "clause")
	to, _ := store.UpsertNode(ctx, "delivery", "clause")
	if _, err := store.InsertRelation(ctx, from.ID, to.ID, "depends_on", "doc-1", 0.9, nil); err != nil {
		t.Fatalf("insert relation: %v", err)
	}

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/context?q=payment+terms", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Nodes []graph.NodeRef `json:"nodes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want direct match plus neighbor", len(resp.Nodes))
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/context", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Backends map[string]bool `json:"backends"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Backends["topology"] {
		t.Errorf("topology backend should report healthy: %+v", resp.Backends)
	}
}

func TestGraphStatsEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)

	if _, err := store.UpsertNode(context.Background(), "payment", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/graph/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats graph.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Nodes != 1 {
		t.Errorf("nodes = %d, want 1", stats.Nodes)
	}
}

func TestPublishEventEndpoint(t *testing.T) {
	srv, _, dist := newTestServer(t)

	conn := dist.Connect()
	t.Cleanup(func() { dist.Disconnect(conn) })
	dist.Subscribe(conn, events.RoomSystem)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/events", map[string]any{
		"type":      "WORKFLOW_UPDATE",
		"runId":     "run-7",
		"timestamp": "2026-08-26T10:00:00Z",
		"payload":   map[string]any{"workflowId": "wf-1", "stage": "review", "status": "active"},
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	select {
	case e := <-conn.Events():
		if e.Type != events.TypeWorkflowUpdate || e.RunID != "run-7" {
			t.Errorf("unexpected event: %+v", e)
		}
	default:
		t.Fatal("published event was not delivered to system room")
	}
}

func TestPublishEventRejectsIncompleteWireShape(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/events", map[string]any{
		"type":  "WORKFLOW_UPDATE",
		"runId": "",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
