// Package server exposes the HTTP and websocket surface of argus.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/curvesy/argus/internal/events"
	"github.com/curvesy/argus/internal/graph"
	"github.com/curvesy/argus/internal/orchestrator"
	"github.com/curvesy/argus/internal/schema"
)

// Server wires the orchestrator, ingestion pipeline, and event
// distributor behind an HTTP API.
type Server struct {
	orch     *orchestrator.Orchestrator
	pipeline *graph.Pipeline
	store    *graph.Store
	dist     *events.Distributor
	engine   *gin.Engine
}

// New builds the server and its routes.
func New(orch *orchestrator.Orchestrator, pipeline *graph.Pipeline, store *graph.Store, dist *events.Distributor) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		orch:     orch,
		pipeline: pipeline,
		store:    store,
		dist:     dist,
		engine:   engine,
	}

	api := engine.Group("/api")
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/ingest", s.handleIngest)
	api.GET("/context", s.handleContext)
	api.GET("/health", s.handleHealth)
	api.GET("/graph/stats", s.handleGraphStats)
	api.POST("/events", s.handlePublishEvent)
	engine.GET("/ws", s.handleWebsocket)

	return s
}

// Handler exposes the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{Addr: listen, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type analyzeRequest struct {
	SubjectID string   `json:"subjectId" binding:"required"`
	Kinds     []string `json:"kinds"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kinds := make([]schema.Kind, 0, len(req.Kinds))
	for _, raw := range req.Kinds {
		kind := schema.Kind(raw)
		if !kind.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown analysis kind: " + raw})
			return
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		kinds = schema.Kinds()
	}

	result := s.orch.RunAll(c.Request.Context(), req.SubjectID, kinds)
	c.JSON(http.StatusOK, result)
}

type ingestRequest struct {
	Source string         `json:"source" binding:"required"`
	Data   map[string]any `json:"data" binding:"required"`
}

// handleIngest accepts either free text under data.text (extracted via
// the capability) or pre-extracted relationships under
// data.relationships.
func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var triples []graph.Triple
	if rels, ok := req.Data["relationships"]; ok {
		raw, err := json.Marshal(rels)
		if err == nil {
			triples = graph.ParseTriples(raw)
		}
	} else if text, ok := req.Data["text"].(string); ok && text != "" {
		triples = s.pipeline.ExtractTriples(ctx, text)
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data must contain text or relationships"})
		return
	}

	result := s.pipeline.Ingest(ctx, triples, req.Source)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleContext(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	nodes := s.pipeline.RetrieveContext(c.Request.Context(), query)
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (s *Server) handleHealth(c *gin.Context) {
	report := s.orch.HealthCheck(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"backends": report})
}

func (s *Server) handleGraphStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.dist.Publish(events.Event{
		Type:  events.TypeGraphInsight,
		RunID: "system",
		Payload: events.GraphInsightPayload{
			Summary:   "graph stats requested",
			Nodes:     stats.Nodes,
			Relations: stats.Relations,
		},
	})
	c.JSON(http.StatusOK, stats)
}

// handlePublishEvent lets external producers inject events. The wire
// shape requires all four fields; unknown types are accepted and dropped
// by the distributor.
func (s *Server) handlePublishEvent(c *gin.Context) {
	var e events.Event
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := e.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.dist.Publish(e)
	c.JSON(http.StatusAccepted, gin.H{"status": "published"})
}
