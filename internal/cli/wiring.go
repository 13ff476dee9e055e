package cli

import (
	"fmt"

	"github.com/curvesy/argus/internal/config"
	"github.com/curvesy/argus/internal/graph"
	"github.com/curvesy/argus/internal/orchestrator"
	"github.com/curvesy/argus/internal/schema"
)

// buildBackends maps each analysis kind to its configured HTTP backend.
// Kinds with no base URL are left out; the orchestrator reports them as
// unknown.
func buildBackends(cfg *config.Config) map[schema.Kind]orchestrator.Backend {
	backends := make(map[schema.Kind]orchestrator.Backend)
	entries := map[schema.Kind]config.BackendConfig{
		schema.KindTopology:  cfg.Analysis.Backends.Topology,
		schema.KindCausal:    cfg.Analysis.Backends.Causal,
		schema.KindConsensus: cfg.Analysis.Backends.Consensus,
	}
	for kind, entry := range entries {
		if entry.BaseURL != "" {
			backends[kind] = orchestrator.NewHTTPBackend(entry.BaseURL, entry.APIKey)
		}
	}
	return backends
}

// openStore opens the graph database at the configured path, creating
// the data directory if needed.
func openStore(cfg *config.Config) (*graph.Store, error) {
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return graph.Open(cfg.Paths.GraphDB)
}

// parseKinds turns CLI kind arguments into schema kinds, defaulting to
// all kinds when empty.
func parseKinds(raw []string) ([]schema.Kind, error) {
	if len(raw) == 0 {
		return schema.Kinds(), nil
	}
	kinds := make([]schema.Kind, 0, len(raw))
	for _, r := range raw {
		kind := schema.Kind(r)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown analysis kind %q (valid: topology, causal, consensus)", r)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
