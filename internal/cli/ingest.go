package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/curvesy/argus/internal/config"
	"github.com/curvesy/argus/internal/graph"
)

var (
	ingestSource string
	ingestRaw    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Extract relationships from a document and write them to the knowledge graph",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestSource, "source", "", "Source document ID (defaults to the file name)")
	ingestCmd.Flags().BoolVar(&ingestRaw, "raw", false, "Treat the file as pre-extracted relationship JSON, skipping the extraction capability")
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	source := ingestSource
	if source == "" {
		source = filepath.Base(args[0])
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var capability graph.Capability
	if !ingestRaw {
		if cfg.Extraction.APIKey == "" {
			return fmt.Errorf("extraction.apiKey is not configured; use --raw for pre-extracted JSON")
		}
		capability = graph.NewOpenAIExtractor(cfg.Extraction)
	}
	pipeline := graph.NewPipeline(store, capability, nil)

	ctx := context.Background()
	var result graph.IngestResult
	if ingestRaw {
		result = pipeline.Ingest(ctx, graph.ParseTriples(data), source)
	} else {
		result = pipeline.IngestText(ctx, string(data), source)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ingested %s: %d nodes, %d relations, %d skipped\n",
		source, result.Nodes, result.Relations, result.Skipped)
	return nil
}
