package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/curvesy/argus/internal/config"
	"github.com/curvesy/argus/internal/events"
	"github.com/curvesy/argus/internal/graph"
	"github.com/curvesy/argus/internal/orchestrator"
	"github.com/curvesy/argus/internal/server"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the argus HTTP and websocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config server.listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	dist := events.NewDistributor(cfg.Events.BufferSize)

	var capability graph.Capability
	if cfg.Extraction.APIKey != "" {
		capability = graph.NewOpenAIExtractor(cfg.Extraction)
	} else {
		slog.Warn("No extraction API key configured, text ingestion disabled")
	}
	pipeline := graph.NewPipeline(store, capability, dist)

	orch := orchestrator.New(
		buildBackends(cfg),
		orchestrator.PoliciesFromConfig(cfg.Analysis),
		dist,
		cfg.Analysis.MaxConcurrent,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Events.Kafka.Enabled {
		bridge := events.NewBridge(cfg.Events.Kafka, dist)
		defer bridge.Close()
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Kafka bridge stopped", "error", err)
			}
		}()
		slog.Info("Kafka bridge enabled", "brokers", cfg.Events.Kafka.Brokers, "topic", cfg.Events.Kafka.Topic)
	}

	listen := serveListen
	if listen == "" {
		listen = cfg.Server.Listen
	}

	srv := server.New(orch, pipeline, store, dist)
	if err := srv.Run(ctx, listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
