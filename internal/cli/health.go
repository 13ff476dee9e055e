package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/curvesy/argus/internal/config"
	"github.com/curvesy/argus/internal/orchestrator"
	"github.com/curvesy/argus/internal/schema"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe the configured analysis backends",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	backends := buildBackends(cfg)
	if len(backends) == 0 {
		return fmt.Errorf("no analysis backends configured")
	}

	orch := orchestrator.New(backends, orchestrator.PoliciesFromConfig(cfg.Analysis), nil, cfg.Analysis.MaxConcurrent)
	report := orch.HealthCheck(context.Background())

	out := cmd.OutOrStdout()
	for _, kind := range schema.Kinds() {
		healthy, configured := report[kind]
		switch {
		case !configured:
			fmt.Fprintf(out, "  %-10s %s\n", kind, color.YellowString("not configured"))
		case healthy:
			fmt.Fprintf(out, "  %-10s %s\n", kind, color.GreenString("ok"))
		default:
			fmt.Fprintf(out, "  %-10s %s\n", kind, color.RedString("unreachable"))
		}
	}
	return nil
}
