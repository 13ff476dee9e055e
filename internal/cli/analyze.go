package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/curvesy/argus/internal/config"
	"github.com/curvesy/argus/internal/orchestrator"
)

var (
	analyzeSubject string
	analyzeKinds   []string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run analysis backends for a subject and print the composite result",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeSubject, "subject", "", "Subject identifier to analyze")
	analyzeCmd.Flags().StringSliceVar(&analyzeKinds, "kinds", nil, "Analysis kinds to run (default: all)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if analyzeSubject == "" {
		return fmt.Errorf("--subject is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	kinds, err := parseKinds(analyzeKinds)
	if err != nil {
		return err
	}

	orch := orchestrator.New(
		buildBackends(cfg),
		orchestrator.PoliciesFromConfig(cfg.Analysis),
		nil,
		cfg.Analysis.MaxConcurrent,
	)

	result := orch.RunAll(context.Background(), analyzeSubject, kinds)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s subject %s\n", result.RunID, result.SubjectID)
	for _, task := range result.Tasks {
		switch task.Status {
		case orchestrator.StatusSucceeded:
			fmt.Fprintf(out, "  %-10s %s (attempts: %d)\n", task.Kind, color.GreenString(string(task.Status)), task.Attempts)
		default:
			fmt.Fprintf(out, "  %-10s %s (attempts: %d) %s\n", task.Kind, color.RedString(string(task.Status)), task.Attempts, task.Error)
		}
	}
	if result.Confidence != nil {
		fmt.Fprintf(out, "confidence: %.3f\n", *result.Confidence)
	} else {
		fmt.Fprintln(out, "confidence: n/a (no analysis succeeded)")
	}
	return nil
}
