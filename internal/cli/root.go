package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/curvesy/argus/internal/config"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/curvesy/argus/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"     _____ _____  _____ _    _  _____\n" +
		"    /  _  |  __ \\/ ____| |  | |/ ____|\n" +
		"    | |_| | |__) | |  _| |  | | (___\n" +
		"    |  _  |  _  /| |_| | |__| |____) |\n" +
		"    |_| |_|_| \\_\\\\_____|\\____/|_____/\n"
)

var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Argus - analysis orchestration and knowledge graph service",
	Long:  color.CyanString(logo) + "\nRuns analysis backends under retry policies, ingests extracted knowledge into a graph, and fans events out to subscribers.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the argus version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "argus %s\n", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(healthCmd)
}

// setupLogging configures the process-wide slog logger from config.
func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
