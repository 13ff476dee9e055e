package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curvesy/argus/internal/config"
	"github.com/curvesy/argus/internal/graph"
)

var queryCmd = &cobra.Command{
	Use:   "query <terms...>",
	Short: "Retrieve graph context for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	pipeline := graph.NewPipeline(store, nil, nil)
	nodes := pipeline.RetrieveContext(context.Background(), strings.Join(args, " "))

	out := cmd.OutOrStdout()
	if len(nodes) == 0 {
		fmt.Fprintln(out, "no matching nodes")
		return nil
	}
	for _, node := range nodes {
		fmt.Fprintf(out, "%s\t%s\t%s\n", node.ID, node.Type, node.Label)
	}
	return nil
}
