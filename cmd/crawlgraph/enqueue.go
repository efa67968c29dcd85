package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewEnqueueCmd creates the enqueue command.
func NewEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue [url...]",
		Short: "Queue URLs as tasks for the worker pool",
		Long: `Enqueue creates the resources of the given URLs, attaches them to a
territoire and queues one task per resource. Running workers pick the tasks
up on their next tick.

Without URL arguments the territoire's configured seeds are queued.

Examples:
  crawlgraph enqueue -t news https://example.com/
  crawlgraph enqueue -t 7 --depth 1 https://example.com/archive`,
		Args: cobra.ArbitraryArgs,
		RunE: runEnqueueCmd,
	}

	cmd.Flags().StringP("territoire", "t", "", "Territoire name or id (required)")
	cmd.Flags().IntP("depth", "d", 0, "Depth recorded on the tasks")
	_ = cmd.MarkFlagRequired("territoire")

	return cmd
}

func runEnqueueCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.territoireFlag(cmd)
	if err != nil {
		return err
	}
	depth, err := cmd.Flags().GetInt("depth")
	if err != nil {
		return err
	}
	if depth < 0 {
		return fmt.Errorf("invalid depth %d: must be non-negative", depth)
	}

	raw := args
	if len(raw) == 0 {
		raw = t.Seeds
	}
	urls, err := normalizeURLs(raw)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	resources, err := db.FindOrCreateResourcesForTerritoire(ctx, urls, t.ID)
	if err != nil {
		return fmt.Errorf("failed to create resources: %w", err)
	}
	ids := make([]int64, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}
	if err := db.CreateTasks(ctx, ids, t.ID, depth); err != nil {
		return fmt.Errorf("failed to create tasks: %w", err)
	}

	a.logger.Info("tasks queued", "territoire", t.ID, "count", len(ids), "depth", depth)
	fmt.Fprintf(cmd.OutOrStdout(), "Queued %d tasks for territoire %d\n", len(ids), t.ID)
	return nil
}
