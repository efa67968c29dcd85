package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the pending tasks of a territoire",
		Long: `Status prints the number of tasks of a territoire that are still
queued or claimed by a worker.

Examples:
  crawlgraph status -t news`,
		Args: cobra.NoArgs,
		RunE: runStatusCmd,
	}

	cmd.Flags().StringP("territoire", "t", "", "Territoire name or id (required)")
	_ = cmd.MarkFlagRequired("territoire")

	return cmd
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	t, err := a.territoireFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := db.CountTasksByTerritoire(ctx, t.ID)
	if err != nil {
		return fmt.Errorf("failed to count tasks: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Territoire %d: %d pending tasks\n", t.ID, n)
	return nil
}
