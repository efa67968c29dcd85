package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/crawlgraph/internal/graph"
	"github.com/nao1215/crawlgraph/internal/report"
	"github.com/spf13/cobra"
)

// NewGraphCmd creates the graph command.
func NewGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph [root-url...]",
		Short: "Assemble the link graph reachable from root URLs",
		Long: `Graph walks the stored links outward from the root URLs and writes
the resulting graph. Aliases (redirects) are folded into the resource they
point to, and every node carries the depth at which it was first reached.

With a territoire, the pages that territoire rejected are left out, and the
territoire's seeds are used when no root is given.

Examples:
  # Human-readable summary
  crawlgraph graph https://example.com/

  # JSON with page content, written to a file
  crawlgraph graph -t news --json --expressions -o out/news.json

  # Markdown report
  crawlgraph graph --markdown https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runGraphCmd,
	}

	cmd.Flags().StringP("territoire", "t", "",
		"Territoire name or id whose rejected pages are excluded")
	cmd.Flags().Int64Slice("exclude", nil,
		"Resource ids to leave out of the graph")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown (mutually exclusive with --json)")
	cmd.Flags().Bool("summary", false,
		"Only print depth counts in the text output")
	cmd.Flags().BoolP("expressions", "e", false,
		"Include page content of every node")
	cmd.Flags().StringP("output", "o", "",
		"Write the graph to this file (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runGraphCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	var territoireID int64
	roots := args
	if ref, _ := cmd.Flags().GetString("territoire"); ref != "" {
		t, err := a.territoireFlag(cmd)
		if err != nil {
			return err
		}
		territoireID = t.ID
		if len(roots) == 0 {
			roots = t.Seeds
		}
	}
	roots, err = normalizeURLs(roots)
	if err != nil {
		return err
	}
	exclude, err := cmd.Flags().GetInt64Slice("exclude")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	asm := graph.NewAssembler(db, graph.WithLogger(a.logger))
	var res *graph.Result
	if territoireID != 0 {
		res, err = asm.TerritoireGraph(ctx, territoireID, roots, exclude...)
	} else {
		res, err = asm.FromRootURIs(ctx, roots, exclude)
	}
	if err != nil {
		return fmt.Errorf("failed to assemble graph: %w", err)
	}

	rep := report.NewGraphReport(res.Graph, roots)
	rep.TerritoireID = territoireID
	if withContent, _ := cmd.Flags().GetBool("expressions"); withContent {
		if rep.Expressions, err = asm.Expressions(ctx, res.Graph); err != nil {
			return err
		}
	}
	if territoireID != 0 {
		if rep.Annotations, err = asm.Annotations(ctx, res.Graph, territoireID); err != nil {
			return err
		}
	}

	return writeGraph(cmd, rep)
}

// writeGraph writes rep to stdout or the --output file in the requested format.
func writeGraph(cmd *cobra.Command, rep *report.GraphReport) error {
	var output io.Writer = cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case flagBool(cmd, "json"):
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case flagBool(cmd, "markdown"):
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(!flagBool(cmd, "summary")))
	}
	if _, err := w.Write(rep); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}

func flagBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	return err == nil && v
}
