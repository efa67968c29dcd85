package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/crawlgraph/internal/config"
	"github.com/nao1215/crawlgraph/internal/fetch"
	"github.com/nao1215/crawlgraph/internal/frontier"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl outward from seed URLs in this process",
		Long: `Crawl runs one crawl session: it fetches the seeds, keeps the pages
approved by the keyword policy, and follows their links layer by layer until
no approved page is left or the maximum depth is reached.

Pages already in the store are reused without refetching.

Examples:
  # Crawl two seeds looking for pages about rivers
  crawlgraph crawl -k river,flood https://example.com/ https://example.org/

  # Use the seeds and keywords of a configured territoire
  crawlgraph crawl -t news

  # Crawl without keywords, two layers deep
  crawlgraph crawl --unconstrained-depth 2 https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringSliceP("keywords", "k", nil,
		"Keywords a page must contain to be followed")
	cmd.Flags().StringP("territoire", "t", "",
		"Territoire name or id providing seeds and keywords")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Concurrent fetches per depth layer")
	cmd.Flags().IntP("max-depth", "d", 0,
		"Deepest layer to crawl, seeds being layer 0 (0: no limit)")
	cmd.Flags().Int("unconstrained-depth", config.DefaultUnconstrainedDepth,
		"Depth limit when no keywords are given")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for each request")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, func(cfg *config.Config) error {
		return errors.Join(
			intFlag(cmd, "concurrency", &cfg.Concurrency),
			intFlag(cmd, "max-depth", &cfg.MaxDepth),
			intFlag(cmd, "unconstrained-depth", &cfg.UnconstrainedDepth),
			durationFlag(cmd, "timeout", &cfg.Timeout),
		)
	})
	if err != nil {
		return err
	}

	seeds, words, err := crawlTargets(cmd, a, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	fetcher, cleanup, err := a.newFetcher(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			a.logger.Warn("failed to release fetcher", "error", err)
		}
	}()

	f := frontier.New(
		fetch.NewExpressionSource(db, fetcher, a.logger),
		frontier.NewStoreWriter(db),
		a.newPolicy(),
		frontier.WithConcurrency(a.cfg.Concurrency),
		frontier.WithMaxDepth(a.cfg.MaxDepth),
		frontier.WithLogger(a.logger),
	)
	session := f.NewSession(seeds, words)
	session.Crawl(ctx)

	state := session.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Crawl session %s: %d pages processed, last depth %d\n",
		session.ID(), len(state.Done), state.Depth)
	if ctx.Err() != nil {
		fmt.Fprintf(out, "Interrupted with %d URLs left\n", len(state.Todo)+len(state.Doing))
	}
	return nil
}

// crawlTargets resolves the seeds and keywords from the arguments and the
// optional territoire. Explicit arguments and --keywords win.
func crawlTargets(cmd *cobra.Command, a *app, args []string) ([]string, []string, error) {
	words, err := cmd.Flags().GetStringSlice("keywords")
	if err != nil {
		return nil, nil, err
	}
	seeds := args

	if ref, _ := cmd.Flags().GetString("territoire"); ref != "" {
		t, err := a.territoireFlag(cmd)
		if err != nil {
			return nil, nil, err
		}
		if len(seeds) == 0 {
			seeds = t.Seeds
		}
		if !cmd.Flags().Changed("keywords") {
			words = t.Keywords
		}
	}

	seeds, err = normalizeURLs(seeds)
	if err != nil {
		return nil, nil, err
	}
	return seeds, words, nil
}
