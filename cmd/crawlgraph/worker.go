package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nao1215/crawlgraph/internal/config"
	"github.com/nao1215/crawlgraph/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 5 * time.Second

// NewWorkerCmd creates the worker command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued tasks until interrupted",
		Long: `Worker claims queued tasks from the store at a fixed interval, fetches
their pages, and records expressions, links and approval annotations.

Several workers can share one PostgreSQL store: each task is claimed by a
single worker. On SIGINT or SIGTERM the worker stops claiming and waits for
the tasks it holds to settle.

Examples:
  crawlgraph worker --driver postgres --dsn postgres://crawl@db/crawl
  crawlgraph worker --follow-up --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: runWorkerCmd,
	}

	cmd.Flags().Int("max-tasks", config.DefaultMaxTasks,
		"Maximum tasks held at once")
	cmd.Flags().Duration("interval", config.DefaultPickInterval,
		"Time between two task claims")
	cmd.Flags().Duration("max-delay", config.DefaultMaxDelay,
		"Deadline of a single task")
	cmd.Flags().Bool("follow-up", false,
		"Queue the links of approved pages as new tasks")
	cmd.Flags().Duration("stale-claim-age", config.DefaultStaleClaimAge,
		"Release claims older than this at startup, at least 3x max-delay plus 1m (0: disabled)")
	cmd.Flags().String("metrics-addr", "",
		"Serve /metrics and /healthz on this address")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for each request")

	return cmd
}

func runWorkerCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, func(cfg *config.Config) error {
		return errors.Join(
			intFlag(cmd, "max-tasks", &cfg.MaxTasks),
			durationFlag(cmd, "interval", &cfg.PickInterval),
			durationFlag(cmd, "max-delay", &cfg.MaxDelay),
			boolFlag(cmd, "follow-up", &cfg.FollowUp),
			durationFlag(cmd, "stale-claim-age", &cfg.StaleClaimAge),
			stringFlag(cmd, "metrics-addr", &cfg.MetricsAddr),
			durationFlag(cmd, "timeout", &cfg.Timeout),
		)
	})
	if err != nil {
		return err
	}
	cfg := a.cfg

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

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pool := worker.NewPool(db, fetcher, a.newPolicy(),
		worker.WithInterval(cfg.PickInterval),
		worker.WithMaxConcurrentTasks(cfg.MaxTasks),
		worker.WithMaxDelay(cfg.MaxDelay),
		worker.WithFollowUpTasks(cfg.FollowUp),
		worker.WithStaleClaimAge(cfg.StaleClaimAge),
		worker.WithTerritoireWords(cfg.TerritoireWords()),
		worker.WithLogger(a.logger),
		worker.WithMetrics(worker.NewMetrics(reg)),
	)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           newMetricsRouter(reg, pool),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("failed to stop metrics server", "error", err)
			}
		}()
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Worker %s started (max %d tasks, claim every %s)\n",
		pool.ID(), cfg.MaxTasks, cfg.PickInterval)
	if err := pool.Run(ctx); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	fmt.Fprintf(out, "Worker %s stopped\n", pool.ID())
	return nil
}
