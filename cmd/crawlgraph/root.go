package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for crawlgraph.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawlgraph",
		Short: "Keyword-driven web crawler that builds link graphs",
		Long: `crawlgraph crawls web pages outward from seed URLs, keeps the pages
approved by a keyword policy, and records the links between them.

Crawls run either in one process (crawl) or through a persistent task queue
shared by any number of workers (enqueue, worker). The link graph reachable
from a set of root URLs is assembled with the graph command.

Data is stored in SQLite by default (XDG data directory). Use --driver
postgres --dsn ... to share one database between several workers.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.String("log-format", "text", "Log format: text or json")
	flags.StringP("config", "c", "",
		"Configuration file path (default: .crawlgraph in current or home directory)")
	flags.String("driver", "", "Store driver: sqlite or postgres")
	flags.String("dsn", "", "SQLite directory or PostgreSQL connection string")
	flags.String("redis", "", "Redis address (host:port) enabling the fetch cache")
	flags.String("proxy", "", "SOCKS5 proxy address (host:port) for fetches")
	flags.Bool("tor", false, "Fetch through an embedded Tor daemon")

	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewEnqueueCmd())
	cmd.AddCommand(NewWorkerCmd())
	cmd.AddCommand(NewGraphCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
