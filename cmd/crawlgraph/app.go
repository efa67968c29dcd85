package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/crawlgraph/internal/approve"
	"github.com/nao1215/crawlgraph/internal/config"
	"github.com/nao1215/crawlgraph/internal/database"
	"github.com/nao1215/crawlgraph/internal/fetch"
	securelog "github.com/nao1215/crawlgraph/internal/log"
	"github.com/nao1215/crawlgraph/internal/store"
	"github.com/nao1215/crawlgraph/internal/tor"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// app bundles what every subcommand needs once flags are parsed.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// newApp loads the configuration file, applies the explicitly set flags,
// then the command's own overrides, and validates the result. The logger is
// installed as the slog default so that libraries logging through slog are
// sanitized too.
func newApp(cmd *cobra.Command, overrides ...func(*config.Config) error) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	for _, override := range overrides {
		if err := override(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	formatName, err := cmd.Flags().GetString("log-format")
	if err != nil {
		return nil, err
	}
	format, err := securelog.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}
	logger := securelog.NewLogger(cmd.ErrOrStderr(), format, cfg.Verbose)
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger}, nil
}

// loadConfig builds the configuration from the file and the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if err := errors.Join(
		boolFlag(cmd, "verbose", &cfg.Verbose),
		stringFlag(cmd, "driver", &cfg.Driver),
		stringFlag(cmd, "dsn", &cfg.DSN),
		stringFlag(cmd, "redis", &cfg.RedisAddr),
		stringFlag(cmd, "proxy", &cfg.ProxyAddress),
		boolFlag(cmd, "tor", &cfg.UseEmbeddedTor),
	); err != nil {
		return nil, err
	}
	return cfg, nil
}

// The flag helpers copy a flag into dst only when the user set it, so that
// file values survive flag defaults.

func stringFlag(cmd *cobra.Command, name string, dst *string) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func boolFlag(cmd *cobra.Command, name string, dst *bool) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func intFlag(cmd *cobra.Command, name string, dst *int) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func durationFlag(cmd *cobra.Command, name string, dst *time.Duration) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := cmd.Flags().GetDuration(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// openStore connects to the configured store and migrates its schema.
func (a *app) openStore(ctx context.Context) (*database.CrawlDB, error) {
	driver, err := database.ParseDriver(a.cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := database.Connect(ctx, driver, a.cfg.StoreTarget())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.logger.Debug("store opened", "driver", driver, "dsn", a.cfg.StoreTarget())
	return db, nil
}

// newFetcher builds the HTTP fetcher with the configured transport, site
// settings and link filter. Requests are spaced per host, and the Redis
// cache sits in front when an address is set. The returned cleanup stops the embedded Tor daemon and closes Redis.
func (a *app) newFetcher(ctx context.Context) (fetch.Fetcher, func() error, error) {
	cfg := a.cfg
	transport, stopTransport, err := tor.NewTransport(ctx, tor.TransportConfig{
		ProxyAddress:   cfg.ProxyAddress,
		Embedded:       cfg.UseEmbeddedTor,
		DialTimeout:    cfg.Timeout,
		StartupTimeout: cfg.TorStartupTimeout,
	}, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up transport: %w", err)
	}

	opts := []fetch.Option{
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithFilter(fetch.Filter{Ignore: cfg.IgnorePatterns, Follow: cfg.FollowPatterns}),
		fetch.WithSites(siteSettings(cfg.Sites)),
		fetch.WithLogger(a.logger),
	}
	if transport != nil {
		opts = append(opts, fetch.WithTransport(transport))
	}
	var fetcher fetch.Fetcher = fetch.NewPoliteFetcher(fetch.NewHTTPFetcher(opts...),
		cfg.HostDelay, fetch.WithHostBurst(cfg.HostBurst))

	if cfg.RedisAddr == "" {
		return fetcher, stopTransport, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// The cache is optional: fetches fall through to HTTP when Redis
		// fails, so an unreachable server at startup is only reported.
		a.logger.Warn("redis unreachable, fetch cache will miss", "addr", cfg.RedisAddr, "error", err)
	}
	cached := fetch.NewCachingFetcher(fetcher, client,
		fetch.WithCacheTTL(cfg.CacheTTL),
		fetch.WithCacheLogger(a.logger),
	)
	cleanup := func() error {
		return errors.Join(client.Close(), stopTransport())
	}
	return cached, cleanup, nil
}

// newPolicy returns the keyword policy bounded by the configured depths.
func (a *app) newPolicy() *approve.KeywordPolicy {
	policy := approve.NewKeywordPolicy()
	policy.MaxDepth = a.cfg.MaxDepth
	policy.UnconstrainedDepth = a.cfg.UnconstrainedDepth
	return policy
}

func siteSettings(sites map[string]config.SiteConfig) map[string]fetch.Site {
	out := make(map[string]fetch.Site, len(sites))
	for host, s := range sites {
		out[host] = fetch.Site{Cookie: s.Cookie, Headers: s.Headers}
	}
	return out
}

// territoireFlag resolves the --territoire flag of cmd.
func (a *app) territoireFlag(cmd *cobra.Command) (config.Territoire, error) {
	ref, err := cmd.Flags().GetString("territoire")
	if err != nil {
		return config.Territoire{}, err
	}
	t, err := a.cfg.LookupTerritoire(ref)
	if err != nil {
		return config.Territoire{}, fmt.Errorf("%w: %q", err, ref)
	}
	return t, nil
}

// errNoSeeds is returned when neither arguments nor the territoire name URLs.
var errNoSeeds = errors.New("no URLs given: pass URLs as arguments or use a territoire with seeds")

// normalizeURLs strips fragments and rejects anything but absolute http(s)
// URLs. Duplicates are dropped, order is kept.
func normalizeURLs(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	urls := make([]string, 0, len(raw))
	for _, r := range raw {
		u := store.StripFragment(strings.TrimSpace(r))
		if !store.IsValidURL(u) {
			return nil, fmt.Errorf("%w: %q", store.ErrInvalidURL, r)
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	if len(urls) == 0 {
		return nil, errNoSeeds
	}
	return urls, nil
}
