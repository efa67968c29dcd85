package config

import (
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/crawlgraph/internal/worker"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "crawlgraph"

	// DefaultDriver is the embedded SQLite store.
	DefaultDriver = "sqlite"

	// DefaultTimeout bounds a single HTTP fetch, redirects included.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies crawlgraph in HTTP requests.
	DefaultUserAgent = "crawlgraph/1.0 (+https://github.com/nao1215/crawlgraph)"

	// DefaultMaxBodySize limits the response body size read per page.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultHostBurst is the number of requests to one host that may go
	// out back to back.
	DefaultHostBurst = 1

	// DefaultCacheTTL is how long a fetch result stays in Redis.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultConcurrency is the number of pages a frontier session fetches
	// at the same time.
	DefaultConcurrency = 8

	// DefaultUnconstrainedDepth is how deep a crawl without keywords goes.
	DefaultUnconstrainedDepth = 1

	// DefaultMaxTasks is the number of tasks a worker holds at once.
	DefaultMaxTasks = 30

	// DefaultPickInterval is the time between two task claims.
	DefaultPickInterval = 10 * time.Second

	// DefaultMaxDelay is the deadline of a single task.
	DefaultMaxDelay = 3 * time.Minute

	// DefaultStaleClaimAge is how old a claim must be before a starting
	// worker gives it back to the queue.
	DefaultStaleClaimAge = 15 * time.Minute
)

// Config holds all configuration options for crawlgraph.
// It is populated from defaults, then the config file, then CLI flags, and
// passed through the application rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. Only the YAML file is sectioned, because that is what
// users edit by hand.
type Config struct {
	// ConfigFilePath is the path to the configuration file.
	// If empty, .crawlgraph is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// Driver selects the store: "sqlite" or "postgres".
	Driver string

	// DSN is the SQLite database directory or the PostgreSQL connection
	// string. For SQLite it defaults to the XDG data directory.
	DSN string

	// RedisAddr enables the fetch cache when set ("host:port").
	RedisAddr string

	// RedisPassword authenticates against Redis.
	RedisPassword string

	// RedisDB selects the Redis logical database.
	RedisDB int

	// CacheTTL is how long a fetch result stays in the cache.
	CacheTTL time.Duration

	// ProxyAddress routes fetches through a SOCKS5 proxy ("host:port").
	ProxyAddress string

	// UseEmbeddedTor starts an embedded Tor daemon and fetches through it.
	// It cannot be combined with ProxyAddress.
	UseEmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Timeout bounds a single fetch.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// HostDelay is the minimum time between two requests to one host.
	// 0 disables the spacing.
	HostDelay time.Duration

	// HostBurst lets that many requests to one host skip HostDelay.
	HostBurst int

	// IgnorePatterns drops discovered references whose path matches.
	IgnorePatterns []string

	// FollowPatterns keeps only the discovered references whose path
	// matches, when set.
	FollowPatterns []string

	// Sites holds per-host request settings.
	Sites map[string]SiteConfig

	// Concurrency bounds the fetches of one frontier layer.
	Concurrency int

	// MaxDepth stops a frontier session after that many layers. 0 means
	// no limit: the approval policy alone ends the crawl.
	MaxDepth int

	// UnconstrainedDepth bounds crawls without keywords.
	UnconstrainedDepth int

	// MaxTasks bounds the tasks a worker holds at once.
	MaxTasks int

	// PickInterval is the time between two task claims.
	PickInterval time.Duration

	// MaxDelay is the deadline of a single task.
	MaxDelay time.Duration

	// FollowUp makes the worker queue the references of approved pages.
	FollowUp bool

	// StaleClaimAge releases older claims when a worker starts. 0 disables it.
	// It must outlive a task: at least worker.MinStaleClaimAge(MaxDelay).
	StaleClaimAge time.Duration

	// MetricsAddr serves Prometheus metrics from the worker when set.
	MetricsAddr string

	// Territoires are the crawl workspaces known by name.
	Territoires map[string]Territoire
}

// Territoire is a crawl workspace: the tasks and annotations it scopes
// share its id.
type Territoire struct {
	// ID is the territoire id used in the store.
	ID int64 `yaml:"id"`

	// Seeds are the URLs a crawl of the territoire starts from.
	Seeds []string `yaml:"seeds,omitempty"`

	// Keywords are the words the approval policy matches.
	Keywords []string `yaml:"keywords,omitempty"`
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeouts).
// This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Driver:             DefaultDriver,
		CacheTTL:           DefaultCacheTTL,
		TorStartupTimeout:  DefaultTorStartupTimeout,
		Timeout:            DefaultTimeout,
		UserAgent:          DefaultUserAgent,
		MaxBodySize:        DefaultMaxBodySize,
		HostBurst:          DefaultHostBurst,
		Sites:              make(map[string]SiteConfig),
		Concurrency:        DefaultConcurrency,
		UnconstrainedDepth: DefaultUnconstrainedDepth,
		MaxTasks:           DefaultMaxTasks,
		PickInterval:       DefaultPickInterval,
		MaxDelay:           DefaultMaxDelay,
		StaleClaimAge:      DefaultStaleClaimAge,
		Territoires:        make(map[string]Territoire),
	}
}

// XDGDataDir returns the XDG data directory for crawlgraph.
// On Linux: ~/.local/share/crawlgraph
// On macOS: ~/Library/Application Support/crawlgraph
// On Windows: %LOCALAPPDATA%\crawlgraph
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for crawlgraph.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// IsPostgres reports whether the PostgreSQL store is selected.
func (c *Config) IsPostgres() bool {
	return slices.Contains(postgresDrivers, c.Driver)
}

// StoreTarget returns what the store opens: the DSN, or the XDG data
// directory for SQLite without one.
func (c *Config) StoreTarget() string {
	if c.DSN == "" && !c.IsPostgres() {
		return XDGDataDir()
	}
	return c.DSN
}

// TerritoireWords returns the keywords of every territoire, by id.
func (c *Config) TerritoireWords() map[int64][]string {
	words := make(map[int64][]string, len(c.Territoires))
	for _, t := range c.Territoires {
		if len(t.Keywords) > 0 {
			words[t.ID] = t.Keywords
		}
	}
	return words
}

// LookupTerritoire resolves a territoire by name or by numeric id.
// A numeric reference that matches no configured territoire is still
// returned, without seeds or keywords.
func (c *Config) LookupTerritoire(ref string) (Territoire, error) {
	if t, ok := c.Territoires[ref]; ok {
		return t, nil
	}
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return Territoire{}, ErrUnknownTerritoire
	}
	for _, t := range c.Territoires {
		if t.ID == id {
			return t, nil
		}
	}
	return Territoire{ID: id}, nil
}

var (
	sqliteDrivers   = []string{"", "sqlite", "sqlite3"}
	postgresDrivers = []string{"postgres", "postgresql", "pgx"}
)

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// We return the first error found because fixing one error often makes
// others irrelevant.
func (c *Config) Validate() error {
	if !slices.Contains(sqliteDrivers, c.Driver) && !c.IsPostgres() {
		return ErrUnknownDriver
	}
	if c.IsPostgres() && c.DSN == "" {
		return ErrMissingDSN
	}
	if c.ProxyAddress != "" && c.UseEmbeddedTor {
		return ErrConflictingTransports
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.HostDelay < 0 || c.HostBurst < 1 {
		return ErrInvalidHostDelay
	}
	if c.CacheTTL < 0 {
		return ErrInvalidCacheTTL
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxDepth < 0 || c.UnconstrainedDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxTasks <= 0 {
		return ErrInvalidMaxTasks
	}
	if c.PickInterval <= 0 || c.MaxDelay <= 0 || c.StaleClaimAge < 0 {
		return ErrInvalidWorkerDelay
	}
	if c.StaleClaimAge > 0 && c.StaleClaimAge < worker.MinStaleClaimAge(c.MaxDelay) {
		return ErrStaleClaimAgeTooShort
	}

	ids := make(map[int64]string, len(c.Territoires))
	for name, t := range c.Territoires {
		if t.ID <= 0 {
			return ErrInvalidTerritoire
		}
		if _, dup := ids[t.ID]; dup {
			return ErrDuplicateTerritoire
		}
		ids[t.ID] = name
	}
	return nil
}
