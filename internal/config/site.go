package config

import (
	"maps"
	"time"
)

// SiteConfig holds request settings for a single host.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// File represents the structure of the .crawlgraph configuration file.
type File struct {
	Database    DatabaseSection       `yaml:"database,omitempty"`
	Redis       RedisSection          `yaml:"redis,omitempty"`
	Fetch       FetchSection          `yaml:"fetch,omitempty"`
	Frontier    FrontierSection       `yaml:"frontier,omitempty"`
	Worker      WorkerSection         `yaml:"worker,omitempty"`
	Sites       map[string]SiteConfig `yaml:"sites,omitempty"`
	Territoires map[string]Territoire `yaml:"territoires,omitempty"`
}

// DatabaseSection selects the store.
type DatabaseSection struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

// RedisSection configures the fetch cache.
type RedisSection struct {
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// FetchSection configures the HTTP fetcher and its transport.
type FetchSection struct {
	Timeout           time.Duration `yaml:"timeout,omitempty"`
	UserAgent         string        `yaml:"userAgent,omitempty"`
	MaxBodySize       int64         `yaml:"maxBodySize,omitempty"`
	HostDelay         time.Duration `yaml:"hostDelay,omitempty"`
	HostBurst         int           `yaml:"hostBurst,omitempty"`
	Proxy             string        `yaml:"proxy,omitempty"`
	Tor               bool          `yaml:"tor,omitempty"`
	TorStartupTimeout time.Duration `yaml:"torStartupTimeout,omitempty"`
	IgnorePatterns    []string      `yaml:"ignorePatterns,omitempty"`
	FollowPatterns    []string      `yaml:"followPatterns,omitempty"`
}

// FrontierSection configures crawl sessions.
type FrontierSection struct {
	Concurrency        int `yaml:"concurrency,omitempty"`
	MaxDepth           int `yaml:"maxDepth,omitempty"`
	UnconstrainedDepth int `yaml:"unconstrainedDepth,omitempty"`
}

// WorkerSection configures the task worker.
type WorkerSection struct {
	MaxTasks      int           `yaml:"maxTasks,omitempty"`
	Interval      time.Duration `yaml:"interval,omitempty"`
	MaxDelay      time.Duration `yaml:"maxDelay,omitempty"`
	FollowUp      bool          `yaml:"followUp,omitempty"`
	StaleClaimAge time.Duration `yaml:"staleClaimAge,omitempty"`
	MetricsAddr   string        `yaml:"metricsAddr,omitempty"`
}

// Apply copies the values set in the file over c. Zero values in the file
// leave c untouched.
func (cf *File) Apply(c *Config) {
	setString(&c.Driver, cf.Database.Driver)
	setString(&c.DSN, cf.Database.DSN)

	setString(&c.RedisAddr, cf.Redis.Addr)
	setString(&c.RedisPassword, cf.Redis.Password)
	setInt(&c.RedisDB, cf.Redis.DB)
	setDuration(&c.CacheTTL, cf.Redis.TTL)

	setDuration(&c.Timeout, cf.Fetch.Timeout)
	setString(&c.UserAgent, cf.Fetch.UserAgent)
	if cf.Fetch.MaxBodySize != 0 {
		c.MaxBodySize = cf.Fetch.MaxBodySize
	}
	setDuration(&c.HostDelay, cf.Fetch.HostDelay)
	setInt(&c.HostBurst, cf.Fetch.HostBurst)
	setString(&c.ProxyAddress, cf.Fetch.Proxy)
	c.UseEmbeddedTor = c.UseEmbeddedTor || cf.Fetch.Tor
	setDuration(&c.TorStartupTimeout, cf.Fetch.TorStartupTimeout)
	if len(cf.Fetch.IgnorePatterns) > 0 {
		c.IgnorePatterns = cf.Fetch.IgnorePatterns
	}
	if len(cf.Fetch.FollowPatterns) > 0 {
		c.FollowPatterns = cf.Fetch.FollowPatterns
	}

	setInt(&c.Concurrency, cf.Frontier.Concurrency)
	setInt(&c.MaxDepth, cf.Frontier.MaxDepth)
	setInt(&c.UnconstrainedDepth, cf.Frontier.UnconstrainedDepth)

	setInt(&c.MaxTasks, cf.Worker.MaxTasks)
	setDuration(&c.PickInterval, cf.Worker.Interval)
	setDuration(&c.MaxDelay, cf.Worker.MaxDelay)
	c.FollowUp = c.FollowUp || cf.Worker.FollowUp
	setDuration(&c.StaleClaimAge, cf.Worker.StaleClaimAge)
	setString(&c.MetricsAddr, cf.Worker.MetricsAddr)

	if c.Sites == nil {
		c.Sites = make(map[string]SiteConfig, len(cf.Sites))
	}
	maps.Copy(c.Sites, cf.Sites)
	if c.Territoires == nil {
		c.Territoires = make(map[string]Territoire, len(cf.Territoires))
	}
	maps.Copy(c.Territoires, cf.Territoires)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
