package fetch

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/sha3"

	"github.com/nao1215/crawlgraph/internal/store"
)

const (
	// cacheKeyPrefix namespaces the cache entries in a shared Redis.
	cacheKeyPrefix = "crawlgraph:fetch:"

	// DefaultCacheTTL is how long a fetch result is reused.
	DefaultCacheTTL = time.Hour
)

// CachingFetcher serves recent results from Redis and stores new ones.
// Cache failures never fail a fetch; they are logged and the network is used.
type CachingFetcher struct {
	next   Fetcher
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// CacheOption configures a CachingFetcher.
type CacheOption func(*CachingFetcher)

// WithCacheTTL sets the expiry of cached results.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachingFetcher) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachingFetcher) {
		c.logger = logger
	}
}

// NewCachingFetcher wraps next with a Redis cache.
func NewCachingFetcher(next Fetcher, client redis.Cmdable, opts ...CacheOption) *CachingFetcher {
	c := &CachingFetcher{
		next:   next,
		client: client,
		ttl:    DefaultCacheTTL,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey returns the Redis key of a URL: a prefix and the hex SHA3-256
// of the URL without fragment.
func CacheKey(rawURL string) string {
	sum := sha3.Sum256([]byte(store.StripFragment(rawURL)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// Fetch implements Fetcher.
func (c *CachingFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	key := CacheKey(rawURL)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		var result Result
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			c.logger.Debug("fetch cache hit", "url", rawURL)
			return &result, nil
		}
		c.logger.Warn("discarding corrupt fetch cache entry", "url", rawURL)
	case errors.Is(err, redis.Nil):
		// miss
	default:
		c.logger.Warn("fetch cache unavailable", "url", rawURL, "error", err)
	}

	result, err := c.next.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("failed to encode fetch result", "url", rawURL, "error", err)
		return result, nil
	}
	if err := c.client.Set(ctx, key, string(data), c.ttl).Err(); err != nil {
		c.logger.Warn("failed to store fetch result", "url", rawURL, "error", err)
	}
	return result, nil
}
