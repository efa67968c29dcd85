package fetch

import (
	"context"
	"net/url"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// PoliteFetcher spaces out requests to the same host and collapses
// concurrent fetches of one URL into a single request. The worker pool and
// the frontier both fetch many URLs of one site at once, and this is the
// layer that keeps them from hammering it.
type PoliteFetcher struct {
	next  Fetcher
	every time.Duration
	burst int

	mu      sync.Mutex
	hosts   map[string]*rate.Limiter
	flights singleflight.Group
}

// PoliteOption configures a PoliteFetcher.
type PoliteOption func(*PoliteFetcher)

// WithHostBurst lets n requests to one host go out back to back before the
// delay applies. Values below 1 are ignored.
func WithHostBurst(n int) PoliteOption {
	return func(p *PoliteFetcher) {
		if n >= 1 {
			p.burst = n
		}
	}
}

// NewPoliteFetcher wraps next so that requests to one host are at least
// every apart. A non-positive delay disables the spacing but keeps the
// collapsing of concurrent fetches.
func NewPoliteFetcher(next Fetcher, every time.Duration, opts ...PoliteOption) *PoliteFetcher {
	p := &PoliteFetcher{
		next:  next,
		every: every,
		burst: 1,
		hosts: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch waits for the host's turn and fetches rawURL. Callers asking for a
// URL that is already in flight share its outcome, including a failure
// caused by the first caller's context.
func (p *PoliteFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	v, err, shared := p.flights.Do(rawURL, func() (any, error) {
		if err := p.limiter(rawURL).Wait(ctx); err != nil {
			return nil, err
		}
		return p.next.Fetch(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}
	res, _ := v.(*Result)
	if shared {
		return res.clone(), nil
	}
	return res, nil
}

// limiter returns the limiter of rawURL's host, creating it on first use.
func (p *PoliteFetcher) limiter(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = normalizeHost(u.Host)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.hosts[host]
	if !ok {
		limit := rate.Inf
		if p.every > 0 {
			limit = rate.Every(p.every)
		}
		l = rate.NewLimiter(limit, p.burst)
		p.hosts[host] = l
	}
	return l
}

// clone copies r deep enough that callers sharing a fetch can each modify
// the expression's aliases and the link list.
func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Links = slices.Clone(r.Links)
	if r.Expression != nil {
		expr := *r.Expression
		expr.References = slices.Clone(r.Expression.References)
		expr.Aliases = slices.Clone(r.Expression.Aliases)
		c.Expression = &expr
	}
	return &c
}
