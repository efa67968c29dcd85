package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
	"github.com/nao1215/crawlgraph/internal/store"
)

const (
	// DefaultUserAgent identifies the crawler.
	DefaultUserAgent = "crawlgraph/1.0 (+https://github.com/nao1215/crawlgraph)"

	// DefaultMaxBodySize limits how much of a response is read.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024

	// DefaultTimeout bounds a whole request, redirects included.
	DefaultTimeout = 30 * time.Second

	// maxRedirects is the number of redirects followed before the last
	// response is used as is.
	maxRedirects = 10
)

// Result is the outcome of a completed fetch.
type Result struct {
	// Resource carries the final URL (after redirects, without fragment),
	// the error tag and the status code. Its ID is not set.
	Resource model.Resource `json:"resource"`

	// Expression is nil unless the response was a 2xx HTML document.
	Expression *model.Expression `json:"expression,omitempty"`

	// Links are the references discovered on the page.
	Links []string `json:"links,omitempty"`
}

// Redirected reports whether the final URL differs from requested.
func (r *Result) Redirected(requested string) bool {
	return r.Resource.URL != store.StripFragment(requested)
}

// Fetcher retrieves one URL. A nil error comes with a non-nil Result.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// HTTPFetcher fetches pages over HTTP.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	filter      Filter
	sites       map[string]Site
	logger      *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithTransport sets the round tripper, for example a SOCKS5 transport.
// A nil transport keeps net/http's default.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *HTTPFetcher) {
		if rt != nil {
			f.client.Transport = rt
		}
	}
}

// WithTimeout bounds each request, redirects included.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		f.client.Timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize limits the bytes read from a response.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithFilter drops discovered references that the filter rejects.
func WithFilter(filter Filter) Option {
	return func(f *HTTPFetcher) {
		f.filter = filter
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates a fetcher with sensible defaults.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL. Transport failures are returned as errors;
// HTTP-level failures are reported in the Result.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	requested := store.StripFragment(rawURL)
	if !store.IsValidURL(requested) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requested, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	f.applySite(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", requested, err)
	}
	defer resp.Body.Close()

	final := finalURL(resp, requested)
	result := &Result{
		Resource: model.Resource{
			URL:        final,
			HTTPStatus: resp.StatusCode,
		},
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Resource.OtherError = model.OtherErrorHTTPStatus
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBodySize))
		return result, nil
	}
	if !isHTML(resp.Header.Get("Content-Type")) {
		result.Resource.OtherError = model.OtherErrorNotHTML
		return result, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", final, err)
	}

	expr, err := Extract(final, body)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", final, err)
	}
	if final != requested {
		expr.AddAlias(requested)
	}
	expr.References = f.filter.Apply(expr.References)

	result.Expression = expr
	result.Links = expr.References

	f.logger.Debug("fetched page",
		"url", final,
		"status", resp.StatusCode,
		"references", len(expr.References),
	)
	return result, nil
}

// finalURL returns the URL of the last request, without fragment.
func finalURL(resp *http.Response, requested string) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return requested
	}
	u := *resp.Request.URL
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// isHTML reports whether a Content-Type denotes an HTML document.
// A missing Content-Type is accepted.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// resolveReference resolves href against base and keeps absolute http(s)
// URLs only.
func resolveReference(base *url.URL, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Host == "" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}
