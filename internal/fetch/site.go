package fetch

import (
	"net/http"
	"strings"
)

// Site holds request settings for one host.
type Site struct {
	// Cookie is sent as the Cookie header, "name=value; name2=value2".
	Cookie string

	// Headers are added to every request to the host.
	Headers map[string]string
}

// WithSites sets per-host request settings. Keys are host names, with or
// without port. A "www." prefix is not significant.
func WithSites(sites map[string]Site) Option {
	return func(f *HTTPFetcher) {
		f.sites = make(map[string]Site, len(sites))
		for host, s := range sites {
			f.sites[normalizeHost(host)] = s
		}
	}
}

// applySite sets the headers configured for the request's host.
func (f *HTTPFetcher) applySite(req *http.Request) {
	if len(f.sites) == 0 {
		return
	}
	s, ok := f.sites[normalizeHost(req.URL.Host)]
	if !ok {
		s, ok = f.sites[normalizeHost(req.URL.Hostname())]
	}
	if !ok {
		return
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
	if s.Cookie != "" {
		req.Header.Set("Cookie", s.Cookie)
	}
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}
