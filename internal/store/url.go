package store

import (
	"net/url"
	"strings"
)

// StripFragment removes the #fragment part of a URL.
// Unparsable input is returned cut at the first '#'.
func StripFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// IsValidURL reports whether raw is an absolute http(s) URL with a host.
// This is the validity rule of FindValidResourcesByIDs and
// FindValidResourcesByURLs.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
