package fetch

import (
	"net/url"
	"path"
	"strings"
)

// Filter restricts which discovered references are kept.
// The zero value keeps everything.
type Filter struct {
	// Ignore drops references whose path matches one of the patterns.
	Ignore []string

	// Follow, when set, keeps only references whose path matches one of
	// the patterns.
	Follow []string
}

// Apply returns the references the filter allows, in order.
func (f Filter) Apply(refs []string) []string {
	if len(f.Ignore) == 0 && len(f.Follow) == 0 {
		return refs
	}
	kept := make([]string, 0, len(refs))
	for _, r := range refs {
		if f.Allows(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

// Allows reports whether a single reference passes the filter.
func (f Filter) Allows(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range f.Ignore {
		if matchPattern(pattern, p) {
			return false
		}
	}
	if len(f.Follow) == 0 {
		return true
	}
	for _, pattern := range f.Follow {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern matches a URL path against a glob.
//   - "/admin/*" matches "/admin" and anything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use path.Match
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	matched, err := path.Match(pattern, p)
	return err == nil && matched
}
