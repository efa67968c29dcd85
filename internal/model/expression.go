package model

import "time"

// Expression is the content extracted from a fetched page.
// It is tied to one canonical resource through Resource.ExpressionID.
//
// Design decision: CreatedAt doubles as the "already persisted" marker.
// A zero CreatedAt means the expression has never been written, so the
// frontier creates it; otherwise the frontier updates it.
type Expression struct {
	// ID is the store-assigned identifier, 0 before creation.
	ID int64 `json:"id"`

	// URL is the URL the expression was extracted from (after redirects).
	URL string `json:"url"`

	// Title comes from <title>, or the first <h1> when the title is empty.
	Title string `json:"title"`

	// FullHTML is the raw document.
	FullHTML string `json:"full_html,omitempty"`

	// MainHTML is the body stripped of scripts, styles and navigation.
	MainHTML string `json:"main_html,omitempty"`

	// MainText is the textual content of MainHTML.
	MainText string `json:"main_text,omitempty"`

	// MetaDescription is the content of <meta name="description">.
	MetaDescription string `json:"meta_description,omitempty"`

	// Meta holds every named <meta> tag.
	Meta map[string]string `json:"meta,omitempty"`

	// References are the outbound http(s) links, resolved and de-duplicated.
	References []string `json:"references,omitempty"`

	// Aliases are URLs known to be equivalent to URL.
	Aliases []string `json:"aliases,omitempty"`

	// CreatedAt is set by the store when the expression is persisted.
	CreatedAt time.Time `json:"created_at"`

	// SkipSave marks an expression that must not be written back,
	// typically because it was read unchanged from the store.
	SkipSave bool `json:"-"`
}

// Persisted reports whether the expression has been written to a store.
func (e *Expression) Persisted() bool {
	return !e.CreatedAt.IsZero()
}

// AddAlias records an equivalent URL unless it is already known.
func (e *Expression) AddAlias(u string) {
	if u == "" || u == e.URL {
		return
	}
	for _, a := range e.Aliases {
		if a == u {
			return
		}
	}
	e.Aliases = append(e.Aliases, u)
}
