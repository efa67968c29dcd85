package model

// OtherError tags a resource whose fetch completed without producing an
// expression. The empty value means "no error".
type OtherError string

const (
	// OtherErrorNone means the resource carries no error.
	OtherErrorNone OtherError = ""

	// OtherErrorTimeout is written by the worker pool when a task exceeds
	// its deadline before the fetch settles.
	OtherErrorTimeout OtherError = "timeout"

	// OtherErrorHTTPStatus is set when the final response is not 2xx.
	// The status code itself is stored in Resource.HTTPStatus.
	OtherErrorHTTPStatus OtherError = "http_status"

	// OtherErrorNotHTML is set when the response is not an HTML document.
	OtherErrorNotHTML OtherError = "not_html"
)

// Resource is a URL-identified node of the crawl.
//
// A resource with a non-nil AliasOf is never canonical. Alias chains are
// stored as written and only resolved while assembling a graph.
type Resource struct {
	// ID is the store-assigned identifier.
	ID int64 `json:"id"`

	// URL is the absolute URL of the resource, without fragment.
	URL string `json:"url"`

	// AliasOf references the canonical resource when this one is an alias
	// (for example the source of a redirect).
	AliasOf *int64 `json:"alias_of"`

	// ExpressionID references the extracted content, if any.
	ExpressionID *int64 `json:"expression_id"`

	// OtherError is the error tag of the last completed fetch.
	OtherError OtherError `json:"other_error,omitempty"`

	// HTTPStatus is the status code of the last completed fetch, 0 if unknown.
	HTTPStatus int `json:"http_status,omitempty"`
}

// IsAlias reports whether the resource points to a canonical resource.
func (r Resource) IsAlias() bool {
	return r.AliasOf != nil
}

// IsTerminal reports whether a fetch already completed for this resource,
// either with an expression or with an error.
func (r Resource) IsTerminal() bool {
	return r.ExpressionID != nil || r.OtherError != OtherErrorNone
}

// ResourceUpdate describes a partial update of a resource.
// Nil fields are left untouched.
type ResourceUpdate struct {
	// OtherError replaces the error tag. A pointer to OtherErrorNone clears it.
	OtherError *OtherError

	// HTTPStatus replaces the recorded status code.
	HTTPStatus *int
}

// ClearError returns an update that removes any previous error tag.
func ClearError() ResourceUpdate {
	none := OtherErrorNone
	return ResourceUpdate{OtherError: &none}
}

// WithError returns an update that sets the given error tag.
func WithError(tag OtherError) ResourceUpdate {
	return ResourceUpdate{OtherError: &tag}
}
