package fetch

import "errors"

var (
	// ErrNoExpression is returned by ExpressionSource when the page was
	// fetched but yielded no expression (error status or non-HTML body).
	ErrNoExpression = errors.New("page has no expression")

	// ErrUnsupportedScheme is returned for URLs that are not http(s).
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)
