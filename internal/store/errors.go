package store

import "errors"

var (
	// ErrResourceNotFound is returned when an operation targets a resource
	// id that does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrExpressionNotFound is returned when updating an expression that
	// was never created.
	ErrExpressionNotFound = errors.New("expression not found")

	// ErrInvalidURL is returned when a URL cannot become a resource.
	ErrInvalidURL = errors.New("invalid resource URL")
)
