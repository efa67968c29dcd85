package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrUnknownDriver is returned when the store driver is not supported.
	ErrUnknownDriver = errors.New("unknown database driver: use sqlite or postgres")

	// ErrMissingDSN is returned when PostgreSQL is selected without a
	// connection string.
	ErrMissingDSN = errors.New("missing DSN: the postgres driver needs a connection string")

	// ErrConflictingTransports is returned when both a SOCKS5 proxy and the
	// embedded Tor daemon are requested.
	ErrConflictingTransports = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidHostDelay is returned when the per-host delay is negative or
	// the burst is below one.
	ErrInvalidHostDelay = errors.New("invalid host delay: delay must be non-negative and burst at least 1")

	// ErrInvalidCacheTTL is returned when the cache TTL is negative.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL: must be non-negative")

	// ErrInvalidConcurrency is returned when the frontier concurrency is not
	// positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidDepth is returned when a depth limit is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxTasks is returned when the worker task limit is not
	// positive.
	ErrInvalidMaxTasks = errors.New("invalid max tasks: must be positive")

	// ErrInvalidWorkerDelay is returned when the pick interval or the task
	// deadline is not positive, or the stale claim age is negative.
	ErrInvalidWorkerDelay = errors.New("invalid worker delay: interval and max delay must be positive")

	// ErrStaleClaimAgeTooShort is returned when the stale claim age could
	// release the claim of a task that is still running.
	ErrStaleClaimAgeTooShort = errors.New("stale claim age too short: must be at least three times the max delay plus one minute")

	// ErrInvalidTerritoire is returned when a territoire has no valid id.
	ErrInvalidTerritoire = errors.New("invalid territoire: id must be positive")

	// ErrDuplicateTerritoire is returned when two territoires share an id.
	ErrDuplicateTerritoire = errors.New("duplicate territoire id")

	// ErrUnknownTerritoire is returned when a territoire reference is
	// neither a configured name nor a positive id.
	ErrUnknownTerritoire = errors.New("unknown territoire: use a configured name or a numeric id")
)
