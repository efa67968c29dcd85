// Package log builds the slog loggers used across crawlgraph.
//
// Every logger is wrapped in a SecureHandler, which masks values that must not
// end up in shared log files:
//   - attributes whose key names a credential (cookie, authorization,
//     password, redis_password, token and similar)
//   - whole values that look like bearer or basic credentials, JWTs or
//     PEM private keys
//   - passwords embedded in DSNs and URLs, which are replaced in place so
//     "postgres://crawl:pw@db/crawl" is logged as
//     "postgres://crawl:***REDACTED***@db/crawl"
//
// Errors passed as attributes are scrubbed the same way, since database
// drivers tend to include the connection string in their messages.
//
// Verbose loggers log at Debug, others at Warn:
//
//	logger := log.NewLogger(os.Stderr, log.FormatJSON, verbose)
//	logger.Warn("store unavailable", "dsn", cfg.DSN, "error", err)
package log
