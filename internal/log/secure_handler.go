package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue is the string used to replace sensitive values.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose values are always masked. Site
// cookies and headers come from the config file and the store DSN may
// carry a password, so those keys are listed explicitly.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"proxy-authorization": true,
	"x-api-key":           true,
	"x-auth-token":        true,
	"password":            true,
	"passwd":              true,
	"redis_password":      true,
	"secret":              true,
	"token":               true,
	"api_key":             true,
	"apikey":              true,
	"access_token":        true,
	"refresh_token":       true,
	"private_key":         true,
	"session_id":          true,
	"sessionid":           true,
	"jsessionid":          true,
	"credentials":         true,
}

// sensitiveKeywords are matched as substrings of lowercased keys. The bare
// word "key" is left out because it masks cache_key, primary_key and the like.
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "auth", "credential", "private",
}

// sensitivePatterns mask a whole string value regardless of its key.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),
}

// inlineSecrets scrub credentials embedded in otherwise useful values, such
// as "postgres://crawl:pw@db/crawl" or "host=db password=pw". Only the secret
// part is replaced so the rest of the value stays readable.
var inlineSecrets = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{
		pattern: regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://[^:/@\s]*:)[^@\s/]+@`),
		repl:    "${1}" + MaskValue + "@",
	},
	{
		pattern: regexp.MustCompile(`(?i)\b(password|passwd)=('[^']*'|\S+)`),
		repl:    "${1}=" + MaskValue,
	},
}

// SecureHandler wraps an slog.Handler and sanitizes attributes before they
// reach it. Store DSNs, Redis passwords, proxy URLs and per-site cookies all
// pass through the logger at startup and on failures.
//
// Design decision: sanitizing happens in a handler rather than at call sites
// so that loggers handed to dependencies (tornago, the worker pool, the
// frontier) are covered without any cooperation from them.
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler falls back to
// slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's message and attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, scrub(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs sanitizes attrs before attaching them to the wrapped handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(sanitized)}
}

// WithGroup returns a handler that nests subsequent attributes under name.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	}

	key := strings.ToLower(a.Key)
	if sensitiveKeys[key] || containsSensitiveKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if isSensitiveValue(s) {
			return slog.String(a.Key, MaskValue)
		}
		if cleaned := scrub(s); cleaned != s {
			return slog.String(a.Key, cleaned)
		}
	case slog.KindAny:
		// Driver errors are known to echo the connection string back.
		if err, ok := a.Value.Any().(error); ok && err != nil {
			msg := err.Error()
			if cleaned := scrub(msg); cleaned != msg {
				return slog.String(a.Key, cleaned)
			}
		}
	default:
	}
	return a
}

func containsSensitiveKeyword(key string) bool {
	for _, kw := range sensitiveKeywords {
		if strings.Contains(key, kw) {
			return true
		}
	}
	return false
}

func isSensitiveValue(value string) bool {
	for _, p := range sensitivePatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// scrub replaces inline credentials in s.
func scrub(s string) string {
	for _, in := range inlineSecrets {
		s = in.pattern.ReplaceAllString(s, in.repl)
	}
	return s
}

// Format selects the output encoding of a logger.
type Format string

const (
	// FormatText writes logfmt-style key=value lines.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown log format")

// ParseFormat maps a flag value to a Format. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// NewLogger returns a sanitizing logger writing to w in the given format.
// Verbose lowers the level from Warn to Debug.
func NewLogger(w io.Writer, format Format, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewSecureHandler(h))
}

// NewSecureLogger returns a sanitizing text logger.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, FormatText, verbose)
}

// NewSecureJSONLogger returns a sanitizing JSON logger.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return NewLogger(w, FormatJSON, verbose)
}
