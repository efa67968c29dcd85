package tor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Mode selects how the fetcher reaches the web.
type Mode int

const (
	// ModeDirect uses net/http's default dialer.
	ModeDirect Mode = iota

	// ModeProxy dials through an existing SOCKS5 proxy.
	ModeProxy

	// ModeEmbedded starts a private Tor daemon and dials through it.
	ModeEmbedded
)

// String returns the mode name used in logs.
func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeProxy:
		return "socks5"
	case ModeEmbedded:
		return "embedded-tor"
	default:
		return "unknown"
	}
}

// TransportConfig describes the transport to build.
type TransportConfig struct {
	// ProxyAddress selects ModeProxy when not empty.
	ProxyAddress string

	// Embedded selects ModeEmbedded. It wins over ProxyAddress.
	Embedded bool

	// DialTimeout bounds connection attempts through the proxy.
	DialTimeout time.Duration

	// StartupTimeout bounds the embedded daemon bootstrap.
	StartupTimeout time.Duration
}

// Mode returns the mode the configuration selects.
func (c TransportConfig) Mode() Mode {
	switch {
	case c.Embedded:
		return ModeEmbedded
	case c.ProxyAddress != "":
		return ModeProxy
	default:
		return ModeDirect
	}
}

// NewTransport builds the round tripper selected by cfg. The returned stop
// function releases what was started and must always be called.
// A nil round tripper means net/http's default transport.
func NewTransport(ctx context.Context, cfg TransportConfig, logger *slog.Logger) (http.RoundTripper, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = slog.Default()
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}

	switch cfg.Mode() {
	case ModeEmbedded:
		startup := cfg.StartupTimeout
		if startup <= 0 {
			startup = DefaultStartupTimeout
		}
		logger.Info("starting embedded Tor daemon", "timeout", startup)
		embedded := NewEmbeddedTor(WithStartupTimeout(startup))
		if err := embedded.Start(ctx); err != nil {
			return nil, noop, err
		}
		client, err := embedded.NewClient(dialTimeout)
		if err != nil {
			_ = embedded.Stop()
			return nil, noop, fmt.Errorf("failed to create Tor client: %w", err)
		}
		logger.Info("embedded Tor daemon ready", "socks", embedded.SocksAddr())
		return client.Transport(), embedded.Stop, nil

	case ModeProxy:
		client, err := NewClient(cfg.ProxyAddress, dialTimeout)
		if err != nil {
			return nil, noop, err
		}
		logger.Debug("using SOCKS5 proxy", "address", client.ProxyAddress())
		return client.Transport(), noop, nil

	default:
		return nil, noop, nil
	}
}
