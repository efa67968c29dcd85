package tor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// Client dials through a SOCKS5 proxy.
type Client struct {
	// proxyAddress is the SOCKS5 proxy address in "host:port" format.
	proxyAddress string

	// dialer is created once and shared by every connection.
	dialer proxy.Dialer

	// dialTimeout bounds each connection attempt.
	dialTimeout time.Duration
}

// NewClient creates a client for the SOCKS5 proxy at proxyAddress.
// The proxy is not contacted until the first request.
func NewClient(proxyAddress string, dialTimeout time.Duration) (*Client, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tor's SOCKS port does not require authentication.
	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, &net.Dialer{Timeout: dialTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &Client{
		proxyAddress: proxyAddress,
		dialer:       dialer,
		dialTimeout:  dialTimeout,
	}, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// DialContext opens a connection through the proxy.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}
	return c.dialer.Dial(network, address)
}

// Transport returns an http.Transport that routes every connection through
// the proxy. Each connection uses a proxy circuit, so the idle pool is kept
// smaller than net/http's defaults.
func (c *Client) Transport() *http.Transport {
	return &http.Transport{
		DialContext:         c.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: c.dialTimeout,
		// Compressed sizes leak content over anonymised links.
		DisableCompression: true,
	}
}
