package tor

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrNotRunning is returned when the embedded daemon is used before Start.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")
)
