// Package tor provides the optional proxied transports of the fetcher.
//
// A crawl normally talks to the web directly. With a SOCKS5 proxy address
// (for example a local Tor daemon on 127.0.0.1:9050) every request goes
// through that proxy. With the embedded mode, a private Tor daemon is started
// through tornago and its SOCKS port is used.
//
// Design decision: The package only builds http.RoundTrippers. Redirect
// handling, user agent and body limits stay in internal/fetch so that every
// transport behaves the same.
package tor
