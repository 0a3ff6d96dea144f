// Package tor provides an optional anonymous browsing context for
// phoneprobe.
//
// Probes can be routed through Tor either via an external daemon's SOCKS5
// port or via a daemon embedded with tornago. Session wraps both behind the
// fetch.SessionProvider contract: EnsureReady bootstraps or verifies the
// proxy, and Transport returns an http.RoundTripper for the HTTP fetcher
// that dials through it.
//
// Design decision: Routing is opt-in. Platforms answer Tor exit nodes with
// interstitials more often than residential addresses, so the default path
// is a direct connection and Tor is used when the operator asks for it.
package tor
