package tor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nao1215/phoneprobe/internal/model"
)

// Session routes a search session through Tor. It implements
// fetch.SessionProvider.
type Session struct {
	// external is the SOCKS5 address of a running daemon. Empty means the
	// embedded daemon is launched.
	external string
	// shared launches a daemon owned by someone else. It is used when
	// external is empty.
	shared  *SharedDaemon
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	daemon *Daemon
	client *Client
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithExternalProxy uses the daemon listening at addr instead of launching
// one.
func WithExternalProxy(addr string) SessionOption {
	return func(s *Session) {
		s.external = addr
	}
}

// WithSharedDaemon routes the session through a daemon shared with other
// sessions. Close leaves it running.
func WithSharedDaemon(d *SharedDaemon) SessionOption {
	return func(s *Session) {
		s.shared = d
	}
}

// WithRequestTimeout sets the response header timeout of the transport.
func WithRequestTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession creates a Session. Nothing is started until EnsureReady.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// EnsureReady launches the embedded daemon, or waits for the shared one,
// and checks the proxy.
// Failures are reported as *model.SessionUnavailableError.
func (s *Session) EnsureReady(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	addr := s.external
	switch {
	case addr != "":
	case s.shared != nil:
		s.logger.Info("waiting for shared Tor daemon", "timeout", timeout)
		shared, err := s.shared.Addr(ctx, timeout)
		if err != nil {
			return &model.SessionUnavailableError{Provider: "tor", Timeout: timeout, Err: err}
		}
		addr = shared
	default:
		d := NewDaemon()
		s.logger.Info("starting embedded Tor daemon", "timeout", timeout)
		if err := d.Start(ctx, timeout); err != nil {
			return &model.SessionUnavailableError{Provider: "tor", Timeout: timeout, Err: err}
		}
		s.daemon = d
		addr = d.SocksAddr()
	}

	client, err := NewClient(addr, s.timeout)
	if err != nil {
		return &model.SessionUnavailableError{Provider: "tor", Err: err}
	}
	if status := client.CheckConnection(ctx); status != ProxyStatusOK {
		return &model.SessionUnavailableError{
			Provider: "tor",
			Err:      fmt.Errorf("proxy %s: %w", addr, status.Error()),
		}
	}

	s.client = client
	s.logger.Debug("Tor proxy ready", "proxy", addr)
	return nil
}

// Close stops the daemon launched by this session, if any. A shared
// daemon keeps running.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client = nil
	if s.daemon == nil {
		return nil
	}
	err := s.daemon.Stop()
	s.daemon = nil
	return err
}

// Transport returns a round tripper for the HTTP fetcher. It may be built
// before EnsureReady; connections dialed before the session is ready fail
// with ErrNotReady.
func (s *Session) Transport() http.RoundTripper {
	return newTransport(s.dial, s.timeout)
}

func (s *Session) dial(ctx context.Context, network, address string) (net.Conn, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return nil, ErrNotReady
	}
	return client.DialContext(ctx, network, address)
}
