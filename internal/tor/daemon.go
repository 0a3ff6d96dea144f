package tor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout bounds the bootstrap of the embedded daemon.
const DefaultStartupTimeout = 3 * time.Minute

// Daemon manages a Tor process launched with tornago, so no system Tor
// installation has to be configured.
//
// Bootstrapping takes one to three minutes: the daemon downloads directory
// information and builds its first circuits before the SOCKS port is
// usable.
type Daemon struct {
	process *tornago.TorProcess

	socksAddr   string
	controlAddr string
}

// NewDaemon creates a Daemon. Call Start to launch the process.
func NewDaemon() *Daemon {
	return &Daemon{}
}

// Start launches the daemon and blocks until it bootstrapped or timeout
// elapsed. Ports are picked by the OS.
func (d *Daemon) Start(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStartupTimeout
	}

	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	if err := ctx.Err(); err != nil {
		_ = process.Stop() //nolint:errcheck // best effort cleanup
		return err
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	d.controlAddr = process.ControlAddr()
	return nil
}

// Stop shuts the daemon down. It is safe to call on a stopped daemon.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	d.controlAddr = ""
	return err
}

// SocksAddr returns the SOCKS5 address, empty when not running.
func (d *Daemon) SocksAddr() string {
	return d.socksAddr
}

// ControlAddr returns the control port address, empty when not running.
func (d *Daemon) ControlAddr() string {
	return d.controlAddr
}

// IsRunning reports whether the daemon is running.
func (d *Daemon) IsRunning() bool {
	return d.process != nil
}

// NewClient returns a Client for the running daemon.
func (d *Daemon) NewClient(timeout time.Duration) (*Client, error) {
	if !d.IsRunning() {
		return nil, ErrDaemonNotRunning
	}
	return NewClient(d.socksAddr, timeout)
}

// SharedDaemon launches one embedded daemon on first use and hands its
// SOCKS address to every session of a run. Sessions never stop it; its
// owner calls Stop when the run ends.
type SharedDaemon struct {
	mu     sync.Mutex
	daemon *Daemon
}

// NewSharedDaemon creates a SharedDaemon. Nothing is launched until Addr.
func NewSharedDaemon() *SharedDaemon {
	return &SharedDaemon{}
}

// Addr returns the SOCKS address, launching the daemon if it is not
// running. A failed launch is retried by the next call.
func (s *SharedDaemon) Addr(ctx context.Context, timeout time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.daemon != nil && s.daemon.IsRunning() {
		return s.daemon.SocksAddr(), nil
	}
	d := NewDaemon()
	if err := d.Start(ctx, timeout); err != nil {
		return "", err
	}
	s.daemon = d
	return d.SocksAddr(), nil
}

// Stop shuts the daemon down, if it was launched.
func (s *SharedDaemon) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.daemon == nil {
		return nil
	}
	err := s.daemon.Stop()
	s.daemon = nil
	return err
}
