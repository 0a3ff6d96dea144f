package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "phoneprobe"

	// DefaultPlatform is searched when --platform is not given.
	DefaultPlatform = "instagram"

	// DefaultBatchSize of 1 runs batch sessions one after another. Parallel
	// sessions against the same platform multiply the request rate it sees.
	DefaultBatchSize = 1

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// DefaultMaxBodySize limits the HTTP response body read per probe.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultDBFile is the history database file name inside DBDir.
	DefaultDBFile = "history.db"
)

// Config holds all configuration options of one phoneprobe run.
// It is populated from CLI flags and the config file and passed down
// explicitly; nothing reads it from global state.
//
// Design decision: A single flat struct, as the number of options is small.
// Platform-specific settings live in File and are merged onto the platform
// descriptors, not copied here.
type Config struct {
	// Platform is the platform to search.
	Platform string

	// Targets are the phone numbers (search) or usernames (check).
	Targets []string

	// Verbose enables debug logging.
	Verbose bool

	// JSONLogs switches log output to JSON lines.
	JSONLogs bool

	// BatchSize is the number of concurrent sessions in batch mode.
	BatchSize int

	// ConfigFilePath is the path to the configuration file.
	// If empty, .phoneprobe is searched in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// File holds the loaded configuration file, if any.
	File *File

	// MarkdownReport selects the Markdown report.
	MarkdownReport bool

	// TableReport selects the plain-text table report.
	TableReport bool

	// XLSXFile, when set, additionally writes the records as a spreadsheet.
	XLSXFile string

	// ReportFile is the output file path of the report. Empty means stdout.
	ReportFile string

	// UseTor routes HTTP probes through an embedded Tor daemon.
	UseTor bool

	// ExternalTorAddress routes HTTP probes through an already running Tor
	// SOCKS5 proxy instead of the embedded daemon.
	ExternalTorAddress string

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Timeout overrides the page-load timeout of every platform when
	// positive.
	Timeout time.Duration

	// MaxBodySize is the maximum HTTP response body size in bytes.
	MaxBodySize int64

	// Headless runs the browser without a window. Logging in to WhatsApp
	// Web the first time needs a visible window.
	Headless bool

	// BrowserProfileDir persists browser cookies and local storage between
	// runs, which keeps logged-in sessions.
	BrowserProfileDir string

	// Interactive asks on the terminal what to do after a Blocked page.
	Interactive bool

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB stores finished sessions in the history database.
	SaveToDB bool

	// OTLPEndpoint, when set, exports traces and metrics over OTLP/HTTP.
	OTLPEndpoint string

	// OTLPHeaders are sent with every OTLP export request.
	OTLPHeaders map[string]string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Platform:          DefaultPlatform,
		BatchSize:         DefaultBatchSize,
		TorStartupTimeout: DefaultTorStartupTimeout,
		MaxBodySize:       DefaultMaxBodySize,
		Headless:          true,
		BrowserProfileDir: filepath.Join(XDGDataDir(), "browser"),
		DBDir:             XDGDataDir(),
		SaveToDB:          true,
	}
}

// XDGDataDir returns the XDG data directory for phoneprobe.
// On Linux: ~/.local/share/phoneprobe
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for phoneprobe.
// On Linux: ~/.config/phoneprobe
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DBPath returns the history database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DBDir, DefaultDBFile)
}

// TorEnabled reports whether probes are routed through Tor.
func (c *Config) TorEnabled() bool {
	return c.UseTor || c.ExternalTorAddress != ""
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Platform == "" {
		return ErrNoPlatform
	}

	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.MarkdownReport && c.TableReport {
		return ErrConflictingReportFormats
	}

	if c.UseTor && c.ExternalTorAddress != "" {
		return ErrConflictingTorOptions
	}

	if c.Timeout < 0 || c.TorStartupTimeout < 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.SaveToDB && c.DBDir == "" {
		return ErrNoDBDir
	}

	return nil
}
