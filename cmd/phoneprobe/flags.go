package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/phoneprobe/internal/config"
	plog "github.com/nao1215/phoneprobe/internal/log"
)

// addProbeFlags registers the flags shared by every command that probes a
// platform.
func addProbeFlags(cmd *cobra.Command) {
	// Tor connection flags
	cmd.Flags().Bool("tor", false,
		"Route HTTP probes through an embedded Tor daemon")
	cmd.Flags().StringP("external-tor", "e", "",
		"Route HTTP probes through a running Tor SOCKS5 proxy (default address "+config.DefaultTorProxyAddress+")")
	cmd.Flags().Lookup("external-tor").NoOptDefVal = config.DefaultTorProxyAddress
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Probe behavior flags
	cmd.Flags().DurationP("timeout", "t", 0,
		"Page-load timeout for every platform (default: per platform)")
	cmd.Flags().BoolP("interactive", "i", false,
		"Ask what to do after a blocked page instead of cooling down and retrying")
	cmd.Flags().Bool("headless", true,
		"Run the browser without a window (disable to log in to WhatsApp Web)")
	cmd.Flags().String("profile-dir", "",
		"Browser profile directory (default: XDG data directory)")

	// Report flags
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --table)")
	cmd.Flags().Bool("table", false,
		"Output plain-text tables (mutually exclusive with --markdown)")
	cmd.Flags().String("xlsx", "",
		"Also write the records to an Excel workbook at the given path")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Telemetry flags
	cmd.Flags().String("otlp-endpoint", "",
		"Export traces and metrics to this OTLP/HTTP base URL")
	cmd.Flags().StringToString("otlp-header", nil,
		"Header sent with OTLP exports (repeatable, key=value)")
}

// buildProbeConfig creates a Config from the shared probe flags and the
// global flags.
func buildProbeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	var err error

	cfg.Verbose = getGlobalBool(cmd, "verbose")
	cfg.JSONLogs = getGlobalBool(cmd, "json-logs")
	cfg.ConfigFilePath = getGlobalString(cmd, "config")

	if cfg.UseTor, err = cmd.Flags().GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.ExternalTorAddress, err = cmd.Flags().GetString("external-tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = cmd.Flags().GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.Interactive, err = cmd.Flags().GetBool("interactive"); err != nil {
		return nil, err
	}
	if cfg.Headless, err = cmd.Flags().GetBool("headless"); err != nil {
		return nil, err
	}
	profileDir, err := cmd.Flags().GetString("profile-dir")
	if err != nil {
		return nil, err
	}
	if profileDir != "" {
		cfg.BrowserProfileDir = profileDir
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.TableReport, err = cmd.Flags().GetBool("table"); err != nil {
		return nil, err
	}
	if cfg.XLSXFile, err = cmd.Flags().GetString("xlsx"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.OTLPEndpoint, err = cmd.Flags().GetString("otlp-endpoint"); err != nil {
		return nil, err
	}
	if cfg.OTLPHeaders, err = cmd.Flags().GetStringToString("otlp-header"); err != nil {
		return nil, err
	}

	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile loads the platform overrides into cfg.File.
// If the user explicitly specified a config file path, a missing file is
// an error. Otherwise the built-in platforms are used as they are.
func loadConfigFile(cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
		}
		return nil
	}

	cf, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	cfg.File = cf
	return nil
}

// getGlobalBool retrieves a persistent root flag. Commands built on their
// own, as in tests, fall back to false.
func getGlobalBool(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetBool(name)
		if err != nil {
			return false
		}
	}
	return v
}

// getGlobalString retrieves a persistent root flag.
func getGlobalString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		v, err = cmd.Root().PersistentFlags().GetString(name)
		if err != nil {
			return ""
		}
	}
	return v
}

// setupLogger creates the sanitizing logger of the run. Logs always go to
// stderr so that stdout carries the report only.
func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.JSONLogs {
		return plog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return plog.NewSecureLogger(w, cfg.Verbose)
}

// signalContext returns a context cancelled by SIGINT or SIGTERM.
// A cancelled search stops after the current page and reports what it has.
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing current probe...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
