package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/phoneprobe/internal/config"
	"github.com/nao1215/phoneprobe/internal/model"
	"github.com/nao1215/phoneprobe/internal/report"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <platform> <username>...",
		Short: "Probe given usernames on a platform",
		Long: `Check probes the given usernames directly instead of deriving them from a
phone number. Classification, rate limiting and extraction are the same as
for search. Checks are not stored in the history database.

Examples:
  # Check two Instagram usernames
  phoneprobe check instagram eu87654321 87654321

  # Check an X handle and print tables
  phoneprobe check --table x user87654321`,
		Args: cobra.MinimumNArgs(2),
		RunE: runCheckCmd,
	}

	addProbeFlags(cmd)

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildCheckConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	return runCheck(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.InOrStdin(), logger)
}

// buildCheckConfig creates a Config from the check arguments and flags.
func buildCheckConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildProbeConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg.Platform = args[0]
	cfg.Targets = args[1:]
	cfg.SaveToDB = false
	return cfg, nil
}

// runCheck probes the usernames of cfg.Targets in one session.
func runCheck(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, stdin io.Reader, logger *slog.Logger) error {
	registry, err := cfg.File.Registry()
	if err != nil {
		return err
	}
	desc, err := registry.Get(cfg.Platform)
	if err != nil {
		return err
	}

	shutdownTelemetry := setupTelemetry(ctx, cfg, logger)
	defer shutdownTelemetry()

	daemon := openTor(cfg)
	defer closeTor(daemon, logger)

	var p *prompter
	if cfg.Interactive {
		p = newPrompter(stdin, stderr)
	}

	pl := newSessionFactory(cfg, desc, daemon, p, logger).check(cfg.Targets)
	session := pl.NewSession("")

	// Step errors are recorded on the session; the report shows them.
	_ = pl.Execute(ctx, session) //nolint:errcheck // reflected by sessionsError below

	fmt.Fprintf(stderr, "%s: %s (%s)\n", desc.Name, searchStatus(session), session.Duration().Round(time.Millisecond))

	if err := writeReport(cfg, report.New(false, session), stdout); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return errInterrupted
	}
	return sessionsError([]*model.SearchSession{session})
}
