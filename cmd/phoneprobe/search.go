package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/phoneprobe/internal/config"
	"github.com/nao1215/phoneprobe/internal/database"
	"github.com/nao1215/phoneprobe/internal/model"
	"github.com/nao1215/phoneprobe/internal/pipeline"
	"github.com/nao1215/phoneprobe/internal/platform"
	"github.com/nao1215/phoneprobe/internal/report"
)

// errInterrupted is returned after a search cancelled by a signal has
// written its partial report.
var errInterrupted = errors.New("search interrupted")

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [phone-number]",
		Short: "Search a platform for profiles tied to a phone number",
		Long: `Search derives candidate usernames from a phone number and probes the
platform's public profile page of each one, in order, with randomized
delays between requests.

Found profiles are extracted into records (name, bio, follower counts, ...).
Blocked pages trigger a cooldown, and a retry when maxRetries allows it,
or a question with --interactive. Finished searches are stored in the
history database with the number hashed.

Exit status is 1 when the number is invalid, when the platform session
(browser or Tor) never becomes ready, and when the search is interrupted
by a signal. An interrupted search still prints the results gathered so
far. Blocked pages and network errors on single candidates do not change
the exit status.

Examples:
  # Search Instagram (the default platform)
  phoneprobe search "+55 11 98765-4321"

  # Search TikTok and print tables instead of JSON
  phoneprobe search -p tiktok --table 5511987654321

  # Check whether the number has a WhatsApp account (logs in on first run)
  phoneprobe search -p whatsapp --headless=false 5511987654321

  # Search many numbers, two at a time, and write a workbook
  phoneprobe search -l numbers.txt -b 2 --xlsx results.xlsx

  # Route probes through a running Tor proxy
  phoneprobe search -e -p x 5511987654321`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSearchCmd,
	}

	cmd.Flags().StringP("platform", "p", config.DefaultPlatform,
		"Platform to search (see 'phoneprobe platforms')")
	cmd.Flags().StringP("list", "l", "",
		"Read phone numbers from a file, one per line (# starts a comment)")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent searches in list mode")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not store the search in the history database")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")

	addProbeFlags(cmd)

	return cmd
}

// runSearchCmd executes the search command.
func runSearchCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildSearchConfig(cmd, args)
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

	return runSearch(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), cmd.InOrStdin(), logger)
}

// buildSearchConfig creates a Config from the search flags.
func buildSearchConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildProbeConfig(cmd)
	if err != nil {
		return nil, err
	}

	if cfg.Platform, err = cmd.Flags().GetString("platform"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	listFile, err := cmd.Flags().GetString("list")
	if err != nil {
		return nil, err
	}
	switch {
	case listFile != "" && len(args) > 0:
		return nil, errors.New("give either a phone number or --list, not both")
	case listFile != "":
		cfg.Targets, err = readTargets(listFile)
		if err != nil {
			return nil, err
		}
	default:
		cfg.Targets = args
	}

	return cfg, nil
}

// readTargets reads one phone number per line. Blank lines and lines
// starting with # are skipped.
func readTargets(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided list path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open number list: %w", err)
	}
	defer f.Close()
	return parseTargets(f)
}

// parseTargets reads one phone number per line from r.
func parseTargets(r io.Reader) ([]string, error) {
	var targets []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read number list: %w", err)
	}
	return targets, nil
}

// runSearch executes the search of every target and writes the report.
func runSearch(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, stdin io.Reader, logger *slog.Logger) error {
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

	var db *database.HistoryDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("history database opened", "path", db.Path())
	}

	daemon := openTor(cfg)
	defer closeTor(daemon, logger)

	var p *prompter
	if cfg.Interactive {
		p = newPrompter(stdin, stderr)
	}
	factory := newSessionFactory(cfg, desc, daemon, p, logger)

	// The browser profile directory is locked by the running browser, so
	// browser platforms never run sessions in parallel.
	concurrency := cfg.BatchSize
	if desc.Fetcher == platform.FetcherBrowser && concurrency > 1 {
		logger.Warn("browser platforms search one number at a time", "platform", desc.Name, "batch", concurrency)
		concurrency = 1
	}

	runner := pipeline.NewBatchRunner(desc.Name, factory.search,
		pipeline.WithConcurrency(concurrency),
		pipeline.WithBatchLogger(logger),
	)

	total := len(cfg.Targets)
	startTime := time.Now()
	var mu sync.Mutex
	sessions, runErr := runner.RunWithCallback(ctx, cfg.Targets, func(s *model.SearchSession, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(stderr, "[%d/%d] %s %s: %s (%s)\n", index+1, total, desc.Name,
			s.Target.Masked(), searchStatus(s), s.Duration().Round(time.Millisecond))
		saveSession(ctx, db, s, logger)
	})
	if total > 1 {
		fmt.Fprintf(stderr, "Searched %d of %d numbers in %s\n", len(sessions), total, time.Since(startTime).Round(time.Millisecond))
	}

	if err := writeReport(cfg, report.New(desc.SingleTarget, sessions...), stdout); err != nil {
		return err
	}

	if runErr != nil || ctx.Err() != nil {
		return errInterrupted
	}
	return sessionsError(sessions)
}

// searchStatus is the one-line progress status of a finished session.
func searchStatus(s *model.SearchSession) string {
	switch {
	case s.Err != nil:
		return "failed: " + s.ErrorMessage
	case s.Interrupted:
		return "interrupted"
	case s.Stopped:
		return fmt.Sprintf("stopped, %d found", s.Summary.Found)
	default:
		return fmt.Sprintf("%d found, %d not found, %d blocked, %d errors",
			s.Summary.Found, s.Summary.NotFound, s.Summary.Blocked, s.Summary.TransportError)
	}
}

// saveSession stores s in the history database. If db is nil, this
// function is a no-op. Sessions that never probed are not stored.
func saveSession(ctx context.Context, db *database.HistoryDB, s *model.SearchSession, logger *slog.Logger) {
	if db == nil || len(s.Outcomes) == 0 {
		return
	}
	// The run context may already be cancelled; the partial session is
	// still worth keeping.
	if err := db.SaveSession(context.WithoutCancel(ctx), s); err != nil {
		logger.Error("failed to save session", "search", s.ID, "error", err)
		return
	}
	logger.Debug("session saved to history", "search", s.ID)
}

// sessionsError returns an error when a session could not search at all,
// so that the exit status reflects it.
func sessionsError(sessions []*model.SearchSession) error {
	var failed []error
	for _, s := range sessions {
		if s.Err != nil && model.IsFatal(s.Err) {
			failed = append(failed, fmt.Errorf("%s %s: %w", s.Platform, s.Target.Masked(), s.Err))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	if len(sessions) == 1 {
		return failed[0]
	}
	return fmt.Errorf("%d of %d searches failed: %w", len(failed), len(sessions), errors.Join(failed...))
}
