package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/phoneprobe/internal/config"
	"github.com/nao1215/phoneprobe/internal/report"
)

// writeReport writes r in the format selected by cfg to stdout or to
// cfg.ReportFile, and additionally to cfg.XLSXFile when set.
func writeReport(cfg *config.Config, r *report.Report, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		f, err := createOutputFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		output = f
	}

	writers := []report.Writer{newReportWriter(cfg, output)}

	if cfg.XLSXFile != "" {
		f, err := createOutputFile(cfg.XLSXFile)
		if err != nil {
			return err
		}
		defer f.Close()
		writers = append(writers, report.NewXLSXWriter(f))
	}

	if _, err := report.NewMultiWriter(writers...).Write(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// newReportWriter returns the primary writer. JSON is the default so that
// stdout can be piped into other tools.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	case cfg.TableReport:
		return report.NewTableWriter(output, report.WithVerbose(cfg.Verbose))
	default:
		return report.NewJSONWriter(output)
	}
}

// createOutputFile creates or truncates path, creating its directory.
// Reports name real accounts, so the file is readable by the owner only.
func createOutputFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
