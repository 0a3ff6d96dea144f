package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/nao1215/phoneprobe/internal/model"
)

// TableWriter outputs human-readable text tables for terminal display.
//
// Design decision: Plain box-drawing tables without ANSI colors work in
// every terminal and survive being piped to a file.
type TableWriter struct {
	baseWriter

	// verbose adds the per-probe outcome table.
	verbose bool
}

// TableWriterOption configures a TableWriter.
type TableWriterOption func(*TableWriter)

// WithVerbose adds the outcome of every probe to the output.
func WithVerbose(verbose bool) TableWriterOption {
	return func(w *TableWriter) {
		w.verbose = verbose
	}
}

// NewTableWriter creates a TableWriter that outputs to the given writer.
func NewTableWriter(output io.Writer, opts ...TableWriterOption) *TableWriter {
	w := &TableWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report as text tables.
func (w *TableWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	sb.WriteString(w.sessionsTable(report))
	sb.WriteString("\n\n")
	sb.WriteString(w.recordsTable(report.Records()))
	sb.WriteString("\n")

	if w.verbose {
		for _, s := range report.Sessions {
			if len(s.Outcomes) == 0 {
				continue
			}
			sb.WriteString("\n")
			sb.WriteString(w.outcomesTable(s))
			sb.WriteString("\n")
		}
	}

	return io.WriteString(w.output, sb.String())
}

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	return t
}

func (w *TableWriter) sessionsTable(report *Report) string {
	t := newTable("Searches")
	t.AppendHeader(table.Row{"Target", "Platform", "Found", "Not found", "Blocked", "Transport error", "Status"})
	for _, s := range report.Sessions {
		t.AppendRow(table.Row{
			target(s),
			s.Platform,
			s.Summary.Found,
			s.Summary.NotFound,
			s.Summary.Blocked,
			s.Summary.TransportError,
			statusText(s),
		})
	}
	if len(report.Sessions) > 1 {
		total := report.Summary()
		t.AppendFooter(table.Row{"Total", "", total.Found, total.NotFound, total.Blocked, total.TransportError, ""})
	}
	return t.Render()
}

func (w *TableWriter) recordsTable(records []model.ProfileRecord) string {
	t := newTable("Profiles")
	if len(records) == 0 {
		t.AppendRow(table.Row{"No profiles found."})
		return t.Render()
	}

	columns := fieldColumns(records)
	header := table.Row{"Platform", "Candidate", "URL"}
	for _, name := range columns {
		header = append(header, name)
	}
	t.AppendHeader(header)

	for _, r := range records {
		row := table.Row{r.Platform, r.Candidate, r.ProfileURL}
		for _, name := range columns {
			v, _ := r.Field(name)
			row = append(row, truncateString(formatValue(v), 40))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func (w *TableWriter) outcomesTable(s *model.SearchSession) string {
	t := newTable(fmt.Sprintf("Probes: %s %s", s.Platform, target(s)))
	t.AppendHeader(table.Row{"Candidate", "Rule", "Classification", "Status", "Attempt", "Reason"})
	for _, o := range s.Outcomes {
		status := "-"
		if o.HasStatus() {
			status = fmt.Sprint(o.HTTPStatus)
		}
		t.AppendRow(table.Row{
			o.Candidate.Value,
			o.Candidate.Rule,
			o.Classification.String(),
			status,
			o.Attempt,
			truncateString(o.Reason, 50),
		})
	}
	return t.Render()
}
