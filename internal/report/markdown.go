package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/phoneprobe/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("phoneprobe Report")
	md.PlainText("")
	md.PlainTextf("Generated %s", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	md.PlainText("")

	if len(report.Sessions) > 1 {
		w.writeOverview(md, report)
	}
	for _, s := range report.Sessions {
		w.writeSession(md, s)
	}

	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeOverview writes one summary row per session of a batch.
func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, report *Report) {
	md.H2("Overview")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Sessions))
	for _, s := range report.Sessions {
		rows = append(rows, []string{
			"`" + target(s) + "`",
			s.Platform,
			strconv.Itoa(s.Summary.Found),
			strconv.Itoa(s.Summary.Total()),
			statusText(s),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Target", "Platform", "Found", "Probed", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeSession writes the sections of one session.
func (w *MarkdownWriter) writeSession(md *markdown.Markdown, s *model.SearchSession) {
	md.H2(fmt.Sprintf("%s: %s", s.Platform, target(s)))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + s.ID + "`"},
			{"Platform", s.Platform},
			{"Target", "`" + target(s) + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration().Round(time.Millisecond).String()},
			{"Status", statusText(s)},
		},
	})
	md.PlainText("")

	w.writeSummary(md, s)
	w.writeRecords(md, s.Records)
	w.writeOutcomes(md, s.Outcomes)
}

// writeSummary writes the classification counts, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s *model.SearchSession) {
	md.H3("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Classification", "Count"},
		Rows: [][]string{
			{"Found", strconv.Itoa(s.Summary.Found)},
			{"Not found", strconv.Itoa(s.Summary.NotFound)},
			{"Blocked", strconv.Itoa(s.Summary.Blocked)},
			{"Transport error", strconv.Itoa(s.Summary.TransportError)},
			{"**Total**", "**" + strconv.Itoa(s.Summary.Total()) + "**"},
		},
	})
	md.PlainText("")

	if s.Summary.Total() > 1 {
		w.writePieChart(md, s.Summary)
	}
	w.writeAlert(md, s)
}

// writePieChart writes a mermaid pie chart of the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Probe Outcomes"),
		piechart.WithShowData(true),
	)

	slices := []struct {
		label string
		count int
	}{
		{"Found", summary.Found},
		{"Not found", summary.NotFound},
		{"Blocked", summary.Blocked},
		{"Transport error", summary.TransportError},
	}
	for _, slice := range slices {
		if slice.count > 0 {
			chart.LabelAndIntValue(slice.label, uint64(slice.count))
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert describing how the session went.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.SearchSession) {
	switch {
	case s.State == model.StateAborted:
		md.Cautionf("The search was aborted: %s", s.ErrorMessage)
	case s.Summary.Blocked > 0:
		md.Warningf(
			"%d probe(s) were blocked by the platform. Results may be incomplete.",
			s.Summary.Blocked,
		)
	case s.Interrupted:
		md.Important("The search was interrupted. Results are partial.")
	case s.Summary.Found > 0:
		md.Tip(fmt.Sprintf("%d profile(s) found.", s.Summary.Found))
	default:
		md.Note("No profile found for any candidate.")
	}
	md.PlainText("")
}

// writeRecords writes the found profiles.
func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, records []model.ProfileRecord) {
	md.H3("Profiles")
	md.PlainText("")

	if len(records) == 0 {
		md.PlainText("No profiles found.")
		md.PlainText("")
		return
	}

	columns := fieldColumns(records)
	header := append([]string{"Candidate", "URL"}, columns...)

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := []string{"`" + r.Candidate + "`", r.ProfileURL}
		for _, name := range columns {
			v, _ := r.Field(name)
			row = append(row, truncateString(formatValue(v), 60))
		}
		rows = append(rows, row)
	}
	md.Table(markdown.TableSet{Header: header, Rows: rows})
	md.PlainText("")

	for _, r := range records {
		if r.ExtractionError != "" {
			md.Details(r.Candidate+": existence only", r.ExtractionError)
		}
	}
	md.PlainText("")
}

// writeOutcomes writes every probe outcome.
func (w *MarkdownWriter) writeOutcomes(md *markdown.Markdown, outcomes []model.ProbeOutcome) {
	if len(outcomes) == 0 {
		return
	}

	md.H3("Probes")
	md.PlainText("")

	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		status := "-"
		if o.HasStatus() {
			status = strconv.Itoa(o.HTTPStatus)
		}
		reason := o.Reason
		if reason == "" {
			reason = "-"
		}
		rows = append(rows, []string{
			"`" + o.Candidate.Value + "`",
			o.Candidate.Rule,
			o.Classification.String(),
			status,
			strconv.Itoa(o.Attempt),
			truncateString(reason, 60),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Candidate", "Rule", "Classification", "Status", "Attempt", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [phoneprobe](https://github.com/nao1215/phoneprobe)*")
}
