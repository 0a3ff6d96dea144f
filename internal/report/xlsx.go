package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/phoneprobe/internal/model"
)

// Sheet names of the workbook written by XLSXWriter.
const (
	SheetRecords  = "Records"
	SheetOutcomes = "Outcomes"
	SheetSessions = "Sessions"
)

// XLSXWriter outputs reports as an Excel workbook with one sheet for
// profile records, one for probe outcomes and one for sessions.
type XLSXWriter struct {
	baseWriter
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer) *XLSXWriter {
	return &XLSXWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report as an XLSX workbook.
func (w *XLSXWriter) Write(report *Report) (int, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetRecords); err != nil {
		return 0, fmt.Errorf("failed to create records sheet: %w", err)
	}
	for _, name := range []string{SheetOutcomes, SheetSessions} {
		if _, err := f.NewSheet(name); err != nil {
			return 0, fmt.Errorf("failed to create %s sheet: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}

	sheets := []struct {
		name string
		rows [][]any
	}{
		{SheetRecords, recordRows(report.Records())},
		{SheetOutcomes, outcomeRows(report.Sessions)},
		{SheetSessions, sessionRows(report.Sessions)},
	}
	for _, sheet := range sheets {
		if err := writeRows(f, sheet.name, sheet.rows); err != nil {
			return 0, err
		}
		if err := f.SetRowStyle(sheet.name, 1, 1, bold); err != nil {
			return 0, fmt.Errorf("failed to style %s header: %w", sheet.name, err)
		}
	}

	n, err := f.WriteTo(w.output)
	if err != nil {
		return int(n), fmt.Errorf("failed to write workbook: %w", err)
	}
	return int(n), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func recordRows(records []model.ProfileRecord) [][]any {
	columns := fieldColumns(records)
	header := []any{"Platform", "Candidate", "Rule", "URL", "Complete"}
	for _, name := range columns {
		header = append(header, name)
	}
	header = append(header, "Extraction error")

	rows := [][]any{header}
	for _, r := range records {
		row := []any{r.Platform, r.Candidate, r.Rule, r.ProfileURL, r.ExtractionComplete}
		for _, name := range columns {
			v, _ := r.Field(name)
			row = append(row, cellValue(v))
		}
		row = append(row, r.ExtractionError)
		rows = append(rows, row)
	}
	return rows
}

func outcomeRows(sessions []*model.SearchSession) [][]any {
	rows := [][]any{{"Session", "Platform", "Candidate", "Rule", "URL", "Classification", "Status", "Attempt", "Reason", "Error", "Time"}}
	for _, s := range sessions {
		for _, o := range s.Outcomes {
			rows = append(rows, []any{
				s.ID,
				s.Platform,
				o.Candidate.Value,
				o.Candidate.Rule,
				o.URL,
				o.Classification.String(),
				o.HTTPStatus,
				o.Attempt,
				o.Reason,
				o.Error,
				o.Timestamp,
			})
		}
	}
	return rows
}

func sessionRows(sessions []*model.SearchSession) [][]any {
	rows := [][]any{{"Session", "Platform", "Target", "State", "Found", "Not found", "Blocked", "Transport error", "Started", "Status"}}
	for _, s := range sessions {
		rows = append(rows, []any{
			s.ID,
			s.Platform,
			target(s),
			s.State.String(),
			s.Summary.Found,
			s.Summary.NotFound,
			s.Summary.Blocked,
			s.Summary.TransportError,
			s.StartedAt,
			statusText(s),
		})
	}
	return rows
}

// cellValue keeps scalars typed so counters stay numeric in the sheet.
func cellValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, bool, float64, float32, int, int64:
		return v
	default:
		return formatValue(v)
	}
}
