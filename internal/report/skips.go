package report

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-normalizer/internal/batch"
)

// Sheet names of the skip report workbook.
const (
	SummarySheet     = "Summary"
	SkipsSheet       = "Skips"
	DiagnosticsSheet = "Diagnostics"
)

// WriteSkipReport writes the itemized skip report for res to path.
func WriteSkipReport(path string, res *batch.Result) error {
	f, err := BuildSkipReport(res)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save skip report: %w", err)
	}
	return nil
}

// BuildSkipReport builds the workbook in memory: a summary sheet with the
// per-reason counts, every skip decision, and every diagnostic.
func BuildSkipReport(res *batch.Result) (*excelize.File, error) {
	f := excelize.NewFile()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SkipsSheet, DiagnosticsSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, err
		}
	}

	s := res.Summary()
	summary := [][]interface{}{
		{"Vendor", s.VendorID},
		{"Upload ID", s.UploadID},
		{"File", s.FileName},
		{"Rows Seen", s.RowsSeen},
		{"Records Emitted", s.RecordsEmitted},
		{"Rows Skipped", s.RowsSkipped},
		{"Diagnostics", s.Diagnostics},
	}
	if s.StructuralError != "" {
		summary = append(summary, []interface{}{"Structural Error", s.StructuralError})
	}
	summary = append(summary, []interface{}{}, []interface{}{"Reason", "Count"})
	for _, rc := range s.SkipsByReason {
		summary = append(summary, []interface{}{string(rc.Reason), rc.Count})
	}

	skips := [][]interface{}{{"Row", "Store", "Reason", "Context"}}
	for _, d := range res.Skips {
		skips = append(skips, []interface{}{d.Row, d.Store, string(d.Reason), d.RawContext})
	}

	diags := [][]interface{}{{"Row", "Kind", "Detail"}}
	for _, d := range res.Diagnostics {
		row := ""
		if d.Row > 0 {
			row = strconv.Itoa(d.Row)
		}
		diags = append(diags, []interface{}{row, string(d.Kind), d.Detail})
	}

	for sheet, rows := range map[string][][]interface{}{
		SummarySheet:     summary,
		SkipsSheet:       skips,
		DiagnosticsSheet: diags,
	} {
		if err := writeRows(f, sheet, rows); err != nil {
			f.Close()
			return nil, err
		}
	}

	// Header rows and summary labels in bold.
	for _, sheet := range []string{SkipsSheet, DiagnosticsSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetColStyle(SummarySheet, "A", bold); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetColWidth(SkipsSheet, "D", "D", 80); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
