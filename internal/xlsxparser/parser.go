// =============================================================================
// Sales Normalizer - XLSX Loader
// =============================================================================
//
// This module reads vendor workbooks into a types.SourceSheet and reads the
// product catalog workbook used for EAN fallback.
//
// SHEET LOADING:
//   Cells are read with their raw values, not the display format, so an EAN
//   stored as a number is not rendered as "5.01235E+12" and an amount is not
//   rendered with a currency symbol. Rows keep their ragged length: excelize
//   drops trailing empty cells, which the layout resolver treats as absent.
//
// CATALOG STRUCTURE (first sheet):
//
//   | EAN           | Name      |
//   |---------------|-----------|
//   | 4006381333931 | Widget A  |
//
//   Header matching is case-insensitive; other columns are ignored.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// =============================================================================
// SOURCE SHEETS
// =============================================================================

// LoadSheet opens a workbook from disk and reads one sheet.
//
// PARAMETERS:
//   - path: The path to the .xlsx file.
//   - sheetName: The sheet to read; "" selects the first sheet.
//
// RETURNS:
//   - The sheet as an immutable SourceSheet.
//   - An error if the file cannot be opened or the sheet does not exist.
func LoadSheet(path, sheetName string) (*types.SourceSheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return ReadSheet(f, sheetName)
}

// ReadSheetFrom reads one sheet of a workbook streamed from r, such as an
// HTTP upload.
func ReadSheetFrom(r io.Reader, sheetName string) (*types.SourceSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return ReadSheet(f, sheetName)
}

// ReadSheet reads one sheet of an open workbook.
func ReadSheet(f *excelize.File, sheetName string) (*types.SourceSheet, error) {
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	}
	if idx, err := f.GetSheetIndex(sheetName); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook has no sheet %q", sheetName)
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return types.NewSourceSheet(sheetName, rows), nil
}

// =============================================================================
// PRODUCT CATALOG
// =============================================================================

// CatalogEntry is one catalog row.
type CatalogEntry struct {
	EAN  string
	Name string
	// Row is the 1-based row in the catalog sheet.
	Row int
}

// LoadCatalog reads the catalog workbook at path.
func LoadCatalog(path string) ([]CatalogEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	return ReadCatalog(f)
}

// ReadCatalog reads EAN/Name pairs from the first sheet of f. Rows missing
// either value are skipped.
func ReadCatalog(f *excelize.File) ([]CatalogEntry, error) {
	sheet, err := ReadSheet(f, "")
	if err != nil {
		return nil, err
	}
	if sheet.NumRows() == 0 {
		return nil, fmt.Errorf("catalog sheet is empty")
	}

	eanCol, nameCol := -1, -1
	for i, h := range sheet.Row(0) {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "ean":
			eanCol = i
		case "name":
			nameCol = i
		}
	}
	if eanCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("catalog header must contain EAN and Name columns")
	}

	var entries []CatalogEntry
	for r := 1; r < sheet.NumRows(); r++ {
		ean, name := sheet.Value(r, eanCol), sheet.Value(r, nameCol)
		if ean == "" || name == "" {
			continue
		}
		entries = append(entries, CatalogEntry{EAN: ean, Name: name, Row: r + 1})
	}
	return entries, nil
}
