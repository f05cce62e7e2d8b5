// =============================================================================
// Sales Normalizer - CSV Loader
// =============================================================================
//
// This module reads vendor CSV exports into a types.SourceSheet. It handles:
//   - Different delimiters (comma, semicolon, pipe, tab)
//   - Legacy single-byte encodings (Windows-1252, ISO-8859-1, ISO-8859-15)
//   - UTF-8 with or without a byte order mark
//   - Ragged rows (a short row is kept short, not padded)
//
// Header rows are NOT interpreted here. Every row, header or data, goes into
// the sheet as-is and the vendor processor decides which rows are headers.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// LoadSheet reads a CSV file from disk.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: Delimiter and encoding from the vendor configuration.
//
// RETURNS:
//   - The file as a SourceSheet named after the file.
//   - An error if the file cannot be read, decoded or parsed.
func LoadSheet(filePath string, settings config.CSVSettings) (*types.SourceSheet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadSheet(file, filepath.Base(filePath), settings)
}

// ReadSheet reads CSV content from r.
func ReadSheet(r io.Reader, name string, settings config.CSVSettings) (*types.SourceSheet, error) {
	dec, err := decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(transform.NewReader(bufio.NewReader(r), dec.NewDecoder()))
	if err := configureReader(csvReader, settings); err != nil {
		return nil, err
	}

	rows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	return types.NewSourceSheet(name, rows), nil
}

// decoder maps a configured encoding name to an x/text encoding.
//
// CUSTOMIZATION: Add further charmap entries as vendors need them.
func decoder(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		// Strips a leading BOM, which Excel writes on "CSV UTF-8" export.
		return unicode.UTF8BOM, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "ISO-8859-15", "LATIN9", "LATIN-9":
		return charmap.ISO8859_15, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) error {
	// Handle special cases for common delimiters.
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	case "", ",", "comma":
		reader.Comma = ','
	default:
		runes := []rune(settings.Delimiter)
		if len(runes) != 1 {
			return fmt.Errorf("delimiter must be a single character, got %q", settings.Delimiter)
		}
		reader.Comma = runes[0]
	}

	// Vendor exports have ragged rows: totals rows are often shorter.
	reader.FieldsPerRecord = -1

	// Allow lazy quotes (quotes that don't follow strict CSV rules).
	reader.LazyQuotes = true

	return nil
}
