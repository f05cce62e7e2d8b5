package converter

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/csvparser"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
	"github.com/ginjaninja78/sales-normalizer/internal/xlsxparser"
)

// LoadSheet reads a vendor file from disk, choosing the loader by extension.
func LoadSheet(path string, vcfg *config.VendorConfig) (*types.SourceSheet, error) {
	settings, sheetName := sourceSettings(vcfg)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return xlsxparser.LoadSheet(path, sheetName)
	case ".csv":
		return csvparser.LoadSheet(path, settings)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

// ReadSheet reads a vendor file streamed from r. name is the original file
// name and selects the loader.
func ReadSheet(r io.Reader, name string, vcfg *config.VendorConfig) (*types.SourceSheet, error) {
	settings, sheetName := sourceSettings(vcfg)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		return xlsxparser.ReadSheetFrom(r, sheetName)
	case ".csv":
		return csvparser.ReadSheet(r, filepath.Base(name), settings)
	default:
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
}

func sourceSettings(vcfg *config.VendorConfig) (config.CSVSettings, string) {
	if vcfg == nil {
		return config.CSVSettings{}, ""
	}
	return vcfg.CSVSettings, vcfg.SheetName
}
