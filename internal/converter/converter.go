// =============================================================================
// Sales Normalizer - Converter Module
// =============================================================================
//
// This module runs the file pipeline for one vendor file: load it, hand the
// sheet to the Engine, and deliver the batch.
//
// FILE PIPELINE:
//   1. Load the source sheet (.xlsx or .csv)
//   2. Normalize the sheet through the Engine
//   3. Deliver the batch to the storage sink
//   4. Write the skip report and the record export
//   5. Archive the input file
//
// A sheet rejected with a StructuralError stops after step 2: nothing is
// written and the input stays where it is so the vendor can resend it.
//
// CONCURRENCY:
//   Each file is processed in its own goroutine. A Converter is used for one
//   file only; the Engine and the Sink behind it are shared.
//
// =============================================================================

package converter

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/sales-normalizer/internal/batch"
	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/logging"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/report"
	"github.com/ginjaninja78/sales-normalizer/internal/xmlwriter"
	"github.com/ginjaninja78/sales-normalizer/pkg/utils"
)

// Error types reported in Result.ErrorType.
const (
	ErrorTypeLoad       = "load"
	ErrorTypeStructural = "structural"
	ErrorTypeNormalize  = "normalize"
	ErrorTypeSink       = "sink"
	ErrorTypeOutput     = "output"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	VendorID string
	UploadID string

	// Batch is the normalized batch. It is nil when the file could not be
	// loaded or normalized, and carries the StructuralError when the sheet
	// was rejected.
	Batch *batch.Result

	// ReportFile, RecordsFile and XMLFile are empty when nothing was written.
	ReportFile  string
	RecordsFile string
	XMLFile     string

	// ArchivePath is where the input was moved; empty when it was not.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// ErrorType classifies Error for the run summary.
	ErrorType string

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	RowsSeen       int
	RecordsEmitted int
	Skips          int
	Diagnostics    int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Sink receives every batch that survives normalization.
type Sink interface {
	WriteBatch(ctx context.Context, res *batch.Result) error
}

// Options controls one file run.
type Options struct {
	// ResellerID overrides the vendor config's reseller id.
	ResellerID string

	// UploadID identifies the batch. A random UUID is used when empty.
	UploadID string

	// Period is the user-supplied sale month, if any.
	Period *normalize.Period

	// DryRun normalizes and writes the reports but neither calls the sink
	// nor archives the input.
	DryRun bool

	// Sink may be nil, in which case records only go to the export file.
	Sink Sink

	// Files places output files and archives inputs. When nil no files
	// are written.
	Files *utils.FileManager

	// ExportXML also writes the batch as XML. Requires Files.
	ExportXML bool
}

// Converter handles a single vendor file.
type Converter struct {
	path      string
	vendorCfg *config.VendorConfig
	engine    *Engine
	opts      Options
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - path: The path to the input file.
//   - vendorCfg: The vendor configuration the file matched.
//   - engine: The shared normalization engine.
//   - opts: Per-run options.
func New(path string, vendorCfg *config.VendorConfig, engine *Engine, opts Options) *Converter {
	return &Converter{
		path:      path,
		vendorCfg: vendorCfg,
		engine:    engine,
		opts:      opts,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the file pipeline.
func (c *Converter) Run(ctx context.Context) Result {
	startTime := time.Now()
	fileName := filepath.Base(c.path)

	uploadID := c.opts.UploadID
	if uploadID == "" {
		uploadID = uuid.NewString()
	}
	resellerID := c.opts.ResellerID
	if resellerID == "" {
		resellerID = c.vendorCfg.ResellerID
	}

	result := Result{
		FilePath: c.path,
		VendorID: c.vendorCfg.VendorID,
		UploadID: uploadID,
	}
	fail := func(kind string, err error) Result {
		result.Error = err
		result.ErrorType = kind
		result.Stats.ProcessingTime = time.Since(startTime)
		return result
	}

	log := logging.ForFile(ctx, c.vendorCfg.VendorID, uploadID, fileName)

	// =========================================================================
	// STEP 1: LOAD SOURCE SHEET
	// =========================================================================

	log.Info("processing file", "path", c.path)

	sheet, err := LoadSheet(c.path, c.vendorCfg)
	if err != nil {
		return fail(ErrorTypeLoad, fmt.Errorf("failed to load %s: %w", fileName, err))
	}
	log.Debug("loaded sheet", "sheet", sheet.Name(), "rows", sheet.NumRows(), "width", sheet.Width())

	// =========================================================================
	// STEP 2: NORMALIZE
	// =========================================================================

	res, err := c.engine.Normalize(ctx, sheet, Input{
		VendorID:   c.vendorCfg.VendorID,
		FileName:   fileName,
		ResellerID: resellerID,
		UploadID:   uploadID,
		Period:     c.opts.Period,
		Overrides:  OverridesFromConfig(c.vendorCfg),
	})
	if err != nil {
		return fail(ErrorTypeNormalize, err)
	}

	result.Batch = res
	result.Stats = ProcessingStats{
		RowsSeen:       res.RowsSeen,
		RecordsEmitted: len(res.Records),
		Skips:          len(res.Skips),
		Diagnostics:    len(res.Diagnostics),
	}

	if res.Failed() {
		log.Warn("file rejected, input left in place", "error", res.StructuralError)
		return fail(ErrorTypeStructural, res.Err())
	}

	// =========================================================================
	// STEP 3: STORAGE SINK
	// =========================================================================

	if c.opts.Sink != nil && !c.opts.DryRun {
		if err := c.opts.Sink.WriteBatch(ctx, res); err != nil {
			return fail(ErrorTypeSink, fmt.Errorf("failed to store batch: %w", err))
		}
		log.Debug("batch stored", "records", len(res.Records), "skips", len(res.Skips))
	}

	// =========================================================================
	// STEP 4: OUTPUT FILES
	// =========================================================================

	if fm := c.opts.Files; fm != nil {
		params := map[string]string{
			"original":  strings.TrimSuffix(fileName, filepath.Ext(fileName)),
			"upload_id": uploadID,
		}

		reportPath := fm.OutputPath("{original}_{upload_id}_skips", params, ".xlsx")
		if err := report.WriteSkipReport(reportPath, res); err != nil {
			return fail(ErrorTypeOutput, err)
		}
		result.ReportFile = reportPath

		recordsPath := fm.OutputPath("{original}_{upload_id}_records", params, ".csv")
		if err := report.WriteRecordsFile(recordsPath, res.Records); err != nil {
			return fail(ErrorTypeOutput, err)
		}
		result.RecordsFile = recordsPath

		if c.opts.ExportXML {
			xmlPath := fm.OutputPath("{original}_{upload_id}_records", params, ".xml")
			if err := xmlwriter.WriteFile(xmlPath, res); err != nil {
				return fail(ErrorTypeOutput, err)
			}
			result.XMLFile = xmlPath
		}
		log.Debug("wrote output files", "report", reportPath, "records", recordsPath)

		// =====================================================================
		// STEP 5: ARCHIVE INPUT
		// =====================================================================

		if !c.opts.DryRun {
			archivePath, err := fm.ArchiveInputFile(c.path)
			if err != nil {
				// The batch is already delivered; a failed move is not a
				// failed file.
				log.Warn("failed to archive input", "error", err)
			} else if archivePath != c.path {
				result.ArchivePath = archivePath
			}
		}
	}

	// =========================================================================
	// COMPLETE
	// =========================================================================

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)
	return result
}
