// =============================================================================
// Sales Normalizer - Normalization Engine
// =============================================================================
//
// The Engine is the ingestion core: one SourceSheet in, one batch.Result
// out. It owns no files, no database and no output directory; the file
// pipeline in converter.go and the HTTP server both call it.
//
// ENGINE STEPS:
//   1. Select the vendor processor
//   2. Resolve the header layout        (StructuralError aborts the sheet)
//   3. Resolve the sale date            (never fails)
//   4. Look up the currency rate        (unsupported skips every product)
//   5. Walk data rows into candidates
//   6. Fan candidates out into records
//   7. Validate the batch before hand-off
//
// CONCURRENCY:
//   An Engine holds only read-only collaborators and may be shared by any
//   number of goroutines, one file per goroutine.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/sales-normalizer/internal/batch"
	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/layout"
	"github.com/ginjaninja78/sales-normalizer/internal/logging"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/record"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
	"github.com/ginjaninja78/sales-normalizer/internal/validation"
	"github.com/ginjaninja78/sales-normalizer/internal/vendor"
)

// Engine normalizes vendor sheets.
type Engine struct {
	rates   normalize.RateTable
	catalog normalize.CatalogLookup
	now     func() time.Time
}

// NewEngine creates an Engine. catalog may be nil, in which case every
// invalid EAN is a lookup miss.
func NewEngine(rates normalize.RateTable, catalog normalize.CatalogLookup) *Engine {
	return &Engine{rates: rates, catalog: catalog, now: time.Now}
}

// Overrides are the vendor-config adjustments to a processor's profile.
type Overrides struct {
	Currency            string
	FilenameDatePattern string
	Cleanup             []config.CleanupRule
}

// OverridesFromConfig extracts the overrides of a vendor config.
func OverridesFromConfig(v *config.VendorConfig) Overrides {
	if v == nil {
		return Overrides{}
	}
	return Overrides{
		Currency:            v.Currency,
		FilenameDatePattern: v.FilenameDatePattern,
		Cleanup:             v.CleanupRules,
	}
}

// Input is the core input contract for one sheet.
type Input struct {
	VendorID   string
	FileName   string
	ResellerID string
	UploadID   string

	// Period is the optional user-supplied month/year.
	Period *normalize.Period

	// UploadedAt is the final date fallback. Zero means now.
	UploadedAt time.Time

	Overrides Overrides
}

// Normalize runs the core over one sheet. A StructuralError is reported in
// the result, not returned. Errors are returned for an unknown vendor, bad
// overrides, cancellation and a batch that fails output validation.
func (e *Engine) Normalize(ctx context.Context, sheet *types.SourceSheet, in Input) (*batch.Result, error) {
	// =========================================================================
	// STEP 1: SELECT PROCESSOR
	// =========================================================================

	proc, err := vendor.Get(in.VendorID)
	if err != nil {
		return nil, err
	}
	profile := proc.Profile()

	log := logging.ForFile(ctx, profile.ID, in.UploadID, in.FileName)
	log.Debug("normalizing sheet", "sheet", sheet.Name(), "rows", sheet.NumRows(), "pattern", profile.Pattern)

	patternExpr := profile.FilenameDatePattern
	if in.Overrides.FilenameDatePattern != "" {
		patternExpr = in.Overrides.FilenameDatePattern
	}
	var pattern *normalize.FilenamePattern
	if patternExpr != "" {
		if pattern, err = normalize.CompileFilenamePattern(patternExpr); err != nil {
			return nil, fmt.Errorf("vendor %s: %w", profile.ID, err)
		}
	}

	cleaner, err := normalize.NewCleaner(in.Overrides.Cleanup)
	if err != nil {
		return nil, fmt.Errorf("vendor %s: %w", profile.ID, err)
	}

	acc := batch.NewAccumulator(profile.ID, in.UploadID, in.FileName)

	// =========================================================================
	// STEP 2: RESOLVE HEADER LAYOUT
	// =========================================================================

	hl, err := proc.ResolveLayout(sheet)
	if err != nil {
		var se *layout.StructuralError
		if errors.As(err, &se) {
			log.Warn("sheet rejected", "error", se)
			acc.Abort(se)
			return acc.Result(), nil
		}
		return nil, fmt.Errorf("resolve layout: %w", err)
	}
	for _, w := range hl.Warnings {
		log.Warn("header label variant", "detail", w.Detail)
	}
	acc.AddDiagnostics(hl.Warnings...)
	log.Debug("resolved layout", "stores", hl.StoreIdentifiers(), "ean_column", hl.EANColumn, "name_column", hl.NameColumn)

	// =========================================================================
	// STEP 3: RESOLVE SALE DATE
	// =========================================================================

	uploadedAt := in.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = e.now()
	}
	date := normalize.ResolveDate(in.Period, in.FileName, pattern, uploadedAt)
	acc.AddDiagnostics(date.Diagnostics...)
	log.Debug("resolved sale date", "date", date.Date.Format("2006-01-02"), "source", date.Source)

	// =========================================================================
	// STEP 4: CURRENCY RATE
	// =========================================================================

	currency := profile.Currency
	if in.Overrides.Currency != "" {
		currency = in.Overrides.Currency
	}
	rate, rateErr := e.rates.Rate(currency)
	if rateErr != nil {
		if !errors.Is(rateErr, normalize.ErrUnsupportedCurrency) {
			return nil, fmt.Errorf("currency rate: %w", rateErr)
		}
		log.Warn("unsupported currency, every product will be skipped", "currency", currency)
	}

	// =========================================================================
	// STEP 5: WALK ROWS
	// =========================================================================

	walk := proc.WalkRows(sheet, hl)
	acc.SetRowsSeen(walk.RowsSeen)
	acc.AddSkips(walk.Skips...)
	log.Debug("walked rows", "rows", walk.RowsSeen, "candidates", len(walk.Candidates), "row_skips", len(walk.Skips))

	// =========================================================================
	// STEP 6: FANOUT
	// =========================================================================

	factory := record.NewFactory(record.Upload{
		ResellerID: in.ResellerID,
		UploadID:   in.UploadID,
		SaleDate:   date.Date,
		Rate:       rate,
		RateErr:    rateErr,
	}, cleaner, e.catalog)

	for _, c := range walk.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := factory.Fanout(ctx, c)
		if err != nil {
			return nil, err
		}
		if out.EANFromCatalog {
			log.Debug("EAN taken from catalog", "row", c.Row, "name", c.RawName)
		}
		for _, d := range out.Diagnostics {
			log.Warn("EAN lookup miss", "row", d.Row, "detail", d.Detail)
		}
		acc.AddRecords(out.Records...)
		acc.AddSkips(out.Skips...)
		acc.AddDiagnostics(out.Diagnostics...)
	}

	// =========================================================================
	// STEP 7: VALIDATE
	// =========================================================================

	res := acc.Result()
	if v := validation.Validate(res.Records, res.Skips); !v.IsValid {
		return nil, v.Err()
	}

	log.Info("sheet normalized",
		"rows", res.RowsSeen,
		"records", len(res.Records),
		"skips", len(res.Skips),
		"diagnostics", len(res.Diagnostics),
	)
	return res, nil
}
