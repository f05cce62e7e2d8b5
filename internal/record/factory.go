// =============================================================================
// Sales Normalizer - Record Factory
// =============================================================================
//
// Expands one ProductCandidate into one UnifiedSaleRecord per store section
// whose figures pass validation ("fanout"). Records are never aggregated:
// the same product in two stores, or twice in one file, stays separate.
//
// FLOW PER CANDIDATE:
//   1. Clean and validate the name         (MissingName skips the row)
//   2. Check the vendor currency has a rate (UnsupportedCurrency skips it)
//   3. Validate every store section         (one skip per failing section)
//   4. Resolve the EAN once, if anything survived
//   5. Emit one record per surviving section
//
// =============================================================================

package record

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
	"github.com/ginjaninja78/sales-normalizer/internal/vendor"
)

// Upload holds the values shared by every record of one upload.
type Upload struct {
	ResellerID string
	UploadID   string
	SaleDate   time.Time

	// Rate converts the vendor currency to the canonical one. When RateErr
	// is set the currency is unsupported and every product is skipped.
	Rate    decimal.Decimal
	RateErr error
}

// Factory turns candidates into records. It is built per file and holds no
// mutable state, so one Factory can serve a whole sheet in row order.
type Factory struct {
	upload  Upload
	cleaner *normalize.Cleaner
	catalog normalize.CatalogLookup
}

// NewFactory creates a Factory. cleaner and catalog may be nil.
func NewFactory(upload Upload, cleaner *normalize.Cleaner, catalog normalize.CatalogLookup) *Factory {
	return &Factory{upload: upload, cleaner: cleaner, catalog: catalog}
}

// Output is what one candidate produced.
type Output struct {
	Records     []types.UnifiedSaleRecord
	Skips       []types.SkipDecision
	Diagnostics []types.Diagnostic

	// EANFromCatalog is true when the file EAN was rejected and the catalog
	// supplied the one on Records.
	EANFromCatalog bool
}

type validSection struct {
	section  vendor.SectionValue
	quantity int
	amount   decimal.Decimal
}

// Fanout validates c and emits its records. The only error is context
// cancellation during the catalog lookup.
func (f *Factory) Fanout(ctx context.Context, c vendor.ProductCandidate) (Output, error) {
	var out Output

	rawName := f.cleaner.Clean(config.FieldName, c.RawName)
	name, ok := normalize.Name(rawName)
	if !ok {
		out.Skips = append(out.Skips, types.SkipDecision{
			Row:        c.Row,
			Reason:     types.ReasonMissingName,
			RawContext: fmt.Sprintf("ean=%q name=%q", c.RawEAN, c.RawName),
		})
		return out, nil
	}

	if f.upload.RateErr != nil {
		out.Skips = append(out.Skips, types.SkipDecision{
			Row:        c.ValueRow,
			Reason:     types.ReasonUnsupportedCurrency,
			RawContext: fmt.Sprintf("name=%q: %v", name, f.upload.RateErr),
		})
		return out, nil
	}

	var valid []validSection
	blank := 0
	for _, s := range c.Sections {
		// Cleanup runs before the blank test so an if_empty_use_default
		// rule can fill an empty figure.
		cleaned := s
		cleaned.RawQuantity = f.cleaner.Clean(config.FieldQuantity, s.RawQuantity)
		cleaned.RawAmount = f.cleaner.Clean(config.FieldAmount, s.RawAmount)
		if cleaned.Blank() {
			blank++
			continue
		}
		skip := func(reason types.SkipReason) {
			out.Skips = append(out.Skips, types.SkipDecision{
				Row:        c.ValueRow,
				Store:      s.Store.Identifier,
				Reason:     reason,
				RawContext: fmt.Sprintf("name=%q quantity=%q amount=%q", name, s.RawQuantity, s.RawAmount),
			})
		}

		if !s.Store.Recognized {
			skip(types.ReasonUnrecognizedStore)
			continue
		}
		qty, reason, ok := normalize.Quantity(cleaned.RawQuantity)
		if !ok {
			skip(reason)
			continue
		}
		amount, reason, ok := normalize.Amount(cleaned.RawAmount, f.upload.Rate)
		if !ok {
			skip(reason)
			continue
		}
		valid = append(valid, validSection{section: s, quantity: qty, amount: amount})
	}

	if blank == len(c.Sections) {
		out.Skips = append(out.Skips, types.SkipDecision{
			Row:        c.ValueRow,
			Reason:     types.ReasonNoSalesData,
			RawContext: fmt.Sprintf("name=%q", name),
		})
		return out, nil
	}
	if len(valid) == 0 {
		return out, nil
	}

	ean, err := normalize.ResolveEAN(ctx, f.catalog, c.Row, f.cleaner.Clean(config.FieldEAN, c.RawEAN), name)
	if err != nil {
		return Output{}, err
	}
	if ean.Miss != nil {
		out.Diagnostics = append(out.Diagnostics, *ean.Miss)
	}
	out.EANFromCatalog = ean.FromCatalog

	date := f.upload.SaleDate
	for _, v := range valid {
		out.Records = append(out.Records, types.UnifiedSaleRecord{
			ProductEAN:      ean.EAN,
			FunctionalName:  name,
			Quantity:        v.quantity,
			SalesAmount:     v.amount,
			SaleDate:        date,
			SalesChannel:    v.section.Store.Channel,
			StoreIdentifier: v.section.Store.Identifier,
			ResellerID:      f.upload.ResellerID,
			UploadID:        f.upload.UploadID,
			Month:           int(date.Month()),
			Year:            date.Year(),
			SourceRow:       c.ValueRow,
		})
	}
	return out, nil
}
