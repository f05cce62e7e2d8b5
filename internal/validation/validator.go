// =============================================================================
// Sales Normalizer - Output Validation
// =============================================================================
//
// This module is the last gate before a batch leaves the core. It re-checks
// every emitted record against the canonical record rules, independent of
// the code that produced it:
//   - quantity > 0 and sales_amount > 0, amount at most 2 decimal places
//   - functional_name non-empty, product_ean null or 13 ASCII digits
//   - sales_channel consistent with the store identifier
//   - month/year derived from sale_date
//   - reseller_id and upload_id injected
//
// A failure here means a bug upstream, not bad vendor data: bad vendor data
// becomes skip decisions long before this point. The converter fails the
// file rather than hand an invalid batch to storage.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single broken rule.
type ValidationError struct {
	// Index is the position of the record or skip in its batch slice.
	Index int

	// RowNumber is the source row (for error reporting).
	RowNumber int

	// Field is the record field that failed validation.
	Field string

	// Value is the offending value rendered as text.
	Value string

	// Rule is the rule that was violated.
	Rule string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d (row %d), field '%s': %s (value: '%s')",
		e.Index, e.RowNumber, e.Field, e.Rule, e.Value)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// ValidationResult contains the results of validation.
type ValidationResult struct {
	// IsValid is true if no rule was broken.
	IsValid bool

	Errors []*ValidationError

	// RecordsValidated and SkipsValidated count what was checked.
	RecordsValidated int
	SkipsValidated   int
}

// Err returns nil for a valid result, otherwise an error listing the
// failures.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return fmt.Errorf("output validation failed:\n%s", FormatErrors(r.Errors))
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validate checks records and skips of one batch.
func Validate(records []types.UnifiedSaleRecord, skips []types.SkipDecision) *ValidationResult {
	res := &ValidationResult{
		RecordsValidated: len(records),
		SkipsValidated:   len(skips),
	}
	for i := range records {
		res.Errors = append(res.Errors, ValidateRecord(i, &records[i])...)
	}
	for i, s := range skips {
		if s.Reason == "" {
			res.Errors = append(res.Errors, &ValidationError{
				Index: i, RowNumber: s.Row, Field: "reason", Rule: "skip reason is required",
			})
		}
		if s.Row <= 0 {
			res.Errors = append(res.Errors, &ValidationError{
				Index: i, RowNumber: s.Row, Field: "row", Value: fmt.Sprint(s.Row), Rule: "skip must reference a sheet row",
			})
		}
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

// ValidateRecord checks one record.
func ValidateRecord(index int, r *types.UnifiedSaleRecord) []*ValidationError {
	var errs []*ValidationError
	fail := func(field, value, rule string) {
		errs = append(errs, &ValidationError{
			Index: index, RowNumber: r.SourceRow, Field: field, Value: value, Rule: rule,
		})
	}

	if r.Quantity <= 0 {
		fail("quantity", fmt.Sprint(r.Quantity), "must be positive")
	}
	if int64(r.Quantity) > normalize.MaxQuantity.IntPart() {
		fail("quantity", fmt.Sprint(r.Quantity), "must fit a 32-bit integer")
	}
	if r.SalesAmount.Sign() <= 0 {
		fail("sales_amount", r.SalesAmount.String(), "must be positive")
	}
	if r.SalesAmount.GreaterThan(normalize.MaxAmount) {
		fail("sales_amount", r.SalesAmount.String(), "must be below 10^12")
	}
	if !r.SalesAmount.Equal(r.SalesAmount.Round(2)) {
		fail("sales_amount", r.SalesAmount.String(), "must have at most 2 decimal places")
	}
	if strings.TrimSpace(r.FunctionalName) == "" || r.FunctionalName != strings.TrimSpace(r.FunctionalName) {
		fail("functional_name", r.FunctionalName, "must be non-empty and trimmed")
	}
	if r.ProductEAN != nil && !isEAN13(*r.ProductEAN) {
		fail("product_ean", *r.ProductEAN, "must be null or 13 digits")
	}
	if r.StoreIdentifier == "" {
		fail("store_identifier", "", "is required")
	}
	if want := types.ChannelForStore(r.StoreIdentifier); r.SalesChannel != want {
		fail("sales_channel", string(r.SalesChannel), fmt.Sprintf("store %q maps to %s", r.StoreIdentifier, want))
	}
	if r.ResellerID == "" {
		fail("reseller_id", "", "is required")
	}
	if r.UploadID == "" {
		fail("upload_id", "", "is required")
	}
	if r.SaleDate.IsZero() {
		fail("sale_date", "", "is required")
	} else {
		if r.Month != int(r.SaleDate.Month()) {
			fail("month", fmt.Sprint(r.Month), "must match sale_date")
		}
		if r.Year != r.SaleDate.Year() {
			fail("year", fmt.Sprint(r.Year), "must match sale_date")
		}
	}
	if r.Year < 1000 || r.Year > 9999 {
		fail("year", fmt.Sprint(r.Year), "must have 4 digits")
	}
	return errs
}

func isEAN13(s string) bool {
	if len(s) != 13 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// =============================================================================
// ERROR FORMATTING
// =============================================================================

// FormatErrors formats validation errors for display, one per line.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var sb strings.Builder
	for i, err := range errors {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
