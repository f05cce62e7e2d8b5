// =============================================================================
// Sales Normalizer - Field Normalizer
// =============================================================================
//
// Vendor-independent field checks shared by every processor:
//   - quantity   : positive integer, never coerced
//   - amount     : row TOTAL in vendor currency, converted and rounded to 2 dp
//   - EAN        : 13 ASCII digits, catalog fallback by exact name
//   - name       : trimmed, must be non-empty
//   - date       : user period, then file name, then upload date
//
// A failed check yields a types.SkipReason, never an error. Errors are
// reserved for collaborators failing (catalog I/O, unknown currency).
//
// =============================================================================

package normalize

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// Upper bounds of the storage columns: quantity is INTEGER, sales_amount is
// NUMERIC(14, 2).
var (
	MaxQuantity = decimal.NewFromInt(math.MaxInt32)
	MaxAmount   = decimal.RequireFromString("999999999999.99")
)

// numberNoise is stripped from numeric cells before parsing.
var numberNoise = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"$", "",
	"€", "",
	"£", "",
	",", "",
)

// CleanNumber strips whitespace, currency symbols and thousands separators
// and turns an accounting negative "(12.00)" into "-12.00".
func CleanNumber(raw string) string {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = numberNoise.Replace(s)
	if negative && s != "" {
		s = "-" + s
	}
	return s
}

// ParseDecimal parses a numeric cell. The boolean is false for blank or
// non-numeric input.
func ParseDecimal(raw string) (decimal.Decimal, bool) {
	s := CleanNumber(raw)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// IsNumeric reports whether a cell holds a number.
func IsNumeric(raw string) bool {
	_, ok := ParseDecimal(raw)
	return ok
}

// Quantity validates a raw quantity cell. A blank cell counts as zero.
// Negative values are skipped, not made absolute: they are returns.
func Quantity(raw string) (int, types.SkipReason, bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, types.ReasonZeroQuantity, false
	}
	d, ok := ParseDecimal(raw)
	if !ok || !d.Equal(d.Truncate(0)) {
		return 0, types.ReasonInvalidQuantity, false
	}
	switch d.Sign() {
	case 0:
		return 0, types.ReasonZeroQuantity, false
	case -1:
		return 0, types.ReasonNegativeQuantity, false
	}
	if d.GreaterThan(MaxQuantity) {
		return 0, types.ReasonInvalidQuantity, false
	}
	return int(d.IntPart()), "", true
}

// Amount validates a raw amount cell and converts it with rate. The cell is
// the total for the row's quantity and is never divided by it. The result
// is rounded half away from zero to 2 decimal places. A blank cell counts as
// zero.
func Amount(raw string, rate decimal.Decimal) (decimal.Decimal, types.SkipReason, bool) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, types.ReasonZeroAmount, false
	}
	d, ok := ParseDecimal(raw)
	if !ok {
		return decimal.Zero, types.ReasonInvalidAmount, false
	}
	switch d.Sign() {
	case 0:
		return decimal.Zero, types.ReasonZeroAmount, false
	case -1:
		return decimal.Zero, types.ReasonNegativeAmount, false
	}

	converted := d.Mul(rate).Round(2)
	if converted.Sign() <= 0 {
		return decimal.Zero, types.ReasonZeroAmount, false
	}
	if converted.GreaterThan(MaxAmount) {
		return decimal.Zero, types.ReasonInvalidAmount, false
	}
	return converted, "", true
}

// Name trims a product name. The boolean is false when nothing is left.
func Name(raw string) (string, bool) {
	name := strings.TrimSpace(raw)
	return name, name != ""
}
