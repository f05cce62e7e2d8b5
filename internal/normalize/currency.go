package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency is returned for a currency with no configured rate.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// RateTable returns the fixed multiplier from a vendor currency to the
// canonical currency. Implementations must be safe for concurrent reads.
type RateTable interface {
	Rate(currency string) (decimal.Decimal, error)
}

// StaticRates is an immutable RateTable built from configuration.
type StaticRates struct {
	canonical string
	rates     map[string]decimal.Decimal
}

// NewStaticRates copies rates keyed by ISO code. The canonical currency
// always converts at 1.
func NewStaticRates(canonical string, rates map[string]float64) (*StaticRates, error) {
	t := &StaticRates{
		canonical: strings.ToUpper(canonical),
		rates:     make(map[string]decimal.Decimal, len(rates)+1),
	}
	for code, r := range rates {
		if r <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive, got %v", code, r)
		}
		t.rates[strings.ToUpper(code)] = decimal.NewFromFloat(r)
	}
	t.rates[t.canonical] = decimal.NewFromInt(1)
	return t, nil
}

// Canonical returns the canonical currency code.
func (t *StaticRates) Canonical() string { return t.canonical }

// Rate implements RateTable.
func (t *StaticRates) Rate(currency string) (decimal.Decimal, error) {
	r, ok := t.rates[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	return r, nil
}
