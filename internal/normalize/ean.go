package normalize

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// EANLength is the number of digits in a valid EAN-13.
const EANLength = 13

// CatalogLookup resolves a product EAN from its exact functional name.
// Implementations must be safe for concurrent reads.
type CatalogLookup interface {
	LookupEAN(ctx context.Context, functionalName string) (string, bool, error)
}

// NormalizeEAN takes the first 13 characters of the raw identifier and
// accepts them when they are 13 ASCII digits. Cells Excel rendered in
// scientific notation are expanded first.
func NormalizeEAN(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if strings.ContainsAny(s, "eE") {
		if d, err := decimal.NewFromString(s); err == nil && d.Equal(d.Truncate(0)) {
			s = d.String()
		}
	}

	r := []rune(s)
	if len(r) > EANLength {
		r = r[:EANLength]
	}
	if len(r) != EANLength {
		return "", false
	}
	for _, c := range r {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return string(r), true
}

// EANResult is the outcome of EAN resolution for one product.
type EANResult struct {
	// EAN is nil when neither the file nor the catalog supplied one.
	EAN *string

	// FromCatalog is true when the file value was rejected and the
	// catalog answered.
	FromCatalog bool

	// Miss is set when the catalog was consulted and had no entry.
	Miss *types.Diagnostic
}

// ResolveEAN validates the raw EAN and falls back to the catalog by exact
// name. A missing EAN never skips the product. Only context cancellation
// is returned as an error; other catalog failures count as a miss.
func ResolveEAN(ctx context.Context, catalog CatalogLookup, row int, rawEAN, name string) (EANResult, error) {
	if ean, ok := NormalizeEAN(rawEAN); ok {
		return EANResult{EAN: &ean}, nil
	}

	miss := func(detail string) EANResult {
		return EANResult{Miss: &types.Diagnostic{
			Row:    row,
			Kind:   types.DiagLookupMiss,
			Detail: detail,
		}}
	}

	if catalog == nil {
		return miss(fmt.Sprintf("invalid EAN %q for %q and no catalog configured", rawEAN, name)), nil
	}

	ean, ok, err := catalog.LookupEAN(ctx, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return EANResult{}, ctxErr
		}
		return miss(fmt.Sprintf("invalid EAN %q for %q, catalog lookup failed: %v", rawEAN, name, err)), nil
	}
	if !ok {
		return miss(fmt.Sprintf("invalid EAN %q and no catalog entry for %q", rawEAN, name)), nil
	}
	if valid, ok := NormalizeEAN(ean); ok {
		return EANResult{EAN: &valid, FromCatalog: true}, nil
	}
	return miss(fmt.Sprintf("catalog EAN %q for %q is not 13 digits", ean, name)), nil
}
