package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

func TestQuantity(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		reason types.SkipReason
	}{
		{"5", 5, ""},
		{" 12 ", 12, ""},
		{"12.0", 12, ""},
		{"1,200", 1200, ""},
		{"", 0, types.ReasonZeroQuantity},
		{"0", 0, types.ReasonZeroQuantity},
		{"-3", 0, types.ReasonNegativeQuantity},
		{"(3)", 0, types.ReasonNegativeQuantity},
		{"1.5", 0, types.ReasonInvalidQuantity},
		{"abc", 0, types.ReasonInvalidQuantity},
		{"99999999999", 0, types.ReasonInvalidQuantity},
		{"2147483647", 2147483647, ""},
		{"2147483648", 0, types.ReasonInvalidQuantity},
	}
	for _, tt := range tests {
		got, reason, ok := Quantity(tt.raw)
		if ok != (tt.reason == "") || reason != tt.reason || got != tt.want {
			t.Errorf("Quantity(%q) = %d, %q, %v; want %d, %q", tt.raw, got, reason, ok, tt.want, tt.reason)
		}
	}
}

func TestAmount(t *testing.T) {
	gbp := decimal.RequireFromString("1.17")
	tests := []struct {
		raw    string
		rate   decimal.Decimal
		want   string
		reason types.SkipReason
	}{
		{"99", gbp, "115.83", ""},
		{"1210", gbp, "1415.7", ""},
		{"£1,210.00", gbp, "1415.7", ""},
		{"10.005", decimal.NewFromInt(1), "10.01", ""},
		{"", gbp, "0", types.ReasonZeroAmount},
		{"0", gbp, "0", types.ReasonZeroAmount},
		{"0.001", decimal.NewFromInt(1), "0", types.ReasonZeroAmount},
		{"-4", gbp, "0", types.ReasonNegativeAmount},
		{"(4.00)", gbp, "0", types.ReasonNegativeAmount},
		{"n/a", gbp, "0", types.ReasonInvalidAmount},
		{"999999999999.99", decimal.NewFromInt(1), "999999999999.99", ""},
		{"1000000000000", decimal.NewFromInt(1), "0", types.ReasonInvalidAmount},
		{"900000000000", gbp, "0", types.ReasonInvalidAmount},
	}
	for _, tt := range tests {
		got, reason, ok := Amount(tt.raw, tt.rate)
		if ok != (tt.reason == "") || reason != tt.reason {
			t.Errorf("Amount(%q) reason = %q, %v; want %q", tt.raw, reason, ok, tt.reason)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("Amount(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestAmountIsNotDividedByQuantity(t *testing.T) {
	// A row of 5 units totalling 50.00 carries 50.00, not 10.00.
	got, _, ok := Amount("50.00", decimal.NewFromInt(1))
	if !ok || !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("Amount = %s, %v; want 50", got, ok)
	}
}

func TestNormalizeEAN(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"4006381333931", "4006381333931", true},
		{"4006381333931 ", "4006381333931", true},
		{"4006381333931-X", "4006381333931", true},
		{"40063813339312345", "4006381333931", true},
		{"400638133393", "", false},
		{"40063813339A1", "", false},
		{"", "", false},
		{"4.006381333931E+12", "4006381333931", true},
		{"٤٠٠٦٣٨١٣٣٣٩٣١", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeEAN(tt.raw)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeEAN(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

type mapCatalog map[string]string

func (m mapCatalog) LookupEAN(_ context.Context, name string) (string, bool, error) {
	ean, ok := m[name]
	return ean, ok, nil
}

type failingCatalog struct{ err error }

func (f failingCatalog) LookupEAN(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func TestResolveEAN(t *testing.T) {
	ctx := context.Background()
	catalog := mapCatalog{"Widget A": "4006381333931", "Broken": "123"}

	res, err := ResolveEAN(ctx, catalog, 4, "5012345678900", "Widget A")
	if err != nil || res.EAN == nil || *res.EAN != "5012345678900" || res.FromCatalog || res.Miss != nil {
		t.Fatalf("valid file EAN: got %+v, %v", res, err)
	}

	res, err = ResolveEAN(ctx, catalog, 4, "n/a", "Widget A")
	if err != nil || res.EAN == nil || *res.EAN != "4006381333931" || !res.FromCatalog {
		t.Fatalf("catalog hit: got %+v, %v", res, err)
	}

	res, err = ResolveEAN(ctx, catalog, 7, "", "Widget B")
	if err != nil || res.EAN != nil || res.Miss == nil {
		t.Fatalf("catalog miss: got %+v, %v", res, err)
	}
	if res.Miss.Kind != types.DiagLookupMiss || res.Miss.Row != 7 {
		t.Errorf("miss diagnostic = %+v", res.Miss)
	}

	res, _ = ResolveEAN(ctx, catalog, 1, "", "Broken")
	if res.EAN != nil || res.Miss == nil {
		t.Errorf("invalid catalog EAN should be a miss, got %+v", res)
	}

	res, _ = ResolveEAN(ctx, nil, 1, "", "Widget A")
	if res.EAN != nil || res.Miss == nil {
		t.Errorf("nil catalog should be a miss, got %+v", res)
	}

	res, err = ResolveEAN(ctx, failingCatalog{errors.New("db down")}, 1, "", "Widget A")
	if err != nil || res.Miss == nil {
		t.Errorf("catalog failure should be a miss, got %+v, %v", res, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := ResolveEAN(cancelled, failingCatalog{context.Canceled}, 1, "", "Widget A"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled lookup err = %v, want context.Canceled", err)
	}
}

func TestStaticRates(t *testing.T) {
	rates, err := NewStaticRates("eur", map[string]float64{"GBP": 1.17, "sek": 0.087})
	if err != nil {
		t.Fatal(err)
	}

	for code, want := range map[string]string{"GBP": "1.17", "SEK": "0.087", "EUR": "1", " eur ": "1"} {
		got, err := rates.Rate(code)
		if err != nil || !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("Rate(%q) = %s, %v; want %s", code, got, err, want)
		}
	}

	if _, err := rates.Rate("JPY"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Errorf("Rate(JPY) err = %v, want ErrUnsupportedCurrency", err)
	}

	if _, err := NewStaticRates("EUR", map[string]float64{"USD": 0}); err == nil {
		t.Error("zero rate accepted")
	}
}

func TestPeriodLastDay(t *testing.T) {
	tests := []struct {
		p    Period
		want string
	}{
		{Period{2024, 3}, "2024-03-31"},
		{Period{2024, 2}, "2024-02-29"},
		{Period{2023, 2}, "2023-02-28"},
		{Period{2024, 12}, "2024-12-31"},
	}
	for _, tt := range tests {
		if got := tt.p.LastDay().Format("2006-01-02"); got != tt.want {
			t.Errorf("%v.LastDay() = %s, want %s", tt.p, got, tt.want)
		}
	}
}

func TestResolveDate(t *testing.T) {
	meridian, err := CompileFilenamePattern(`(?i)meridian.*?[ _-](?P<month>[a-z]{3,9})[ _-](?P<year>\d{4})`)
	if err != nil {
		t.Fatal(err)
	}
	uploaded := time.Date(2024, 5, 14, 16, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		user     *Period
		filename string
		want     string
		source   DateSource
		diags    int
	}{
		{"user period wins", &Period{2024, 2}, "Meridian_Sales_March_2024.xlsx", "2024-02-29", DateFromUser, 0},
		{"filename", nil, "Meridian_Sales_March_2024.xlsx", "2024-03-31", DateFromFilename, 0},
		{"filename short month", nil, "/in/meridian-sales-sep-2023.xlsx", "2023-09-30", DateFromFilename, 0},
		{"invalid user falls through", &Period{2024, 13}, "Meridian_Sales_March_2024.xlsx", "2024-03-31", DateFromFilename, 1},
		{"upload date", nil, "export.xlsx", "2024-05-14", DateFromUpload, 0},
		{"unknown month name", nil, "Meridian_Sales_Smarch_2024.xlsx", "2024-05-14", DateFromUpload, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveDate(tt.user, tt.filename, meridian, uploaded)
			if got := res.Date.Format("2006-01-02"); got != tt.want {
				t.Errorf("date = %s, want %s", got, tt.want)
			}
			if res.Source != tt.source {
				t.Errorf("source = %s, want %s", res.Source, tt.source)
			}
			if len(res.Diagnostics) != tt.diags {
				t.Errorf("diagnostics = %v, want %d", res.Diagnostics, tt.diags)
			}
		})
	}
}

func TestCompileFilenamePatternNeedsGroups(t *testing.T) {
	if _, err := CompileFilenamePattern(`(?P<year>\d{4})`); err == nil {
		t.Error("pattern without month group accepted")
	}
	if _, err := CompileFilenamePattern(`(`); err == nil {
		t.Error("invalid regexp accepted")
	}
}

func TestCleaner(t *testing.T) {
	cleaner, err := NewCleaner([]config.CleanupRule{
		{Field: config.FieldAmount, Actions: []config.CleanupAction{
			{Type: "replace", Find: ".", Value: ""},
			{Type: "replace", Find: ",", Value: "."},
		}},
		{Field: config.FieldEAN, Actions: []config.CleanupAction{
			{Type: "extract_digits"},
		}},
		{Field: config.FieldName, Actions: []config.CleanupAction{
			{Type: "normalize_whitespace"},
			{Type: "lookup", LookupTable: map[string]string{"Wdgt A": "Widget A"}},
			{Type: "if_empty_use_default", Value: "Unknown"},
		}},
		{Field: config.FieldQuantity, Actions: []config.CleanupAction{
			{Type: "regex_replace", Find: `\s*pcs$`, Value: ""},
			{Type: "remove_leading_zeros"},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		field, in, want string
	}{
		{config.FieldAmount, "1.234,50", "1234.50"},
		{config.FieldEAN, "EAN: 4006381-333931", "4006381333931"},
		{config.FieldName, "  Wdgt    A ", "Widget A"},
		{config.FieldName, "   ", "Unknown"},
		{config.FieldQuantity, "007 pcs", "7"},
		{config.FieldQuantity, "000", "0"},
	}
	for _, tt := range tests {
		if got := cleaner.Clean(tt.field, tt.in); got != tt.want {
			t.Errorf("Clean(%s, %q) = %q, want %q", tt.field, tt.in, got, tt.want)
		}
	}

	var none *Cleaner
	if got := none.Clean(config.FieldName, " x "); got != " x " {
		t.Errorf("nil cleaner changed value to %q", got)
	}
}

func TestNewCleanerRejectsBadRules(t *testing.T) {
	if _, err := NewCleaner([]config.CleanupRule{{Field: "ean", Actions: []config.CleanupAction{{Type: "explode"}}}}); err == nil {
		t.Error("unknown action accepted")
	}
	if _, err := NewCleaner([]config.CleanupRule{{Field: "ean", Actions: []config.CleanupAction{{Type: "regex_replace", Find: "("}}}}); err == nil {
		t.Error("bad regexp accepted")
	}
}
