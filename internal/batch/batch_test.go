package batch

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sales-normalizer/internal/layout"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator("meridian", "u-1", "Meridian_Sales_March_2024.xlsx")
	acc.SetRowsSeen(6)
	acc.AddRecords(types.UnifiedSaleRecord{FunctionalName: "A", Quantity: 1, SalesAmount: decimal.NewFromInt(2)})
	acc.AddSkips(
		types.SkipDecision{Row: 5, Store: "flagship", Reason: types.ReasonZeroQuantity},
		types.SkipDecision{Row: 5, Store: "internet", Reason: types.ReasonZeroQuantity},
		types.SkipDecision{Row: 9, Reason: types.ReasonSummaryRow},
	)
	acc.AddDiagnostics(types.Diagnostic{Row: 7, Kind: types.DiagLookupMiss})

	res := acc.Result()
	if res.Failed() || res.Err() != nil {
		t.Fatalf("unexpected failure: %v", res.Err())
	}
	if res.RowsSeen != 6 || len(res.Records) != 1 || len(res.Skips) != 3 || len(res.Diagnostics) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if got := res.SkippedRows(); got != 2 {
		t.Errorf("SkippedRows = %d, want 2", got)
	}

	by := res.SkipsByReason()
	if by[types.ReasonZeroQuantity] != 2 || by[types.ReasonSummaryRow] != 1 {
		t.Errorf("SkipsByReason = %v", by)
	}

	s := res.Summary()
	if s.RecordsEmitted != 1 || s.RowsSkipped != 2 || len(s.SkipsByReason) != 2 {
		t.Fatalf("summary = %+v", s)
	}
	if s.SkipsByReason[0].Reason != types.ReasonSummaryRow || s.SkipsByReason[1].Reason != types.ReasonZeroQuantity {
		t.Errorf("summary reasons not sorted: %+v", s.SkipsByReason)
	}
}

func TestAccumulatorAbort(t *testing.T) {
	acc := NewAccumulator("meridian", "u-1", "f.xlsx")
	acc.AddRecords(types.UnifiedSaleRecord{FunctionalName: "A", Quantity: 1, SalesAmount: decimal.NewFromInt(2)})
	acc.AddSkips(types.SkipDecision{Row: 5, Reason: types.ReasonMissingName})
	acc.AddDiagnostics(types.Diagnostic{Kind: types.DiagHeaderLabelVariant})

	acc.Abort(&layout.StructuralError{Store: "Internet", Reason: "no Actual quantity column"})
	acc.AddRecords(types.UnifiedSaleRecord{FunctionalName: "B", Quantity: 1, SalesAmount: decimal.NewFromInt(2)})
	acc.AddSkips(types.SkipDecision{Row: 6, Reason: types.ReasonMissingName})

	res := acc.Result()
	if !res.Failed() || res.Err() == nil {
		t.Fatal("expected failed result")
	}
	if len(res.Records) != 0 || len(res.Skips) != 0 {
		t.Errorf("abort kept records %v skips %v", res.Records, res.Skips)
	}
	if len(res.Diagnostics) != 1 {
		t.Errorf("diagnostics = %v, want the header warning kept", res.Diagnostics)
	}
	if s := res.Summary(); s.StructuralError == "" || s.RecordsEmitted != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestEmptyResultSlicesNotNil(t *testing.T) {
	res := NewAccumulator("linden", "u", "f.csv").Result()
	if res.Records == nil || res.Skips == nil || res.Diagnostics == nil {
		t.Errorf("nil slices in %+v", res)
	}
}

func TestResultSkipsInRowOrder(t *testing.T) {
	acc := NewAccumulator("meridian", "u", "f.xlsx")
	acc.AddSkips(
		types.SkipDecision{Row: 9, Reason: types.ReasonSummaryRow},
		types.SkipDecision{Row: 5, Store: "flagship", Reason: types.ReasonZeroQuantity},
		types.SkipDecision{Row: 5, Store: "internet", Reason: types.ReasonZeroQuantity},
	)
	skips := acc.Result().Skips
	if skips[0].Row != 5 || skips[0].Store != "flagship" || skips[1].Store != "internet" || skips[2].Row != 9 {
		t.Errorf("skips = %v", skips)
	}
}
