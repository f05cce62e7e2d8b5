// =============================================================================
// Sales Normalizer - Batch Accumulator
// =============================================================================
//
// Collects the records, skips and diagnostics of one sheet into a Result,
// the only thing the core hands back to the upload pipeline. A structural
// error discards everything collected so far: a sheet is written whole or
// not at all.
//
// =============================================================================

package batch

import (
	"sort"

	"github.com/ginjaninja78/sales-normalizer/internal/layout"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// Result is the outcome of normalizing one file.
type Result struct {
	VendorID string `json:"vendor_id"`
	UploadID string `json:"upload_id"`
	FileName string `json:"file_name"`

	// RowsSeen counts data rows up to the last row with tracked content.
	RowsSeen int `json:"rows_seen"`

	Records     []types.UnifiedSaleRecord `json:"records"`
	Skips       []types.SkipDecision      `json:"skips"`
	Diagnostics []types.Diagnostic        `json:"diagnostics"`

	// StructuralError is set when the sheet was rejected as a whole. Records
	// and Skips are then empty.
	StructuralError *layout.StructuralError `json:"-"`
}

// Failed reports whether the sheet was rejected.
func (r *Result) Failed() bool {
	return r.StructuralError != nil
}

// Err returns the structural error as an error, or nil.
func (r *Result) Err() error {
	if r.StructuralError == nil {
		return nil
	}
	return r.StructuralError
}

// SkipsByReason counts skip decisions per reason.
func (r *Result) SkipsByReason() map[types.SkipReason]int {
	counts := make(map[types.SkipReason]int)
	for _, s := range r.Skips {
		counts[s.Reason]++
	}
	return counts
}

// SkippedRows counts distinct source rows with at least one skip.
func (r *Result) SkippedRows() int {
	rows := make(map[int]struct{}, len(r.Skips))
	for _, s := range r.Skips {
		rows[s.Row] = struct{}{}
	}
	return len(rows)
}

// ReasonCount is one line of a skip breakdown.
type ReasonCount struct {
	Reason types.SkipReason `json:"reason"`
	Count  int              `json:"count"`
}

// Summary is the compact, JSON-friendly view of a Result.
type Summary struct {
	VendorID        string        `json:"vendor_id"`
	UploadID        string        `json:"upload_id"`
	FileName        string        `json:"file_name"`
	RowsSeen        int           `json:"rows_seen"`
	RecordsEmitted  int           `json:"records_emitted"`
	RowsSkipped     int           `json:"rows_skipped"`
	SkipsByReason   []ReasonCount `json:"skips_by_reason"`
	Diagnostics     int           `json:"diagnostics"`
	StructuralError string        `json:"structural_error,omitempty"`
}

// Summary returns counts only, reasons sorted by name.
func (r *Result) Summary() Summary {
	s := Summary{
		VendorID:       r.VendorID,
		UploadID:       r.UploadID,
		FileName:       r.FileName,
		RowsSeen:       r.RowsSeen,
		RecordsEmitted: len(r.Records),
		RowsSkipped:    r.SkippedRows(),
		Diagnostics:    len(r.Diagnostics),
		SkipsByReason:  []ReasonCount{},
	}
	for reason, n := range r.SkipsByReason() {
		s.SkipsByReason = append(s.SkipsByReason, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(s.SkipsByReason, func(i, j int) bool {
		return s.SkipsByReason[i].Reason < s.SkipsByReason[j].Reason
	})
	if r.StructuralError != nil {
		s.StructuralError = r.StructuralError.Error()
	}
	return s
}

// =============================================================================
// ACCUMULATOR
// =============================================================================

// Accumulator builds a Result for one file. It is not safe for concurrent
// use; each file gets its own.
type Accumulator struct {
	res     Result
	aborted bool
}

// NewAccumulator starts an empty Result.
func NewAccumulator(vendorID, uploadID, fileName string) *Accumulator {
	return &Accumulator{res: Result{
		VendorID: vendorID,
		UploadID: uploadID,
		FileName: fileName,
	}}
}

// SetRowsSeen records the number of data rows walked.
func (a *Accumulator) SetRowsSeen(n int) {
	a.res.RowsSeen = n
}

// AddRecords appends records unless the sheet was aborted.
func (a *Accumulator) AddRecords(records ...types.UnifiedSaleRecord) {
	if a.aborted {
		return
	}
	a.res.Records = append(a.res.Records, records...)
}

// AddSkips appends skips unless the sheet was aborted.
func (a *Accumulator) AddSkips(skips ...types.SkipDecision) {
	if a.aborted {
		return
	}
	a.res.Skips = append(a.res.Skips, skips...)
}

// AddDiagnostics appends diagnostics. They survive an abort so operators
// can see what was noticed before the sheet was rejected.
func (a *Accumulator) AddDiagnostics(diags ...types.Diagnostic) {
	a.res.Diagnostics = append(a.res.Diagnostics, diags...)
}

// Abort rejects the sheet, dropping all records and skips.
func (a *Accumulator) Abort(err *layout.StructuralError) {
	a.aborted = true
	a.res.StructuralError = err
	a.res.Records = nil
	a.res.Skips = nil
}

// Result returns the accumulated Result with skips in row order. Slices
// are never nil.
func (a *Accumulator) Result() *Result {
	res := a.res
	res.Skips = append([]types.SkipDecision(nil), a.res.Skips...)
	sort.SliceStable(res.Skips, func(i, j int) bool {
		return res.Skips[i].Row < res.Skips[j].Row
	})
	if res.Records == nil {
		res.Records = []types.UnifiedSaleRecord{}
	}
	if res.Skips == nil {
		res.Skips = []types.SkipDecision{}
	}
	if res.Diagnostics == nil {
		res.Diagnostics = []types.Diagnostic{}
	}
	return &res
}
