// =============================================================================
// Sales Normalizer - Shared Types
// =============================================================================
//
// This package contains the model shared by every stage of the ingestion
// core. Keeping it in one leaf package avoids import cycles between:
//   - layout, vendor      (read SourceSheet)
//   - normalize, record   (produce UnifiedSaleRecord / SkipDecision)
//   - batch, storage      (own and persist the results)
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SOURCE SHEET
// =============================================================================

// SourceSheet is an immutable, row-major grid of cell values as read from a
// vendor file. Rows may be ragged: a cell past the end of its row is absent,
// which is distinct from a present cell holding the empty string.
type SourceSheet struct {
	name  string
	rows  [][]string
	width int
}

// NewSourceSheet copies rows into a new SourceSheet.
func NewSourceSheet(name string, rows [][]string) *SourceSheet {
	s := &SourceSheet{
		name: name,
		rows: make([][]string, len(rows)),
	}
	for i, row := range rows {
		s.rows[i] = append([]string(nil), row...)
		if len(row) > s.width {
			s.width = len(row)
		}
	}
	return s
}

// Name returns the sheet name (or file name for single-sheet sources).
func (s *SourceSheet) Name() string { return s.name }

// NumRows returns the number of rows, including header rows.
func (s *SourceSheet) NumRows() int { return len(s.rows) }

// Width returns the length of the widest row.
func (s *SourceSheet) Width() int { return s.width }

// Cell returns the value at (row, col), both 0-based. The boolean is false
// when the cell is absent.
func (s *SourceSheet) Cell(row, col int) (string, bool) {
	if row < 0 || row >= len(s.rows) || col < 0 || col >= len(s.rows[row]) {
		return "", false
	}
	return s.rows[row][col], true
}

// Value returns the cell value with surrounding whitespace removed. Absent
// cells read as "".
func (s *SourceSheet) Value(row, col int) string {
	v, _ := s.Cell(row, col)
	return strings.TrimSpace(v)
}

// Row returns a copy of row i, or nil when out of range.
func (s *SourceSheet) Row(i int) []string {
	if i < 0 || i >= len(s.rows) {
		return nil
	}
	return append([]string(nil), s.rows[i]...)
}

// =============================================================================
// CANONICAL OUTPUT
// =============================================================================

// Channel is the sales channel of a record.
type Channel string

const (
	ChannelOnline  Channel = "online"
	ChannelOffline Channel = "offline"
)

// UnifiedSaleRecord is the canonical sale record consumed downstream.
// Quantity and SalesAmount are always strictly positive.
type UnifiedSaleRecord struct {
	ProductEAN      *string         `json:"product_ean"`
	FunctionalName  string          `json:"functional_name"`
	Quantity        int             `json:"quantity"`
	SalesAmount     decimal.Decimal `json:"sales_amount"`
	SaleDate        time.Time       `json:"sale_date"`
	SalesChannel    Channel         `json:"sales_channel"`
	StoreIdentifier string          `json:"store_identifier"`
	ResellerID      string          `json:"reseller_id"`
	UploadID        string          `json:"upload_id"`
	Month           int             `json:"month"`
	Year            int             `json:"year"`

	// SourceRow is the 1-based sheet row the record was read from.
	SourceRow int `json:"source_row"`
}

// EAN returns the product EAN or "" when it is null.
func (r UnifiedSaleRecord) EAN() string {
	if r.ProductEAN == nil {
		return ""
	}
	return *r.ProductEAN
}

// =============================================================================
// SKIPS AND DIAGNOSTICS
// =============================================================================

// SkipReason classifies why a row or store section produced no record.
type SkipReason string

const (
	ReasonZeroQuantity        SkipReason = "ZeroQuantity"
	ReasonNegativeQuantity    SkipReason = "NegativeQuantity"
	ReasonInvalidQuantity     SkipReason = "InvalidQuantity"
	ReasonZeroAmount          SkipReason = "ZeroAmount"
	ReasonNegativeAmount      SkipReason = "NegativeAmount"
	ReasonInvalidAmount       SkipReason = "InvalidAmount"
	ReasonMissingName         SkipReason = "MissingName"
	ReasonUnrecognizedStore   SkipReason = "UnrecognizedStore"
	ReasonUnsupportedCurrency SkipReason = "UnsupportedCurrency"
	ReasonSummaryRow          SkipReason = "SummaryRow"
	ReasonOrphanMetadata      SkipReason = "OrphanMetadata"
	ReasonOrphanSales         SkipReason = "OrphanSales"
	ReasonNoSalesData         SkipReason = "NoSalesData"
)

// SkipDecision is produced in place of a record when a validation gate fails.
type SkipDecision struct {
	// Row is the 1-based sheet row the decision refers to.
	Row int `json:"row"`

	// Store is the store identifier for section-level skips, "" for rows.
	Store string `json:"store,omitempty"`

	Reason     SkipReason `json:"reason"`
	RawContext string     `json:"raw_context"`
}

func (d SkipDecision) String() string {
	if d.Store == "" {
		return fmt.Sprintf("row %d: %s (%s)", d.Row, d.Reason, d.RawContext)
	}
	return fmt.Sprintf("row %d store %s: %s (%s)", d.Row, d.Store, d.Reason, d.RawContext)
}

// DiagnosticKind classifies non-fatal observations that do not skip data.
type DiagnosticKind string

const (
	DiagLookupMiss         DiagnosticKind = "LookupMiss"
	DiagHeaderLabelVariant DiagnosticKind = "HeaderLabelVariant"
	DiagInvalidUserPeriod  DiagnosticKind = "InvalidUserPeriod"
)

// Diagnostic flags something for operator review.
type Diagnostic struct {
	Row    int            `json:"row,omitempty"`
	Kind   DiagnosticKind `json:"kind"`
	Detail string         `json:"detail"`
}

// onlineStores lists the store identifiers that denote the online channel.
var onlineStores = map[string]bool{
	"internet": true,
	"online":   true,
}

// ChannelForStore maps a normalized store identifier to its sales channel.
// Anything not known to be online is offline.
func ChannelForStore(storeID string) Channel {
	if onlineStores[storeID] {
		return ChannelOnline
	}
	return ChannelOffline
}
