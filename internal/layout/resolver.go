// =============================================================================
// Sales Normalizer - Header Layout Resolver
// =============================================================================
//
// Vendor sheets carry 1 to 3 header rows above the data:
//
//   | Product |             | Flagship |       |     |       | Internet |       |
//   |         |             | Actual   |       | YTD |       | Actual   |       |
//   | EAN     | Description | Qty      | Sales | Qty | Sales | Qty      | Sales |
//
// Merged cells arrive as a label followed by blanks. Each header row is
// folded independently (CarryForward) and the per-column annotations are
// joined into (store, period, field) annotations. Only the first "Actual" quantity
// and amount column of every store is kept; YTD, Total and Budget columns
// are recognized and dropped here so they can never reach a record.
//
// =============================================================================

package layout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// =============================================================================
// SPEC
// =============================================================================

// Spec describes where a vendor keeps its header annotations.
type Spec struct {
	// StoreRow, PeriodRow and FieldRow index into the header rows passed to
	// Resolve. StoreRow -1 means the sheet has one implicit store named
	// ImplicitStore; PeriodRow -1 means every column is an Actual figure.
	StoreRow  int
	PeriodRow int
	FieldRow  int

	ImplicitStore string

	// SkipLabels are store-row labels that are structural, not stores.
	// Matching is exact and case-sensitive after trimming.
	SkipLabels []string

	// ActualLabel is the period label that is normalized. Default "Actual".
	ActualLabel string

	QuantityLabels []string
	AmountLabels   []string
	EANLabels      []string
	NameLabels     []string

	// KnownStores, when set, lists the store identifiers the vendor is
	// documented to send. Other detected stores are kept but marked
	// unrecognized so their rows are skipped rather than guessed.
	KnownStores []string
}

func (s Spec) actual() string {
	if s.ActualLabel == "" {
		return "Actual"
	}
	return s.ActualLabel
}

// =============================================================================
// LAYOUT
// =============================================================================

// Column is the joined annotation of one sheet column.
type Column struct {
	Index  int
	Store  string
	Period string
	Field  string
}

// StoreSection is one store's Actual quantity/amount column pair.
type StoreSection struct {
	Identifier     string
	DisplayName    string
	Channel        types.Channel
	QuantityColumn int
	AmountColumn   int

	// Recognized is false when the vendor declares KnownStores and this
	// store is not among them.
	Recognized bool
}

// HeaderLayout is the resolved column map for one sheet. It is built once
// and only read afterwards.
type HeaderLayout struct {
	Columns    []Column
	Stores     []StoreSection
	EANColumn  int
	NameColumn int

	// Warnings are header observations flagged for operator review.
	Warnings []types.Diagnostic
}

// StoreIdentifiers returns the identifiers of all detected stores in sheet
// order.
func (l *HeaderLayout) StoreIdentifiers() []string {
	ids := make([]string, len(l.Stores))
	for i, s := range l.Stores {
		ids[i] = s.Identifier
	}
	return ids
}

// MetadataColumns returns the product EAN and name columns that exist.
func (l *HeaderLayout) MetadataColumns() []int {
	var cols []int
	if l.EANColumn >= 0 {
		cols = append(cols, l.EANColumn)
	}
	if l.NameColumn >= 0 {
		cols = append(cols, l.NameColumn)
	}
	return cols
}

// SectionColumns returns every quantity and amount column in use, sorted.
func (l *HeaderLayout) SectionColumns() []int {
	cols := make([]int, 0, 2*len(l.Stores))
	for _, s := range l.Stores {
		cols = append(cols, s.QuantityColumn, s.AmountColumn)
	}
	sort.Ints(cols)
	return cols
}

// TrackedColumns returns metadata and section columns, sorted.
func (l *HeaderLayout) TrackedColumns() []int {
	cols := append(l.MetadataColumns(), l.SectionColumns()...)
	sort.Ints(cols)
	return cols
}

// =============================================================================
// RESOLVE
// =============================================================================

// Resolve builds a HeaderLayout from the vendor's header rows.
//
// RETURNS:
//   - the layout, or a *StructuralError when no store is detected, a store
//     lacks an Actual quantity or amount column, or no product name column
//     exists.
func Resolve(header [][]string, spec Spec) (*HeaderLayout, error) {
	if len(header) == 0 {
		return nil, structural("", "no header rows")
	}
	for _, r := range []int{spec.StoreRow, spec.PeriodRow, spec.FieldRow} {
		if r >= len(header) {
			return nil, structural("", "header row %d missing (sheet has %d header rows)", r+1, len(header))
		}
	}
	if spec.FieldRow < 0 {
		return nil, structural("", "vendor declares no field label row")
	}

	width := 0
	for _, row := range header {
		if len(row) > width {
			width = len(row)
		}
	}

	var stores, periods []string
	if spec.StoreRow >= 0 {
		stores = CarryForward(header[spec.StoreRow], width)
	} else {
		stores = constant(spec.ImplicitStore, width)
	}
	if spec.PeriodRow >= 0 {
		periods = CarryForward(header[spec.PeriodRow], width)
	} else {
		periods = constant(spec.actual(), width)
	}
	fields := CarryForward(header[spec.FieldRow], width)

	l := &HeaderLayout{
		Columns:    make([]Column, width),
		EANColumn:  -1,
		NameColumn: -1,
	}
	for i := 0; i < width; i++ {
		l.Columns[i] = Column{Index: i, Store: stores[i], Period: periods[i], Field: fields[i]}
	}

	spans, warnings := detectStores(l.Columns, spec)
	l.Warnings = warnings
	if len(spans) == 0 {
		return nil, structural("", "header layout unrecognized: no store sections detected")
	}

	sectionCols := make(map[int]bool)
	for _, sp := range spans {
		section, err := selectSection(sp, spec)
		if err != nil {
			return nil, err
		}
		l.Stores = append(l.Stores, section)
		sectionCols[section.QuantityColumn] = true
		sectionCols[section.AmountColumn] = true
	}

	rawFields := header[spec.FieldRow]
	l.EANColumn = findMetadata(header, rawFields, spec.EANLabels, sectionCols)
	l.NameColumn = findMetadata(header, rawFields, spec.NameLabels, sectionCols)
	if l.NameColumn < 0 {
		return nil, structural("", "no product name column (looked for %s)", strings.Join(spec.NameLabels, ", "))
	}

	return l, nil
}

// storeSpan is the set of columns under one store label.
type storeSpan struct {
	label   string
	columns []Column
}

// detectStores groups columns by store label in order of first appearance.
// Empty and skip-listed labels are not stores.
func detectStores(columns []Column, spec Spec) ([]storeSpan, []types.Diagnostic) {
	skip := make(map[string]bool, len(spec.SkipLabels))
	for _, s := range spec.SkipLabels {
		skip[s] = true
	}

	var spans []storeSpan
	var warnings []types.Diagnostic
	index := make(map[string]int)
	for _, c := range columns {
		if c.Store == "" || skip[c.Store] {
			continue
		}
		i, ok := index[c.Store]
		if !ok {
			if variant := caseVariant(c.Store, spec.SkipLabels); variant != "" {
				warnings = append(warnings, types.Diagnostic{
					Kind:   types.DiagHeaderLabelVariant,
					Detail: fmt.Sprintf("store label %q differs from skip label %q only by case; treated as a store", c.Store, variant),
				})
			}
			i = len(spans)
			index[c.Store] = i
			spans = append(spans, storeSpan{label: c.Store})
		}
		spans[i].columns = append(spans[i].columns, c)
	}
	return spans, warnings
}

func caseVariant(label string, skipLabels []string) string {
	for _, s := range skipLabels {
		if strings.EqualFold(label, s) {
			return s
		}
	}
	return ""
}

// selectSection keeps the first Actual quantity and Actual amount column of
// a store span. Every other period is discarded.
func selectSection(sp storeSpan, spec Spec) (StoreSection, error) {
	id := NormalizeStoreID(sp.label)
	section := StoreSection{
		Identifier:     id,
		DisplayName:    sp.label,
		Channel:        types.ChannelForStore(id),
		QuantityColumn: -1,
		AmountColumn:   -1,
		Recognized:     len(spec.KnownStores) == 0 || contains(spec.KnownStores, id),
	}

	actual := spec.actual()
	for _, c := range sp.columns {
		if c.Period != actual {
			continue
		}
		if section.QuantityColumn < 0 && contains(spec.QuantityLabels, c.Field) {
			section.QuantityColumn = c.Index
			continue
		}
		if section.AmountColumn < 0 && contains(spec.AmountLabels, c.Field) {
			section.AmountColumn = c.Index
		}
	}

	if section.QuantityColumn < 0 {
		return section, structural(sp.label, "no %s quantity column", actual)
	}
	if section.AmountColumn < 0 {
		return section, structural(sp.label, "no %s amount column", actual)
	}
	return section, nil
}

// findMetadata returns the first column not used by a store section whose
// label is one of labels. The field row is searched first, then the other
// header rows, using raw (not carried) labels.
func findMetadata(header [][]string, fieldRow []string, labels []string, used map[int]bool) int {
	search := func(row []string) int {
		for i, cell := range row {
			if used[i] {
				continue
			}
			if contains(labels, strings.TrimSpace(cell)) {
				return i
			}
		}
		return -1
	}
	if i := search(fieldRow); i >= 0 {
		return i
	}
	for _, row := range header {
		if i := search(row); i >= 0 {
			return i
		}
	}
	return -1
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
