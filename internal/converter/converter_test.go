package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sales-normalizer/internal/batch"
	"github.com/ginjaninja78/sales-normalizer/internal/catalog"
	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
	"github.com/ginjaninja78/sales-normalizer/pkg/utils"
)

const meridianFile = "Meridian_Sales_March_2024.xlsx"

// meridianRows is a two-store Meridian sheet: one complete product, one
// product with an invalid EAN, a product that only sold in YTD (its Actual
// figures are blank, so the row pair never closes), and the channel total
// row.
func meridianRows() [][]string {
	return [][]string{
		{"Product", "", "Flagship", "", "", "", "Internet", "", "", "", "All Sales Channels", "", "", ""},
		{"", "", "Actual", "", "YTD", "", "Actual", "", "YTD", "", "Actual", "", "YTD", ""},
		{"EAN", "Description", "Qty", "Sales", "Qty", "Sales", "Qty", "Sales", "Qty", "Sales", "Qty", "Sales", "Qty", "Sales"},
		{"5012345678900", "Widget A"},
		{"", "", "1", "99", "71", "328", "12", "1210", "150", "9000", "13", "1309", "221", "9328"},
		{"n/a", "Widget B"},
		{"", "", "0", "0", "4", "20", "2", "50", "9", "90", "2", "50", "13", "110"},
		{"5098765432109", "Widget C"},
		{"", "", "", "", "3", "30", "", "", "1", "10", "", "", "4", "40"},
		{"", "All Sales Channels", "1", "99", "75", "358", "14", "1260", "160", "9100", "15", "1359", "235", "9458"},
	}
}

func testRates(t *testing.T) *normalize.StaticRates {
	t.Helper()
	rates, err := normalize.NewStaticRates("EUR", map[string]float64{"GBP": 1.17, "SEK": 0.088})
	if err != nil {
		t.Fatal(err)
	}
	return rates
}

func meridianInput() Input {
	return Input{
		VendorID:   "meridian",
		FileName:   meridianFile,
		ResellerID: "reseller-7",
		UploadID:   "upload-1",
		UploadedAt: time.Date(2024, 4, 3, 10, 0, 0, 0, time.UTC),
	}
}

func TestNormalizeMeridian(t *testing.T) {
	engine := NewEngine(testRates(t), nil)
	sheet := types.NewSourceSheet("Sheet1", meridianRows())

	res, err := engine.Normalize(context.Background(), sheet, meridianInput())
	if err != nil {
		t.Fatal(err)
	}
	if res.Failed() {
		t.Fatalf("structural error: %v", res.StructuralError)
	}

	// Widget A (2 stores) and Widget B's internet section.
	if len(res.Records) != 3 {
		t.Fatalf("got %d records: %+v", len(res.Records), res.Records)
	}

	a1, a2 := res.Records[0], res.Records[1]
	if a1.StoreIdentifier != "flagship" || a1.SalesChannel != types.ChannelOffline ||
		a1.Quantity != 1 || a1.SalesAmount.StringFixed(2) != "115.83" {
		t.Errorf("flagship record = %+v", a1)
	}
	if a2.StoreIdentifier != "internet" || a2.SalesChannel != types.ChannelOnline ||
		a2.Quantity != 12 || a2.SalesAmount.StringFixed(2) != "1415.70" {
		t.Errorf("internet record = %+v", a2)
	}
	for _, r := range []types.UnifiedSaleRecord{a1, a2} {
		if r.EAN() != "5012345678900" || r.SourceRow != 5 {
			t.Errorf("record ean/row = %q/%d", r.EAN(), r.SourceRow)
		}
		if !r.SaleDate.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)) || r.Month != 3 || r.Year != 2024 {
			t.Errorf("record date = %v %d/%d", r.SaleDate, r.Month, r.Year)
		}
		if r.ResellerID != "reseller-7" || r.UploadID != "upload-1" {
			t.Errorf("record ids = %q %q", r.ResellerID, r.UploadID)
		}
	}

	// YTD figures never leak into a record.
	for _, r := range res.Records {
		if r.Quantity == 71 || r.Quantity == 150 || r.SalesAmount.StringFixed(2) == "383.76" {
			t.Errorf("YTD value leaked: %+v", r)
		}
	}

	b := res.Records[2]
	if b.ProductEAN != nil || b.FunctionalName != "Widget B" || b.StoreIdentifier != "internet" {
		t.Errorf("widget B record = %+v", b)
	}

	gotReasons := make(map[types.SkipReason]int)
	for _, s := range res.Skips {
		gotReasons[s.Reason]++
	}
	wantReasons := map[types.SkipReason]int{
		types.ReasonZeroQuantity:   1,
		types.ReasonOrphanMetadata: 1,
		types.ReasonSummaryRow:     1,
	}
	if !reflect.DeepEqual(gotReasons, wantReasons) {
		t.Errorf("skips = %v, want %v", gotReasons, wantReasons)
	}

	var misses int
	for _, d := range res.Diagnostics {
		if d.Kind == types.DiagLookupMiss {
			misses++
		}
	}
	if misses != 1 {
		t.Errorf("lookup misses = %d, diagnostics %v", misses, res.Diagnostics)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	engine := NewEngine(testRates(t), nil)
	sheet := types.NewSourceSheet("Sheet1", meridianRows())

	first, err := engine.Normalize(context.Background(), sheet, meridianInput())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Normalize(context.Background(), sheet, meridianInput())
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs", i)
		}
	}
}

func TestNormalizeConcurrentSheets(t *testing.T) {
	engine := NewEngine(testRates(t), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := meridianInput()
			in.UploadID = fmt.Sprintf("upload-%d", i)
			res, err := engine.Normalize(context.Background(), types.NewSourceSheet("Sheet1", meridianRows()), in)
			if err != nil {
				errs <- err
				return
			}
			for _, r := range res.Records {
				if r.UploadID != in.UploadID {
					errs <- fmt.Errorf("record carries %q, want %q", r.UploadID, in.UploadID)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestNormalizeCatalogFallback(t *testing.T) {
	cat, _ := catalog.New([]catalog.Entry{{Name: "Widget B", EAN: "4006381333931"}})
	engine := NewEngine(testRates(t), cat)

	res, err := engine.Normalize(context.Background(), types.NewSourceSheet("Sheet1", meridianRows()), meridianInput())
	if err != nil {
		t.Fatal(err)
	}
	b := res.Records[2]
	if b.EAN() != "4006381333931" {
		t.Errorf("widget B ean = %q", b.EAN())
	}
	for _, d := range res.Diagnostics {
		if d.Kind == types.DiagLookupMiss {
			t.Errorf("unexpected miss %v", d)
		}
	}
}

func TestNormalizeStructuralError(t *testing.T) {
	rows := meridianRows()
	// Flagship loses its Actual amount column.
	rows[2][3] = "Margin"

	engine := NewEngine(testRates(t), nil)
	res, err := engine.Normalize(context.Background(), types.NewSourceSheet("Sheet1", rows), meridianInput())
	if err != nil {
		t.Fatalf("structural errors are reported in the result, got %v", err)
	}
	if !res.Failed() {
		t.Fatal("expected structural error")
	}
	if len(res.Records) != 0 || len(res.Skips) != 0 {
		t.Errorf("rejected sheet kept %d records, %d skips", len(res.Records), len(res.Skips))
	}
	if res.StructuralError.Store != "Flagship" {
		t.Errorf("store = %q", res.StructuralError.Store)
	}
}

func TestNormalizeUnsupportedCurrency(t *testing.T) {
	engine := NewEngine(testRates(t), nil)
	in := meridianInput()
	in.Overrides.Currency = "CHF"

	res, err := engine.Normalize(context.Background(), types.NewSourceSheet("Sheet1", meridianRows()), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 0 {
		t.Errorf("got %d records in an unconvertible currency", len(res.Records))
	}
	var unsupported int
	for _, s := range res.Skips {
		if s.Reason == types.ReasonUnsupportedCurrency {
			unsupported++
		}
	}
	if unsupported != 2 {
		t.Errorf("unsupported currency skips = %d, want one per product", unsupported)
	}
}

func TestNormalizeUserPeriodWins(t *testing.T) {
	engine := NewEngine(testRates(t), nil)
	in := meridianInput()
	in.Period = &normalize.Period{Year: 2023, Month: 2}

	res, err := engine.Normalize(context.Background(), types.NewSourceSheet("Sheet1", meridianRows()), in)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Records {
		if r.SaleDate.Format("2006-01-02") != "2023-02-28" {
			t.Fatalf("sale date = %v", r.SaleDate)
		}
	}
}

func TestNormalizeUnknownVendor(t *testing.T) {
	engine := NewEngine(testRates(t), nil)
	in := meridianInput()
	in.VendorID = "nobody"
	if _, err := engine.Normalize(context.Background(), types.NewSourceSheet("Sheet1", meridianRows()), in); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(testRates(t), nil)
	_, err := engine.Normalize(ctx, types.NewSourceSheet("Sheet1", meridianRows()), meridianInput())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

// =============================================================================
// FILE PIPELINE
// =============================================================================

type memorySink struct {
	mu      sync.Mutex
	batches []*batch.Result
	err     error
}

func (s *memorySink) WriteBatch(_ context.Context, res *batch.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, res)
	return nil
}

func writeWorkbook(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &cells); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
}

func pipelineDirs(t *testing.T) *utils.FileManager {
	t.Helper()
	root := t.TempDir()
	fm := utils.NewFileManager(filepath.Join(root, "in"), filepath.Join(root, "out"), filepath.Join(root, "archive"))
	if err := fm.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return fm
}

func meridianConfig() *config.VendorConfig {
	return &config.VendorConfig{
		VendorID:             "meridian",
		ResellerID:           "meridian",
		FileMatchingPatterns: []string{"Meridian*.xlsx"},
	}
}

func TestRunWritesOutputsAndArchives(t *testing.T) {
	fm := pipelineDirs(t)
	input := filepath.Join(fm.InputDir, meridianFile)
	writeWorkbook(t, input, meridianRows())

	sink := &memorySink{}
	res := New(input, meridianConfig(), NewEngine(testRates(t), nil), Options{
		ResellerID: "reseller-7",
		UploadID:   "upload-1",
		Sink:       sink,
		Files:      fm,
	}).Run(context.Background())

	if !res.Success {
		t.Fatalf("run failed: %v", res.Error)
	}
	if res.Stats.RecordsEmitted != 3 || res.Stats.Skips != 3 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if len(sink.batches) != 1 || sink.batches[0].Records[0].ResellerID != "reseller-7" {
		t.Errorf("sink got %d batches", len(sink.batches))
	}

	for _, p := range []string{res.ReportFile, res.RecordsFile, res.ArchivePath} {
		if !utils.FileExists(p) {
			t.Errorf("missing %q", p)
		}
	}
	if utils.FileExists(input) {
		t.Error("input not archived")
	}

	data, err := os.ReadFile(res.RecordsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "5012345678900,Widget A,12,1415.70,2024-03-31,online,internet,reseller-7,upload-1,3,2024,5") {
		t.Errorf("records export:\n%s", data)
	}
}

func TestRunDryRun(t *testing.T) {
	fm := pipelineDirs(t)
	input := filepath.Join(fm.InputDir, meridianFile)
	writeWorkbook(t, input, meridianRows())

	sink := &memorySink{}
	res := New(input, meridianConfig(), NewEngine(testRates(t), nil), Options{
		DryRun:    true,
		Sink:      sink,
		Files:     fm,
		ExportXML: true,
	}).Run(context.Background())

	if !res.Success {
		t.Fatalf("run failed: %v", res.Error)
	}
	if res.UploadID == "" {
		t.Error("no upload id generated")
	}
	if len(sink.batches) != 0 {
		t.Error("dry run reached the sink")
	}
	if !utils.FileExists(input) || res.ArchivePath != "" {
		t.Error("dry run archived the input")
	}
	if !utils.FileExists(res.ReportFile) {
		t.Error("dry run should still write the skip report")
	}
	if !strings.HasSuffix(res.XMLFile, "_records.xml") || !utils.FileExists(res.XMLFile) {
		t.Errorf("xml export = %q", res.XMLFile)
	}
}

func TestRunStructuralErrorWritesNothing(t *testing.T) {
	fm := pipelineDirs(t)
	rows := meridianRows()
	rows[2][7] = "Margin"
	input := filepath.Join(fm.InputDir, meridianFile)
	writeWorkbook(t, input, rows)

	sink := &memorySink{}
	res := New(input, meridianConfig(), NewEngine(testRates(t), nil), Options{Sink: sink, Files: fm}).Run(context.Background())

	if res.Success || res.ErrorType != ErrorTypeStructural {
		t.Fatalf("result = %+v", res)
	}
	if len(sink.batches) != 0 {
		t.Error("rejected sheet reached the sink")
	}
	if !utils.FileExists(input) {
		t.Error("rejected input was moved")
	}
	entries, err := os.ReadDir(fm.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output dir has %d files", len(entries))
	}
}

func TestRunSinkFailureKeepsInput(t *testing.T) {
	fm := pipelineDirs(t)
	input := filepath.Join(fm.InputDir, meridianFile)
	writeWorkbook(t, input, meridianRows())

	sink := &memorySink{err: errors.New("connection refused")}
	res := New(input, meridianConfig(), NewEngine(testRates(t), nil), Options{Sink: sink, Files: fm}).Run(context.Background())

	if res.Success || res.ErrorType != ErrorTypeSink {
		t.Fatalf("result = %+v", res)
	}
	if !utils.FileExists(input) {
		t.Error("input archived although the batch was not stored")
	}
}

func TestRunLoadError(t *testing.T) {
	fm := pipelineDirs(t)
	input := filepath.Join(fm.InputDir, "Meridian_notes.txt")
	if err := os.WriteFile(input, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	res := New(input, meridianConfig(), NewEngine(testRates(t), nil), Options{Files: fm}).Run(context.Background())
	if res.Success || res.ErrorType != ErrorTypeLoad {
		t.Fatalf("result = %+v", res)
	}
}

func TestReadSheetCSV(t *testing.T) {
	vcfg := &config.VendorConfig{VendorID: "linden", CSVSettings: config.CSVSettings{Delimiter: ";", Encoding: "UTF-8"}}
	sheet, err := ReadSheet(strings.NewReader("GTIN;Product;Quantity;Turnover EUR\n4006381333931;Pen;3;4,50\n"), "/tmp/linden_20240315.csv", vcfg)
	if err != nil {
		t.Fatal(err)
	}
	if sheet.Name() != "linden_20240315.csv" || sheet.NumRows() != 2 || sheet.Value(1, 1) != "Pen" {
		t.Errorf("sheet = %s %d rows", sheet.Name(), sheet.NumRows())
	}
}

func TestNormalizeOutOfRangeFigures(t *testing.T) {
	engine := NewEngine(testRates(t), nil)
	sheet := types.NewSourceSheet("Sheet1", [][]string{
		{"GTIN", "Product", "Quantity", "Turnover EUR"},
		{"4006381333931", "Pen", "2147483648", "4.50"},
		{"4006381333931", "Cap", "1", "1000000000000"},
		{"4006381333931", "Hat", "2147483647", "999999999999.99"},
	})

	res, err := engine.Normalize(context.Background(), sheet, Input{
		VendorID: "linden", FileName: "linden_20240315.csv", ResellerID: "r", UploadID: "u",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 1 || res.Records[0].FunctionalName != "Hat" || res.Records[0].Quantity != 2147483647 {
		t.Fatalf("records = %+v", res.Records)
	}
	if len(res.Skips) != 2 ||
		res.Skips[0].Row != 2 || res.Skips[0].Reason != types.ReasonInvalidQuantity ||
		res.Skips[1].Row != 3 || res.Skips[1].Reason != types.ReasonInvalidAmount {
		t.Errorf("skips = %+v", res.Skips)
	}
}
