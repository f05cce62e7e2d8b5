package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// RecordColumns is the header of the record export.
var RecordColumns = []string{
	"product_ean", "functional_name", "quantity", "sales_amount", "sale_date",
	"sales_channel", "store_identifier", "reseller_id", "upload_id", "month",
	"year", "source_row",
}

// WriteRecordsCSV writes records as CSV. A null EAN is an empty cell and
// amounts always carry 2 decimal places.
func WriteRecordsCSV(w io.Writer, records []types.UnifiedSaleRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RecordColumns); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.EAN(),
			r.FunctionalName,
			strconv.Itoa(r.Quantity),
			r.SalesAmount.StringFixed(2),
			r.SaleDate.Format("2006-01-02"),
			string(r.SalesChannel),
			r.StoreIdentifier,
			r.ResellerID,
			r.UploadID,
			strconv.Itoa(r.Month),
			strconv.Itoa(r.Year),
			strconv.Itoa(r.SourceRow),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRecordsFile writes the record export to path.
func WriteRecordsFile(path string, records []types.UnifiedSaleRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create record export: %w", err)
	}
	if err := WriteRecordsCSV(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write record export: %w", err)
	}
	return f.Close()
}
