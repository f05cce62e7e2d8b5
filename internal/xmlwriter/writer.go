// =============================================================================
// Sales Normalizer - XML Export Module
// =============================================================================
//
// This module renders a normalized batch as an XML document for downstream
// systems that take XML rather than CSV or a database feed.
//
// XML STRUCTURE:
//
//   <salesBatch vendor="meridian" upload="..." file="..." records="3" skips="2">
//     <store id="flagship" channel="offline" n="1">
//       <record n="1" row="5">
//         <ProductEAN>5012345678900</ProductEAN>
//         <FunctionalName>Widget A</FunctionalName>
//         <Quantity>1</Quantity>
//         <SalesAmount>115.83</SalesAmount>
//         <SaleDate>2024-03-31</SaleDate>
//         <ResellerID>meridian</ResellerID>
//         <Month>3</Month>
//         <Year>2024</Year>
//       </record>
//     </store>
//     <store id="internet" channel="online" n="2">
//       <record n="2" row="5">               <!-- numbering continues -->
//         <ProductEAN/>                      <!-- null EAN -->
//         ...
//       </record>
//     </store>
//     <skips>
//       <skip row="9" store="outlet" reason="ZeroQuantity">...</skip>
//     </skips>
//   </salesBatch>
//
// Stores appear in the order their first record was emitted.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strconv"

	"github.com/ginjaninja78/sales-normalizer/internal/batch"
	"github.com/ginjaninja78/sales-normalizer/internal/types"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// RecordNumberingGlobal numbers records 1, 2, 3... across all stores.
	// When false numbering restarts at 1 inside each store.
	// Default: true
	RecordNumberingGlobal bool

	// IncludeSkips adds the <skips> element.
	// Default: true
	IncludeSkips bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
		RecordNumberingGlobal: true,
		IncludeSkips:          true,
	}
}

// element is one node of the output tree. An element has either a text
// value or children.
type element struct {
	name     string
	attrs    []xml.Attr
	value    string
	children []element
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate renders res with the default options.
func Generate(res *batch.Result) ([]byte, error) {
	return GenerateWithOptions(res, DefaultGenerateOptions())
}

// GenerateWithOptions renders res as an XML document.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if res is a rejected sheet.
func GenerateWithOptions(res *batch.Result, options GenerateOptions) ([]byte, error) {
	if res.Failed() {
		return nil, fmt.Errorf("cannot export rejected sheet %s: %w", res.FileName, res.Err())
	}

	root := buildDocument(res, options)

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}
	if err := writeElement(&buffer, root, options.Indent, 0); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// WriteFile renders res and writes it to path.
func WriteFile(path string, res *batch.Result) error {
	data, err := Generate(res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write XML export: %w", err)
	}
	return nil
}

// =============================================================================
// DOCUMENT CONSTRUCTION
// =============================================================================

func buildDocument(res *batch.Result, options GenerateOptions) element {
	root := element{
		name: "salesBatch",
		attrs: []xml.Attr{
			attr("vendor", res.VendorID),
			attr("upload", res.UploadID),
			attr("file", res.FileName),
			attr("records", strconv.Itoa(len(res.Records))),
			attr("skips", strconv.Itoa(len(res.Skips))),
		},
	}

	// STEP 1: group records by store, keeping first-appearance order.
	var order []string
	byStore := make(map[string][]types.UnifiedSaleRecord)
	channels := make(map[string]types.Channel)
	for _, r := range res.Records {
		if _, seen := byStore[r.StoreIdentifier]; !seen {
			order = append(order, r.StoreIdentifier)
			channels[r.StoreIdentifier] = r.SalesChannel
		}
		byStore[r.StoreIdentifier] = append(byStore[r.StoreIdentifier], r)
	}

	// STEP 2: one store element per group.
	globalIndex := 0
	for i, store := range order {
		storeElem := element{
			name: "store",
			attrs: []xml.Attr{
				attr("id", store),
				attr("channel", string(channels[store])),
				attr("n", strconv.Itoa(i+1)),
			},
		}
		for j, r := range byStore[store] {
			globalIndex++
			n := j + 1
			if options.RecordNumberingGlobal {
				n = globalIndex
			}
			storeElem.children = append(storeElem.children, buildRecordElement(r, n))
		}
		root.children = append(root.children, storeElem)
	}

	// STEP 3: the skip list.
	if options.IncludeSkips && len(res.Skips) > 0 {
		skips := element{name: "skips"}
		for _, s := range res.Skips {
			attrs := []xml.Attr{attr("row", strconv.Itoa(s.Row))}
			if s.Store != "" {
				attrs = append(attrs, attr("store", s.Store))
			}
			attrs = append(attrs, attr("reason", string(s.Reason)))
			skips.children = append(skips.children, element{name: "skip", attrs: attrs, value: s.RawContext})
		}
		root.children = append(root.children, skips)
	}

	return root
}

func buildRecordElement(r types.UnifiedSaleRecord, n int) element {
	return element{
		name:  "record",
		attrs: []xml.Attr{attr("n", strconv.Itoa(n)), attr("row", strconv.Itoa(r.SourceRow))},
		children: []element{
			{name: "ProductEAN", value: r.EAN()},
			{name: "FunctionalName", value: r.FunctionalName},
			{name: "Quantity", value: strconv.Itoa(r.Quantity)},
			{name: "SalesAmount", value: r.SalesAmount.StringFixed(2)},
			{name: "SaleDate", value: r.SaleDate.Format("2006-01-02")},
			{name: "ResellerID", value: r.ResellerID},
			{name: "Month", value: strconv.Itoa(r.Month)},
			{name: "Year", value: strconv.Itoa(r.Year)},
		},
	}
}

// =============================================================================
// SERIALIZATION
// =============================================================================

// writeElement writes e and its children to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, e element, indent string, level int) error {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}

	buffer.WriteString("<")
	buffer.WriteString(e.name)
	for _, a := range e.attrs {
		buffer.WriteString(" ")
		buffer.WriteString(a.Name.Local)
		buffer.WriteString(`="`)
		if err := xml.EscapeText(buffer, []byte(a.Value)); err != nil {
			return err
		}
		buffer.WriteString(`"`)
	}

	if len(e.children) == 0 && e.value == "" {
		buffer.WriteString("/>\n")
		return nil
	}
	buffer.WriteString(">")

	if len(e.children) == 0 {
		if err := xml.EscapeText(buffer, []byte(e.value)); err != nil {
			return err
		}
	} else {
		buffer.WriteString("\n")
		for _, child := range e.children {
			if err := writeElement(buffer, child, indent, level+1); err != nil {
				return err
			}
		}
		for i := 0; i < level; i++ {
			buffer.WriteString(indent)
		}
	}

	buffer.WriteString("</")
	buffer.WriteString(e.name)
	buffer.WriteString(">\n")
	return nil
}
