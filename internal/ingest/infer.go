package ingest

import (
	"regexp"
	"strings"

	"supplymatch/internal"
)

// HeaderScanRows is how many leading rows are searched for a header.
const HeaderScanRows = 20

var reHeaderJunk = regexp.MustCompile(`[^a-z0-9%]`)

// NormalizeHeader lower-cases and trims a header and keeps only a-z, 0-9 and %.
func NormalizeHeader(h string) string {
	return reHeaderJunk.ReplaceAllString(strings.ToLower(strings.TrimSpace(h)), "")
}

// Signature is a pair of words that must both appear in a header row.
type Signature [2]string

var reportSignatures = []Signature{
	{"item", "mfr"},
	{"description", "uom"},
	{"manufacturer", "cost"},
}

// FindHeaderRow returns the first of the leading rows whose lower-cased text
// holds both words of any signature, or 0 when none does.
func FindHeaderRow(rows []RawRow, signatures []Signature) int {
	limit := min(HeaderScanRows, len(rows))
	for i := 0; i < limit; i++ {
		parts := make([]string, 0, len(rows[i]))
		for _, c := range rows[i] {
			parts = append(parts, strings.ToLower(c.String()))
		}
		text := strings.Join(parts, " ")
		for _, sig := range signatures {
			if strings.Contains(text, sig[0]) && strings.Contains(text, sig[1]) {
				return i
			}
		}
	}
	return 0
}

type Field int

const (
	FieldItemNumber Field = iota
	FieldManufacturer
	FieldMfrNumber
	FieldDescription
	FieldContents
	FieldUOM
	FieldShipQty
	FieldCostPerUnit
	FieldTotalExt
	FieldPercentTotal
	FieldInvoiceCount
	fieldCount
)

var fieldNames = [fieldCount]string{
	"item_number", "manufacturer", "mfr_number", "description", "contents", "uom",
	"ship_qty", "cost_per_unit", "total_ext_purchase", "percent_total", "invoice_count",
}

func (f Field) String() string { return fieldNames[f] }

type rule struct {
	field Field
	// exact headers win over patterns
	exact    []string
	patterns []string
}

// Patterns carrying '#' can never hit a normalized header; they are kept so
// the lists read like the report columns they were collected from.
var reportRules = []rule{
	{field: FieldItemNumber, exact: []string{"item"}, patterns: []string{"item#", "itemno", "itemnumber", "itemnum"}},
	{field: FieldManufacturer, patterns: []string{"manufacturer"}},
	{field: FieldMfrNumber, patterns: []string{"mfr#", "mfr", "mfrno", "mfrnumber", "manufactureritem", "partno", "part#", "sku"}},
	{field: FieldDescription, patterns: []string{"description", "desc", "itemdesc", "productname"}},
	{field: FieldContents, patterns: []string{"contents", "content"}},
	{field: FieldUOM, patterns: []string{"uom", "unitofmeasure", "unit"}},
	{field: FieldShipQty, patterns: []string{"shipqty", "totalshipqty", "qty", "quantity"}},
	{field: FieldCostPerUnit, patterns: []string{"costperunit", "unitcost", "cost", "price", "unitprice"}},
	{field: FieldTotalExt, patterns: []string{"totalext", "extpurchase", "totalpurchase", "extended"}},
	{field: FieldPercentTotal, patterns: []string{"%total", "percent", "%"}},
	{field: FieldInvoiceCount, patterns: []string{"invoicecount", "invoice", "invcount"}},
}

// Columns maps each field to a column index; -1 means absent.
type Columns [fieldCount]int

func (c Columns) Index(f Field) int { return c[f] }

// ResolveColumns picks, per field, the column matching an exact header, then
// for each pattern in priority order the first column containing it.
func ResolveColumns(headers []string) Columns {
	return resolve(headers, reportRules)
}

func resolve(headers []string, rules []rule) Columns {
	var cols Columns
	for i := range cols {
		cols[i] = -1
	}
	for _, r := range rules {
		cols[r.field] = findColumn(headers, r)
	}
	return cols
}

func findColumn(headers []string, r rule) int {
	for _, want := range r.exact {
		for i, h := range headers {
			if h == want {
				return i
			}
		}
	}
	for _, p := range r.patterns {
		for i, h := range headers {
			if h != "" && strings.Contains(h, p) {
				return i
			}
		}
	}
	return -1
}

func normalizedHeaders(row RawRow) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = NormalizeHeader(c.String())
	}
	return out
}

type Inference struct {
	HeaderRow int
	Headers   []string
	Columns   Columns
	Items     []internal.LineItem
}

// Infer locates the header, resolves columns and builds one line item per
// non-blank data row. It never fails: rows without a recognizable header fall
// back to row 0.
func Infer(rows []RawRow) Inference {
	res := Inference{}
	for i := range res.Columns {
		res.Columns[i] = -1
	}
	if len(rows) == 0 {
		return res
	}

	res.HeaderRow = FindHeaderRow(rows, reportSignatures)
	res.Headers = normalizedHeaders(rows[res.HeaderRow])
	res.Columns = ResolveColumns(res.Headers)

	for i := res.HeaderRow + 1; i < len(rows); i++ {
		row := rows[i]
		if row.Blank() {
			continue
		}
		res.Items = append(res.Items, lineItem(row, res.Columns, i+1))
	}
	return res
}

func lineItem(row RawRow, cols Columns, rowNo int) internal.LineItem {
	text := func(f Field) string { return row.At(cols[f]).String() }
	num := func(f Field) float64 { return row.At(cols[f]).Float() }

	return internal.LineItem{
		RowNo:            rowNo,
		ItemNumber:       text(FieldItemNumber),
		Manufacturer:     text(FieldManufacturer),
		MfrNumber:        text(FieldMfrNumber),
		Description:      text(FieldDescription),
		Contents:         text(FieldContents),
		UOM:              text(FieldUOM),
		ShipQty:          num(FieldShipQty),
		CostPerUnit:      num(FieldCostPerUnit),
		TotalExtPurchase: num(FieldTotalExt),
		PercentTotal:     num(FieldPercentTotal),
		InvoiceCount:     int(num(FieldInvoiceCount)),
		MatchStatus:      internal.StatusPending,
	}
}
