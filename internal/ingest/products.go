package ingest

import (
	"strings"

	"supplymatch/internal"
)

const (
	productCode Field = iota
	productName
	productDescription
	productPacking
	productPrice
	productPackage
	productManufacturer
	productCategory
	productActive
)

var productSignatures = []Signature{
	{"code", "name"},
	{"item", "price"},
	{"product", "package"},
}

var productRules = []rule{
	{field: productCode, exact: []string{"code", "sku"}, patterns: []string{"manufactureritemcode", "itemcode", "mfritem", "mfrcode", "productcode", "partnumber", "code"}},
	{field: productName, exact: []string{"name"}, patterns: []string{"productname", "displayname", "name"}},
	{field: productDescription, exact: []string{"description"}, patterns: []string{"itemdescription", "description", "desc"}},
	{field: productPacking, patterns: []string{"packinglist", "packing", "packaging"}},
	{field: productPrice, patterns: []string{"unitprice", "price", "cost"}},
	{field: productPackage, patterns: []string{"packagetype", "package", "pkgtype", "uom", "unit"}},
	{field: productManufacturer, patterns: []string{"manufacturername", "manufacturer", "vendor", "brand"}},
	{field: productCategory, patterns: []string{"categorypath", "category"}},
	{field: productActive, patterns: []string{"isactive", "active", "status"}},
}

// ProductImport is the outcome of reading a product master sheet.
type ProductImport struct {
	HeaderRow int
	Products  []internal.Product
	Skipped   int
}

// InferProducts reads product master rows. Rows without a code are skipped;
// a missing active column means every row is active.
func InferProducts(rows []RawRow) ProductImport {
	res := ProductImport{}
	if len(rows) == 0 {
		return res
	}
	res.HeaderRow = FindHeaderRow(rows, productSignatures)
	cols := resolve(normalizedHeaders(rows[res.HeaderRow]), productRules)

	for i := res.HeaderRow + 1; i < len(rows); i++ {
		row := rows[i]
		if row.Blank() {
			continue
		}
		code := row.At(cols[productCode]).String()
		if code == "" {
			res.Skipped++
			continue
		}
		active := true
		if idx := cols[productActive]; idx >= 0 {
			active = parseActive(row.At(idx))
		}
		res.Products = append(res.Products, internal.Product{
			ManufacturerItemCode:   code,
			ProductName:            row.At(cols[productName]).String(),
			ItemDescription:        row.At(cols[productDescription]).String(),
			PackingListDescription: row.At(cols[productPacking]).String(),
			UnitPrice:              row.At(cols[productPrice]).Float(),
			PackageType:            row.At(cols[productPackage]).String(),
			ManufacturerName:       row.At(cols[productManufacturer]).String(),
			CategoryPath:           row.At(cols[productCategory]).String(),
			IsActive:               active,
		})
	}
	return res
}

func parseActive(c Cell) bool {
	switch c.Kind {
	case CellBlank:
		return true
	case CellNumber:
		return c.Number != 0
	}
	switch strings.ToLower(c.Text) {
	case "0", "n", "no", "false", "inactive", "discontinued", "disabled":
		return false
	}
	return true
}
