package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"supplymatch/internal"
	"supplymatch/internal/compare"
	"supplymatch/internal/util"
)

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func newSheet(f *excelize.File, name string, first bool) *sheetWriter {
	if first {
		_ = f.SetSheetName(f.GetSheetName(0), name)
	} else {
		_, _ = f.NewSheet(name)
	}
	return &sheetWriter{f: f, sheet: name}
}

func (w *sheetWriter) write(values ...any) {
	w.row++
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		_ = w.f.SetCellValue(w.sheet, cell, v)
	}
}

func save(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// ExportResults writes one row per line item with its match outcome.
func ExportResults(items []internal.ItemWithProduct, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	w := newSheet(f, "Matches", true)

	w.write(
		"row_no", "item_number", "manufacturer", "mfr_number", "description", "uom", "ship_qty", "cost_per_unit",
		"match_status", "confidence", "match_note",
		"product_id", "product_code", "product_name", "package_type", "unit_price",
	)
	for _, it := range items {
		var productID any = ""
		code, name, pkg := "", "", ""
		var price any = ""
		if it.Product != nil {
			productID = it.Product.ID
			code, name, pkg = it.Product.ManufacturerItemCode, it.Product.ProductName, it.Product.PackageType
			price = it.Product.UnitPrice
		}
		w.write(
			it.RowNo, it.ItemNumber, it.Manufacturer, it.EffectiveMfr(), it.Description, it.UOM, it.ShipQty, it.CostPerUnit,
			string(it.MatchStatus), it.MatchConfidence, util.Deref(it.MatchNote),
			productID, code, name, pkg, price,
		)
	}
	return save(f, outputPath)
}

func ExportComparison(c compare.Comparison, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	w := newSheet(f, "Comparison", true)
	w.write(
		"item_id", "mfr_number", "description", "item_uom", "qty", "product_code", "product_name", "package_type",
		"converted_qty", "markup_pct", "current_unit", "current_total", "our_unit", "our_total", "savings", "savings_pct", "per_unit",
	)
	for _, l := range c.Lines {
		w.write(
			l.ItemID, l.MfrNumber, l.Description, l.ItemUOM, l.Qty, l.Product.ManufacturerItemCode, l.Product.ProductName, l.Product.PackageType,
			l.ConvertedQty, l.Markup, l.CurrentUnit.InexactFloat64(), l.CurrentTotal.InexactFloat64(),
			l.OurUnit.InexactFloat64(), l.OurTotal.InexactFloat64(), l.Savings.InexactFloat64(), l.SavingsPct.InexactFloat64(), l.PerUnit,
		)
	}

	if len(c.NotComparable) > 0 {
		nc := newSheet(f, "Not comparable", false)
		nc.write("item_id", "mfr_number", "description", "item_uom", "product_code", "package_type", "reason")
		for _, l := range c.NotComparable {
			nc.write(l.ItemID, l.MfrNumber, l.Description, l.ItemUOM, l.Product.ManufacturerItemCode, l.Product.PackageType, l.Reason)
		}
	}

	t := newSheet(f, "Totals", false)
	t.write("default_markup_pct", c.DefaultMarkup)
	t.write("current_spend", c.CurrentSpend.InexactFloat64())
	t.write("our_total", c.OurTotal.InexactFloat64())
	t.write("savings", c.Savings.InexactFloat64())
	t.write("savings_pct", c.SavingsPct.InexactFloat64())
	t.write("unmatched_items", c.UnmatchedCount)
	t.write("unmatched_spend", c.UnmatchedSpend.InexactFloat64())
	return save(f, outputPath)
}

func ExportProposal(p compare.Proposal, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	s := newSheet(f, "Summary", true)
	s.write("customer", p.CustomerName)
	s.write("annual_current_spend", p.AnnualCurrentSpend.InexactFloat64())
	s.write("annual_our_total", p.AnnualOurTotal.InexactFloat64())
	s.write("annual_savings", p.AnnualSavings.InexactFloat64())
	s.write("savings_pct", p.SavingsPct.InexactFloat64())
	s.write("matched_products", p.MatchedProducts)

	pr := newSheet(f, "Products", false)
	pr.write("mfr_number", "description", "product_code", "product_name", "current_unit", "our_unit", "savings")
	for _, l := range p.TopProducts {
		pr.write(l.MfrNumber, l.Description, l.Product.ManufacturerItemCode, l.Product.ProductName,
			l.CurrentUnit.InexactFloat64(), l.OurUnit.InexactFloat64(), l.Savings.InexactFloat64())
	}
	if p.MoreProducts > 0 {
		pr.write("", fmt.Sprintf("+ %d more products", p.MoreProducts))
	}
	return save(f, outputPath)
}
