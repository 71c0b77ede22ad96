// Package compare prices matched usage-report lines against internal products
// and rolls the differences up into the figures a sales proposal quotes.
package compare

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"supplymatch/internal"
	"supplymatch/internal/packaging"
)

var hundred = decimal.NewFromInt(100)

type Options struct {
	// DefaultMarkup is a percentage added to product unit prices.
	DefaultMarkup float64
	// Markups overrides DefaultMarkup per line item id.
	Markups map[int64]float64
}

// ParseMarkups reads per-item overrides written as "17=35,18=20".
func ParseMarkups(s string) (map[int64]float64, error) {
	out := map[int64]float64{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, pct, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("markup %q: want item=percent", part)
		}
		itemID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("markup %q: %w", part, err)
		}
		m, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return nil, fmt.Errorf("markup %q: %w", part, err)
		}
		out[itemID] = m
	}
	return out, nil
}

type Line struct {
	ItemID       int64            `json:"item_id"`
	Description  string           `json:"description"`
	MfrNumber    string           `json:"mfr_number"`
	ItemUOM      string           `json:"item_uom"`
	Product      internal.Product `json:"product"`
	Qty          float64          `json:"qty"`
	ConvertedQty float64          `json:"converted_qty"`
	Ratio        float64          `json:"ratio"`
	Markup       float64          `json:"markup_pct"`
	CustomMarkup bool             `json:"custom_markup"`
	CurrentUnit  decimal.Decimal  `json:"current_unit_price"`
	CurrentTotal decimal.Decimal  `json:"current_total"`
	OurUnit      decimal.Decimal  `json:"our_unit_price"`
	OurTotal     decimal.Decimal  `json:"our_total"`
	Savings      decimal.Decimal  `json:"savings"`
	SavingsPct   decimal.Decimal  `json:"savings_pct"`
	PerUnit      string           `json:"per_unit,omitempty"`
	Comparable   bool             `json:"comparable"`
	Reason       string           `json:"reason,omitempty"`
}

type Comparison struct {
	Lines          []Line          `json:"lines"`
	NotComparable  []Line          `json:"not_comparable"`
	DefaultMarkup  float64         `json:"default_markup_pct"`
	CurrentSpend   decimal.Decimal `json:"current_spend"`
	OurTotal       decimal.Decimal `json:"our_total"`
	Savings        decimal.Decimal `json:"savings"`
	SavingsPct     decimal.Decimal `json:"savings_pct"`
	UnmatchedSpend decimal.Decimal `json:"unmatched_spend"`
	UnmatchedCount int             `json:"unmatched_count"`
}

// Priced reports whether an item takes part in the price comparison: a
// confirmed match with a product and a positive unit cost.
func Priced(it internal.ItemWithProduct) bool {
	return it.MatchStatus.Matched() && it.Product != nil && it.CostPerUnit > 0
}

// Compare prices every priced item against its product. Quantities are
// converted into the product's package type when the two units differ; a line
// whose units cannot be reconciled is set aside and left out of the totals.
// Items that are not confirmed matches make up the unmatched spend.
func Compare(items []internal.ItemWithProduct, opts Options) Comparison {
	c := Comparison{
		Lines:          []Line{},
		NotComparable:  []Line{},
		DefaultMarkup:  opts.DefaultMarkup,
		CurrentSpend:   decimal.Zero,
		OurTotal:       decimal.Zero,
		Savings:        decimal.Zero,
		SavingsPct:     decimal.Zero,
		UnmatchedSpend: decimal.Zero,
	}

	for _, it := range items {
		if !it.MatchStatus.Matched() {
			c.UnmatchedCount++
			if it.CostPerUnit > 0 && it.ShipQty > 0 {
				c.UnmatchedSpend = c.UnmatchedSpend.Add(decimal.NewFromFloat(it.CostPerUnit).Mul(decimal.NewFromFloat(it.ShipQty)))
			}
			continue
		}
		if !Priced(it) {
			continue
		}

		line := priceLine(it, opts)
		if !line.Comparable {
			c.NotComparable = append(c.NotComparable, line)
			continue
		}
		c.Lines = append(c.Lines, line)
		c.CurrentSpend = c.CurrentSpend.Add(line.CurrentTotal)
		c.OurTotal = c.OurTotal.Add(line.OurTotal)
	}

	sort.SliceStable(c.Lines, func(i, j int) bool { return c.Lines[i].Savings.GreaterThan(c.Lines[j].Savings) })
	c.Savings = c.CurrentSpend.Sub(c.OurTotal)
	c.SavingsPct = percentOf(c.Savings, c.CurrentSpend)
	return c
}

func priceLine(it internal.ItemWithProduct, opts Options) Line {
	p := *it.Product
	markup, custom := opts.DefaultMarkup, false
	if m, ok := opts.Markups[it.ID]; ok {
		markup, custom = m, true
	}

	qty := it.ShipQty
	if qty == 0 {
		qty = 1
	}

	line := Line{
		ItemID:       it.ID,
		Description:  it.Description,
		MfrNumber:    it.EffectiveMfr(),
		ItemUOM:      it.UOM,
		Product:      p,
		Qty:          qty,
		ConvertedQty: qty,
		Ratio:        1,
		Markup:       markup,
		CustomMarkup: custom,
		Comparable:   true,
	}

	multiplier := decimal.NewFromFloat(markup).Div(hundred).Add(decimal.NewFromInt(1))
	line.CurrentUnit = decimal.NewFromFloat(it.CostPerUnit)
	line.CurrentTotal = line.CurrentUnit.Mul(decimal.NewFromFloat(qty))
	line.OurUnit = decimal.NewFromFloat(p.UnitPrice).Mul(multiplier)
	if s, ok := packaging.FormatUnitPrice(line.OurUnit.InexactFloat64(), packingText(p), p.PackageType); ok {
		line.PerUnit = s
	}

	if packaging.CanonicalUOM(it.UOM) != packaging.CanonicalUOM(p.PackageType) {
		conv, ok := packaging.ConvertQty(qty, it.UOM, p.PackageType, packingText(p))
		if !ok {
			line.Comparable = false
			line.Reason = "cannot convert " + displayUOM(it.UOM) + " to " + displayUOM(p.PackageType)
			return line
		}
		line.ConvertedQty = conv.Qty
		line.Ratio = conv.Ratio
	}

	line.OurTotal = line.OurUnit.Mul(decimal.NewFromFloat(line.ConvertedQty))
	line.Savings = line.CurrentTotal.Sub(line.OurTotal)
	line.SavingsPct = percentOf(line.Savings, line.CurrentTotal)
	return line
}

func packingText(p internal.Product) string {
	if strings.TrimSpace(p.PackingListDescription) != "" {
		return p.PackingListDescription
	}
	return p.SpecText()
}

func displayUOM(u string) string {
	if strings.TrimSpace(u) == "" {
		return "none"
	}
	return strings.ToUpper(strings.TrimSpace(u))
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
