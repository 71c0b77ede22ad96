// Package packaging reads nested pack/box/case notation such as "200/BX 10BX/CS"
// and converts prices and quantities between the levels it describes.
package packaging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Level struct {
	Count int    `json:"count"`
	UOM   string `json:"uom"`
}

// Hierarchy runs innermost to outermost.
type Hierarchy []Level

var uomAliases = map[string]string{
	"ea": "ea", "each": "ea",
	"bx": "bx", "box": "bx",
	"cs": "cs", "case": "cs",
	"pk": "pk", "pack": "pk", "pkg": "pk", "package": "pk",
	"bg": "bg", "bag": "bg",
	"kt": "kt", "kit": "kt",
	"tu": "tu", "tube": "tu", "tb": "tu",
	"rl": "rl", "roll": "rl",
	"ct": "ct", "count": "ct",
	"bt": "bt", "btl": "bt", "bottle": "bt",
	"sp": "sp",
	"pr": "pr", "pair": "pr",
	"vl": "vl", "vial": "vl",
	"dz": "dz", "dozen": "dz",
	"sy": "sy", "syringe": "sy",
	"cn": "cn", "can": "cn",
}

var levelPattern = regexp.MustCompile(`(?i)(\d+)\s*(dz)?\s*[a-z]*\s*/\s*(bx|cs|pk|bg|kt|tu|rl|ct|sp|ea|bt|vl|pr|cn)`)

// CanonicalUOM maps a unit alias to its short form. Unknown units come back
// lower-cased and trimmed.
func CanonicalUOM(uom string) string {
	u := strings.ToLower(strings.TrimSpace(uom))
	if c, ok := uomAliases[u]; ok {
		return c
	}
	return u
}

func Parse(text string) Hierarchy {
	if text == "" {
		return nil
	}
	matches := levelPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make(Hierarchy, 0, len(matches))
	for _, m := range matches {
		count, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if strings.EqualFold(m[2], "dz") {
			count *= 12
		}
		out = append(out, Level{Count: count, UOM: CanonicalUOM(m[3])})
	}
	return out
}

// Total is the number of single units in the outermost level.
func (h Hierarchy) Total() int {
	if len(h) == 0 {
		return 0
	}
	units := 1
	for _, l := range h {
		units *= l.Count
	}
	return units
}

// UnitsIn multiplies level counts from the innermost level up to and including
// uom. A uom missing from the hierarchy yields the full product, except "ea"
// which is the single unit itself.
func (h Hierarchy) UnitsIn(uom string) (int, bool) {
	if len(h) == 0 {
		return 0, false
	}
	target := CanonicalUOM(uom)
	if target == "" {
		return 0, false
	}
	units := 1
	for _, l := range h {
		units *= l.Count
		if l.UOM == target {
			return units, true
		}
	}
	if target == "ea" {
		return 1, true
	}
	if units <= 0 {
		return 0, false
	}
	return units, true
}

func UnitsPerUOM(text, uom string) (int, bool) {
	return Parse(text).UnitsIn(uom)
}

// FormatUnitPrice splits price, the price of one uom, across the single units
// the text implies. With an empty uom the outermost level is used. It reports
// false when fewer than two units are implied.
func FormatUnitPrice(price float64, text, uom string) (string, bool) {
	if price == 0 {
		return "", false
	}
	h := Parse(text)
	var units int
	if strings.TrimSpace(uom) != "" {
		u, ok := h.UnitsIn(uom)
		if !ok {
			return "", false
		}
		units = u
	} else {
		units = h.Total()
	}
	if units <= 1 {
		return "", false
	}
	perUnit := price / float64(units)
	return fmt.Sprintf("$%s/ea (%d units)", formatMoney(perUnit), units), true
}

func formatMoney(v float64) string {
	decimals := 2
	switch {
	case v < 0.01:
		decimals = 4
	case v < 1:
		decimals = 3
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	for decimals > 2 && strings.HasSuffix(s, "0") {
		s = s[:len(s)-1]
		decimals--
	}
	return s
}

type Conversion struct {
	Qty   float64 `json:"qty"`
	Ratio float64 `json:"ratio"`
}

// ConvertQty re-expresses qty of from as a quantity of to using the hierarchy
// in text. Identical units convert 1:1 without reading text. Any side whose
// unit count cannot be resolved fails the conversion.
func ConvertQty(qty float64, from, to, text string) (Conversion, bool) {
	fromCanon := CanonicalUOM(from)
	toCanon := CanonicalUOM(to)
	if fromCanon == "" || toCanon == "" {
		return Conversion{}, false
	}
	if fromCanon == toCanon {
		return Conversion{Qty: qty, Ratio: 1}, true
	}
	h := Parse(text)
	fromUnits, ok := h.UnitsIn(fromCanon)
	if !ok || fromUnits == 0 {
		return Conversion{}, false
	}
	toUnits, ok := h.UnitsIn(toCanon)
	if !ok || toUnits == 0 {
		return Conversion{}, false
	}
	ratio := float64(fromUnits) / float64(toUnits)
	return Conversion{Qty: qty * ratio, Ratio: ratio}, true
}
