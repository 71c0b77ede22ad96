package compare

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplymatch/internal"
)

func matched(id int64, status internal.MatchStatus, cost, qty float64, uom string, p *internal.Product) internal.ItemWithProduct {
	return internal.ItemWithProduct{
		LineItem: internal.LineItem{ID: id, MatchStatus: status, CostPerUnit: cost, ShipQty: qty, UOM: uom, Description: "item"},
		Product:  p,
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestCompareSameUnit(t *testing.T) {
	p := &internal.Product{ID: 1, UnitPrice: 4, PackageType: "BX", PackingListDescription: "200/BX 10BX/CS"}
	c := Compare([]internal.ItemWithProduct{matched(10, internal.StatusExact, 10, 5, "bx", p)}, Options{DefaultMarkup: 50})

	require.Len(t, c.Lines, 1)
	line := c.Lines[0]
	assert.True(t, line.OurUnit.Equal(dec(t, "6")), "our unit %s", line.OurUnit)
	assert.True(t, line.CurrentTotal.Equal(dec(t, "50")))
	assert.True(t, line.OurTotal.Equal(dec(t, "30")))
	assert.True(t, line.Savings.Equal(dec(t, "20")))
	assert.True(t, line.SavingsPct.Equal(dec(t, "40")))
	assert.Equal(t, "$0.03/ea (200 units)", line.PerUnit)
	assert.True(t, c.SavingsPct.Equal(dec(t, "40")))
}

func TestCompareConvertsUnits(t *testing.T) {
	p := &internal.Product{ID: 1, UnitPrice: 1, PackageType: "BX", PackingListDescription: "200/BX 10BX/CS"}
	c := Compare([]internal.ItemWithProduct{matched(10, internal.StatusApproved, 40, 2, "Case", p)}, Options{DefaultMarkup: 50})

	require.Len(t, c.Lines, 1)
	line := c.Lines[0]
	assert.Equal(t, 20.0, line.ConvertedQty)
	assert.Equal(t, 10.0, line.Ratio)
	assert.True(t, line.OurTotal.Equal(dec(t, "30")), "our total %s", line.OurTotal)
	assert.True(t, line.Savings.Equal(dec(t, "50")))
}

func TestCompareUnconvertibleLineIsSetAside(t *testing.T) {
	p := &internal.Product{ID: 1, UnitPrice: 1, PackageType: "EA", ProductName: "Gauze pad"}
	ok := &internal.Product{ID: 2, UnitPrice: 2, PackageType: "BX"}
	c := Compare([]internal.ItemWithProduct{
		matched(10, internal.StatusExact, 40, 2, "CS", p),
		matched(11, internal.StatusExact, 3, 1, "BX", ok),
	}, Options{DefaultMarkup: 0})

	require.Len(t, c.NotComparable, 1)
	assert.False(t, c.NotComparable[0].Comparable)
	assert.Contains(t, c.NotComparable[0].Reason, "CS")
	require.Len(t, c.Lines, 1)
	assert.True(t, c.CurrentSpend.Equal(dec(t, "3")))
	assert.True(t, c.OurTotal.Equal(dec(t, "2")))
}

func TestCompareSortsBySavingsAndCountsUnmatched(t *testing.T) {
	p := &internal.Product{ID: 1, UnitPrice: 1, PackageType: "BX"}
	items := []internal.ItemWithProduct{
		matched(1, internal.StatusExact, 2, 1, "BX", p),
		matched(2, internal.StatusPreApproved, 10, 1, "BX", p),
		matched(3, internal.StatusNoMatch, 5, 3, "BX", nil),
		matched(4, internal.StatusFuzzy, 7, 0, "BX", p),
		matched(5, internal.StatusExact, 0, 4, "BX", p),
	}
	c := Compare(items, Options{DefaultMarkup: 0, Markups: map[int64]float64{2: 100}})

	require.Len(t, c.Lines, 2)
	assert.Equal(t, int64(2), c.Lines[0].ItemID)
	assert.True(t, c.Lines[0].CustomMarkup)
	assert.True(t, c.Lines[0].OurUnit.Equal(dec(t, "2")))
	assert.Equal(t, 2, c.UnmatchedCount)
	assert.True(t, c.UnmatchedSpend.Equal(dec(t, "15")), "unmatched %s", c.UnmatchedSpend)
}

func TestZeroQuantityCountsAsOne(t *testing.T) {
	p := &internal.Product{ID: 1, UnitPrice: 1, PackageType: "BX"}
	c := Compare([]internal.ItemWithProduct{matched(1, internal.StatusExact, 2, 0, "BX", p)}, Options{})
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 1.0, c.Lines[0].Qty)
}

func TestCustomerName(t *testing.T) {
	cases := map[string]string{
		"Acme Clinic REPORT.xlsx":   "Acme Clinic",
		"Acme Clinic (2).XLS":       "Acme Clinic",
		"report.csv":                "Customer",
		"/tmp/uploads/Beta Med.csv": "Beta Med",
		"":                          "Customer",
	}
	for in, want := range cases {
		if got := CustomerName(in); got != want {
			t.Fatalf("CustomerName(%q) got %q want %q", in, got, want)
		}
	}
}

func TestBuildProposal(t *testing.T) {
	p := &internal.Product{ID: 1, UnitPrice: 1, PackageType: "BX"}
	var items []internal.ItemWithProduct
	for i := int64(1); i <= 7; i++ {
		items = append(items, matched(i, internal.StatusExact, float64(i)+1, 1, "BX", p))
	}
	c := Compare(items, Options{DefaultMarkup: 0})
	prop := BuildProposal("Acme", c, 12)

	assert.Equal(t, 7, prop.MatchedProducts)
	assert.Len(t, prop.TopProducts, 5)
	assert.Equal(t, 2, prop.MoreProducts)
	assert.Equal(t, int64(7), prop.TopProducts[0].ItemID)
	assert.True(t, prop.AnnualCurrentSpend.Equal(c.CurrentSpend.Mul(decimal.NewFromInt(12))))
	assert.True(t, prop.AnnualSavings.Equal(dec(t, "336")), "annual savings %s", prop.AnnualSavings)
}

func TestParseMarkups(t *testing.T) {
	got, err := ParseMarkups(" 17=35, 18 = 12.5,")
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{17: 35, 18: 12.5}, got)

	got, err = ParseMarkups("")
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, bad := range []string{"17", "x=3", "17=high"} {
		_, err := ParseMarkups(bad)
		assert.Error(t, err, bad)
	}
}
