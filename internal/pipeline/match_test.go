package pipeline

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"supplymatch/internal"
	"supplymatch/internal/specs"
	"supplymatch/internal/util"
)

func product(id int64, code, name, pkg string) internal.Product {
	return internal.Product{ID: id, ManufacturerItemCode: code, ProductName: name, PackageType: pkg, IsActive: true}
}

func matchedID(o internal.MatchOutcome) int64 {
	if o.MatchedProductID == nil {
		return 0
	}
	return *o.MatchedProductID
}

func TestApprovedOverrideBeatsExactCode(t *testing.T) {
	p1 := product(1, "ABC-1", "Exam glove", "BX")
	p2 := product(2, "XYZ-9", "Exam glove nitrile", "BX")
	ref := NewReference(
		[]internal.ApprovedMatch{{ExternalSKU: "abc-1", ProductID: 2}},
		[]internal.Product{p1},
		[]internal.Product{p1, p2},
	)

	got := ref.Match(internal.LineItem{MfrNumber: "ABC-1", UOM: "BX"})
	if got.Status != internal.StatusPreApproved || got.Confidence != 100 || matchedID(got) != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestApprovedOverrideByEnrichedSKU(t *testing.T) {
	ref := NewReference([]internal.ApprovedMatch{{ExternalSKU: "CAT-77", ProductID: 5}}, nil, nil)
	got := ref.Match(internal.LineItem{MfrNumber: "LOCAL-1", EnrichedMfrSKU: util.StringPtr("CAT-77")})
	if got.Status != internal.StatusPreApproved || matchedID(got) != 5 {
		t.Fatalf("got %+v", got)
	}
}

func TestExactCodePrefersMatchingPackage(t *testing.T) {
	bx := product(1, "NDL-18", "Needle", "BX")
	cs := product(2, "NDL-18", "Needle", "Case")
	ref := NewReference(nil, []internal.Product{bx, cs}, nil)

	got := ref.Match(internal.LineItem{MfrNumber: "ndl-18", UOM: "CS"})
	if got.Status != internal.StatusExact || got.Confidence != 100 || matchedID(got) != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestUOMMismatchDowngradesToFuzzy(t *testing.T) {
	ref := NewReference(nil, []internal.Product{product(1, "NDL-18", "Needle", "BX")}, nil)

	got := ref.Match(internal.LineItem{MfrNumber: "NDL-18", UOM: "EA"})
	if got.Status != internal.StatusFuzzy || got.Confidence != 90 || matchedID(got) != 1 {
		t.Fatalf("got %+v", got)
	}
	note := util.Deref(got.Note)
	if !strings.Contains(note, "EA") || !strings.Contains(note, "BX") {
		t.Fatalf("note %q must name both units", note)
	}
}

func TestManufacturerFilter(t *testing.T) {
	cardinal := product(1, "G-100", "Glove", "BX")
	cardinal.ManufacturerName = "Cardinal Health"
	bd := product(2, "G-100", "Glove", "BX")
	bd.ManufacturerName = "BD Medical"

	t.Run("keeps overlapping manufacturer", func(t *testing.T) {
		ref := NewReference(nil, []internal.Product{cardinal, bd}, nil)
		got := ref.Match(internal.LineItem{MfrNumber: "G-100", UOM: "BX", EnrichedManufacturer: util.StringPtr("BD")})
		if got.Status != internal.StatusExact || matchedID(got) != 2 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("first word agreement", func(t *testing.T) {
		ref := NewReference(nil, []internal.Product{cardinal}, nil)
		got := ref.Match(internal.LineItem{MfrNumber: "G-100", UOM: "BX", EnrichedManufacturer: util.StringPtr("Cardinal Inc")})
		if got.Status != internal.StatusExact || matchedID(got) != 1 {
			t.Fatalf("got %+v", got)
		}
	})

	t.Run("no overlap keeps code match as fuzzy", func(t *testing.T) {
		ref := NewReference(nil, []internal.Product{cardinal}, nil)
		got := ref.Match(internal.LineItem{MfrNumber: "G-100", UOM: "BX", EnrichedManufacturer: util.StringPtr("Medline")})
		if got.Status != internal.StatusFuzzy || got.Confidence != 85 || matchedID(got) != 1 {
			t.Fatalf("got %+v", got)
		}
		note := util.Deref(got.Note)
		if !strings.Contains(note, "Medline") || !strings.Contains(note, "Cardinal Health") {
			t.Fatalf("note %q", note)
		}
	})
}

func TestCodeFallsBackToEnrichedSKU(t *testing.T) {
	ref := NewReference(nil, []internal.Product{product(3, "CAT-55", "Gauze", "PK")}, nil)
	got := ref.Match(internal.LineItem{MfrNumber: "LOCAL-55", EnrichedMfrSKU: util.StringPtr("CAT-55"), UOM: "pack"})
	if got.Status != internal.StatusExact || matchedID(got) != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestSpecificationMatch(t *testing.T) {
	other := product(9, "OTHER", "18 gauge 1 inch needle", "BX")
	glove := product(10, "GLV", "18 gauge 1 inch glove", "BX")
	ref := NewReference(nil, nil, []internal.Product{glove, other})

	item := internal.LineItem{MfrNumber: "NDL-18G", Description: "18G x 1 inch hypodermic needle", UOM: "BX"}
	got := ref.Match(item)

	want := specs.Score(specs.FromText(item.Description), specs.FromText(other.SpecText()))
	if want < specs.BaseScore {
		t.Fatalf("score %d below threshold", want)
	}
	if got.Status != internal.StatusFuzzy || got.Confidence != want || matchedID(got) != 9 {
		t.Fatalf("got %+v want confidence %d", got, want)
	}
	if note := util.Deref(got.Note); !strings.Contains(note, "gauge") || !strings.Contains(note, "length") {
		t.Fatalf("note %q", note)
	}
}

func TestSpecificationMatchUsesEnrichedText(t *testing.T) {
	p := product(4, "S-10", "Syringe 10 ml luer lock", "BX")
	ref := NewReference(nil, nil, []internal.Product{p})

	item := internal.LineItem{
		Description:   "misc supply",
		EnrichedName:  util.StringPtr("Luer lock syringe"),
		EnrichedSpecs: map[string]string{"Volume": "10 mL"},
	}
	got := ref.Match(item)
	if got.Status != internal.StatusFuzzy || matchedID(got) != 4 || got.Confidence != specs.MaxScore {
		t.Fatalf("got %+v", got)
	}
}

func TestNoMatch(t *testing.T) {
	ref := NewReference(nil, nil, []internal.Product{product(1, "N", "18 gauge needle", "BX")})

	for name, item := range map[string]internal.LineItem{
		"no product type":    {Description: "assorted supplies"},
		"different category": {Description: "nitrile exam glove large"},
		"empty":              {},
	} {
		t.Run(name, func(t *testing.T) {
			got := ref.Match(item)
			if got.Status != internal.StatusNoMatch || got.Confidence != 0 || got.MatchedProductID != nil {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestTiesKeepFirstProduct(t *testing.T) {
	a := product(1, "A", "needle 18 gauge", "BX")
	b := product(2, "B", "needle 18 gauge", "BX")
	ref := NewReference(nil, nil, []internal.Product{a, b})
	got := ref.Match(internal.LineItem{Description: "needle 18g"})
	if matchedID(got) != 1 {
		t.Fatalf("got %+v", got)
	}
}

var catalogTexts = []string{
	"18 gauge 1 inch needle",
	"25G 5/8 in hypodermic needle",
	"10 ml syringe luer lock",
	"3 ml syringe with needle 23g",
	"nitrile exam glove large",
	"latex glove small 100/bx",
	"vinyl gloves medium",
	"foley catheter 16 gauge silicone",
	"gauze sponge 4 inch 200/bx",
	"adhesive tape 1 inch",
	"alcohol prep pads",
	"specimen cup 4 oz",
	"exam table paper",
	"assorted supplies",
}

// exhaustiveBest scores every active product in order, keeping the first best.
func exhaustiveBest(source specs.Set, products []internal.Product) (int64, int) {
	var best int64
	bestScore := 0
	for _, p := range products {
		if s := specs.Score(source, specs.FromText(p.SpecText())); s > bestScore {
			best, bestScore = p.ID, s
		}
	}
	return best, bestScore
}

func TestIndexedSpecMatchEqualsExhaustiveScan(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same product and score as a full scan", prop.ForAll(
		func(picks []int, itemPick int) bool {
			products := make([]internal.Product, 0, len(picks))
			for i, k := range picks {
				products = append(products, product(int64(i+1), "", catalogTexts[k], "BX"))
			}
			ref := NewReference(nil, nil, products)
			item := internal.LineItem{Description: catalogTexts[itemPick]}

			wantID, wantScore := exhaustiveBest(specs.FromText(item.Description), products)
			got := ref.Match(item)
			if wantScore < specs.BaseScore {
				return got.Status == internal.StatusNoMatch
			}
			return got.Status == internal.StatusFuzzy && got.Confidence == wantScore && matchedID(got) == wantID
		},
		gen.SliceOf(gen.IntRange(0, len(catalogTexts)-1)),
		gen.IntRange(0, len(catalogTexts)-1),
	))

	properties.TestingRun(t)
}
