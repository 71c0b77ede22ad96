package specs

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	needle := Set{KeyApplication: "needle", KeyGauge: "18", KeyLength: "1 inch"}

	cases := []struct {
		name      string
		source    Set
		candidate Set
		want      int
	}{
		{name: "full match clamps", source: needle, candidate: Set{KeyApplication: "needle", KeyGauge: "18", KeyLength: "1inch"}, want: 95},
		{name: "gauge only", source: needle, candidate: Set{KeyApplication: "needle", KeyGauge: "18", KeyLength: "1 1/2 inch"}, want: 40 + 37},
		{name: "length only", source: needle, candidate: Set{KeyApplication: "needle", KeyGauge: "21", KeyLength: "1 inch"}, want: 40 + 18},
		{name: "nothing comparable", source: Set{KeyApplication: "glove"}, candidate: Set{KeyApplication: "glove", KeySize: "large"}, want: 40},
		{name: "contained type", source: Set{KeyApplication: "hypodermic needle"}, candidate: Set{KeyApplication: "needle"}, want: 40},
		{name: "no candidate type", source: needle, candidate: Set{KeyGauge: "18"}, want: 0},
		{name: "no source type", source: Set{KeyGauge: "18"}, candidate: needle, want: 0},
		{name: "different family", source: needle, candidate: Set{KeyApplication: "glove", KeyGauge: "18", KeyLength: "1 inch"}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.source, tc.candidate))
		})
	}
}

func TestAlign(t *testing.T) {
	got := Align(
		Set{KeyApplication: "needle", KeyGauge: "18", KeyMaterial: "stainless steel"},
		Set{KeyApplication: "hypodermic needle", KeyGauge: "21", KeyLength: "1 inch"},
	)
	want := []Alignment{
		{Key: KeyApplication, Label: "Product Type", Source: "needle", Candidate: "hypodermic needle", Status: AlignMatch},
		{Key: KeyGauge, Label: "Gauge", Source: "18", Candidate: "21", Status: AlignMismatch},
		{Key: KeyLength, Label: "Length", Candidate: "1 inch", Status: AlignPartial},
		{Key: KeyMaterial, Label: "Material", Source: "stainless steel", Status: AlignPartial},
	}
	assert.Equal(t, want, got)
}

func genSet() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("", "needle", "hypodermic needle", "glove", "syringe"),
		gen.OneConstOf("", "18", "21", "25"),
		gen.OneConstOf("", "1 inch", "1 1/2 inch"),
		gen.OneConstOf("", "small", "large"),
		gen.OneConstOf("", "3ml", "10ml"),
		gen.OneConstOf("", "nitrile", "latex"),
		gen.OneConstOf("", "100/bx", "50/pk"),
	).Map(func(vals []interface{}) Set {
		s := Set{}
		keys := []Key{KeyApplication, KeyGauge, KeyLength, KeySize, KeyVolume, KeyMaterial, KeyCount}
		for i, k := range keys {
			s.put(k, vals[i].(string))
		}
		return s
	})
}

func TestScoreProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("missing product type scores zero", prop.ForAll(
		func(a, b Set) bool {
			delete(a, KeyApplication)
			return Score(a, b) == 0 && Score(b, a) == 0
		},
		genSet(), genSet(),
	))

	properties.Property("gated scores stay within 40..95", prop.ForAll(
		func(a, b Set) bool {
			s := Score(a, b)
			if !Compatible(a[KeyApplication], b[KeyApplication]) {
				return s == 0
			}
			return s >= BaseScore && s <= MaxScore
		},
		genSet(), genSet(),
	))

	properties.Property("needle never scores against glove", prop.ForAll(
		func(a, b Set) bool {
			a[KeyApplication] = "needle"
			b[KeyApplication] = "glove"
			return Score(a, b) == 0
		},
		genSet(), genSet(),
	))

	properties.Property("deterministic", prop.ForAll(
		func(a, b Set) bool { return Score(a, b) == Score(a, b) },
		genSet(), genSet(),
	))

	properties.TestingRun(t)
}
