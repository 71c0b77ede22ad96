package specs

import (
	"math"
	"strings"
)

const (
	BaseScore = 40
	MaxScore  = 95
)

type weighted struct {
	key    Key
	weight int
}

var scoredAttributes = []weighted{
	{KeyGauge, 20},
	{KeyLength, 10},
	{KeySize, 20},
	{KeyVolume, 15},
	{KeyMaterial, 10},
	{KeyCount, 10},
}

// Compatible reports whether two product types belong to the same family:
// equal, or one contained in the other.
func Compatible(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// Score rates candidate against source on a 0-95 scale. Sets whose product
// types are missing or incompatible score 0. Otherwise the score starts at 40
// and the remaining 55 points are shared out by the weight of each attribute
// the source specifies and the candidate matches.
func Score(source, candidate Set) int {
	if !Compatible(source[KeyApplication], candidate[KeyApplication]) {
		return 0
	}

	possible, earned := 0, 0
	for _, a := range scoredAttributes {
		want := source[a.key]
		if want == "" {
			continue
		}
		possible += a.weight
		if attributeMatches(a.key, want, candidate[a.key]) {
			earned += a.weight
		}
	}

	score := BaseScore
	if possible > 0 {
		score = BaseScore + int(math.Round(float64(earned)/float64(possible)*55))
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score
}

// MatchedKeys lists the scored attributes the source specifies and the candidate matches.
func MatchedKeys(source, candidate Set) []Key {
	var out []Key
	for _, a := range scoredAttributes {
		want := source[a.key]
		if want != "" && attributeMatches(a.key, want, candidate[a.key]) {
			out = append(out, a.key)
		}
	}
	return out
}

func attributeMatches(key Key, want, got string) bool {
	if got == "" {
		return false
	}
	if key == KeyLength {
		w := stripSpaces(want)
		g := stripSpaces(got)
		return strings.Contains(g, w) || strings.Contains(w, g)
	}
	return want == got
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

type AlignmentStatus string

const (
	AlignMatch    AlignmentStatus = "match"
	AlignMismatch AlignmentStatus = "mismatch"
	AlignPartial  AlignmentStatus = "partial"
)

type Alignment struct {
	Key       Key             `json:"key"`
	Label     string          `json:"label"`
	Source    string          `json:"source,omitempty"`
	Candidate string          `json:"candidate,omitempty"`
	Status    AlignmentStatus `json:"status"`
}

// Align lines up every attribute either side carries. An attribute present on
// only one side is partial.
func Align(source, candidate Set) []Alignment {
	var out []Alignment
	for _, k := range Keys {
		a, b := source[k], candidate[k]
		if a == "" && b == "" {
			continue
		}
		st := AlignPartial
		if a != "" && b != "" {
			st = AlignMismatch
			if Compatible(a, b) {
				st = AlignMatch
			}
		}
		out = append(out, Alignment{Key: k, Label: k.Label(), Source: a, Candidate: b, Status: st})
	}
	return out
}
