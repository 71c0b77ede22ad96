package ingest

import (
	"strconv"
	"strings"

	"supplymatch/internal/util"
)

type CellKind int

const (
	CellBlank CellKind = iota
	CellText
	CellNumber
)

// Cell is one decoded spreadsheet value. Number cells keep the source text
// so codes with leading zeros survive.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

type RawRow []Cell

func TextCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: CellText, Text: s}
}

// ParseCell types a raw string: strict numerics become number cells.
func ParseCell(s string) Cell {
	c := TextCell(s)
	if c.Kind == CellBlank {
		return c
	}
	if f, err := strconv.ParseFloat(c.Text, 64); err == nil {
		return Cell{Kind: CellNumber, Text: c.Text, Number: f}
	}
	return c
}

func (c Cell) String() string { return c.Text }

// Float reads the cell as a number; unreadable text is 0.
func (c Cell) Float() float64 {
	switch c.Kind {
	case CellNumber:
		return c.Number
	case CellText:
		return util.ParseNumber(c.Text)
	}
	return 0
}

func (r RawRow) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return Cell{}
	}
	return r[i]
}

func (r RawRow) Blank() bool {
	for _, c := range r {
		if c.Kind != CellBlank {
			return false
		}
	}
	return true
}

// StringRows types a plain string grid.
func StringRows(grid [][]string) []RawRow {
	out := make([]RawRow, 0, len(grid))
	for _, rec := range grid {
		row := make(RawRow, len(rec))
		for i, v := range rec {
			row[i] = ParseCell(v)
		}
		out = append(out, row)
	}
	return out
}
