package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reThousandsComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	reThousandsDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+,\d+$`)
)

// ParseNumber reads spreadsheet numbers loosely: currency symbols, thousands
// separators, percent signs and accounting parentheses are accepted.
// Anything it cannot read is 0.
func ParseNumber(input string) float64 {
	v, ok := TryParseNumber(input)
	if !ok {
		return 0
	}
	return v
}

func TryParseNumber(input string) (float64, bool) {
	s := strings.ReplaceAll(input, "\u00a0", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = strings.NewReplacer("$", "", "€", "", "£", "", "%", "", " ", "").Replace(s)
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = strings.TrimPrefix(s, "-")
	}

	s = normalizeNumericToken(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

func normalizeNumericToken(token string) string {
	if reThousandsComma.MatchString(token) {
		return strings.ReplaceAll(token, ",", "")
	}
	if reThousandsDot.MatchString(token) {
		return strings.ReplaceAll(strings.ReplaceAll(token, ".", ""), ",", ".")
	}
	if strings.Contains(token, ",") && !strings.Contains(token, ".") {
		return strings.ReplaceAll(token, ",", ".")
	}
	return token
}
