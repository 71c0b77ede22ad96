package util

import "strings"

// NormalizeCode upper-cases a part code and keeps only A-Z, 0-9 and - _ / .
func NormalizeCode(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	out := strings.Builder{}
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '/' || r == '.' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func FirstWord(input string) string {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
