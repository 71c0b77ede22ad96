package util

func StringPtr(s string) *string { return &s }

func Int64Ptr(i int64) *int64 { return &i }

// NonEmptyPtr returns nil for blank strings.
func NonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
