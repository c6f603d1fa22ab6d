package utils

// NewNullString is a helper for string pointers, returning nil if string is empty.
// Useful for optional fields that should be NULL in the DB when not provided.
func NewNullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringOrEmpty dereferences an optional string, mapping nil to "".
func StringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
