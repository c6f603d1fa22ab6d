package utils

import (
	"fmt"
	"strconv"
)

// StrToInt64 converts a string to an int64, wrapping the parse error with
// the offending value for handler-level messages.
func StrToInt64(s string) (int64, error) {
	num, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q as int64: %w", s, err)
	}
	return num, nil
}
