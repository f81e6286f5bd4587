package providers

import (
	"strconv"
	"strings"
)

// The security scanner encodes nearly everything as strings: booleans as
// "0"/"1", numbers and percentages as decimal text. These helpers coerce
// them, defaulting to the zero value on malformed input.

func flagBool(s string) bool {
	return strings.TrimSpace(s) == "1"
}

func coerceFloat(s string) float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func coerceInt(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Some counters arrive as "1.0"
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			return int(f)
		}
		return 0
	}
	return n
}
