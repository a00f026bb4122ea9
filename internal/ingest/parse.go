package ingest

import (
	"math"
	"strconv"
	"strings"
)

// SanitizeNumeric strips thousands separators, quotes and surrounding
// whitespace so "1,234.5" and "\"42\"" parse as numbers.
func SanitizeNumeric(raw string) string {
	return strings.TrimSpace(strings.NewReplacer(",", "", "\"", "").Replace(raw))
}

// ParseAmount parses a tender value. Unparsable, non-finite and negative
// values become 0 and report coerced.
func ParseAmount(raw string) (amount float64, coerced bool) {
	v, err := strconv.ParseFloat(SanitizeNumeric(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, true
	}
	return v, false
}

// ParseCount parses a tenderer count, accepting integral floats such as "3.0".
// Anything else becomes 0 and reports coerced.
func ParseCount(raw string) (count int, coerced bool) {
	s := SanitizeNumeric(raw)
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, true
	}
	return int(f), false
}
