package models

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount parses a decimal-string amount. Amounts must be finite and
// non-negative; anything else is a validation error.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, Validationf("amount %q is not a number", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, Validationf("amount %q is not finite", s)
	}
	if v < 0 {
		return 0, Validationf("amount %q is negative", s)
	}
	return v, nil
}

// FormatAmount renders an amount as a two-decimal string for the wire.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
