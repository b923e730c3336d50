// Package core provides money parsing and handling utilities.
//
// Amounts are decimal.Decimal values. Computations keep full precision and
// round to cents only when a value is persisted or rendered.
package core

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts operator-entered text to a decimal amount.
//
// It strips currency symbols and blanks (including non-breaking spaces),
// accepts a comma decimal separator and thousands separators of either kind.
// Text that still cannot be read yields zero; this is not an error.
//
// Examples:
//   ParseAmount("1 234,50 $") -> 1234.50
//   ParseAmount("1,234.50")   -> 1234.50
//   ParseAmount("12,5")       -> 12.5
//   ParseAmount("abc")        -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', ' ', '\t', '\u00a0', '\u202f', '\'':
			return -1
		}
		return r
	}, s)
	if s == "" {
		return decimal.Zero
	}
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// The rightmost separator is the decimal one.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseCount reads an integer count leniently; fractional input is truncated.
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return int(ParseAmount(s).IntPart())
}

// Percent converts a human-readable percentage into a fraction.
func Percent(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatAmount renders a fixed 2-decimal string.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
