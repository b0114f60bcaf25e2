// Package core provides the nota record model, its aggregation helpers and
// the rupiah formatting used by every presentation surface.
//
// This file contains functions for parsing whole-rupiah amounts typed by a
// user and for rendering integers with a "." thousands separator.
package core

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidAmount is returned when a typed amount is not a whole number.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts user input into a whole number.
//
// Digits may be grouped by three with ".", "," or a space ("15.000",
// "15,000", "15 000"), using one separator throughout. Anything that could
// be read as a fraction ("15000.5", "1,5", "15.00") is rejected, as are
// negative values. A leading "Rp" is ignored.
//
// Examples:
//
//	ParseAmount("15000")     -> 15000, nil
//	ParseAmount("Rp15.000")  -> 15000, nil
//	ParseAmount("1.234.567") -> 1234567, nil
//	ParseAmount("15000.5")   -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "Rp"), "rp")
	s = strings.TrimSpace(s)

	digits, ok := ungroup(s)
	if !ok {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// ungroup strips thousands separators from s. It reports false unless s is
// plain digits or a 1-3 digit group followed by 3-digit groups.
func ungroup(s string) (string, bool) {
	sep := strings.IndexAny(s, "., ")
	if sep < 0 {
		return s, isDigits(s)
	}
	groups := strings.Split(s, s[sep:sep+1])
	if len(groups[0]) < 1 || len(groups[0]) > 3 || !isDigits(groups[0]) {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !isDigits(g) {
			return "", false
		}
	}
	return strings.Join(groups, ""), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatNumber groups the digits of n by three from the right using ".".
func FormatNumber(n int64) string {
	neg := n < 0
	digits := strconv.FormatInt(n, 10)
	if neg {
		digits = digits[1:]
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// FormatRupiah renders an amount the way the nota pages display totals.
func FormatRupiah(n int64) string {
	return "Rp" + FormatNumber(n)
}

// FormatDisplayDate renders d as DD-MM-YYYY for headings.
func FormatDisplayDate(d Date) string {
	return d.Format("02-01-2006")
}
