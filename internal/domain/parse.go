package domain

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// ParseOptionalInt parses s as a base-10 integer. Blank or malformed input
// yields nil rather than an error.
func ParseOptionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// OptionalText trims s and returns nil when nothing is left
func OptionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// NormalizeText trims, collapses internal whitespace and case-folds s so
// that "  Yesterday " and "yesterday" compare equal.
func NormalizeText(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
