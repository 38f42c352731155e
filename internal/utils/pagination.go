// Package utils holds small helpers shared by the HTTP layer.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int, returning def when s is empty or
// malformed. Surrounding whitespace is tolerated.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// BoundedInt parses s like AtoiDefault and then clamps the result into
// [lo, hi]. A hi below lo means no upper bound.
func BoundedInt(s string, def, lo, hi int) int {
	n := AtoiDefault(s, def)
	if n < lo {
		return lo
	}
	if hi >= lo && n > hi {
		return hi
	}
	return n
}
