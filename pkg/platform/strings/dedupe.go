// Package strings provides list normalisation helpers.
package strings

import (
	"strings"
)

// Dedupe drops repeated values and any value skip reports true for.
// Order of first occurrence is preserved.
func Dedupe[T comparable](values []T, skip func(T) bool) []T {
	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		if skip != nil && skip(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// SplitList splits a comma-separated setting, trimming whitespace and
// dropping empty and repeated entries.
//
//	SplitList(" a, b,,a ") // []string{"a", "b"}
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return Dedupe(parts, func(s string) bool { return s == "" })
}
