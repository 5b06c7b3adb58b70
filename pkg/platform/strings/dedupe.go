// Package strings holds small helpers for cleaning label lists.
package strings

import (
	"strings"
)

// Dedupe applies normalize to every value and keeps the first occurrence of
// each non-empty result. Order is preserved; nil stays nil.
func Dedupe(values []string, normalize func(string) string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DedupeAndTrim trims whitespace, then drops empties and repeats.
func DedupeAndTrim(values []string) []string {
	return Dedupe(values, strings.TrimSpace)
}
