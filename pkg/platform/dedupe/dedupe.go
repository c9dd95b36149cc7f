// Package dedupe normalises string lists read from configuration and claims.
package dedupe

import "strings"

// AndTrim removes duplicates and empty strings from a slice, trimming whitespace
// from each element. Order is preserved.
//
//	AndTrim([]string{"  foo ", "bar", "foo", "", "  "}) // []string{"foo", "bar"}
func AndTrim(values []string) []string {
	return normalise(values, strings.TrimSpace)
}

// AndTrimLower is like AndTrim but also lowercases each element.
//
//	AndTrimLower([]string{"  FOO ", "bar", "Foo"}) // []string{"foo", "bar"}
func AndTrimLower(values []string) []string {
	return normalise(values, func(s string) string { return strings.ToLower(strings.TrimSpace(s)) })
}

func normalise(values []string, fn func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		n := fn(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}

	return result
}
