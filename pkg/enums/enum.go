// Package enums holds the closed string sets stored in the database and sent
// over the wire.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse matches raw exactly against set.
func parse[T ~string](kind, raw string, set []T) (T, error) {
	if v := T(raw); known(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}

// parseFold trims and upper-cases raw first. Storefront forms are not
// consistent about case.
func parseFold[T ~string](kind, raw string, set []T) (T, error) {
	v, err := parse(kind, strings.ToUpper(strings.TrimSpace(raw)), set)
	if err != nil {
		return v, fmt.Errorf("invalid %s %q", kind, raw)
	}
	return v, nil
}
