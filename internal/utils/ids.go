// Package utils provides small, generic helper functions used across
// different layers of the module. These utilities are independent of
// domain or business logic.
package utils

import "strconv"

// AtoiDefault converts a string to an int, returning def when the string
// is empty or not a valid integer. Handlers use it for numeric path and
// query parameters such as form ids.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
