package repository

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")
)

// NormalizeAddress collapses whitespace runs and lowercases an address so
// saved-address lookups tolerate formatting differences.
func NormalizeAddress(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}
