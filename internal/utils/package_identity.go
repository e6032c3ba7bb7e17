package utils

import (
	"regexp"
	"strings"
)

// Android application IDs: at least two dot-separated segments, each
// starting with a letter.
var packageIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z][A-Za-z0-9_]*)+$`)

// AliasKey returns the lookup key for an alias. Lookups are case-insensitive.
func AliasKey(alias string) string {
	return strings.ToLower(strings.TrimSpace(alias))
}

// IsPackageID reports whether s is a canonical reverse-domain package identifier
func IsPackageID(s string) bool {
	return packageIDPattern.MatchString(s)
}
