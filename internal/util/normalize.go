// Package util provides text helpers shared by services.
package util

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeTagName canonicalizes a tag name before storage and lookup.
// Compatibility characters are decomposed (NFKD), surrounding space is
// trimmed and inner whitespace runs collapse to a single space. Case is kept;
// uniqueness is case-insensitive in the store.
//
//	"  Machine   Learning " -> "Machine Learning"
//	"ﬁnance"               -> "finance"
func NormalizeTagName(input string) string {
	return strings.Join(strings.Fields(norm.NFKD.String(input)), " ")
}

// NormalizeUsername trims and NFKC-normalizes a username.
func NormalizeUsername(input string) string {
	return norm.NFKC.String(strings.TrimSpace(input))
}
