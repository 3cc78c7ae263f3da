package schema

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// FoldName normalizes a name for case-insensitive comparison: NFC
// normalization followed by lowercasing. All catalog lookup maps are
// keyed by folded names so "max capacity" and "Max Capacity" resolve to
// the same property.
func FoldName(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// StripSpaces removes every space from s after NFC normalization.
// It backs the NOSPACE collation the store registers with SQLite, which
// exported files reference in their schema.
func StripSpaces(s string) string {
	return strings.ReplaceAll(norm.NFC.String(s), " ", "")
}
