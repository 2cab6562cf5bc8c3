// Package normalize canonicalizes identifiers before they are compared, so
// "First Name", "first_name" and "firstname" collapse to the same key.
package normalize

import (
	"strings"
	"unicode"
)

// Key lowercases s and removes every whitespace rune and underscore. All
// other punctuation, hyphens included, is kept: "e-mail" and "email" stay
// distinct.
func Key(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if r == '_' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
