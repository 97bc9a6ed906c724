package contentunit

import (
	"strings"
	"unicode"
)

// DeriveSlug maps a title to a unit identifier: surrounding whitespace is
// trimmed, letters are lowercased and each run of inner whitespace becomes a
// single hyphen.
//
// The result is not guaranteed unique. Collisions are reported by the
// document repository as ErrConflict.
func DeriveSlug(title string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(title), unicode.IsSpace), "-")
}
