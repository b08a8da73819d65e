package pipeline

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Normalize reduces a filename to a canonical lowercase token string:
// directory and extension stripped, emoji and symbol runes dropped,
// punctuation treated as token separators. Normalize(Normalize(x)) ==
// Normalize(x) for every input.
func Normalize(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); len(ext) >= 2 && len(ext) <= 6 {
		base = strings.TrimSuffix(base, ext)
	}

	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NameMatches reports whether two filenames refer to the same export.
// Comparison runs on the squashed normal forms and accepts prefix overlap in
// either direction, tolerating OS-level truncation and the editor appending
// counters or extensions of its own.
func NameMatches(expected, candidate string) bool {
	a := strings.ReplaceAll(Normalize(expected), " ", "")
	b := strings.ReplaceAll(Normalize(candidate), " ", "")
	if a == "" || b == "" {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}
