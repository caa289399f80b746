package util

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Sanitize drops control characters except tab and newline, converts
// carriage returns and non-breaking spaces, and returns NFC-normalized text.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\r':
			continue
		case r == '\u00a0':
			b.WriteRune(' ')
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return norm.NFC.String(b.String())
}

// CollapseSpaces squeezes runs of spaces and tabs within each line, drops
// blank lines and trims the result. Line breaks are kept since headings are
// detected per line.
func CollapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// Fold prepares text for case-insensitive substring search: NFC form, lower case.
func Fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// Unaccent folds s and strips Vietnamese diacritics, so "Toán" and "toan"
// compare equal.
func Unaccent(s string) string {
	// transformers keep state, so the chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, Fold(s))
	if err != nil {
		out = Fold(s)
	}
	return strings.NewReplacer("đ", "d").Replace(strings.TrimSpace(out))
}
