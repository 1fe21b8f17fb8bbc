package ingest

import (
	"fmt"
	"strings"
	"unicode"
)

// noiseWords are dropped from names before comparison. "The First Baptist
// Church" and "First Baptist" normalize to the same key.
var noiseWords = map[string]bool{
	"the":    true,
	"church": true,
	"of":     true,
	"a":      true,
}

// normalizeName lowercases, strips punctuation and noise words, and
// collapses whitespace.
func normalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	kept := words[:0]
	for _, w := range words {
		if !noiseWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// DedupeKey identifies a physical church across providers: normalized name
// plus coordinates rounded to 3 decimal places (roughly a city block).
func DedupeKey(name string, lat, lng float64) string {
	return fmt.Sprintf("%s|%.3f|%.3f", normalizeName(name), lat, lng)
}

// Slugify turns a name and city into a URL slug: lowercase, alphanumerics
// and hyphens only.
func Slugify(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		for _, r := range strings.ToLower(part) {
			switch {
			case unicode.IsLetter(r) || unicode.IsDigit(r):
				b.WriteRune(r)
			case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
				b.WriteRune('-')
			}
		}
		b.WriteRune('-')
	}

	slug := b.String()
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}

// slugSuffix derives a short disambiguating suffix from a source ID, used
// when the natural slug is already taken.
func slugSuffix(sourceID string) string {
	s := Slugify(sourceID)
	s = strings.ReplaceAll(s, "-", "")
	if len(s) > 8 {
		s = s[len(s)-8:]
	}
	if s == "" {
		s = "2"
	}
	return s
}
