package species

import (
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Å/å never reach this replacer: NFD has already split them into A/a + U+030A.
	danishLetters = strings.NewReplacer(
		"Æ", "AE", "æ", "ae",
		"Ø", "OE", "ø", "oe",
		"Å", "AA", "å", "aa",
	)

	separators = strings.NewReplacer(
		`"`, " ", "'", " ", "«", " ", "»", " ", "„", " ",
		"“", " ", "”", " ", "‘", " ", "’", " ",
		"[", " ", "]", " ", "{", " ", "}", " ",
		".", " ", ",", " ", ";", " ", ":", " ",
		"‐", "-", "‑", "-", "‒", "-", "–", "-",
		"—", "-", "―", "-", "−", "-",
	)

	combiningMarks = runes.Predicate(func(r rune) bool {
		return r >= 0x0300 && r <= 0x036F
	})
)

// Normalize returns the canonical matching key for a species name.
//
// The same key is used for overrides, the classification table and incoming
// observations; callers must never compare raw names.
func Normalize(name string) string {
	if name == "" {
		return ""
	}

	s := norm.NFD.String(name)
	s = danishLetters.Replace(s)

	stripped, _, err := transform.String(runes.Remove(combiningMarks), s)
	if err == nil {
		s = stripped
	}

	s = separators.Replace(s)

	// Fields splits on every unicode space, NBSP included
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Slug converts a name into a lowercase ASCII identifier joined by hyphens,
// e.g. "Sort Glente" becomes "sort-glente".
func Slug(name string) string {
	key := Normalize(name)

	var b strings.Builder
	b.Grow(len(key))
	pendingDash := false
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
