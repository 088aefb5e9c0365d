// Package species holds the reporting-tier categories, the species key
// normalizer and the classification table that maps species to categories.
package species

import (
	"slices"
	"strings"
)

// Category is a species' reporting tier
type Category string

const (
	// CategorySU marks rare species reviewed by the rarity committee
	CategorySU Category = "su"
	// CategorySUB marks regionally notable species
	CategorySUB Category = "sub"
	// CategoryAlm marks common species
	CategoryAlm Category = "alm"
)

// rank orders categories by strength; unknown values rank lowest
func (c Category) rank() int {
	switch c {
	case CategorySU:
		return 3
	case CategorySUB:
		return 2
	case CategoryAlm:
		return 1
	default:
		return 0
	}
}

// Valid reports whether c is one of the three known categories
func (c Category) Valid() bool {
	return c.rank() > 0
}

// Stronger reports whether c outranks other (su > sub > alm)
func (c Category) Stronger(other Category) bool {
	return c.rank() > other.rank()
}

// ParseCategory maps free-form tags to a Category. ok is false for unknown tags.
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "su":
		return CategorySU, true
	case "sub":
		return CategorySUB, true
	case "alm", "almindelig":
		return CategoryAlm, true
	default:
		return "", false
	}
}

// CategorySet is an immutable-by-convention set of categories
type CategorySet map[Category]struct{}

// NewCategorySet builds a set from the given categories
func NewCategorySet(cats ...Category) CategorySet {
	set := make(CategorySet, len(cats))
	for _, c := range cats {
		set[c] = struct{}{}
	}
	return set
}

// Contains reports whether c is in the set
func (s CategorySet) Contains(c Category) bool {
	_, ok := s[c]
	return ok
}

// Empty reports whether the set has no members
func (s CategorySet) Empty() bool {
	return len(s) == 0
}

// Union returns a new set holding members of both sets
func (s CategorySet) Union(other CategorySet) CategorySet {
	out := make(CategorySet, len(s)+len(other))
	for c := range s {
		out[c] = struct{}{}
	}
	for c := range other {
		out[c] = struct{}{}
	}
	return out
}

// Sorted returns members ordered strongest first
func (s CategorySet) Sorted() []Category {
	out := make([]Category, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Category) int {
		return b.rank() - a.rank()
	})
	return out
}

// ParseCategorySet parses names like "su,sub"; unknown names are ignored
func ParseCategorySet(names []string) CategorySet {
	set := make(CategorySet, len(names))
	for _, n := range names {
		if c, ok := ParseCategory(n); ok {
			set[c] = struct{}{}
		}
	}
	return set
}

// DefaultBaseline is the category set used when a user has no usable preferences
func DefaultBaseline() CategorySet {
	return NewCategorySet(CategorySU, CategorySUB)
}
