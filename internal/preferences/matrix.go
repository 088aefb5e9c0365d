// Package preferences holds a user's notification preferences: the region
// matrix, per-species overrides, and the stores they are kept in.
package preferences

import (
	"maps"
	"strings"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/regions"
	"github.com/thyholm1234/DOF.not/internal/species"
)

// Selection is the level a user watches a region at
type Selection string

const (
	SelectionNone Selection = "none"
	SelectionSU   Selection = "su"
	SelectionSUB  Selection = "sub"
	SelectionAll  Selection = "alle"
)

// ParseSelection accepts the four selection values, case-insensitively
func ParseSelection(s string) (Selection, bool) {
	switch Selection(strings.ToLower(strings.TrimSpace(s))) {
	case SelectionNone:
		return SelectionNone, true
	case SelectionSU:
		return SelectionSU, true
	case SelectionSUB:
		return SelectionSUB, true
	case SelectionAll:
		return SelectionAll, true
	default:
		return "", false
	}
}

// Categories expands a selection to the categories it allows.
// "alle" covers the same tiers as "sub"; common species are never pushed.
func (s Selection) Categories() species.CategorySet {
	switch s {
	case SelectionSU:
		return species.NewCategorySet(species.CategorySU)
	case SelectionSUB, SelectionAll:
		return species.NewCategorySet(species.CategorySU, species.CategorySUB)
	default:
		return species.NewCategorySet()
	}
}

// Matrix maps region names (DOF afdeling names or slugs) to selections.
// An absent region means none.
type Matrix map[string]Selection

// ParseMatrix builds a matrix from a raw preference record, rejecting
// unknown selection values.
func ParseMatrix(raw map[string]string) (Matrix, error) {
	m := make(Matrix, len(raw))
	for region, value := range raw {
		sel, ok := ParseSelection(value)
		if !ok {
			return nil, errors.Newf("invalid selection %q for region %q", value, region).
				Component("preferences").
				Category(errors.CategoryValidation).
				Context("region", region).
				Build()
		}
		m[region] = sel
	}
	return m, nil
}

// SanitizeMatrix keeps the valid entries of a loosely typed record and
// drops the rest.
func SanitizeMatrix(raw map[string]any) Matrix {
	m := make(Matrix, len(raw))
	for region, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if sel, ok := ParseSelection(s); ok {
			m[region] = sel
		}
	}
	return m
}

// Usable reports whether any region selects something other than none
func (m Matrix) Usable() bool {
	for _, sel := range m {
		if sel != SelectionNone && !sel.Categories().Empty() {
			return true
		}
	}
	return false
}

// AllowedCategories returns the categories allowed for region. The exact
// key is tried first; otherwise every entry naming the same region slug
// contributes. A slug shared by two afdelinger therefore allows the union
// of both selections.
func (m Matrix) AllowedCategories(region string) species.CategorySet {
	if sel, ok := m[region]; ok {
		return sel.Categories()
	}

	slug, ok := regions.SlugFor(region)
	if !ok {
		return species.NewCategorySet()
	}

	out := species.NewCategorySet()
	for key, sel := range m {
		if keySlug, ok := regions.SlugFor(key); ok && keySlug == slug {
			out = out.Union(sel.Categories())
		}
	}
	return out
}

// Raw returns the matrix as a plain record
func (m Matrix) Raw() map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = string(v)
	}
	return out
}

// Clone returns a copy of the matrix
func (m Matrix) Clone() Matrix {
	return maps.Clone(m)
}
