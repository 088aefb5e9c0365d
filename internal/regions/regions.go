// Package regions maps DOF local-branch (afdeling) names to the region slugs
// used in data file names.
package regions

import (
	"slices"
	"strings"

	"github.com/thyholm1234/DOF.not/internal/species"
)

// Afdeling is a DOF local branch and its data slug
type Afdeling struct {
	Name string
	Slug string
}

// afdelinger lists the branches in the order they are presented to users.
//
// "DOF Sydøstjylland" shares the slug "ostjylland" with "DOF Østjylland" in
// the upstream table. This is most likely an upstream data bug; it is kept
// as-is so region files resolve the same way they do upstream.
var afdelinger = []Afdeling{
	{"DOF København", "kobenhavn"},
	{"DOF Nordsjælland", "nordsjaelland"},
	{"DOF Vestsjælland", "vestsjaelland"},
	{"DOF Storstrøm", "storstrom"},
	{"DOF Bornholm", "bornholm"},
	{"DOF Fyn", "fyn"},
	{"DOF Sønderjylland", "sonderjylland"},
	{"DOF Sydvestjylland", "sydvestjylland"},
	{"DOF Sydøstjylland", "ostjylland"},
	{"DOF Vestjylland", "vestjylland"},
	{"DOF Østjylland", "ostjylland"},
	{"DOF Nordvestjylland", "nordvestjylland"},
	{"DOF Nordjylland", "nordjylland"},
}

var (
	byKey  = make(map[string]string, len(afdelinger))
	bySlug = make(map[string][]string, len(afdelinger))
)

func init() {
	for _, a := range afdelinger {
		byKey[species.Normalize(a.Name)] = a.Slug
		bySlug[a.Slug] = append(bySlug[a.Slug], a.Name)
	}
}

// All returns every known branch in presentation order
func All() []Afdeling {
	return slices.Clone(afdelinger)
}

// Slugs returns the distinct region slugs in presentation order
func Slugs() []string {
	out := make([]string, 0, len(afdelinger))
	for _, a := range afdelinger {
		if !slices.Contains(out, a.Slug) {
			out = append(out, a.Slug)
		}
	}
	return out
}

// SlugFor returns the slug for a branch name. Names are matched on their
// normalized form, and a known slug is returned unchanged.
func SlugFor(nameOrSlug string) (string, bool) {
	if slug, ok := byKey[species.Normalize(nameOrSlug)]; ok {
		return slug, true
	}
	s := strings.ToLower(strings.TrimSpace(nameOrSlug))
	if _, ok := bySlug[s]; ok {
		return s, true
	}
	return "", false
}

// NamesFor returns the branch names that use slug. More than one name is
// returned for a shared slug.
func NamesFor(slug string) []string {
	return slices.Clone(bySlug[strings.ToLower(strings.TrimSpace(slug))])
}

// Shared reports whether slug is used by more than one branch
func Shared(slug string) bool {
	return len(bySlug[slug]) > 1
}
