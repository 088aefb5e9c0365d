package species

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyholm1234/DOF.not/internal/errors"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Sangsvane", "sangsvane"},
		{"danish ae and oe", "Ærlig Sølvmåge", "aerlig soelvmage"},
		{"aa decomposes before transliteration", "Gråand", "graand"},
		{"upper aa", "Åkande", "akande"},
		{"diacritics", "Pallas’ Løvsanger", "pallas loevsanger"},
		{"accent", "Rødhalset Lappedykker é", "roedhalset lappedykker e"},
		{"quotes and brackets", `"Hvid" Vipstjert [ssp.]`, "hvid vipstjert ssp"},
		{"guillemets", "«Sort» „Glente“", "sort glente"},
		{"punctuation", "Ca. 3, Krikand; sp:", "ca 3 krikand sp"},
		{"dash variants", "Sort‐Hvid–Fluesnapper—x−y", "sort-hvid-fluesnapper-x-y"},
		{"nbsp and whitespace", "  Sort  Glente\t ", "sort glente"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Sangsvane", "Gråand", "ÆØÅ æøå", "Pallas’ Løvsanger", `«x» "y" [z] {w}`,
		"Sort‐Hvid–Fluesnapper", "  a b  ", "Dværgmåge (1K)", "İstanbul Ørn",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sort-glente", Slug("Sort Glente"))
	assert.Equal(t, "amager-strand", Slug("Amager Strand"))
	assert.Equal(t, "soendre-mose-1", Slug("Søndre Mose (1)"))
	assert.Empty(t, Slug("  ·  "))
}

func TestCategorySet(t *testing.T) {
	t.Parallel()

	set := NewCategorySet(CategorySUB, CategorySU)
	assert.True(t, set.Contains(CategorySU))
	assert.False(t, set.Contains(CategoryAlm))
	assert.Equal(t, []Category{CategorySU, CategorySUB}, set.Sorted())
	assert.True(t, NewCategorySet().Empty())

	parsed := ParseCategorySet([]string{"SU", "bogus", "alm"})
	assert.Equal(t, []Category{CategorySU, CategoryAlm}, parsed.Sorted())

	assert.Equal(t, DefaultBaseline(), NewCategorySet(CategorySU).Union(NewCategorySet(CategorySUB)))
}

const tableCSV = `id;artsnavn;klass
1;Sangsvane;alm
2;Hvidnæbbet Lom;su
3;Sangsvane;sub
4;Sangsvane;alm
5;Hvidnæbbet Lom;sub
6;Dværgmåge (1K);sub
7;Sort Glente;SU
8;;su
9;Broget Fluesnapper;ukendt
`

func TestLoadTablePriority(t *testing.T) {
	t.Parallel()

	table, err := LoadTable(strings.NewReader(tableCSV))
	require.NoError(t, err)

	// Later weaker rows never downgrade
	assert.Equal(t, CategorySUB, table.Classify("Sangsvane"))
	assert.Equal(t, CategorySU, table.Classify("Hvidnæbbet Lom"))
	assert.Equal(t, CategorySU, table.Classify("sort glente"))

	// Bracket-free variant is indexed too
	assert.Equal(t, CategorySUB, table.Classify("Dværgmåge"))
	assert.Equal(t, CategorySUB, table.Classify("Dværgmåge (1K)"))

	// Unknown and invalid rows
	assert.Equal(t, CategoryAlm, table.Classify("Broget Fluesnapper"))
	assert.Equal(t, CategoryAlm, table.Classify("Gråspurv"))
}

func TestLoadTableRowOrderIndependent(t *testing.T) {
	t.Parallel()

	forward := "artsnavn;klass\nRørdrum;alm\nRørdrum;sub\nRørdrum;su\n"
	backward := "artsnavn;klass\nRørdrum;su\nRørdrum;sub\nRørdrum;alm\n"

	a, err := LoadTable(strings.NewReader(forward))
	require.NoError(t, err)
	b, err := LoadTable(strings.NewReader(backward))
	require.NoError(t, err)

	assert.Equal(t, CategorySU, a.Classify("Rørdrum"))
	assert.Equal(t, CategorySU, b.Classify("Rørdrum"))
}

func TestLoadTableWithoutHeader(t *testing.T) {
	t.Parallel()

	table, err := LoadTable(strings.NewReader("1;Sort Glente;su\n2;Rød Glente;sub\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, CategorySU, table.Classify("Sort Glente"))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	table := NewTable(map[string]Category{"Sort Glente": CategorySU})

	assert.Equal(t, CategorySU, table.Resolve("Sort Glente", CategoryAlm), "table wins over literal")
	assert.Equal(t, CategorySUB, table.Resolve("Hjejle", CategorySUB), "literal used for unknown species")
	assert.Equal(t, CategoryAlm, table.Resolve("Hjejle", ""), "alm when neither is known")

	var nilTable *Table
	assert.Equal(t, CategorySUB, nilTable.Resolve("Hjejle", CategorySUB))
	assert.Equal(t, CategoryAlm, nilTable.Classify("Hjejle"))
}

func TestLoadTableFileMissing(t *testing.T) {
	t.Parallel()

	_, err := LoadTableFile("does/not/exist.csv")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryClassification))
}
