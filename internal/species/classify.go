package species

import (
	"encoding/csv"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/thyholm1234/DOF.not/internal/errors"
)

// bracketed matches parenthesised or bracketed qualifiers such as "(tamme)"
var bracketed = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]`)

// Table maps normalized species keys to categories. It is immutable after
// LoadTable returns and safe for concurrent reads.
type Table struct {
	entries map[string]Category
}

// NewTable builds a table from name/category pairs, applying the same
// priority rules as LoadTable. Intended for tests and fixtures.
func NewTable(rows map[string]Category) *Table {
	t := &Table{entries: make(map[string]Category, len(rows))}
	for name, cat := range rows {
		t.add(name, cat)
	}
	return t
}

// LoadTableFile opens path and loads it with LoadTable
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path) //nolint:gosec // path from config
	if err != nil {
		return nil, errors.New(err).
			Component("species").
			Category(errors.CategoryClassification).
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	return LoadTable(f)
}

// LoadTable reads a semicolon-delimited classification table.
//
// Columns are located by the header names "artsnavn" and "klass"; without
// those headers the second and third columns are used. Rows with an empty
// name or an unknown category are skipped.
func LoadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.New(err).
			Component("species").
			Category(errors.CategoryFileParsing).
			Context("operation", "read-classification-table").
			Build()
	}

	t := &Table{entries: make(map[string]Category)}
	if len(records) == 0 {
		return t, nil
	}

	nameCol, catCol := 1, 2
	start := 0
	header := records[0]
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "artsnavn", "art":
			nameCol = i
			start = 1
		case "klass", "kategori", "klassifikation":
			catCol = i
			start = 1
		}
	}
	if start == 0 && len(header) > catCol {
		// No recognised header: skip the first row unless it already holds data
		if _, ok := ParseCategory(header[catCol]); !ok {
			start = 1
		}
	}

	for _, rec := range records[start:] {
		if len(rec) <= nameCol || len(rec) <= catCol {
			continue
		}
		cat, ok := ParseCategory(rec[catCol])
		if !ok {
			continue
		}
		t.add(rec[nameCol], cat)
	}

	return t, nil
}

// add stores name under its normalized key and its bracket-free key.
// An existing stronger category is never downgraded.
func (t *Table) add(name string, cat Category) {
	for _, key := range lookupKeys(name) {
		if prev, ok := t.entries[key]; ok && !cat.Stronger(prev) {
			continue
		}
		t.entries[key] = cat
	}
}

func lookupKeys(name string) []string {
	key := Normalize(name)
	if key == "" {
		return nil
	}
	bare := Normalize(bracketed.ReplaceAllString(name, ""))
	if bare == "" || bare == key {
		return []string{key}
	}
	return []string{key, bare}
}

// Len returns the number of keys in the table
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup returns the category for name and whether the name is present
func (t *Table) Lookup(name string) (Category, bool) {
	if t == nil {
		return "", false
	}
	for _, key := range lookupKeys(name) {
		if cat, ok := t.entries[key]; ok {
			return cat, true
		}
	}
	return "", false
}

// Classify returns the category for name, or CategoryAlm when the species
// is not in the table
func (t *Table) Classify(name string) Category {
	if cat, ok := t.Lookup(name); ok {
		return cat
	}
	return CategoryAlm
}

// Resolve prefers the table; an observation's own category tag is only used
// for species the table does not know.
func (t *Table) Resolve(name string, literal Category) Category {
	if cat, ok := t.Lookup(name); ok {
		return cat
	}
	if literal.Valid() {
		return literal
	}
	return CategoryAlm
}
