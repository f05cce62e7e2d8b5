// Package catalog holds the product catalog used to recover EANs for rows
// whose EAN cell is missing or malformed. Lookups are by exact functional
// name; the catalog is read-only once built and safe for concurrent use.
package catalog

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/sales-normalizer/internal/xlsxparser"
)

// Entry is one product in the catalog.
type Entry struct {
	Name string
	EAN  string
}

// Conflict is a name listed more than once with different EANs. The first
// occurrence is kept.
type Conflict struct {
	Name     string
	Kept     string
	Ignored  string
	FirstRow int
	Row      int
}

// Catalog is an immutable name to EAN index.
type Catalog struct {
	byName map[string]string
}

// New indexes entries. Row numbers in conflicts are 1-based positions in
// entries when the entries carry none.
func New(entries []Entry) (*Catalog, []Conflict) {
	c := &Catalog{byName: make(map[string]string, len(entries))}
	first := make(map[string]int, len(entries))
	var conflicts []Conflict
	for i, e := range entries {
		if kept, ok := c.byName[e.Name]; ok {
			if kept != e.EAN {
				conflicts = append(conflicts, Conflict{
					Name: e.Name, Kept: kept, Ignored: e.EAN,
					FirstRow: first[e.Name], Row: i + 1,
				})
			}
			continue
		}
		c.byName[e.Name] = e.EAN
		first[e.Name] = i + 1
	}
	return c, conflicts
}

// Load reads a catalog workbook.
func Load(path string) (*Catalog, []Conflict, error) {
	rows, err := xlsxparser.LoadCatalog(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{Name: r.Name, EAN: r.EAN}
	}
	c, conflicts := New(entries)
	return c, conflicts, nil
}

// LookupEAN returns the EAN listed for name.
func (c *Catalog) LookupEAN(_ context.Context, name string) (string, bool, error) {
	ean, ok := c.byName[name]
	return ean, ok, nil
}

// Len returns the number of distinct names.
func (c *Catalog) Len() int { return len(c.byName) }
