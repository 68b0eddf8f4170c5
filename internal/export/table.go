// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export owns the on-disk tabular format of the pipeline: the
// fixed column schemas of the raw film tables, reading and atomically
// writing ';'-separated tables, merging a fresh batch into a prior export,
// and comparing two exports.
package export

import (
	"fmt"
	"path/filepath"
	"slices"
)

// Raw table names. File names are <prefix><name><suffix>.csv.
const (
	General      = "generaldata"
	Cast         = "cast"
	Crew         = "crew"
	Details      = "details"
	GenresThemes = "genresthemes"
)

// Key columns used for merging.
const (
	ColFilmID  = "letterboxd_id"
	ColChildID = "film_id"
)

// RawTables lists the raw tables in write order.
var RawTables = []string{General, Cast, Crew, Details, GenresThemes}

var schemas = map[string][]string{
	General: {
		"letterboxd_id", "letterboxd_shorttitle", "letterboxd_longtitle",
		"letterboxd_slug", "letterboxd_url", "imdb_url", "tmdb_url", "tmdb_id",
		"release_year", "duration", "avg_rating", "source_page",
	},
	Cast:         {"name", "link", "character_name", "film_id", "film_title"},
	Crew:         {"name", "role", "link", "film_id", "film_title"},
	Details:      {"key", "value", "link", "film_id", "film_title"},
	GenresThemes: {"value", "film_id", "film_title"},
}

// Schema returns the columns of a raw table, or nil for unknown names.
func Schema(name string) []string {
	return slices.Clone(schemas[name])
}

// KeyColumn returns the merge key of a raw table.
func KeyColumn(name string) string {
	if name == General {
		return ColFilmID
	}
	return ColChildID
}

// FileName returns the file name of a table.
func FileName(prefix, name, suffix string) string {
	return prefix + name + suffix + ".csv"
}

// Path joins dir and the table file name.
func Path(dir, prefix, name, suffix string) string {
	return filepath.Join(dir, FileName(prefix, name, suffix))
}

// Table is an in-memory table of string cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// NewTable returns an empty table with the given columns.
func NewTable(name string, columns []string) *Table {
	return &Table{Name: name, Columns: columns}
}

// NewRawTable returns an empty raw table with its fixed schema.
func NewRawTable(name string) *Table {
	return NewTable(name, Schema(name))
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Col returns the index of column name, or -1.
func (t *Table) Col(name string) int {
	return slices.Index(t.Columns, name)
}

// Append adds a row. It panics if the cell count does not match the
// columns, which is always a programming error.
func (t *Table) Append(cells ...string) {
	if len(cells) != len(t.Columns) {
		panic(fmt.Sprintf("export: table %s has %d columns, got %d cells", t.Name, len(t.Columns), len(cells)))
	}
	t.Rows = append(t.Rows, cells)
}

// Value returns the cell at row i in column name, or "" when the column
// does not exist.
func (t *Table) Value(i int, name string) string {
	c := t.Col(name)
	if c < 0 || i < 0 || i >= len(t.Rows) || c >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][c]
}

// Keys returns the distinct values of column name in first-seen order.
func (t *Table) Keys(name string) []string {
	if t == nil {
		return nil
	}
	c := t.Col(name)
	if c < 0 {
		return nil
	}
	seen := make(map[string]bool)
	var keys []string
	for _, row := range t.Rows {
		if !seen[row[c]] {
			seen[row[c]] = true
			keys = append(keys, row[c])
		}
	}
	return keys
}

// CheckColumns returns an error unless the table has exactly the wanted
// columns in order.
func (t *Table) CheckColumns(want []string) error {
	if !slices.Equal(t.Columns, want) {
		return fmt.Errorf("table %s: columns %v, want %v", t.Name, t.Columns, want)
	}
	return nil
}
