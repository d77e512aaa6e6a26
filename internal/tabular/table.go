// Package tabular holds ordered, sparsely populated tables and writes them
// as delimited text.
package tabular

import (
	"encoding/csv"
	"io"
	"strings"
)

// Table is a keyed collection of rows. Rows keep the order in which their
// key was first inserted and columns keep the order in which they were
// first set.
type Table struct {
	// IndexName, when set, is written as a leading column holding the row key.
	IndexName string
	// HeaderFunc, when set, rewrites column names on output.
	HeaderFunc func(string) string

	columns []string
	known   map[string]bool
	keys    []string
	rows    map[string]*Row
}

// Row is one table row.
type Row struct {
	Key    string
	table  *Table
	values map[string]string
}

// NewTable creates a table whose first columns are fixed.
func NewTable(indexName string, columns ...string) *Table {
	t := &Table{
		IndexName: indexName,
		known:     make(map[string]bool),
		rows:      make(map[string]*Row),
	}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) {
	if t.known[name] {
		return
	}
	t.known[name] = true
	t.columns = append(t.columns, name)
}

// Put starts a fresh row for key. An existing row under the same key is
// replaced but keeps its position.
func (t *Table) Put(key string) *Row {
	if _, ok := t.rows[key]; !ok {
		t.keys = append(t.keys, key)
	}
	r := &Row{Key: key, table: t, values: make(map[string]string)}
	t.rows[key] = r
	return r
}

// Row returns the row stored under key.
func (t *Table) Row(key string) (*Row, bool) {
	r, ok := t.rows[key]
	return r, ok
}

// Keys returns the row keys in insertion order.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Columns returns the column names in first-seen order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.keys) }

// Append copies the rows of other into t, prefixing their keys so rows of
// different sources do not collide.
func (t *Table) Append(prefix string, other *Table) {
	for _, c := range other.columns {
		t.addColumn(c)
	}
	for _, k := range other.keys {
		src := other.rows[k]
		key := k
		if prefix != "" {
			key = prefix + " " + k
		}
		dst := t.Put(key)
		for _, c := range other.columns {
			if v, ok := src.values[c]; ok {
				dst.values[c] = v
			}
		}
	}
}

// Set stores a value and registers the column on the table.
func (r *Row) Set(column, value string) *Row {
	r.table.addColumn(column)
	r.values[column] = value
	return r
}

// Get returns the value of column and whether it was set.
func (r *Row) Get(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Header returns the header line.
func (t *Table) Header() []string {
	name := t.HeaderFunc
	if name == nil {
		name = func(s string) string { return s }
	}
	header := make([]string, 0, len(t.columns)+1)
	if t.IndexName != "" {
		header = append(header, name(t.IndexName))
	}
	for _, c := range t.columns {
		header = append(header, name(c))
	}
	return header
}

// Records returns every row as a slice of cells aligned with Header.
// Unset cells are blank.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.keys))
	for _, k := range t.keys {
		r := t.rows[k]
		rec := make([]string, 0, len(t.columns)+1)
		if t.IndexName != "" {
			rec = append(rec, k)
		}
		for _, c := range t.columns {
			rec = append(rec, r.values[c])
		}
		records = append(records, rec)
	}
	return records
}

// WriteCSV writes the table as comma-separated values.
func (t *Table) WriteCSV(w io.Writer) error {
	return t.write(w, ',')
}

// WriteTSV writes the table as tab-separated values.
func (t *Table) WriteTSV(w io.Writer) error {
	return t.write(w, '\t')
}

func (t *Table) write(w io.Writer, comma rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = comma
	if err := cw.Write(t.Header()); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return err
	}
	return cw.Error()
}

var headerReplacer = strings.NewReplacer("(", "", ")", "", "/", "_", ",", "_")

// SanitizeHeader drops parentheses and replaces slashes and commas with
// underscores.
func SanitizeHeader(name string) string {
	return headerReplacer.Replace(name)
}
