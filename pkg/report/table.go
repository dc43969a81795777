// Package report holds the tabular result model and the sinks that persist
// it: XLSX workbooks, CSV files, a SQLite database and PNG plots.
package report

import (
	"fmt"
	"strconv"
)

// Column is a named column of integer values.
type Column struct {
	Name   string
	Values []int64
}

// Table is an ordered set of equal-length columns.
type Table struct {
	Name    string
	Columns []Column
}

// NewTable creates a table with the given column names and no rows.
func NewTable(name string, columns ...string) *Table {
	t := &Table{Name: name}
	for _, c := range columns {
		t.Columns = append(t.Columns, Column{Name: c})
	}
	return t
}

// AppendRow adds one value per column.
func (t *Table) AppendRow(values ...int64) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("%w: table %q has %d columns, row has %d values",
			ErrRowWidth, t.Name, len(t.Columns), len(values))
	}
	for i, v := range values {
		t.Columns[i].Values = append(t.Columns[i].Values, v)
	}
	return nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Header returns the column names.
func (t *Table) Header() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Row returns row i as values.
func (t *Table) Row(i int) []int64 {
	out := make([]int64, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Values[i]
	}
	return out
}

// StringRow returns row i formatted as decimal strings.
func (t *Table) StringRow(i int) []string {
	out := make([]string, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = strconv.FormatInt(c.Values[i], 10)
	}
	return out
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Validate checks that every column has the same length.
func (t *Table) Validate() error {
	rows := t.Rows()
	for _, c := range t.Columns {
		if len(c.Values) != rows {
			return fmt.Errorf("%w: table %q column %q has %d values, want %d",
				ErrRowWidth, t.Name, c.Name, len(c.Values), rows)
		}
	}
	return nil
}

// Collection groups the tables produced by one unit of work. A collection
// maps to one sheet, one CSV file or one SQL table per table.
type Collection struct {
	Name   string
	Tables []*Table
}

// NewCollection wraps tables under a name.
func NewCollection(name string, tables ...*Table) Collection {
	return Collection{Name: name, Tables: tables}
}

// Sink persists collections. Exists reports whether a collection is already
// stored, which lets a run skip finished units.
type Sink interface {
	Exists(name string) (bool, error)
	Write(c Collection) error
	Close() error
}

// ArtifactName returns the storage name of the i-th table of c. The first
// table is stored under the collection name; later tables get the table
// name appended.
func (c Collection) ArtifactName(i int) string {
	if i == 0 {
		return c.Name
	}
	return c.Name + "_" + c.Tables[i].Name
}

// validate checks that c holds at least one well-formed table.
func (c Collection) validate() error {
	if len(c.Tables) == 0 {
		return fmt.Errorf("%w: collection %q is empty", ErrEmptyTable, c.Name)
	}
	for _, t := range c.Tables {
		if len(t.Columns) == 0 {
			return fmt.Errorf("%w: %q in collection %q", ErrEmptyTable, t.Name, c.Name)
		}
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Format names an output format.
type Format string

const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatXLSX, FormatCSV, FormatSQLite:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}
