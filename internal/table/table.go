// Package table holds the in-memory tabular model that flows between the
// pipeline stages: a positional schema plus rows of Go values, where nil is
// SQL NULL.
//
// Values stored in a column must match its Kind:
//
//	String    -> string
//	Float64   -> float64
//	Int64     -> int64
//	Timestamp -> time.Time
package table

import (
	"fmt"
	"time"
)

// Kind is the logical type of a column.
type Kind int

const (
	String Kind = iota
	Float64
	Int64
	Timestamp
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column describes one attribute of a table.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
}

// Schema is the ordered column list of a table.
type Schema []Column

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Table is a schema plus positional rows.
type Table struct {
	Schema Schema
	Rows   [][]any
}

// New returns an empty table with the given schema and row capacity.
func New(schema Schema, capacity int) *Table {
	return &Table{Schema: schema, Rows: make([][]any, 0, capacity)}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds a row. The row must be aligned to the schema.
func (t *Table) Append(row []any) { t.Rows = append(t.Rows, row) }

// Column returns the values of the named column, or nil if the column does
// not exist.
func (t *Table) Column(name string) []any {
	i := t.Schema.Index(name)
	if i < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// Validate checks every row against the schema: width, nullability and the
// Go type of each value.
func (t *Table) Validate() error {
	for r, row := range t.Rows {
		if len(row) != len(t.Schema) {
			return fmt.Errorf("row %d: has %d values, schema has %d columns", r, len(row), len(t.Schema))
		}
		for i, c := range t.Schema {
			v := row[i]
			if v == nil {
				if !c.Nullable {
					return fmt.Errorf("row %d: column %q is NULL but not nullable", r, c.Name)
				}
				continue
			}
			if !c.Kind.accepts(v) {
				return fmt.Errorf("row %d: column %q expects %s, got %T", r, c.Name, c.Kind, v)
			}
		}
	}
	return nil
}

func (k Kind) accepts(v any) bool {
	switch v.(type) {
	case string:
		return k == String
	case float64:
		return k == Float64
	case int64:
		return k == Int64
	case time.Time:
		return k == Timestamp
	default:
		return false
	}
}
