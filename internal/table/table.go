// Package table is the typed wide table shared by the unifier and the
// cleaning stages. Every column has a declared type and the stage that
// created it; rows only hold values of their column's type.
package table

import (
	"fmt"
)

// Column is one declared column.
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
	// Origin is the stage that created the column.
	Origin string `json:"origin"`
}

// Row maps column names to values. Rows are treated as immutable once
// appended; transforms work on a Clone.
type Row map[string]Value

// Get returns the value of column, null when absent.
func (r Row) Get(column string) Value {
	return r[column]
}

// Text is shorthand for Get(column).Text().
func (r Row) Text(column string) string {
	return r[column].Text()
}

// Clone returns a shallow copy; values are immutable.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered schema plus rows.
type Table struct {
	columns []Column
	index   map[string]int
	rows    []Row
}

// New returns an empty table with the given columns.
func New(cols ...Column) *Table {
	t := &Table{index: map[string]int{}}
	for _, c := range cols {
		t.addColumn(c)
	}
	return t
}

// Columns returns the schema in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the declaration of name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// Has reports whether name is declared.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Rows returns the rows. Callers must not modify them.
func (t *Table) Rows() []Row {
	return t.rows
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Append adds a row after checking it against the schema. Values of
// undeclared columns are dropped; a value of the wrong type is an error.
func (t *Table) Append(r Row) error {
	out := make(Row, len(t.columns))
	for name, v := range r {
		i, ok := t.index[name]
		if !ok || v.IsNull() {
			continue
		}
		if want := t.columns[i].Type; v.Type() != want {
			return fmt.Errorf("column %s: value %q is %s, declared %s", name, v.String(), v.Type(), want)
		}
		out[name] = v
	}
	t.rows = append(t.rows, out)
	return nil
}

func (t *Table) addColumn(c Column) {
	if i, ok := t.index[c.Name]; ok {
		t.columns[i] = c
		return
	}
	t.index[c.Name] = len(t.columns)
	t.columns = append(t.columns, c)
}

// Changes is the schema delta a stage declares.
type Changes struct {
	Adds    []Column
	Removes []string
	// Retypes changes the type of existing columns; their origin is kept.
	Retypes map[string]Type
}

// Evolve returns an empty table whose schema is t's schema with ch applied.
// Added columns that already exist keep their position, so a stage rerun on
// its own output yields the same schema.
func (t *Table) Evolve(stage string, ch Changes) *Table {
	removed := make(map[string]bool, len(ch.Removes))
	for _, name := range ch.Removes {
		removed[name] = true
	}
	out := New()
	for _, c := range t.columns {
		if removed[c.Name] {
			continue
		}
		if typ, ok := ch.Retypes[c.Name]; ok {
			c.Type = typ
		}
		out.addColumn(c)
	}
	for _, c := range ch.Adds {
		if removed[c.Name] {
			continue
		}
		if existing, ok := out.Column(c.Name); ok {
			c.Origin = existing.Origin
		} else if c.Origin == "" {
			c.Origin = stage
		}
		out.addColumn(c)
	}
	return out
}

// Clone returns a copy of the table sharing no mutable state.
func (t *Table) Clone() *Table {
	out := New(t.columns...)
	out.rows = make([]Row, len(t.rows))
	for i, r := range t.rows {
		out.rows[i] = r.Clone()
	}
	return out
}
