// Package dataset provides the in-memory tabular structure the engine
// executes against: named, typed columns with rows addressable by
// position and explicit missing cells.
package dataset

import "fmt"

// ColumnType enumerates the supported column value types.
type ColumnType int

const (
	Float ColumnType = iota
	Integer
	String
	Bool
)

// String returns the type name used in error messages.
func (t ColumnType) String() string {
	switch t {
	case Float:
		return "float"
	case Integer:
		return "integer"
	case String:
		return "string"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column holds one named, typed column. A nil cell is an explicitly
// missing value, never a default.
type Column struct {
	Name  string
	Type  ColumnType
	cells []interface{}
}

// NewColumn creates a column from the given cells. Each non-nil cell must
// match the declared type: float64, int64, string, or bool.
func NewColumn(name string, typ ColumnType, cells []interface{}) (*Column, error) {
	for i, c := range cells {
		if c == nil {
			continue
		}
		if !typeMatches(typ, c) {
			return nil, fmt.Errorf("column %q row %d: expected %s, got %T", name, i, typ, c)
		}
	}
	return &Column{Name: name, Type: typ, cells: cells}, nil
}

func typeMatches(typ ColumnType, v interface{}) bool {
	switch typ {
	case Float:
		_, ok := v.(float64)
		return ok
	case Integer:
		_, ok := v.(int64)
		return ok
	case String:
		_, ok := v.(string)
		return ok
	case Bool:
		_, ok := v.(bool)
		return ok
	}
	return false
}

// Value returns the cell at the given row, nil when missing.
func (c *Column) Value(row int) interface{} { return c.cells[row] }

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.cells) }

// Dataset is a read-only collection of equal-length columns. The zero
// value is not usable; construct with New.
type Dataset struct {
	name   string
	cols   []*Column
	byName map[string]int
	rows   int
}

// New creates a dataset from the given columns. All columns must have the
// same length and distinct names.
func New(name string, cols ...*Column) (*Dataset, error) {
	ds := &Dataset{name: name, byName: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := ds.addColumn(c); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (d *Dataset) addColumn(c *Column) error {
	if _, exists := d.byName[c.Name]; exists {
		return fmt.Errorf("dataset %q: duplicate column %q", d.name, c.Name)
	}
	if len(d.cols) == 0 {
		d.rows = c.Len()
	} else if c.Len() != d.rows {
		return fmt.Errorf("dataset %q: column %q has %d rows, want %d", d.name, c.Name, c.Len(), d.rows)
	}
	d.byName[c.Name] = len(d.cols)
	d.cols = append(d.cols, c)
	return nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.name }

// Rows returns the number of rows.
func (d *Dataset) Rows() int { return d.rows }

// Column returns the named column, or false if absent.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// ColumnNames returns the column names in declaration order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.cols))
	for i, c := range d.cols {
		names[i] = c.Name
	}
	return names
}

// Value returns the cell at (row, column name), nil when missing.
// Panics on an unknown column; callers validate the schema first.
func (d *Dataset) Value(row int, column string) interface{} {
	i, ok := d.byName[column]
	if !ok {
		panic(fmt.Sprintf("dataset %q: no column %q", d.name, column))
	}
	return d.cols[i].cells[row]
}

// WithColumn returns a new dataset sharing this dataset's columns plus
// the given new column. The receiver is not modified.
func (d *Dataset) WithColumn(c *Column) (*Dataset, error) {
	out := &Dataset{name: d.name, rows: d.rows, byName: make(map[string]int, len(d.cols)+1)}
	for _, existing := range d.cols {
		out.byName[existing.Name] = len(out.cols)
		out.cols = append(out.cols, existing)
	}
	if err := out.addColumn(c); err != nil {
		return nil, err
	}
	return out, nil
}

// Select returns a new dataset containing only the given rows, in order.
// Column cells are copied so the result is independent of the source.
func (d *Dataset) Select(rows []int) (*Dataset, error) {
	cols := make([]*Column, len(d.cols))
	for i, c := range d.cols {
		cells := make([]interface{}, len(rows))
		for j, r := range rows {
			cells[j] = c.cells[r]
		}
		cols[i] = &Column{Name: c.Name, Type: c.Type, cells: cells}
	}
	return New(d.name, cols...)
}
