// Package table implements the in-memory columnar tables that all catalog
// data is loaded into. A Table holds typed columns of uniform length and
// supports row filtering, column selection, and vertical stacking.
package table

import (
	"fmt"
	"math"
	"slices"
	"strconv"
)

// Kind identifies the value type of a column.
type Kind int

const (
	String Kind = iota
	Int
	Float
	Bool
)

var kindNames = map[Kind]string{
	String: "string",
	Int:    "int",
	Float:  "float",
	Bool:   "bool",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Column is a typed, named column. Exactly one of the value slices is
// populated, depending on Kind.
type Column struct {
	name string
	kind Kind

	strs   []string
	ints   []int64
	floats []float64
	bools  []bool
}

func NewStringColumn(name string, values []string) *Column {
	return &Column{name: name, kind: String, strs: values}
}

func NewIntColumn(name string, values []int64) *Column {
	return &Column{name: name, kind: Int, ints: values}
}

func NewFloatColumn(name string, values []float64) *Column {
	return &Column{name: name, kind: Float, floats: values}
}

func NewBoolColumn(name string, values []bool) *Column {
	return &Column{name: name, kind: Bool, bools: values}
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

func (c *Column) Len() int {
	switch c.kind {
	case String:
		return len(c.strs)
	case Int:
		return len(c.ints)
	case Float:
		return len(c.floats)
	case Bool:
		return len(c.bools)
	}
	return 0
}

// Strings returns the backing slice of a string column. It panics for other
// kinds; callers must check Kind first.
func (c *Column) Strings() []string {
	if c.kind != String {
		panic(fmt.Sprintf("Strings() called on %s column %q", c.kind, c.name))
	}
	return c.strs
}

func (c *Column) Ints() []int64 {
	if c.kind != Int {
		panic(fmt.Sprintf("Ints() called on %s column %q", c.kind, c.name))
	}
	return c.ints
}

func (c *Column) Floats() []float64 {
	if c.kind != Float {
		panic(fmt.Sprintf("Floats() called on %s column %q", c.kind, c.name))
	}
	return c.floats
}

func (c *Column) Bools() []bool {
	if c.kind != Bool {
		panic(fmt.Sprintf("Bools() called on %s column %q", c.kind, c.name))
	}
	return c.bools
}

// AsFloats returns the column values as float64. Int columns are
// converted; other kinds are an error. Unlike Floats, the result never
// aliases the column storage for converted columns.
func (c *Column) AsFloats() ([]float64, error) {
	switch c.kind {
	case Float:
		return c.floats, nil
	case Int:
		vals := make([]float64, len(c.ints))
		for i, x := range c.ints {
			vals[i] = float64(x)
		}
		return vals, nil
	}
	return nil, fmt.Errorf("cannot read %s column %q as float", c.kind, c.name)
}

// AsInts returns the column values as int64. Float columns are converted
// if every value is integral; NaN or fractional values are an error, as
// are other kinds. CSV kind inference makes this necessary: an ID column
// with an empty cell comes back as a float column.
func (c *Column) AsInts() ([]int64, error) {
	switch c.kind {
	case Int:
		return c.ints, nil
	case Float:
		vals := make([]int64, len(c.floats))
		for i, x := range c.floats {
			if math.IsNaN(x) || x != math.Trunc(x) {
				return nil, fmt.Errorf("column %q has non-integral value %v at row %d", c.name, x, i)
			}
			vals[i] = int64(x)
		}
		return vals, nil
	}
	return nil, fmt.Errorf("cannot read %s column %q as int", c.kind, c.name)
}

// Value returns the value at row i as an any.
func (c *Column) Value(i int) any {
	switch c.kind {
	case String:
		return c.strs[i]
	case Int:
		return c.ints[i]
	case Float:
		return c.floats[i]
	case Bool:
		return c.bools[i]
	}
	return nil
}

// Set sets the value at row i, converting v to the column kind.
// Numeric kinds accept int, int64 and float64 values.
func (c *Column) Set(i int, v any) error {
	switch c.kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %q is a string column, got %T", c.name, v)
		}
		c.strs[i] = s
	case Int:
		switch x := v.(type) {
		case int:
			c.ints[i] = int64(x)
		case int64:
			c.ints[i] = x
		case float64:
			c.ints[i] = int64(x)
		default:
			return fmt.Errorf("column %q is an int column, got %T", c.name, v)
		}
	case Float:
		switch x := v.(type) {
		case int:
			c.floats[i] = float64(x)
		case int64:
			c.floats[i] = float64(x)
		case float64:
			c.floats[i] = x
		default:
			return fmt.Errorf("column %q is a float column, got %T", c.name, v)
		}
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %q is a bool column, got %T", c.name, v)
		}
		c.bools[i] = b
	}
	return nil
}

// FormatValue renders the value at row i as a string (CSV cell format).
func (c *Column) FormatValue(i int) string {
	switch c.kind {
	case String:
		return c.strs[i]
	case Int:
		return strconv.FormatInt(c.ints[i], 10)
	case Float:
		f := c.floats[i]
		if math.IsNaN(f) {
			return ""
		}
		return strconv.FormatFloat(f, 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(c.bools[i])
	}
	return ""
}

func (c *Column) filter(mask []bool) *Column {
	out := &Column{name: c.name, kind: c.kind}
	switch c.kind {
	case String:
		for i, keep := range mask {
			if keep {
				out.strs = append(out.strs, c.strs[i])
			}
		}
	case Int:
		for i, keep := range mask {
			if keep {
				out.ints = append(out.ints, c.ints[i])
			}
		}
	case Float:
		for i, keep := range mask {
			if keep {
				out.floats = append(out.floats, c.floats[i])
			}
		}
	case Bool:
		for i, keep := range mask {
			if keep {
				out.bools = append(out.bools, c.bools[i])
			}
		}
	}
	return out
}

func (c *Column) clone() *Column {
	out := &Column{name: c.name, kind: c.kind}
	out.strs = slices.Clone(c.strs)
	out.ints = slices.Clone(c.ints)
	out.floats = slices.Clone(c.floats)
	out.bools = slices.Clone(c.bools)
	return out
}

func (c *Column) appendFrom(other *Column) {
	c.strs = append(c.strs, other.strs...)
	c.ints = append(c.ints, other.ints...)
	c.floats = append(c.floats, other.floats...)
	c.bools = append(c.bools, other.bools...)
}

// Table is an ordered collection of equal-length columns.
type Table struct {
	cols  []*Column
	index map[string]int // column name -> position in cols
}

// New creates a table from the given columns. All columns must have unique
// names and equal lengths.
func New(cols ...*Column) (*Table, error) {
	t := &Table{index: make(map[string]int)}
	for _, c := range cols {
		if err := t.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NumRows returns the number of rows. An empty table has zero rows.
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

func (t *Table) NumCols() int {
	return len(t.cols)
}

// Names returns the column names in table order.
func (t *Table) Names() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.name
	}
	return names
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("no such column: %q", name)
	}
	return t.cols[i], nil
}

// AddColumn appends a column to the table. The column length must match the
// table's row count (any length is accepted for a table without columns).
func (t *Table) AddColumn(c *Column) error {
	if _, ok := t.index[c.name]; ok {
		return fmt.Errorf("duplicate column name: %q", c.name)
	}
	if len(t.cols) > 0 && c.Len() != t.NumRows() {
		return fmt.Errorf("column %q has %d rows, table has %d", c.name, c.Len(), t.NumRows())
	}
	t.index[c.name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// AddConstColumn appends a column filled with a constant value. The column
// kind is derived from the value type (string, int/int64, float64, bool).
func (t *Table) AddConstColumn(name string, value any) error {
	n := t.NumRows()
	switch v := value.(type) {
	case string:
		vals := make([]string, n)
		for i := range vals {
			vals[i] = v
		}
		return t.AddColumn(NewStringColumn(name, vals))
	case int:
		return t.AddConstColumn(name, int64(v))
	case int64:
		vals := make([]int64, n)
		for i := range vals {
			vals[i] = v
		}
		return t.AddColumn(NewIntColumn(name, vals))
	case float64:
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = v
		}
		return t.AddColumn(NewFloatColumn(name, vals))
	case bool:
		vals := make([]bool, n)
		for i := range vals {
			vals[i] = v
		}
		return t.AddColumn(NewBoolColumn(name, vals))
	}
	return fmt.Errorf("unsupported constant type %T for column %q", value, name)
}

// RenameColumn renames column old to new.
func (t *Table) RenameColumn(old, new string) error {
	i, ok := t.index[old]
	if !ok {
		return fmt.Errorf("no such column: %q", old)
	}
	if _, taken := t.index[new]; taken {
		return fmt.Errorf("column %q already exists", new)
	}
	delete(t.index, old)
	t.cols[i].name = new
	t.index[new] = i
	return nil
}

// Filter returns a new table containing only the rows for which mask is true.
// The mask length must equal the number of rows.
func (t *Table) Filter(mask []bool) (*Table, error) {
	if len(mask) != t.NumRows() {
		return nil, fmt.Errorf("mask has %d entries, table has %d rows", len(mask), t.NumRows())
	}
	out := &Table{index: make(map[string]int)}
	for _, c := range t.cols {
		if err := out.AddColumn(c.filter(mask)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SelectColumns returns a new table with only the named columns, in the given
// order. Column storage is shared with the receiver.
func (t *Table) SelectColumns(names ...string) (*Table, error) {
	out := &Table{index: make(map[string]int)}
	for _, name := range names {
		c, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		if err := out.AddColumn(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{index: make(map[string]int)}
	for _, c := range t.cols {
		out.AddColumn(c.clone())
	}
	return out
}

// Stack vertically concatenates the given tables. All tables must have
// exactly the same column names and kinds, in the same order.
func Stack(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("no tables to stack")
	}
	first := tables[0]
	out := first.Clone()
	for _, t := range tables[1:] {
		if t.NumCols() != first.NumCols() {
			return nil, fmt.Errorf("cannot stack: %d columns vs %d", t.NumCols(), first.NumCols())
		}
		for i, c := range t.cols {
			fc := out.cols[i]
			if c.name != fc.name {
				return nil, fmt.Errorf("cannot stack: column %d is %q, want %q", i, c.name, fc.name)
			}
			if c.kind != fc.kind {
				return nil, fmt.Errorf("cannot stack: column %q is %s, want %s", c.name, c.kind, fc.kind)
			}
			fc.appendFrom(c)
		}
	}
	return out, nil
}
