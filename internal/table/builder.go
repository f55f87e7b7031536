package table

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnSpec declares a column for a Builder.
type ColumnSpec struct {
	Name string
	Kind Kind
}

// Builder constructs a table row by row from string cells, parsing each cell
// according to the declared column kind.
type Builder struct {
	specs []ColumnSpec
	cells [][]string // cells[j] holds the raw values of column j
}

func NewBuilder(specs []ColumnSpec) *Builder {
	return &Builder{
		specs: specs,
		cells: make([][]string, len(specs)),
	}
}

// AppendRow appends one row. The number of cells must match the declared
// columns, and each cell must be parseable as its column kind, so that
// the error points at the offending row rather than surfacing in Build.
func (b *Builder) AppendRow(cells []string) error {
	if len(cells) != len(b.specs) {
		return fmt.Errorf("row has %d cells, want %d", len(cells), len(b.specs))
	}
	for j, s := range cells {
		if err := ParseCell(s, b.specs[j].Kind); err != nil {
			return fmt.Errorf("column %q: invalid %s %q", b.specs[j].Name, b.specs[j].Kind, s)
		}
	}
	for j, s := range cells {
		b.cells[j] = append(b.cells[j], s)
	}
	return nil
}

func (b *Builder) NumRows() int {
	if len(b.cells) == 0 {
		return 0
	}
	return len(b.cells[0])
}

// Build parses all cells and returns the table.
func (b *Builder) Build() (*Table, error) {
	t := &Table{index: make(map[string]int)}
	for j, spec := range b.specs {
		col, err := parseColumn(spec.Name, spec.Kind, b.cells[j])
		if err != nil {
			return nil, err
		}
		if err := t.AddColumn(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ParseCell validates that s can be parsed as the given kind.
func ParseCell(s string, kind Kind) error {
	s = strings.TrimSpace(s)
	switch kind {
	case Int:
		_, err := strconv.ParseInt(s, 10, 64)
		return err
	case Float:
		if s == "" {
			return nil
		}
		_, err := strconv.ParseFloat(s, 64)
		return err
	case Bool:
		_, err := strconv.ParseBool(strings.ToLower(s))
		return err
	}
	return nil
}
