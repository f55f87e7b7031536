package cuts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dnswlt/skycat/internal/table"
)

// Cut is a boolean row predicate over a table.
type Cut interface {
	// Mask returns one entry per table row, true where the row passes the cut.
	Mask(t *table.Table) ([]bool, error)
	String() string
}

// Parse parses a cut expression, e.g. "ZQUALITY >= 3 AND REMOVE == -1".
func Parse(input string) (Cut, error) {
	expr, err := parse(input)
	if err != nil {
		return nil, err
	}
	return &exprCut{expr: expr}, nil
}

// MustParse is like Parse but panics on error. Intended for fixed,
// compile-time cut expressions.
func MustParse(input string) Cut {
	c, err := Parse(input)
	if err != nil {
		panic(fmt.Sprintf("invalid cut expression %q: %v", input, err))
	}
	return c
}

// exprCut evaluates a parsed expression.
type exprCut struct {
	expr Expression
}

func (c *exprCut) Mask(t *table.Table) ([]bool, error) {
	return newEvaluator().evaluateNode(t, c.expr)
}

func (c *exprCut) String() string {
	return c.expr.String()
}

// And returns a cut that passes rows passing all of the given cuts.
// And() with no arguments passes every row.
func And(cs ...Cut) Cut {
	return &andCut{cs: cs}
}

// Or returns a cut that passes rows passing any of the given cuts.
func Or(cs ...Cut) Cut {
	return &orCut{cs: cs}
}

// Not returns a cut that inverts c.
func Not(c Cut) Cut {
	return &notCut{c: c}
}

type andCut struct {
	cs []Cut
}

func (a *andCut) Mask(t *table.Table) ([]bool, error) {
	mask := make([]bool, t.NumRows())
	for i := range mask {
		mask[i] = true
	}
	for _, c := range a.cs {
		m, err := c.Mask(t)
		if err != nil {
			return nil, err
		}
		for i := range mask {
			mask[i] = mask[i] && m[i]
		}
	}
	return mask, nil
}

func (a *andCut) String() string {
	return joinCuts(a.cs, " AND ")
}

type orCut struct {
	cs []Cut
}

func (o *orCut) Mask(t *table.Table) ([]bool, error) {
	mask := make([]bool, t.NumRows())
	for _, c := range o.cs {
		m, err := c.Mask(t)
		if err != nil {
			return nil, err
		}
		for i := range mask {
			mask[i] = mask[i] || m[i]
		}
	}
	return mask, nil
}

func (o *orCut) String() string {
	return joinCuts(o.cs, " OR ")
}

type notCut struct {
	c Cut
}

func (n *notCut) Mask(t *table.Table) ([]bool, error) {
	mask, err := n.c.Mask(t)
	if err != nil {
		return nil, err
	}
	for i := range mask {
		mask[i] = !mask[i]
	}
	return mask, nil
}

func (n *notCut) String() string {
	return "!(" + n.c.String() + ")"
}

func joinCuts(cs []Cut, sep string) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Filter returns the rows of t passing the cut. A nil cut passes every row.
func Filter(t *table.Table, c Cut) (*table.Table, error) {
	if c == nil {
		return t, nil
	}
	mask, err := c.Mask(t)
	if err != nil {
		return nil, err
	}
	return t.Filter(mask)
}

// Count returns the number of rows of t passing the cut.
func Count(t *table.Table, c Cut) (int, error) {
	mask, err := c.Mask(t)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ok := range mask {
		if ok {
			n++
		}
	}
	return n, nil
}

// FillValues sets the given column values on all rows passing the cut and
// returns the number of modified rows.
func FillValues(t *table.Table, c Cut, values map[string]any) (int, error) {
	mask, err := c.Mask(t)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ok := range mask {
		if ok {
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	for name, v := range values {
		col, err := t.Column(name)
		if err != nil {
			return 0, err
		}
		for i, ok := range mask {
			if !ok {
				continue
			}
			if err := col.Set(i, v); err != nil {
				return 0, err
			}
		}
	}
	return n, nil
}

// Registry holds named cuts, typically populated from configuration.
type Registry struct {
	cuts map[string]Cut
}

func NewRegistry() *Registry {
	return &Registry{cuts: make(map[string]Cut)}
}

// NewRegistryFromConfig parses a name -> expression map into a registry.
func NewRegistryFromConfig(exprs map[string]string) (*Registry, error) {
	r := NewRegistry()
	for name, expr := range exprs {
		c, err := Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid cut %q: %w", name, err)
		}
		r.Register(name, c)
	}
	return r, nil
}

func (r *Registry) Register(name string, c Cut) {
	r.cuts[name] = c
}

// Lookup returns the cut registered under name.
func (r *Registry) Lookup(name string) (Cut, error) {
	c, ok := r.cuts[name]
	if !ok {
		return nil, fmt.Errorf("no such cut: %q", name)
	}
	return c, nil
}

// Names returns the sorted names of all registered cuts.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.cuts))
	for name := range r.cuts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
