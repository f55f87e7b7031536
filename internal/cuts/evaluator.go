package cuts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dnswlt/skycat/internal/table"
)

// evaluator computes row masks for a parsed expression against a table.
// It caches compiled regular expressions for performance.
type evaluator struct {
	regexCache map[string]*regexp.Regexp
}

func newEvaluator() *evaluator {
	return &evaluator{
		regexCache: make(map[string]*regexp.Regexp),
	}
}

// evaluateNode recursively walks the expression tree, producing a mask with
// one entry per table row.
func (ev *evaluator) evaluateNode(t *table.Table, expr Expression) ([]bool, error) {
	switch v := expr.(type) {
	case *Comparison:
		return ev.evaluateComparison(t, v)

	case *NotExpression:
		mask, err := ev.evaluateNode(t, v.Expression)
		if err != nil {
			return nil, err
		}
		for i := range mask {
			mask[i] = !mask[i]
		}
		return mask, nil

	case *BinaryExpression:
		left, err := ev.evaluateNode(t, v.Left)
		if err != nil {
			return nil, err
		}
		right, err := ev.evaluateNode(t, v.Right)
		if err != nil {
			return nil, err
		}
		switch v.Operator {
		case "AND":
			for i := range left {
				left[i] = left[i] && right[i]
			}
			return left, nil
		case "OR":
			for i := range left {
				left[i] = left[i] || right[i]
			}
			return left, nil
		}
	}

	return nil, fmt.Errorf("unsupported expression type %T", expr)
}

func (ev *evaluator) evaluateComparison(t *table.Table, c *Comparison) ([]bool, error) {
	col, err := t.Column(c.Column)
	if err != nil {
		return nil, fmt.Errorf("cut references unknown column: %q", c.Column)
	}
	n := t.NumRows()
	mask := make([]bool, n)

	switch col.Kind() {
	case table.Int:
		// Compare as int64 when the value is integral, to avoid precision
		// loss on large object IDs. Fractional values compare as float.
		if iv, err := strconv.ParseInt(c.Value, 10, 64); err == nil {
			vals := col.Ints()
			for i, x := range vals {
				mask[i] = compareInts(x, c.Operator, iv)
			}
			return mask, nil
		}
		fv, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot compare int column %q against %q", c.Column, c.Value)
		}
		vals := col.Ints()
		for i, x := range vals {
			mask[i] = compareFloats(float64(x), c.Operator, fv)
		}
		return mask, nil

	case table.Float:
		fv, err := strconv.ParseFloat(c.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("cannot compare float column %q against %q", c.Column, c.Value)
		}
		vals := col.Floats()
		for i, x := range vals {
			mask[i] = compareFloats(x, c.Operator, fv)
		}
		return mask, nil

	case table.Bool:
		if c.Operator != "==" && c.Operator != "!=" {
			return nil, fmt.Errorf("operator %q not supported for bool column %q", c.Operator, c.Column)
		}
		bv, err := strconv.ParseBool(strings.ToLower(c.Value))
		if err != nil {
			return nil, fmt.Errorf("cannot compare bool column %q against %q", c.Column, c.Value)
		}
		vals := col.Bools()
		for i, x := range vals {
			if c.Operator == "==" {
				mask[i] = x == bv
			} else {
				mask[i] = x != bv
			}
		}
		return mask, nil

	case table.String:
		vals := col.Strings()
		switch c.Operator {
		case "==":
			for i, x := range vals {
				mask[i] = x == c.Value
			}
			return mask, nil
		case "!=":
			for i, x := range vals {
				mask[i] = x != c.Value
			}
			return mask, nil
		case "~":
			re, err := ev.compileRegex(c.Value)
			if err != nil {
				return nil, err
			}
			for i, x := range vals {
				mask[i] = re.MatchString(x)
			}
			return mask, nil
		default:
			return nil, fmt.Errorf("operator %q not supported for string column %q", c.Operator, c.Column)
		}
	}

	return nil, fmt.Errorf("unsupported column kind for %q", c.Column)
}

func (ev *evaluator) compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, found := ev.regexCache[pattern]; found {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + pattern) // (?i) for case-insensitivity
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression %q: %w", pattern, err)
	}
	ev.regexCache[pattern] = re
	return re, nil
}

// compareFloats follows IEEE semantics: every comparison with NaN is false,
// except "!=", which is true.
func compareFloats(x float64, op string, v float64) bool {
	switch op {
	case "==":
		return x == v
	case "!=":
		return x != v
	case "<":
		return x < v
	case "<=":
		return x <= v
	case ">":
		return x > v
	case ">=":
		return x >= v
	}
	return false
}

func compareInts(x int64, op string, v int64) bool {
	switch op {
	case "==":
		return x == v
	case "!=":
		return x != v
	case "<":
		return x < v
	case "<=":
		return x <= v
	case ">":
		return x > v
	case ">=":
		return x >= v
	}
	return false
}
