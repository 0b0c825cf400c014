// Package condition compiles visibility formulas into predicates over the
// filter state.
package condition

import (
	"errors"

	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/common"
	"github.com/crosstab/crosstab-go/inputs"
)

// Predicate decides visibility from the current filter state.
type Predicate func(inputs.State) bool

// Always is the predicate of elements without a condition.
func Always(inputs.State) bool { return true }

// Compile checks expr against the registry and returns a predicate. All
// unknown variables and type mismatches are reported together.
func Compile(expr ast.Expr, registry *inputs.Registry) (Predicate, error) {
	if err := Check(expr, registry); err != nil {
		return nil, err
	}
	return build(expr), nil
}

// Check validates expr against the registry without building a predicate.
func Check(expr ast.Expr, registry *inputs.Registry) error {
	var errs []error
	ast.Walk(expr, func(n ast.Expr) bool {
		c, ok := n.(*ast.Comparison)
		if !ok {
			return true
		}
		spec, found := registry.Lookup(c.Variable)
		if !found {
			errs = append(errs, &UnknownVariableError{
				Name:        c.Variable,
				Suggestions: registry.Suggest(c.Variable),
				Pos:         c.Pos,
			})
			return true
		}
		if err := checkOperands(c, spec); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

func checkOperands(c *ast.Comparison, spec inputs.Spec) error {
	if !c.Op.Ordered() {
		return nil
	}
	mismatch := func(reason string) error {
		return &TypeMismatchError{Variable: c.Variable, Op: c.Op, Reason: reason, Pos: c.Pos}
	}
	if _, ok := c.Value.(float64); !ok {
		return mismatch("literal " + ast.FormatLiteral(c.Value) + " is not numeric")
	}
	if spec.Kind.Numeric() {
		return nil
	}
	if spec.Kind.Enumerated() && spec.Domain.AllNumeric() {
		return nil
	}
	return mismatch("input kind " + string(spec.Kind) + " is not numeric")
}

func build(expr ast.Expr) Predicate {
	switch n := expr.(type) {
	case *ast.And:
		left, right := build(n.Left), build(n.Right)
		return func(s inputs.State) bool { return left(s) && right(s) }
	case *ast.Or:
		left, right := build(n.Left), build(n.Right)
		return func(s inputs.State) bool { return left(s) || right(s) }
	case *ast.Not:
		inner := build(n.Expr)
		return func(s inputs.State) bool { return !inner(s) }
	case *ast.Comparison:
		return newComparison(n).eval
	}
	return func(inputs.State) bool { return false }
}

// comparison carries the literal keys of one test, computed once.
type comparison struct {
	id    string
	op    ast.Op
	key   string
	num   float64
	isNum bool
	set   map[string]struct{}
}

func newComparison(c *ast.Comparison) *comparison {
	cmp := &comparison{id: c.Variable, op: c.Op}
	if c.Op == ast.OpIn {
		cmp.set = make(map[string]struct{}, len(c.Set))
		for _, member := range c.Set {
			cmp.set[common.Key(member)] = struct{}{}
		}
		return cmp
	}
	cmp.key = common.Key(c.Value)
	cmp.num, cmp.isNum = common.ToFloat(c.Value)
	return cmp
}

func (c *comparison) eval(state inputs.State) bool {
	value := state[c.id]
	if value == nil {
		return c.op == ast.OpNe
	}
	if items, ok := common.ToSlice(value); ok {
		op := c.op
		if op == ast.OpNe {
			op = ast.OpEq
		}
		found := false
		for _, item := range items {
			if item != nil && c.match(item, op) {
				found = true
				break
			}
		}
		if c.op == ast.OpNe {
			return !found
		}
		return found
	}
	return c.match(value, c.op)
}

func (c *comparison) match(value interface{}, op ast.Op) bool {
	switch op {
	case ast.OpEq:
		return common.Key(value) == c.key
	case ast.OpNe:
		return common.Key(value) != c.key
	case ast.OpIn:
		_, ok := c.set[common.Key(value)]
		return ok
	}
	if !c.isNum {
		return false
	}
	f, ok := common.ToFloat(value)
	if !ok {
		return false
	}
	switch op {
	case ast.OpGt:
		return f > c.num
	case ast.OpLt:
		return f < c.num
	case ast.OpGe:
		return f >= c.num
	case ast.OpLe:
		return f <= c.num
	}
	return false
}
