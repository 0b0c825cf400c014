package condition

import (
	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/common"
	"github.com/crosstab/crosstab-go/inputs"
)

// Evaluate walks expr against state directly. It is the reference
// semantics for compiled predicates.
func Evaluate(expr ast.Expr, state inputs.State) bool {
	switch n := expr.(type) {
	case *ast.And:
		return Evaluate(n.Left, state) && Evaluate(n.Right, state)
	case *ast.Or:
		return Evaluate(n.Left, state) || Evaluate(n.Right, state)
	case *ast.Not:
		return !Evaluate(n.Expr, state)
	case *ast.Comparison:
		operand := n.Value
		if n.Op == ast.OpIn {
			operand = n.Set
		}
		return holds(state[n.Variable], n.Op, operand)
	}
	return false
}

// holds applies op to a state value. A missing value satisfies only !=.
// A multi-valued value satisfies op when any element does, and != is the
// negation of ==.
func holds(value interface{}, op ast.Op, operand interface{}) bool {
	if value == nil {
		return op == ast.OpNe
	}
	if items, ok := common.ToSlice(value); ok {
		if op == ast.OpNe {
			return !holds(items, ast.OpEq, operand)
		}
		for _, item := range items {
			if item != nil && holdsScalar(item, op, operand) {
				return true
			}
		}
		return false
	}
	return holdsScalar(value, op, operand)
}

func holdsScalar(value interface{}, op ast.Op, operand interface{}) bool {
	switch op {
	case ast.OpEq:
		return common.Equal(value, operand)
	case ast.OpNe:
		return !common.Equal(value, operand)
	case ast.OpIn:
		set, _ := common.ToSlice(operand)
		for _, member := range set {
			if common.Equal(value, member) {
				return true
			}
		}
		return false
	}

	a, okA := common.ToFloat(value)
	b, okB := common.ToFloat(operand)
	if !okA || !okB {
		return false
	}
	switch op {
	case ast.OpGt:
		return a > b
	case ast.OpLt:
		return a < b
	case ast.OpGe:
		return a >= b
	case ast.OpLe:
		return a <= b
	}
	return false
}
