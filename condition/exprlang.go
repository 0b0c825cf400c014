package condition

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/crosstab/crosstab-go/ast"
	"github.com/crosstab/crosstab-go/inputs"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprSource renders expr as an expr-lang expression over a `state` map.
// Comparisons become calls to test and member, which carry the same
// missing-value and multi-value semantics as compiled predicates.
func ExprSource(e ast.Expr) string {
	var b strings.Builder
	writeExpr(&b, e)
	return b.String()
}

func writeExpr(b *strings.Builder, e ast.Expr) {
	switch n := e.(type) {
	case *ast.And:
		b.WriteString("(")
		writeExpr(b, n.Left)
		b.WriteString(" && ")
		writeExpr(b, n.Right)
		b.WriteString(")")
	case *ast.Or:
		b.WriteString("(")
		writeExpr(b, n.Left)
		b.WriteString(" || ")
		writeExpr(b, n.Right)
		b.WriteString(")")
	case *ast.Not:
		b.WriteString("!")
		writeExpr(b, n.Expr)
	case *ast.Comparison:
		ref := "state[" + strconv.Quote(n.Variable) + "]"
		if n.Op == ast.OpIn {
			items := make([]string, len(n.Set))
			for i, item := range n.Set {
				items[i] = exprLiteral(item)
			}
			fmt.Fprintf(b, "member(%s, [%s])", ref, strings.Join(items, ", "))
			return
		}
		fmt.Fprintf(b, "test(%s, %q, %s)", ref, string(n.Op), exprLiteral(n.Value))
	}
}

func exprLiteral(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatFloat(val, 'f', 1, 64)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	}
	return strconv.Quote(fmt.Sprint(v))
}

func exprOptions() []expr.Option {
	return []expr.Option{
		expr.Env(map[string]interface{}{"state": map[string]interface{}{}}),
		expr.AsBool(),
		expr.Function("test", func(params ...interface{}) (interface{}, error) {
			op, _ := params[1].(string)
			return holds(params[0], ast.Op(op), params[2]), nil
		}, new(func(interface{}, string, interface{}) bool)),
		expr.Function("member", func(params ...interface{}) (interface{}, error) {
			return holds(params[0], ast.OpIn, params[1]), nil
		}, new(func(interface{}, []interface{}) bool)),
	}
}

// CompileExpr compiles source produced by ExprSource.
func CompileExpr(source string) (*vm.Program, error) {
	program, err := expr.Compile(source, exprOptions()...)
	if err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", source, err)
	}
	return program, nil
}

// RunExpr evaluates a compiled expression against state.
func RunExpr(program *vm.Program, state inputs.State) (bool, error) {
	env := map[string]interface{}{"state": map[string]interface{}(state)}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression returned %T, not bool", out)
	}
	return result, nil
}
