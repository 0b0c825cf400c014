package condition

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/crosstab/crosstab-go/ast"
)

// UnknownVariableError reports a formula variable that names no input.
type UnknownVariableError struct {
	Name        string
	Suggestions []string
	Pos         lexer.Position
}

func (e *UnknownVariableError) Error() string {
	msg := fmt.Sprintf("%d:%d: unknown variable %q", e.Pos.Line, e.Pos.Column, e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// TypeMismatchError reports an operator applied to values it cannot order.
type TypeMismatchError struct {
	Variable string
	Op       ast.Op
	Reason   string
	Pos      lexer.Position
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%d:%d: %s %s: %s", e.Pos.Line, e.Pos.Column, e.Variable, e.Op, e.Reason)
}
