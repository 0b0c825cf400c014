package ast

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "=="
	OpNe Op = "!="
	OpGt Op = ">"
	OpLt Op = "<"
	OpGe Op = ">="
	OpLe Op = "<="
	OpIn Op = "in"
)

// Ordered reports whether the operator needs numeric operands.
func (o Op) Ordered() bool {
	switch o {
	case OpGt, OpLt, OpGe, OpLe:
		return true
	}
	return false
}

// Expr is a lowered condition expression. The set of implementations is
// closed: *Comparison, *And, *Or and *Not.
type Expr interface {
	Position() lexer.Position
	String() string
	expr()
}

// Comparison tests one variable. Value holds the literal for scalar
// operators, Set the members for OpIn.
type Comparison struct {
	Pos      lexer.Position
	Variable string
	Op       Op
	Value    interface{}
	Set      []interface{}
}

// And is a conjunction.
type And struct {
	Pos         lexer.Position
	Left, Right Expr
}

// Or is a disjunction.
type Or struct {
	Pos         lexer.Position
	Left, Right Expr
}

// Not is a negation.
type Not struct {
	Pos  lexer.Position
	Expr Expr
}

func (*Comparison) expr() {}
func (*And) expr()        {}
func (*Or) expr()         {}
func (*Not) expr()        {}

func (c *Comparison) Position() lexer.Position { return c.Pos }
func (a *And) Position() lexer.Position        { return a.Pos }
func (o *Or) Position() lexer.Position         { return o.Pos }
func (n *Not) Position() lexer.Position        { return n.Pos }

func (c *Comparison) String() string {
	if c.Op == OpIn {
		items := make([]string, len(c.Set))
		for i, item := range c.Set {
			items[i] = FormatLiteral(item)
		}
		return c.Variable + " %in% c(" + strings.Join(items, ", ") + ")"
	}
	return c.Variable + " " + string(c.Op) + " " + FormatLiteral(c.Value)
}

func (a *And) String() string {
	return group(a.Left, false) + " & " + group(a.Right, true)
}

func (o *Or) String() string {
	left := o.Left.String()
	right := o.Right.String()
	if _, ok := o.Right.(*Or); ok {
		right = "(" + right + ")"
	}
	return left + " | " + right
}

func (n *Not) String() string {
	return "!(" + n.Expr.String() + ")"
}

// group renders an operand of &, parenthesizing looser or right-nested terms.
func group(e Expr, right bool) string {
	switch e.(type) {
	case *Or:
		return "(" + e.String() + ")"
	case *And:
		if right {
			return "(" + e.String() + ")"
		}
	}
	return e.String()
}

// FormatLiteral renders a literal value in formula syntax.
func FormatLiteral(v interface{}) string {
	switch val := v.(type) {
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case nil:
		return `""`
	}
	return strconv.Quote(fmt.Sprint(v))
}

// Walk visits e and its children depth first. Returning false from fn
// skips the children of the current node.
func Walk(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *And:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Or:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Not:
		Walk(n.Expr, fn)
	}
}

// Variables returns the sorted, unique variable names referenced by e.
func Variables(e Expr) []string {
	seen := make(map[string]struct{})
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*Comparison); ok {
			seen[c.Variable] = struct{}{}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
