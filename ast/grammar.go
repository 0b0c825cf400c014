package ast

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Formula is the parse tree of a one-sided formula.
type Formula struct {
	Pos  lexer.Position
	Body *OrTerm `parser:"Tilde? @@"`
}

// OrTerm is a disjunction, the loosest binding level.
type OrTerm struct {
	Pos   lexer.Position
	Left  *AndTerm   `parser:"@@"`
	Right []*AndTerm `parser:"( ( OrOp | 'or' ) @@ )*"`
}

// AndTerm is a conjunction of unary terms.
type AndTerm struct {
	Pos   lexer.Position
	Left  *UnaryTerm   `parser:"@@"`
	Right []*UnaryTerm `parser:"( ( AndOp | 'and' ) @@ )*"`
}

// UnaryTerm is an optionally negated primary term.
type UnaryTerm struct {
	Pos     lexer.Position
	Negated *UnaryTerm   `parser:"  ( NotOp | 'not' ) @@"`
	Primary *PrimaryTerm `parser:"| @@"`
}

// PrimaryTerm is a parenthesized expression or a comparison.
type PrimaryTerm struct {
	Pos        lexer.Position
	Group      *OrTerm         `parser:"  '(' @@ ')'"`
	Comparison *ComparisonTerm `parser:"| @@"`
}

// ComparisonTerm compares a variable against a literal or a literal set.
// A variable with no operator is a bare truthiness test.
type ComparisonTerm struct {
	Pos      lexer.Position
	Variable string      `parser:"@Ident"`
	Op       string      `parser:"( @Operator"`
	Value    *Literal    `parser:"  @@"`
	In       bool        `parser:"| @( InOp | 'in' )"`
	Set      *SetLiteral `parser:"  @@ )?"`
}

// Literal is a string, number or boolean constant.
type Literal struct {
	Pos    lexer.Position
	String *string  `parser:"  @String"`
	Number *float64 `parser:"| @Number"`
	Bool   *Boolean `parser:"| @( 'true' | 'false' | 'TRUE' | 'FALSE' )"`
}

// SetLiteral is either c(...) or [...].
type SetLiteral struct {
	Pos   lexer.Position
	Items []*Literal `parser:"( 'c' '(' ( @@ ( ',' @@ )* )? ')' | '[' ( @@ ( ',' @@ )* )? ']' )"`
}

// Boolean captures the true/false keywords in either case.
type Boolean bool

// Capture implements participle.Capture.
func (b *Boolean) Capture(values []string) error {
	*b = Boolean(strings.EqualFold(values[0], "true"))
	return nil
}
