package ast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var formulaParser = participle.MustBuild[Formula](
	participle.Lexer(Lexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// ParseError reports a malformed formula.
type ParseError struct {
	Pos      lexer.Position
	Expected string
	Reason   string
}

func (e *ParseError) Error() string {
	msg := e.Reason
	if e.Expected != "" {
		msg = fmt.Sprintf("%s (expected %s)", msg, e.Expected)
	}
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, msg)
}

// Parse parses formula text such as `~ region == "A" & year > 2020` and
// lowers it to an Expr.
func Parse(text string) (Expr, error) {
	if err := checkOneSided(text); err != nil {
		return nil, err
	}
	formula, err := formulaParser.ParseString("", text)
	if err != nil {
		return nil, toParseError(err)
	}
	return lowerOr(formula.Body), nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) Expr {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

func checkOneSided(text string) error {
	lex, err := Lexer.LexString("", text)
	if err != nil {
		return toParseError(err)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return toParseError(err)
	}
	symbols := Lexer.Symbols()
	tilde, whitespace := symbols["Tilde"], symbols["Whitespace"]

	var first *lexer.Token
	for i := range tokens {
		tok := tokens[i]
		if tok.EOF() || tok.Type == whitespace {
			continue
		}
		if tok.Type == tilde {
			if first != nil {
				return &ParseError{Pos: first.Pos, Reason: "must be one-sided"}
			}
			return nil
		}
		if first == nil {
			first = &tokens[i]
		}
	}
	return nil
}

func toParseError(err error) *ParseError {
	pe := &ParseError{Reason: err.Error()}
	var perr participle.Error
	if errors.As(err, &perr) {
		pe.Pos = perr.Position()
		pe.Reason = perr.Message()
	}
	var unexpected *participle.UnexpectedTokenError
	if errors.As(err, &unexpected) {
		pe.Expected = unexpected.Expect
	}
	return pe
}

func lowerOr(term *OrTerm) Expr {
	e := lowerAnd(term.Left)
	for _, right := range term.Right {
		e = &Or{Pos: term.Pos, Left: e, Right: lowerAnd(right)}
	}
	return e
}

func lowerAnd(term *AndTerm) Expr {
	e := lowerUnary(term.Left)
	for _, right := range term.Right {
		e = &And{Pos: term.Pos, Left: e, Right: lowerUnary(right)}
	}
	return e
}

func lowerUnary(term *UnaryTerm) Expr {
	if term.Negated != nil {
		return &Not{Pos: term.Pos, Expr: lowerUnary(term.Negated)}
	}
	if term.Primary.Group != nil {
		return lowerOr(term.Primary.Group)
	}
	return lowerComparison(term.Primary.Comparison)
}

func lowerComparison(term *ComparisonTerm) Expr {
	c := &Comparison{Pos: term.Pos, Variable: term.Variable}
	switch {
	case term.In:
		c.Op = OpIn
		c.Set = make([]interface{}, 0, len(term.Set.Items))
		for _, item := range term.Set.Items {
			item.PostProcess()
			c.Set = append(c.Set, item.Value())
		}
	case term.Op != "":
		c.Op = Op(strings.TrimSpace(term.Op))
		term.Value.PostProcess()
		c.Value = term.Value.Value()
	default:
		c.Op = OpEq
		c.Value = true
	}
	return c
}
