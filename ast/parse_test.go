package ast

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		want    string
	}{
		{"and binds tighter than or", `~ a == 1 | b == 2 & c == 3`, `a == 1 | b == 2 & c == 3`},
		{"parentheses group", `~ (a == 1 | b == 2) & c == 3`, `(a == 1 | b == 2) & c == 3`},
		{"not binds tighter than and", `~ !a & b == "x"`, `!(a == true) & b == "x"`},
		{"keyword operators", `~ a > 1 and not b or c <= 2`, `a > 1 & !(b == true) | c <= 2`},
		{"double operators", `~ a >= 1 && b != 'y' || c < -2.5`, `a >= 1 & b != "y" | c < -2.5`},
		{"tilde optional", `region == "A"`, `region == "A"`},
		{"bare variable", `~ flag`, `flag == true`},
		{"upper case booleans", `~ flag == FALSE`, `flag == false`},
		{"exponent", `~ n > 1e3`, `n > 1000`},
		{"dotted identifier", `~ survey.region == "A"`, `survey.region == "A"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestParseMembership(t *testing.T) {
	forms := []string{
		`~ region %in% c("A", 'B')`,
		`~ region in ["A", "B"]`,
	}
	for _, form := range forms {
		e, err := Parse(form)
		require.NoError(t, err, form)
		c, ok := e.(*Comparison)
		require.True(t, ok)
		assert.Equal(t, OpIn, c.Op)
		assert.Equal(t, []interface{}{"A", "B"}, c.Set)
	}
}

func TestParseLowersTree(t *testing.T) {
	e, err := Parse(`~ a == 1 | !(b == "x")`)
	require.NoError(t, err)

	or, ok := e.(*Or)
	require.True(t, ok)
	left, ok := or.Left.(*Comparison)
	require.True(t, ok)
	assert.Equal(t, "a", left.Variable)
	assert.Equal(t, 1.0, left.Value)

	not, ok := or.Right.(*Not)
	require.True(t, ok)
	inner, ok := not.Expr.(*Comparison)
	require.True(t, ok)
	assert.Equal(t, OpEq, inner.Op)
	assert.Equal(t, "x", inner.Value)
}

func TestStringRoundTrips(t *testing.T) {
	formulas := []string{
		`~ a == 1 | b == 2 & !(c == "q\"x")`,
		`~ a == 1 & (b == 2 & c == 3)`,
		`~ a == 1 | (b == 2 | c == 3)`,
		`~ region %in% c("A", "B") & year >= 2020`,
		`~ !(!(flag))`,
	}
	for _, formula := range formulas {
		first, err := Parse(formula)
		require.NoError(t, err, formula)
		second, err := Parse(first.String())
		require.NoError(t, err, first.String())
		assert.Equal(t, first.String(), second.String())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		formula string
		reason  string
	}{
		{"two sided", `y ~ x == 1`, "must be one-sided"},
		{"dangling operator", `~ a ==`, ""},
		{"unbalanced parenthesis", `~ (a == 1`, ""},
		{"empty", ``, ""},
		{"single equals", `~ a = 1`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.formula)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, perr.Reason)
			}
			assert.NotEmpty(t, perr.Error())
		})
	}
}

func TestTwoSidedPosition(t *testing.T) {
	_, err := Parse(`  y ~ x`)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 1, perr.Pos.Line)
	assert.Equal(t, 3, perr.Pos.Column)
}

func TestVariables(t *testing.T) {
	e := MustParse(`~ year > 2020 & (region == "A" | year < 2030) & !flag`)
	assert.Equal(t, []string{"flag", "region", "year"}, Variables(e))
}

func TestWalkSkipsChildren(t *testing.T) {
	e := MustParse(`~ !(a == 1) & b == 2`)
	var seen []string
	Walk(e, func(n Expr) bool {
		if c, ok := n.(*Comparison); ok {
			seen = append(seen, c.Variable)
		}
		_, isNot := n.(*Not)
		return !isNot
	})
	assert.Equal(t, []string{"b"}, seen)
}
