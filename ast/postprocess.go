package ast

import (
	"strconv"
	"strings"
)

func unquoteString(value string) string {
	if len(value) < 2 {
		return value
	}
	if value[0] == '\'' && value[len(value)-1] == '\'' {
		inner := value[1 : len(value)-1]
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
		value = `"` + inner + `"`
	}
	unquoted, err := strconv.Unquote(value)
	if err != nil {
		return value
	}
	return unquoted
}

// PostProcess normalizes string literals in place.
func (l *Literal) PostProcess() {
	if l == nil || l.String == nil {
		return
	}
	value := unquoteString(*l.String)
	l.String = &value
}

// Value returns the literal as a Go scalar: string, float64 or bool.
func (l *Literal) Value() interface{} {
	switch {
	case l == nil:
		return nil
	case l.String != nil:
		return *l.String
	case l.Number != nil:
		return *l.Number
	case l.Bool != nil:
		return bool(*l.Bool)
	}
	return nil
}
