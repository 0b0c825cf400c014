package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dumper prints a lowered expression as an indented tree.
type Dumper struct {
	writer io.Writer
	indent string
}

// NewDumper creates a dumper writing to w.
func NewDumper(w io.Writer) *Dumper {
	return &Dumper{writer: w}
}

// Dump prints e and its children.
func (d *Dumper) Dump(e Expr) {
	d.indent = ""
	d.dump(e)
}

func (d *Dumper) dump(e Expr) {
	pos := e.Position()
	switch n := e.(type) {
	case *Comparison:
		if n.Op == OpIn {
			fmt.Fprintf(d.writer, "%sIn %s (%d:%d)\n", d.indent, n.Variable, pos.Line, pos.Column)
			for i, item := range n.Set {
				fmt.Fprintf(d.writer, "%s  Member %d: %s\n", d.indent, i+1, describeLiteral(item))
			}
			return
		}
		fmt.Fprintf(d.writer, "%sComparison %s %s %s (%d:%d)\n",
			d.indent, n.Variable, n.Op, describeLiteral(n.Value), pos.Line, pos.Column)
	case *And:
		d.binary("And", pos.Line, pos.Column, n.Left, n.Right)
	case *Or:
		d.binary("Or", pos.Line, pos.Column, n.Left, n.Right)
	case *Not:
		fmt.Fprintf(d.writer, "%sNot (%d:%d)\n", d.indent, pos.Line, pos.Column)
		d.nested(n.Expr)
	}
}

func (d *Dumper) binary(name string, line, column int, left, right Expr) {
	fmt.Fprintf(d.writer, "%s%s (%d:%d)\n", d.indent, name, line, column)
	d.nested(left)
	d.nested(right)
}

func (d *Dumper) nested(e Expr) {
	saved := d.indent
	d.indent += "  "
	d.dump(e)
	d.indent = saved
}

// describeLiteral renders a literal with its kind.
func describeLiteral(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("string(%q)", val)
	case float64:
		return fmt.Sprintf("number(%s)", FormatLiteral(val))
	case bool:
		return fmt.Sprintf("bool(%t)", val)
	case nil:
		return "nil"
	}
	return strings.TrimSpace(fmt.Sprintf("%T(%v)", v, v))
}
