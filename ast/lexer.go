package ast

import "github.com/alecthomas/participle/v2/lexer"

// Lexer defines the token rules for visibility formulas.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Whitespace", Pattern: `\s+`, Action: nil},
		{Name: "Tilde", Pattern: `~`, Action: nil},
		{Name: "Number", Pattern: `-?(?:\d+\.\d*|\.\d+|\d+)(?:[eE][-+]?\d+)?`, Action: nil},
		{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:\\.|[^'\\])*'`, Action: nil},
		{Name: "InOp", Pattern: `%in%`, Action: nil},
		{Name: "Operator", Pattern: `==|!=|>=|<=|>|<`, Action: nil},
		{Name: "AndOp", Pattern: `&&|&`, Action: nil},
		{Name: "OrOp", Pattern: `\|\||\|`, Action: nil},
		{Name: "NotOp", Pattern: `!`, Action: nil},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_.]*`, Action: nil},
		{Name: "Punct", Pattern: `[(),\[\]]`, Action: nil},
	},
})
