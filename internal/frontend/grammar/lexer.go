package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SourceLexer tokenizes the C-like subset: comments, identifiers/keywords,
// integer literals, the compound-assignment/comparison operators, and
// punctuation. Order matters — longer operators must be tried before their
// single-character prefixes.
var SourceLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"DocComment", `///[^\n]*`, nil},
		{"Comment", `//[^\n]*`, nil},

		{"Ident", `[a-zA-Z_][a-zA-Z0-9_]*`, nil},
		{"Integer", `0x[0-9a-fA-F]+|[0-9]+`, nil},

		{"Operator", `(\+=|-=|\*=|/=|%=|==|!=|<=|>=|&&|\|\||[-+*/%<>=!])`, nil},
		{"Punctuation", `[{}()\[\],;]`, nil},

		{"Whitespace", `[ \t\r\n]+`, nil},
	},
})
