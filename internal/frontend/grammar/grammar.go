package grammar

import "github.com/alecthomas/participle/v2/lexer"

// Grammar for the C-like subset: function definitions over int/long/void/bool,
// straight-line statements, if/while/for control flow, and an
// operator-precedence expression grammar. Each precedence level gets its own
// participle struct (lowest to highest) rather than the teacher's flat
// BinaryExpr{Left, []BinOp} shape, because downstream constant folding and
// code generation need real precedence, not just a left-to-right operator list.

type Program struct {
	Functions []*Function `@@*`
}

type Type struct {
	Name string `@("int" | "long" | "void" | "bool")`
}

type Function struct {
	Pos        lexer.Position
	Doc        *DocComment `@@?`
	ReturnType *Type       `@@`
	Name       string      `@Ident "("`
	Params     []*Param    `[ @@ { "," @@ } ] ")"`
	Body       *Block      `@@`
}

type DocComment struct {
	Text string `@DocComment`
}

type Param struct {
	Type *Type  `@@`
	Name string `@Ident`
}

type Block struct {
	Statements []*Statement `"{" @@* "}"`
}

type Statement struct {
	Pos      lexer.Position
	Nested   *Block              `  @@`
	VarDecl  *VarDecl            `| @@`
	If       *IfStmt             `| @@`
	While    *WhileStmt          `| @@`
	For      *ForStmt            `| @@`
	Return   *ReturnStmt         `| @@`
	Compound *CompoundAssignStmt `| @@`
	Assign   *AssignStmt         `| @@`
	ExprStmt *ExprStmt           `| @@`
}

type VarDecl struct {
	Type *Type  `"let" @@?`
	Name string `@Ident "="`
	Init *Expr  `@@ ";"`
}

type AssignStmt struct {
	Name  string `@Ident "="`
	Value *Expr  `@@ ";"`
}

type CompoundAssignStmt struct {
	Name  string `@Ident`
	Op    string `@("+=" | "-=" | "*=" | "/=" | "%=")`
	Value *Expr  `@@ ";"`
}

type ExprStmt struct {
	Expr *Expr `@@ ";"`
}

type ReturnStmt struct {
	Expr *Expr `"return" [ @@ ] ";"`
}

type IfStmt struct {
	Cond *Expr      `"if" "(" @@ ")"`
	Then *Statement `@@`
	Else *Statement `[ "else" @@ ]`
}

type WhileStmt struct {
	Cond *Expr      `"while" "(" @@ ")"`
	Body *Statement `@@`
}

// ForInit and ForPost mirror VarDecl/AssignStmt but without a trailing
// semicolon of their own — the enclosing for-header supplies both semicolons.
type ForInit struct {
	VarName *string `( "let" ( @Ident`
	VarInit *Expr   `  "=" @@ )`
	Name    *string `| ( @Ident`
	Value   *Expr   `  "=" @@ ) )`
}

type ForPost struct {
	Name  string `@Ident`
	Op    string `@("+=" | "-=" | "*=" | "/=" | "%=" | "=")`
	Value *Expr  `@@`
}

type ForStmt struct {
	Init *ForInit   `"for" "(" @@? ";"`
	Cond *Expr      `@@? ";"`
	Post *ForPost   `@@? ")"`
	Body *Statement `@@`
}

// Expr is the entry point of the precedence ladder:
// Or > And > Equality > Relational > Additive > Multiplicative > Unary > Postfix > Primary.

type Expr struct {
	Or *OrExpr `@@`
}

type OrExpr struct {
	Left *AndExpr   `@@`
	Rest []*AndExpr `{ "||" @@ }`
}

type AndExpr struct {
	Left *EqExpr   `@@`
	Rest []*EqExpr `{ "&&" @@ }`
}

type EqExpr struct {
	Left *RelExpr `@@`
	Ops  []*EqOp  `{ @@ }`
}

type EqOp struct {
	Operator string   `@("==" | "!=")`
	Right    *RelExpr `@@`
}

type RelExpr struct {
	Left *AddExpr `@@`
	Ops  []*RelOp `{ @@ }`
}

type RelOp struct {
	Operator string   `@("<=" | ">=" | "<" | ">")`
	Right    *AddExpr `@@`
}

type AddExpr struct {
	Left *MulExpr `@@`
	Ops  []*AddOp `{ @@ }`
}

type AddOp struct {
	Operator string   `@("+" | "-")`
	Right    *MulExpr `@@`
}

type MulExpr struct {
	Left *UnaryExpr `@@`
	Ops  []*MulOp   `{ @@ }`
}

type MulOp struct {
	Operator string     `@("*" | "/" | "%")`
	Right    *UnaryExpr `@@`
}

type UnaryExpr struct {
	Operator *string      `[ @("-" | "!") ]`
	Value    *PostfixExpr `@@`
}

type PostfixExpr struct {
	Primary *PrimaryExpr `@@`
}

type PrimaryExpr struct {
	Call   *CallExpr `  @@`
	Number *string   `| @Integer`
	True   bool      `| @"true"`
	False  bool      `| @"false"`
	Ident  *string   `| @Ident`
	Parens *Expr     `| "(" @@ ")"`
}

type CallExpr struct {
	Name string  `@Ident "("`
	Args []*Expr `[ @@ { "," @@ } ] ")"`
}
