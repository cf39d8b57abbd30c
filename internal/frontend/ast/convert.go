package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"nanoc/internal/frontend/grammar"
)

// FromProgram lowers a participle parse tree into the Program AST. It is the
// only place that knows about grammar.* struct shapes; everything downstream
// (semantic checking, IR building) works over the types in this package.
func FromProgram(p *grammar.Program, filename string) (*Program, error) {
	out := &Program{}
	for _, f := range p.Functions {
		fn, err := convertFunction(f, filename)
		if err != nil {
			return nil, err
		}
		out.Functions = append(out.Functions, fn)
	}
	return out, nil
}

func pos(filename string, p lexer.Position) Position {
	return Position{Filename: filename, Line: p.Line, Column: p.Column}
}

func convertType(t *grammar.Type) TypeKind {
	switch t.Name {
	case "int":
		return Int
	case "long":
		return Long
	case "bool":
		return Bool
	default:
		return Void
	}
}

func convertFunction(f *grammar.Function, filename string) (*Function, error) {
	body, err := convertBlock(f.Body, filename)
	if err != nil {
		return nil, err
	}
	fn := &Function{
		Position:   pos(filename, f.Pos),
		Name:       f.Name,
		ReturnType: convertType(f.ReturnType),
		Body:       body,
	}
	for _, p := range f.Params {
		fn.Params = append(fn.Params, &Param{
			Type: convertType(p.Type),
			Name: p.Name,
		})
	}
	return fn, nil
}

func convertBlock(b *grammar.Block, filename string) (*Block, error) {
	blk := &Block{}
	for _, s := range b.Statements {
		stmt, err := convertStatement(s, filename)
		if err != nil {
			return nil, err
		}
		blk.Statements = append(blk.Statements, stmt)
	}
	return blk, nil
}

func convertStatement(s *grammar.Statement, filename string) (Stmt, error) {
	p := pos(filename, s.Pos)
	switch {
	case s.Nested != nil:
		b, err := convertBlock(s.Nested, filename)
		if err != nil {
			return nil, err
		}
		return &BlockStmt{Block: b}, nil
	case s.VarDecl != nil:
		stmt, err := convertVarDecl(s.VarDecl, filename)
		if err != nil {
			return nil, err
		}
		stmt.(*VarDeclStmt).Position = p
		return stmt, nil
	case s.If != nil:
		stmt, err := convertIf(s.If, filename)
		if err != nil {
			return nil, err
		}
		stmt.(*IfStmt).Position = p
		return stmt, nil
	case s.While != nil:
		stmt, err := convertWhile(s.While, filename)
		if err != nil {
			return nil, err
		}
		stmt.(*WhileStmt).Position = p
		return stmt, nil
	case s.For != nil:
		stmt, err := convertFor(s.For, filename)
		if err != nil {
			return nil, err
		}
		stmt.(*ForStmt).Position = p
		return stmt, nil
	case s.Return != nil:
		stmt, err := convertReturn(s.Return, filename)
		if err != nil {
			return nil, err
		}
		stmt.(*ReturnStmt).Position = p
		return stmt, nil
	case s.Compound != nil:
		val, err := convertExpr(s.Compound.Value, filename)
		if err != nil {
			return nil, err
		}
		return &CompoundAssignStmt{Position: p, Name: s.Compound.Name, Op: s.Compound.Op, Value: val}, nil
	case s.Assign != nil:
		val, err := convertExpr(s.Assign.Value, filename)
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Position: p, Name: s.Assign.Name, Value: val}, nil
	case s.ExprStmt != nil:
		val, err := convertExpr(s.ExprStmt.Expr, filename)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Position: p, Expr: val}, nil
	default:
		return nil, fmt.Errorf("empty statement alternation")
	}
}

func convertVarDecl(v *grammar.VarDecl, filename string) (Stmt, error) {
	init, err := convertExpr(v.Init, filename)
	if err != nil {
		return nil, err
	}
	decl := &VarDeclStmt{Name: v.Name, Init: init}
	if v.Type != nil {
		t := convertType(v.Type)
		decl.Type = &t
	}
	return decl, nil
}

func convertIf(s *grammar.IfStmt, filename string) (Stmt, error) {
	cond, err := convertExpr(s.Cond, filename)
	if err != nil {
		return nil, err
	}
	then, err := convertStatement(s.Then, filename)
	if err != nil {
		return nil, err
	}
	out := &IfStmt{Cond: cond, Then: then}
	if s.Else != nil {
		els, err := convertStatement(s.Else, filename)
		if err != nil {
			return nil, err
		}
		out.Else = els
	}
	return out, nil
}

func convertWhile(s *grammar.WhileStmt, filename string) (Stmt, error) {
	cond, err := convertExpr(s.Cond, filename)
	if err != nil {
		return nil, err
	}
	body, err := convertStatement(s.Body, filename)
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body}, nil
}

func convertFor(s *grammar.ForStmt, filename string) (Stmt, error) {
	out := &ForStmt{}

	if s.Init != nil {
		init, err := convertExpr(derefForInitValue(s.Init), filename)
		if err != nil {
			return nil, err
		}
		if s.Init.VarName != nil {
			out.Init = &VarDeclStmt{Name: *s.Init.VarName, Init: init}
		} else if s.Init.Name != nil {
			out.Init = &AssignStmt{Name: *s.Init.Name, Value: init}
		}
	}

	if s.Cond != nil {
		cond, err := convertExpr(s.Cond, filename)
		if err != nil {
			return nil, err
		}
		out.Cond = cond
	}

	if s.Post != nil {
		val, err := convertExpr(s.Post.Value, filename)
		if err != nil {
			return nil, err
		}
		if s.Post.Op == "=" {
			out.Post = &AssignStmt{Name: s.Post.Name, Value: val}
		} else {
			out.Post = &CompoundAssignStmt{Name: s.Post.Name, Op: s.Post.Op, Value: val}
		}
	}

	body, err := convertStatement(s.Body, filename)
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func derefForInitValue(init *grammar.ForInit) *grammar.Expr {
	if init.VarName != nil {
		return init.VarInit
	}
	return init.Value
}

func convertReturn(s *grammar.ReturnStmt, filename string) (Stmt, error) {
	out := &ReturnStmt{}
	if s.Expr != nil {
		val, err := convertExpr(s.Expr, filename)
		if err != nil {
			return nil, err
		}
		out.Value = val
	}
	return out, nil
}

// Expression conversion collapses the precedence ladder back into a flat
// BinaryExpr tree, left-associative at each level, since the grammar only
// needs the ladder to parse correctly — once parsed, precedence is implicit
// in tree shape.

func convertExpr(e *grammar.Expr, filename string) (Expr, error) {
	return convertOr(e.Or, filename)
}

func convertOr(e *grammar.OrExpr, filename string) (Expr, error) {
	left, err := convertAnd(e.Left, filename)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := convertAnd(r, filename)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func convertAnd(e *grammar.AndExpr, filename string) (Expr, error) {
	left, err := convertEq(e.Left, filename)
	if err != nil {
		return nil, err
	}
	for _, r := range e.Rest {
		right, err := convertEq(r, filename)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

func convertEq(e *grammar.EqExpr, filename string) (Expr, error) {
	left, err := convertRel(e.Left, filename)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := convertRel(op.Right, filename)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Operator, Left: left, Right: right}
	}
	return left, nil
}

func convertRel(e *grammar.RelExpr, filename string) (Expr, error) {
	left, err := convertAdd(e.Left, filename)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := convertAdd(op.Right, filename)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Operator, Left: left, Right: right}
	}
	return left, nil
}

func convertAdd(e *grammar.AddExpr, filename string) (Expr, error) {
	left, err := convertMul(e.Left, filename)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := convertMul(op.Right, filename)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Operator, Left: left, Right: right}
	}
	return left, nil
}

func convertMul(e *grammar.MulExpr, filename string) (Expr, error) {
	left, err := convertUnary(e.Left, filename)
	if err != nil {
		return nil, err
	}
	for _, op := range e.Ops {
		right, err := convertUnary(op.Right, filename)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.Operator, Left: left, Right: right}
	}
	return left, nil
}

func convertUnary(e *grammar.UnaryExpr, filename string) (Expr, error) {
	val, err := convertPostfix(e.Value, filename)
	if err != nil {
		return nil, err
	}
	if e.Operator != nil {
		return &UnaryExpr{Op: *e.Operator, Operand: val}, nil
	}
	return val, nil
}

func convertPostfix(e *grammar.PostfixExpr, filename string) (Expr, error) {
	return convertPrimary(e.Primary, filename)
}

func convertPrimary(e *grammar.PrimaryExpr, filename string) (Expr, error) {
	switch {
	case e.Call != nil:
		call := &CallExpr{Callee: e.Call.Name}
		for _, a := range e.Call.Args {
			arg, err := convertExpr(a, filename)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil
	case e.Number != nil:
		v, err := parseInteger(*e.Number)
		if err != nil {
			return nil, err
		}
		return &IntLiteral{Value: v}, nil
	case e.True:
		return &BoolLiteral{Value: true}, nil
	case e.False:
		return &BoolLiteral{Value: false}, nil
	case e.Ident != nil:
		return &Ident{Name: *e.Ident}, nil
	case e.Parens != nil:
		return convertExpr(e.Parens, filename)
	default:
		return nil, fmt.Errorf("empty primary expression")
	}
}

func parseInteger(s string) (int64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}
