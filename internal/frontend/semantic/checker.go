// Package semantic type-checks and resolves an ast.Program: symbol
// resolution (one global function map, one variable scope stack per
// function), type checking for int/long/bool/void, definite-return flow
// analysis, and unused-variable warnings.
package semantic

import (
	"nanoc/internal/errors"
	"nanoc/internal/frontend/ast"
)

// Checker walks a Program once per function, after a first pass that
// registers every function signature so mutual/forward calls resolve.
type Checker struct {
	symtab *SymbolTable
	diags  []errors.CompilerError
}

func NewChecker() *Checker {
	return &Checker{symtab: NewSymbolTable()}
}

// Check runs semantic analysis over prog and returns every diagnostic
// (errors and warnings) found. The caller should treat any Error-level
// diagnostic as fatal to further compilation.
func Check(prog *ast.Program) []errors.CompilerError {
	c := NewChecker()
	c.declareFunctions(prog)
	for _, fn := range prog.Functions {
		c.checkFunction(fn)
	}
	return c.diags
}

func (c *Checker) errorf(err errors.CompilerError) { c.diags = append(c.diags, err) }

func (c *Checker) declareFunctions(prog *ast.Program) {
	for _, fn := range prog.Functions {
		paramTypes := make([]ast.TypeKind, len(fn.Params))
		for i, p := range fn.Params {
			paramTypes[i] = p.Type
		}
		sym := &Symbol{Name: fn.Name, Type: fn.ReturnType, IsFunction: true, ParamTypes: paramTypes, Pos: fn.Position}
		if !c.symtab.DeclareFunction(sym) {
			c.errorf(errors.DuplicateDeclaration(fn.Name, fn.Position))
		}
	}
}

func (c *Checker) checkFunction(fn *ast.Function) {
	c.symtab.PushScope()
	for _, p := range fn.Params {
		sym := &Symbol{Name: p.Name, Type: p.Type, Pos: p.Position}
		if !c.symtab.DeclareVar(sym) {
			c.errorf(errors.DuplicateDeclaration(p.Name, p.Position))
		}
	}

	returns := c.checkBlock(fn.Body, fn.ReturnType)

	if fn.ReturnType != ast.Void && !returns {
		c.errorf(errors.MissingReturn(fn.Name, fn.ReturnType.String(), fn.Position))
	}

	for _, sym := range c.symtab.PopScope() {
		if !sym.Used {
			c.errorf(errors.UnusedVariable(sym.Name, sym.Pos))
		}
	}
}

// checkBlock type-checks every statement in b and reports whether the
// block returns on every path (the definite-return analysis non-void
// functions need).
func (c *Checker) checkBlock(b *ast.Block, retType ast.TypeKind) bool {
	returned := false
	for i, stmt := range b.Statements {
		if returned {
			c.errorf(errors.UnreachableCode(stmt.Pos()))
		}
		if c.checkStmt(stmt, retType) {
			returned = true
		}
		_ = i
	}
	return returned
}

// checkStmt type-checks one statement and reports whether it returns on
// every path it can take.
func (c *Checker) checkStmt(stmt ast.Stmt, retType ast.TypeKind) bool {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		c.checkVarDecl(s)
		return false
	case *ast.AssignStmt:
		c.checkAssign(s)
		return false
	case *ast.CompoundAssignStmt:
		c.checkCompoundAssign(s)
		return false
	case *ast.ExprStmt:
		c.inferType(s.Expr)
		return false
	case *ast.ReturnStmt:
		c.checkReturn(s, retType)
		return true
	case *ast.IfStmt:
		return c.checkIf(s, retType)
	case *ast.WhileStmt:
		c.checkCond(s.Cond)
		c.symtab.PushScope()
		c.checkStmt(s.Body, retType)
		c.popAndWarnUnused()
		return false // a loop may run zero times, so it never guarantees a return
	case *ast.ForStmt:
		return c.checkFor(s, retType)
	case *ast.BlockStmt:
		c.symtab.PushScope()
		returns := c.checkBlock(s.Block, retType)
		c.popAndWarnUnused()
		return returns
	default:
		return false
	}
}

func (c *Checker) popAndWarnUnused() {
	for _, sym := range c.symtab.PopScope() {
		if !sym.Used {
			c.errorf(errors.UnusedVariable(sym.Name, sym.Pos))
		}
	}
}

func (c *Checker) checkVarDecl(s *ast.VarDeclStmt) {
	initType := c.inferType(s.Init)
	declType := initType
	if s.Type != nil {
		declType = *s.Type
		if initType != ast.Void && initType != declType {
			c.errorf(errors.TypeMismatch(declType.String(), initType.String(), s.Init.Pos()))
		}
	}
	sym := &Symbol{Name: s.Name, Type: declType, Pos: s.Position}
	if !c.symtab.DeclareVar(sym) {
		c.errorf(errors.DuplicateDeclaration(s.Name, s.Position))
	}
}

func (c *Checker) checkAssign(s *ast.AssignStmt) {
	sym, ok := c.symtab.LookupVar(s.Name)
	if !ok {
		c.errorf(errors.UndefinedVariable(s.Name, s.Position, errors.FindSimilarNames(s.Name, c.symtab.VarNamesInScope())))
		c.inferType(s.Value)
		return
	}
	valType := c.inferType(s.Value)
	if valType != ast.Void && valType != sym.Type {
		c.errorf(errors.TypeMismatch(sym.Type.String(), valType.String(), s.Value.Pos()))
	}
}

func (c *Checker) checkCompoundAssign(s *ast.CompoundAssignStmt) {
	sym, ok := c.symtab.LookupVar(s.Name)
	if !ok {
		c.errorf(errors.UndefinedVariable(s.Name, s.Position, errors.FindSimilarNames(s.Name, c.symtab.VarNamesInScope())))
		c.inferType(s.Value)
		return
	}
	if !isNumeric(sym.Type) {
		c.errorf(errors.InvalidOperation(s.Op, sym.Type.String(), sym.Type.String(), s.Position))
	}
	valType := c.inferType(s.Value)
	if valType != ast.Void && !isNumeric(valType) {
		c.errorf(errors.InvalidOperation(s.Op, sym.Type.String(), valType.String(), s.Value.Pos()))
	}
}

func (c *Checker) checkReturn(s *ast.ReturnStmt, retType ast.TypeKind) {
	if s.Value == nil {
		if retType != ast.Void {
			c.errorf(errors.TypeMismatch(retType.String(), ast.Void.String(), s.Position))
		}
		return
	}
	valType := c.inferType(s.Value)
	if retType == ast.Void {
		c.errorf(errors.TypeMismatch(ast.Void.String(), valType.String(), s.Value.Pos()))
		return
	}
	if valType != ast.Void && valType != retType {
		c.errorf(errors.TypeMismatch(retType.String(), valType.String(), s.Value.Pos()))
	}
}

func (c *Checker) checkCond(e ast.Expr) {
	t := c.inferType(e)
	if t != ast.Void && t != ast.Bool {
		c.errorf(errors.TypeMismatch(ast.Bool.String(), t.String(), e.Pos()))
	}
}

func (c *Checker) checkIf(s *ast.IfStmt, retType ast.TypeKind) bool {
	c.checkCond(s.Cond)
	thenReturns := c.checkStmt(s.Then, retType)
	if s.Else == nil {
		return false
	}
	elseReturns := c.checkStmt(s.Else, retType)
	return thenReturns && elseReturns
}

func (c *Checker) checkFor(s *ast.ForStmt, retType ast.TypeKind) bool {
	c.symtab.PushScope()
	if s.Init != nil {
		c.checkStmt(s.Init, retType)
	}
	if s.Cond != nil {
		c.checkCond(s.Cond)
	}
	if s.Post != nil {
		c.checkStmt(s.Post, retType)
	}
	c.checkStmt(s.Body, retType)
	c.popAndWarnUnused()
	return false // a for-loop's condition may be false on entry
}

func isNumeric(t ast.TypeKind) bool { return t == ast.Int || t == ast.Long }

// inferType type-checks an expression and returns its type, reporting a
// diagnostic and returning Void (treated as "already reported, don't
// cascade") on any mismatch.
func (c *Checker) inferType(e ast.Expr) ast.TypeKind {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		return ast.Int
	case *ast.BoolLiteral:
		return ast.Bool
	case *ast.Ident:
		sym, ok := c.symtab.LookupVar(expr.Name)
		if !ok {
			c.errorf(errors.UndefinedVariable(expr.Name, expr.Position, errors.FindSimilarNames(expr.Name, c.symtab.VarNamesInScope())))
			return ast.Void
		}
		return sym.Type
	case *ast.UnaryExpr:
		return c.inferUnary(expr)
	case *ast.BinaryExpr:
		return c.inferBinary(expr)
	case *ast.CallExpr:
		return c.inferCall(expr)
	default:
		return ast.Void
	}
}

func (c *Checker) inferUnary(e *ast.UnaryExpr) ast.TypeKind {
	t := c.inferType(e.Operand)
	if t == ast.Void {
		return ast.Void
	}
	switch e.Op {
	case "-":
		if !isNumeric(t) {
			c.errorf(errors.InvalidOperation(e.Op, t.String(), t.String(), e.Position))
			return ast.Void
		}
		return t
	case "!":
		if t != ast.Bool {
			c.errorf(errors.InvalidOperation(e.Op, t.String(), t.String(), e.Position))
			return ast.Void
		}
		return ast.Bool
	default:
		return ast.Void
	}
}

func (c *Checker) inferBinary(e *ast.BinaryExpr) ast.TypeKind {
	lt := c.inferType(e.Left)
	rt := c.inferType(e.Right)
	if lt == ast.Void || rt == ast.Void {
		return ast.Void
	}
	switch e.Op {
	case "+", "-", "*", "/", "%":
		if !isNumeric(lt) || !isNumeric(rt) || lt != rt {
			c.errorf(errors.InvalidOperation(e.Op, lt.String(), rt.String(), e.Position))
			return ast.Void
		}
		return lt
	case "<", "<=", ">", ">=":
		if !isNumeric(lt) || !isNumeric(rt) || lt != rt {
			c.errorf(errors.InvalidOperation(e.Op, lt.String(), rt.String(), e.Position))
			return ast.Void
		}
		return ast.Bool
	case "==", "!=":
		if lt != rt {
			c.errorf(errors.InvalidOperation(e.Op, lt.String(), rt.String(), e.Position))
			return ast.Void
		}
		return ast.Bool
	case "&&", "||":
		if lt != ast.Bool || rt != ast.Bool {
			c.errorf(errors.InvalidOperation(e.Op, lt.String(), rt.String(), e.Position))
			return ast.Void
		}
		return ast.Bool
	default:
		return ast.Void
	}
}

func (c *Checker) inferCall(e *ast.CallExpr) ast.TypeKind {
	sym, ok := c.symtab.LookupFunction(e.Callee)
	if !ok {
		c.errorf(errors.UndefinedFunction(e.Callee, e.Position, errors.FindSimilarNames(e.Callee, c.symtab.FunctionNames())))
		for _, a := range e.Args {
			c.inferType(a)
		}
		return ast.Void
	}
	if len(e.Args) != len(sym.ParamTypes) {
		c.errorf(errors.InvalidArguments(e.Callee, len(sym.ParamTypes), len(e.Args), e.Position))
	}
	for i, a := range e.Args {
		at := c.inferType(a)
		if i < len(sym.ParamTypes) && at != ast.Void && at != sym.ParamTypes[i] {
			c.errorf(errors.TypeMismatch(sym.ParamTypes[i].String(), at.String(), a.Pos()))
		}
	}
	return sym.Type
}
