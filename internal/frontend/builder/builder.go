// Package builder lowers a type-checked ast.Program into an internal/ir
// Module. It takes the simplest route to well-formed SSA: every local
// variable and parameter gets a stack slot (OpAlloca plus load/store), and
// internal/passes' Mem2Reg promotes whichever slots never escape. The
// builder itself never computes dominance or inserts a phi.
package builder

import (
	"nanoc/internal/frontend/ast"
	"nanoc/internal/ir"
)

// Build lowers prog into a Module with one ir.Function per ast.Function.
func Build(prog *ast.Program) *ir.Module {
	retTypes := make(map[string]ir.DataType, len(prog.Functions))
	for _, fn := range prog.Functions {
		retTypes[fn.Name] = irType(fn.ReturnType)
	}

	m := ir.NewModule()
	for _, fn := range prog.Functions {
		m.AddFunction(buildFunction(fn, retTypes))
	}
	return m
}

func irType(t ast.TypeKind) ir.DataType {
	switch t {
	case ast.Long:
		return ir.I64
	case ast.Bool:
		return ir.I32
	case ast.Void:
		return ir.Void
	default:
		return ir.I32
	}
}

// local is one in-scope variable's stack slot.
type local struct {
	slot ir.Reg
	typ  ir.DataType
}

type funcBuilder struct {
	f        *ir.Function
	block    *ir.Block
	scopes   []map[string]local
	retType  ir.DataType
	funcRets map[string]ir.DataType
}

func buildFunction(fn *ast.Function, funcRets map[string]ir.DataType) *ir.Function {
	retType := irType(fn.ReturnType)
	f := ir.NewFunction(fn.Name, retType)
	entry := f.NewBlock()

	fb := &funcBuilder{f: f, block: entry, retType: retType, funcRets: funcRets}
	fb.pushScope()

	for _, p := range fn.Params {
		pt := irType(p.Type)
		preg := f.AddParam(pt)
		slot := fb.declareLocal(p.Name, pt)
		fb.emit(ir.NewStore(ir.RegOperand(slot, ir.Ptr64), ir.RegOperand(preg, pt)))
	}

	fb.buildBlock(fn.Body)

	// Every path already returns (the checker enforces this for non-void
	// functions); a void function falling off the end needs an explicit
	// bare return so every block still ends in a terminator.
	if fb.block.Terminator() == nil {
		fb.emit(ir.NewRet(nil))
	}

	fb.popScope()
	f.RecomputeEdges()
	return f
}

func (fb *funcBuilder) emit(inst *ir.Instruction) {
	fb.block.Insts = append(fb.block.Insts, inst)
	if inst.Op == ir.OpAlloca {
		fb.f.AllocaInsts = append(fb.f.AllocaInsts, inst)
	}
}

func (fb *funcBuilder) pushScope() { fb.scopes = append(fb.scopes, make(map[string]local)) }

func (fb *funcBuilder) popScope() { fb.scopes = fb.scopes[:len(fb.scopes)-1] }

func (fb *funcBuilder) declareLocal(name string, t ir.DataType) ir.Reg {
	slot := fb.f.NewReg(ir.Ptr64)
	fb.emit(ir.NewAlloca(slot, t, 1))
	fb.scopes[len(fb.scopes)-1][name] = local{slot: slot, typ: t}
	return slot
}

func (fb *funcBuilder) lookup(name string) (local, bool) {
	for i := len(fb.scopes) - 1; i >= 0; i-- {
		if l, ok := fb.scopes[i][name]; ok {
			return l, true
		}
	}
	return local{}, false
}

// buildBlock lowers every statement in b into the current block, switching
// fb.block as control-flow statements open new blocks.
func (fb *funcBuilder) buildBlock(b *ast.Block) {
	for _, stmt := range b.Statements {
		if fb.block.Terminator() != nil {
			return // unreachable code after a terminator; the checker already warned
		}
		fb.buildStmt(stmt)
	}
}

func (fb *funcBuilder) buildStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDeclStmt:
		fb.buildVarDecl(s)
	case *ast.AssignStmt:
		l, ok := fb.lookup(s.Name)
		if !ok {
			return
		}
		val := fb.buildExpr(s.Value, l.typ)
		fb.emit(ir.NewStore(ir.RegOperand(l.slot, ir.Ptr64), val))
	case *ast.CompoundAssignStmt:
		fb.buildCompoundAssign(s)
	case *ast.ExprStmt:
		fb.buildExpr(s.Expr, ir.Void)
	case *ast.ReturnStmt:
		fb.buildReturn(s)
	case *ast.IfStmt:
		fb.buildIf(s)
	case *ast.WhileStmt:
		fb.buildWhile(s)
	case *ast.ForStmt:
		fb.buildFor(s)
	case *ast.BlockStmt:
		fb.pushScope()
		fb.buildBlock(s.Block)
		fb.popScope()
	}
}

func (fb *funcBuilder) buildVarDecl(s *ast.VarDeclStmt) {
	t := ir.I32
	if s.Type != nil {
		t = irType(*s.Type)
	}
	val := fb.buildExpr(s.Init, t)
	if s.Type == nil {
		t = val.Type
	}
	slot := fb.declareLocal(s.Name, t)
	fb.emit(ir.NewStore(ir.RegOperand(slot, ir.Ptr64), val))
}

func compoundOp(op string) ir.Opcode {
	switch op {
	case "+=":
		return ir.OpAdd
	case "-=":
		return ir.OpSub
	case "*=":
		return ir.OpMul
	case "/=":
		return ir.OpDiv
	case "%=":
		return ir.OpMod
	default:
		return ir.OpAdd
	}
}

func (fb *funcBuilder) buildCompoundAssign(s *ast.CompoundAssignStmt) {
	l, ok := fb.lookup(s.Name)
	if !ok {
		return
	}
	cur := fb.f.NewReg(l.typ)
	fb.emit(ir.NewLoad(l.typ, cur, ir.RegOperand(l.slot, ir.Ptr64)))
	rhs := fb.buildExpr(s.Value, l.typ)
	res := fb.f.NewReg(l.typ)
	fb.emit(ir.NewBinary(compoundOp(s.Op), l.typ, res, ir.RegOperand(cur, l.typ), rhs))
	fb.emit(ir.NewStore(ir.RegOperand(l.slot, ir.Ptr64), ir.RegOperand(res, l.typ)))
}

func (fb *funcBuilder) buildReturn(s *ast.ReturnStmt) {
	if s.Value == nil {
		fb.emit(ir.NewRet(nil))
		return
	}
	val := fb.buildExpr(s.Value, fb.retType)
	fb.emit(ir.NewRet(&val))
}

func (fb *funcBuilder) buildIf(s *ast.IfStmt) {
	cond := fb.buildExpr(s.Cond, ir.I32)
	thenBlock := fb.f.NewBlock()
	mergeBlock := fb.f.NewBlock()
	elseBlock := mergeBlock
	if s.Else != nil {
		elseBlock = fb.f.NewBlock()
	}

	fb.emit(ir.NewBrCond(cond, thenBlock.ID, elseBlock.ID))

	fb.block = thenBlock
	fb.pushScope()
	fb.buildStmt(s.Then)
	fb.popScope()
	if fb.block.Terminator() == nil {
		fb.emit(ir.NewBrUncond(mergeBlock.ID))
	}

	if s.Else != nil {
		fb.block = elseBlock
		fb.pushScope()
		fb.buildStmt(s.Else)
		fb.popScope()
		if fb.block.Terminator() == nil {
			fb.emit(ir.NewBrUncond(mergeBlock.ID))
		}
	}

	fb.block = mergeBlock
}

func (fb *funcBuilder) buildWhile(s *ast.WhileStmt) {
	headerBlock := fb.f.NewBlock()
	bodyBlock := fb.f.NewBlock()
	exitBlock := fb.f.NewBlock()

	fb.emit(ir.NewBrUncond(headerBlock.ID))

	fb.block = headerBlock
	cond := fb.buildExpr(s.Cond, ir.I32)
	fb.emit(ir.NewBrCond(cond, bodyBlock.ID, exitBlock.ID))

	fb.block = bodyBlock
	fb.pushScope()
	fb.buildStmt(s.Body)
	fb.popScope()
	if fb.block.Terminator() == nil {
		fb.emit(ir.NewBrUncond(headerBlock.ID))
	}

	fb.block = exitBlock
}

func (fb *funcBuilder) buildFor(s *ast.ForStmt) {
	fb.pushScope()
	if s.Init != nil {
		fb.buildStmt(s.Init)
	}

	headerBlock := fb.f.NewBlock()
	bodyBlock := fb.f.NewBlock()
	exitBlock := fb.f.NewBlock()

	fb.emit(ir.NewBrUncond(headerBlock.ID))

	fb.block = headerBlock
	if s.Cond != nil {
		cond := fb.buildExpr(s.Cond, ir.I32)
		fb.emit(ir.NewBrCond(cond, bodyBlock.ID, exitBlock.ID))
	} else {
		fb.emit(ir.NewBrUncond(bodyBlock.ID))
	}

	fb.block = bodyBlock
	fb.pushScope()
	fb.buildStmt(s.Body)
	if s.Post != nil && fb.block.Terminator() == nil {
		fb.buildStmt(s.Post)
	}
	fb.popScope()
	if fb.block.Terminator() == nil {
		fb.emit(ir.NewBrUncond(headerBlock.ID))
	}

	fb.block = exitBlock
	fb.popScope()
}

// buildExpr lowers e, emitting into the current block, and returns the
// resulting operand. want is a hint used only for literal widths; the
// checker has already rejected genuine type mismatches.
func (fb *funcBuilder) buildExpr(e ast.Expr, want ir.DataType) ir.Operand {
	switch expr := e.(type) {
	case *ast.IntLiteral:
		t := want
		if t.Kind != ir.KindInteger {
			t = ir.I32
		}
		return ir.ImmInt(expr.Value, t)
	case *ast.BoolLiteral:
		v := int64(0)
		if expr.Value {
			v = 1
		}
		return ir.ImmInt(v, ir.I32)
	case *ast.Ident:
		l, ok := fb.lookup(expr.Name)
		if !ok {
			return ir.ImmInt(0, ir.I32)
		}
		r := fb.f.NewReg(l.typ)
		fb.emit(ir.NewLoad(l.typ, r, ir.RegOperand(l.slot, ir.Ptr64)))
		return ir.RegOperand(r, l.typ)
	case *ast.UnaryExpr:
		return fb.buildUnary(expr)
	case *ast.BinaryExpr:
		return fb.buildBinary(expr)
	case *ast.CallExpr:
		return fb.buildCall(expr)
	default:
		return ir.ImmInt(0, ir.I32)
	}
}

func (fb *funcBuilder) buildUnary(e *ast.UnaryExpr) ir.Operand {
	v := fb.buildExpr(e.Operand, ir.I32)
	switch e.Op {
	case "-":
		r := fb.f.NewReg(v.Type)
		fb.emit(ir.NewBinary(ir.OpSub, v.Type, r, ir.ImmInt(0, v.Type), v))
		return ir.RegOperand(r, v.Type)
	case "!":
		r := fb.f.NewReg(ir.I32)
		fb.emit(&ir.Instruction{Op: ir.OpICmp, Result: r, HasResult: true, Type: ir.I32,
			Pred: ir.PredEQ, Operands: []ir.Operand{v, ir.ImmInt(0, v.Type)}})
		return ir.RegOperand(r, ir.I32)
	default:
		return v
	}
}

var cmpPredicate = map[string]ir.Predicate{
	"==": ir.PredEQ, "!=": ir.PredNE,
	"<": ir.PredSLT, "<=": ir.PredSLE,
	">": ir.PredSGT, ">=": ir.PredSGE,
}

var arithOp = map[string]ir.Opcode{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv, "%": ir.OpMod,
}

func (fb *funcBuilder) buildBinary(e *ast.BinaryExpr) ir.Operand {
	switch e.Op {
	case "&&":
		return fb.buildShortCircuit(e, true)
	case "||":
		return fb.buildShortCircuit(e, false)
	}

	lhs := fb.buildExpr(e.Left, ir.I32)
	rhs := fb.buildExpr(e.Right, lhs.Type)

	if op, ok := arithOp[e.Op]; ok {
		r := fb.f.NewReg(lhs.Type)
		fb.emit(ir.NewBinary(op, lhs.Type, r, lhs, rhs))
		return ir.RegOperand(r, lhs.Type)
	}
	if pred, ok := cmpPredicate[e.Op]; ok {
		r := fb.f.NewReg(ir.I32)
		fb.emit(ir.NewICmp(pred, r, lhs, rhs))
		return ir.RegOperand(r, ir.I32)
	}
	return lhs
}

// buildShortCircuit lowers && (isAnd) and || by storing the result through a
// dedicated slot and branching around the right-hand side's evaluation;
// Mem2Reg turns the slot back into a phi.
func (fb *funcBuilder) buildShortCircuit(e *ast.BinaryExpr, isAnd bool) ir.Operand {
	slot := fb.f.NewReg(ir.Ptr64)
	fb.emit(ir.NewAlloca(slot, ir.I32, 1))

	lhs := fb.buildExpr(e.Left, ir.I32)
	rhsBlock := fb.f.NewBlock()
	shortBlock := fb.f.NewBlock()
	mergeBlock := fb.f.NewBlock()

	if isAnd {
		fb.emit(ir.NewBrCond(lhs, rhsBlock.ID, shortBlock.ID))
	} else {
		fb.emit(ir.NewBrCond(lhs, shortBlock.ID, rhsBlock.ID))
	}

	fb.block = shortBlock
	shortVal := int64(0)
	if !isAnd {
		shortVal = 1
	}
	fb.emit(ir.NewStore(ir.RegOperand(slot, ir.Ptr64), ir.ImmInt(shortVal, ir.I32)))
	fb.emit(ir.NewBrUncond(mergeBlock.ID))

	fb.block = rhsBlock
	rhs := fb.buildExpr(e.Right, ir.I32)
	fb.emit(ir.NewStore(ir.RegOperand(slot, ir.Ptr64), rhs))
	fb.emit(ir.NewBrUncond(mergeBlock.ID))

	fb.block = mergeBlock
	r := fb.f.NewReg(ir.I32)
	fb.emit(ir.NewLoad(ir.I32, r, ir.RegOperand(slot, ir.Ptr64)))
	return ir.RegOperand(r, ir.I32)
}

func (fb *funcBuilder) buildCall(e *ast.CallExpr) ir.Operand {
	args := make([]ir.Operand, len(e.Args))
	for i, a := range e.Args {
		args[i] = fb.buildExpr(a, ir.I32)
	}

	retType, ok := fb.funcRets[e.Callee]
	if !ok {
		retType = ir.I32
	}
	if retType.Kind == ir.KindVoid {
		fb.emit(ir.NewCall(nil, retType, e.Callee, args))
		return ir.Operand{}
	}

	r := fb.f.NewReg(retType)
	fb.emit(ir.NewCall(&r, retType, e.Callee, args))
	return ir.RegOperand(r, retType)
}
