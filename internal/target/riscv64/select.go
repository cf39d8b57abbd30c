package riscv64

import (
	"nanoc/internal/ir"
	"nanoc/internal/isel"
	"nanoc/internal/machine"
)

// Selector is the RISC-V64 pattern selector both isel paths drive, grounded
// on rv64_dag_isel.h's select* method set (selectBinary, selectLoad,
// selectStore, selectICmp, selectBranch, selectCall, selectRet, selectCast)
// collapsed onto a single ir.Instruction -> []Instr switch since both paths
// share one lowering strategy here (see SPEC_FULL.md's isel decision).
type Selector struct{}

func regOperand(ctx *isel.FuncContext, o ir.Operand) machine.Register {
	mo := isel.ResolveOperand(ctx, o)
	if mo.Kind == machine.MOReg {
		return mo.Reg
	}
	return machine.Register{}
}

func (Selector) SelectInstruction(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	switch inst.Op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpMod, ir.OpShl, ir.OpShr, ir.OpAnd, ir.OpOr, ir.OpXor:
		selectIntBinary(mb, ctx, inst)
	case ir.OpFAdd, ir.OpFSub, ir.OpFMul, ir.OpFDiv:
		selectFloatBinary(mb, ctx, inst)
	case ir.OpICmp:
		selectICmp(mb, ctx, inst)
	case ir.OpFCmp:
		selectFCmp(mb, ctx, inst)
	case ir.OpLoad:
		selectLoad(mb, ctx, inst)
	case ir.OpStore:
		selectStore(mb, ctx, inst)
	case ir.OpAlloca:
		selectAlloca(mb, ctx, inst)
	case ir.OpGEP:
		selectGEP(mb, ctx, inst)
	case ir.OpBrUncond:
		mb.Append(uncondBr(ctx.IRToM[inst.Operands[0].Label]))
	case ir.OpBrCond:
		selectBrCond(mb, ctx, inst)
	case ir.OpRet:
		selectRet(mb, ctx, inst)
	case ir.OpZExt, ir.OpSIToFP, ir.OpFPToSI:
		selectCast(mb, ctx, inst)
	case ir.OpCall:
		selectCall(mb, ctx, inst)
	}
}

var intBinMnemonic = map[ir.Opcode]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul", ir.OpDiv: "div", ir.OpMod: "rem",
	ir.OpShl: "sll", ir.OpShr: "sra", ir.OpAnd: "and", ir.OpOr: "or", ir.OpXor: "xor",
}

var intBinImmMnemonic = map[ir.Opcode]string{
	ir.OpAdd: "addi", ir.OpShl: "slli", ir.OpShr: "srai", ir.OpAnd: "andi", ir.OpOr: "ori", ir.OpXor: "xori",
}

func selectIntBinary(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, inst.Type)
	lhs := inst.Operands[0]
	rhs := inst.Operands[1]
	if rhs.Kind == ir.OperandImmInt {
		if mnemonic, ok := intBinImmMnemonic[inst.Op]; ok {
			mb.Append(ri(mnemonic, rd, regOperand(ctx, lhs), rhs.ImmInt))
			return
		}
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(moveImm(tmp, rhs.ImmInt))
		mb.Append(rr(intBinMnemonic[inst.Op], rd, regOperand(ctx, lhs), tmp))
		return
	}
	mb.Append(rr(intBinMnemonic[inst.Op], rd, regOperand(ctx, lhs), regOperand(ctx, rhs)))
}

var floatBinMnemonic = map[ir.Opcode]string{
	ir.OpFAdd: "fadd.s", ir.OpFSub: "fsub.s", ir.OpFMul: "fmul.s", ir.OpFDiv: "fdiv.s",
}

func selectFloatBinary(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, inst.Type)
	mb.Append(rr(floatBinMnemonic[inst.Op], rd, regOperand(ctx, inst.Operands[0]), regOperand(ctx, inst.Operands[1])))
}

// selectICmp lowers an icmp to a slt/sltu-based sequence producing a 0/1
// boolean in rd. RISC-V has no direct sle/sge/sgt forms, so those flip
// operand order (sgt a,b == slt b,a) or negate (sle a,b == xori(slt b,a),1).
func selectICmp(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, ir.I32)
	a := regOperand(ctx, inst.Operands[0])
	b := regOperand(ctx, inst.Operands[1])

	switch inst.Pred {
	case ir.PredEQ:
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(rr("xor", tmp, a, b))
		mb.Append(ri("sltiu", rd, tmp, 1))
	case ir.PredNE:
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(rr("xor", tmp, a, b))
		mb.Append(rr("sltu", rd, ireg(regZero), tmp))
	case ir.PredSLT:
		mb.Append(rr("slt", rd, a, b))
	case ir.PredSGT:
		mb.Append(rr("slt", rd, b, a))
	case ir.PredSLE:
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(rr("slt", tmp, b, a))
		mb.Append(ri("xori", rd, tmp, 1))
	case ir.PredSGE:
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(rr("slt", tmp, a, b))
		mb.Append(ri("xori", rd, tmp, 1))
	case ir.PredULT:
		mb.Append(rr("sltu", rd, a, b))
	case ir.PredUGT:
		mb.Append(rr("sltu", rd, b, a))
	case ir.PredULE:
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(rr("sltu", tmp, b, a))
		mb.Append(ri("xori", rd, tmp, 1))
	case ir.PredUGE:
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(rr("sltu", tmp, a, b))
		mb.Append(ri("xori", rd, tmp, 1))
	}
}

var fcmpMnemonic = map[ir.Predicate]string{
	ir.PredOEQ: "feq.s", ir.PredOLT: "flt.s", ir.PredOLE: "fle.s",
}

func selectFCmp(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, ir.I32)
	a := regOperand(ctx, inst.Operands[0])
	b := regOperand(ctx, inst.Operands[1])
	if inst.Pred == ir.PredONE {
		tmp := ctx.MFunc.VRegs.New(machine.ClassInt)
		mb.Append(rr("feq.s", tmp, a, b))
		mb.Append(ri("xori", rd, tmp, 1))
		return
	}
	mb.Append(rr(fcmpMnemonic[inst.Pred], rd, a, b))
}

func loadMnemonic(t ir.DataType) string {
	switch {
	case t.Kind == ir.KindFloating:
		return "flw"
	case t.Kind == ir.KindPointer || t.Width == 64:
		return "ld"
	default:
		return "lw"
	}
}

func storeMnemonic(t ir.DataType) string {
	switch {
	case t.Kind == ir.KindFloating:
		return "fsw"
	case t.Kind == ir.KindPointer || t.Width == 64:
		return "sd"
	default:
		return "sw"
	}
}

func selectLoad(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, inst.Type)
	addr := regOperand(ctx, inst.Operands[0])
	mb.Append(load(loadMnemonic(inst.Type), rd, addr, 0))
}

func selectStore(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	addr := regOperand(ctx, inst.Operands[0])
	val := regOperand(ctx, inst.Operands[1])
	mb.Append(store(storeMnemonic(inst.Operands[1].Type), addr, val, 0))
}

// selectAlloca materializes the alloca's result register as the address of
// its frame slot: every later load/store through that register just uses a
// plain base+0 address, with no special-casing needed at the use site.
func selectAlloca(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, ir.Ptr64)
	fi := ctx.AllocaFI[inst.Result]
	mb.Append(addrOfFrame(rd, fi))
}

func selectGEP(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, ir.Ptr64)
	base := regOperand(ctx, inst.Operands[0])
	offset := inst.Operands[1]
	if offset.Kind == ir.OperandImmInt {
		mb.Append(ri("addi", rd, base, offset.ImmInt))
		return
	}
	mb.Append(rr("add", rd, base, regOperand(ctx, offset)))
}

func selectBrCond(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	cond := regOperand(ctx, inst.Operands[0])
	trueT := ctx.IRToM[inst.Operands[1].Label]
	falseT := ctx.IRToM[inst.Operands[2].Label]
	mb.Append(condBr("bnez", cond, trueT, falseT))
}

// selectRet moves the return value (if any) into a0/fa0 — the calling-
// convention boundary is made explicit here as a plain move rather than a
// register-allocator precoloring constraint, so linear scan never needs to
// know about the ABI beyond which registers are caller-saved.
func selectRet(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	if len(inst.Operands) == 0 {
		mb.Append(ret())
		return
	}
	val := inst.Operands[0]
	dst := ireg(regA0)
	if val.Type.Kind == ir.KindFloating {
		dst = freg(10)
	}
	mb.Append(moveOperand(ctx, dst, val))
	r := &Instr{Mnemonic: "ret", Kind: KindRet, Rs1: dst, HasRs1: true}
	mb.Append(r)
}

func moveOperand(ctx *isel.FuncContext, dst machine.Register, o ir.Operand) *Instr {
	if o.Kind == ir.OperandImmInt {
		return moveImm(dst, o.ImmInt)
	}
	return move(dst, regOperand(ctx, o))
}

var castMnemonic = map[ir.Opcode]string{
	ir.OpSIToFP: "fcvt.s.w", ir.OpFPToSI: "fcvt.w.s",
}

func selectCast(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	rd := ctx.VRegFor(inst.Result, inst.Type)
	src := regOperand(ctx, inst.Operands[0])
	if inst.Op == ir.OpZExt {
		// sign/zero-extend a 32-bit value to 64 bits: shift left 32 then
		// logical-shift-right 32 clears the upper bits on RV64's 64-bit regs.
		mb.Append(ri("slli", rd, src, 32))
		mb.Append(ri("srli", rd, rd, 32))
		return
	}
	mb.Append(&Instr{Mnemonic: castMnemonic[inst.Op], Kind: KindRI, Rd: rd, HasRd: true, Rs1: src, HasRs1: true})
}

var intArgPhys = []machine.Register{ireg(10), ireg(11), ireg(12), ireg(13), ireg(14), ireg(15), ireg(16), ireg(17)}
var floatArgPhys = []machine.Register{freg(10), freg(11), freg(12), freg(13), freg(14), freg(15), freg(16), freg(17)}

func selectCall(mb *machine.Block, ctx *isel.FuncContext, inst *ir.Instruction) {
	intIdx, floatIdx := 0, 0
	var argRegs []machine.Register
	for _, o := range inst.Operands {
		var dst machine.Register
		if o.Type.Kind == ir.KindFloating {
			dst = floatArgPhys[floatIdx]
			floatIdx++
		} else {
			dst = intArgPhys[intIdx]
			intIdx++
		}
		mb.Append(moveOperand(ctx, dst, o))
		argRegs = append(argRegs, dst)
	}

	var result machine.Register
	if inst.HasResult {
		result = ctx.VRegFor(inst.Result, inst.Type)
	}
	mb.Append(call(inst.Callee, argRegs, result, inst.HasResult))

	if inst.HasResult {
		retPhys := ireg(regA0)
		if inst.Type.Kind == ir.KindFloating {
			retPhys = freg(10)
		}
		mb.Append(move(result, retPhys))
	}
}
