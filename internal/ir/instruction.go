package ir

// Opcode tags an Instruction's variant. Optimization passes and instruction
// selection switch on this instead of a visitor double-dispatch.
type Opcode int

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpShl
	OpShr
	OpAnd
	OpOr
	OpXor
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpICmp
	OpFCmp
	OpLoad
	OpStore
	OpAlloca
	OpGEP
	OpBrUncond
	OpBrCond
	OpRet
	OpZExt
	OpSIToFP
	OpFPToSI
	OpCall
	OpPhi
)

func (op Opcode) IsTerminator() bool {
	return op == OpBrUncond || op == OpBrCond || op == OpRet
}

func (op Opcode) IsCommutative() bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpXor, OpFAdd, OpFMul:
		return true
	default:
		return false
	}
}

// HasSideEffects reports whether the instruction must be kept even with a
// zero-use result: stores, calls, branches, returns, and allocas (which root
// mem2reg's promotion analysis) are never dead-code-eliminated outright.
func (op Opcode) HasSideEffects() bool {
	switch op {
	case OpStore, OpCall, OpBrUncond, OpBrCond, OpRet, OpAlloca:
		return true
	default:
		return false
	}
}

// Predicate enumerates icmp/fcmp comparison kinds.
type Predicate int

const (
	PredEQ Predicate = iota
	PredNE
	PredSLT
	PredSLE
	PredSGT
	PredSGE
	PredULT
	PredULE
	PredUGT
	PredUGE
	// Ordered/unordered floating predicates
	PredOEQ
	PredONE
	PredOLT
	PredOLE
)

// Swapped returns the predicate obtained by swapping operand order,
// used by CSE's canonical-key construction for commutative comparisons.
func (p Predicate) Swapped() Predicate {
	switch p {
	case PredSLT:
		return PredSGT
	case PredSLE:
		return PredSGE
	case PredSGT:
		return PredSLT
	case PredSGE:
		return PredSLE
	case PredULT:
		return PredUGT
	case PredULE:
		return PredUGE
	case PredUGT:
		return PredULT
	case PredUGE:
		return PredULE
	case PredOLT:
		return PredOLE // not swappable symmetrically; callers should avoid swapping ordered-strict pairs
	default:
		return p
	}
}

// Instruction is one arena-allocated entry in a Block's instruction list. It
// is a single struct with an Opcode tag rather than an interface hierarchy:
// every field that only some opcodes use is simply left zero for the rest,
// which keeps the instruction list a flat, cache-friendly slice and keeps
// passes doing a Go switch on Op instead of a type switch.
type Instruction struct {
	Op        Opcode
	Result    Reg    // valid iff HasResult()
	HasResult bool
	Type      DataType
	Operands  []Operand
	Pred      Predicate // icmp/fcmp only

	// OpPhi: one incoming value per predecessor, indexed in PhiBlocks order.
	PhiBlocks  []BlockID
	PhiOperand []Operand

	// OpCall
	Callee string

	// OpAlloca: size in elements of Type, not bytes
	AllocaCount int64

	// Comment is an optional source-position/debug annotation carried for
	// diagnostics; it is never inspected for correctness.
	Comment string
}

// Uses returns every register this instruction reads from, flattening phi
// incoming values into the same list as ordinary operands.
func (i *Instruction) Uses() []Reg {
	var regs []Reg
	for _, o := range i.Operands {
		if o.Kind == OperandReg {
			regs = append(regs, o.Reg)
		}
	}
	for _, o := range i.PhiOperand {
		if o.Kind == OperandReg {
			regs = append(regs, o.Reg)
		}
	}
	return regs
}

// ReplaceUses rewrites every occurrence of from (in Operands and phi
// incoming values) to to. Used by CSE/SCCP/mem2reg rewriting.
func (i *Instruction) ReplaceUses(from, to Operand) {
	for idx, o := range i.Operands {
		if o.Kind == OperandReg && from.Kind == OperandReg && o.Reg == from.Reg {
			i.Operands[idx] = to
		}
	}
	for idx, o := range i.PhiOperand {
		if o.Kind == OperandReg && from.Kind == OperandReg && o.Reg == from.Reg {
			i.PhiOperand[idx] = to
		}
	}
}

func NewBinary(op Opcode, t DataType, result Reg, lhs, rhs Operand) *Instruction {
	return &Instruction{Op: op, Result: result, HasResult: true, Type: t, Operands: []Operand{lhs, rhs}}
}

func NewICmp(pred Predicate, result Reg, lhs, rhs Operand) *Instruction {
	return &Instruction{Op: OpICmp, Result: result, HasResult: true, Type: I32, Pred: pred, Operands: []Operand{lhs, rhs}}
}

func NewLoad(t DataType, result Reg, addr Operand) *Instruction {
	return &Instruction{Op: OpLoad, Result: result, HasResult: true, Type: t, Operands: []Operand{addr}}
}

func NewStore(addr, val Operand) *Instruction {
	return &Instruction{Op: OpStore, Operands: []Operand{addr, val}}
}

func NewAlloca(result Reg, t DataType, count int64) *Instruction {
	return &Instruction{Op: OpAlloca, Result: result, HasResult: true, Type: Ptr64, AllocaCount: count, Operands: nil, Pred: 0, PhiBlocks: nil, PhiOperand: nil, Callee: "", Comment: ""}
}

func NewBrUncond(target BlockID) *Instruction {
	return &Instruction{Op: OpBrUncond, Operands: []Operand{LabelOperand(target)}}
}

func NewBrCond(cond Operand, trueB, falseB BlockID) *Instruction {
	return &Instruction{Op: OpBrCond, Operands: []Operand{cond, LabelOperand(trueB), LabelOperand(falseB)}}
}

func NewRet(val *Operand) *Instruction {
	if val == nil {
		return &Instruction{Op: OpRet}
	}
	return &Instruction{Op: OpRet, Operands: []Operand{*val}}
}

func NewCall(result *Reg, t DataType, callee string, args []Operand) *Instruction {
	inst := &Instruction{Op: OpCall, Type: t, Operands: args, Callee: callee}
	if result != nil {
		inst.Result = *result
		inst.HasResult = true
	}
	return inst
}

func NewPhi(result Reg, t DataType) *Instruction {
	return &Instruction{Op: OpPhi, Result: result, HasResult: true, Type: t}
}

func (i *Instruction) AddIncoming(block BlockID, val Operand) {
	i.PhiBlocks = append(i.PhiBlocks, block)
	i.PhiOperand = append(i.PhiOperand, val)
}

// IncomingFrom returns the operand associated with pred, and whether pred
// was present — used by SimplifyCFG/ADCE when removing predecessors.
func (i *Instruction) IncomingFrom(pred BlockID) (Operand, bool) {
	for idx, b := range i.PhiBlocks {
		if b == pred {
			return i.PhiOperand[idx], true
		}
	}
	return Operand{}, false
}

// RemoveIncoming drops the incoming value associated with pred, if present.
func (i *Instruction) RemoveIncoming(pred BlockID) {
	for idx, b := range i.PhiBlocks {
		if b == pred {
			i.PhiBlocks = append(i.PhiBlocks[:idx], i.PhiBlocks[idx+1:]...)
			i.PhiOperand = append(i.PhiOperand[:idx], i.PhiOperand[idx+1:]...)
			return
		}
	}
}

func (i *Instruction) IsTerminator() bool { return i.Op.IsTerminator() }

// BranchTargets returns the labels a terminator may jump to, in successor
// order (true-branch first for br_cond).
func (i *Instruction) BranchTargets() []BlockID {
	switch i.Op {
	case OpBrUncond:
		return []BlockID{i.Operands[0].Label}
	case OpBrCond:
		return []BlockID{i.Operands[1].Label, i.Operands[2].Label}
	default:
		return nil
	}
}
