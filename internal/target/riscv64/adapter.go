package riscv64

import (
	"nanoc/internal/machine"
	"nanoc/internal/target"
)

// InstrAdapter is the register allocator's and PHI eliminator's only window
// into Instr, grounded on rv64_instr_adapter.cpp's method set (left as
// TODO stubs there; fully implemented here against the concrete Instr
// fields instead of a dynamic_cast-and-bail pattern).
type InstrAdapter struct{}

func (InstrAdapter) IsCall(inst machine.Instruction) bool {
	ri, ok := inst.(*Instr)
	return ok && ri.Kind == KindCall
}

func (InstrAdapter) IsReturn(inst machine.Instruction) bool {
	ri, ok := inst.(*Instr)
	return ok && ri.Kind == KindRet
}

func (InstrAdapter) IsUncondBranch(inst machine.Instruction) bool {
	ri, ok := inst.(*Instr)
	return ok && ri.Kind == KindBr
}

func (InstrAdapter) IsCondBranch(inst machine.Instruction) bool {
	ri, ok := inst.(*Instr)
	return ok && ri.Kind == KindBrCond
}

func (InstrAdapter) ExtractBranchTargets(inst machine.Instruction) []int {
	ri, ok := inst.(*Instr)
	if !ok {
		return nil
	}
	return ri.Targets
}

func (InstrAdapter) EnumUses(inst machine.Instruction) []machine.Register {
	ri, ok := inst.(*Instr)
	if !ok {
		return nil
	}
	var out []machine.Register
	switch ri.Kind {
	case KindStore:
		out = append(out, ri.Rs1, ri.Rs2)
	case KindCall:
		out = append(out, ri.CallArgs...)
	case KindBrCond:
		out = append(out, ri.Rs1)
	case KindRet:
		if ri.HasRs1 {
			out = append(out, ri.Rs1)
		}
	default:
		if ri.HasRs1 {
			out = append(out, ri.Rs1)
		}
		if ri.HasRs2 {
			out = append(out, ri.Rs2)
		}
	}
	return out
}

func (InstrAdapter) EnumDefs(inst machine.Instruction) []machine.Register {
	ri, ok := inst.(*Instr)
	if !ok {
		return nil
	}
	var out []machine.Register
	if ri.Kind == KindCall {
		if ri.HasResult {
			out = append(out, ri.CallResult)
		}
		return out
	}
	if ri.HasRd {
		out = append(out, ri.Rd)
	}
	return out
}

func (InstrAdapter) EnumPhysRegs(inst machine.Instruction) []machine.Register {
	ri, ok := inst.(*Instr)
	if !ok {
		return nil
	}
	var out []machine.Register
	consider := func(r machine.Register, has bool) {
		if has && !r.IsVirtual {
			out = append(out, r)
		}
	}
	consider(ri.Rd, ri.HasRd)
	consider(ri.Rs1, ri.HasRs1)
	consider(ri.Rs2, ri.HasRs2)
	return out
}

func replaceReg(slot *machine.Register, has bool, from, to machine.Register) {
	if has && slot.Equal(from) {
		*slot = to
	}
}

func (InstrAdapter) ReplaceUse(inst machine.Instruction, from, to machine.Register) {
	ri, ok := inst.(*Instr)
	if !ok {
		return
	}
	replaceReg(&ri.Rs1, ri.HasRs1, from, to)
	replaceReg(&ri.Rs2, ri.HasRs2, from, to)
	for i, a := range ri.CallArgs {
		if a.Equal(from) {
			ri.CallArgs[i] = to
		}
	}
}

func (InstrAdapter) ReplaceDef(inst machine.Instruction, from, to machine.Register) {
	ri, ok := inst.(*Instr)
	if !ok {
		return
	}
	replaceReg(&ri.Rd, ri.HasRd, from, to)
	if ri.Kind == KindCall && ri.HasResult && ri.CallResult.Equal(from) {
		ri.CallResult = to
	}
}

func (InstrAdapter) InsertReloadBefore(block *machine.Block, idx int, physReg machine.Register, frameIndex int) {
	mnemonic := "ld"
	if physReg.Class == machine.ClassFloat {
		mnemonic = "fld"
	}
	block.InsertAt(idx, loadFrame(mnemonic, physReg, ireg(regSP), frameIndex))
}

func (InstrAdapter) InsertSpillAfter(block *machine.Block, idx int, physReg machine.Register, frameIndex int) {
	mnemonic := "sd"
	if physReg.Class == machine.ClassFloat {
		mnemonic = "fsd"
	}
	block.InsertAt(idx+1, storeFrame(mnemonic, ireg(regSP), physReg, frameIndex))
}

func (InstrAdapter) NewMove(dst machine.Register, src machine.MachineOperand) machine.Instruction {
	if src.Kind == machine.MOReg {
		return move(dst, src.Reg)
	}
	return moveImm(dst, src.ImmI)
}

func (InstrAdapter) NewUncondBranch(target int) machine.Instruction {
	return uncondBr(target)
}

func (InstrAdapter) RedirectBranchTarget(inst machine.Instruction, from, to int) {
	ri, ok := inst.(*Instr)
	if !ok {
		return
	}
	for i, t := range ri.Targets {
		if t == from {
			ri.Targets[i] = to
		}
	}
}

func (InstrAdapter) PendingFrameIndex(inst machine.Instruction) (int, bool) {
	ri, ok := inst.(*Instr)
	if !ok || !ri.HasFrameIndex {
		return 0, false
	}
	return ri.FrameIndex, true
}

func (InstrAdapter) ResolveFrameIndex(inst machine.Instruction, offset int64) {
	ri, ok := inst.(*Instr)
	if !ok {
		return
	}
	ri.HasFrameIndex = false
	ri.Imm = offset
	ri.HasImm = true
}

func (InstrAdapter) NewFrameAdjust(sp machine.Register, delta int64) machine.Instruction {
	return ri("addi", sp, sp, delta)
}

func (InstrAdapter) NewFrameLoad(dst, base machine.Register, offset int64) machine.Instruction {
	mnemonic := "ld"
	if dst.Class == machine.ClassFloat {
		mnemonic = "fld"
	}
	return load(mnemonic, dst, base, offset)
}

func (InstrAdapter) NewFrameStore(base, src machine.Register, offset int64) machine.Instruction {
	mnemonic := "sd"
	if src.Class == machine.ClassFloat {
		mnemonic = "fsd"
	}
	return store(mnemonic, base, src, offset)
}

var _ target.InstrAdapter = InstrAdapter{}
