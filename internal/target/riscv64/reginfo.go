// Package riscv64 implements the RISC-V64 backend target: register info,
// instruction adapter, instruction selector, frame lowering, and assembly
// emission, registered under the names "riscv64", "riscv", and "rv64".
package riscv64

import (
	"fmt"

	"nanoc/internal/machine"
	"nanoc/internal/target"
)

// Integer register ids follow the RV64 ISA numbering (x0-x31); float
// register ids are numbered independently (f0-f31) since machine.Register
// carries its class explicitly instead of packing both into one id space.
const (
	regZero = 0
	regRA   = 1
	regSP   = 2
	regGP   = 3
	regTP   = 4
	regT0   = 5
	regT1   = 6
	regT2   = 7
	regS0   = 8
	regS1   = 9
	regA0   = 10
)

func ireg(id int) machine.Register { return machine.Register{ID: id, Class: machine.ClassInt} }
func freg(id int) machine.Register { return machine.Register{ID: id, Class: machine.ClassFloat} }

var intNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

var floatNames = [32]string{
	"ft0", "ft1", "ft2", "ft3", "ft4", "ft5", "ft6", "ft7",
	"fs0", "fs1", "fa0", "fa1", "fa2", "fa3", "fa4", "fa5",
	"fa6", "fa7", "fs2", "fs3", "fs4", "fs5", "fs6", "fs7",
	"fs8", "fs9", "fs10", "fs11", "ft8", "ft9", "ft10", "ft11",
}

// RegName renders a physical register's ABI mnemonic, used by the emitter.
func RegName(r machine.Register) string {
	if r.IsVirtual {
		return fmt.Sprintf("%%v%d", r.ID)
	}
	if r.Class == machine.ClassFloat {
		return floatNames[r.ID]
	}
	return intNames[r.ID]
}

// RegInfo is the concrete target.RegInfo for RISC-V64, grounded on
// rv64_reg_info.h's register-class tables and reserved set (x0, ra, sp, gp,
// tp, t0-t2, ft0-ft2 — the first three float temporaries are reserved
// alongside their integer counterparts as assembler scratch space).
type RegInfo struct{}

func (RegInfo) SPReg() machine.Register   { return ireg(regSP) }
func (RegInfo) RAReg() machine.Register   { return ireg(regRA) }
func (RegInfo) ZeroReg() machine.Register { return ireg(regZero) }

func (RegInfo) IntArgRegs() []machine.Register {
	return []machine.Register{ireg(10), ireg(11), ireg(12), ireg(13), ireg(14), ireg(15), ireg(16), ireg(17)}
}

func (RegInfo) FloatArgRegs() []machine.Register {
	return []machine.Register{freg(10), freg(11), freg(12), freg(13), freg(14), freg(15), freg(16), freg(17)}
}

func (RegInfo) CalleeSavedInt() []machine.Register {
	return []machine.Register{ireg(8), ireg(9), ireg(18), ireg(19), ireg(20), ireg(21), ireg(22), ireg(23),
		ireg(24), ireg(25), ireg(26), ireg(27)}
}

func (RegInfo) CalleeSavedFloat() []machine.Register {
	return []machine.Register{freg(8), freg(9), freg(18), freg(19), freg(20), freg(21), freg(22), freg(23),
		freg(24), freg(25), freg(26), freg(27)}
}

func (RegInfo) Reserved() []machine.Register {
	return []machine.Register{ireg(0), ireg(1), ireg(2), ireg(3), ireg(4), ireg(5), ireg(6), ireg(7),
		freg(0), freg(1), freg(2)}
}

func (RegInfo) ScratchInt() machine.Register   { return ireg(regT2) }
func (RegInfo) ScratchFloat() machine.Register { return freg(2) }

func (RegInfo) IntRegs() []machine.Register {
	out := make([]machine.Register, 32)
	for i := range out {
		out[i] = ireg(i)
	}
	return out
}

func (RegInfo) FloatRegs() []machine.Register {
	out := make([]machine.Register, 32)
	for i := range out {
		out[i] = freg(i)
	}
	return out
}

var _ target.RegInfo = RegInfo{}
