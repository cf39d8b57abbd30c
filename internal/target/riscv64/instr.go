package riscv64

import (
	"fmt"
	"strings"

	"nanoc/internal/machine"
)

// Kind tags Instr's shape: which of Rd/Rs1/Rs2/Imm/Sym/Targets are
// meaningful. A single struct (rather than one Go type per mnemonic)
// mirrors BE::RV64::Instr in the original sources: one generic instruction
// record carrying a mnemonic string plus up to two source registers, one
// destination, and an optional immediate/symbol/memory operand.
type Kind int

const (
	KindRR    Kind = iota // rd = rs1 op rs2
	KindRI                // rd = rs1 op imm
	KindLoad              // rd = mem[rs1+imm]
	KindStore             // mem[rs1+imm] = rs2
	KindMove              // rd = rs1 | rd = imm
	KindBr                // unconditional jump to Targets[0]
	KindBrCond            // conditional: rs1 != 0 -> Targets[0] else Targets[1]
	KindCall
	KindRet
	KindLabelOnly // pseudo, used for data-section symbol references
)

// Instr is the RISC-V64 concrete machine.Instruction.
type Instr struct {
	Mnemonic string
	Kind     Kind

	Rd     machine.Register
	HasRd  bool
	Rs1    machine.Register
	HasRs1 bool
	Rs2    machine.Register
	HasRs2 bool

	Imm    int64
	HasImm bool

	// FrameIndex addressing: set by isel (alloca-derived addresses) and by
	// the register allocator's spill/reload insertion. internal/frame
	// resolves every FrameIndex into a concrete Imm (SP-relative byte
	// offset) during lowering and clears HasFrameIndex.
	FrameIndex    int
	HasFrameIndex bool

	Sym string

	MemOffset int64

	Targets []int // machine block ids

	CallArgs   []machine.Register // for enumUses on call sites
	CallResult machine.Register
	HasResult  bool
}

func (*Instr) isMachineInstruction() {}

func (i *Instr) String() string {
	var b strings.Builder
	b.WriteString(i.Mnemonic)
	b.WriteByte(' ')
	var parts []string
	if i.HasRd {
		parts = append(parts, RegName(i.Rd))
	}
	if i.HasRs1 {
		parts = append(parts, RegName(i.Rs1))
	}
	if i.HasRs2 {
		parts = append(parts, RegName(i.Rs2))
	}
	if i.HasImm {
		parts = append(parts, fmt.Sprintf("%d", i.Imm))
	}
	if i.HasFrameIndex {
		parts = append(parts, fmt.Sprintf("fi#%d", i.FrameIndex))
	}
	if i.Sym != "" {
		parts = append(parts, i.Sym)
	}
	for _, t := range i.Targets {
		parts = append(parts, fmt.Sprintf(".L%d", t))
	}
	b.WriteString(strings.Join(parts, ", "))
	return b.String()
}

func rr(mnemonic string, rd, rs1, rs2 machine.Register) *Instr {
	return &Instr{Mnemonic: mnemonic, Kind: KindRR, Rd: rd, HasRd: true, Rs1: rs1, HasRs1: true, Rs2: rs2, HasRs2: true}
}

func ri(mnemonic string, rd, rs1 machine.Register, imm int64) *Instr {
	return &Instr{Mnemonic: mnemonic, Kind: KindRI, Rd: rd, HasRd: true, Rs1: rs1, HasRs1: true, Imm: imm, HasImm: true}
}

func move(dst, src machine.Register) *Instr {
	mnemonic := "mv"
	if dst.Class == machine.ClassFloat {
		mnemonic = "fmv.s"
	}
	return &Instr{Mnemonic: mnemonic, Kind: KindMove, Rd: dst, HasRd: true, Rs1: src, HasRs1: true}
}

func moveImm(dst machine.Register, imm int64) *Instr {
	return &Instr{Mnemonic: "li", Kind: KindMove, Rd: dst, HasRd: true, Imm: imm, HasImm: true}
}

func load(mnemonic string, rd, base machine.Register, off int64) *Instr {
	return &Instr{Mnemonic: mnemonic, Kind: KindLoad, Rd: rd, HasRd: true, Rs1: base, HasRs1: true, Imm: off, HasImm: true}
}

func store(mnemonic string, base, src machine.Register, off int64) *Instr {
	return &Instr{Mnemonic: mnemonic, Kind: KindStore, Rs1: base, HasRs1: true, Rs2: src, HasRs2: true, Imm: off, HasImm: true}
}

func loadFrame(mnemonic string, rd, base machine.Register, fi int) *Instr {
	return &Instr{Mnemonic: mnemonic, Kind: KindLoad, Rd: rd, HasRd: true, Rs1: base, HasRs1: true, FrameIndex: fi, HasFrameIndex: true}
}

func storeFrame(mnemonic string, base, src machine.Register, fi int) *Instr {
	return &Instr{Mnemonic: mnemonic, Kind: KindStore, Rs1: base, HasRs1: true, Rs2: src, HasRs2: true, FrameIndex: fi, HasFrameIndex: true}
}

func addrOfFrame(rd machine.Register, fi int) *Instr {
	return &Instr{Mnemonic: "addi", Kind: KindRI, Rd: rd, HasRd: true, Rs1: ireg(regSP), HasRs1: true, FrameIndex: fi, HasFrameIndex: true}
}

func uncondBr(target int) *Instr {
	return &Instr{Mnemonic: "j", Kind: KindBr, Targets: []int{target}}
}

func condBr(mnemonic string, cond machine.Register, trueTarget, falseTarget int) *Instr {
	return &Instr{Mnemonic: mnemonic, Kind: KindBrCond, Rs1: cond, HasRs1: true, Targets: []int{trueTarget, falseTarget}}
}

func call(sym string, args []machine.Register, result machine.Register, hasResult bool) *Instr {
	return &Instr{Mnemonic: "call", Kind: KindCall, Sym: sym, CallArgs: args, CallResult: result, HasResult: hasResult}
}

func ret() *Instr {
	return &Instr{Mnemonic: "ret", Kind: KindRet}
}
