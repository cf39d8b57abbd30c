package ir

import (
	"fmt"
	"strings"
)

var opNames = map[Opcode]string{
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod",
	OpShl: "shl", OpShr: "shr", OpAnd: "and", OpOr: "or", OpXor: "xor",
	OpFAdd: "fadd", OpFSub: "fsub", OpFMul: "fmul", OpFDiv: "fdiv",
	OpICmp: "icmp", OpFCmp: "fcmp", OpLoad: "load", OpStore: "store",
	OpAlloca: "alloca", OpGEP: "gep", OpBrUncond: "br", OpBrCond: "br_cond",
	OpRet: "ret", OpZExt: "zext", OpSIToFP: "sitofp", OpFPToSI: "fptosi",
	OpCall: "call", OpPhi: "phi",
}

func (i *Instruction) String() string {
	var sb strings.Builder
	if i.HasResult {
		fmt.Fprintf(&sb, "%%r%d = ", i.Result)
	}
	sb.WriteString(opNames[i.Op])
	if i.Op == OpCall {
		fmt.Fprintf(&sb, " @%s(", i.Callee)
		for idx, o := range i.Operands {
			if idx > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(o.String())
		}
		sb.WriteString(")")
		return sb.String()
	}
	if i.Op == OpPhi {
		for idx := range i.PhiBlocks {
			fmt.Fprintf(&sb, " [bb%d: %s]", i.PhiBlocks[idx], i.PhiOperand[idx])
		}
		return sb.String()
	}
	for _, o := range i.Operands {
		sb.WriteString(" ")
		sb.WriteString(o.String())
	}
	if i.Comment != "" {
		sb.WriteString(" ; ")
		sb.WriteString(i.Comment)
	}
	return sb.String()
}

func (b *Block) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bb%d:\n", b.ID)
	for _, inst := range b.Insts {
		fmt.Fprintf(&sb, "  %s\n", inst)
	}
	return sb.String()
}

func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(", f.Name)
	for idx, p := range f.Params {
		if idx > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%%r%d: %s", p, f.ParamTypes[idx])
	}
	fmt.Fprintf(&sb, ") -> %s {\n", f.ReturnType)
	for _, b := range f.BlocksInOrder() {
		sb.WriteString(b.String())
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (m *Module) String() string {
	var sb strings.Builder
	for _, f := range m.Functions {
		sb.WriteString(f.String())
	}
	return sb.String()
}
