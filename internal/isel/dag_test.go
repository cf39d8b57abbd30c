package isel_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoc/internal/frame"
	"nanoc/internal/ir"
	"nanoc/internal/isel"
	"nanoc/internal/machine"
	"nanoc/internal/phielim"
	"nanoc/internal/regalloc"
	"nanoc/internal/target/riscv64"
)

// buildAddOne hand-builds `int addOne(int x) { return x + 1; }` to drive
// the DAG path independently of which path internal/target wires by
// default.
func buildAddOne() *ir.Function {
	f := ir.NewFunction("addOne", ir.I32)
	x := f.AddParam(ir.I32)
	entry := f.NewBlock()

	result := f.NewReg(ir.I32)
	entry.Insts = append(entry.Insts,
		ir.NewBinary(ir.OpAdd, ir.I32, result, ir.RegOperand(x, ir.I32), ir.ImmInt(1, ir.I32)),
	)
	retVal := ir.RegOperand(result, ir.I32)
	entry.Insts = append(entry.Insts, ir.NewRet(&retVal))

	f.RecomputeEdges()
	return f
}

// runDAGPipeline drives a function through the DAG selection path and the
// rest of the riscv64 backend (phi elimination, register allocation, frame
// lowering, codegen), mirroring Target.RunPipeline but with RunDAG in place
// of RunDirect — this is the only caller of isel.RunDAG in the module, and
// exists to keep the DAG path exercised and honest rather than dead.
func runDAGPipeline(t *testing.T, f *ir.Function) string {
	t.Helper()
	regInfo := riscv64.RegInfo{}
	adapter := riscv64.InstrAdapter{}
	sel := riscv64.Selector{}

	mmod := machine.NewModule()
	mfn := machine.NewFunction(f.Name)
	mmod.AddFunction(mfn)
	ctx := isel.NewFuncContext(mfn)
	isel.RunDAG(f, ctx, sel)

	phielim.Run(mmod, adapter)
	for _, fn := range mmod.Functions {
		regalloc.Allocate(fn, regInfo, adapter)
	}
	frame.Lower(mmod, regInfo, adapter)

	var out strings.Builder
	cg := riscv64.NewCodeGen(mmod, &out)
	require.NoError(t, cg.Generate())
	return out.String()
}

func TestRunDAGSelectsStraightLineFunction(t *testing.T) {
	asm := runDAGPipeline(t, buildAddOne())
	assert.Contains(t, asm, "addOne:")
	assert.Contains(t, asm, "\tret\n")
	assert.Contains(t, asm, "addi")
}

func TestRunDAGHandlesBranches(t *testing.T) {
	f := ir.NewFunction("pick", ir.I32)
	c := f.AddParam(ir.I32)
	entry := f.NewBlock()
	thenB := f.NewBlock()
	exitB := f.NewBlock()

	cond := f.NewReg(ir.I32)
	entry.Insts = append(entry.Insts, ir.NewICmp(ir.PredNE, cond, ir.RegOperand(c, ir.I32), ir.ImmInt(0, ir.I32)))
	entry.Insts = append(entry.Insts, ir.NewBrCond(ir.RegOperand(cond, ir.I32), thenB.ID, exitB.ID))

	one := ir.ImmInt(1, ir.I32)
	thenB.Insts = append(thenB.Insts, ir.NewRet(&one))

	two := ir.ImmInt(2, ir.I32)
	exitB.Insts = append(exitB.Insts, ir.NewRet(&two))

	f.RecomputeEdges()

	asm := runDAGPipeline(t, f)
	assert.Contains(t, asm, "pick:")
	assert.Equal(t, 2, strings.Count(asm, "\tret"))
}
