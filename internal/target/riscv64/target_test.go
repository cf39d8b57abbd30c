package riscv64_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nanoc/internal/ir"
	"nanoc/internal/target"
	_ "nanoc/internal/target/riscv64"
)

// buildAddOne hand-builds the SSA for `int addOne(int x) { return x + 1; }`
// without going through the frontend, to exercise the backend in isolation.
func buildAddOne() *ir.Module {
	m := ir.NewModule()
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
	m.AddFunction(f)
	return m
}

// buildBranchy hand-builds `int pick(int c) { if (c != 0) return 1; return 2; }`
// to exercise PHI-free but multi-block selection, branch lowering, and the
// frame's prologue/epilogue insertion before more than one return.
func buildBranchy() *ir.Module {
	m := ir.NewModule()
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
	m.AddFunction(f)
	return m
}

func TestRunPipelineEmitsFunctionLabel(t *testing.T) {
	tgt, ok := target.Lookup("riscv64")
	require.True(t, ok)

	var out strings.Builder
	err := tgt.RunPipeline(buildAddOne(), &out)
	require.NoError(t, err)

	asm := out.String()
	assert.Contains(t, asm, ".text")
	assert.Contains(t, asm, "addOne:")
	assert.Contains(t, asm, "ret")
}

func TestRunPipelineHandlesMultipleReturnsAndBranches(t *testing.T) {
	tgt, ok := target.Lookup("riscv64")
	require.True(t, ok)

	var out strings.Builder
	err := tgt.RunPipeline(buildBranchy(), &out)
	require.NoError(t, err)

	asm := out.String()
	assert.Contains(t, asm, "pick:")
	assert.Equal(t, 2, strings.Count(asm, "\tret"))
}

func TestUnknownTargetLookupFails(t *testing.T) {
	_, ok := target.Lookup("does-not-exist")
	assert.False(t, ok)
}

func TestRegisteredAliases(t *testing.T) {
	for _, name := range []string{"riscv64", "riscv", "rv64"} {
		_, ok := target.Lookup(name)
		assert.True(t, ok, "expected %q to be registered", name)
	}
}
