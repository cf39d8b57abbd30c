package riscv64

import (
	"nanoc/internal/frame"
	"nanoc/internal/ir"
	"nanoc/internal/isel"
	"nanoc/internal/machine"
	"nanoc/internal/phielim"
	"nanoc/internal/regalloc"
	"nanoc/internal/target"
)

func init() {
	target.Register("riscv64", func() target.Target { return &Target{} })
	target.Register("riscv", func() target.Target { return &Target{} })
	target.Register("rv64", func() target.Target { return &Target{} })
}

// Target is the RISC-V64 backend: selection (direct-IR path by default),
// PHI elimination, linear-scan register allocation, frame lowering, and
// assembly emission, wired in the order rv64_target.cpp's runPipeline
// follows (select -> pre-RA lowering -> RA -> post-RA lowering -> codegen).
type Target struct{}

func (*Target) RegInfo() target.RegInfo           { return RegInfo{} }
func (*Target) InstrAdapter() target.InstrAdapter { return InstrAdapter{} }

func (t *Target) RunPipeline(irModule *ir.Module, out target.OutputWriter) error {
	regInfo := RegInfo{}
	adapter := InstrAdapter{}
	sel := Selector{}

	mmod := machine.NewModule()
	for _, g := range irModule.Globals {
		mmod.Globals = append(mmod.Globals, &machine.GlobalVar{Name: g.Name, Size: elementByteSize(g.Type), Init: g.Init})
	}

	for _, fn := range irModule.Functions {
		mfn := machine.NewFunction(fn.Name)
		mmod.AddFunction(mfn)
		ctx := isel.NewFuncContext(mfn)
		isel.RunDirect(fn, ctx, sel)
	}

	phielim.Run(mmod, adapter)

	for _, mfn := range mmod.Functions {
		regalloc.Allocate(mfn, regInfo, adapter)
	}

	frame.Lower(mmod, regInfo, adapter)

	cg := NewCodeGen(mmod, &writerAdapter{out})
	return cg.Generate()
}

func elementByteSize(t ir.DataType) int {
	if t.Kind == ir.KindPointer {
		return 8
	}
	return t.Width / 8
}

// writerAdapter lets target.OutputWriter (a WriteString-only surface)
// satisfy io.Writer, which CodeGen's fmt.Fprintf-based emission wants.
type writerAdapter struct {
	w target.OutputWriter
}

func (a *writerAdapter) Write(p []byte) (int, error) {
	return a.w.WriteString(string(p))
}

var _ target.Target = (*Target)(nil)
