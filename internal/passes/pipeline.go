// Package passes implements the SSA optimization pipeline: mem2reg, SCCP,
// CSE, DCE, ADCE, LICM, inlining, tail-call-to-loop rewriting, and CFG
// simplification, run in a fixed order over an internal/ir.Module.
package passes

import (
	"nanoc/internal/analysis"
	"nanoc/internal/ir"
)

// Pass is a function-scoped optimization. Module-scoped passes (Inline) are
// plain functions taking the whole module instead.
type Pass interface {
	Name() string
	RunOnFunction(f *ir.Function, am *analysis.Manager) bool
}

// RunPipeline runs the fixed pass order spec.md §4.4 prescribes:
// mem2reg → SCCP → SimplifyCFG → CSE → DCE → LICM → Inline → TCO → ADCE →
// UnifyReturn. Inline is module-scoped and runs once between the
// function-scoped passes around it.
func RunPipeline(m *ir.Module) {
	am := analysis.NewManager()

	functionPasses := []Pass{
		&Mem2Reg{},
		&SCCP{},
		&SimplifyCFG{},
	}
	for _, f := range m.Functions {
		runToFixpoint(f, am, functionPasses)
	}

	for _, f := range m.Functions {
		runToFixpoint(f, am, []Pass{&CSE{}, &DCE{}})
	}

	for _, f := range m.Functions {
		runToFixpoint(f, am, []Pass{&LICM{}})
	}

	RunInline(m, am)

	for _, f := range m.Functions {
		runToFixpoint(f, am, []Pass{&TCO{}})
	}

	for _, f := range m.Functions {
		runToFixpoint(f, am, []Pass{&ADCE{}, &UnifyReturn{}})
	}
}

// runToFixpoint applies each pass in order once per round, repeating rounds
// while any pass in the round reports a change, so e.g. SimplifyCFG
// following SCCP's branch folding can still run before the next round.
func runToFixpoint(f *ir.Function, am *analysis.Manager, ps []Pass) {
	for {
		changed := false
		for _, p := range ps {
			if p.RunOnFunction(f, am) {
				changed = true
				am.Invalidate(f)
			}
		}
		if !changed {
			return
		}
	}
}
