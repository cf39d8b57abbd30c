package analysis

import "nanoc/internal/ir"

// Manager is a lazily-initialized, per-function memoizing cache keyed by
// analysis type. Passes request an analysis and get a cached result or a
// freshly built one; any pass that mutates control flow or SSA must call
// Invalidate before the next Get. The manager assumes single-threaded
// compilation, matching the rest of the pipeline (spec.md §5).
type Manager struct {
	cfg      map[*ir.Function]*CFG
	dom      map[*ir.Function]*DomInfo
	postdom  map[*ir.Function]*PostDomInfo
	loopInfo map[*ir.Function]*LoopInfo
}

func NewManager() *Manager {
	return &Manager{
		cfg:      make(map[*ir.Function]*CFG),
		dom:      make(map[*ir.Function]*DomInfo),
		postdom:  make(map[*ir.Function]*PostDomInfo),
		loopInfo: make(map[*ir.Function]*LoopInfo),
	}
}

func (m *Manager) CFG(f *ir.Function) *CFG {
	if c, ok := m.cfg[f]; ok {
		return c
	}
	c := BuildCFG(f)
	m.cfg[f] = c
	return c
}

func (m *Manager) Dominance(f *ir.Function) *DomInfo {
	if d, ok := m.dom[f]; ok {
		return d
	}
	d := BuildDominance(m.CFG(f), 0)
	m.dom[f] = d
	return d
}

func (m *Manager) PostDominance(f *ir.Function) *PostDomInfo {
	if d, ok := m.postdom[f]; ok {
		return d
	}
	d := BuildPostDominance(m.CFG(f))
	m.postdom[f] = d
	return d
}

func (m *Manager) LoopInfo(f *ir.Function) *LoopInfo {
	if l, ok := m.loopInfo[f]; ok {
		return l
	}
	l := BuildLoopInfo(m.CFG(f), m.Dominance(f))
	m.loopInfo[f] = l
	return l
}

// Invalidate drops every cached analysis for f. Call after any pass
// structurally mutates f's control flow or SSA.
func (m *Manager) Invalidate(f *ir.Function) {
	delete(m.cfg, f)
	delete(m.dom, f)
	delete(m.postdom, f)
	delete(m.loopInfo, f)
}
