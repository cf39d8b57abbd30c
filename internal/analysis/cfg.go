package analysis

import "nanoc/internal/ir"

// CFG records block→successor and the reverse relation, walked from block 0;
// unreachable blocks are simply absent (deleting them is the caller's job).
type CFG struct {
	Func     *ir.Function
	reach    map[ir.BlockID]bool
	succs    map[ir.BlockID][]ir.BlockID
	preds    map[ir.BlockID][]ir.BlockID
	order    []ir.BlockID
	exits    []ir.BlockID
}

func BuildCFG(f *ir.Function) *CFG {
	c := &CFG{
		Func:  f,
		reach: make(map[ir.BlockID]bool),
		succs: make(map[ir.BlockID][]ir.BlockID),
		preds: make(map[ir.BlockID][]ir.BlockID),
	}
	var stack []ir.BlockID
	stack = append(stack, 0)
	c.reach[0] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c.order = append(c.order, id)
		b := f.Blocks[id]
		if b == nil {
			continue
		}
		term := b.Terminator()
		if term == nil {
			continue
		}
		targets := term.BranchTargets()
		if len(targets) == 0 {
			c.exits = append(c.exits, id)
		}
		c.succs[id] = targets
		for _, t := range targets {
			c.preds[t] = append(c.preds[t], id)
			if !c.reach[t] {
				c.reach[t] = true
				stack = append(stack, t)
			}
		}
	}
	return c
}

func (c *CFG) Succs(b ir.BlockID) []ir.BlockID { return c.succs[b] }
func (c *CFG) Preds(b ir.BlockID) []ir.BlockID { return c.preds[b] }
func (c *CFG) Nodes() []ir.BlockID             { return c.order }
func (c *CFG) Reachable(b ir.BlockID) bool      { return c.reach[b] }
func (c *CFG) Exits() []ir.BlockID              { return c.exits }

// Reverse presents the same graph with edges flipped, the entry-independent
// input post-dominance analysis needs. A virtual root is not materialized
// here; BuildPostDominance wraps the reverse graph in a virtualRootGraph
// whose root's successors are every real exit, and runs BuildDominance once
// from that root.
type Reverse struct{ c *CFG }

func (c *CFG) ReverseGraph() *Reverse { return &Reverse{c: c} }

func (r *Reverse) Succs(b ir.BlockID) []ir.BlockID { return r.c.preds[b] }
func (r *Reverse) Preds(b ir.BlockID) []ir.BlockID { return r.c.succs[b] }
func (r *Reverse) Nodes() []ir.BlockID             { return r.c.order }

// PostDomInfo wraps dominance on the reverse graph from a synthetic root
// whose successors are every real exit, so multi-exit functions still
// produce a single-rooted post-dominator tree.
type PostDomInfo struct {
	*DomInfo
}

const virtualExit ir.BlockID = -1

func BuildPostDominance(c *CFG) *PostDomInfo {
	rev := c.ReverseGraph()
	vg := &virtualRootGraph{inner: rev, root: virtualExit, rootSuccs: c.Exits()}
	info := BuildDominance(vg, virtualExit)
	return &PostDomInfo{DomInfo: info}
}

type virtualRootGraph struct {
	inner     Graph
	root      ir.BlockID
	rootSuccs []ir.BlockID
}

func (v *virtualRootGraph) Succs(b ir.BlockID) []ir.BlockID {
	if b == v.root {
		return v.rootSuccs
	}
	return v.inner.Succs(b)
}

func (v *virtualRootGraph) Preds(b ir.BlockID) []ir.BlockID {
	for _, s := range v.rootSuccs {
		if s == b {
			return append(append([]ir.BlockID{}, v.inner.Preds(b)...), v.root)
		}
	}
	return v.inner.Preds(b)
}

func (v *virtualRootGraph) Nodes() []ir.BlockID {
	return append([]ir.BlockID{v.root}, v.inner.Nodes()...)
}
