// Package analysis provides the dominance analyzer, a per-function analysis
// manager with memoized results, and CFG/loop-info construction — the
// pieces internal/passes builds every optimization on top of.
package analysis

import "nanoc/internal/ir"

// Graph is the minimal directed-graph view the dominance analyzer needs:
// successors and predecessors of a node, addressed by ir.BlockID. Both the
// forward CFG and its reverse (for post-dominance) satisfy this interface.
type Graph interface {
	Succs(ir.BlockID) []ir.BlockID
	Preds(ir.BlockID) []ir.BlockID
	Nodes() []ir.BlockID
}

// DomInfo holds the immediate-dominator map, dominator-tree children, and
// dominance frontiers for a graph reachable from a single entry.
type DomInfo struct {
	Entry     ir.BlockID
	IDom      map[ir.BlockID]ir.BlockID
	Children  map[ir.BlockID][]ir.BlockID
	Frontier  map[ir.BlockID][]ir.BlockID
	dfsNumber map[ir.BlockID]int
	order     []ir.BlockID
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (d *DomInfo) Dominates(a, b ir.BlockID) bool {
	if a == b {
		return true
	}
	for cur, ok := d.IDom[b]; ok; cur, ok = d.IDom[cur] {
		if cur == a {
			return true
		}
		if cur == d.Entry {
			break
		}
	}
	return false
}

// BuildDominance computes immediate dominators, the dominator tree, and
// dominance frontiers for g from entry, via Lengauer–Tarjan.
func BuildDominance(g Graph, entry ir.BlockID) *DomInfo {
	lt := &ltState{
		g:       g,
		dfsNum:  make(map[ir.BlockID]int),
		vertex:  nil,
		parent:  make(map[ir.BlockID]ir.BlockID),
		semi:    make(map[ir.BlockID]int),
		ancestor: make(map[ir.BlockID]ir.BlockID),
		label:   make(map[ir.BlockID]ir.BlockID),
		idom:    make(map[ir.BlockID]ir.BlockID),
		bucket:  make(map[ir.BlockID][]ir.BlockID),
	}
	lt.dfs(entry)

	for i := len(lt.vertex) - 1; i >= 1; i-- {
		w := lt.vertex[i]
		for _, v := range g.Preds(w) {
			if _, seen := lt.dfsNum[v]; !seen {
				continue
			}
			u := lt.eval(v)
			if lt.semi[u] < lt.semi[w] {
				lt.semi[w] = lt.semi[u]
			}
		}
		semiW := lt.vertex[lt.semi[w]]
		lt.bucket[semiW] = append(lt.bucket[semiW], w)
		lt.link(lt.parent[w], w)

		for _, v := range lt.bucket[lt.parent[w]] {
			u := lt.eval(v)
			if lt.semi[u] < lt.semi[v] {
				lt.idom[v] = u
			} else {
				lt.idom[v] = lt.parent[w]
			}
		}
		lt.bucket[lt.parent[w]] = nil
	}

	for i := 1; i < len(lt.vertex); i++ {
		w := lt.vertex[i]
		if lt.idom[w] != lt.vertex[lt.semi[w]] {
			lt.idom[w] = lt.idom[lt.idom[w]]
		}
	}

	info := &DomInfo{
		Entry:     entry,
		IDom:      lt.idom,
		Children:  make(map[ir.BlockID][]ir.BlockID),
		Frontier:  make(map[ir.BlockID][]ir.BlockID),
		dfsNumber: lt.dfsNum,
		order:     lt.vertex,
	}
	for _, w := range lt.vertex {
		if w == entry {
			continue
		}
		p := info.IDom[w]
		info.Children[p] = append(info.Children[p], w)
	}

	computeDominanceFrontier(g, info)
	return info
}

// computeDominanceFrontier implements Cytron et al.: for every join node
// (≥2 predecessors), walk each predecessor's idom chain up to but not
// including the join's idom, adding the join to each visited node's
// frontier.
func computeDominanceFrontier(g Graph, info *DomInfo) {
	for _, b := range g.Nodes() {
		preds := g.Preds(b)
		if len(preds) < 2 {
			continue
		}
		idomB, hasIdomB := info.IDom[b]
		for _, p := range preds {
			if _, reachable := info.dfsNumber[p]; !reachable {
				continue
			}
			runner := p
			for {
				if hasIdomB && runner == idomB {
					break
				}
				info.Frontier[runner] = appendIfAbsent(info.Frontier[runner], b)
				next, ok := info.IDom[runner]
				if !ok {
					break
				}
				runner = next
			}
		}
	}
}

func appendIfAbsent(list []ir.BlockID, b ir.BlockID) []ir.BlockID {
	for _, x := range list {
		if x == b {
			return list
		}
	}
	return append(list, b)
}

// ltState is the Lengauer-Tarjan working state: DFS numbering, the
// Eval/Link union-find with path-compression labels, and the semidominator
// buckets.
type ltState struct {
	g        Graph
	dfsNum   map[ir.BlockID]int
	vertex   []ir.BlockID
	parent   map[ir.BlockID]ir.BlockID
	semi     map[ir.BlockID]int
	ancestor map[ir.BlockID]ir.BlockID
	label    map[ir.BlockID]ir.BlockID
	idom     map[ir.BlockID]ir.BlockID
	bucket   map[ir.BlockID][]ir.BlockID
}

func (s *ltState) dfs(v ir.BlockID) {
	s.dfsNum[v] = len(s.vertex)
	s.semi[v] = len(s.vertex)
	s.label[v] = v
	s.vertex = append(s.vertex, v)
	for _, w := range s.g.Succs(v) {
		if _, seen := s.dfsNum[w]; !seen {
			s.parent[w] = v
			s.dfs(w)
		}
	}
}

func (s *ltState) link(v, w ir.BlockID) {
	s.ancestor[w] = v
}

// eval returns the ancestor of v (along the spanning-forest chain) with
// minimum semidominator DFS number, compressing paths as it goes.
func (s *ltState) eval(v ir.BlockID) ir.BlockID {
	if _, has := s.ancestor[v]; !has {
		return v
	}
	s.compress(v)
	return s.label[v]
}

func (s *ltState) compress(v ir.BlockID) {
	a, ok := s.ancestor[v]
	if !ok {
		return
	}
	if _, hasGrand := s.ancestor[a]; hasGrand {
		s.compress(a)
		if s.semi[s.label[a]] < s.semi[s.label[v]] {
			s.label[v] = s.label[a]
		}
		s.ancestor[v] = s.ancestor[a]
	}
}
