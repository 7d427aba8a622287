package richiamo

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/multi"
)

// Function is a call graph node: one recovered CFG, identified by name.
type Function struct {
	id  int64
	CFG *CFG
}

// ID implements graph.Node.
func (f *Function) ID() int64 {
	return f.id
}

// DOTID labels the node with the function name in DOT output.
func (f *Function) DOTID() string {
	return f.CFG.Name
}

// CallGraph is the inter-procedural graph over a set of recovered CFGs.
// The underlying graph is a directed multigraph so that directly
// recursive functions can carry a self-edge; the builder never adds
// parallel edges, so each caller→callee pair appears at most once.
type CallGraph struct {
	g       *multi.DirectedGraph
	byName  map[string]*Function
	byEntry map[uint64]*Function
}

// BuildCallGraph assembles the call graph over cfgs. Every CFG becomes a
// node, even when it ends up with no edges; a CFG whose name collides
// with an earlier one is skipped, so a duplicate recovery of the same
// address collapses to a single node. Edges connect each CFG to every
// node whose entry address it calls; multiple call sites between the same
// pair collapse to one edge. Recursive and mutually recursive call chains
// form cycles.
//
// Node IDs follow input order, so a deterministically ordered input
// yields deterministic DOT output.
func BuildCallGraph(cfgs []*CFG) *CallGraph {
	cg := &CallGraph{
		g:       multi.NewDirectedGraph(),
		byName:  make(map[string]*Function),
		byEntry: make(map[uint64]*Function),
	}

	var id int64
	for _, cfg := range cfgs {
		if _, ok := cg.byName[cfg.Name]; ok {
			continue
		}
		fn := &Function{id: id, CFG: cfg}
		id++
		cg.g.AddNode(fn)
		cg.byName[cfg.Name] = fn
		if _, ok := cg.byEntry[cfg.Entry]; !ok {
			cg.byEntry[cfg.Entry] = fn
		}
	}

	for _, caller := range cg.Functions() {
		for _, target := range caller.CFG.CallTargets() {
			callee, ok := cg.byEntry[target]
			if !ok {
				continue
			}
			cg.g.SetLine(cg.g.NewLine(caller, callee))
		}
	}

	return cg
}

// Len returns the number of functions in the graph.
func (cg *CallGraph) Len() int {
	return len(cg.byName)
}

// Lookup returns the function named name, or nil.
func (cg *CallGraph) Lookup(name string) *Function {
	return cg.byName[name]
}

// HasEdge reports whether caller has a resolved call to callee.
func (cg *CallGraph) HasEdge(caller, callee string) bool {
	u, ok := cg.byName[caller]
	if !ok {
		return false
	}
	v, ok := cg.byName[callee]
	if !ok {
		return false
	}
	return cg.g.HasEdgeFromTo(u.ID(), v.ID())
}

// Functions returns the nodes in insertion (entry) order.
func (cg *CallGraph) Functions() []*Function {
	fns := make([]*Function, 0, len(cg.byName))
	for _, fn := range cg.byName {
		fns = append(fns, fn)
	}
	slices.SortFunc(fns, func(a, b *Function) int {
		return cmp.Compare(a.id, b.id)
	})
	return fns
}
