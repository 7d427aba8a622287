package richiamo

import (
	"cmp"
	"slices"
)

// BasicBlock is a maximal straight-line run of instructions inside one
// function. Calls holds the resolved targets of direct call instructions
// in the block; Succs holds the start addresses of successor blocks
// (empty for blocks ending in a return or an unresolvable jump).
type BasicBlock struct {
	Addr  uint64   `json:"addr"`
	Size  uint64   `json:"size"`
	Calls []uint64 `json:"calls,omitempty"`
	Succs []uint64 `json:"succs,omitempty"`
}

// CFG is the control-flow graph recovered for a single function. Name is
// the symbol name at the entry address when one is known, else a
// sub_<hex> placeholder. A CFG with no blocks is a degenerate recovery:
// the entry pointed at data, at an unmapped address, or at bytes the
// decoder could not disassemble.
type CFG struct {
	Name   string       `json:"name"`
	Entry  uint64       `json:"entry"`
	Blocks []BasicBlock `json:"blocks"`
}

// Degenerate reports whether the recovery found no code at the entry.
func (c *CFG) Degenerate() bool {
	return len(c.Blocks) == 0
}

// CallTargets returns the distinct addresses called from anywhere in the
// CFG, in ascending order.
func (c *CFG) CallTargets() []uint64 {
	seen := make(map[uint64]struct{})
	for _, b := range c.Blocks {
		for _, t := range b.Calls {
			seen[t] = struct{}{}
		}
	}

	targets := make([]uint64, 0, len(seen))
	for t := range seen {
		targets = append(targets, t)
	}
	slices.SortFunc(targets, func(a, b uint64) int {
		return cmp.Compare(a, b)
	})
	return targets
}
