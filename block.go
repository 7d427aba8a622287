package richiamo

import "slices"

// insn is one decoded instruction as seen by the per-arch scanners.
type insn struct {
	len     uint64
	call    uint64
	hasCall bool
	term    bool
	succs   []uint64
}

// scan holds the traversal state shared by the per-arch recoverers:
// every instruction decoded so far and the discovered block leaders
// (the entry, every followed branch target, every fall-through after a
// conditional branch, and every join point where two paths meet).
type scan struct {
	insns   map[uint64]insn
	leaders map[uint64]bool
}

func newScan(entry uint64) *scan {
	return &scan{
		insns:   make(map[uint64]insn),
		leaders: map[uint64]bool{entry: true},
	}
}

// assemble splits the decoded instructions into basic blocks. A block
// runs from a leader up to the next terminator or leader, so blocks
// never overlap: a branch into the middle of a straight-line run makes
// its target a leader, which caps the upstream block there with a
// fall-through edge.
func (s *scan) assemble() []BasicBlock {
	starts := make([]uint64, 0, len(s.leaders))
	for leader := range s.leaders {
		if _, ok := s.insns[leader]; ok {
			starts = append(starts, leader)
		}
	}
	slices.Sort(starts)

	blocks := make([]BasicBlock, 0, len(starts))
	for _, start := range starts {
		blk := BasicBlock{Addr: start}
		addr := start
		for {
			in, ok := s.insns[addr]
			if !ok {
				break
			}
			if addr != start && s.leaders[addr] {
				blk.Succs = append(blk.Succs, addr)
				break
			}
			if in.hasCall {
				blk.Calls = append(blk.Calls, in.call)
			}
			addr += in.len
			if in.term {
				blk.Succs = append(blk.Succs, in.succs...)
				break
			}
		}
		if addr == start {
			continue
		}
		blk.Size = addr - start
		blocks = append(blocks, blk)
	}
	return blocks
}
