package richiamo

import (
	"golang.org/x/arch/arm64/arm64asm"
)

// arm64Insn is the fixed AArch64 instruction width.
const arm64Insn = 4

// pcRelTargetARM64 resolves the PC-relative target of a branch
// instruction. arm64asm places the offset at a different argument
// position depending on the opcode (B/BL vs CBZ/TBZ), so every argument
// is inspected.
func pcRelTargetARM64(inst arm64asm.Inst, addr uint64) (uint64, bool) {
	for _, arg := range inst.Args {
		if rel, ok := arg.(arm64asm.PCRel); ok {
			return addr + uint64(int64(rel)), true
		}
	}
	return 0, false
}

// isCondBranchARM64 reports whether inst branches conditionally. The
// decoder reports B.cond as Op == B carrying a Cond argument.
func isCondBranchARM64(inst arm64asm.Inst) bool {
	switch inst.Op {
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		return true
	case arm64asm.B:
		for _, arg := range inst.Args {
			if _, ok := arg.(arm64asm.Cond); ok {
				return true
			}
		}
	}
	return false
}

// recoverBlocksARM64 is the AArch64 counterpart of recoverBlocksAMD64:
// the same scan-then-assemble traversal over fixed-width instructions,
// bounded by the symbol size when known, else by the end of .text.
func recoverBlocksARM64(code []byte, base, entry uint64, st SymbolTable) []BasicBlock {
	textEnd := base + uint64(len(code))
	if entry < base || entry+arm64Insn > textEnd {
		return nil
	}

	limit := textEnd
	if sym, ok := st[entry]; ok && sym.Size > 0 && entry+sym.Size < textEnd {
		limit = entry + sym.Size
	}
	inExtent := func(addr uint64) bool {
		return addr >= entry && addr < limit
	}

	sc := newScan(entry)
	follow := func(target uint64, work []uint64) []uint64 {
		sc.leaders[target] = true
		return append(work, target)
	}

	work := []uint64{entry}
	for len(work) > 0 {
		addr := work[0]
		work = work[1:]

		for addr+arm64Insn <= limit {
			if _, ok := sc.insns[addr]; ok {
				sc.leaders[addr] = true
				break
			}

			inst, err := arm64asm.Decode(code[addr-base : addr-base+arm64Insn])
			if err != nil {
				break
			}
			in := insn{len: arm64Insn}
			next := addr + arm64Insn

			switch {
			case inst.Op == arm64asm.BL:
				if target, ok := pcRelTargetARM64(inst, addr); ok {
					in.call, in.hasCall = target, true
					if sym, ok := st[target]; ok && !sym.Returns {
						in.term = true
					}
				}

			case inst.Op == arm64asm.RET || inst.Op == arm64asm.BR:
				in.term = true

			case isCondBranchARM64(inst):
				in.term = true
				if target, ok := pcRelTargetARM64(inst, addr); ok && inExtent(target) {
					in.succs = append(in.succs, target)
					work = follow(target, work)
				}
				if next < limit {
					in.succs = append(in.succs, next)
					work = follow(next, work)
				}

			case inst.Op == arm64asm.B:
				in.term = true
				if target, ok := pcRelTargetARM64(inst, addr); ok && inExtent(target) {
					in.succs = append(in.succs, target)
					work = follow(target, work)
				}
			}

			sc.insns[addr] = in
			addr = next
			if in.term {
				break
			}
		}
	}

	return sc.assemble()
}
