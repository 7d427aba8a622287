package richiamo

import (
	"golang.org/x/arch/x86/x86asm"
)

// amd64CondJumps holds the conditional branch opcodes. x86asm gives every
// conditional jump its own Op value, so Op == JMP is always unconditional.
var amd64CondJumps = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JCXZ: true, x86asm.JE: true, x86asm.JECXZ: true, x86asm.JG: true,
	x86asm.JGE: true, x86asm.JL: true, x86asm.JLE: true, x86asm.JNE: true,
	x86asm.JNO: true, x86asm.JNP: true, x86asm.JNS: true, x86asm.JO: true,
	x86asm.JP: true, x86asm.JRCXZ: true, x86asm.JS: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

// isENDBR reports whether code starts with ENDBR64 (f3 0f 1e fa) or
// ENDBR32 (f3 0f 1e fb), which golang.org/x/arch/x86/x86asm does not
// recognise. These CET instructions appear at function entries on
// binaries compiled with -fcf-protection and are transparent to control
// flow.
func isENDBR(code []byte) bool {
	return len(code) >= 4 &&
		code[0] == 0xf3 && code[1] == 0x0f &&
		code[2] == 0x1e && (code[3] == 0xfa || code[3] == 0xfb)
}

// directTargetAMD64 resolves the target of a direct CALL or JMP. Only
// PC-relative operands are resolvable statically; register-indirect and
// memory-indirect forms return false.
func directTargetAMD64(inst x86asm.Inst, addr uint64) (uint64, bool) {
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return addr + uint64(inst.Len) + uint64(int64(rel)), true
}

// recoverBlocksAMD64 splits the function rooted at entry into basic
// blocks: a worklist traversal decodes every reachable instruction once,
// collecting branch targets and join points as block leaders, then the
// decoded run is cut into blocks at leader and terminator boundaries.
// The function extent is bounded by the symbol size when the table knows
// it, else by the end of .text; branch targets outside the extent are
// not followed. An entry outside .text, or one whose first bytes do not
// decode, yields no blocks.
func recoverBlocksAMD64(code []byte, base, entry uint64, st SymbolTable) []BasicBlock {
	textEnd := base + uint64(len(code))
	if entry < base || entry >= textEnd {
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

		for addr < limit {
			if _, ok := sc.insns[addr]; ok {
				// Joined a path scanned earlier; the join point starts
				// its own block.
				sc.leaders[addr] = true
				break
			}

			if addr+4 <= limit && isENDBR(code[addr-base:]) {
				sc.insns[addr] = insn{len: 4}
				addr += 4
				continue
			}

			inst, err := x86asm.Decode(code[addr-base:], 64)
			if err != nil || inst.Op == 0 {
				// Truncated input and lone prefix bytes decode to an
				// Op(0) pseudo-instruction rather than an error.
				break
			}
			in := insn{len: uint64(inst.Len)}
			next := addr + in.len

			switch {
			case inst.Op == x86asm.CALL:
				if target, ok := directTargetAMD64(inst, addr); ok {
					in.call, in.hasCall = target, true
					if sym, ok := st[target]; ok && !sym.Returns {
						in.term = true
					}
				}

			case inst.Op == x86asm.RET || inst.Op == x86asm.UD2 || inst.Op == x86asm.INT:
				in.term = true

			case inst.Op == x86asm.JMP:
				in.term = true
				if target, ok := directTargetAMD64(inst, addr); ok && inExtent(target) {
					in.succs = append(in.succs, target)
					work = follow(target, work)
				}

			case amd64CondJumps[inst.Op]:
				in.term = true
				if target, ok := directTargetAMD64(inst, addr); ok && inExtent(target) {
					in.succs = append(in.succs, target)
					work = follow(target, work)
				}
				if next < limit {
					in.succs = append(in.succs, next)
					work = follow(next, work)
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
