package richiamo

import (
	"encoding/binary"
	"testing"
)

// encodeCallRel32 writes an AMD64 CALL rel32 instruction at code[offset:].
func encodeCallRel32(code []byte, offset int, baseAddr, target uint64) {
	source := baseAddr + uint64(offset)
	rel := int32(int64(target) - int64(source+5))
	code[offset] = 0xE8
	binary.LittleEndian.PutUint32(code[offset+1:], uint32(rel))
}

// encodeJmpRel32 writes an AMD64 JMP rel32 instruction at code[offset:].
func encodeJmpRel32(code []byte, offset int, baseAddr, target uint64) {
	source := baseAddr + uint64(offset)
	rel := int32(int64(target) - int64(source+5))
	code[offset] = 0xE9
	binary.LittleEndian.PutUint32(code[offset+1:], uint32(rel))
}

func TestRecoverBlocksAMD64StraightLine(t *testing.T) {
	// push rbp; mov rbp, rsp; ret
	code := []byte{0x55, 0x48, 0x89, 0xE5, 0xC3}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	b := blocks[0]
	if b.Addr != 0x1000 || b.Size != 5 {
		t.Errorf("expected block 0x1000 size 5, got 0x%x size %d", b.Addr, b.Size)
	}
	if len(b.Succs) != 0 || len(b.Calls) != 0 {
		t.Errorf("expected no successors or calls, got %v / %v", b.Succs, b.Calls)
	}
}

func TestRecoverBlocksAMD64ConditionalSplit(t *testing.T) {
	// 0x1000: je +3        (target 0x1005)
	// 0x1002: nop; nop; ret
	// 0x1005: ret
	code := []byte{0x74, 0x03, 0x90, 0x90, 0xC3, 0xC3}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(blocks), blocks)
	}

	head := blocks[0]
	if head.Addr != 0x1000 || head.Size != 2 {
		t.Errorf("expected head block 0x1000 size 2, got 0x%x size %d", head.Addr, head.Size)
	}
	wantSuccs := map[uint64]bool{0x1002: true, 0x1005: true}
	if len(head.Succs) != 2 || !wantSuccs[head.Succs[0]] || !wantSuccs[head.Succs[1]] {
		t.Errorf("expected successors {0x1002, 0x1005}, got %v", head.Succs)
	}

	if blocks[1].Addr != 0x1002 || blocks[1].Size != 3 {
		t.Errorf("expected block 0x1002 size 3, got 0x%x size %d", blocks[1].Addr, blocks[1].Size)
	}
	if blocks[2].Addr != 0x1005 || blocks[2].Size != 1 {
		t.Errorf("expected block 0x1005 size 1, got 0x%x size %d", blocks[2].Addr, blocks[2].Size)
	}
}

func TestRecoverBlocksAMD64UnconditionalJump(t *testing.T) {
	// 0x1000: jmp 0x1008
	// 0x1005: ret            (unreachable, not discovered)
	// 0x1006: nop; nop
	// 0x1008: ret
	code := make([]byte, 9)
	encodeJmpRel32(code, 0, 0x1000, 0x1008)
	code[5] = 0xC3
	code[6], code[7] = 0x90, 0x90
	code[8] = 0xC3

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(blocks), blocks)
	}
	if blocks[0].Addr != 0x1000 || len(blocks[0].Succs) != 1 || blocks[0].Succs[0] != 0x1008 {
		t.Errorf("expected jump block with successor 0x1008, got %+v", blocks[0])
	}
	if blocks[1].Addr != 0x1008 {
		t.Errorf("expected target block at 0x1008, got 0x%x", blocks[1].Addr)
	}
}

func TestRecoverBlocksAMD64CallTarget(t *testing.T) {
	// 0x1000: call 0x2000; ret
	code := make([]byte, 6)
	encodeCallRel32(code, 0, 0x1000, 0x2000)
	code[5] = 0xC3

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if len(blocks[0].Calls) != 1 || blocks[0].Calls[0] != 0x2000 {
		t.Errorf("expected call target 0x2000, got %v", blocks[0].Calls)
	}
	if blocks[0].Size != 6 {
		t.Errorf("expected call to fall through to ret, size 6, got %d", blocks[0].Size)
	}
}

func TestRecoverBlocksAMD64NonReturningCallee(t *testing.T) {
	// A call to a known non-returning symbol ends the block; the ret
	// behind it is never reached.
	code := make([]byte, 6)
	encodeCallRel32(code, 0, 0x1000, 0x2000)
	code[5] = 0xC3

	st := SymbolTable{0x2000: {Addr: 0x2000, Name: "exit", Returns: false}}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, st)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Size != 5 {
		t.Errorf("expected block to end at the call, size 5, got %d", blocks[0].Size)
	}
}

func TestRecoverBlocksAMD64IndirectCallIgnored(t *testing.T) {
	// call rax (FF D0) has no statically resolvable target; ret.
	code := []byte{0xFF, 0xD0, 0xC3}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if len(blocks[0].Calls) != 0 {
		t.Errorf("expected no resolved calls, got %v", blocks[0].Calls)
	}
}

func TestRecoverBlocksAMD64ENDBRSkipped(t *testing.T) {
	// endbr64; ret
	code := []byte{0xF3, 0x0F, 0x1E, 0xFA, 0xC3}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if blocks[0].Size != 5 {
		t.Errorf("expected ENDBR64 to count into the block, size 5, got %d", blocks[0].Size)
	}
}

func TestRecoverBlocksAMD64SymbolSizeBound(t *testing.T) {
	// The symbol size caps the extent: the jump past it is not followed.
	// 0x1000: jmp 0x1010 (outside the 8-byte extent)
	code := make([]byte, 0x20)
	for i := range code {
		code[i] = 0x90
	}
	encodeJmpRel32(code, 0, 0x1000, 0x1010)

	st := SymbolTable{0x1000: {Addr: 0x1000, Name: "tiny", Size: 8, Returns: true}}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, st)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(blocks), blocks)
	}
	if len(blocks[0].Succs) != 0 {
		t.Errorf("expected out-of-extent target not followed, got %v", blocks[0].Succs)
	}
}

func TestRecoverBlocksAMD64Degenerate(t *testing.T) {
	code := []byte{0x90, 0xC3}

	// Entry below and above .text.
	if blocks := recoverBlocksAMD64(code, 0x1000, 0x500, nil); blocks != nil {
		t.Errorf("expected no blocks for entry below .text, got %+v", blocks)
	}
	if blocks := recoverBlocksAMD64(code, 0x1000, 0x5000, nil); blocks != nil {
		t.Errorf("expected no blocks for entry above .text, got %+v", blocks)
	}
}

func TestRecoverBlocksAMD64UndecodableEntry(t *testing.T) {
	// Truncated and prefix-only input does not fail x86asm.Decode; it
	// yields an Op(0) pseudo-instruction, which must not become a block.
	tests := []struct {
		name string
		code []byte
	}{
		{name: "truncated instruction", code: []byte{0xFF}},
		{name: "lone operand-size prefix", code: []byte{0x66}},
		{name: "prefix run", code: []byte{0x66, 0x66, 0x66}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := recoverBlocksAMD64(tt.code, 0x1000, 0x1000, nil)
			if len(blocks) != 0 {
				t.Errorf("expected degenerate recovery, got %+v", blocks)
			}
		})
	}
}

func TestRecoverBlocksAMD64JumpIntoMidBlock(t *testing.T) {
	// 0x1000: nop
	// 0x1001: nop
	// 0x1002: je 0x1001   (into the middle of the straight-line run)
	// 0x1004: ret
	//
	// The branch target becomes a leader, so the head block is capped at
	// 0x1001 instead of being rescanned as an overlapping block.
	code := []byte{0x90, 0x90, 0x74, 0xFD, 0xC3}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)
	if len(blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d: %+v", len(blocks), blocks)
	}

	if blocks[0].Addr != 0x1000 || blocks[0].Size != 1 {
		t.Errorf("expected head block 0x1000 size 1, got 0x%x size %d", blocks[0].Addr, blocks[0].Size)
	}
	if len(blocks[0].Succs) != 1 || blocks[0].Succs[0] != 0x1001 {
		t.Errorf("expected head block to fall through to 0x1001, got %v", blocks[0].Succs)
	}
	if blocks[1].Addr != 0x1001 || blocks[1].Size != 3 {
		t.Errorf("expected block 0x1001 size 3, got 0x%x size %d", blocks[1].Addr, blocks[1].Size)
	}
	if blocks[2].Addr != 0x1004 || blocks[2].Size != 1 {
		t.Errorf("expected block 0x1004 size 1, got 0x%x size %d", blocks[2].Addr, blocks[2].Size)
	}

	for i := 1; i < len(blocks); i++ {
		prev, cur := blocks[i-1], blocks[i]
		if prev.Addr+prev.Size > cur.Addr {
			t.Errorf("blocks overlap: 0x%x+%d runs past 0x%x", prev.Addr, prev.Size, cur.Addr)
		}
	}
}

func TestRecoverBlocksAMD64ENDBRPastExtent(t *testing.T) {
	// ENDBR64 bytes starting inside the extent but ending past it must
	// not be skipped over; the block may never grow past the symbol
	// size bound.
	code := []byte{0xF3, 0x0F, 0x1E, 0xFA, 0xC3}
	st := SymbolTable{0x1000: {Addr: 0x1000, Name: "stub", Size: 2, Returns: true}}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, st)
	for _, b := range blocks {
		if b.Addr+b.Size > 0x1002 {
			t.Errorf("block 0x%x size %d runs past the 2-byte extent", b.Addr, b.Size)
		}
	}
}

func TestRecoverBlocksAMD64LoopBackEdge(t *testing.T) {
	// 0x1000: nop
	// 0x1001: je 0x1000   (back edge into the block head: a new block)
	// 0x1003: ret
	code := []byte{0x90, 0x74, 0xFD, 0xC3}

	blocks := recoverBlocksAMD64(code, 0x1000, 0x1000, nil)

	// The back edge targets 0x1000, already a block start, so the result
	// stays at two discovered starts: 0x1000 and the fall-through 0x1003.
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(blocks), blocks)
	}
	head := blocks[0]
	found := false
	for _, s := range head.Succs {
		if s == 0x1000 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected back edge to 0x1000 recorded, got %v", head.Succs)
	}
}
