package richiamo

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
)

// Arch selects the instruction decoder.
type Arch string

// Supported architectures.
const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// ELFBinary is the native Backend over an ELF executable. It keeps the
// .text bytes and the symbol table in memory; the file handle is released
// before OpenELF returns.
type ELFBinary struct {
	path     string
	arch     Arch
	entry    uint64
	text     []byte
	textAddr uint64
	symbols  SymbolTable
}

// OpenELF parses the ELF executable at path and prepares it for CFG
// recovery. The architecture is inferred from the ELF header; anything
// other than x86-64 and AArch64 is rejected, as is a binary without a
// .text section.
func OpenELF(path string) (*ELFBinary, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var arch Arch
	switch f.Machine {
	case elf.EM_X86_64:
		arch = ArchAMD64
	case elf.EM_AARCH64:
		arch = ArchARM64
	default:
		return nil, fmt.Errorf("unsupported ELF machine: %s", f.Machine)
	}

	textSec := f.Section(".text")
	if textSec == nil {
		return nil, fmt.Errorf("%s: no .text section found", path)
	}
	code, err := textSec.Data()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read .text section: %w", err)
	}

	b := &ELFBinary{
		path:     path,
		arch:     arch,
		entry:    f.Entry,
		text:     code,
		textAddr: textSec.Addr,
	}

	b.symbols, err = functionSymbols(f, textSec)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// functionSymbols collects the FUNC symbols whose address lies inside the
// .text section. A stripped binary yields an empty table, not an error.
// ELF carries no returns annotation, so Returns defaults to true.
func functionSymbols(f *elf.File, textSec *elf.Section) (SymbolTable, error) {
	st := make(SymbolTable)

	syms, err := f.Symbols()
	if errors.Is(err, elf.ErrNoSymbols) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	textEnd := textSec.Addr + textSec.Size
	for _, sym := range syms {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Name == "" {
			continue
		}
		if sym.Value < textSec.Addr || sym.Value >= textEnd {
			continue
		}
		st[sym.Value] = Symbol{
			Addr:    sym.Value,
			Name:    sym.Name,
			Size:    sym.Size,
			Returns: true,
		}
	}
	return st, nil
}

// Arch returns the binary's architecture.
func (b *ELFBinary) Arch() Arch {
	return b.arch
}

// EntryPoint returns the address from the ELF header.
func (b *ELFBinary) EntryPoint() uint64 {
	return b.entry
}

// Symbols returns the function symbols extracted at open time.
func (b *ELFBinary) Symbols() (SymbolTable, error) {
	return b.symbols, nil
}

// RecoverCFG recovers the control-flow graph rooted at entry. An entry
// outside .text, or one whose first instruction cannot be decoded, yields
// a degenerate CFG.
func (b *ELFBinary) RecoverCFG(entry uint64, st SymbolTable, progress ProgressFunc) (*CFG, error) {
	if progress != nil {
		name, size := progressInfo(st, entry)
		progress(entry, name, size)
	}

	var blocks []BasicBlock
	switch b.arch {
	case ArchAMD64:
		blocks = recoverBlocksAMD64(b.text, b.textAddr, entry, st)
	case ArchARM64:
		blocks = recoverBlocksARM64(b.text, b.textAddr, entry, st)
	default:
		return nil, fmt.Errorf("unsupported architecture: %s", b.arch)
	}

	return &CFG{Name: st.Name(entry), Entry: entry, Blocks: blocks}, nil
}

// RecoverAll recovers one CFG per entry, in the given order. The first
// failure aborts the batch.
func (b *ELFBinary) RecoverAll(entries []uint64, st SymbolTable, progress ProgressFunc) ([]*CFG, error) {
	cfgs := make([]*CFG, 0, len(entries))
	for _, entry := range entries {
		cfg, err := b.RecoverCFG(entry, st, progress)
		if err != nil {
			return nil, &RecoveryError{Entry: entry, Err: err}
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}
