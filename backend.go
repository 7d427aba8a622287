package richiamo

import "fmt"

// ProgressFunc is invoked once per entry as batch recovery reaches it.
// name and size carry the resolved symbol name and size, or "unknown"
// when the symbol table has no entry at the address. The callback is
// informational only and has no effect on recovery results.
type ProgressFunc func(entry uint64, name, size string)

// Backend is the capability set a binary analysis engine must provide.
// The orchestration layer depends on nothing else, so it can run against
// the native ELF backend or a synthetic one in tests.
type Backend interface {
	// EntryPoint returns the binary's own entry address.
	EntryPoint() uint64

	// Symbols extracts a symbol table from the binary's metadata.
	Symbols() (SymbolTable, error)

	// RecoverCFG recovers the control-flow graph rooted at entry. A
	// recovery that finds no code returns a degenerate CFG, not an
	// error; errors are reserved for failures of the engine itself.
	RecoverCFG(entry uint64, st SymbolTable, progress ProgressFunc) (*CFG, error)

	// RecoverAll recovers one CFG per entry, in the given order,
	// honoring the same callback and error contract as RecoverCFG.
	RecoverAll(entries []uint64, st SymbolTable, progress ProgressFunc) ([]*CFG, error)
}

// RecoveryError wraps a backend failure on a single entry. It aborts the
// whole batch: no CFGs recovered before the failing entry are kept.
type RecoveryError struct {
	Entry uint64
	Err   error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("recovery failed at 0x%x: %v", e.Entry, e.Err)
}

func (e *RecoveryError) Unwrap() error {
	return e.Err
}

// progressInfo resolves the name and size strings handed to a
// ProgressFunc for entry.
func progressInfo(st SymbolTable, entry uint64) (name, size string) {
	sym, ok := st[entry]
	if !ok {
		return "unknown", "unknown"
	}
	return sym.Name, fmt.Sprintf("%d", sym.Size)
}
