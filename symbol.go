package richiamo

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// Symbol is a named, sized address in the binary. Size 0 means the extent
// is unknown. Returns reports whether calls to the symbol fall through to
// the next instruction; it is false for functions like exit or abort.
type Symbol struct {
	Addr    uint64 `json:"addr"`
	Name    string `json:"name"`
	Size    uint64 `json:"size"`
	Returns bool   `json:"returns"`
}

// SymbolTable maps addresses to symbols. Storage is unordered; consumers
// that need a stable order go through Addresses.
type SymbolTable map[uint64]Symbol

// Addresses returns every symbol address in ascending order.
func (st SymbolTable) Addresses() []uint64 {
	addrs := make([]uint64, 0, len(st))
	for addr := range st {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b uint64) int {
		return cmp.Compare(a, b)
	})
	return addrs
}

// Name resolves the symbol name at addr, or a sub_<hex> placeholder when
// the table has no entry there.
func (st SymbolTable) Name(addr uint64) string {
	if sym, ok := st[addr]; ok {
		return sym.Name
	}
	return fmt.Sprintf("sub_%x", addr)
}

// FormatError reports a malformed symbol file line. The whole load fails;
// no partial table is returned.
type FormatError struct {
	Line int
	Text string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed symbol line %d: %q", e.Line, e.Text)
}

// ParseSymbols reads a line-oriented symbol listing. Blank lines and lines
// starting with '#' are skipped. Every other line must hold at least four
// whitespace-separated fields:
//
//	<hex address> <name tokens...> <size> <True|False>
//
// The name may contain internal spaces; its tokens are rejoined with
// single spaces. The address is parsed base-16 (an optional 0x prefix is
// accepted), the size base-10, and Returns is true only for the exact
// token "True". A duplicate address overwrites the earlier entry.
func ParseSymbols(r io.Reader) (SymbolTable, error) {
	st := make(SymbolTable)

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := scanner.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) < 4 {
			return nil, &FormatError{Line: lineno, Text: line}
		}

		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
		if err != nil {
			return nil, &FormatError{Line: lineno, Text: line}
		}

		size, err := strconv.ParseUint(fields[len(fields)-2], 10, 64)
		if err != nil {
			return nil, &FormatError{Line: lineno, Text: line}
		}

		st[addr] = Symbol{
			Addr:    addr,
			Name:    strings.Join(fields[1:len(fields)-2], " "),
			Size:    size,
			Returns: fields[len(fields)-1] == "True",
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol listing: %w", err)
	}

	return st, nil
}

// LoadSymbolFile parses the symbol listing at path. See ParseSymbols for
// the format.
func LoadSymbolFile(path string) (SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open symbol file: %w", err)
	}
	defer f.Close()

	st, err := ParseSymbols(f)
	if err != nil {
		return nil, err
	}
	return st, nil
}
