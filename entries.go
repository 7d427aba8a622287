package richiamo

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// EntryMode selects how the set of recovery entry points is chosen.
type EntryMode int

const (
	// EntryAll recovers every symbol in the table, in ascending address
	// order, or the binary's own entry point when the table is empty.
	EntryAll EntryMode = iota

	// EntrySubset recovers an explicit list of addresses.
	EntrySubset
)

// SelectEntries computes the ordered entry set for a run. Subset
// addresses are sorted ascending; duplicates are kept, so the same
// address may be recovered more than once.
func SelectEntries(mode EntryMode, st SymbolTable, b Backend, subset []uint64) []uint64 {
	if mode == EntrySubset {
		entries := slices.Clone(subset)
		slices.Sort(entries)
		return entries
	}

	if len(st) > 0 {
		return st.Addresses()
	}
	return []uint64{b.EntryPoint()}
}

// ParseAddrList parses a comma-separated list of base-16 addresses, as
// given to the --recover flag. An optional 0x prefix is accepted.
func ParseAddrList(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	addrs := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(p, "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q: %w", p, err)
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("empty address list %q", s)
	}
	return addrs, nil
}
