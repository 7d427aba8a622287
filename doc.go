// Package richiamo recovers the static structure of compiled binaries:
// per-function control-flow graphs rooted at known or inferred entry
// points, and the call graph linking those functions.
//
// # Symbol Tables
//
// Recovery is driven by a [SymbolTable], an address-keyed map of named,
// sized entries. Tables are built either from a line-oriented text file
// with [LoadSymbolFile] (one "<hex address> <name> <size> <True|False>"
// entry per line) or extracted from the binary itself through the
// backend's symbol reader.
//
// # CFG Recovery
//
// A [Backend] provides the recovery primitives: reporting the binary's
// entry point, extracting symbols, and recovering one [CFG] per entry
// address. The native ELF backend ([OpenELF]) decodes AMD64 and ARM64
// machine code with golang.org/x/arch and splits it into basic blocks at
// branch boundaries. A recovery that finds no code at an entry yields a
// degenerate, zero-block CFG; [Pipeline.FilterDegenerate] drops those
// before graph assembly.
//
// # Call Graphs
//
// [BuildCallGraph] assembles the recovered CFGs into a directed graph
// whose nodes are functions and whose edges are resolved call targets.
// Recursive and mutually recursive call chains render as cycles. The
// graph serializes to Graphviz DOT with [CallGraph.WriteDOT], or to PNG
// and PDF through [Export], which delegates layout to the dot tool.
//
// # Failure Model
//
// Batch recovery is all-or-nothing: the first entry the backend fails on
// aborts the whole run and no partial results are kept. The only
// tolerated degradation is the degenerate-CFG filter above.
package richiamo
