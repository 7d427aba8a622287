package richiamo

import (
	"github.com/rs/zerolog"
)

// Pipeline drives recovery end to end: entry selection, batch CFG
// recovery, degenerate filtering, and call graph assembly. The fields are
// fixed for the lifetime of a run.
type Pipeline struct {
	Backend Backend

	// Log receives the degenerate-CFG diagnostics. Defaults to a no-op
	// logger when built with NewPipeline.
	Log zerolog.Logger

	// Progress, when set, is handed to the backend and invoked once per
	// entry as recovery reaches it.
	Progress ProgressFunc
}

// NewPipeline returns a Pipeline over b that logs nowhere.
func NewPipeline(b Backend) *Pipeline {
	return &Pipeline{Backend: b, Log: zerolog.Nop()}
}

// Recover runs batch recovery over the entry set. The contract is
// all-or-nothing: the first entry the backend fails on aborts the batch
// and nothing recovered before it is returned.
func (p *Pipeline) Recover(entries []uint64, st SymbolTable) ([]*CFG, error) {
	cfgs, err := p.Backend.RecoverAll(entries, st, p.Progress)
	if err != nil {
		return nil, err
	}
	return cfgs, nil
}

// FilterDegenerate drops every CFG that recovered no code, preserving the
// order of the rest. Each dropped CFG is reported through the pipeline
// logger. Degenerate recoveries happen when an entry points at data, at
// an unreachable address, or at bytes the backend cannot disassemble;
// keeping them would pollute the call graph with nodes that can carry no
// call edges.
func (p *Pipeline) FilterDegenerate(cfgs []*CFG) []*CFG {
	kept := make([]*CFG, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Degenerate() {
			p.Log.Warn().
				Str("function", cfg.Name).
				Msg("dropping CFG: no code recovered")
			continue
		}
		kept = append(kept, cfg)
	}
	return kept
}

// Run executes the whole pipeline and returns the assembled call graph
// along with the number of CFGs that survived the filter.
func (p *Pipeline) Run(mode EntryMode, subset []uint64, st SymbolTable) (*CallGraph, int, error) {
	entries := SelectEntries(mode, st, p.Backend, subset)

	cfgs, err := p.Recover(entries, st)
	if err != nil {
		return nil, 0, err
	}

	kept := p.FilterDegenerate(cfgs)
	return BuildCallGraph(kept), len(kept), nil
}
