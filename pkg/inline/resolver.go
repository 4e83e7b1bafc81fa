package inline

import (
	"github.com/pkg/errors"

	"github.com/symtrace/symtrace/pkg/symtab"
)

// ErrCycle reports that the inline metadata implies a function inlined
// into itself. Resolution truncates at the cycle boundary instead of
// following it.
var ErrCycle = errors.New("inline cycle detected")

// ErrDepthExceeded reports that chain expansion hit the configured
// depth bound before reaching the innermost inline record. The chain
// up to the bound is still returned.
var ErrDepthExceeded = errors.New("inline depth exceeded")

// Outcome is the terminal state of one resolution.
type Outcome uint8

const (
	// OutcomeUnresolved means no inline metadata covers the address:
	// it belongs directly to its enclosing symbol.
	OutcomeUnresolved Outcome = iota
	// OutcomeResolved means at least one inline frame was expanded.
	OutcomeResolved
	// OutcomeCycle means the chain was truncated at a cycle boundary.
	OutcomeCycle
	// OutcomeTruncated means the chain was cut by the depth bound
	// without any record repeating.
	OutcomeTruncated
)

// resolution states; one sample walks
// atOuterFrame -> atInlineSite* -> terminal.
type state uint8

const (
	atOuterFrame state = iota
	atInlineSite
)

// Resolver expands one SampledAddress per call and keeps no per-call
// state, so per-sample resolution parallelizes trivially.
type Resolver struct {
	table *Table
	// maxDepth bounds the chain length; zero leaves chains bounded by
	// cycle detection only.
	maxDepth int
}

// NewResolver returns a resolver over the given site table.
func NewResolver(table *Table, maxDepth int) *Resolver {
	return &Resolver{table: table, maxDepth: maxDepth}
}

// Resolve reconstructs the logical frames collapsed at the sampled
// address. The returned sequence is ordered innermost (deepest inlined
// call) first, the true non-inlined enclosing symbol last. On a
// detected cycle the partial chain is returned together with ErrCycle,
// on a hit depth bound with ErrDepthExceeded; either way the deepest
// frame is marked truncated.
func (r *Resolver) Resolve(sample symtab.SampledAddress) ([]symtab.Frame, Outcome, error) {
	if sample.Sym == nil {
		return nil, OutcomeUnresolved, nil
	}

	// Collected outermost first, reversed before returning.
	chain := []symtab.Frame{{Sym: sample.Sym}}
	st := atOuterFrame
	cur := sample.Sym
	visited := make(map[*Site]struct{})
	var err error

	for {
		site := r.table.covering(cur.ID, sample.Addr)
		if site == nil {
			break
		}
		if _, seen := visited[site]; seen {
			chain[len(chain)-1].Truncated = true
			err = errors.Wrap(ErrCycle, cur.Name())
			break
		}
		if r.maxDepth > 0 && len(visited) >= r.maxDepth {
			chain[len(chain)-1].Truncated = true
			err = errors.Wrap(ErrDepthExceeded, cur.Name())
			break
		}
		visited[site] = struct{}{}
		st = atInlineSite
		chain = append(chain, symtab.Frame{Sym: site.Callee, CallLine: site.CallLine})
		cur = site.Callee
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	switch {
	case errors.Is(err, ErrCycle):
		return chain, OutcomeCycle, err
	case err != nil:
		return chain, OutcomeTruncated, err
	case st == atOuterFrame:
		return chain, OutcomeUnresolved, nil
	default:
		return chain, OutcomeResolved, nil
	}
}
