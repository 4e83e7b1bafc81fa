// Package inline expands a sampled instruction address into the
// ordered chain of logical frames the compiler collapsed through
// inlining. The site records are produced by format-specific adapters
// in the debug-info reader; the resolver is format-agnostic.
package inline

import (
	"sync"

	"github.com/symtrace/symtrace/pkg/symtab"
)

// Site records that one function's machine code was spliced into
// another's at a given address range, eliminating a separate call
// frame. Sites nest: the parent of a site may itself be a function
// that only exists inlined.
type Site struct {
	// Parent is the symbol whose machine code contains the splice.
	Parent *symtab.Symbol
	// Range is the address window within the parent covered by the
	// inlined body.
	Range symtab.AddrRange
	// Callee is the function that was inlined.
	Callee *symtab.Symbol
	// CallLine is the call-site line token where the parent resumes.
	CallLine uint32

	seq int
}

// Table indexes inline sites by parent symbol. Populated once during
// ingestion, read-only afterwards.
type Table struct {
	mu    sync.RWMutex
	sites map[uint64][]*Site
	count int
}

// NewTable returns an empty inline-site table.
func NewTable() *Table {
	return &Table{sites: make(map[uint64][]*Site)}
}

// Add registers a site under its parent symbol. Registration order is
// preserved: when malformed metadata makes several ranges claim the
// same address, the most recently registered record wins, which for
// well-nested adapters is the innermost one.
func (t *Table) Add(s *Site) {
	if s == nil || s.Parent == nil || s.Callee == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s.seq = t.count
	t.count++
	t.sites[s.Parent.ID] = append(t.sites[s.Parent.ID], s)
}

// Count reports the total number of registered sites. No chain can
// expand through more records than this.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// covering returns the site of the given parent whose range contains
// addr, preferring the most recently registered covering record.
func (t *Table) covering(parentID uint64, addr uint64) *Site {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var best *Site
	for _, s := range t.sites[parentID] {
		if !s.Range.Contains(addr) {
			continue
		}
		if best == nil || s.seq > best.seq {
			best = s
		}
	}
	return best
}
