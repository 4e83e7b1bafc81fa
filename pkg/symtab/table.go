package symtab

import (
	"fmt"
	"sort"
	"sync"
)

// Table is the address-indexed symbol table populated from the
// debug-info reader's (descriptor, symbol) stream. Lookup is a binary
// search over range start addresses; entries are kept sorted on the
// fly and ranges from the same symbol may interleave with others.
//
// The table is written during ingestion and read from any number of
// resolution workers afterwards; Freeze marks the handoff.
type Table struct {
	mu      sync.RWMutex
	entries []tableEntry
	sorted  bool
	nextID  uint64
}

type tableEntry struct {
	rng AddrRange
	sym *Symbol
}

// NewTable returns an empty symbol table.
func NewTable() *Table {
	return &Table{}
}

// Add registers the symbol under all of its address ranges. Symbols
// without ranges (inlined-only) are legal and simply not reachable by
// address lookup.
func (t *Table) Add(sym *Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if sym.ID == 0 {
		t.nextID++
		sym.ID = t.nextID
	}
	for _, r := range sym.Ranges {
		if r.Hi <= r.Lo {
			continue
		}
		t.entries = append(t.entries, tableEntry{rng: r, sym: sym})
	}
	t.sorted = false
}

// Freeze sorts the range index. Lookup sorts lazily as well, Freeze
// only makes the handoff to concurrent readers explicit.
func (t *Table) Freeze() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sortLocked()
}

func (t *Table) sortLocked() {
	if t.sorted {
		return
	}
	sort.Slice(t.entries, func(i, j int) bool {
		return t.entries[i].rng.Lo < t.entries[j].rng.Lo
	})
	t.sorted = true
}

// Lookup finds the symbol whose range contains addr.
func (t *Table) Lookup(addr uint64) (*Symbol, bool) {
	t.mu.RLock()
	if !t.sorted {
		t.mu.RUnlock()
		t.mu.Lock()
		t.sortLocked()
		t.mu.Unlock()
		t.mu.RLock()
	}
	defer t.mu.RUnlock()

	idx := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].rng.Lo > addr
	})
	idx--
	if idx < 0 {
		return nil, false
	}
	if e := t.entries[idx]; e.rng.Contains(addr) {
		return e.sym, true
	}
	return nil, false
}

// Len reports the number of indexed ranges.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Unknown fabricates the synthetic placeholder symbol for an address
// that no metadata covers. Stack reconstruction continues around it.
func Unknown(module string, addr uint64) *Symbol {
	prefix := module
	if prefix == "" {
		prefix = "unknown"
	}
	return &Symbol{
		Sig:       FunctionSignature{Name: fmt.Sprintf("%s!%#x", prefix, addr)},
		Module:    module,
		Synthetic: true,
	}
}
