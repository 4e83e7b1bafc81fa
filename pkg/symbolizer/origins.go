package symbolizer

import "sync"

// originTable interns the display names of inlined functions once per
// session, so many sites referring to the same origin share one entry.
type originTable struct {
	mu     sync.Mutex
	names  []string
	byName map[string]uint32
}

func newOriginTable() *originTable {
	return &originTable{byName: make(map[string]uint32)}
}

// intern returns the stable index of name, assigning one on first use.
func (o *originTable) intern(name string) uint32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if id, ok := o.byName[name]; ok {
		return id
	}
	id := uint32(len(o.names))
	o.names = append(o.names, name)
	o.byName[name] = id
	return id
}

// list returns a copy of the interned names in index order.
func (o *originTable) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.names))
	copy(out, o.names)
	return out
}

// merge appends the other table's names and returns the mapping from
// their indices to this table's. When either side is empty the mapping
// degenerates to identity or nothing; no deduplication across tables
// is attempted.
func (o *originTable) merge(other []string) []uint32 {
	if len(other) == 0 {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.names) == 0 {
		o.names = append(o.names, other...)
		for i, n := range other {
			o.byName[n] = uint32(i)
		}
		mapping := make([]uint32, len(other))
		for i := range mapping {
			mapping[i] = uint32(i)
		}
		return mapping
	}
	offset := uint32(len(o.names))
	o.names = append(o.names, other...)
	mapping := make([]uint32, len(other))
	for i, n := range other {
		if _, ok := o.byName[n]; !ok {
			o.byName[n] = offset + uint32(i)
		}
		mapping[i] = offset + uint32(i)
	}
	return mapping
}
