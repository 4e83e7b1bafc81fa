package calltree

import (
	"github.com/google/pprof/profile"
)

// Profile converts a snapshot of the tree into a pprof profile with a
// single sample type: one sample per node with own-time weight, the
// location stack running leaf first.
func (t *Tree) Profile(sampleType, unit string) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: sampleType, Unit: unit}},
	}

	locs := make(map[uint64]*profile.Location)
	loc := func(n *Node) *profile.Location {
		key := n.Symbol.Key()
		if l, ok := locs[key]; ok {
			return l
		}
		fn := &profile.Function{
			ID:         uint64(len(p.Function) + 1),
			Name:       n.Symbol.Name(),
			SystemName: n.Symbol.Mangled,
		}
		p.Function = append(p.Function, fn)
		l := &profile.Location{
			ID:   uint64(len(p.Location) + 1),
			Line: []profile.Line{{Function: fn}},
		}
		p.Location = append(p.Location, l)
		locs[key] = l
		return l
	}

	var walk func(n *Node, stack []*profile.Location)
	walk = func(n *Node, stack []*profile.Location) {
		stack = append(stack, loc(n))
		if n.Self > 0 {
			// pprof wants the leaf first.
			s := make([]*profile.Location, len(stack))
			for i := range stack {
				s[i] = stack[len(stack)-1-i]
			}
			p.Sample = append(p.Sample, &profile.Sample{
				Location: s,
				Value:    []int64{n.Self},
			})
		}
		for _, c := range n.Children {
			walk(c, stack)
		}
	}
	for _, c := range t.Snapshot().Children {
		walk(c, nil)
	}
	return p
}
