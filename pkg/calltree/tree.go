// Package calltree aggregates resolved frame sequences from many
// samples into one weighted call tree.
package calltree

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xlab/treeprint"

	"github.com/symtrace/symtrace/pkg/symtab"
)

// Tree is the rooted call-tree aggregate of one reporting session.
// The root represents program entry; children represent callees. The
// tree is owned by the aggregator, grows monotonically and must see
// serialized writers; readers take snapshots once a merge round
// completes.
type Tree struct {
	mu   sync.RWMutex
	root treeNode
}

type treeNode struct {
	sym      *symtab.Symbol
	self     int64
	total    int64
	children []*treeNode
	// index keys children by symbol identity: same signature and
	// module, never the address.
	index map[uint64]*treeNode
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// Merge walks the tree from the root following the frames in reverse
// (outermost first), finds-or-creates the child keyed by symbol
// identity, adds weight to every node on the path and attributes
// weight to the leaf's own-time counter. Merging the same multiset of
// (frames, weight) pairs yields weight-identical trees regardless of
// merge order.
func (t *Tree) Merge(frames []symtab.Frame, weight int64) {
	if len(frames) == 0 || weight == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	n := &t.root
	for i := len(frames) - 1; i >= 0; i-- {
		// Frames without a symbol carry no identity to aggregate under.
		if frames[i].Sym == nil {
			continue
		}
		n = n.child(frames[i].Sym)
		n.total += weight
	}
	if n == &t.root {
		return
	}
	t.root.total += weight
	n.self += weight
}

func (n *treeNode) child(sym *symtab.Symbol) *treeNode {
	key := sym.Key()
	if c, ok := n.index[key]; ok {
		return c
	}
	c := &treeNode{sym: sym}
	if n.index == nil {
		n.index = make(map[uint64]*treeNode)
	}
	n.index[key] = c
	n.children = append(n.children, c)
	return c
}

// Total reports the cumulative weight of all merged samples.
func (t *Tree) Total() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.total
}

// Node is the read-only view of one tree node handed to the report
// renderer.
type Node struct {
	Symbol   *symtab.Symbol
	Self     int64
	Total    int64
	Children []*Node
}

// Snapshot deep-copies the tree into its read-only view. Children are
// ordered deterministically by display name so two weight-identical
// trees snapshot identically regardless of insertion order.
func (t *Tree) Snapshot() *Node {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.snapshot()
}

func (n *treeNode) snapshot() *Node {
	out := &Node{Self: n.self, Total: n.total, Symbol: n.sym}
	if len(n.children) == 0 {
		return out
	}
	out.Children = make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		out.Children = append(out.Children, c.snapshot())
	}
	sort.Slice(out.Children, func(i, j int) bool {
		a, b := out.Children[i].Symbol, out.Children[j].Symbol
		if an, bn := a.Name(), b.Name(); an != bn {
			return an < bn
		}
		return a.Key() < b.Key()
	})
	return out
}

// String renders the snapshot for debugging.
func (t *Tree) String() string {
	s := t.Snapshot()
	p := treeprint.New()
	p.SetValue(fmt.Sprintf("total %d", s.Total))
	var add func(branch treeprint.Tree, nodes []*Node)
	add = func(branch treeprint.Tree, nodes []*Node) {
		for _, n := range nodes {
			label := fmt.Sprintf("%s: self %d total %d", n.Symbol.Name(), n.Self, n.Total)
			if len(n.Children) > 0 {
				add(branch.AddBranch(label), n.Children)
			} else {
				branch.AddNode(label)
			}
		}
	}
	add(p, s.Children)
	return p.String()
}
