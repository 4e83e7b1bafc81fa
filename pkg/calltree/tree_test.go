package calltree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symtrace/symtrace/pkg/symtab"
	"github.com/symtrace/symtrace/pkg/typenorm"
)

func fn(name string, params ...*typenorm.Type) *symtab.Symbol {
	return &symtab.Symbol{
		Sig:    symtab.FunctionSignature{Name: name, Params: params},
		Module: "app.so",
	}
}

// stack builds a frame sequence innermost first from leaf to root.
func stack(syms ...*symtab.Symbol) []symtab.Frame {
	frames := make([]symtab.Frame, len(syms))
	for i, s := range syms {
		frames[i] = symtab.Frame{Sym: s}
	}
	return frames
}

func Test_Merge(t *testing.T) {
	main := fn("main")
	bar := fn("bar")
	buz := fn("buz")

	tr := New()
	tr.Merge(stack(buz, bar, main), 1)
	tr.Merge(stack(buz, bar, main), 1)
	tr.Merge(stack(bar, main), 3)

	require.Equal(t, int64(5), tr.Total())

	root := tr.Snapshot()
	require.Len(t, root.Children, 1)
	m := root.Children[0]
	assert.Equal(t, "main()", m.Symbol.Name())
	assert.Equal(t, int64(5), m.Total)
	assert.Equal(t, int64(0), m.Self)

	require.Len(t, m.Children, 1)
	b := m.Children[0]
	assert.Equal(t, int64(5), b.Total)
	assert.Equal(t, int64(3), b.Self)

	require.Len(t, b.Children, 1)
	z := b.Children[0]
	assert.Equal(t, int64(2), z.Total)
	assert.Equal(t, int64(2), z.Self)
}

func Test_Merge_OrderIndependent(t *testing.T) {
	main := fn("main")
	a := fn("a")
	b := fn("b")
	c := fn("c")

	samples := []struct {
		frames []symtab.Frame
		weight int64
	}{
		{stack(a, main), 1},
		{stack(b, a, main), 2},
		{stack(c, a, main), 3},
		{stack(b, main), 4},
		{stack(main), 5},
		{stack(c, a, main), 6},
	}

	build := func(order []int) *Node {
		tr := New()
		for _, i := range order {
			tr.Merge(samples[i].frames, samples[i].weight)
		}
		return tr.Snapshot()
	}

	base := build([]int{0, 1, 2, 3, 4, 5})
	for trial := 0; trial < 10; trial++ {
		order := rand.Perm(len(samples))
		require.Equal(t, base, build(order), "order %v", order)
	}
}

func Test_Merge_SymbolIdentity(t *testing.T) {
	// Two symbol instances at different addresses aggregate as one
	// node when signature and module agree.
	main := fn("main")
	siteA := &symtab.Symbol{
		Sig:    symtab.FunctionSignature{Name: "inlined", Params: []*typenorm.Type{typenorm.Named("int")}},
		Module: "app.so",
		Ranges: []symtab.AddrRange{{Lo: 0x1000, Hi: 0x1100}},
	}
	siteB := &symtab.Symbol{
		Sig:    symtab.FunctionSignature{Name: "inlined", Params: []*typenorm.Type{typenorm.Named("int")}},
		Module: "app.so",
		Ranges: []symtab.AddrRange{{Lo: 0x7000, Hi: 0x7080}},
	}

	tr := New()
	tr.Merge(stack(siteA, main), 1)
	tr.Merge(stack(siteB, main), 1)

	root := tr.Snapshot()
	require.Len(t, root.Children, 1)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, int64(2), root.Children[0].Children[0].Total)

	// A different overload is a different node.
	other := &symtab.Symbol{
		Sig:    symtab.FunctionSignature{Name: "inlined", Params: []*typenorm.Type{typenorm.Named("double")}},
		Module: "app.so",
	}
	tr.Merge(stack(other, main), 1)
	assert.Len(t, tr.Snapshot().Children[0].Children, 2)
}

func Test_Merge_ZeroWeight(t *testing.T) {
	tr := New()
	tr.Merge(stack(fn("main")), 0)
	tr.Merge(nil, 7)
	assert.Equal(t, int64(0), tr.Total())
	assert.Empty(t, tr.Snapshot().Children)
}

func Test_Merge_NilSymbolFrames(t *testing.T) {
	main := fn("main")
	leaf := fn("leaf")

	tr := New()
	tr.Merge([]symtab.Frame{{Sym: leaf}, {Sym: nil}, {Sym: main}}, 2)
	tr.Merge([]symtab.Frame{{Sym: nil}, {Sym: nil}}, 3)

	require.Equal(t, int64(2), tr.Total())
	root := tr.Snapshot()
	require.Len(t, root.Children, 1)
	m := root.Children[0]
	assert.Equal(t, "main()", m.Symbol.Name())
	require.Len(t, m.Children, 1)
	assert.Equal(t, int64(2), m.Children[0].Self)
}

func Test_String(t *testing.T) {
	tr := New()
	tr.Merge(stack(fn("buz"), fn("bar")), 2)
	out := tr.String()
	assert.Contains(t, out, "bar(): self 0 total 2")
	assert.Contains(t, out, "buz(): self 2 total 2")
}

func Test_Profile(t *testing.T) {
	main := fn("main")
	a := fn("a")
	b := fn("b")

	tr := New()
	tr.Merge(stack(a, main), 2)
	tr.Merge(stack(b, main), 3)
	tr.Merge(stack(main), 1)

	p := tr.Profile("samples", "count")
	require.NoError(t, p.CheckValid())
	require.Len(t, p.Sample, 3)

	var total int64
	for _, s := range p.Sample {
		total += s.Value[0]
	}
	assert.Equal(t, int64(6), total)

	// One location and function per distinct symbol.
	assert.Len(t, p.Location, 3)
	assert.Len(t, p.Function, 3)
}
