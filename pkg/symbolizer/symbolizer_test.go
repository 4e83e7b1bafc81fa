package symbolizer

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symtrace/symtrace/pkg/overload"
	"github.com/symtrace/symtrace/pkg/symtab"
	"github.com/symtrace/symtrace/pkg/typenorm"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(Config{}, nil, prometheus.NewRegistry())
	require.NoError(t, err)
	return s
}

func intParam(id uint64) TypeRef {
	return TypeRef{ID: id, Raw: typenorm.RawNamed{Name: "int", SizeBytes: 4}}
}

func Test_AddSymbols_BadRecordDegrades(t *testing.T) {
	s := newTestSession(t)
	syms, err := s.AddSymbols([]SymbolRecord{
		{Module: "app.dll", Name: "test1", Params: []TypeRef{{ID: 1, Raw: typenorm.RawPointer{Elem: typenorm.RawNamed{Name: "int", SizeBytes: 4}}}}},
		{Module: "app.dll"}, // no name at all
		{Module: "app.dll", Name: "test2", Params: []TypeRef{intParam(2), {ID: 3, Raw: typenorm.RawNamed{Name: "unsigned int", SizeBytes: 4}}}},
	})
	require.Error(t, err)
	require.Len(t, syms, 2)
	assert.Equal(t, "test1(int*)", syms[0].Name())
	assert.Equal(t, "test2(int, unsigned int)", syms[1].Name())
}

func Test_ResolveOverload(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddSymbols([]SymbolRecord{
		{Module: "test_dll.dll", Name: "A::meth1", Params: []TypeRef{intParam(1)}},
		{Module: "test_dll.dll", Name: "A::meth1", Params: []TypeRef{{ID: 2, Raw: typenorm.RawNamed{Name: "double", SizeBytes: 8}}}},
		{
			Module: "test_dll.dll", Name: "A::meth1",
			Params: []TypeRef{
				{ID: 3, Raw: typenorm.RawNamed{Name: "short", SizeBytes: 2}},
				{ID: 4, Raw: typenorm.RawNamed{Name: "signed char", SizeBytes: 1}},
			},
		},
	})
	require.NoError(t, err)
	s.Freeze()

	got, err := s.ResolveOverload("A::meth1", []*typenorm.Type{typenorm.Named("double")})
	require.NoError(t, err)
	assert.Equal(t, "A::meth1(double)", got.Name())

	_, err = s.ResolveOverload("A::meth1", []*typenorm.Type{typenorm.Named("float")})
	assert.ErrorIs(t, err, overload.ErrNotFound)
}

func Test_ResolveOverload_AmbiguousConflict(t *testing.T) {
	s := newTestSession(t)
	// Identical signatures differing only in access/static qualifiers
	// are invalid input from the debug-info layer.
	_, err := s.AddSymbols([]SymbolRecord{
		{
			Module: "test_dll.dll", Name: "A::meth2", Params: []TypeRef{intParam(1)},
			Quals: symtab.MethodQualifiers{Access: symtab.AccessProtected},
		},
		{
			Module: "test_dll.dll", Name: "A::meth2", Params: []TypeRef{intParam(1)},
			Quals: symtab.MethodQualifiers{Static: true, Access: symtab.AccessPublic},
		},
	})
	require.NoError(t, err)
	s.Freeze()

	_, err = s.ResolveOverload("A::meth2", []*typenorm.Type{typenorm.Named("int")})
	assert.ErrorIs(t, err, overload.ErrAmbiguous)
}

// ingestInlineChain registers A with a machine-code range and the
// nested B, C, D inline sites inside it, returning the symbols.
func ingestInlineChain(t *testing.T, s *Session) (a, b, c, d *symtab.Symbol) {
	t.Helper()
	var err error
	a, err = s.AddSymbol(SymbolRecord{
		Module: "app.so", Name: "A",
		Ranges: []symtab.AddrRange{{Lo: 0x1000, Hi: 0x2000}},
	})
	require.NoError(t, err)
	b, err = s.AddSymbol(SymbolRecord{Module: "app.so", Name: "B"})
	require.NoError(t, err)
	c, err = s.AddSymbol(SymbolRecord{Module: "app.so", Name: "C"})
	require.NoError(t, err)
	d, err = s.AddSymbol(SymbolRecord{Module: "app.so", Name: "D"})
	require.NoError(t, err)

	s.AddInline(a, b, symtab.AddrRange{Lo: 0x1100, Hi: 0x1300}, 11)
	s.AddInline(b, c, symtab.AddrRange{Lo: 0x1140, Hi: 0x1280}, 22)
	s.AddInline(c, d, symtab.AddrRange{Lo: 0x1150, Hi: 0x1200}, 33)
	s.Freeze()
	return a, b, c, d
}

func Test_Symbolize_InlineChain(t *testing.T) {
	s := newTestSession(t)
	ingestInlineChain(t, s)

	frames := s.Symbolize(0x1160)
	require.Len(t, frames, 4)
	assert.Equal(t, "D()", frames[0].Sym.Name())
	assert.Equal(t, "C()", frames[1].Sym.Name())
	assert.Equal(t, "B()", frames[2].Sym.Name())
	assert.Equal(t, "A()", frames[3].Sym.Name())
}

func Test_Symbolize_UnknownAddress(t *testing.T) {
	s := newTestSession(t)
	ingestInlineChain(t, s)

	frames := s.Symbolize(0x9000)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Sym.Synthetic)
	assert.Equal(t, "unknown!0x9000", frames[0].Sym.Name())
}

func Test_Symbolize_CycleTruncates(t *testing.T) {
	s := newTestSession(t)
	a, err := s.AddSymbol(SymbolRecord{
		Module: "app.so", Name: "A",
		Ranges: []symtab.AddrRange{{Lo: 0x1000, Hi: 0x2000}},
	})
	require.NoError(t, err)
	d, err := s.AddSymbol(SymbolRecord{Module: "app.so", Name: "D"})
	require.NoError(t, err)
	s.AddInline(a, d, symtab.AddrRange{Lo: 0x1000, Hi: 0x2000}, 0)
	s.AddInline(d, d, symtab.AddrRange{Lo: 0x1000, Hi: 0x2000}, 0)
	s.Freeze()

	frames := s.Symbolize(0x1500)
	require.NotEmpty(t, frames)
	assert.True(t, frames[0].Truncated)
	assert.Equal(t, "A()", frames[len(frames)-1].Sym.Name())
}

func Test_MergeStacks(t *testing.T) {
	s := newTestSession(t)
	ingestInlineChain(t, s)

	samples := make([]StackSample, 0, 64)
	for i := 0; i < 32; i++ {
		// Inside D's window: expands to D, C, B, A.
		samples = append(samples, StackSample{Addrs: []uint64{0x1160}, Weight: 1})
		// Inside A only.
		samples = append(samples, StackSample{Addrs: []uint64{0x1800}, Weight: 2})
	}
	require.NoError(t, s.MergeStacks(context.Background(), samples))

	root := s.Snapshot()
	require.Equal(t, int64(32*3), root.Total)
	require.Len(t, root.Children, 1)

	a := root.Children[0]
	assert.Equal(t, "A()", a.Symbol.Name())
	assert.Equal(t, int64(96), a.Total)
	assert.Equal(t, int64(64), a.Self)

	require.Len(t, a.Children, 1)
	b := a.Children[0]
	assert.Equal(t, "B()", b.Symbol.Name())
	assert.Equal(t, int64(32), b.Total)

	d := b.Children[0].Children[0]
	assert.Equal(t, "D()", d.Symbol.Name())
	assert.Equal(t, int64(32), d.Self)
}

func Test_MergeStacks_MultiFrameStack(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddSymbol(SymbolRecord{
		Module: "app.so", Name: "handler",
		Ranges: []symtab.AddrRange{{Lo: 0x1000, Hi: 0x2000}},
	})
	require.NoError(t, err)
	_, err = s.AddSymbol(SymbolRecord{
		Module: "app.so", Name: "main",
		Ranges: []symtab.AddrRange{{Lo: 0x4000, Hi: 0x5000}},
	})
	require.NoError(t, err)
	s.Freeze()

	// Captured stack, innermost first: handler called from main.
	require.NoError(t, s.MergeStacks(context.Background(), []StackSample{
		{Addrs: []uint64{0x1500, 0x4200}, Weight: 5},
	}))

	root := s.Snapshot()
	require.Len(t, root.Children, 1)
	m := root.Children[0]
	assert.Equal(t, "main()", m.Symbol.Name())
	require.Len(t, m.Children, 1)
	assert.Equal(t, "handler()", m.Children[0].Symbol.Name())
	assert.Equal(t, int64(5), m.Children[0].Self)
}

func Test_InlineOrigins(t *testing.T) {
	s := newTestSession(t)
	a, b, _, _ := ingestInlineChain(t, s)

	origins := s.InlineOrigins()
	assert.Equal(t, []string{"B()", "C()", "D()"}, origins)

	// Re-registering a site for the same callee does not grow the
	// table.
	s.AddInline(a, b, symtab.AddrRange{Lo: 0x1400, Hi: 0x1500}, 44)
	assert.Len(t, s.InlineOrigins(), 3)

	mapping := s.MergeInlineOrigins([]string{"E()", "F()"})
	assert.Equal(t, []uint32{3, 4}, mapping)
	assert.Len(t, s.InlineOrigins(), 5)
}

func Test_Config_Validate(t *testing.T) {
	cfg := Config{MaxInlineDepth: -1}
	_, err := NewSession(cfg, nil, nil)
	require.Error(t, err)
}

func Test_SessionIDs(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	assert.NotEqual(t, a.ID(), b.ID())
}
