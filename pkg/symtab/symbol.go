package symtab

import (
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/symtrace/symtrace/pkg/typenorm"
)

// Access is the source-level access qualifier of a member function. It
// never participates in overload identity.
type Access uint8

const (
	AccessNone Access = iota
	AccessPublic
	AccessProtected
	AccessPrivate
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return ""
	}
}

// MethodQualifiers carry the non-identity attributes of a member
// function: const-ness, static-ness and access level. They are
// metadata only.
type MethodQualifiers struct {
	Const  bool
	Static bool
	Access Access
}

// FunctionSignature identifies a function for overload resolution.
// Identity is (Name, Params) only: the return type and the qualifiers
// are informational, mirroring source-language overload rules.
type FunctionSignature struct {
	Name   string
	Params []*typenorm.Type
	Return *typenorm.Type
	Quals  MethodQualifiers
}

// String renders the display key: name plus canonical parameter list in
// source-like order. Return type and qualifiers are deliberately
// omitted.
func (s *FunctionSignature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	return b.String()
}

// ParamsEqual reports element-wise structural equality of the
// parameter lists.
func (s *FunctionSignature) ParamsEqual(params []*typenorm.Type) bool {
	if len(s.Params) != len(params) {
		return false
	}
	for i := range params {
		if !s.Params[i].Equal(params[i]) {
			return false
		}
	}
	return true
}

// AddrRange is a half-open [Lo, Hi) virtual address range.
type AddrRange struct {
	Lo uint64
	Hi uint64
}

func (r AddrRange) Contains(addr uint64) bool { return r.Lo <= addr && addr < r.Hi }

// Symbol is one function known to the engine: a stable identifier, its
// signature, the module defining it and the address ranges it occupies.
// Eliminated and inlined-only functions legitimately have no ranges.
type Symbol struct {
	ID      uint64
	Sig     FunctionSignature
	Module  string
	Mangled string
	Ranges  []AddrRange

	// Synthetic marks placeholder symbols fabricated for addresses no
	// metadata covers.
	Synthetic bool
}

// Key returns the aggregation identity of the symbol: same function
// signature and module, never the address. The same logical function
// may occupy multiple inlined instantiation sites and they must
// aggregate as one.
func (s *Symbol) Key() uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(s.Module)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(s.Sig.Name)
	_, _ = d.Write([]byte{0})
	for _, p := range s.Params() {
		var buf [8]byte
		h := p.Hash()
		for i := 0; i < 8; i++ {
			buf[i] = byte(h >> (8 * i))
		}
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// Params is a nil-safe accessor for the parameter list.
func (s *Symbol) Params() []*typenorm.Type { return s.Sig.Params }

// Name returns the display name of the symbol, degrading to the raw
// mangled name when no signature was recovered.
func (s *Symbol) Name() string {
	if s.Synthetic {
		return s.Sig.Name
	}
	if s.Sig.Name == "" {
		return s.Mangled
	}
	return s.Sig.String()
}

// Covers reports whether any of the symbol's ranges contains addr.
func (s *Symbol) Covers(addr uint64) bool {
	for _, r := range s.Ranges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// SampledAddress is one raw instruction address together with the
// symbol owning the enclosing non-inlined function, as produced by the
// external sampler and symbol lookup.
type SampledAddress struct {
	Addr uint64
	Sym  *Symbol
}

// Frame is one resolved logical stack entry. A sequence of frames,
// innermost first, is one resolved stack.
type Frame struct {
	Sym *Symbol
	// CallLine is the call-site line token of the enclosing call, when
	// the frame was reconstructed from an inline site.
	CallLine uint32
	// Truncated marks the frame ending a chain that was cut short by
	// malformed metadata.
	Truncated bool
}
