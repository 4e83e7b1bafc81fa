package typenorm

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Kind discriminates canonical type nodes.
type Kind uint8

const (
	// KindNamed is a fully resolved base type referred to by its
	// qualified name, e.g. "unsigned long" or "A::B".
	KindNamed Kind = iota
	// KindOpaque is an unrecognized construct carried as its raw token.
	// Opaque types compare equal only to the identical token.
	KindOpaque
	// KindPointer is a run of Depth consecutive, unqualified pointer
	// levels. A qualified pointer level terminates the run.
	KindPointer
	// KindArray carries the ordered dimension sizes, outer to inner.
	// A zero dimension means the size could not be recovered from the
	// descriptor.
	KindArray
	// KindRef is an lvalue or rvalue reference.
	KindRef
	// KindQualified attaches const/volatile to the element type.
	KindQualified
	// KindProc is a function type: the return type in Elem, the
	// parameter types in Args. It occurs as the target of a function
	// pointer or reference.
	KindProc
)

// RefKind distinguishes reference flavors. Lvalue and rvalue references
// never unify with each other or with pointers.
type RefKind uint8

const (
	RefLvalue RefKind = iota + 1
	RefRvalue
)

// Type is a canonical, toolchain-independent type representation.
// Two descriptors that mean the same type normalize to structurally
// equal Types regardless of how the producing toolchain spelled them.
//
// Canonical invariants maintained by the normalizer:
//   - a Pointer never directly wraps another Pointer (runs are counted);
//   - an Array never directly wraps another Array (dims are flattened);
//   - a Qualified never directly wraps another Qualified, and always
//     carries at least one flag.
type Type struct {
	Kind Kind

	Name  string  // KindNamed, KindOpaque
	Depth int     // KindPointer
	Dims  []int64 // KindArray, outer to inner
	Ref   RefKind // KindRef

	Const    bool // KindQualified
	Volatile bool // KindQualified

	Args []*Type // KindProc parameter types

	// Elem is the inner type: the pointee, element or qualified type,
	// the return type for KindProc, nil for KindNamed and KindOpaque.
	Elem *Type
}

// Named returns a canonical base type.
func Named(name string) *Type { return &Type{Kind: KindNamed, Name: name} }

// Opaque returns the placeholder for an unrecognized descriptor token.
func Opaque(token string) *Type { return &Type{Kind: KindOpaque, Name: token} }

// Equal reports deep structural equality. This is the comparison
// overload matching relies on; identity of the pointers is irrelevant.
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindNamed, KindOpaque:
		return t.Name == o.Name
	case KindPointer:
		if t.Depth != o.Depth {
			return false
		}
	case KindArray:
		if len(t.Dims) != len(o.Dims) {
			return false
		}
		for i := range t.Dims {
			if t.Dims[i] != o.Dims[i] {
				return false
			}
		}
	case KindRef:
		if t.Ref != o.Ref {
			return false
		}
	case KindQualified:
		if t.Const != o.Const || t.Volatile != o.Volatile {
			return false
		}
	case KindProc:
		if len(t.Args) != len(o.Args) {
			return false
		}
		for i := range t.Args {
			if !t.Args[i].Equal(o.Args[i]) {
				return false
			}
		}
	}
	return t.Elem.Equal(o.Elem)
}

// Hash returns a 64-bit structural hash consistent with Equal.
// It is the key primitive for the normalization cache and for call
// tree child lookup.
func (t *Type) Hash() uint64 {
	d := xxhash.New()
	t.sum(d)
	return d.Sum64()
}

func (t *Type) sum(d *xxhash.Digest) {
	var buf [8]byte
	if t == nil {
		_, _ = d.Write([]byte{0xff})
		return
	}
	_, _ = d.Write([]byte{byte(t.Kind)})
	switch t.Kind {
	case KindNamed, KindOpaque:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(t.Name)))
		_, _ = d.Write(buf[:])
		_, _ = d.WriteString(t.Name)
	case KindPointer:
		binary.LittleEndian.PutUint64(buf[:], uint64(t.Depth))
		_, _ = d.Write(buf[:])
	case KindArray:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(t.Dims)))
		_, _ = d.Write(buf[:])
		for _, dim := range t.Dims {
			binary.LittleEndian.PutUint64(buf[:], uint64(dim))
			_, _ = d.Write(buf[:])
		}
	case KindRef:
		_, _ = d.Write([]byte{byte(t.Ref)})
	case KindQualified:
		var q byte
		if t.Const {
			q |= 1
		}
		if t.Volatile {
			q |= 2
		}
		_, _ = d.Write([]byte{q})
	case KindProc:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(t.Args)))
		_, _ = d.Write(buf[:])
		for _, a := range t.Args {
			a.sum(d)
		}
	}
	t.Elem.sum(d)
}
