package typenorm

// RawType is the opaque, format-specific type descriptor handed over by
// the external debug-info reader. Two descriptor conventions exist:
// DWARF-flavored readers produce element counts for arrays and explicit
// qualifier nodes, PDB-flavored readers produce byte-length array
// dimensions and per-pointer-level attributes. The normalizer accepts
// both and converges them onto one canonical representation.
//
// Descriptors are immutable once produced by the reader.
type RawType interface {
	rawType()
}

// PointerMode mirrors the PDB pointer attribute: a pointer record may
// actually encode a reference.
type PointerMode uint8

const (
	ModePointer PointerMode = iota
	ModeLvalueRef
	ModeRvalueRef
)

// RawNamed is a resolved base type. SizeBytes is the storage size of
// the type if the reader knows it; it is only consulted to recover
// element counts from byte-length array dimensions.
type RawNamed struct {
	Name      string
	SizeBytes int64
}

// RawPointer is a single pointer (or, in the PDB convention, reference)
// level. Const marks the pointer level itself, not the pointee.
type RawPointer struct {
	Elem  RawType
	Mode  PointerMode
	Const bool
}

// RawReference is a DWARF-flavored reference node.
type RawReference struct {
	Elem   RawType
	Rvalue bool
}

// RawQualifier attaches const/volatile to its element. Both conventions
// produce these, in arbitrary spelling order.
type RawQualifier struct {
	Elem     RawType
	Const    bool
	Volatile bool
}

// RawArray is one array level. Exactly one of Count and ByteLen is
// meaningful: DWARF-flavored readers set Count (number of elements),
// PDB-flavored readers set ByteLen (total size of this level in bytes,
// the element count being ByteLen over the element size). Multi-
// dimensional arrays arrive either as nested RawArray nodes or as a
// single node with Count set per level via nesting; both converge.
type RawArray struct {
	Elem    RawType
	Count   int64
	ByteLen int64
}

// RawAlias is a type derived through an introspection construct such as
// decltype: the descriptor of some other declared entity. Normalization
// looks through the alias at its target, never at its syntactic form.
type RawAlias struct {
	Name   string
	Target RawType
}

// RawProcedure is a function type: the target of a pointer produced by
// taking a function's address.
type RawProcedure struct {
	Return RawType
	Params []RawType
}

// RawUnknown is anything the reader could not classify. It normalizes
// to an Opaque leaf carrying the token.
type RawUnknown struct {
	Token string
}

func (RawNamed) rawType()     {}
func (RawPointer) rawType()   {}
func (RawReference) rawType() {}
func (RawQualifier) rawType() {}
func (RawArray) rawType()     {}
func (RawAlias) rawType()     {}
func (RawProcedure) rawType() {}
func (RawUnknown) rawType()   {}

const pointerSize = 8

// sizeOf reports the storage size of a raw descriptor in bytes, or 0
// when it cannot be determined. Used only for byte-length array
// dimension recovery.
func sizeOf(rt RawType) int64 {
	switch v := rt.(type) {
	case RawNamed:
		return v.SizeBytes
	case RawPointer:
		return pointerSize
	case RawReference:
		return pointerSize
	case RawQualifier:
		return sizeOf(v.Elem)
	case RawAlias:
		return sizeOf(v.Target)
	case RawArray:
		if v.ByteLen > 0 {
			return v.ByteLen
		}
		if v.Count > 0 {
			return v.Count * sizeOf(v.Elem)
		}
		return 0
	default:
		return 0
	}
}
