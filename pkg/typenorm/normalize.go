package typenorm

import "fmt"

// Normalize converts a raw descriptor into its canonical type. It is
// pure and deterministic and never fails: unrecognized constructs
// become Opaque leaves so that downstream overload matching still
// progresses, it merely cannot disambiguate on that parameter.
func Normalize(rt RawType) *Type {
	if rt == nil {
		return Opaque("<nil>")
	}
	switch v := rt.(type) {
	case RawNamed:
		return Named(v.Name)
	case RawUnknown:
		return Opaque(v.Token)
	case RawAlias:
		// Look through the alias at the aliased entity's type, never
		// at the alias' syntactic form.
		if v.Target == nil {
			return Opaque(v.Name)
		}
		return Normalize(v.Target)
	case RawQualifier:
		return qualify(Normalize(v.Elem), v.Const, v.Volatile)
	case RawReference:
		return ref(Normalize(v.Elem), v.Rvalue)
	case RawPointer:
		switch v.Mode {
		case ModeLvalueRef:
			return ref(Normalize(v.Elem), false)
		case ModeRvalueRef:
			return ref(Normalize(v.Elem), true)
		}
		p := pointerTo(Normalize(v.Elem), 1)
		// Const on the pointer record applies to the pointer level
		// itself, not the pointee.
		return qualify(p, v.Const, false)
	case RawArray:
		return normalizeArray(v)
	case RawProcedure:
		args := make([]*Type, len(v.Params))
		for i, p := range v.Params {
			args[i] = Normalize(p)
		}
		return &Type{Kind: KindProc, Args: args, Elem: Normalize(v.Return)}
	default:
		return Opaque(fmt.Sprintf("%T", rt))
	}
}

// pointerTo wraps inner with n pointer levels, merging into an
// existing pointer run so chains of arbitrary depth stay a single
// depth-counted node.
func pointerTo(inner *Type, n int) *Type {
	if inner.Kind == KindPointer {
		return &Type{Kind: KindPointer, Depth: inner.Depth + n, Elem: inner.Elem}
	}
	return &Type{Kind: KindPointer, Depth: n, Elem: inner}
}

// qualify attaches const/volatile to t. Qualifier spelling order does
// not matter: flags merge into a single node and a flagless qualifier
// vanishes.
func qualify(t *Type, cst, vol bool) *Type {
	if !cst && !vol {
		return t
	}
	if t.Kind == KindQualified {
		return &Type{
			Kind:     KindQualified,
			Const:    t.Const || cst,
			Volatile: t.Volatile || vol,
			Elem:     t.Elem,
		}
	}
	return &Type{Kind: KindQualified, Const: cst, Volatile: vol, Elem: t}
}

func ref(inner *Type, rvalue bool) *Type {
	k := RefLvalue
	if rvalue {
		k = RefRvalue
	}
	return &Type{Kind: KindRef, Ref: k, Elem: inner}
}

// normalizeArray flattens a chain of nested single-dimension arrays
// into one node with ordered dimensions, outer to inner. Byte-length
// dimensions (the PDB convention) divide by the element size of the
// next level; a dimension that cannot be recovered is recorded as 0.
// Zero-size element types take the same path as any other: only the
// declared count or the byte arithmetic decides the dimension value.
func normalizeArray(a RawArray) *Type {
	levels := []RawArray{a}
	for {
		next, ok := levels[len(levels)-1].Elem.(RawArray)
		if !ok {
			break
		}
		levels = append(levels, next)
	}
	base := levels[len(levels)-1].Elem

	dims := make([]int64, len(levels))
	for i, lv := range levels {
		switch {
		case lv.Count > 0:
			dims[i] = lv.Count
		case lv.ByteLen > 0:
			var elemSize int64
			if i+1 < len(levels) {
				elemSize = sizeOf(levels[i+1])
			} else {
				elemSize = sizeOf(base)
			}
			if elemSize > 0 {
				dims[i] = lv.ByteLen / elemSize
			}
		}
	}

	elem := Normalize(base)
	if elem.Kind == KindArray {
		// The base was an alias resolving to another array: keep the
		// canonical invariant of a single flattened array node.
		dims = append(dims, elem.Dims...)
		elem = elem.Elem
	}
	return &Type{Kind: KindArray, Dims: dims, Elem: elem}
}
