package typenorm

import (
	"strconv"
	"strings"
)

// String renders the canonical type in source-like order: west const on
// base types, east const on pointer levels, dimensions after the
// element type. The rendering is deterministic and is safe to use as a
// display key.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	t.render(&b)
	return b.String()
}

func (t *Type) render(b *strings.Builder) {
	switch t.Kind {
	case KindNamed, KindOpaque:
		b.WriteString(t.Name)
	case KindPointer:
		if t.Elem != nil && t.Elem.Kind == KindProc {
			t.Elem.renderProc(b, strings.Repeat("*", t.Depth))
			return
		}
		t.Elem.render(b)
		for i := 0; i < t.Depth; i++ {
			b.WriteByte('*')
		}
	case KindRef:
		if t.Elem != nil && t.Elem.Kind == KindProc {
			t.Elem.renderProc(b, t.refToken())
			return
		}
		t.Elem.render(b)
		b.WriteString(t.refToken())
	case KindArray:
		t.Elem.render(b)
		for _, d := range t.Dims {
			if d > 0 {
				b.WriteByte('[')
				b.WriteString(strconv.FormatInt(d, 10))
				b.WriteByte(']')
			} else {
				b.WriteString("[]")
			}
		}
	case KindQualified:
		if t.Elem != nil && (t.Elem.Kind == KindNamed || t.Elem.Kind == KindOpaque) {
			// const double
			t.quals(b)
			b.WriteByte(' ')
			t.Elem.render(b)
			return
		}
		if inner := t.Elem; inner != nil && inner.Elem != nil && inner.Elem.Kind == KindProc &&
			(inner.Kind == KindPointer || inner.Kind == KindRef) {
			// Qualifiers on a function-pointer level belong inside the
			// parentheses: int (* const)(char).
			var attrs strings.Builder
			if inner.Kind == KindPointer {
				attrs.WriteString(strings.Repeat("*", inner.Depth))
			} else {
				attrs.WriteString(inner.refToken())
			}
			attrs.WriteByte(' ')
			t.quals(&attrs)
			inner.Elem.renderProc(b, attrs.String())
			return
		}
		// double* const
		t.Elem.render(b)
		b.WriteByte(' ')
		t.quals(b)
	case KindProc:
		// A bare function type, outside any pointer: "int (char)".
		t.Elem.render(b)
		b.WriteString(" (")
		t.renderArgs(b)
		b.WriteByte(')')
	}
}

func (t *Type) refToken() string {
	if t.Ref == RefRvalue {
		return "&&"
	}
	return "&"
}

// renderProc writes the function type with the pointer or reference
// attributes between the return type and the parameter list, the way
// source spells a function pointer: "int (*)(char)".
func (t *Type) renderProc(b *strings.Builder, attrs string) {
	t.Elem.render(b)
	b.WriteString(" (")
	b.WriteString(attrs)
	b.WriteString(")(")
	t.renderArgs(b)
	b.WriteByte(')')
}

func (t *Type) renderArgs(b *strings.Builder) {
	for i, a := range t.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.render(b)
	}
}

func (t *Type) quals(b *strings.Builder) {
	if t.Const {
		b.WriteString("const")
	}
	if t.Volatile {
		if t.Const {
			b.WriteByte(' ')
		}
		b.WriteString("volatile")
	}
}
