package types

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
)

// TypeID identifies a descriptor registered in a Registry.
type TypeID uint32

// NoTypeID marks an unregistered descriptor (composites built on the fly).
const NoTypeID TypeID = 0

// Kind enumerates the shapes a descriptor can take.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindString
	KindInt
	KindUint
	KindFloat
	KindInterface
	KindStruct
	KindPointer
	KindSlice
	KindArray
	KindMap
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindInterface:
		return "interface"
	case KindStruct:
		return "struct"
	case KindPointer:
		return "pointer"
	case KindSlice:
		return "slice"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	// WidthPtr marks uintptr.
	WidthPtr Width = 255
)

// Descriptor is an immutable handle for a type referenced by generated code.
//
// Named types carry Name and Package (the Go import path, empty for the
// universe scope). Composite types (pointer, slice, array, map, func) are
// unnamed and describe their shape through Elem, Key, Len, Params and Results.
// A generic instantiation is a named descriptor with Args.
type Descriptor struct {
	ID      TypeID
	Kind    Kind
	Width   Width
	Name    string
	Package string

	Elem    *Descriptor
	Key     *Descriptor
	Len     int
	Args    []*Descriptor
	Params  []*Descriptor
	Results []*Descriptor

	// Base is the embedded ancestor of a struct type (first anonymous field).
	Base    *Descriptor
	Reflect reflect.Type

	// attached by the registry while other goroutines may hold d
	enum atomic.Pointer[EnumInfo]
	ctor atomic.Pointer[string]
}

// Enum returns the members of an enum type, nil for other types.
func (d *Descriptor) Enum() *EnumInfo {
	if d == nil {
		return nil
	}
	return d.enum.Load()
}

// Constructor names a function in Package returning a ready *T, or "" when
// the type is allocated directly.
func (d *Descriptor) Constructor() string {
	if d == nil {
		return ""
	}
	if fn := d.ctor.Load(); fn != nil {
		return *fn
	}
	return ""
}

// IsNamed reports whether the descriptor is referenced by name.
func (d *Descriptor) IsNamed() bool { return d != nil && d.Name != "" }

// IsVoid reports whether d stands for "no value".
func (d *Descriptor) IsVoid() bool { return d == nil || d.Kind == KindVoid }

// Module returns the import path that must be aliased to reference d by
// name. Composite and universe types return "".
func (d *Descriptor) Module() string {
	if d == nil || d.Name == "" {
		return ""
	}
	return d.Package
}

// Nillable reports whether the zero value of d compares equal to nil.
func (d *Descriptor) Nillable() bool {
	if d == nil {
		return false
	}
	switch d.Kind {
	case KindPointer, KindSlice, KindMap, KindFunc, KindInterface:
		return true
	}
	return false
}

// Underlying strips one pointer level.
func (d *Descriptor) Underlying() *Descriptor {
	if d != nil && d.Kind == KindPointer && d.Elem != nil {
		return d.Elem
	}
	return d
}

// FullName renders the descriptor the way diagnostics and cache keys expect.
func (d *Descriptor) FullName() string {
	if d == nil {
		return "<nil>"
	}
	var b strings.Builder
	d.writeName(&b)
	return b.String()
}

func (d *Descriptor) String() string { return d.FullName() }

func (d *Descriptor) writeName(b *strings.Builder) {
	if d.Name != "" {
		if d.Package != "" {
			b.WriteString(d.Package)
			b.WriteByte('.')
		}
		b.WriteString(d.Name)
		if len(d.Args) > 0 {
			b.WriteByte('[')
			for i, a := range d.Args {
				if i > 0 {
					b.WriteByte(',')
				}
				a.writeName(b)
			}
			b.WriteByte(']')
		}
		return
	}
	switch d.Kind {
	case KindVoid:
		b.WriteString("void")
	case KindPointer:
		b.WriteByte('*')
		d.Elem.writeName(b)
	case KindSlice:
		b.WriteString("[]")
		d.Elem.writeName(b)
	case KindArray:
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(d.Len))
		b.WriteByte(']')
		d.Elem.writeName(b)
	case KindMap:
		b.WriteString("map[")
		d.Key.writeName(b)
		b.WriteByte(']')
		d.Elem.writeName(b)
	case KindFunc:
		b.WriteString("func(")
		for i, p := range d.Params {
			if i > 0 {
				b.WriteByte(',')
			}
			p.writeName(b)
		}
		b.WriteByte(')')
		switch len(d.Results) {
		case 0:
		case 1:
			b.WriteByte(' ')
			d.Results[0].writeName(b)
		default:
			b.WriteString(" (")
			for i, r := range d.Results {
				if i > 0 {
					b.WriteByte(',')
				}
				r.writeName(b)
			}
			b.WriteByte(')')
		}
	case KindInterface:
		b.WriteString("interface{}")
	default:
		b.WriteString(d.Kind.String())
	}
}

// Descriptor helpers ---------------------------------------------------------

// PointerTo describes *elem.
func PointerTo(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindPointer, Elem: elem}
}

// SliceOf describes []elem.
func SliceOf(elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindSlice, Elem: elem}
}

// ArrayOf describes [n]elem.
func ArrayOf(n int, elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindArray, Len: n, Elem: elem}
}

// MapOf describes map[key]elem.
func MapOf(key, elem *Descriptor) *Descriptor {
	return &Descriptor{Kind: KindMap, Key: key, Elem: elem}
}

// FuncOf describes func(params...) results.
func FuncOf(params, results []*Descriptor) *Descriptor {
	return &Descriptor{Kind: KindFunc, Params: params, Results: results}
}

// Instantiate describes generic[args...]. The generic descriptor itself is
// left untouched.
func Instantiate(generic *Descriptor, args ...*Descriptor) *Descriptor {
	inst := &Descriptor{
		Kind:    generic.Kind,
		Width:   generic.Width,
		Name:    generic.Name,
		Package: generic.Package,
		Elem:    generic.Elem,
		Key:     generic.Key,
		Len:     generic.Len,
		Args:    append([]*Descriptor(nil), args...),
		Params:  generic.Params,
		Results: generic.Results,
		Base:    generic.Base,
	}
	inst.ctor.Store(generic.ctor.Load())
	return inst
}
