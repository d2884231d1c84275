package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores descriptors for the universe types.
type Builtins struct {
	Void    *Descriptor
	Bool    *Descriptor
	String  *Descriptor
	Int     *Descriptor
	Int8    *Descriptor
	Int16   *Descriptor
	Int32   *Descriptor
	Int64   *Descriptor
	Uint    *Descriptor
	Uint8   *Descriptor
	Uint16  *Descriptor
	Uint32  *Descriptor
	Uint64  *Descriptor
	Uintptr *Descriptor
	Float32 *Descriptor
	Float64 *Descriptor
	Any     *Descriptor
	Error   *Descriptor
}

// ErrGenericInstance is returned by FromReflect for generic instantiations
// that were not registered explicitly: reflection does not expose their
// type arguments.
var ErrGenericInstance = errors.New("generic instantiation must be registered explicitly")

// Registry hands out canonical descriptors. Descriptors obtained for the same
// reflect.Type or the same full name are pointer-identical, so they can be used
// as map keys. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	types    []*Descriptor
	byName   map[string]*Descriptor
	byType   map[reflect.Type]*Descriptor
	builtins Builtins
}

// NewRegistry constructs a registry seeded with the universe types.
func NewRegistry() *Registry {
	r := &Registry{
		types:  make([]*Descriptor, 1, 64), // reserve 0 as NoTypeID
		byName: make(map[string]*Descriptor, 64),
		byType: make(map[reflect.Type]*Descriptor, 64),
	}
	b := &r.builtins
	b.Void = &Descriptor{Kind: KindVoid}
	b.Bool = r.builtin("bool", KindBool, WidthAny, reflect.TypeFor[bool]())
	b.String = r.builtin("string", KindString, WidthAny, reflect.TypeFor[string]())
	b.Int = r.builtin("int", KindInt, WidthAny, reflect.TypeFor[int]())
	b.Int8 = r.builtin("int8", KindInt, Width8, reflect.TypeFor[int8]())
	b.Int16 = r.builtin("int16", KindInt, Width16, reflect.TypeFor[int16]())
	b.Int32 = r.builtin("int32", KindInt, Width32, reflect.TypeFor[int32]())
	b.Int64 = r.builtin("int64", KindInt, Width64, reflect.TypeFor[int64]())
	b.Uint = r.builtin("uint", KindUint, WidthAny, reflect.TypeFor[uint]())
	b.Uint8 = r.builtin("uint8", KindUint, Width8, reflect.TypeFor[uint8]())
	b.Uint16 = r.builtin("uint16", KindUint, Width16, reflect.TypeFor[uint16]())
	b.Uint32 = r.builtin("uint32", KindUint, Width32, reflect.TypeFor[uint32]())
	b.Uint64 = r.builtin("uint64", KindUint, Width64, reflect.TypeFor[uint64]())
	b.Uintptr = r.builtin("uintptr", KindUint, WidthPtr, reflect.TypeFor[uintptr]())
	b.Float32 = r.builtin("float32", KindFloat, Width32, reflect.TypeFor[float32]())
	b.Float64 = r.builtin("float64", KindFloat, Width64, reflect.TypeFor[float64]())
	b.Any = r.builtin("any", KindInterface, WidthAny, reflect.TypeFor[any]())
	b.Error = r.builtin("error", KindInterface, WidthAny, reflect.TypeFor[error]())
	return r
}

// Builtins returns descriptors for the universe types.
func (r *Registry) Builtins() Builtins {
	return r.builtins
}

func (r *Registry) builtin(name string, kind Kind, width Width, rt reflect.Type) *Descriptor {
	d := &Descriptor{Kind: kind, Width: width, Name: name, Reflect: rt}
	r.registerLocked(d)
	r.byType[rt] = d
	return d
}

// registerLocked assigns an ID and indexes d by name.
func (r *Registry) registerLocked(d *Descriptor) {
	id, err := safecast.Conv[uint32](len(r.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	d.ID = TypeID(id)
	r.types = append(r.types, d)
	if d.Name != "" {
		r.byName[d.FullName()] = d
	}
}

// Register adds a hand-built named descriptor. Registering a name twice
// returns the descriptor registered first.
func (r *Registry) Register(d *Descriptor) *Descriptor {
	if d == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.byName[d.FullName()]; ok && d.Name != "" {
		return prev
	}
	r.registerLocked(d)
	if d.Reflect != nil {
		r.byType[d.Reflect] = d
	}
	return d
}

// Named returns the descriptor for pkg.name, creating a placeholder of the
// given kind when nothing is registered under that name yet. A placeholder
// is replaced, not updated, once the type is described by FromReflect.
func (r *Registry) Named(pkg, name string, kind Kind) *Descriptor {
	if d, ok := r.LookupIn(pkg, name); ok {
		return d
	}
	return r.Register(&Descriptor{Kind: kind, Name: name, Package: pkg})
}

// Lookup finds a descriptor by its full name ("viewc/runtime/controls.Button").
func (r *Registry) Lookup(full string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[full]
	return d, ok
}

// LookupIn finds a descriptor by package path and name.
func (r *Registry) LookupIn(pkg, name string) (*Descriptor, bool) {
	if pkg == "" {
		return r.Lookup(name)
	}
	return r.Lookup(pkg + "." + name)
}

// Get returns the descriptor registered under id.
func (r *Registry) Get(id TypeID) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(r.types) {
		return nil, false
	}
	return r.types[id], true
}

// Len reports the number of registered descriptors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types) - 1
}

// FromReflect returns the canonical descriptor for rt.
func (r *Registry) FromReflect(rt reflect.Type) (*Descriptor, error) {
	if rt == nil {
		return r.builtins.Void, nil
	}
	r.mu.RLock()
	d, ok := r.byType[rt]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fromReflectLocked(rt)
}

// MustFromReflect panics when rt cannot be described; meant for package
// level tables of known types.
func (r *Registry) MustFromReflect(rt reflect.Type) *Descriptor {
	d, err := r.FromReflect(rt)
	if err != nil {
		panic(err)
	}
	return d
}

func (r *Registry) fromReflectLocked(rt reflect.Type) (*Descriptor, error) {
	if d, ok := r.byType[rt]; ok {
		return d, nil
	}
	if rt.Name() != "" {
		return r.namedLocked(rt)
	}
	switch rt.Kind() {
	case reflect.Pointer:
		elem, err := r.fromReflectLocked(rt.Elem())
		if err != nil {
			return nil, err
		}
		return r.cacheLocked(rt, PointerTo(elem)), nil
	case reflect.Slice:
		elem, err := r.fromReflectLocked(rt.Elem())
		if err != nil {
			return nil, err
		}
		return r.cacheLocked(rt, SliceOf(elem)), nil
	case reflect.Array:
		elem, err := r.fromReflectLocked(rt.Elem())
		if err != nil {
			return nil, err
		}
		return r.cacheLocked(rt, ArrayOf(rt.Len(), elem)), nil
	case reflect.Map:
		key, err := r.fromReflectLocked(rt.Key())
		if err != nil {
			return nil, err
		}
		elem, err := r.fromReflectLocked(rt.Elem())
		if err != nil {
			return nil, err
		}
		return r.cacheLocked(rt, MapOf(key, elem)), nil
	case reflect.Func:
		if rt.IsVariadic() {
			return nil, fmt.Errorf("types: variadic func %s is not supported", rt)
		}
		params := make([]*Descriptor, rt.NumIn())
		for i := range params {
			p, err := r.fromReflectLocked(rt.In(i))
			if err != nil {
				return nil, err
			}
			params[i] = p
		}
		results := make([]*Descriptor, rt.NumOut())
		for i := range results {
			res, err := r.fromReflectLocked(rt.Out(i))
			if err != nil {
				return nil, err
			}
			results[i] = res
		}
		return r.cacheLocked(rt, FuncOf(params, results)), nil
	case reflect.Interface:
		if rt.NumMethod() == 0 {
			r.byType[rt] = r.builtins.Any
			return r.builtins.Any, nil
		}
	}
	return nil, fmt.Errorf("types: unnamed %s type %s cannot be referenced", rt.Kind(), rt)
}

func (r *Registry) cacheLocked(rt reflect.Type, d *Descriptor) *Descriptor {
	d.Reflect = rt
	r.byType[rt] = d
	return d
}

func (r *Registry) namedLocked(rt reflect.Type) (*Descriptor, error) {
	if strings.ContainsRune(rt.Name(), '[') {
		return nil, fmt.Errorf("types: %s: %w", rt, ErrGenericInstance)
	}
	kind, width := kindOf(rt)
	if kind == KindInvalid {
		return nil, fmt.Errorf("types: %s kind of %s is not supported", rt.Kind(), rt)
	}
	full := rt.PkgPath() + "." + rt.Name()
	// A placeholder registered by Named may already be shared, so it is
	// never completed in place: the reflected descriptor replaces it.
	d := &Descriptor{Kind: kind, Width: width, Name: rt.Name(), Package: rt.PkgPath(), Reflect: rt}
	if rt.Kind() == reflect.Array {
		d.Len = rt.Len()
	}
	// visible through byType only, so self-referencing types terminate
	r.byType[rt] = d

	var err error
	switch rt.Kind() {
	case reflect.Struct:
		if rt.NumField() > 0 && rt.Field(0).Anonymous {
			ft := rt.Field(0).Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			d.Base, err = r.fromReflectLocked(ft)
		}
	case reflect.Slice, reflect.Array:
		d.Elem, err = r.fromReflectLocked(rt.Elem())
	case reflect.Map:
		if d.Key, err = r.fromReflectLocked(rt.Key()); err == nil {
			d.Elem, err = r.fromReflectLocked(rt.Elem())
		}
	case reflect.Pointer:
		d.Elem, err = r.fromReflectLocked(rt.Elem())
	}
	if err != nil {
		delete(r.byType, rt)
		return nil, fmt.Errorf("types: %s: %w", full, err)
	}
	r.registerLocked(d)
	return d, nil
}

func kindOf(rt reflect.Type) (Kind, Width) {
	switch rt.Kind() {
	case reflect.Bool:
		return KindBool, WidthAny
	case reflect.String:
		return KindString, WidthAny
	case reflect.Int:
		return KindInt, WidthAny
	case reflect.Int8:
		return KindInt, Width8
	case reflect.Int16:
		return KindInt, Width16
	case reflect.Int32:
		return KindInt, Width32
	case reflect.Int64:
		return KindInt, Width64
	case reflect.Uint:
		return KindUint, WidthAny
	case reflect.Uint8:
		return KindUint, Width8
	case reflect.Uint16:
		return KindUint, Width16
	case reflect.Uint32:
		return KindUint, Width32
	case reflect.Uint64:
		return KindUint, Width64
	case reflect.Uintptr:
		return KindUint, WidthPtr
	case reflect.Float32:
		return KindFloat, Width32
	case reflect.Float64:
		return KindFloat, Width64
	case reflect.Interface:
		return KindInterface, WidthAny
	case reflect.Struct:
		return KindStruct, WidthAny
	case reflect.Pointer:
		return KindPointer, WidthAny
	case reflect.Slice:
		return KindSlice, WidthAny
	case reflect.Array:
		return KindArray, WidthAny
	case reflect.Map:
		return KindMap, WidthAny
	case reflect.Func:
		return KindFunc, WidthAny
	}
	return KindInvalid, WidthAny
}

// RegisterEnum attaches member information to the named integer type rt.
func (r *Registry) RegisterEnum(rt reflect.Type, flags bool, members ...EnumMember) (*Descriptor, error) {
	kind, _ := kindOf(rt)
	if kind != KindInt && kind != KindUint {
		return nil, fmt.Errorf("types: enum %s must have an integer kind, got %s", rt, rt.Kind())
	}
	d, err := r.FromReflect(rt)
	if err != nil {
		return nil, err
	}
	d.enum.Store(&EnumInfo{Flags: flags, Members: append([]EnumMember(nil), members...)})
	return d, nil
}

// SetConstructor records the constructor function used to allocate rt.
func (r *Registry) SetConstructor(rt reflect.Type, fn string) (*Descriptor, error) {
	d, err := r.FromReflect(rt)
	if err != nil {
		return nil, err
	}
	d.ctor.Store(&fn)
	return d, nil
}
