package vm

import (
	"math"
	"math/big"
	"reflect"

	"viewc/runtime/controls"
	"viewc/runtime/objref"
)

// Exports maps import paths to the symbols a program may reference. Types
// are nil pointers to the type, variables are addressable values.
type Exports map[string]map[string]reflect.Value

// Merge returns the union of e and others; later tables win per symbol.
func (e Exports) Merge(others ...Exports) Exports {
	out := make(Exports, len(e))
	for _, src := range append([]Exports{e}, others...) {
		for path, syms := range src {
			dst, ok := out[path]
			if !ok {
				dst = make(map[string]reflect.Value, len(syms))
				out[path] = dst
			}
			for name, v := range syms {
				dst[name] = v
			}
		}
	}
	return out
}

// StdExports covers the standard library references of generated code.
func StdExports() Exports {
	return Exports{
		"reflect": {
			"Type":   reflect.ValueOf((*reflect.Type)(nil)),
			"TypeOf": reflect.ValueOf(reflect.TypeOf),
		},
		"math": {
			"Copysign": reflect.ValueOf(math.Copysign),
			"Inf":      reflect.ValueOf(math.Inf),
			"NaN":      reflect.ValueOf(math.NaN),
		},
		"math/big": {
			"NewRat": reflect.ValueOf(big.NewRat),
			"Rat":    reflect.ValueOf((*big.Rat)(nil)),
		},
	}
}

// RuntimeExports adds the runtime packages generated builders import.
func RuntimeExports() Exports {
	return StdExports().Merge(Exports{
		reflect.TypeFor[controls.ControlBase]().PkgPath(): controls.Symbols(),
		reflect.TypeFor[objref.Table]().PkgPath():        objref.Symbols(),
	})
}
