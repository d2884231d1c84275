package vm

import (
	"go/ast"
	"go/token"
	"reflect"
	"strconv"
)

var universeTypes = map[string]reflect.Type{
	"bool":       reflect.TypeFor[bool](),
	"string":     reflect.TypeFor[string](),
	"int":        reflect.TypeFor[int](),
	"int8":       reflect.TypeFor[int8](),
	"int16":      reflect.TypeFor[int16](),
	"int32":      reflect.TypeFor[int32](),
	"int64":      reflect.TypeFor[int64](),
	"uint":       reflect.TypeFor[uint](),
	"uint8":      reflect.TypeFor[uint8](),
	"uint16":     reflect.TypeFor[uint16](),
	"uint32":     reflect.TypeFor[uint32](),
	"uint64":     reflect.TypeFor[uint64](),
	"uintptr":    reflect.TypeFor[uintptr](),
	"float32":    reflect.TypeFor[float32](),
	"float64":    reflect.TypeFor[float64](),
	"complex64":  reflect.TypeFor[complex64](),
	"complex128": reflect.TypeFor[complex128](),
	"byte":       reflect.TypeFor[byte](),
	"rune":       reflect.TypeFor[rune](),
	"any":        reflect.TypeFor[any](),
	"error":      reflect.TypeFor[error](),
}

// isTypeValue reports whether an export entry stands for a type.
func isTypeValue(v reflect.Value) bool {
	return v.IsValid() && v.Kind() == reflect.Pointer && v.IsNil() && !v.CanAddr()
}

func (vm *VM) mustType(e ast.Expr) (reflect.Type, *VMError) {
	t, ok, vmErr := vm.resolveType(nil, e)
	if vmErr != nil {
		return nil, vmErr
	}
	if !ok {
		return nil, vm.eb.typeMismatch("type", exprString(e))
	}
	return t, nil
}

// resolveType reports whether e denotes a type in s and resolves it.
func (vm *VM) resolveType(s *scope, e ast.Expr) (reflect.Type, bool, *VMError) {
	switch e := e.(type) {
	case *ast.Ident:
		if s != nil {
			if _, ok := s.lookup(e.Name); ok {
				return nil, false, nil
			}
		}
		t, ok := universeTypes[e.Name]
		return t, ok, nil
	case *ast.SelectorExpr:
		pkg, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, false, nil
		}
		if s != nil {
			if _, local := s.lookup(pkg.Name); local {
				return nil, false, nil
			}
		}
		path, ok := vm.prog.imports[pkg.Name]
		if !ok {
			return nil, false, nil
		}
		if vm.prog.opaque[path] {
			return reflect.TypeFor[Opaque](), true, nil
		}
		v, ok := vm.prog.exports[path][e.Sel.Name]
		if !ok {
			return nil, false, vm.eb.unknownIdent(pkg.Name + "." + e.Sel.Name)
		}
		if !isTypeValue(v) {
			return nil, false, nil
		}
		return v.Type().Elem(), true, nil
	case *ast.ParenExpr:
		return vm.resolveType(s, e.X)
	case *ast.StarExpr:
		elem, ok, vmErr := vm.resolveType(s, e.X)
		if !ok || vmErr != nil {
			return nil, ok, vmErr
		}
		return reflect.PointerTo(elem), true, nil
	case *ast.ArrayType:
		elem, vmErr := vm.mustType(e.Elt)
		if vmErr != nil {
			return nil, true, vmErr
		}
		if e.Len == nil {
			return reflect.SliceOf(elem), true, nil
		}
		lit, ok := e.Len.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return nil, true, vm.eb.unimplemented("array length " + exprString(e.Len))
		}
		n, err := strconv.Atoi(lit.Value)
		if err != nil {
			return nil, true, vm.eb.unimplemented("array length " + lit.Value)
		}
		return reflect.ArrayOf(n, elem), true, nil
	case *ast.MapType:
		key, vmErr := vm.mustType(e.Key)
		if vmErr != nil {
			return nil, true, vmErr
		}
		elem, vmErr := vm.mustType(e.Value)
		if vmErr != nil {
			return nil, true, vmErr
		}
		return reflect.MapOf(key, elem), true, nil
	case *ast.FuncType:
		params, vmErr := vm.fieldTypes(e.Params)
		if vmErr != nil {
			return nil, true, vmErr
		}
		results, vmErr := vm.fieldTypes(e.Results)
		if vmErr != nil {
			return nil, true, vmErr
		}
		in := make([]reflect.Type, len(params))
		for i, p := range params {
			in[i] = p.typ
		}
		out := make([]reflect.Type, len(results))
		for i, r := range results {
			out[i] = r.typ
		}
		return reflect.FuncOf(in, out, false), true, nil
	case *ast.InterfaceType:
		if e.Methods != nil && len(e.Methods.List) > 0 {
			return nil, true, vm.eb.unimplemented("interface literal with methods")
		}
		return reflect.TypeFor[any](), true, nil
	case *ast.IndexExpr, *ast.IndexListExpr:
		// Generic instantiations only appear as type arguments of reflect.TypeFor.
		return nil, false, nil
	}
	return nil, false, nil
}

func exprString(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.SelectorExpr:
		return exprString(e.X) + "." + e.Sel.Name
	case *ast.StarExpr:
		return "*" + exprString(e.X)
	case *ast.ParenExpr:
		return "(" + exprString(e.X) + ")"
	case *ast.BasicLit:
		return e.Value
	case *ast.CallExpr:
		return exprString(e.Fun) + "(...)"
	}
	return reflect.TypeOf(e).Elem().Name()
}
