package vm

import (
	"go/ast"
	"go/token"
	"reflect"
	"strconv"
)

// eval evaluates an expression yielding exactly one value.
func (vm *VM) eval(s *scope, e ast.Expr) (reflect.Value, *VMError) {
	switch e := e.(type) {
	case *ast.BasicLit:
		return vm.evalBasicLit(e, false)
	case *ast.Ident:
		return vm.evalIdent(s, e)
	case *ast.ParenExpr:
		return vm.eval(s, e.X)
	case *ast.SelectorExpr:
		return vm.evalSelector(s, e)
	case *ast.CallExpr:
		out, vmErr := vm.evalCall(s, e)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if len(out) != 1 {
			return reflect.Value{}, vm.eb.arity(exprString(e), 1, len(out))
		}
		return out[0], nil
	case *ast.CompositeLit:
		t, vmErr := vm.mustType(e.Type)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		return vm.evalComposite(s, e, t)
	case *ast.FuncLit:
		return vm.funcLit(s, e)
	case *ast.UnaryExpr:
		return vm.evalUnary(s, e)
	case *ast.BinaryExpr:
		return vm.evalBinary(s, e)
	case *ast.TypeAssertExpr:
		return vm.evalTypeAssert(s, e)
	case *ast.IndexExpr:
		return vm.evalIndex(s, e)
	case *ast.StarExpr:
		x, vmErr := vm.eval(s, e.X)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if x.Kind() != reflect.Pointer {
			return reflect.Value{}, vm.eb.typeMismatch("pointer", x.Type().String())
		}
		if x.IsNil() {
			return reflect.Value{}, vm.eb.nilDereference(exprString(e))
		}
		return x.Elem(), nil
	}
	return reflect.Value{}, vm.eb.unimplemented(exprString(e))
}

// evalBasicLit parses a literal. Integers become int unless they only fit
// uint64; neg folds a leading minus so the minimum int64 survives.
func (vm *VM) evalBasicLit(lit *ast.BasicLit, neg bool) (reflect.Value, *VMError) {
	sign := ""
	if neg {
		sign = "-"
	}
	switch lit.Kind {
	case token.INT:
		if i, err := strconv.ParseInt(sign+lit.Value, 0, 64); err == nil {
			return reflect.ValueOf(int(i)), nil
		}
		if !neg {
			if u, err := strconv.ParseUint(lit.Value, 0, 64); err == nil {
				return reflect.ValueOf(u), nil
			}
		}
	case token.FLOAT:
		if f, err := strconv.ParseFloat(sign+lit.Value, 64); err == nil {
			return reflect.ValueOf(f), nil
		}
	case token.STRING, token.CHAR:
		if neg {
			break
		}
		if lit.Kind == token.CHAR {
			r, _, _, err := strconv.UnquoteChar(lit.Value[1:len(lit.Value)-1], '\'')
			if err == nil {
				return reflect.ValueOf(r), nil
			}
			break
		}
		if s, err := strconv.Unquote(lit.Value); err == nil {
			return reflect.ValueOf(s), nil
		}
	}
	return reflect.Value{}, vm.eb.typeMismatch("literal", sign+lit.Value)
}

func (vm *VM) evalIdent(s *scope, id *ast.Ident) (reflect.Value, *VMError) {
	if slot, ok := s.lookup(id.Name); ok {
		return slot.V, nil
	}
	switch id.Name {
	case "true":
		return reflect.ValueOf(true), nil
	case "false":
		return reflect.ValueOf(false), nil
	case "nil":
		return reflect.Value{}, nil
	}
	return reflect.Value{}, vm.eb.unknownIdent(id.Name)
}

func (vm *VM) evalSelector(s *scope, sel *ast.SelectorExpr) (reflect.Value, *VMError) {
	if pkg, ok := sel.X.(*ast.Ident); ok {
		if _, local := s.lookup(pkg.Name); !local {
			if path, ok := vm.prog.imports[pkg.Name]; ok {
				v, ok := vm.prog.exports[path][sel.Sel.Name]
				if !ok {
					return reflect.Value{}, vm.eb.unknownIdent(pkg.Name + "." + sel.Sel.Name)
				}
				if isTypeValue(v) {
					return reflect.Value{}, vm.eb.typeMismatch("value", "type "+pkg.Name+"."+sel.Sel.Name)
				}
				return v, nil
			}
		}
	}
	x, vmErr := vm.eval(s, sel.X)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	return vm.member(x, sel.Sel.Name)
}

// member resolves a method or field of x. Interfaces are unwrapped and
// pointers followed so promoted fields and methods are found.
func (vm *VM) member(x reflect.Value, name string) (reflect.Value, *VMError) {
	if !x.IsValid() {
		return reflect.Value{}, vm.eb.nilDereference("." + name)
	}
	for x.Kind() == reflect.Interface {
		if x.IsNil() {
			return reflect.Value{}, vm.eb.nilDereference("." + name)
		}
		x = x.Elem()
	}
	if m := x.MethodByName(name); m.IsValid() {
		return m, nil
	}
	if x.Kind() != reflect.Pointer && x.CanAddr() {
		if m := x.Addr().MethodByName(name); m.IsValid() {
			return m, nil
		}
	}
	base := x
	if base.Kind() == reflect.Pointer {
		if base.IsNil() {
			return reflect.Value{}, vm.eb.nilDereference(x.Type().String() + "." + name)
		}
		base = base.Elem()
	}
	if base.Kind() == reflect.Struct {
		if f := base.FieldByName(name); f.IsValid() {
			return f, nil
		}
	}
	return reflect.Value{}, vm.eb.unknownMember(x.Type().String(), name)
}

// evalCall evaluates calls, conversions and the builtins new, make and panic.
func (vm *VM) evalCall(s *scope, call *ast.CallExpr) ([]reflect.Value, *VMError) {
	if arg, ok := vm.typeForCall(call); ok {
		t, ok, vmErr := vm.resolveType(s, arg)
		if vmErr != nil {
			return nil, vmErr
		}
		if !ok {
			return nil, vm.eb.typeMismatch("type argument", "value")
		}
		return []reflect.Value{reflect.ValueOf(t)}, nil
	}
	if id, ok := call.Fun.(*ast.Ident); ok {
		if _, local := s.lookup(id.Name); !local {
			switch id.Name {
			case "new", "make", "panic":
				v, vmErr := vm.evalBuiltin(s, id.Name, call.Args)
				if vmErr != nil {
					return nil, vmErr
				}
				return []reflect.Value{v}, nil
			}
		}
	}

	t, isType, vmErr := vm.resolveType(s, call.Fun)
	if vmErr != nil {
		return nil, vmErr
	}
	if isType {
		if len(call.Args) != 1 {
			return nil, vm.eb.arity("conversion to "+t.String(), 1, len(call.Args))
		}
		x, vmErr := vm.eval(s, call.Args[0])
		if vmErr != nil {
			return nil, vmErr
		}
		v, vmErr := vm.convert(x, t)
		if vmErr != nil {
			return nil, vmErr
		}
		return []reflect.Value{v}, nil
	}

	fn, vmErr := vm.eval(s, call.Fun)
	if vmErr != nil {
		return nil, vmErr
	}
	if fn.Kind() == reflect.Interface && !fn.IsNil() {
		fn = fn.Elem()
	}
	if fn.Kind() != reflect.Func {
		return nil, vm.eb.typeMismatch("function", fn.Type().String())
	}
	if fn.IsNil() {
		return nil, vm.eb.nilDereference(exprString(call.Fun))
	}
	ft := fn.Type()
	args := make([]reflect.Value, len(call.Args))
	for i, a := range call.Args {
		v, vmErr := vm.eval(s, a)
		if vmErr != nil {
			return nil, vmErr
		}
		var pt reflect.Type
		switch {
		case ft.IsVariadic() && i >= ft.NumIn()-1:
			pt = ft.In(ft.NumIn() - 1).Elem()
		case i < ft.NumIn():
			pt = ft.In(i)
		default:
			return nil, vm.eb.arity(exprString(call.Fun), ft.NumIn(), len(call.Args))
		}
		if !v.IsValid() {
			v = reflect.Zero(pt)
		}
		if args[i], vmErr = vm.assignTo(v, pt); vmErr != nil {
			return nil, vmErr
		}
	}
	need := ft.NumIn()
	if ft.IsVariadic() {
		need--
	}
	if len(args) < need {
		return nil, vm.eb.arity(exprString(call.Fun), ft.NumIn(), len(call.Args))
	}
	return fn.Call(args), nil
}

// typeForCall matches reflect.TypeFor[T]() and returns T.
func (vm *VM) typeForCall(call *ast.CallExpr) (ast.Expr, bool) {
	idx, ok := call.Fun.(*ast.IndexExpr)
	if !ok || len(call.Args) != 0 {
		return nil, false
	}
	sel, ok := idx.X.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "TypeFor" {
		return nil, false
	}
	pkg, ok := sel.X.(*ast.Ident)
	if !ok || vm.prog.imports[pkg.Name] != "reflect" {
		return nil, false
	}
	return idx.Index, true
}

func (vm *VM) evalBuiltin(s *scope, name string, args []ast.Expr) (reflect.Value, *VMError) {
	switch name {
	case "panic":
		if len(args) != 1 {
			return reflect.Value{}, vm.eb.arity("panic", 1, len(args))
		}
		v, vmErr := vm.eval(s, args[0])
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		var arg any
		if v.IsValid() {
			arg = v.Interface()
		}
		panic(programPanic{value: arg})
	case "new":
		if len(args) != 1 {
			return reflect.Value{}, vm.eb.arity("new", 1, len(args))
		}
		t, vmErr := vm.mustType(args[0])
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		return reflect.New(t), nil
	}

	if len(args) == 0 {
		return reflect.Value{}, vm.eb.arity("make", 1, 0)
	}
	t, vmErr := vm.mustType(args[0])
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	size := 0
	if len(args) > 1 {
		n, vmErr := vm.eval(s, args[1])
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if !n.CanInt() {
			return reflect.Value{}, vm.eb.typeMismatch("int", n.Type().String())
		}
		size = int(n.Int())
	}
	switch t.Kind() {
	case reflect.Map:
		return reflect.MakeMapWithSize(t, size), nil
	case reflect.Slice:
		return reflect.MakeSlice(t, size, size), nil
	case reflect.Chan:
		return reflect.MakeChan(t, size), nil
	}
	return reflect.Value{}, vm.eb.typeMismatch("map, slice or channel", t.String())
}

func (vm *VM) evalComposite(s *scope, lit *ast.CompositeLit, t reflect.Type) (reflect.Value, *VMError) {
	elem := func(e ast.Expr, et reflect.Type) (reflect.Value, *VMError) {
		if inner, ok := e.(*ast.CompositeLit); ok && inner.Type == nil {
			return vm.evalComposite(s, inner, et)
		}
		v, vmErr := vm.eval(s, e)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if !v.IsValid() {
			return reflect.Zero(et), nil
		}
		return vm.assignTo(v, et)
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		var out reflect.Value
		if t.Kind() == reflect.Slice {
			out = reflect.MakeSlice(t, len(lit.Elts), len(lit.Elts))
		} else {
			if len(lit.Elts) > t.Len() {
				return reflect.Value{}, vm.eb.arity(t.String(), t.Len(), len(lit.Elts))
			}
			out = reflect.New(t).Elem()
		}
		for i, e := range lit.Elts {
			if _, ok := e.(*ast.KeyValueExpr); ok {
				return reflect.Value{}, vm.eb.unimplemented("indexed " + t.String() + " literal")
			}
			v, vmErr := elem(e, t.Elem())
			if vmErr != nil {
				return reflect.Value{}, vmErr
			}
			out.Index(i).Set(v)
		}
		return out, nil
	case reflect.Map:
		out := reflect.MakeMapWithSize(t, len(lit.Elts))
		for _, e := range lit.Elts {
			kv, ok := e.(*ast.KeyValueExpr)
			if !ok {
				return reflect.Value{}, vm.eb.typeMismatch("key: value", exprString(e))
			}
			k, vmErr := elem(kv.Key, t.Key())
			if vmErr != nil {
				return reflect.Value{}, vmErr
			}
			v, vmErr := elem(kv.Value, t.Elem())
			if vmErr != nil {
				return reflect.Value{}, vmErr
			}
			out.SetMapIndex(k, v)
		}
		return out, nil
	case reflect.Struct:
		out := reflect.New(t).Elem()
		for i, e := range lit.Elts {
			field := out.Field(i)
			value := e
			if kv, ok := e.(*ast.KeyValueExpr); ok {
				key, ok := kv.Key.(*ast.Ident)
				if !ok {
					return reflect.Value{}, vm.eb.typeMismatch("field name", exprString(kv.Key))
				}
				if field = out.FieldByName(key.Name); !field.IsValid() {
					return reflect.Value{}, vm.eb.unknownMember(t.String(), key.Name)
				}
				value = kv.Value
			} else if i >= t.NumField() {
				return reflect.Value{}, vm.eb.arity(t.String(), t.NumField(), len(lit.Elts))
			}
			v, vmErr := elem(value, field.Type())
			if vmErr != nil {
				return reflect.Value{}, vmErr
			}
			if !field.CanSet() {
				return reflect.Value{}, vm.eb.unknownMember(t.String(), "exported field")
			}
			field.Set(v)
		}
		return out, nil
	}
	return reflect.Value{}, vm.eb.typeMismatch("composite type", t.String())
}

func (vm *VM) evalTypeAssert(s *scope, e *ast.TypeAssertExpr) (reflect.Value, *VMError) {
	if e.Type == nil {
		return reflect.Value{}, vm.eb.unimplemented("type switch")
	}
	x, vmErr := vm.eval(s, e.X)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	t, vmErr := vm.mustType(e.Type)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	inner := x
	if x.IsValid() && x.Kind() == reflect.Interface {
		inner = x.Elem()
	}
	if !inner.IsValid() {
		return reflect.Value{}, vm.eb.makeError(PanicTypeMismatch, "interface conversion: interface is nil, not "+t.String())
	}
	if t.Kind() == reflect.Interface {
		if !inner.Type().Implements(t) {
			return reflect.Value{}, vm.eb.makeError(PanicTypeMismatch, "interface conversion: "+inner.Type().String()+" is not "+t.String())
		}
		out := reflect.New(t).Elem()
		out.Set(inner)
		return out, nil
	}
	if inner.Type() != t {
		return reflect.Value{}, vm.eb.makeError(PanicTypeMismatch, "interface conversion: interface is "+inner.Type().String()+", not "+t.String())
	}
	return inner, nil
}

func (vm *VM) evalIndex(s *scope, e *ast.IndexExpr) (reflect.Value, *VMError) {
	x, vmErr := vm.eval(s, e.X)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	idx, vmErr := vm.eval(s, e.Index)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	switch x.Kind() {
	case reflect.Map:
		key, vmErr := vm.assignTo(idx, x.Type().Key())
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if v := x.MapIndex(key); v.IsValid() {
			return v, nil
		}
		return reflect.Zero(x.Type().Elem()), nil
	case reflect.Slice, reflect.Array, reflect.String:
		if !idx.CanInt() {
			return reflect.Value{}, vm.eb.typeMismatch("int index", idx.Type().String())
		}
		i := int(idx.Int())
		if i < 0 || i >= x.Len() {
			return reflect.Value{}, vm.eb.makeError(PanicRuntime, "index "+strconv.Itoa(i)+" out of range for length "+strconv.Itoa(x.Len()))
		}
		return x.Index(i), nil
	}
	return reflect.Value{}, vm.eb.typeMismatch("indexable value", x.Type().String())
}
