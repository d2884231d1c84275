package vm

import (
	"go/ast"
	"go/token"
	"reflect"
)

func (vm *VM) evalUnary(s *scope, e *ast.UnaryExpr) (reflect.Value, *VMError) {
	switch e.Op {
	case token.AND:
		if lit, ok := e.X.(*ast.CompositeLit); ok {
			v, vmErr := vm.eval(s, lit)
			if vmErr != nil {
				return reflect.Value{}, vmErr
			}
			p := reflect.New(v.Type())
			p.Elem().Set(v)
			return p, nil
		}
		x, vmErr := vm.eval(s, e.X)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if !x.CanAddr() {
			return reflect.Value{}, vm.eb.typeMismatch("addressable value", exprString(e.X))
		}
		return x.Addr(), nil
	case token.SUB:
		if lit, ok := e.X.(*ast.BasicLit); ok {
			return vm.evalBasicLit(lit, true)
		}
		x, vmErr := vm.eval(s, e.X)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		out := reflect.New(x.Type()).Elem()
		switch {
		case x.CanInt():
			out.SetInt(-x.Int())
		case x.CanUint():
			out.SetUint(-x.Uint())
		case x.CanFloat():
			out.SetFloat(-x.Float())
		default:
			return reflect.Value{}, vm.eb.typeMismatch("number", x.Type().String())
		}
		return out, nil
	case token.NOT:
		x, vmErr := vm.eval(s, e.X)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if x.Kind() != reflect.Bool {
			return reflect.Value{}, vm.eb.typeMismatch("bool", x.Type().String())
		}
		out := reflect.New(x.Type()).Elem()
		out.SetBool(!x.Bool())
		return out, nil
	}
	return reflect.Value{}, vm.eb.unimplemented("unary " + e.Op.String())
}

func (vm *VM) evalBinary(s *scope, e *ast.BinaryExpr) (reflect.Value, *VMError) {
	x, vmErr := vm.eval(s, e.X)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	switch e.Op {
	case token.LAND, token.LOR:
		if x.Kind() != reflect.Bool {
			return reflect.Value{}, vm.eb.typeMismatch("bool", x.Type().String())
		}
		if x.Bool() == (e.Op == token.LOR) {
			return reflect.ValueOf(x.Bool()), nil
		}
		y, vmErr := vm.eval(s, e.Y)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		if y.Kind() != reflect.Bool {
			return reflect.Value{}, vm.eb.typeMismatch("bool", y.Type().String())
		}
		return reflect.ValueOf(y.Bool()), nil
	}
	y, vmErr := vm.eval(s, e.Y)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}

	switch e.Op {
	case token.EQL, token.NEQ:
		eq, vmErr := vm.equal(x, y)
		if vmErr != nil {
			return reflect.Value{}, vmErr
		}
		return reflect.ValueOf(eq == (e.Op == token.EQL)), nil
	}

	// Operands of arithmetic share a type; untyped literals take the type
	// of the other side.
	if x.Type() != y.Type() {
		if _, lit := e.Y.(*ast.BasicLit); lit {
			if y, vmErr = vm.convert(y, x.Type()); vmErr != nil {
				return reflect.Value{}, vmErr
			}
		} else if x, vmErr = vm.convert(x, y.Type()); vmErr != nil {
			return reflect.Value{}, vmErr
		}
	}
	out := reflect.New(x.Type()).Elem()
	switch {
	case x.CanInt():
		a, b := x.Int(), y.Int()
		switch e.Op {
		case token.OR:
			out.SetInt(a | b)
		case token.AND:
			out.SetInt(a & b)
		case token.XOR:
			out.SetInt(a ^ b)
		case token.ADD:
			out.SetInt(a + b)
		case token.SUB:
			out.SetInt(a - b)
		case token.MUL:
			out.SetInt(a * b)
		default:
			return reflect.Value{}, vm.eb.unimplemented("integer " + e.Op.String())
		}
	case x.CanUint():
		a, b := x.Uint(), y.Uint()
		switch e.Op {
		case token.OR:
			out.SetUint(a | b)
		case token.AND:
			out.SetUint(a & b)
		case token.XOR:
			out.SetUint(a ^ b)
		case token.ADD:
			out.SetUint(a + b)
		case token.SUB:
			out.SetUint(a - b)
		case token.MUL:
			out.SetUint(a * b)
		default:
			return reflect.Value{}, vm.eb.unimplemented("integer " + e.Op.String())
		}
	case x.CanFloat():
		a, b := x.Float(), y.Float()
		switch e.Op {
		case token.ADD:
			out.SetFloat(a + b)
		case token.SUB:
			out.SetFloat(a - b)
		case token.MUL:
			out.SetFloat(a * b)
		case token.QUO:
			out.SetFloat(a / b)
		default:
			return reflect.Value{}, vm.eb.unimplemented("float " + e.Op.String())
		}
	case x.Kind() == reflect.String && e.Op == token.ADD:
		out.SetString(x.String() + y.String())
	default:
		return reflect.Value{}, vm.eb.unimplemented(x.Type().String() + " " + e.Op.String())
	}
	return out, nil
}

// equal compares two values the way == does. An invalid value is nil.
func (vm *VM) equal(x, y reflect.Value) (bool, *VMError) {
	switch {
	case !x.IsValid() && !y.IsValid():
		return true, nil
	case !x.IsValid():
		return isNil(y), nil
	case !y.IsValid():
		return isNil(x), nil
	}
	if x.Type() != y.Type() {
		var vmErr *VMError
		if y.Type().AssignableTo(x.Type()) || y.Type().ConvertibleTo(x.Type()) {
			y, vmErr = vm.assignTo(y, x.Type())
		} else {
			x, vmErr = vm.assignTo(x, y.Type())
		}
		if vmErr != nil {
			return false, vmErr
		}
	}
	if !x.Type().Comparable() {
		return false, vm.eb.typeMismatch("comparable value", x.Type().String())
	}
	return x.Interface() == y.Interface(), nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Invalid:
		return true
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// assignTo prepares v for storage in a location of type t. Numbers convert
// freely because generated code only mixes them through untyped literals.
func (vm *VM) assignTo(v reflect.Value, t reflect.Type) (reflect.Value, *VMError) {
	if !v.IsValid() {
		if !canBeNil(t) {
			return reflect.Value{}, vm.eb.typeMismatch(t.String(), "nil")
		}
		return reflect.Zero(t), nil
	}
	if v.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface && v.Type() != t {
			out := reflect.New(t).Elem()
			out.Set(v)
			return out, nil
		}
		return v, nil
	}
	if isNumber(v.Kind()) && isNumber(t.Kind()) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, vm.eb.typeMismatch(t.String(), v.Type().String())
}

// convert implements T(x).
func (vm *VM) convert(x reflect.Value, t reflect.Type) (reflect.Value, *VMError) {
	if !x.IsValid() {
		return vm.assignTo(x, t)
	}
	if !x.Type().ConvertibleTo(t) {
		return reflect.Value{}, vm.eb.typeMismatch("value convertible to "+t.String(), x.Type().String())
	}
	return x.Convert(t), nil
}

func canBeNil(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
