package vm

import (
	"go/ast"
	"go/token"
	"reflect"
)

// execBlock runs the statements of b in a new scope. returned is set when
// a return statement was executed.
func (vm *VM) execBlock(outer *scope, b *ast.BlockStmt) (results []reflect.Value, returned bool, vmErr *VMError) {
	s := newScope(outer)
	for _, stmt := range b.List {
		results, returned, vmErr = vm.exec(s, stmt)
		if vmErr != nil || returned {
			return results, returned, vmErr
		}
	}
	return nil, false, nil
}

func (vm *VM) exec(s *scope, stmt ast.Stmt) ([]reflect.Value, bool, *VMError) {
	vm.Stack[len(vm.Stack)-1].Pos = stmt.Pos()
	switch stmt := stmt.(type) {
	case *ast.ExprStmt:
		call, ok := stmt.X.(*ast.CallExpr)
		if !ok {
			return nil, false, vm.eb.unimplemented("expression statement " + exprString(stmt.X))
		}
		_, vmErr := vm.evalCall(s, call)
		return nil, false, vmErr
	case *ast.AssignStmt:
		return nil, false, vm.execAssign(s, stmt)
	case *ast.DeclStmt:
		return nil, false, vm.execDecl(s, stmt)
	case *ast.IfStmt:
		inner := newScope(s)
		if stmt.Init != nil {
			if _, _, vmErr := vm.exec(inner, stmt.Init); vmErr != nil {
				return nil, false, vmErr
			}
		}
		cond, vmErr := vm.eval(inner, stmt.Cond)
		if vmErr != nil {
			return nil, false, vmErr
		}
		if cond.Kind() != reflect.Bool {
			return nil, false, vm.eb.typeMismatch("bool", cond.Type().String())
		}
		if cond.Bool() {
			return vm.execBlock(inner, stmt.Body)
		}
		if stmt.Else != nil {
			return vm.exec(inner, stmt.Else)
		}
		return nil, false, nil
	case *ast.BlockStmt:
		return vm.execBlock(s, stmt)
	case *ast.ReturnStmt:
		if len(stmt.Results) == 1 {
			if call, ok := stmt.Results[0].(*ast.CallExpr); ok {
				out, vmErr := vm.evalCall(s, call)
				return out, true, vmErr
			}
		}
		out := make([]reflect.Value, len(stmt.Results))
		for i, r := range stmt.Results {
			v, vmErr := vm.eval(s, r)
			if vmErr != nil {
				return nil, false, vmErr
			}
			out[i] = v
		}
		return out, true, nil
	case *ast.EmptyStmt:
		return nil, false, nil
	}
	return nil, false, vm.eb.unimplemented(reflect.TypeOf(stmt).Elem().Name())
}

func (vm *VM) execAssign(s *scope, stmt *ast.AssignStmt) *VMError {
	if stmt.Tok != token.DEFINE && stmt.Tok != token.ASSIGN {
		return vm.eb.unimplemented("assignment " + stmt.Tok.String())
	}
	values, vmErr := vm.evalList(s, stmt.Rhs, len(stmt.Lhs))
	if vmErr != nil {
		return vmErr
	}
	for i, lhs := range stmt.Lhs {
		v := values[i]
		if id, ok := lhs.(*ast.Ident); ok && id.Name == "_" {
			continue
		}
		if stmt.Tok == token.DEFINE {
			id, ok := lhs.(*ast.Ident)
			if !ok {
				return vm.eb.typeMismatch("identifier", exprString(lhs))
			}
			if !v.IsValid() {
				return vm.eb.typeMismatch("typed value", "untyped nil")
			}
			s.define(id.Name, v.Type(), v)
			continue
		}
		if vmErr := vm.store(s, lhs, v); vmErr != nil {
			return vmErr
		}
	}
	return nil
}

// evalList evaluates the right side of an assignment of n values.
func (vm *VM) evalList(s *scope, exprs []ast.Expr, n int) ([]reflect.Value, *VMError) {
	if len(exprs) == 1 && n > 1 {
		call, ok := exprs[0].(*ast.CallExpr)
		if !ok {
			return nil, vm.eb.unimplemented("multi-value " + exprString(exprs[0]))
		}
		out, vmErr := vm.evalCall(s, call)
		if vmErr != nil {
			return nil, vmErr
		}
		if len(out) != n {
			return nil, vm.eb.arity(exprString(call), n, len(out))
		}
		return out, nil
	}
	if len(exprs) != n {
		return nil, vm.eb.arity("assignment", n, len(exprs))
	}
	out := make([]reflect.Value, n)
	for i, e := range exprs {
		v, vmErr := vm.eval(s, e)
		if vmErr != nil {
			return nil, vmErr
		}
		out[i] = v
	}
	return out, nil
}

// store writes v into the location lhs denotes.
func (vm *VM) store(s *scope, lhs ast.Expr, v reflect.Value) *VMError {
	if idx, ok := lhs.(*ast.IndexExpr); ok {
		x, vmErr := vm.eval(s, idx.X)
		if vmErr != nil {
			return vmErr
		}
		if x.Kind() == reflect.Map {
			if x.IsNil() {
				return vm.eb.makeError(PanicNilDereference, "assignment to entry in nil map")
			}
			key, vmErr := vm.eval(s, idx.Index)
			if vmErr != nil {
				return vmErr
			}
			if key, vmErr = vm.assignTo(key, x.Type().Key()); vmErr != nil {
				return vmErr
			}
			if v, vmErr = vm.assignTo(v, x.Type().Elem()); vmErr != nil {
				return vmErr
			}
			x.SetMapIndex(key, v)
			return nil
		}
	}
	dst, vmErr := vm.eval(s, lhs)
	if vmErr != nil {
		return vmErr
	}
	if !dst.CanSet() {
		return vm.eb.typeMismatch("assignable location", exprString(lhs))
	}
	if v, vmErr = vm.assignTo(v, dst.Type()); vmErr != nil {
		return vmErr
	}
	dst.Set(v)
	return nil
}

func (vm *VM) execDecl(s *scope, stmt *ast.DeclStmt) *VMError {
	gen, ok := stmt.Decl.(*ast.GenDecl)
	if !ok || gen.Tok != token.VAR {
		return vm.eb.unimplemented("declaration")
	}
	for _, spec := range gen.Specs {
		vs := spec.(*ast.ValueSpec)
		var typ reflect.Type
		if vs.Type != nil {
			t, vmErr := vm.mustType(vs.Type)
			if vmErr != nil {
				return vmErr
			}
			typ = t
		}
		var values []reflect.Value
		if len(vs.Values) > 0 {
			var vmErr *VMError
			if values, vmErr = vm.evalList(s, vs.Values, len(vs.Names)); vmErr != nil {
				return vmErr
			}
		}
		for i, name := range vs.Names {
			var v reflect.Value
			if values != nil {
				v = values[i]
			}
			t := typ
			if t == nil {
				if !v.IsValid() {
					return vm.eb.typeMismatch("typed value", "untyped nil")
				}
				t = v.Type()
			}
			if v.IsValid() {
				var vmErr *VMError
				if v, vmErr = vm.assignTo(v, t); vmErr != nil {
					return vmErr
				}
			}
			if name.Name != "_" {
				s.define(name.Name, t, v)
			}
		}
	}
	return nil
}
