// Package vm interprets generated builder files without compiling them.
//
// Only the subset of Go the code generator emits is understood: package
// variables, methods and functions whose bodies declare locals, assign
// fields and map entries, call functions and methods, branch on nil checks
// and return. Imported packages are served from reflect based export
// tables.
package vm

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"

	"go.uber.org/zap"
)

// Options configures VM execution.
type Options struct {
	Trace  bool        // Log every call
	Logger *zap.Logger // Receives trace output; nil disables it
	// OpaqueImports accepts imports without exports. Every type named
	// through them resolves to Opaque, so data context packages need not
	// be linked into the host.
	OpaqueImports bool
}

// Opaque stands in for types of packages imported with OpaqueImports.
type Opaque struct{}

// Program is a loaded generated file with its package variables evaluated.
// A Program may be called from several goroutines.
type Program struct {
	fset    *token.FileSet
	file    *ast.File
	exports Exports
	imports map[string]string
	opaque  map[string]bool
	funcs   map[string]*ast.FuncDecl
	globals *scope
	opts    Options
}

// VM executes one call into a Program.
type VM struct {
	prog  *Program
	Stack []Frame
	eb    *errorBuilder
}

// Load parses src and prepares it for execution.
func Load(filename string, src []byte, exports Exports, opts Options) (*Program, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("vm: parse %s: %w", filename, err)
	}
	return LoadFile(fset, f, exports, opts)
}

// LoadFile prepares an already parsed file.
func LoadFile(fset *token.FileSet, f *ast.File, exports Exports, opts Options) (*Program, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	p := &Program{
		fset:    fset,
		file:    f,
		exports: exports,
		imports: make(map[string]string),
		opaque:  make(map[string]bool),
		funcs:   make(map[string]*ast.FuncDecl),
		globals: newScope(nil),
		opts:    opts,
	}
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return nil, fmt.Errorf("vm: bad import %s: %w", imp.Path.Value, err)
		}
		if _, ok := exports[path]; !ok {
			if !opts.OpaqueImports {
				return nil, &VMError{Code: PanicUnknownPackage, Message: fmt.Sprintf("package %q has no exports", path)}
			}
			p.opaque[path] = true
		}
		alias := lastElem(path)
		if imp.Name != nil {
			alias = imp.Name.Name
		}
		p.imports[alias] = path
	}
	for _, decl := range f.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name != "init" && fn.Body != nil {
			p.funcs[fn.Name.Name] = fn
		}
	}

	vm := p.newVM("<package>")
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			continue
		}
		for _, spec := range gen.Specs {
			if err := vm.run(func() *VMError { return vm.globalVar(spec.(*ast.ValueSpec)) }); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// newVM returns a VM whose stack starts with entry, or empty when entry
// is "".
func (p *Program) newVM(entry string) *VM {
	vm := &VM{prog: p}
	if entry != "" {
		vm.Stack = []Frame{{Func: entry}}
	}
	vm.eb = &errorBuilder{vm: vm}
	return vm
}

// Funcs lists the callable functions and methods.
func (p *Program) Funcs() []string {
	out := make([]string, 0, len(p.funcs))
	for _, decl := range p.file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok {
			if _, ok := p.funcs[fn.Name.Name]; ok {
				out = append(out, fn.Name.Name)
			}
		}
	}
	return out
}

// Var returns the value of a package variable.
func (p *Program) Var(name string) (any, bool) {
	slot, ok := p.globals.locals[name]
	if !ok {
		return nil, false
	}
	return slot.V.Interface(), true
}

// Call runs the function or method name. The receiver of methods is not
// bound: generated builders never read it.
func (p *Program) Call(name string, args ...any) ([]any, error) {
	fn, ok := p.funcs[name]
	if !ok {
		return nil, &VMError{Code: PanicUnknownFunction, Message: fmt.Sprintf("function %s not found", name)}
	}
	if p.opts.Trace {
		p.opts.Logger.Debug("vm call", zap.String("func", name), zap.Int("args", len(args)))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	vm := p.newVM("")
	var results []reflect.Value
	if err := vm.run(func() *VMError {
		var vmErr *VMError
		results, vmErr = vm.callFunc(name, fn.Type, fn.Body, p.globals, in)
		return vmErr
	}); err != nil {
		return nil, err
	}
	out := make([]any, len(results))
	for i, r := range results {
		out[i] = r.Interface()
	}
	return out, nil
}

// run executes f, converting panics raised by reflect or by the program
// into a VMError.
func (vm *VM) run(f func() *VMError) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = vm.recovered(r)
		}
	}()
	if vmErr := f(); vmErr != nil {
		return vmErr
	}
	return nil
}

func (vm *VM) recovered(r any) *VMError {
	switch v := r.(type) {
	case *VMError:
		return v
	case programPanic:
		return vm.eb.makeError(PanicExplicit, fmt.Sprint(v.value))
	default:
		return vm.eb.makeError(PanicRuntime, fmt.Sprint(v))
	}
}

// programPanic carries the argument of a panic call in the program.
type programPanic struct{ value any }

func (vm *VM) position(pos token.Pos) token.Position {
	if !pos.IsValid() || vm.prog.fset == nil {
		return token.Position{}
	}
	return vm.prog.fset.Position(pos)
}

func (vm *VM) globalVar(spec *ast.ValueSpec) *VMError {
	vm.Stack[len(vm.Stack)-1].Pos = spec.Pos()
	var typ reflect.Type
	if spec.Type != nil {
		t, vmErr := vm.mustType(spec.Type)
		if vmErr != nil {
			return vmErr
		}
		typ = t
	}
	for i, name := range spec.Names {
		if name.Name == "_" {
			continue
		}
		var v reflect.Value
		if i < len(spec.Values) {
			var vmErr *VMError
			if v, vmErr = vm.eval(vm.prog.globals, spec.Values[i]); vmErr != nil {
				return vmErr
			}
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
		vm.prog.globals.define(name.Name, t, v)
	}
	return nil
}

// callFunc binds args to the parameters of ft and runs body. The frame
// stays on the stack when the body panics so the recovered error still
// sees it.
func (vm *VM) callFunc(name string, ft *ast.FuncType, body *ast.BlockStmt, outer *scope, args []reflect.Value) ([]reflect.Value, *VMError) {
	vm.Stack = append(vm.Stack, Frame{Func: name, Pos: body.Pos()})
	results, vmErr := vm.callBody(name, ft, body, outer, args)
	vm.Stack = vm.Stack[:len(vm.Stack)-1]
	return results, vmErr
}

func (vm *VM) callBody(name string, ft *ast.FuncType, body *ast.BlockStmt, outer *scope, args []reflect.Value) ([]reflect.Value, *VMError) {
	params, vmErr := vm.fieldTypes(ft.Params)
	if vmErr != nil {
		return nil, vmErr
	}
	if len(params) != len(args) {
		return nil, vm.eb.arity(name, len(params), len(args))
	}
	s := newScope(outer)
	for i, p := range params {
		v := args[i]
		if !v.IsValid() {
			v = reflect.Zero(p.typ)
		}
		v, vmErr = vm.assignTo(v, p.typ)
		if vmErr != nil {
			return nil, vmErr
		}
		if p.name != "" && p.name != "_" {
			s.define(p.name, p.typ, v)
		}
	}

	results, returned, vmErr := vm.execBlock(s, body)
	if vmErr != nil {
		return nil, vmErr
	}
	want, vmErr := vm.fieldTypes(ft.Results)
	if vmErr != nil {
		return nil, vmErr
	}
	if !returned {
		results = nil
	}
	if len(results) != len(want) {
		return nil, vm.eb.arity("return from "+name, len(want), len(results))
	}
	for i, w := range want {
		if results[i], vmErr = vm.assignTo(results[i], w.typ); vmErr != nil {
			return nil, vmErr
		}
	}
	return results, nil
}

type param struct {
	name string
	typ  reflect.Type
}

func (vm *VM) fieldTypes(fl *ast.FieldList) ([]param, *VMError) {
	if fl == nil {
		return nil, nil
	}
	var out []param
	for _, f := range fl.List {
		t, vmErr := vm.mustType(f.Type)
		if vmErr != nil {
			return nil, vmErr
		}
		if len(f.Names) == 0 {
			out = append(out, param{typ: t})
			continue
		}
		for _, n := range f.Names {
			out = append(out, param{name: n.Name, typ: t})
		}
	}
	return out, nil
}

// funcLit turns a function literal into a callable reflect value. Every
// invocation runs on a fresh VM so closures may outlive the call that
// created them.
func (vm *VM) funcLit(s *scope, lit *ast.FuncLit) (reflect.Value, *VMError) {
	params, vmErr := vm.fieldTypes(lit.Type.Params)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	results, vmErr := vm.fieldTypes(lit.Type.Results)
	if vmErr != nil {
		return reflect.Value{}, vmErr
	}
	in := make([]reflect.Type, len(params))
	for i, p := range params {
		in[i] = p.typ
	}
	out := make([]reflect.Type, len(results))
	for i, r := range results {
		out[i] = r.typ
	}
	name := vm.Stack[len(vm.Stack)-1].Func + ".func"
	prog := vm.prog
	ft := reflect.FuncOf(in, out, false)
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		inner := prog.newVM("")
		var res []reflect.Value
		if err := inner.run(func() *VMError {
			var vmErr *VMError
			res, vmErr = inner.callFunc(name, lit.Type, lit.Body, s, args)
			return vmErr
		}); err != nil {
			panic(err)
		}
		return res
	}), nil
}

func lastElem(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
