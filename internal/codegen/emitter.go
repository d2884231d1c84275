// Package codegen emits Go source that rebuilds a control tree: a builder
// type per view with one method per view or template body.
//
// Statements are produced through an Emitter which owns the type table
// (import aliases), the value emitter (literals and object references) and a
// stack of methods under construction. BuildOutput assembles everything into
// a CompilationUnit.
package codegen

import (
	"go/ast"
	"go/token"
	"reflect"
	"strconv"

	"viewc/internal/diag"
	"viewc/internal/types"
	"viewc/runtime/controls"
	"viewc/runtime/objref"
)

// RuntimePackage is the import path of the control runtime library.
const RuntimePackage = "viewc/runtime/controls"

// Well-known parameter and method names of generated builders.
const (
	ControlBuilderFactoryParam = "controlBuilderFactory"
	ServiceProviderParam       = "services"
	TemplateContainerParam     = "templateContainer"
	BuildControlMethod         = "BuildControl"
	BuildTemplateMethod        = "BuildTemplate"
	DefaultChildrenProperty    = "Children"
)

// Options configures an Emitter. Registry is required.
type Options struct {
	Registry *types.Registry
	// Aliases is shared across the emitters of one build.
	Aliases *AliasCounter
	// Objects receives values that have no literal form.
	Objects     *objref.Table
	ObjectTable TableRef
	// FactoryBuilder renders the initializer of dependency injection
	// factory fields; nil selects controls.CreateFactory.
	FactoryBuilder FactoryBuilder
	// Tagger adds declarations that make the unit discoverable; nil
	// selects RegisterInit.
	Tagger Tagger
}

type field struct {
	name string
	init ast.Expr
}

type groupKey struct {
	group  string
	member string
}

// Emitter builds one compilation unit. It is not safe for concurrent use;
// compile views in parallel with one Emitter each.
type Emitter struct {
	opts   Options
	types  *TypeTable
	values *ValueEmitter
	stack  MethodStack

	methods   []*Method
	fields    []field
	fieldRefs []*ast.Ident
	vars      int

	groupFields map[groupKey]string
	factories   *InjectionFactoryCache

	dataContext *types.Descriptor
	controlType *types.Descriptor
}

// NewEmitter creates an emitter.
func NewEmitter(opts Options) *Emitter {
	if opts.Registry == nil {
		opts.Registry = types.NewRegistry()
	}
	if opts.Aliases == nil {
		opts.Aliases = &AliasCounter{}
	}
	if opts.Objects == nil {
		opts.Objects = objref.Default
	}
	if opts.FactoryBuilder == nil {
		opts.FactoryBuilder = DefaultFactoryBuilder
	}
	if opts.Tagger == nil {
		opts.Tagger = RegisterInit
	}
	tt := NewTypeTable(opts.Aliases)
	return &Emitter{
		opts:        opts,
		types:       tt,
		values:      NewValueEmitter(tt, opts.Registry, opts.Objects, opts.ObjectTable),
		groupFields: make(map[groupKey]string),
		factories:   NewInjectionFactoryCache(),
	}
}

// Types exposes the unit's type table.
func (e *Emitter) Types() *TypeTable { return e.types }

// Values exposes the unit's value emitter.
func (e *Emitter) Values() *ValueEmitter { return e.values }

// Registry returns the descriptor registry the emitter resolves types with.
func (e *Emitter) Registry() *types.Registry { return e.opts.Registry }

// SetBuilderTypes records the data context and control types reported by
// the generated DataContextType and ControlType methods.
func (e *Emitter) SetBuilderTypes(dataContext, control *types.Descriptor) {
	e.dataContext = dataContext
	e.controlType = control
}

// TypeRef resolves d to an AST type expression.
func (e *Emitter) TypeRef(d *types.Descriptor) ast.Expr {
	return e.types.ResolveTypeReference(d)
}

// EmitValue emits a literal for v.
func (e *Emitter) EmitValue(v any) (ast.Expr, error) {
	return e.values.EmitValue(v)
}

// runtimeType returns the descriptor of a runtime library type.
func (e *Emitter) runtimeType(rt reflect.Type) *types.Descriptor {
	return e.opts.Registry.MustFromReflect(rt)
}

// ControlBuilderParams returns the parameters of BuildControl.
func (e *Emitter) ControlBuilderParams() []Param {
	return []Param{
		{Name: ControlBuilderFactoryParam, Type: e.runtimeType(reflect.TypeFor[controls.ControlBuilderFactory]())},
		{Name: ServiceProviderParam, Type: e.runtimeType(reflect.TypeFor[controls.ServiceProvider]())},
	}
}

// TemplateParams returns the parameters of template bodies.
func (e *Emitter) TemplateParams() []Param {
	return append(e.ControlBuilderParams(),
		Param{Name: TemplateContainerParam, Type: e.runtimeType(reflect.TypeFor[controls.Control]())})
}

// ControlResult is the result type of BuildControl.
func (e *Emitter) ControlResult() *types.Descriptor {
	return e.runtimeType(reflect.TypeFor[controls.Control]())
}

// Method stack ---------------------------------------------------------------

// PushMethod starts a new method; subsequent statements go into it.
func (e *Emitter) PushMethod(name string, result *types.Descriptor, kind MethodKind, params ...Param) {
	e.stack.Push(&Method{Name: name, Result: result, Kind: kind, Params: params})
}

// PopMethod finishes the current method and adds it to the unit.
func (e *Emitter) PopMethod() error {
	m, ok := e.stack.Pop()
	if !ok {
		return errEmptyStack("PopMethod")
	}
	m.finish()
	e.methods = append(e.methods, m)
	return nil
}

// PopAsLambda finishes the current method and returns it as a function
// literal instead of adding it to the unit.
func (e *Emitter) PopAsLambda() (*ast.FuncLit, error) {
	m, ok := e.stack.Pop()
	if !ok {
		return nil, errEmptyStack("PopAsLambda")
	}
	m.finish()
	return &ast.FuncLit{Type: e.signature(m), Body: &ast.BlockStmt{List: m.Body}}, nil
}

func (e *Emitter) current(op string) (*Method, error) {
	m, ok := e.stack.Top()
	if !ok {
		return nil, errEmptyStack(op)
	}
	return m, nil
}

func errEmptyStack(op string) error {
	return diag.Errorf(diag.EmitEmptyMethodStack, op, "%s: no method is being emitted", op)
}

func (e *Emitter) signature(m *Method) *ast.FuncType {
	ft := &ast.FuncType{Params: &ast.FieldList{}}
	for _, p := range m.Params {
		ft.Params.List = append(ft.Params.List, &ast.Field{
			Names: []*ast.Ident{ast.NewIdent(p.Name)},
			Type:  e.types.ResolveTypeReference(p.Type),
		})
	}
	if res := e.types.ResolveTypeReference(m.Result); res != nil {
		ft.Results = &ast.FieldList{List: []*ast.Field{{Type: res}}}
	}
	return ft
}

// Variables and statements ---------------------------------------------------

func (e *Emitter) nextVar() string {
	name := "c" + strconv.Itoa(e.vars)
	e.vars++
	return name
}

func (e *Emitter) define(m *Method, name string, value ast.Expr) {
	m.declare(name, &ast.AssignStmt{
		Lhs: []ast.Expr{ast.NewIdent(name)},
		Tok: token.DEFINE,
		Rhs: []ast.Expr{value},
	})
}

// CreateVariable binds value to a fresh local and returns its name.
func (e *Emitter) CreateVariable(value ast.Expr) (string, error) {
	m, err := e.current("CreateVariable")
	if err != nil {
		return "", err
	}
	name := e.nextVar()
	e.define(m, name, value)
	return name, nil
}

// CreateObject allocates t with constructor arguments args (emitted as
// literals) and returns the variable holding it.
func (e *Emitter) CreateObject(t *types.Descriptor, args ...any) (string, error) {
	exprs := make([]ast.Expr, len(args))
	for i, a := range args {
		x, err := e.values.EmitValue(a)
		if err != nil {
			return "", err
		}
		exprs[i] = x
	}
	obj, err := e.CreateObjectExpr(t, exprs...)
	if err != nil {
		return "", err
	}
	return e.CreateVariable(obj)
}

// CreateObjectExpr returns an expression allocating t. Types with a
// registered constructor (on the type or, for pointers, on the element) are
// built by calling it; other pointers to structs become &T{}, maps and
// slices use make, structs a composite literal.
func (e *Emitter) CreateObjectExpr(t *types.Descriptor, args ...ast.Expr) (ast.Expr, error) {
	if t == nil {
		return nil, diag.Errorf(diag.EmitInvalidConstructor, "<nil>", "cannot construct a nil type")
	}
	target := t.Underlying()
	if ctor := target.Constructor(); ctor != "" {
		alias := e.types.Use(target)
		return &ast.CallExpr{Fun: qualified(alias, ctor), Args: args}, nil
	}
	if len(args) > 0 {
		return nil, diag.Errorf(diag.EmitInvalidConstructor, t.FullName(),
			"%s has no constructor taking %d arguments", t.FullName(), len(args))
	}
	switch {
	case t.Kind == types.KindPointer && target.Kind == types.KindStruct:
		return &ast.UnaryExpr{Op: token.AND, X: &ast.CompositeLit{Type: e.types.ResolveTypeReference(target)}}, nil
	case t.Kind == types.KindStruct || t.Kind == types.KindArray:
		return &ast.CompositeLit{Type: e.types.ResolveTypeReference(t)}, nil
	case t.Kind == types.KindMap:
		return &ast.CallExpr{Fun: ast.NewIdent("make"), Args: []ast.Expr{e.types.ResolveTypeReference(t)}}, nil
	case t.Kind == types.KindSlice:
		return &ast.CallExpr{Fun: ast.NewIdent("make"), Args: []ast.Expr{e.types.ResolveTypeReference(t), intLit("0")}}, nil
	case t.Kind == types.KindPointer:
		return &ast.CallExpr{Fun: ast.NewIdent("new"), Args: []ast.Expr{e.types.ResolveTypeReference(t.Elem)}}, nil
	}
	return nil, diag.Errorf(diag.EmitInvalidConstructor, t.FullName(), "cannot construct %s", t.FullName())
}

// Call returns pkg.fn(args...), aliasing pkg.
func (e *Emitter) Call(pkg, fn string, args ...ast.Expr) ast.Expr {
	return &ast.CallExpr{Fun: qualified(e.types.UseModule(pkg), fn), Args: args}
}

// SetProperty emits owner.name = value.
func (e *Emitter) SetProperty(owner, name string, value ast.Expr) error {
	m, err := e.current("SetProperty")
	if err != nil {
		return err
	}
	m.append(assign(selector(owner, name), value))
	return nil
}

// AddChild emits owner.collection.Add(child), or owner.Add(child) when
// collection is empty.
func (e *Emitter) AddChild(owner, child, collection string) error {
	m, err := e.current("AddChild")
	if err != nil {
		return err
	}
	var recv ast.Expr = ast.NewIdent(owner)
	if collection != "" {
		recv = selector(owner, collection)
	}
	m.append(&ast.ExprStmt{X: &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: recv, Sel: ast.NewIdent("Add")},
		Args: []ast.Expr{ast.NewIdent(child)},
	}})
	return nil
}

// AddDirective emits owner.Directives[name] = value.
func (e *Emitter) AddDirective(owner, name, value string) error {
	m, err := e.current("AddDirective")
	if err != nil {
		return err
	}
	m.append(assign(&ast.IndexExpr{X: selector(owner, "Directives"), Index: stringLit(name)}, stringLit(value)))
	return nil
}

// EmitStatement appends a raw statement to the current method.
func (e *Emitter) EmitStatement(stmt ast.Stmt) error {
	m, err := e.current("EmitStatement")
	if err != nil {
		return err
	}
	m.append(stmt)
	return nil
}

// EmitReturn appends `return value` (a bare return for nil).
func (e *Emitter) EmitReturn(value ast.Expr) error {
	ret := &ast.ReturnStmt{}
	if value != nil {
		ret.Results = []ast.Expr{value}
	}
	return e.EmitStatement(ret)
}

// EmitInvokeControlBuilder instantiates a markup control through the builder
// factory and returns the variable holding it, asserted to t.
func (e *Emitter) EmitInvokeControlBuilder(t *types.Descriptor, virtualPath string) (string, error) {
	m, err := e.current("EmitInvokeControlBuilder")
	if err != nil {
		return "", err
	}
	name := e.nextVar()
	builder, untyped := name+"_builder", name+"_untyped"
	e.define(m, builder, &ast.CallExpr{
		Fun:  selector(ControlBuilderFactoryParam, "GetControlBuilder"),
		Args: []ast.Expr{stringLit(virtualPath)},
	})
	e.define(m, untyped, &ast.CallExpr{
		Fun:  selector(builder, BuildControlMethod),
		Args: []ast.Expr{ast.NewIdent(ControlBuilderFactoryParam), ast.NewIdent(ServiceProviderParam)},
	})
	e.define(m, name, &ast.TypeAssertExpr{X: ast.NewIdent(untyped), Type: e.types.ResolveTypeReference(t)})
	return name, nil
}

// Fields ---------------------------------------------------------------------

// addField declares a package level variable. The returned identifier and
// every fieldRef of the same name are prefixed with the class name by
// BuildOutput.
func (e *Emitter) addField(name string, init ast.Expr) {
	e.fields = append(e.fields, field{name: name, init: init})
}

func (e *Emitter) fieldRef(name string) *ast.Ident {
	id := ast.NewIdent(name)
	e.fieldRefs = append(e.fieldRefs, id)
	return id
}

// AST helpers ----------------------------------------------------------------

func qualified(alias, name string) ast.Expr {
	if alias == CoreAlias {
		return ast.NewIdent(name)
	}
	return &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(name)}
}

func selector(x, sel string) *ast.SelectorExpr {
	return &ast.SelectorExpr{X: ast.NewIdent(x), Sel: ast.NewIdent(sel)}
}

func assign(lhs, rhs ast.Expr) *ast.AssignStmt {
	return &ast.AssignStmt{Lhs: []ast.Expr{lhs}, Tok: token.ASSIGN, Rhs: []ast.Expr{rhs}}
}

func stringLit(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}
