// Package viewcompiler turns a parsed view into a compilation unit: one
// builder type whose BuildControl method recreates the control tree.
package viewcompiler

import (
	"go/ast"
	"path"
	"path/filepath"
	"reflect"
	"strings"

	"viewc/internal/catalog"
	"viewc/internal/codegen"
	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/internal/names"
	"viewc/internal/resolver"
	"viewc/internal/tree"
	"viewc/internal/types"
	"viewc/runtime/controls"
	"viewc/runtime/objref"
)

// Options configures a Compiler. Resolver and Catalog are required.
type Options struct {
	Resolver *resolver.Resolver
	Catalog  *catalog.Catalog
	// Package is the Go package name of generated files.
	Package string
	// Aliases is shared by all units of one build.
	Aliases *codegen.AliasCounter
	Objects *objref.Table
	// InlineBindings makes generated code construct bindings itself instead
	// of reading them from Objects. Units meant to be built into another
	// program need it.
	InlineBindings bool
	FactoryBuilder codegen.FactoryBuilder
	Tagger         codegen.Tagger
}

// Compiler compiles views. Safe for concurrent use: every Compile call gets
// its own emitter, while resolution caches are shared.
type Compiler struct {
	opts Options
}

func New(opts Options) *Compiler {
	if opts.Package == "" {
		opts.Package = "views"
	}
	if opts.Aliases == nil {
		opts.Aliases = &codegen.AliasCounter{}
	}
	return &Compiler{opts: opts}
}

// ClassName derives the builder type name from a virtual path.
func ClassName(virtualPath string) string {
	return names.Exported(strings.TrimSuffix(virtualPath, path.Ext(virtualPath)))
}

// unit carries the state of one Compile call.
type unit struct {
	c    *Compiler
	e    *codegen.Emitter
	view *tree.View
}

// Compile builds the unit of v.
func (c *Compiler) Compile(v *tree.View) (*codegen.CompilationUnit, error) {
	cat := c.opts.Catalog
	ct, err := cat.ControlTypeOf(v, c.rootType(v.Path))
	if err != nil {
		return nil, diag.Locate(err, diag.Location{File: v.Path})
	}
	md, err := c.opts.Resolver.ResolveControlType(ct)
	if err != nil {
		return nil, diag.Locate(err, diag.Location{File: v.Path})
	}

	e := codegen.NewEmitter(codegen.Options{
		Registry:       cat.Registry(),
		Aliases:        c.opts.Aliases,
		Objects:        c.opts.Objects,
		FactoryBuilder: c.opts.FactoryBuilder,
		Tagger:         c.opts.Tagger,
	})
	u := &unit{c: c, e: e, view: v}

	var dc *controls.DataContextStack
	if ct.DataContext != nil {
		dc = dc.Push(ct.DataContext.FullName())
	}
	e.SetBuilderTypes(ct.DataContext, types.PointerTo(ct.Type))
	e.PushMethod(codegen.BuildControlMethod, e.ControlResult(), codegen.MethodOverride, e.ControlBuilderParams()...)

	root, err := e.CreateObject(types.PointerTo(ct.Type))
	if err != nil {
		return nil, diag.Locate(err, diag.Location{File: v.Path})
	}
	for _, d := range v.Directives {
		if err := e.AddDirective(root, d.Name, d.Value); err != nil {
			return nil, err
		}
	}
	if err := u.compileContent(root, md, v.Nodes, dc, ""); err != nil {
		return nil, err
	}
	if err := e.EmitReturn(ast.NewIdent(root)); err != nil {
		return nil, err
	}
	if err := e.PopMethod(); err != nil {
		return nil, err
	}
	return e.BuildOutput(c.opts.Package, ClassName(v.Path), v.Path)
}

// rootType is the default base of a file: markup controls named by a rule
// build a MarkupControl, everything else is a page.
func (c *Compiler) rootType(file string) reflect.Type {
	file = path.Clean(filepath.ToSlash(file))
	for _, r := range c.opts.Resolver.Rules() {
		if r.Src != "" && path.Clean(filepath.ToSlash(r.Src)) == file {
			return reflect.TypeFor[controls.MarkupControl]()
		}
	}
	return reflect.TypeFor[controls.View]()
}

func (u *unit) locate(err error, n *tree.Node, path string) error {
	loc := diag.Location{File: u.view.Path, Path: path}
	if n != nil {
		loc.Line = n.Line
	}
	return diag.Locate(err, loc)
}

// compileNode emits the control for n and returns its variable.
func (u *unit) compileNode(n *tree.Node, dc *controls.DataContextStack, path string) (string, error) {
	e := u.e
	if n.IsText() {
		name, err := u.compileText(n.Text)
		return name, u.locate(err, n, path)
	}

	md, args, err := u.c.opts.Resolver.ResolveControl(n.Prefix, n.Tag)
	if err != nil {
		return "", u.locate(err, n, path)
	}
	ptr := types.PointerTo(md.Type.Type)
	var name string
	switch {
	case md.Type.IsMarkup():
		name, err = e.EmitInvokeControlBuilder(ptr, md.Type.VirtualPath)
	case md.RequiresInjection:
		name, err = u.injectControl(ptr, args)
	default:
		name, err = e.CreateObject(ptr, args...)
	}
	if err != nil {
		return "", u.locate(err, n, path)
	}

	for _, a := range n.Attributes {
		if err := u.compileAttribute(name, md, a, dc); err != nil {
			return "", u.locate(err, n, path)
		}
	}
	for _, pe := range n.Properties {
		p, ok := md.FindProperty(pe.Name)
		if !ok {
			return "", u.locate(unknownProperty(md, pe.Name), n, path)
		}
		if err := u.compileProperty(name, p, pe.Children, dc, path+"/"+pe.Name); err != nil {
			return "", u.locate(err, n, path)
		}
	}
	if err := u.compileContent(name, md, n.Children, dc, path); err != nil {
		return "", u.locate(err, n, path)
	}
	return name, nil
}

// injectControl creates t through a cached object factory. args are passed
// explicitly; the factory takes the remaining constructor parameters from
// the service provider.
func (u *unit) injectControl(t *types.Descriptor, args []any) (string, error) {
	e := u.e
	in := make([]codegen.InjectionArg, len(args))
	for i, a := range args {
		at, err := e.Registry().FromReflect(reflect.TypeOf(a))
		if err != nil {
			return "", diag.Wrap(diag.EmitInvalidConstructor, t.FullName(), err,
				"argument %d of %s cannot be referenced", i, t.FullName())
		}
		x, err := e.EmitValue(a)
		if err != nil {
			return "", err
		}
		in[i] = codegen.InjectionArg{Type: at, Expr: x}
	}
	return e.EmitInjectionFactory(t, in...)
}

// compileText emits a Literal holding text.
func (u *unit) compileText(text string) (string, error) {
	lit := u.e.Registry().MustFromReflect(reflect.TypeFor[controls.Literal]())
	md, err := u.c.opts.Resolver.ResolveControlType(controltree.ControlType{Type: lit})
	if err != nil {
		return "", err
	}
	p, ok := md.FindProperty("Text")
	if !ok {
		return "", unknownProperty(md, "Text")
	}
	name, err := u.e.CreateObject(types.PointerTo(lit))
	if err != nil {
		return "", err
	}
	return name, u.e.SetControlProperty(name, p, text)
}

func unknownProperty(md *controltree.Metadata, name string) error {
	return diag.Errorf(diag.ResolveUnknownProperty, name,
		"the control %s does not have a property %s", md.Type.Type.Name, name)
}

// compileContent places child nodes into the default content property, or
// into the control's own children when it has none.
func (u *unit) compileContent(owner string, md *controltree.Metadata, nodes []*tree.Node, dc *controls.DataContextStack, path string) error {
	if len(nodes) == 0 {
		return nil
	}
	if md.DefaultContent != nil {
		return u.compileProperty(owner, md.DefaultContent, nodes, dc, path)
	}
	if !md.AllowsContent {
		return diag.Errorf(diag.ResolveContentNotAllowed, md.Type.Type.Name,
			"the control %s cannot have content", md.Type.Type.Name)
	}
	for i, n := range nodes {
		childPath := path + "/" + itoa(i)
		child, err := u.compileNode(n, dc, childPath)
		if err != nil {
			return err
		}
		if err := u.e.AddChild(owner, child, ""); err != nil {
			return err
		}
	}
	return nil
}

// compileProperty fills a property element: a template body or a
// collection of controls.
func (u *unit) compileProperty(owner string, p *controltree.Property, nodes []*tree.Node, dc *controls.DataContextStack, path string) error {
	e := u.e
	if p.IsTemplate {
		return u.compileTemplate(owner, p, nodes, dc, path)
	}
	if p.Type == nil || !p.Type.Nillable() || p.Type.Kind == types.KindInterface {
		return diag.Errorf(diag.ResolveContentNotAllowed, p.FullName(),
			"the property %s cannot contain controls", p.FullName())
	}
	coll, err := e.EnsureCollectionInitialized(owner, p)
	if err != nil {
		return err
	}
	for i, n := range nodes {
		child, err := u.compileNode(n, dc, path+"/"+itoa(i))
		if err != nil {
			return err
		}
		if err := e.AddChild(coll, child, ""); err != nil {
			return err
		}
	}
	return nil
}

// bindingExpr returns a call recreating b, data context stack included.
func (u *unit) bindingExpr(b *controls.BindingExpression) (ast.Expr, error) {
	e := u.e
	args := make([]ast.Expr, 0, 3)
	for _, s := range []string{b.Kind, b.Expression, b.ParameterName} {
		x, err := e.EmitValue(s)
		if err != nil {
			return nil, err
		}
		args = append(args, x)
	}
	var dc ast.Expr = ast.NewIdent("nil")
	if b.DataContext != nil {
		frames := b.DataContext.Types()
		exprs := make([]ast.Expr, len(frames))
		for i, f := range frames {
			x, err := e.EmitValue(f)
			if err != nil {
				return nil, err
			}
			exprs[i] = x
		}
		dc = e.Call(codegen.RuntimePackage, "NewDataContextStack", exprs...)
	}
	return e.Call(codegen.RuntimePackage, "NewBindingExpression", append(args, dc)...), nil
}

// compileTemplate emits the body as a function literal wrapped in a
// DelegateTemplate. The body runs against a nested data context.
func (u *unit) compileTemplate(owner string, p *controltree.Property, nodes []*tree.Node, dc *controls.DataContextStack, path string) error {
	e := u.e
	// Item types are not known here, so the template's frame is named after
	// the property it fills.
	inner := dc.Push(p.FullName())
	e.PushMethod(codegen.BuildTemplateMethod, nil, codegen.MethodInstance, e.TemplateParams()...)
	for i, n := range nodes {
		child, err := u.compileNode(n, inner, path+"/"+itoa(i))
		if err != nil {
			return err
		}
		if err := e.AddChild(codegen.TemplateContainerParam, child, ""); err != nil {
			return err
		}
	}
	fn, err := e.PopAsLambda()
	if err != nil {
		return err
	}
	tmpl, err := e.CreateVariable(e.Call(codegen.RuntimePackage, "NewDelegateTemplate", fn))
	if err != nil {
		return err
	}
	return e.SetControlPropertyExpr(owner, p, ast.NewIdent(tmpl))
}

func (u *unit) compileAttribute(owner string, md *controltree.Metadata, a tree.Attribute, dc *controls.DataContextStack) error {
	p, ok := md.FindProperty(a.Name)
	if !ok {
		return unknownProperty(md, a.Name)
	}
	if a.Binding != nil {
		opts, err := u.c.opts.Resolver.ResolveBinding(a.Binding.Kind)
		if err != nil {
			return err
		}
		if p.Kind == controltree.PropertyMember {
			return diag.Errorf(diag.ResolveBindingNotAllowed, p.FullName(),
				"the property %s does not support bindings", p.FullName())
		}
		b := &controls.BindingExpression{
			Kind:          opts.Name,
			Expression:    a.Binding.Expression,
			ParameterName: opts.ParameterName,
			DataContext:   dc,
		}
		if u.c.opts.InlineBindings {
			x, err := u.bindingExpr(b)
			if err != nil {
				return err
			}
			return u.e.SetControlPropertyExpr(owner, p, x)
		}
		return u.e.SetControlProperty(owner, p, b)
	}
	if p.IsTemplate {
		return diag.Errorf(diag.ResolveInvalidValue, p.FullName(),
			"the template %s must be written as a property element", p.FullName())
	}
	v, err := ConvertLiteral(p.Type, a.Value)
	if err != nil {
		return diag.Wrap(diag.ResolveInvalidValue, p.FullName(), err,
			"the value %q is not valid for %s", a.Value, p.FullName())
	}
	return u.e.SetControlProperty(owner, p, v)
}
