package codegen

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/printer"
	"go/token"
	"strconv"

	"viewc/internal/diag"
	"viewc/internal/names"
	"viewc/internal/types"
)

// Tagger appends declarations that make a built unit discoverable at run
// time, such as an init function registering the builder.
type Tagger func(e *Emitter, unit *CompilationUnit) []ast.Decl

// RegisterInit emits func init() { controls.RegisterBuilder(fileID, new(Class)) }.
func RegisterInit(e *Emitter, unit *CompilationUnit) []ast.Decl {
	call := e.Call(RuntimePackage, "RegisterBuilder",
		stringLit(unit.FileID),
		&ast.CallExpr{Fun: ast.NewIdent("new"), Args: []ast.Expr{ast.NewIdent(unit.ClassName)}},
	)
	return []ast.Decl{&ast.FuncDecl{
		Name: ast.NewIdent("init"),
		Type: &ast.FuncType{Params: &ast.FieldList{}},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ExprStmt{X: call}}},
	}}
}

// CompilationUnit is the generated file of one view.
type CompilationUnit struct {
	Package   string
	ClassName string
	FileID    string
	File      *ast.File
	Fset      *token.FileSet
	Imports   []Import
	// ObjectRefs counts the object table entries the unit depends on; such
	// units are only valid in the process that compiled them.
	ObjectRefs int
}

// Source prints and formats the unit.
func (u *CompilationUnit) Source() ([]byte, error) {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, u.Fset, u.File); err != nil {
		return nil, diag.Wrap(diag.EmitOutput, u.FileID, err, "print %s", u.ClassName)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, diag.Wrap(diag.EmitOutput, u.FileID, err, "format %s", u.ClassName)
	}
	return src, nil
}

// BuildOutput assembles the finished methods and fields into a unit. The
// method stack must be empty.
func (e *Emitter) BuildOutput(pkg, className, fileID string) (*CompilationUnit, error) {
	if n := e.stack.Len(); n != 0 {
		return nil, diag.Errorf(diag.EmitOutput, fileID, "%d methods are still being emitted", n)
	}
	unit := &CompilationUnit{
		Package:    pkg,
		ClassName:  className,
		FileID:     fileID,
		Fset:       token.NewFileSet(),
		ObjectRefs: e.values.refs,
	}

	e.prefixFields(names.Unexported(className))

	var decls []ast.Decl
	decls = append(decls, &ast.GenDecl{Tok: token.TYPE, Specs: []ast.Spec{&ast.TypeSpec{
		Name: ast.NewIdent(className),
		Type: &ast.StructType{Fields: &ast.FieldList{}},
	}}})

	override := false
	for _, m := range e.methods {
		ft := e.signature(m)
		body := &ast.BlockStmt{List: m.Body}
		if m.Kind == MethodStatic {
			decls = append(decls, &ast.FuncDecl{Name: ast.NewIdent(className + m.Name), Type: ft, Body: body})
			continue
		}
		if m.Kind == MethodOverride {
			override = true
		}
		decls = append(decls, &ast.FuncDecl{
			Recv: receiver(className),
			Name: ast.NewIdent(m.Name),
			Type: ft,
			Body: body,
		})
	}
	decls = append(decls,
		e.typeAccessor(className, "DataContextType", e.dataContext),
		e.typeAccessor(className, "ControlType", e.controlType),
	)

	if len(e.fields) > 0 {
		gd := &ast.GenDecl{Tok: token.VAR, Lparen: 1, Rparen: 1}
		for _, f := range e.fields {
			gd.Specs = append(gd.Specs, &ast.ValueSpec{
				Names:  []*ast.Ident{ast.NewIdent(f.name)},
				Values: []ast.Expr{f.init},
			})
		}
		decls = append(decls, gd)
	}

	if override {
		decls = append(decls, &ast.GenDecl{Tok: token.VAR, Specs: []ast.Spec{&ast.ValueSpec{
			Names: []*ast.Ident{ast.NewIdent("_")},
			Type:  qualified(e.types.UseModule(RuntimePackage), "ControlBuilder"),
			Values: []ast.Expr{&ast.CallExpr{
				Fun:  &ast.ParenExpr{X: &ast.StarExpr{X: ast.NewIdent(className)}},
				Args: []ast.Expr{ast.NewIdent("nil")},
			}},
		}}})
	}

	decls = append(decls, e.opts.Tagger(e, unit)...)

	// imports last: every declaration above may have aliased a module
	unit.Imports = e.types.Imports()
	if len(unit.Imports) > 0 {
		imp := &ast.GenDecl{Tok: token.IMPORT, Lparen: 1, Rparen: 1}
		for _, i := range unit.Imports {
			imp.Specs = append(imp.Specs, &ast.ImportSpec{
				Name: ast.NewIdent(i.Alias),
				Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(i.Path)},
			})
		}
		decls = append([]ast.Decl{imp}, decls...)
	}

	unit.File = &ast.File{Name: ast.NewIdent(pkg), Decls: decls}
	return unit, nil
}

// prefixFields renames package variables so units sharing a Go package do
// not collide.
func (e *Emitter) prefixFields(prefix string) {
	renamed := make(map[*ast.Ident]bool, len(e.fieldRefs))
	for _, id := range e.fieldRefs {
		if !renamed[id] {
			renamed[id] = true
			id.Name = prefix + id.Name
		}
	}
	for i := range e.fields {
		e.fields[i].name = prefix + e.fields[i].name
	}
	e.fieldRefs = nil
}

func (e *Emitter) typeAccessor(className, name string, d *types.Descriptor) ast.Decl {
	var value ast.Expr = ast.NewIdent("nil")
	if !d.IsVoid() {
		value = e.values.EmitTypeOf(d)
	}
	return &ast.FuncDecl{
		Recv: receiver(className),
		Name: ast.NewIdent(name),
		Type: &ast.FuncType{
			Params:  &ast.FieldList{},
			Results: &ast.FieldList{List: []*ast.Field{{Type: qualified(e.types.UseModule(reflectPackage), "Type")}}},
		},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{Results: []ast.Expr{value}}}},
	}
}

func receiver(className string) *ast.FieldList {
	return &ast.FieldList{List: []*ast.Field{{
		Names: []*ast.Ident{ast.NewIdent("b")},
		Type:  &ast.StarExpr{X: ast.NewIdent(className)},
	}}}
}
