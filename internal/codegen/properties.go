package codegen

import (
	"go/ast"
	"go/token"
	"reflect"
	"strconv"

	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/runtime/controls"
)

// SetControlProperty assigns a literal value to p on owner.
func (e *Emitter) SetControlProperty(owner string, p *controltree.Property, value any) error {
	x, err := e.values.EmitValue(value)
	if err != nil {
		return err
	}
	return e.SetControlPropertyExpr(owner, p, x)
}

// SetControlPropertyExpr assigns value to p on owner. Members become field
// assignments, value collection group members map writes, and everything
// else goes through the runtime descriptor's SetValue.
func (e *Emitter) SetControlPropertyExpr(owner string, p *controltree.Property, value ast.Expr) error {
	m, err := e.current("SetControlProperty")
	if err != nil {
		return err
	}
	switch p.Kind {
	case controltree.PropertyMember:
		if p.ReadOnly() {
			return diag.Errorf(diag.EmitMalformedMetadata, p.FullName(), "property %s is read-only", p.FullName())
		}
		m.append(assign(selector(owner, p.Field), value))
		return nil
	case controltree.PropertyGroupMember:
		if p.Group == nil {
			return diag.Errorf(diag.EmitMalformedMetadata, p.FullName(), "group member %s has no group", p.FullName())
		}
		if p.Group.Mode == controltree.GroupValueCollection {
			if p.Group.Field == "" {
				return diag.Errorf(diag.EmitMalformedMetadata, p.FullName(), "group %s has no collection field", p.Group.Name)
			}
			m.append(assign(&ast.IndexExpr{X: selector(owner, p.Group.Field), Index: stringLit(p.MemberName)}, value))
			return nil
		}
		fallthrough
	case controltree.PropertyDynamic:
		desc, err := e.PropertyDescriptor(p)
		if err != nil {
			return err
		}
		m.append(&ast.ExprStmt{X: &ast.CallExpr{
			Fun:  &ast.SelectorExpr{X: desc, Sel: ast.NewIdent("SetValue")},
			Args: []ast.Expr{ast.NewIdent(owner), value},
		}})
		return nil
	}
	return diag.Errorf(diag.EmitMalformedMetadata, p.FullName(), "unknown property kind %s", p.Kind)
}

// PropertyDescriptor returns an expression evaluating to the runtime
// descriptor of p. Group members are resolved once into a package variable.
func (e *Emitter) PropertyDescriptor(p *controltree.Property) (ast.Expr, error) {
	if p.DescriptorField != "" && p.DeclaringType != nil {
		return qualified(e.types.UseModule(p.DeclaringType.Package), p.DescriptorField), nil
	}
	if g := p.Group; p.Kind == controltree.PropertyGroupMember && g != nil && g.DescriptorField != "" && g.DeclaringType != nil {
		key := groupKey{group: g.DeclaringType.FullName() + "." + g.Name, member: p.MemberName}
		name, ok := e.groupFields[key]
		if !ok {
			name = "CachedGroupProperty_" + strconv.Itoa(len(e.groupFields))
			e.groupFields[key] = name
			e.addField(name, &ast.CallExpr{
				Fun:  &ast.SelectorExpr{X: qualified(e.types.UseModule(g.DeclaringType.Package), g.DescriptorField), Sel: ast.NewIdent("GetProperty")},
				Args: []ast.Expr{stringLit(p.MemberName)},
			})
		}
		return e.fieldRef(name), nil
	}
	runtime := p.Runtime
	if runtime == nil && p.Group != nil && p.Group.Runtime != nil {
		if rg, ok := p.Group.Runtime.(*controls.PropertyGroup); ok {
			runtime = rg.GetProperty(p.MemberName)
		}
	}
	if runtime != nil {
		idx := e.values.addObject(runtime)
		return e.values.EmitReference(idx, e.runtimeType(reflect.TypeOf(runtime))), nil
	}
	return nil, diag.Errorf(diag.EmitMalformedMetadata, p.FullName(), "property %s has no runtime descriptor", p.FullName())
}

// EnsureCollectionInitialized makes sure the collection stored in p is not
// nil, creating it when possible, and returns a variable holding it.
func (e *Emitter) EnsureCollectionInitialized(owner string, p *controltree.Property) (string, error) {
	m, err := e.current("EnsureCollectionInitialized")
	if err != nil {
		return "", err
	}
	if !p.Type.Nillable() {
		return "", diag.Errorf(diag.EmitMalformedMetadata, p.FullName(),
			"property %s of type %s cannot hold a collection", p.FullName(), p.Type.FullName())
	}
	isNil := func(x ast.Expr) ast.Expr {
		return &ast.BinaryExpr{X: x, Op: token.EQL, Y: ast.NewIdent("nil")}
	}
	switch {
	case p.Kind == controltree.PropertyMember && p.Field != "":
		create, err := e.CreateObjectExpr(p.Type)
		if err != nil {
			return "", err
		}
		m.append(&ast.IfStmt{
			Cond: isNil(selector(owner, p.Field)),
			Body: &ast.BlockStmt{List: []ast.Stmt{assign(selector(owner, p.Field), create)}},
		})
		return e.CreateVariable(selector(owner, p.Field))
	case p.Kind == controltree.PropertyMember && p.Getter != "":
		get := func() ast.Expr { return &ast.CallExpr{Fun: selector(owner, p.Getter)} }
		msg := "Property '" + p.FullName() + "' can't be used as control collection since it is not initialized and does not have setter available for automatic initialization"
		m.append(&ast.IfStmt{
			Cond: isNil(get()),
			Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ExprStmt{X: &ast.CallExpr{
				Fun:  ast.NewIdent("panic"),
				Args: []ast.Expr{stringLit(msg)},
			}}}},
		})
		return e.CreateVariable(get())
	case p.Kind == controltree.PropertyDynamic:
		desc, err := e.PropertyDescriptor(p)
		if err != nil {
			return "", err
		}
		create, err := e.CreateObjectExpr(p.Type)
		if err != nil {
			return "", err
		}
		get := func() ast.Expr {
			return &ast.CallExpr{Fun: &ast.SelectorExpr{X: desc, Sel: ast.NewIdent("GetValue")}, Args: []ast.Expr{ast.NewIdent(owner)}}
		}
		m.append(&ast.IfStmt{
			Cond: isNil(get()),
			Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ExprStmt{X: &ast.CallExpr{
				Fun:  &ast.SelectorExpr{X: desc, Sel: ast.NewIdent("SetValue")},
				Args: []ast.Expr{ast.NewIdent(owner), create},
			}}}},
		})
		return e.CreateVariable(&ast.TypeAssertExpr{X: get(), Type: e.types.ResolveTypeReference(p.Type)})
	}
	return "", diag.Errorf(diag.EmitMalformedMetadata, p.FullName(), "property %s cannot be initialized as a collection", p.FullName())
}
