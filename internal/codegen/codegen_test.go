package codegen

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"

	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/internal/types"
	"viewc/runtime/controls"
	"viewc/runtime/objref"
)

func render(t *testing.T, n any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), n); err != nil {
		t.Fatalf("print: %v", err)
	}
	return buf.String()
}

func newTestEmitter(t *testing.T) *Emitter {
	t.Helper()
	reg := types.NewRegistry()
	for _, c := range controls.Library() {
		if c.Constructor == "" {
			continue
		}
		if _, err := reg.SetConstructor(c.Type, c.Constructor); err != nil {
			t.Fatalf("SetConstructor: %v", err)
		}
	}
	if _, err := reg.RegisterEnum(reflect.TypeFor[controls.TextOptions](), true,
		types.EnumMember{Name: "None", Ident: "TextOptionsNone", Value: 0},
		types.EnumMember{Name: "Trim", Ident: "TextOptionsTrim", Value: 1},
		types.EnumMember{Name: "Upper", Ident: "TextOptionsUpper", Value: 2},
		types.EnumMember{Name: "Lower", Ident: "TextOptionsLower", Value: 4},
	); err != nil {
		t.Fatalf("RegisterEnum: %v", err)
	}
	return NewEmitter(Options{Registry: reg, Objects: objref.New()})
}

func typeOf[T any](e *Emitter) *types.Descriptor {
	return e.Registry().MustFromReflect(reflect.TypeFor[T]())
}

func TestTypeTableSharesCounter(t *testing.T) {
	counter := &AliasCounter{}
	t1 := NewTypeTable(counter)
	t2 := NewTypeTable(counter)
	if got := t1.UseModule("example.com/a"); got != "Asm_0" {
		t.Fatalf("first alias = %q", got)
	}
	if got := t2.UseModule("example.com/b"); got != "Asm_1" {
		t.Fatalf("second alias = %q", got)
	}
	if got := t2.UseModule("example.com/a"); got != "Asm_2" {
		t.Fatalf("aliases are per table, got %q", got)
	}
	if got := t1.UseModule("example.com/a"); got != "Asm_0" {
		t.Fatalf("alias should be stable, got %q", got)
	}
	if got := t1.UseModule(""); got != CoreAlias {
		t.Fatalf("universe alias = %q", got)
	}
	if counter.Value() != 3 {
		t.Fatalf("counter = %d, want 3", counter.Value())
	}
	imports := t2.Imports()
	if len(imports) != 2 || imports[0].Alias != "Asm_1" || imports[1].Path != "example.com/a" {
		t.Fatalf("imports = %+v", imports)
	}
}

func TestResolveTypeReference(t *testing.T) {
	e := newTestEmitter(t)
	b := e.Registry().Builtins()
	tests := []struct {
		d    *types.Descriptor
		want string
	}{
		{b.Int, "int"},
		{typeOf[map[string]*controls.Button](e), "map[string]*Asm_0.Button"},
		{types.ArrayOf(2, b.Float64), "[2]float64"},
		{types.FuncOf([]*types.Descriptor{b.String}, []*types.Descriptor{b.Error}), "func(string) error"},
		{b.Any, "any"},
		{types.Instantiate(&types.Descriptor{Kind: types.KindStruct, Name: "List", Package: "example.com/gen"}, b.Int), "Asm_1.List[int]"},
	}
	for _, tc := range tests {
		if got := render(t, e.TypeRef(tc.d)); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.d.FullName(), got, tc.want)
		}
	}
	if e.TypeRef(b.Void) != nil {
		t.Fatalf("void should resolve to nil")
	}
}

func TestEmitValueLiterals(t *testing.T) {
	e := newTestEmitter(t)
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, "nil"},
		{"int", 42, "42"},
		{"negative int8", int8(-3), "int8(-3)"},
		{"min int64", int64(math.MinInt64), "int64(-9223372036854775808)"},
		{"uint", uint(7), "uint(7)"},
		{"string", `a"b`, `"a\"b"`},
		{"bool", true, "true"},
		{"whole float", 1.0, "1.0"},
		{"negative float", -2.5, "-2.5"},
		{"float32", float32(0.5), "float32(0.5)"},
		{"int slice", []int{1, 2}, "[]int{1, 2}"},
		{"nil slice", []string(nil), "[]string(nil)"},
		{"rational", big.NewRat(-1, 3), "Asm_0.NewRat(-1, 3)"},
		{"enum member", controls.TextOptionsUpper, "Asm_1.TextOptionsUpper"},
		{"flags", controls.TextOptionsTrim | controls.TextOptionsUpper, "Asm_1.TextOptionsTrim | Asm_1.TextOptionsUpper"},
		{"undeclared flag", controls.TextOptions(8), "Asm_1.TextOptions(8)"},
		{"named uint", controls.GroupMode(1), "Asm_1.GroupMode(1)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			x, err := e.EmitValue(tc.v)
			if err != nil {
				t.Fatalf("EmitValue: %v", err)
			}
			if got := render(t, x); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEmitValueSpecialFloats(t *testing.T) {
	e := newTestEmitter(t)
	tests := []struct {
		v    float64
		want string
	}{
		{math.NaN(), "Asm_0.NaN()"},
		{math.Inf(1), "Asm_0.Inf(1)"},
		{math.Inf(-1), "Asm_0.Inf(-1)"},
		{math.Copysign(0, -1), "Asm_0.Copysign(0.0, -1)"},
		{1e21, "1e+21"},
	}
	for _, tc := range tests {
		x, err := e.EmitValue(tc.v)
		if err != nil {
			t.Fatalf("EmitValue(%v): %v", tc.v, err)
		}
		if got := render(t, x); got != tc.want {
			t.Errorf("EmitValue(%v) = %q, want %q", tc.v, got, tc.want)
		}
	}
}

func TestEmitValueUnsupported(t *testing.T) {
	e := newTestEmitter(t)
	_, err := e.EmitValue(map[string]int{"a": 1})
	if diag.CodeOf(err) != diag.EmitUnsupportedValue {
		t.Fatalf("expected unsupported value error, got %v", err)
	}
	if !strings.Contains(err.Error(), "map[string]int") {
		t.Fatalf("error should name the type: %v", err)
	}
	if _, err := e.EmitValue(new(big.Rat).SetFrac(new(big.Int).Lsh(big.NewInt(1), 80), big.NewInt(3))); diag.CodeOf(err) != diag.EmitUnsupportedValue {
		t.Fatalf("oversized rational should fail, got %v", err)
	}
}

func TestObjectReferencesKeepIdentity(t *testing.T) {
	e := newTestEmitter(t)
	b := &controls.BindingExpression{Kind: "value", Expression: "Name"}
	x, err := e.EmitValue(b)
	if err != nil {
		t.Fatalf("EmitValue: %v", err)
	}
	if got := render(t, x); got != "Asm_0.Default.Ref(1).(*Asm_1.BindingExpression)" {
		t.Fatalf("reference = %q", got)
	}
	got, ok := e.opts.Objects.Get(1)
	if !ok || got != b {
		t.Fatalf("object table should hold the original pointer")
	}
	if e.Values().Refs() != 1 {
		t.Fatalf("refs = %d", e.Values().Refs())
	}
}

func TestMethodStackErrors(t *testing.T) {
	e := newTestEmitter(t)
	if err := e.PopMethod(); diag.CodeOf(err) != diag.EmitEmptyMethodStack {
		t.Fatalf("PopMethod on empty stack: %v", err)
	}
	if _, err := e.PopAsLambda(); diag.CodeOf(err) != diag.EmitEmptyMethodStack {
		t.Fatalf("PopAsLambda on empty stack: %v", err)
	}
	if _, err := e.CreateVariable(ast.NewIdent("x")); diag.CodeOf(err) != diag.EmitEmptyMethodStack {
		t.Fatalf("CreateVariable outside a method: %v", err)
	}
	if err := e.EmitReturn(nil); diag.CodeOf(err) != diag.EmitEmptyMethodStack {
		t.Fatalf("EmitReturn outside a method: %v", err)
	}
	e.PushMethod("Open", nil, MethodInstance)
	if _, err := e.BuildOutput("views", "Open", "open.json"); diag.CodeOf(err) != diag.EmitOutput {
		t.Fatalf("BuildOutput with open method: %v", err)
	}
}

func buildPage(t *testing.T, e *Emitter, body func(owner string)) string {
	t.Helper()
	e.PushMethod(BuildControlMethod, e.ControlResult(), MethodOverride, e.ControlBuilderParams()...)
	owner, err := e.CreateObject(typeOf[*controls.Button](e))
	if err != nil {
		t.Fatalf("CreateObject: %v", err)
	}
	body(owner)
	if err := e.EmitReturn(ast.NewIdent(owner)); err != nil {
		t.Fatalf("EmitReturn: %v", err)
	}
	if err := e.PopMethod(); err != nil {
		t.Fatalf("PopMethod: %v", err)
	}
	unit, err := e.BuildOutput("views", "MainPage", "views/main.json")
	if err != nil {
		t.Fatalf("BuildOutput: %v", err)
	}
	src, err := unit.Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	return string(src)
}

func mustContain(t *testing.T, src string, parts ...string) {
	t.Helper()
	for _, p := range parts {
		if !strings.Contains(src, p) {
			t.Errorf("output lacks %q:\n%s", p, src)
		}
	}
}

func TestSetControlPropertyKinds(t *testing.T) {
	e := newTestEmitter(t)
	button := typeOf[controls.Button](e)
	html := typeOf[controls.HTMLGenericControl](e)
	attrs := &controltree.PropertyGroup{
		Name: "Attributes", Prefixes: []string{""}, DeclaringType: html,
		ValueType: e.Registry().Builtins().Any, Mode: controltree.GroupValueCollection, Field: "Attributes",
	}
	classes := &controltree.PropertyGroup{
		Name: "CssClasses", Prefixes: []string{"Class-"}, DeclaringType: html,
		ValueType: e.Registry().Builtins().Bool, DescriptorField: "HTMLGenericControlClassGroup",
	}
	visible := &controltree.Property{
		Name: "Visible", Kind: controltree.PropertyDynamic, DeclaringType: html,
		Type: e.Registry().Builtins().Bool, DescriptorField: "HTMLGenericControlVisibleProperty",
	}
	text := &controltree.Property{
		Name: "Text", Kind: controltree.PropertyMember, DeclaringType: button,
		Type: e.Registry().Builtins().String, Field: "Text",
	}

	src := buildPage(t, e, func(owner string) {
		steps := []struct {
			p *controltree.Property
			v any
		}{
			{text, "Save"},
			{attrs.Member("Foo"), "bar"},
			{classes.Member("active"), true},
			{classes.Member("active"), false},
			{visible, false},
		}
		for _, s := range steps {
			if err := e.SetControlProperty(owner, s.p, s.v); err != nil {
				t.Fatalf("SetControlProperty(%s): %v", s.p.FullName(), err)
			}
		}
		readOnly := &controltree.Property{Name: "Footer", Kind: controltree.PropertyMember, DeclaringType: button, Getter: "Footer"}
		if err := e.SetControlProperty(owner, readOnly, nil); diag.CodeOf(err) != diag.EmitMalformedMetadata {
			t.Fatalf("read-only member: %v", err)
		}
		orphan := &controltree.Property{Name: "X", Kind: controltree.PropertyDynamic, DeclaringType: button}
		if err := e.SetControlProperty(owner, orphan, 1); diag.CodeOf(err) != diag.EmitMalformedMetadata {
			t.Fatalf("dynamic property without descriptor: %v", err)
		}
	})

	mustContain(t, src,
		`import (`,
		`Asm_0 "viewc/runtime/controls"`,
		`type MainPage struct{}`,
		`func (b *MainPage) BuildControl(controlBuilderFactory Asm_0.ControlBuilderFactory, services Asm_0.ServiceProvider) Asm_0.Control {`,
		`c0 := Asm_0.NewButton()`,
		`c0.Text = "Save"`,
		`c0.Attributes["Foo"] = "bar"`,
		`mainPageCachedGroupProperty_0.SetValue(c0, true)`,
		`mainPageCachedGroupProperty_0.SetValue(c0, false)`,
		`mainPageCachedGroupProperty_0 = Asm_0.HTMLGenericControlClassGroup.GetProperty("active")`,
		`Asm_0.HTMLGenericControlVisibleProperty.SetValue(c0, false)`,
		`return c0`,
		`func (b *MainPage) DataContextType() Asm_1.Type {`,
		`var _ Asm_0.ControlBuilder = (*MainPage)(nil)`,
		`Asm_0.RegisterBuilder("views/main.json", new(MainPage))`,
	)
	if n := strings.Count(src, "CachedGroupProperty_"); n != 3 {
		t.Fatalf("group member descriptor should be cached once, found %d references", n)
	}
	if strings.Contains(src, "_ = c0") {
		t.Fatalf("used variable should not be discarded:\n%s", src)
	}
}

func TestEnsureCollectionInitialized(t *testing.T) {
	e := newTestEmitter(t)
	panel := typeOf[controls.Panel](e)
	coll := typeOf[*controls.ControlCollection](e)
	items := &controltree.Property{Name: "Items", Kind: controltree.PropertyMember, DeclaringType: panel, Type: coll, Field: "Items", IsContent: true}
	footer := &controltree.Property{Name: "Footer", Kind: controltree.PropertyMember, DeclaringType: panel, Type: coll, Getter: "Footer"}
	header := &controltree.Property{Name: "Header", Kind: controltree.PropertyDynamic, DeclaringType: panel, Type: coll, DescriptorField: "PanelHeaderProperty"}
	scalar := &controltree.Property{Name: "Text", Kind: controltree.PropertyMember, DeclaringType: panel, Type: e.Registry().Builtins().String, Field: "Text"}

	src := buildPage(t, e, func(owner string) {
		for _, p := range []*controltree.Property{items, items, footer, header} {
			if _, err := e.EnsureCollectionInitialized(owner, p); err != nil {
				t.Fatalf("EnsureCollectionInitialized(%s): %v", p.Name, err)
			}
		}
		if _, err := e.EnsureCollectionInitialized(owner, scalar); diag.CodeOf(err) != diag.EmitMalformedMetadata {
			t.Fatalf("non-nillable property: %v", err)
		}
	})

	if n := strings.Count(src, "if c0.Items == nil {"); n != 2 {
		t.Fatalf("expected two nil checks, found %d:\n%s", n, src)
	}
	mustContain(t, src,
		`c0.Items = &Asm_0.ControlCollection{}`,
		`c1 := c0.Items`,
		`_ = c1`,
		`panic("Property 'Panel.Footer' can't be used as control collection since it is not initialized and does not have setter available for automatic initialization")`,
		`c3 := c0.Footer()`,
		`if Asm_0.PanelHeaderProperty.GetValue(c0) == nil {`,
		`Asm_0.PanelHeaderProperty.SetValue(c0, &Asm_0.ControlCollection{})`,
		`c4 := Asm_0.PanelHeaderProperty.GetValue(c0).(*Asm_0.ControlCollection)`,
	)
}

func TestInjectionFactoriesAreCached(t *testing.T) {
	e := newTestEmitter(t)
	button := typeOf[*controls.Button](e)
	src := buildPage(t, e, func(string) {
		for range 2 {
			if _, err := e.EmitInjectionFactory(button); err != nil {
				t.Fatalf("EmitInjectionFactory: %v", err)
			}
		}
		lit := &ast.BasicLit{Kind: token.STRING, Value: `"submit"`}
		if _, err := e.EmitInjectionFactory(button, InjectionArg{Type: e.Registry().Builtins().String, Expr: lit}); err != nil {
			t.Fatalf("EmitInjectionFactory with args: %v", err)
		}
	})
	if e.factories.Len() != 2 {
		t.Fatalf("factories = %d, want 2", e.factories.Len())
	}
	mustContain(t, src,
		`mainPageObj_Button_Factory_0 = Asm_0.CreateFactory(Asm_1.TypeFor[*Asm_0.Button](), []Asm_1.Type{})`,
		`mainPageObj_Button_Factory_1 = Asm_0.CreateFactory(Asm_1.TypeFor[*Asm_0.Button](), []Asm_1.Type{Asm_1.TypeFor[string]()})`,
		`c1 := mainPageObj_Button_Factory_0(services, []any{}).(*Asm_0.Button)`,
		`c3 := mainPageObj_Button_Factory_1(services, []any{"submit"}).(*Asm_0.Button)`,
	)
}

func TestInvokeControlBuilderAndTemplates(t *testing.T) {
	e := newTestEmitter(t)
	markup := typeOf[*controls.MarkupControl](e)
	src := buildPage(t, e, func(owner string) {
		child, err := e.EmitInvokeControlBuilder(markup, "controls/card.json")
		if err != nil {
			t.Fatalf("EmitInvokeControlBuilder: %v", err)
		}
		if err := e.AddChild(owner, child, ""); err != nil {
			t.Fatalf("AddChild: %v", err)
		}
		if err := e.AddDirective(owner, "masterPage", "site.json"); err != nil {
			t.Fatalf("AddDirective: %v", err)
		}

		e.PushMethod(BuildTemplateMethod, nil, MethodInstance, e.TemplateParams()...)
		lit, err := e.CreateObject(typeOf[*controls.HTMLGenericControl](e), "li")
		if err != nil {
			t.Fatalf("CreateObject: %v", err)
		}
		if err := e.AddChild(TemplateContainerParam, lit, ""); err != nil {
			t.Fatalf("AddChild: %v", err)
		}
		fn, err := e.PopAsLambda()
		if err != nil {
			t.Fatalf("PopAsLambda: %v", err)
		}
		tmpl, err := e.CreateVariable(e.Call(RuntimePackage, "NewDelegateTemplate", fn))
		if err != nil {
			t.Fatalf("CreateVariable: %v", err)
		}
		if err := e.SetProperty(owner, "ItemTemplate", ast.NewIdent(tmpl)); err != nil {
			t.Fatalf("SetProperty: %v", err)
		}
	})
	mustContain(t, src,
		`c1_builder := controlBuilderFactory.GetControlBuilder("controls/card.json")`,
		`c1_untyped := c1_builder.BuildControl(controlBuilderFactory, services)`,
		`c1 := c1_untyped.(*Asm_0.MarkupControl)`,
		`c0.Add(c1)`,
		`c0.Directives["masterPage"] = "site.json"`,
		`c3 := Asm_0.NewDelegateTemplate(func(controlBuilderFactory Asm_0.ControlBuilderFactory, services Asm_0.ServiceProvider, templateContainer Asm_0.Control) {`,
		`c2 := Asm_0.NewHTMLGenericControl("li")`,
		`templateContainer.Add(c2)`,
		`c0.ItemTemplate = c3`,
	)
}

func TestCreateObjectExpr(t *testing.T) {
	e := newTestEmitter(t)
	b := e.Registry().Builtins()
	tests := []struct {
		d    *types.Descriptor
		want string
	}{
		{typeOf[*controls.ControlCollection](e), "&Asm_0.ControlCollection{}"},
		{typeOf[controls.DataContextStack](e), "Asm_0.DataContextStack{}"},
		{types.MapOf(b.String, b.Any), "make(map[string]any)"},
		{types.SliceOf(b.Int), "make([]int, 0)"},
		{types.PointerTo(b.Int), "new(int)"},
		{typeOf[*controls.Button](e), "Asm_0.NewButton()"},
	}
	for _, tc := range tests {
		x, err := e.CreateObjectExpr(tc.d)
		if err != nil {
			t.Fatalf("CreateObjectExpr(%s): %v", tc.d.FullName(), err)
		}
		if got := render(t, x); got != tc.want {
			t.Errorf("CreateObjectExpr(%s) = %q, want %q", tc.d.FullName(), got, tc.want)
		}
	}
	if _, err := e.CreateObjectExpr(types.MapOf(b.String, b.Any), ast.NewIdent("x")); diag.CodeOf(err) != diag.EmitInvalidConstructor {
		t.Fatalf("arguments without constructor: %v", err)
	}
	if _, err := e.CreateObjectExpr(b.String); diag.CodeOf(err) != diag.EmitInvalidConstructor {
		t.Fatalf("string cannot be constructed: %v", err)
	}
}
