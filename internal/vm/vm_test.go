package vm_test

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"viewc/internal/catalog"
	"viewc/internal/config"
	"viewc/internal/resolver"
	"viewc/internal/tree"
	"viewc/internal/viewcompiler"
	"viewc/internal/vm"
	"viewc/runtime/controls"
	"viewc/runtime/objref"
)

const sample = `package views

import (
	Asm_0 "viewc/runtime/controls"
	Asm_1 "math"
	Asm_2 "math/big"
	Asm_3 "reflect"
)

type Sample struct{}

var samplePrefix = "item-"

func Values() []any {
	return []any{
		int8(-3),
		uint64(18446744073709551615),
		int64(-9223372036854775808),
		float32(0.25),
		Asm_1.Inf(-1),
		Asm_2.NewRat(-1, 3),
		Asm_0.TextOptionsTrim | Asm_0.TextOptionsLower,
		Asm_0.TextOptions(8),
		[]string{"a", "b"},
		([]int)(nil),
		samplePrefix + "x",
	}
}

func Build() *Asm_0.Panel {
	c0 := Asm_0.NewPanel()
	if c0.Items == nil {
		c0.Items = &Asm_0.ControlCollection{}
	}
	c1 := c0.Items
	c2 := new(Asm_0.Literal)
	c1.Add(c2)
	c0.Directives["kind"] = "panel"
	return c0
}

func Footer(c0 *Asm_0.Panel) *Asm_0.ControlCollection {
	if c0.Footer() == nil {
		panic("footer is not initialized")
	}
	return c0.Footer()
}

func Template() Asm_0.Template {
	return Asm_0.NewDelegateTemplate(func(controlBuilderFactory Asm_0.ControlBuilderFactory, services Asm_0.ServiceProvider, templateContainer Asm_0.Control) {
		c0 := Asm_0.NewLiteral()
		Asm_0.LiteralTextProperty.SetValue(c0, samplePrefix)
		templateContainer.Add(c0)
	})
}

func (b *Sample) ControlType() Asm_3.Type {
	return Asm_3.TypeFor[*Asm_0.Panel]()
}
`

func loadSample(t *testing.T) *vm.Program {
	t.Helper()
	p, err := vm.Load("sample.go", []byte(sample), vm.RuntimeExports(), vm.Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p
}

func TestLiteralForms(t *testing.T) {
	p := loadSample(t)
	out, err := p.Call("Values")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	got := out[0].([]any)
	want := []any{
		int8(-3),
		uint64(math.MaxUint64),
		int64(math.MinInt64),
		float32(0.25),
		math.Inf(-1),
		nil, // checked below
		controls.TextOptionsTrim | controls.TextOptionsLower,
		controls.TextOptions(8),
		[]string{"a", "b"},
		[]int(nil),
		"item-x",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}
	for i := range want {
		if i == 5 {
			r, ok := got[i].(*big.Rat)
			if !ok || r.Cmp(big.NewRat(-1, 3)) != 0 {
				t.Errorf("value %d = %#v, want -1/3", i, got[i])
			}
			continue
		}
		if !reflect.DeepEqual(got[i], want[i]) {
			t.Errorf("value %d = %#v (%T), want %#v (%T)", i, got[i], got[i], want[i], want[i])
		}
	}
}

func TestCollectionsAndPanics(t *testing.T) {
	p := loadSample(t)
	out, err := p.Call("Build")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	panel := out[0].(*controls.Panel)
	if panel.Items == nil || len(panel.Items.Items()) != 1 {
		t.Fatalf("Items = %#v", panel.Items)
	}
	if panel.Directives["kind"] != "panel" {
		t.Fatalf("directives = %v", panel.Directives)
	}

	_, err = p.Call("Footer", panel)
	var vmErr *vm.VMError
	if !errors.As(err, &vmErr) || vmErr.Code != vm.PanicExplicit || vmErr.Message != "footer is not initialized" {
		t.Fatalf("Footer err = %v", err)
	}
	if !strings.Contains(vmErr.Format(), "sample.go:") {
		t.Fatalf("panic should carry a position:\n%s", vmErr.Format())
	}

	panel.SetFooter(controls.NewControlCollection())
	if _, err := p.Call("Footer", panel); err != nil {
		t.Fatalf("Footer after SetFooter: %v", err)
	}
}

func TestFunctionLiteralOutlivesCall(t *testing.T) {
	p := loadSample(t)
	out, err := p.Call("Template")
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	tmpl := out[0].(controls.Template)
	container := controls.NewPanel()
	tmpl.BuildContent(nil, nil, container)
	tmpl.BuildContent(nil, nil, container)
	kids := container.Children.Items()
	if len(kids) != 2 {
		t.Fatalf("template ran %d times", len(kids))
	}
	if got := controls.LiteralTextProperty.GetValue(kids[1]); got != "item-" {
		t.Fatalf("literal text = %v", got)
	}
}

func TestMethodsAndErrors(t *testing.T) {
	p := loadSample(t)
	out, err := p.Call("ControlType")
	if err != nil {
		t.Fatalf("ControlType: %v", err)
	}
	if out[0] != reflect.TypeFor[*controls.Panel]() {
		t.Fatalf("ControlType = %v", out[0])
	}
	if v, ok := p.Var("samplePrefix"); !ok || v != "item-" {
		t.Fatalf("Var = %v, %v", v, ok)
	}

	tests := []struct {
		name string
		call func() error
		code vm.PanicCode
	}{
		{"unknown function", func() error { _, err := p.Call("Nope"); return err }, vm.PanicUnknownFunction},
		{"arity", func() error { _, err := p.Call("Footer"); return err }, vm.PanicArity},
		{"nil receiver", func() error { _, err := p.Call("Footer", (*controls.Panel)(nil)); return err }, vm.PanicRuntime},
		{"missing package", func() error {
			_, err := vm.Load("x.go", []byte("package x\nimport \"example.com/none\"\n"), vm.StdExports(), vm.Options{})
			return err
		}, vm.PanicUnknownPackage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var vmErr *vm.VMError
			if err := tc.call(); !errors.As(err, &vmErr) || vmErr.Code != tc.code {
				t.Fatalf("err = %v, want %s", err, tc.code)
			}
		})
	}
}

type pageModel struct{ Name string }

type cardModel struct{}

// appExports stands in for the package declaring the data context types.
func appExports() vm.Exports {
	return vm.RuntimeExports().Merge(vm.Exports{"example.com/app": {
		"PageModel": reflect.ValueOf((*pageModel)(nil)),
		"CardModel": reflect.ValueOf((*cardModel)(nil)),
	}})
}

const pageView = `dataContext: example.com/app.PageModel
directives:
  - {name: title, value: Home}
nodes:
  - tag: div
    attributes:
      - {name: class, value: box}
      - {name: Class-active, value: "true"}
    children:
      - text: Hello
  - prefix: ui
    tag: Button
    attributes:
      - {name: Text, value: Save}
      - {name: ButtonType, value: reset}
      - {name: Click, binding: {kind: command, expr: Save()}}
  - prefix: ui
    tag: TextBox
    attributes:
      - {name: Options, value: "Trim, Upper"}
      - {name: MaxLength, value: "12"}
  - prefix: ui
    tag: Panel
    properties:
      - name: Header
        children:
          - text: Title
    children:
      - text: body
      - {prefix: app, tag: Card}
  - prefix: ui
    tag: Repeater
    properties:
      - name: ItemTemplate
        children:
          - text: item
`

const cardView = `dataContext: example.com/app.CardModel
nodes:
  - text: card
`

// compileAndLoad runs the whole pipeline: markup to Go source to program.
func compileAndLoad(t *testing.T, c *viewcompiler.Compiler, name, doc string) *vm.Program {
	t.Helper()
	v, err := tree.Parse(name, []byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	unit, err := c.Compile(v)
	if err != nil {
		t.Fatalf("Compile %s: %v", name, err)
	}
	src, err := unit.Source()
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	p, err := vm.Load(name+".go", src, appExports(), vm.Options{})
	if err != nil {
		t.Fatalf("Load %s: %v\n%s", name, err, src)
	}
	return p
}

func newCompiler(t *testing.T, inline bool) *viewcompiler.Compiler {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "controls"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "controls", "card.yaml"), []byte(cardView), 0o600); err != nil {
		t.Fatal(err)
	}
	cat, err := catalog.New(nil, nil, root)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	res, err := resolver.New(resolver.Options{
		Rules: []config.ControlRule{
			config.DefaultRule(),
			{TagPrefix: "app", TagName: "Card", Src: "controls/card.yaml"},
		},
		Locator:     cat,
		Builder:     cat,
		HTMLControl: cat.HTMLControl(),
	})
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}
	return viewcompiler.New(viewcompiler.Options{Resolver: res, Catalog: cat, InlineBindings: inline})
}

func TestCompiledViewRoundTrip(t *testing.T) {
	c := newCompiler(t, false)
	card := compileAndLoad(t, c, "controls/card.yaml", cardView)
	page := compileAndLoad(t, c, "views/home.yaml", pageView)

	reg := controls.NewBuilderRegistry()
	reg.Register("controls/card.yaml", card.Builder())
	reg.Register("views/home.yaml", page.Builder())

	b := reg.GetControlBuilder("views/home.yaml")
	if b.ControlType() != reflect.TypeFor[*controls.View]() {
		t.Fatalf("ControlType = %v", b.ControlType())
	}
	if b.DataContextType() != reflect.TypeFor[pageModel]() {
		t.Fatalf("DataContextType = %v", b.DataContextType())
	}

	root, ok := b.BuildControl(reg, controls.Services{}).(*controls.View)
	if !ok {
		t.Fatalf("root is not a view")
	}
	if root.Directives["title"] != "Home" {
		t.Fatalf("directives = %v", root.Directives)
	}
	kids := root.Children.Items()
	if len(kids) != 5 {
		t.Fatalf("root has %d children", len(kids))
	}

	div := kids[0].(*controls.HTMLGenericControl)
	if div.TagName != "div" || div.Attributes["class"] != "box" {
		t.Fatalf("div = %+v", div)
	}
	if got := controls.HTMLGenericControlClassGroup.GetProperty("active").GetValue(div); got != true {
		t.Fatalf("Class-active = %v", got)
	}
	if got := controls.LiteralTextProperty.GetValue(div.Children.Items()[0]); got != "Hello" {
		t.Fatalf("text = %v", got)
	}

	btn := kids[1].(*controls.Button)
	if btn.Text != "Save" || btn.ButtonType != controls.ButtonTypeReset {
		t.Fatalf("button = %+v", btn)
	}
	click, ok := controls.ButtonClickProperty.GetValue(btn).(*controls.BindingExpression)
	if !ok || click.Expression != "Save()" {
		t.Fatalf("click = %#v", controls.ButtonClickProperty.GetValue(btn))
	}
	shared := false
	for i := 1; i <= objref.Default.Len(); i++ {
		if v, _ := objref.Default.Get(i); v == click {
			shared = true
		}
	}
	if !shared {
		t.Fatalf("binding should be the object stored at compile time")
	}

	box := kids[2].(*controls.TextBox)
	if box.Options != controls.TextOptionsTrim|controls.TextOptionsUpper || box.MaxLength != 12 {
		t.Fatalf("textbox = %+v", box)
	}

	panel := kids[3].(*controls.Panel)
	header, ok := controls.PanelHeaderProperty.GetValue(panel).(*controls.ControlCollection)
	if !ok || len(header.Items()) != 1 {
		t.Fatalf("header = %#v", controls.PanelHeaderProperty.GetValue(panel))
	}
	items := panel.Items.Items()
	if len(items) != 2 {
		t.Fatalf("panel items = %d", len(items))
	}
	if _, ok := items[1].(*controls.MarkupControl); !ok {
		t.Fatalf("card should be built by its own builder, got %T", items[1])
	}
	if got := controls.LiteralTextProperty.GetValue(items[1].Base().Children.Items()[0]); got != "card" {
		t.Fatalf("card text = %v", got)
	}

	rep := kids[4].(*controls.Repeater)
	container := controls.NewPanel()
	rep.ItemTemplate.BuildContent(reg, controls.Services{}, container)
	if got := controls.LiteralTextProperty.GetValue(container.Children.Items()[0]); got != "item" {
		t.Fatalf("template text = %v", got)
	}

	// A second build must produce a fresh tree.
	again := b.BuildControl(reg, controls.Services{}).(*controls.View)
	if again == root || again.Children.Items()[0] == kids[0] {
		t.Fatalf("builds should not share controls")
	}
}

type upperTranslator struct{}

func (upperTranslator) Translate(key string) string { return strings.ToUpper(key) }

const standaloneView = `dataContext: example.com/app.PageModel
nodes:
  - prefix: ui
    tag: Resource
    attributes:
      - {name: Key, value: greeting}
  - prefix: ui
    tag: Button
    attributes:
      - {name: Click, binding: {kind: controlCommand, expr: Save()}}
  - prefix: ui
    tag: Repeater
    properties:
      - name: ItemTemplate
        children:
          - prefix: ui
            tag: Resource
            attributes:
              - {name: Key, value: item}
`

func TestStandaloneViewRoundTrip(t *testing.T) {
	c := newCompiler(t, true)
	before := objref.Default.Len()
	page := compileAndLoad(t, c, "views/standalone.yaml", standaloneView)
	if objref.Default.Len() != before {
		t.Fatalf("inline bindings must not use the object table")
	}

	reg := controls.NewBuilderRegistry()
	reg.Register("views/standalone.yaml", page.Builder())
	services := controls.Services{}
	controls.Provide[controls.Translator](services, upperTranslator{})

	root := reg.GetControlBuilder("views/standalone.yaml").BuildControl(reg, services).(*controls.View)
	kids := root.Children.Items()
	if len(kids) != 3 {
		t.Fatalf("root has %d children", len(kids))
	}
	res, ok := kids[0].(*controls.Resource)
	if !ok || res.Key != "greeting" || res.Text() != "GREETING" {
		t.Fatalf("resource = %#v", kids[0])
	}

	click, ok := controls.ButtonClickProperty.GetValue(kids[1]).(*controls.BindingExpression)
	if !ok {
		t.Fatalf("click = %#v", controls.ButtonClickProperty.GetValue(kids[1]))
	}
	if click.Kind != "controlCommand" || click.Expression != "Save()" || click.ParameterName != resolver.ControlParameterName {
		t.Fatalf("click = %+v", click)
	}
	if got := click.DataContext.Types(); len(got) != 1 || got[0] != "example.com/app.PageModel" {
		t.Fatalf("data context = %v", got)
	}

	container := controls.NewPanel()
	kids[2].(*controls.Repeater).ItemTemplate.BuildContent(reg, services, container)
	item, ok := container.Children.Items()[0].(*controls.Resource)
	if !ok || item.Text() != "ITEM" {
		t.Fatalf("template resource = %#v", container.Children.Items()[0])
	}
}

func TestInjectedControlNeedsItsService(t *testing.T) {
	c := newCompiler(t, true)
	page := compileAndLoad(t, c, "views/standalone.yaml", standaloneView)
	reg := controls.NewBuilderRegistry()
	reg.Register("views/standalone.yaml", page.Builder())
	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), "no service registered") {
			t.Fatalf("missing translator should panic, got %v", r)
		}
	}()
	reg.GetControlBuilder("views/standalone.yaml").BuildControl(reg, controls.Services{})
}

func TestOpaqueImports(t *testing.T) {
	src := `package views

import (
	Asm_0 "example.com/app"
	Asm_1 "reflect"
)

func DataContextType() Asm_1.Type {
	return Asm_1.TypeFor[Asm_0.PageModel]()
}
`
	if _, err := vm.Load("o.go", []byte(src), vm.StdExports(), vm.Options{}); err == nil {
		t.Fatalf("unknown imports must be rejected by default")
	}
	p, err := vm.Load("o.go", []byte(src), vm.StdExports(), vm.Options{OpaqueImports: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out, err := p.Call("DataContextType")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out[0] != reflect.TypeFor[vm.Opaque]() {
		t.Fatalf("type = %v", out[0])
	}
}
