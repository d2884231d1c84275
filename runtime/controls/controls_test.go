package controls

import (
	"reflect"
	"strings"
	"testing"
)

func TestDynamicPropertyDefaults(t *testing.T) {
	c := NewHTMLGenericControl("div")
	if got := HTMLGenericControlVisibleProperty.GetValue(c); got != true {
		t.Fatalf("Visible default = %v", got)
	}
	HTMLGenericControlVisibleProperty.SetValue(c, false)
	if got := HTMLGenericControlVisibleProperty.GetValue(c); got != false {
		t.Fatalf("Visible = %v after SetValue", got)
	}
	if !c.IsSet(HTMLGenericControlVisibleProperty) {
		t.Fatalf("IsSet should report stored values")
	}
}

func TestGroupMembersAreCached(t *testing.T) {
	a := HTMLGenericControlClassGroup.GetProperty("active")
	b := HTMLGenericControlClassGroup.GetProperty("active")
	if a != b {
		t.Fatalf("GetProperty must return the same descriptor for a member")
	}
	if a.Member != "active" || a.Group != HTMLGenericControlClassGroup {
		t.Fatalf("unexpected member property %+v", a)
	}
	if !strings.HasSuffix(a.FullName(), "CssClasses:active") {
		t.Fatalf("FullName = %q", a.FullName())
	}
}

func TestPropertiesOfOwner(t *testing.T) {
	props := PropertiesOf(reflect.TypeFor[Panel]())
	if len(props) != 1 || props[0] != PanelHeaderProperty {
		t.Fatalf("PropertiesOf(Panel) = %v", props)
	}
	if len(GroupsOf(reflect.TypeFor[HTMLGenericControl]())) != 2 {
		t.Fatalf("HTMLGenericControl declares two groups")
	}
}

func TestChildrenAndTemplates(t *testing.T) {
	root := NewView()
	var container Control = root
	tmpl := NewDelegateTemplate(func(_ ControlBuilderFactory, _ ServiceProvider, c Control) {
		lit := NewLiteral()
		LiteralTextProperty.SetValue(lit, "x")
		c.Add(lit)
	})
	tmpl.BuildContent(nil, nil, container)
	if root.Children.Len() != 1 {
		t.Fatalf("template did not add content")
	}
	lit := root.Children.Items()[0].(*Literal)
	if LiteralTextProperty.GetValue(lit) != "x" {
		t.Fatalf("literal text lost")
	}
	if root.Directives == nil {
		t.Fatalf("constructors must initialize directives")
	}
}

type greeter struct {
	name   string
	prefix string
}

type prefixService string

func TestCreateFactoryMixesArgsAndServices(t *testing.T) {
	gt := reflect.TypeFor[*greeter]()
	RegisterConstructor(gt, func(name string, p prefixService) *greeter {
		return &greeter{name: name, prefix: string(p)}
	})
	services := Services{}
	Provide(services, prefixService("hi"))

	factory := CreateFactory(gt, []reflect.Type{reflect.TypeFor[string]()})
	g := factory(services, []any{"ann"}).(*greeter)
	if g.name != "ann" || g.prefix != "hi" {
		t.Fatalf("factory built %+v", g)
	}
}

func TestCreateFactoryPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown constructor")
		}
	}()
	CreateFactory(reflect.TypeFor[prefixService](), []reflect.Type{reflect.TypeFor[int]()})
}

func TestBuilderRegistry(t *testing.T) {
	r := NewBuilderRegistry()
	if _, ok := r.Lookup("a.view"); ok {
		t.Fatalf("empty registry")
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("GetControlBuilder should panic for missing paths")
		}
	}()
	r.GetControlBuilder("a.view")
}

func TestDataContextStack(t *testing.T) {
	s := (&DataContextStack{Type: "Page"}).Push("Item")
	if s.Depth() != 2 || s.String() != "Item <- Page" {
		t.Fatalf("stack = %s (%d)", s, s.Depth())
	}
}
