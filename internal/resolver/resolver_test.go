package resolver

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"viewc/internal/config"
	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/internal/types"
)

type fakeCatalog struct {
	reg      *types.Registry
	packages map[string][]string
	markup   map[string]controltree.ControlType

	compiledCalls atomic.Int32
	markupCalls   atomic.Int32
	buildCalls    atomic.Int32
	failBuild     atomic.Bool
}

func newFakeCatalog() *fakeCatalog {
	reg := types.NewRegistry()
	c := &fakeCatalog{
		reg: reg,
		packages: map[string][]string{
			"example.com/ui":    {"Button", "Panel"},
			"example.com/extra": {"Chart"},
		},
		markup: map[string]controltree.ControlType{},
	}
	c.markup["card.yaml"] = controltree.ControlType{
		Type:        reg.Named("example.com/ui", "MarkupControl", types.KindStruct),
		VirtualPath: "card.yaml",
	}
	return c
}

func (c *fakeCatalog) FindCompiledControl(tag, ns, asm string) (controltree.ControlType, bool, error) {
	c.compiledCalls.Add(1)
	for _, name := range c.packages[ns] {
		if strings.EqualFold(name, tag) {
			return controltree.ControlType{Type: c.reg.Named(ns, name, types.KindStruct)}, true, nil
		}
	}
	return controltree.ControlType{}, false, nil
}

func (c *fakeCatalog) FindMarkupControl(src string) (controltree.ControlType, error) {
	c.markupCalls.Add(1)
	ct, ok := c.markup[src]
	if !ok {
		return controltree.ControlType{}, errors.New("no such file")
	}
	return ct, nil
}

func (c *fakeCatalog) BuildControlMetadata(ct controltree.ControlType) (*controltree.Metadata, error) {
	c.buildCalls.Add(1)
	if c.failBuild.Load() {
		return nil, errors.New("boom")
	}
	return controltree.NewMetadata(ct), nil
}

func newTestResolver(t *testing.T, c *fakeCatalog, rules ...config.ControlRule) *Resolver {
	t.Helper()
	if len(rules) == 0 {
		rules = []config.ControlRule{
			{TagPrefix: "app", TagName: "Card", Src: "card.yaml"},
			{TagPrefix: "ui", Namespace: "example.com/ui"},
			{TagPrefix: "ui", Namespace: "example.com/extra"},
		}
	}
	r, err := New(Options{
		Rules:       rules,
		Locator:     c,
		Builder:     c,
		HTMLControl: controltree.ControlType{Type: c.reg.Named("example.com/ui", "HTMLGenericControl", types.KindStruct)},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveHTMLTagPassesTagName(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c)
	md, args, err := r.ResolveControl("", "div")
	if err != nil {
		t.Fatal(err)
	}
	if md.Type.Type.Name != "HTMLGenericControl" || len(args) != 1 || args[0] != "div" {
		t.Fatalf("got %s with %v", md.Type, args)
	}
	if c.compiledCalls.Load() != 0 {
		t.Fatalf("HTML tags must not consult rules")
	}
}

func TestTagCacheIsCaseInsensitive(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c)
	a, err := r.FindControlType("ui", "Button")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.FindControlType("UI", "button")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("same key resolved to different types")
	}
	if n := c.compiledCalls.Load(); n != 1 {
		t.Fatalf("rules matched %d times, want 1", n)
	}
}

func TestCompiledMissContinuesWithNextRule(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c)
	ct, err := r.FindControlType("ui", "Chart")
	if err != nil {
		t.Fatal(err)
	}
	if ct.Type.Package != "example.com/extra" {
		t.Fatalf("Chart should come from the second package, got %s", ct)
	}
}

func TestMarkupRule(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c)
	ct, err := r.FindControlType("app", "card")
	if err != nil {
		t.Fatal(err)
	}
	if ct.VirtualPath != "card.yaml" {
		t.Fatalf("got %s", ct)
	}
	c.markup = map[string]controltree.ControlType{}
	r2 := newTestResolver(t, c)
	_, err = r2.FindControlType("app", "Card")
	if diag.CodeOf(err) != diag.ResolveMarkupControl {
		t.Fatalf("expected markup control error, got %v", err)
	}
}

func TestUnregisteredPrefix(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c)
	_, _, err := r.ResolveControl("nope", "Widget")
	var de *diag.Error
	if !errors.As(err, &de) || de.Code != diag.ResolveUnknownTag {
		t.Fatalf("expected unknown tag error, got %v", err)
	}
	if de.Subject != "nope:Widget" || !strings.Contains(de.Message, "<nope:Widget>") {
		t.Fatalf("error should name the tag: %+v", de)
	}
}

func TestInvalidRuleIsReported(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c, config.ControlRule{TagPrefix: "bad"})
	_, err := r.FindControlType("bad", "X")
	if diag.CodeOf(err) != diag.ResolveInvalidRule {
		t.Fatalf("expected invalid rule error, got %v", err)
	}
}

func TestMetadataBuiltOncePerTypeUnderConcurrency(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c)
	var wg sync.WaitGroup
	results := make([]*controltree.Metadata, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			md, _, err := r.ResolveControl("ui", "Panel")
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = md
		}(i)
	}
	wg.Wait()
	for _, md := range results[1:] {
		if md != results[0] {
			t.Fatalf("metadata instances differ")
		}
	}
	if n := c.buildCalls.Load(); n != 1 {
		t.Fatalf("BuildControlMetadata called %d times, want 1", n)
	}
}

func TestMetadataFailureIsNotCached(t *testing.T) {
	c := newFakeCatalog()
	r := newTestResolver(t, c)
	c.failBuild.Store(true)
	if _, _, err := r.ResolveControl("ui", "Button"); err == nil {
		t.Fatalf("expected failure")
	}
	c.failBuild.Store(false)
	if _, _, err := r.ResolveControl("ui", "Button"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if n := c.buildCalls.Load(); n != 2 {
		t.Fatalf("builder called %d times, want 2", n)
	}
}

func TestResolveBinding(t *testing.T) {
	for _, name := range BindingNames() {
		o, err := ResolveBinding(strings.ToUpper(name))
		if err != nil || o.Name != name {
			t.Errorf("ResolveBinding(%q) = %v, %v", name, o, err)
		}
	}
	o, _ := ResolveBinding("controlCommand")
	if o.ParameterName != ControlParameterName || !o.IsCommand() {
		t.Fatalf("controlCommand options = %+v", o)
	}
}

func TestUnknownBinding(t *testing.T) {
	_, err := ResolveBinding("totally-bogus")
	var de *diag.Error
	if !errors.As(err, &de) || de.Code != diag.ResolveUnknownBinding {
		t.Fatalf("expected unknown binding error, got %v", err)
	}
	if de.Subject != "totally-bogus" || !strings.Contains(err.Error(), "totally-bogus") {
		t.Fatalf("error must name the discriminator: %v", err)
	}
}
