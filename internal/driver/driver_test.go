package driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"viewc/internal/config"
	"viewc/internal/diag"
	"viewc/runtime/objref"
)

const homeView = `dataContext: example.com/app.PageModel
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
    tag: Panel
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

const plainView = `nodes:
  - tag: p
    children:
      - text: static
`

const cardView = `dataContext: example.com/app.CardModel
nodes:
  - text: card
`

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func projectConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Compile.Root = root
	cfg.Compile.Out = filepath.Join(root, "generated")
	cfg.Markup.Controls = append(cfg.Markup.Controls,
		config.ControlRule{TagPrefix: "app", TagName: "Card", Src: "controls/card.yaml"})
	return cfg
}

func newProject(t *testing.T, files map[string]string, opts Options) *Driver {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, files)
	opts.Config = projectConfig(root)
	d, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) OnEvent(evt Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, evt)
}

func (l *eventLog) last(file string) (Event, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].File == file {
			return l.events[i], true
		}
	}
	return Event{}, false
}

func TestListViews(t *testing.T) {
	d := newProject(t, map[string]string{
		"views/home.yaml":      homeView,
		"views/about.json":     `{"nodes": []}`,
		"controls/card.yaml":   cardView,
		".git/config.yaml":     "x: 1",
		"generated/stale.yaml": plainView,
		"notes.txt":            "not a view",
	}, Options{})

	got, err := d.ListViews()
	if err != nil {
		t.Fatalf("ListViews: %v", err)
	}
	want := []string{"controls/card.yaml", "views/about.json", "views/home.yaml"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListViews() = %v, want %v", got, want)
	}
}

func TestCompileIsolatesFailures(t *testing.T) {
	log := &eventLog{}
	d := newProject(t, map[string]string{
		"views/home.yaml":    homeView,
		"views/bad.yaml":     "nodes:\n  - {prefix: zz, tag: Nope}\n",
		"views/broken.yaml":  "nodes: [",
		"controls/card.yaml": cardView,
	}, Options{Sink: log, Jobs: 2})

	paths := []string{"controls/card.yaml", "views/bad.yaml", "views/broken.yaml", "views/home.yaml"}
	res, err := d.Compile(context.Background(), paths)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Failed() != 2 {
		t.Fatalf("Failed() = %d, want 2: %v", res.Failed(), res.Err())
	}
	for i, p := range paths {
		if res.Views[i].Path != p {
			t.Fatalf("result %d is %q, want %q", i, res.Views[i].Path, p)
		}
	}
	if code := diag.CodeOf(res.Views[1].Err); code != diag.ResolveUnknownTag {
		t.Errorf("bad view: code %v, err %v", code, res.Views[1].Err)
	}
	if code := diag.CodeOf(res.Views[2].Err); code != diag.IOTreeFormat {
		t.Errorf("broken view: code %v, err %v", code, res.Views[2].Err)
	}
	home := res.Views[3]
	if home.Err != nil || home.Unit == nil || len(home.Source) == 0 {
		t.Fatalf("home view should compile: %v", home.Err)
	}
	if !bytes.Contains(home.Source, []byte("func (b *")) {
		t.Errorf("generated source lacks builder methods:\n%s", home.Source)
	}
	if len(home.Timing.Phases) != 4 {
		t.Errorf("home timing has %d phases, want load/parse/compile/format", len(home.Timing.Phases))
	}
	if !errors.Is(res.Err(), &diag.Error{Code: diag.ResolveUnknownTag}) {
		t.Errorf("Err() should join view errors, got %v", res.Err())
	}

	if evt, ok := log.last("views/bad.yaml"); !ok || evt.Status != StatusError || evt.Stage != StageCompile {
		t.Errorf("bad view final event = %+v", evt)
	}
	if evt, ok := log.last("views/home.yaml"); !ok || evt.Status != StatusDone || evt.Stage != StageFormat {
		t.Errorf("home view final event = %+v", evt)
	}
}

func TestCompileCanceled(t *testing.T) {
	d := newProject(t, map[string]string{"views/plain.yaml": plainView}, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := d.Compile(ctx, []string{"views/plain.yaml"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Compile on canceled context: %v", err)
	}
	if res.Views[0].Err == nil {
		t.Fatalf("canceled view should carry the context error")
	}
}

func TestCompileUsesDiskCache(t *testing.T) {
	cache, err := OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"views/plain.yaml":   plainView,
		"views/home.yaml":    homeView,
		"controls/card.yaml": cardView,
	})
	paths := []string{"views/home.yaml", "views/plain.yaml"}
	run := func(objects *objref.Table) *Result {
		t.Helper()
		d, err := New(Options{Config: projectConfig(root), Cache: cache, Objects: objects})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		res, err := d.Compile(context.Background(), paths)
		if err != nil {
			t.Fatalf("Compile: %v", err)
		}
		if err := res.Err(); err != nil {
			t.Fatalf("views failed: %v", err)
		}
		return res
	}

	// a process-local build puts home's binding in the object table
	local := run(objref.New())
	if local.Views[0].Cached || local.Views[1].Cached {
		t.Fatalf("first run cannot hit the cache")
	}
	if local.Views[0].Unit.ObjectRefs == 0 || local.Views[1].Unit.ObjectRefs != 0 {
		t.Fatalf("unexpected object refs: home %d, plain %d",
			local.Views[0].Unit.ObjectRefs, local.Views[1].Unit.ObjectRefs)
	}
	if again := run(objref.New()); again.Views[0].Cached {
		t.Errorf("views with object refs must not be cached")
	}

	first := run(nil)
	if first.Views[0].Cached {
		t.Fatalf("inline home view cannot come from the process-local run")
	}
	if first.Views[0].Unit.ObjectRefs != 0 {
		t.Fatalf("inline bindings left %d object refs", first.Views[0].Unit.ObjectRefs)
	}

	second := run(nil)
	if !second.Views[0].Cached {
		t.Errorf("home view with inline bindings should be cached")
	}
	plain := second.Views[1]
	if !plain.Cached || plain.Unit != nil {
		t.Fatalf("plain view should come from the cache")
	}
	if !bytes.Equal(plain.Source, first.Views[1].Source) || plain.ClassName != first.Views[1].ClassName {
		t.Errorf("cached payload differs from the compiled one")
	}

	// editing the view changes its key
	writeFiles(t, root, map[string]string{"views/plain.yaml": strings.Replace(plainView, "static", "edited", 1)})
	third := run(nil)
	if third.Views[1].Cached {
		t.Errorf("edited view must be recompiled")
	}

	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	var payload DiskPayload
	d, _ := New(Options{Config: projectConfig(root)})
	f, _ := d.files.Load(filepath.Join(root, "views", "plain.yaml"))
	file, _ := d.files.Get(f)
	if hit, err := cache.Get(cacheKey(d.fingerprint, file.VirtualPath, Digest(file.Hash)), &payload); err != nil || hit {
		t.Errorf("cache should be empty after DropAll: hit %v, err %v", hit, err)
	}
}

func TestFingerprintTracksMarkupControls(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"controls/card.yaml": cardView})
	fingerprint := func() Digest {
		d, err := New(Options{Config: projectConfig(root)})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return d.fingerprint
	}
	before := fingerprint()
	if fingerprint() != before {
		t.Fatalf("fingerprint is not stable")
	}
	writeFiles(t, root, map[string]string{"controls/card.yaml": strings.Replace(cardView, "CardModel", "OtherModel", 1)})
	if fingerprint() == before {
		t.Fatalf("changing a markup control must change the fingerprint")
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"views/home.yaml":      "views_home.go",
		"home-page.json":       "home_page.go",
		"a/b.c/d.yml":          "a_b_c_d.go",
		"controls/card.v2.yml": "controls_card_v2.go",
	}
	for in, want := range cases {
		if got := OutputName(in); got != want {
			t.Errorf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWrite(t *testing.T) {
	log := &eventLog{}
	d := newProject(t, map[string]string{
		"views/plain.yaml": plainView,
		"views/bad.yaml":   "nodes:\n  - {prefix: zz, tag: Nope}\n",
	}, Options{Sink: log})
	res, err := d.Compile(context.Background(), []string{"views/bad.yaml", "views/plain.yaml"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	out := filepath.Join(t.TempDir(), "gen")
	written, err := d.Write(res, out)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := filepath.Join(out, "views_plain.go")
	if len(written) != 1 || written[0] != want {
		t.Fatalf("written = %v, want [%s]", written, want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, res.Views[1].Source) {
		t.Errorf("written file differs from the generated source")
	}
	if evt, ok := log.last("views/plain.yaml"); !ok || evt.Stage != StageWrite || evt.Status != StatusDone {
		t.Errorf("last plain event = %+v", evt)
	}
}

func TestDump(t *testing.T) {
	d := newProject(t, map[string]string{
		"views/home.yaml":    homeView,
		"controls/card.yaml": cardView,
	}, Options{})
	var buf bytes.Buffer
	if err := d.Dump(context.Background(), &buf, []string{"controls/card.yaml", "views/home.yaml"}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	out := buf.String()
	for _, part := range []string{
		"# controls/card.yaml (",
		"# views/home.yaml (",
		"\nView\n",
		`  @title = "Home"`,
		"  HTMLGenericControl <div>\n",
		`    attr class = "box"`,
		"    HTMLGenericControl.CssClasses:active = true",
		`      Literal.Text = "Hello"`,
		"  Button <button>\n",
		`    Text = "Save"`,
		"    ButtonType = 2",
		"    Button.Click = {command: Save()}",
		"  Panel\n",
		"    Items:\n",
		`        Literal.Text = "body"`,
		"      MarkupControl\n",
		`          Literal.Text = "card"`,
		"  Repeater\n",
		"    ItemTemplate:\n",
		`        Literal.Text = "item"`,
	} {
		if !strings.Contains(out, part) {
			t.Errorf("dump lacks %q", part)
		}
	}
	if t.Failed() {
		t.Logf("dump:\n%s", out)
	}
}

func TestDumpRunsInjectedControls(t *testing.T) {
	d := newProject(t, map[string]string{
		"views/greeting.yaml": "nodes:\n  - prefix: ui\n    tag: Resource\n    attributes: [{name: Key, value: greeting}]\n",
	}, Options{})
	var buf bytes.Buffer
	if err := d.Dump(context.Background(), &buf, []string{"views/greeting.yaml"}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "  Resource\n") {
		t.Errorf("dump lacks the resource control:\n%s", out)
	}
}

func TestDumpReportsCompileErrors(t *testing.T) {
	d := newProject(t, map[string]string{"views/bad.yaml": "nodes:\n  - {prefix: zz, tag: Nope}\n"}, Options{})
	var buf bytes.Buffer
	err := d.Dump(context.Background(), &buf, []string{"views/bad.yaml"})
	if diag.CodeOf(err) != diag.ResolveUnknownTag {
		t.Fatalf("Dump error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be printed on failure")
	}
}

func TestCompileRejectsDuplicateNames(t *testing.T) {
	cases := []struct {
		name  string
		views []string
	}{
		{"dash and underscore", []string{"views/order-list.yaml", "views/order_list.yaml"}},
		{"dotted name", []string{"views/order.list.yaml", "views/order_list.yaml"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log := &eventLog{}
			files := map[string]string{}
			for _, v := range tc.views {
				files[v] = plainView
			}
			d := newProject(t, files, Options{Sink: log})
			res, err := d.Compile(context.Background(), tc.views)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if res.Views[0].Err != nil {
				t.Fatalf("first view should compile: %v", res.Views[0].Err)
			}
			dup := res.Views[1].Err
			if diag.CodeOf(dup) != diag.EmitDuplicateName {
				t.Fatalf("second view: code %v, err %v", diag.CodeOf(dup), dup)
			}
			for _, v := range tc.views {
				if !strings.Contains(dup.Error(), v) {
					t.Errorf("error %q does not name %s", dup, v)
				}
			}
			if evt, ok := log.last(tc.views[1]); !ok || evt.Status != StatusError {
				t.Errorf("duplicate view final event = %+v", evt)
			}

			out := filepath.Join(t.TempDir(), "gen")
			written, err := d.Write(res, out)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if len(written) != 1 {
				t.Fatalf("written = %v, want one file", written)
			}
			data, err := os.ReadFile(written[0])
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, res.Views[0].Source) {
				t.Errorf("the first view must own the output file")
			}
		})
	}
}

func TestWriteBindings(t *testing.T) {
	cases := []struct {
		name    string
		objects *objref.Table
		wantErr bool
	}{
		{name: "inline", objects: nil},
		{name: "process local", objects: objref.New(), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log := &eventLog{}
			d := newProject(t, map[string]string{
				"views/home.yaml":    homeView,
				"controls/card.yaml": cardView,
			}, Options{Sink: log, Objects: tc.objects})
			res, err := d.Compile(context.Background(), []string{"views/home.yaml"})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if err := res.Err(); err != nil {
				t.Fatalf("home view failed: %v", err)
			}

			out := filepath.Join(t.TempDir(), "gen")
			written, err := d.Write(res, out)
			if tc.wantErr {
				if diag.CodeOf(err) != diag.EmitProcessLocal {
					t.Fatalf("Write error = %v", err)
				}
				if !strings.Contains(err.Error(), "views/home.yaml") {
					t.Errorf("error %q does not name the view", err)
				}
				if len(written) != 0 {
					t.Errorf("written = %v, want none", written)
				}
				if evt, ok := log.last("views/home.yaml"); !ok || evt.Stage != StageWrite || evt.Status != StatusError {
					t.Errorf("last home event = %+v", evt)
				}
				return
			}
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			data, err := os.ReadFile(filepath.Join(out, "views_home.go"))
			if err != nil {
				t.Fatal(err)
			}
			src := string(data)
			if !strings.Contains(src, "NewBindingExpression(") {
				t.Errorf("binding is not built by the generated code:\n%s", src)
			}
			if strings.Contains(src, ".Default.Ref(") {
				t.Errorf("generated code reads the object table:\n%s", src)
			}
		})
	}
}
