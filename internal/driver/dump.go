package driver

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"viewc/internal/diag"
	"viewc/internal/vm"
	"viewc/runtime/controls"
)

// Dump compiles the views, runs every builder in the VM and prints the
// resulting control trees in path order. Data context packages are not
// linked in, so their types are opaque to the builders.
func (d *Driver) Dump(ctx context.Context, w io.Writer, paths []string) error {
	result, err := d.Compile(ctx, paths)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	reg := controls.NewBuilderRegistry()
	exports := vm.RuntimeExports()
	for i := range result.Views {
		v := &result.Views[i]
		prog, err := vm.Load(v.Path+".go", v.Source, exports, vm.Options{OpaqueImports: true, Logger: Logger()})
		if err != nil {
			return diag.Wrap(diag.EmitOutput, v.Path, err, "load generated builder").At(diag.Location{File: v.Path})
		}
		reg.Register(v.Path, prog.Builder())
	}

	services := controls.Services{}
	controls.Provide[controls.Translator](services, controls.KeyTranslator{})
	var out strings.Builder
	for i := range result.Views {
		v := &result.Views[i]
		started := time.Now()
		d.emit(Event{File: v.Path, Stage: StageRun, Status: StatusWorking})
		text, err := dumpView(reg, services, v.Path)
		if err != nil {
			err = diag.Wrap(diag.EmitOutput, v.Path, err, "run builder").At(diag.Location{File: v.Path})
			d.emit(Event{File: v.Path, Stage: StageRun, Status: StatusError, Err: err, Elapsed: time.Since(started)})
			return err
		}
		d.emit(Event{File: v.Path, Stage: StageRun, Status: StatusDone, Elapsed: time.Since(started)})
		Logger().Debug("view dumped", zap.String("path", v.Path), zap.Duration("elapsed", time.Since(started)))
		fmt.Fprintf(&out, "# %s (%s)\n", v.Path, v.ClassName)
		out.WriteString(text)
	}
	_, err = io.WriteString(w, out.String())
	return err
}

func dumpView(reg *controls.BuilderRegistry, services controls.ServiceProvider, path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	c := reg.GetControlBuilder(path).BuildControl(reg, services)
	var b strings.Builder
	if err := RenderTree(&b, c, reg, services); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderTree prints c and its descendants, one control per line, with the
// values that were set on them indented below. Templates are instantiated
// into a scratch container so their content shows up too.
func RenderTree(w io.Writer, c controls.Control, factory controls.ControlBuilderFactory, services controls.ServiceProvider) error {
	r := &treeRenderer{factory: factory, services: services}
	r.control(c, 0)
	_, err := io.WriteString(w, r.b.String())
	return err
}

type treeRenderer struct {
	b        strings.Builder
	factory  controls.ControlBuilderFactory
	services controls.ServiceProvider
}

func (r *treeRenderer) line(depth int, format string, args ...any) {
	r.b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&r.b, format, args...)
	r.b.WriteByte('\n')
}

func (r *treeRenderer) control(c controls.Control, depth int) {
	if c == nil {
		r.line(depth, "<nil>")
		return
	}
	v := reflect.ValueOf(c)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		r.line(depth, "%T", c)
		return
	}
	elem := v.Elem()
	base := c.Base()

	head := elem.Type().Name()
	if tag := elem.FieldByName("TagName"); tag.IsValid() && tag.Kind() == reflect.String && tag.String() != "" {
		head += " <" + tag.String() + ">"
	}
	if base.ID != "" {
		head += " #" + base.ID
	}
	r.line(depth, "%s", head)

	for _, name := range sortedKeys(base.Directives) {
		r.line(depth+1, "@%s = %s", name, strconv.Quote(base.Directives[name]))
	}
	if elem.Kind() == reflect.Struct {
		r.fields(elem, depth+1)
	}
	props := base.Properties()
	sort.Slice(props, func(i, j int) bool { return props[i].FullName() < props[j].FullName() })
	for _, p := range props {
		r.value(depth+1, p.FullName(), base.GetValue(p))
	}
	if attrs := elem.FieldByName("Attributes"); attrs.IsValid() && attrs.Kind() == reflect.Map {
		if m, ok := attrs.Interface().(map[string]any); ok {
			for _, name := range sortedKeys(m) {
				r.line(depth+1, "attr %s = %s", name, formatValue(m[name]))
			}
		}
	}
	for _, child := range base.Children.Items() {
		r.control(child, depth+1)
	}
}

var controlBaseType = reflect.TypeFor[controls.ControlBase]()

// fields prints the non-zero markup fields of a control struct, including
// the ones promoted from embedded controls.
func (r *treeRenderer) fields(v reflect.Value, depth int) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			if f.Type != controlBaseType && f.Type.Kind() == reflect.Struct {
				r.fields(v.Field(i), depth)
			}
			continue
		}
		tag, ok := f.Tag.Lookup("markup")
		if !ok || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)
		if !f.IsExported() {
			getter := tagOption(opts, "getter")
			if getter == "" || !v.CanAddr() {
				continue
			}
			m := v.Addr().MethodByName(getter)
			if !m.IsValid() || m.Type().NumIn() != 0 || m.Type().NumOut() != 1 {
				continue
			}
			fv = m.Call(nil)[0]
		}
		if fv.IsZero() {
			continue
		}
		r.value(depth, name, fv.Interface())
	}
}

func (r *treeRenderer) value(depth int, name string, x any) {
	switch x := x.(type) {
	case *controls.ControlCollection:
		if x == nil {
			r.line(depth, "%s = nil", name)
			return
		}
		r.line(depth, "%s:", name)
		for _, item := range x.Items() {
			r.control(item, depth+1)
		}
	case controls.Template:
		r.line(depth, "%s:", name)
		container := controls.NewMarkupControl()
		x.BuildContent(r.factory, r.services, container)
		for _, item := range container.Children.Items() {
			r.control(item, depth+1)
		}
	default:
		r.line(depth, "%s = %s", name, formatValue(x))
	}
}

func formatValue(x any) string {
	switch x := x.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func tagOption(opts, key string) string {
	for _, opt := range strings.Split(opts, ",") {
		if k, v, ok := strings.Cut(opt, "="); ok && k == key {
			return v
		}
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
