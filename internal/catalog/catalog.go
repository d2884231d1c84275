// Package catalog knows the Go packages of controls linked into the
// compiler. It locates controls by tag, loads markup control headers and
// reflects control types into metadata.
package catalog

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sync"

	"viewc/internal/config"
	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/internal/names"
	"viewc/internal/source"
	"viewc/internal/tree"
	"viewc/internal/types"
	"viewc/runtime/controls"
)

// Package is a Go package exposing controls to markup.
type Package struct {
	// Path is the import path, matched against rule namespaces.
	Path string
	// Module is the Go module the package belongs to, matched against rule
	// assemblies.
	Module   string
	Controls []controls.ControlInfo
	Enums    []controls.EnumInfo
}

// Library describes the bundled control library.
func Library() Package {
	return Package{
		Path:     config.ControlsPackage,
		Module:   "viewc",
		Controls: controls.Library(),
		Enums:    controls.Enums(),
	}
}

type entry struct {
	pkg      Package
	controls map[string]*types.Descriptor // folded name -> struct type
}

// Catalog implements controltree.ControlLocator and
// controltree.MetadataBuilder. Safe for concurrent use.
type Catalog struct {
	registry *types.Registry
	files    *source.FileSet
	root     string

	mu       sync.RWMutex
	packages map[string]*entry
}

// New creates a catalog with the bundled library registered. Markup control
// sources are resolved against root and loaded into files.
func New(reg *types.Registry, files *source.FileSet, root string) (*Catalog, error) {
	if reg == nil {
		reg = types.NewRegistry()
	}
	if files == nil {
		files = source.NewFileSet(root)
	}
	c := &Catalog{registry: reg, files: files, root: root, packages: make(map[string]*entry)}
	if err := c.Register(Library()); err != nil {
		return nil, err
	}
	return c, nil
}

// Registry returns the descriptor registry controls are registered in.
func (c *Catalog) Registry() *types.Registry { return c.registry }

// Files returns the file set markup controls are loaded into.
func (c *Catalog) Files() *source.FileSet { return c.files }

// Register adds a package of controls. Constructors and enum members are
// recorded on the type descriptors.
func (c *Catalog) Register(pkg Package) error {
	e := &entry{pkg: pkg, controls: make(map[string]*types.Descriptor, len(pkg.Controls))}
	for _, ci := range pkg.Controls {
		if ci.Type.Kind() != reflect.Struct {
			return fmt.Errorf("catalog: control %s must be a struct type", ci.Type)
		}
		if ci.Type.PkgPath() != pkg.Path {
			return fmt.Errorf("catalog: control %s does not belong to package %s", ci.Type, pkg.Path)
		}
		d, err := c.registry.FromReflect(ci.Type)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if ci.Constructor != "" {
			if _, err := c.registry.SetConstructor(ci.Type, ci.Constructor); err != nil {
				return fmt.Errorf("catalog: %w", err)
			}
		}
		e.controls[names.Fold(d.Name)] = d
	}
	for _, ei := range pkg.Enums {
		members := make([]types.EnumMember, len(ei.Members))
		for i, m := range ei.Members {
			v, err := enumBits(m.Value)
			if err != nil {
				return fmt.Errorf("catalog: enum %s member %s: %w", ei.Type, m.Name, err)
			}
			members[i] = types.EnumMember{Name: m.Name, Ident: m.Ident, Value: v}
		}
		if _, err := c.registry.RegisterEnum(ei.Type, ei.Flags, members...); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packages[pkg.Path] = e
	return nil
}

func enumBits(v any) (uint64, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return uint64(rv.Int()), nil
	case rv.CanUint():
		return rv.Uint(), nil
	}
	return 0, fmt.Errorf("value %v of type %T is not an integer", v, v)
}

// Packages lists the registered import paths.
func (c *Catalog) Packages() []Package {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Package, 0, len(c.packages))
	for _, e := range c.packages {
		out = append(out, e.pkg)
	}
	return out
}

// FindCompiledControl looks tagName up among the controls of namespace.
// Unknown names are reported through found; unknown packages are errors.
func (c *Catalog) FindCompiledControl(tagName, namespace, assembly string) (controltree.ControlType, bool, error) {
	c.mu.RLock()
	e, ok := c.packages[namespace]
	c.mu.RUnlock()
	if !ok {
		return controltree.ControlType{}, false, fmt.Errorf("package %s is not linked into the compiler", namespace)
	}
	if assembly != "" && e.pkg.Module != assembly {
		return controltree.ControlType{}, false, fmt.Errorf("package %s belongs to module %q, not %q", namespace, e.pkg.Module, assembly)
	}
	d, ok := e.controls[names.Fold(tagName)]
	if !ok {
		return controltree.ControlType{}, false, nil
	}
	return controltree.ControlType{Type: d}, true, nil
}

// FindMarkupControl loads the header of the markup control at src (relative
// to the catalog root). The control type is its base type, MarkupControl by
// default.
func (c *Catalog) FindMarkupControl(src string) (controltree.ControlType, error) {
	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.root, src)
	}
	f, ok := c.files.GetByPath(path)
	if !ok {
		id, err := c.files.Load(path)
		if err != nil {
			return controltree.ControlType{}, diag.Wrap(diag.IOLoadFileError, src, err, "load markup control")
		}
		f, _ = c.files.Get(id)
	}
	v, err := tree.Parse(f.VirtualPath, f.Content)
	if err != nil {
		return controltree.ControlType{}, err
	}
	return c.ControlTypeOf(v, reflect.TypeFor[controls.MarkupControl]())
}

// ControlTypeOf returns the control type a view builds: its base type (or
// fallback) with the view's virtual path and data context.
func (c *Catalog) ControlTypeOf(v *tree.View, fallback reflect.Type) (controltree.ControlType, error) {
	var base *types.Descriptor
	var err error
	if v.BaseType != "" {
		base, err = c.ResolveTypeName(v.BaseType)
	} else {
		base, err = c.registry.FromReflect(fallback)
	}
	if err != nil {
		return controltree.ControlType{}, err
	}
	ct := controltree.ControlType{Type: base, VirtualPath: v.Path}
	if v.DataContext != "" {
		if ct.DataContext, err = c.ResolveTypeName(v.DataContext); err != nil {
			return controltree.ControlType{}, err
		}
	}
	return ct, nil
}

// ResolveTypeName returns the descriptor of a fully qualified type name
// ("import/path.Name"). Types never seen by the registry become named
// placeholders so generated code can still reference them.
func (c *Catalog) ResolveTypeName(full string) (*types.Descriptor, error) {
	if d, ok := c.registry.Lookup(full); ok {
		return d, nil
	}
	dot := -1
	for i := len(full) - 1; i >= 0; i-- {
		if full[i] == '.' {
			dot = i
			break
		}
		if full[i] == '/' {
			break
		}
	}
	if dot <= 0 || dot == len(full)-1 {
		return nil, diag.Errorf(diag.ResolveUnknownType, full, "type name %q must be qualified with its import path", full)
	}
	return c.registry.Named(full[:dot], full[dot+1:], types.KindStruct), nil
}

// HTMLControl is the control used for tags without a prefix.
func (c *Catalog) HTMLControl() controltree.ControlType {
	return controltree.ControlType{Type: c.registry.MustFromReflect(reflect.TypeFor[controls.HTMLGenericControl]())}
}
