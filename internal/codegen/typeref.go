package codegen

import (
	"go/ast"
	"go/token"
	"sort"
	"strconv"
	"sync/atomic"

	"fortio.org/safecast"

	"viewc/internal/types"
)

// CoreAlias is returned for types of the universe scope, which are referenced
// without a package qualifier and need no import.
const CoreAlias = "global"

// AliasPrefix starts every generated import alias.
const AliasPrefix = "Asm_"

// AliasCounter hands out alias numbers. One counter is shared by all
// compilation units of a build so aliases never collide across units.
type AliasCounter struct {
	n atomic.Uint32
}

func (c *AliasCounter) next() string {
	v := c.n.Add(1) - 1
	return AliasPrefix + strconv.FormatUint(uint64(v), 10)
}

// Value reports how many aliases have been handed out.
func (c *AliasCounter) Value() int {
	v, err := safecast.Conv[int](c.n.Load())
	if err != nil {
		panic(err)
	}
	return v
}

// Import is one aliased import of a compilation unit.
type Import struct {
	Alias string
	Path  string
}

// TypeTable tracks the modules referenced by one compilation unit and turns
// type descriptors into AST type expressions.
type TypeTable struct {
	counter *AliasCounter
	aliases map[string]string
	order   []Import
}

// NewTypeTable creates a table drawing aliases from counter.
func NewTypeTable(counter *AliasCounter) *TypeTable {
	if counter == nil {
		counter = &AliasCounter{}
	}
	return &TypeTable{counter: counter, aliases: make(map[string]string)}
}

// UseModule returns the alias of module path, assigning one on first use.
func (t *TypeTable) UseModule(path string) string {
	if path == "" {
		return CoreAlias
	}
	if alias, ok := t.aliases[path]; ok {
		return alias
	}
	alias := t.counter.next()
	t.aliases[path] = alias
	t.order = append(t.order, Import{Alias: alias, Path: path})
	return alias
}

// Use registers every module needed to reference d (its base types first,
// then element and argument types, then its own) and returns the alias of
// d's own module.
func (t *TypeTable) Use(d *types.Descriptor) string {
	if d == nil {
		return CoreAlias
	}
	if d.IsNamed() {
		if d.Base != nil {
			t.Use(d.Base)
		}
		for _, a := range d.Args {
			t.Use(a)
		}
		return t.UseModule(d.Module())
	}
	if d.Key != nil {
		t.Use(d.Key)
	}
	if d.Elem != nil {
		t.Use(d.Elem)
	}
	for _, p := range d.Params {
		t.Use(p)
	}
	for _, r := range d.Results {
		t.Use(r)
	}
	return CoreAlias
}

// ResolveTypeReference returns the AST node naming d. Void resolves to nil.
func (t *TypeTable) ResolveTypeReference(d *types.Descriptor) ast.Expr {
	if d.IsVoid() {
		return nil
	}
	if d.IsNamed() {
		alias := t.Use(d)
		var ref ast.Expr = ast.NewIdent(d.Name)
		if alias != CoreAlias {
			ref = &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(d.Name)}
		}
		switch len(d.Args) {
		case 0:
			return ref
		case 1:
			return &ast.IndexExpr{X: ref, Index: t.ResolveTypeReference(d.Args[0])}
		default:
			args := make([]ast.Expr, len(d.Args))
			for i, a := range d.Args {
				args[i] = t.ResolveTypeReference(a)
			}
			return &ast.IndexListExpr{X: ref, Indices: args}
		}
	}
	switch d.Kind {
	case types.KindPointer:
		return &ast.StarExpr{X: t.ResolveTypeReference(d.Elem)}
	case types.KindSlice:
		return &ast.ArrayType{Elt: t.ResolveTypeReference(d.Elem)}
	case types.KindArray:
		return &ast.ArrayType{
			Len: &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(d.Len)},
			Elt: t.ResolveTypeReference(d.Elem),
		}
	case types.KindMap:
		return &ast.MapType{Key: t.ResolveTypeReference(d.Key), Value: t.ResolveTypeReference(d.Elem)}
	case types.KindFunc:
		return t.funcType(d)
	case types.KindInterface:
		return ast.NewIdent("any")
	}
	return &ast.BadExpr{}
}

func (t *TypeTable) funcType(d *types.Descriptor) *ast.FuncType {
	ft := &ast.FuncType{Params: &ast.FieldList{}}
	for _, p := range d.Params {
		ft.Params.List = append(ft.Params.List, &ast.Field{Type: t.ResolveTypeReference(p)})
	}
	if len(d.Results) > 0 {
		ft.Results = &ast.FieldList{}
		for _, r := range d.Results {
			ft.Results.List = append(ft.Results.List, &ast.Field{Type: t.ResolveTypeReference(r)})
		}
	}
	return ft
}

// Imports lists the aliased modules in alias order.
func (t *TypeTable) Imports() []Import {
	out := append([]Import(nil), t.order...)
	sort.SliceStable(out, func(i, j int) bool {
		return aliasNumber(out[i].Alias) < aliasNumber(out[j].Alias)
	})
	return out
}

func aliasNumber(alias string) int {
	n, err := strconv.Atoi(alias[len(AliasPrefix):])
	if err != nil {
		return -1
	}
	return n
}
