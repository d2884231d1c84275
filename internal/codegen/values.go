package codegen

import (
	"go/ast"
	"go/token"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"viewc/internal/diag"
	"viewc/internal/types"
	"viewc/runtime/controls"
	"viewc/runtime/objref"
)

const (
	reflectPackage = "reflect"
	mathPackage    = "math"
	bigPackage     = "math/big"
)

// TableRef names the package variable generated code reads object
// references from.
type TableRef struct {
	Package string
	Var     string
}

// DefaultTableRef points at objref.Default.
var DefaultTableRef = TableRef{Package: "viewc/runtime/objref", Var: "Default"}

// IsImmutableObject reports values that are shared with generated code by
// reference instead of being re-created from a literal.
func IsImmutableObject(v any) bool {
	switch v.(type) {
	case controls.Binding, *controls.DataContextStack:
		return true
	}
	return false
}

// ValueEmitter turns runtime values into expressions that recreate them.
type ValueEmitter struct {
	types    *TypeTable
	registry *types.Registry
	objects  *objref.Table
	table    TableRef
	// refs counts the object table entries added through this emitter.
	refs int
}

// NewValueEmitter creates an emitter writing object references to objects,
// read back by generated code through table.
func NewValueEmitter(tt *TypeTable, reg *types.Registry, objects *objref.Table, table TableRef) *ValueEmitter {
	if objects == nil {
		objects = objref.Default
	}
	if table.Package == "" {
		table = DefaultTableRef
	}
	return &ValueEmitter{types: tt, registry: reg, objects: objects, table: table}
}

// EmitValue returns an expression evaluating to a value equal to v. Values
// satisfying IsImmutableObject evaluate to v itself.
func (e *ValueEmitter) EmitValue(v any) (ast.Expr, error) {
	switch x := v.(type) {
	case nil:
		return ast.NewIdent("nil"), nil
	case *types.Descriptor:
		return e.EmitTypeOf(x), nil
	case reflect.Type:
		d, err := e.registry.FromReflect(x)
		if err != nil {
			return nil, diag.Wrap(diag.EmitUnsupportedValue, x.String(), err, "type %s cannot be referenced", x)
		}
		return e.EmitTypeOf(d), nil
	case *big.Rat:
		return e.emitRat(x)
	}
	if IsImmutableObject(v) {
		return e.emitObjectReference(v), nil
	}
	return e.emitReflect(reflect.ValueOf(v))
}

// addObject stores v in the object table and returns its index.
func (e *ValueEmitter) addObject(v any) int {
	e.refs++
	return e.objects.Add(v)
}

// Refs reports how many object table entries this emitter added.
func (e *ValueEmitter) Refs() int { return e.refs }

func (e *ValueEmitter) emitObjectReference(v any) ast.Expr {
	idx := e.addObject(v)
	d, err := e.registry.FromReflect(reflect.TypeOf(v))
	if err != nil {
		d = nil
	}
	return e.EmitReference(idx, d)
}

// EmitReference reads entry idx of the object table, asserted to as when
// as is a concrete type.
func (e *ValueEmitter) EmitReference(idx int, as *types.Descriptor) ast.Expr {
	alias := e.types.UseModule(e.table.Package)
	var ref ast.Expr = &ast.CallExpr{
		Fun: &ast.SelectorExpr{
			X:   &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(e.table.Var)},
			Sel: ast.NewIdent("Ref"),
		},
		Args: []ast.Expr{intLit(strconv.Itoa(idx))},
	}
	if as != nil && !as.IsVoid() && as != e.registry.Builtins().Any {
		ref = &ast.TypeAssertExpr{X: ref, Type: e.types.ResolveTypeReference(as)}
	}
	return ref
}

// EmitTypeOf returns reflect.TypeFor[T]().
func (e *ValueEmitter) EmitTypeOf(d *types.Descriptor) ast.Expr {
	if d.IsVoid() {
		return ast.NewIdent("nil")
	}
	alias := e.types.UseModule(reflectPackage)
	return &ast.CallExpr{
		Fun: &ast.IndexExpr{
			X:     &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent("TypeFor")},
			Index: e.types.ResolveTypeReference(d),
		},
	}
}

// EmitTypeArray returns []reflect.Type{...} for ds.
func (e *ValueEmitter) EmitTypeArray(ds []*types.Descriptor) ast.Expr {
	alias := e.types.UseModule(reflectPackage)
	lit := &ast.CompositeLit{
		Type: &ast.ArrayType{Elt: &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent("Type")}},
	}
	for _, d := range ds {
		lit.Elts = append(lit.Elts, e.EmitTypeOf(d))
	}
	return lit
}

func (e *ValueEmitter) emitRat(r *big.Rat) (ast.Expr, error) {
	if !r.Num().IsInt64() || !r.Denom().IsInt64() {
		return nil, diag.Errorf(diag.EmitUnsupportedValue, "*big.Rat", "rational %s does not fit int64 parts", r.String())
	}
	alias := e.types.UseModule(bigPackage)
	return &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent("NewRat")},
		Args: []ast.Expr{signedLit(r.Num().Int64()), signedLit(r.Denom().Int64())},
	}, nil
}

func (e *ValueEmitter) emitReflect(rv reflect.Value) (ast.Expr, error) {
	rt := rv.Type()
	unsupported := func(cause error) error {
		if cause != nil {
			return diag.Wrap(diag.EmitUnsupportedValue, rt.String(), cause, "value of type %s cannot be emitted", rt)
		}
		return diag.Errorf(diag.EmitUnsupportedValue, rt.String(), "value of type %s cannot be emitted", rt)
	}
	d, err := e.registry.FromReflect(rt)
	if err != nil {
		return nil, unsupported(err)
	}
	if d.Enum() != nil {
		return e.emitEnum(rv, d), nil
	}
	plain := d.Name == rt.Kind().String() && d.Package == ""

	switch rv.Kind() {
	case reflect.String:
		lit := &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(rv.String())}
		if plain {
			return lit, nil
		}
		return e.convert(d, lit), nil
	case reflect.Bool:
		lit := ast.NewIdent(strconv.FormatBool(rv.Bool()))
		if plain {
			return lit, nil
		}
		return e.convert(d, lit), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		lit := signedLit(rv.Int())
		if plain && rv.Kind() == reflect.Int {
			return lit, nil
		}
		return e.convert(d, lit), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return e.convert(d, intLit(strconv.FormatUint(rv.Uint(), 10))), nil
	case reflect.Float32, reflect.Float64:
		bits := 64
		if rv.Kind() == reflect.Float32 {
			bits = 32
		}
		lit := e.floatLit(rv.Float(), bits)
		if plain && bits == 64 {
			return lit, nil
		}
		return e.convert(d, lit), nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return e.convert(d, ast.NewIdent("nil")), nil
		}
		lit := &ast.CompositeLit{Type: e.types.ResolveTypeReference(d)}
		// no cycle detection: a slice that contains itself overflows the stack
		for i := 0; i < rv.Len(); i++ {
			elem, err := e.EmitValue(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			lit.Elts = append(lit.Elts, elem)
		}
		return lit, nil
	}
	return nil, unsupported(nil)
}

// emitEnum renders the value as an OR chain of named members, or as a
// converted literal when no member combination matches.
func (e *ValueEmitter) emitEnum(rv reflect.Value, d *types.Descriptor) ast.Expr {
	var raw uint64
	var lit ast.Expr
	if rv.CanInt() {
		raw = uint64(rv.Int())
		lit = signedLit(rv.Int())
	} else {
		raw = rv.Uint()
		lit = intLit(strconv.FormatUint(raw, 10))
	}
	members, ok := d.Enum().Decompose(raw)
	if !ok {
		return e.convert(d, lit)
	}
	alias := e.types.Use(d)
	var out ast.Expr
	for _, m := range members {
		var ref ast.Expr = ast.NewIdent(m.Ident)
		if alias != CoreAlias {
			ref = &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(m.Ident)}
		}
		if out == nil {
			out = ref
			continue
		}
		out = &ast.BinaryExpr{X: out, Op: token.OR, Y: ref}
	}
	return out
}

func (e *ValueEmitter) floatLit(f float64, bits int) ast.Expr {
	switch {
	case math.IsNaN(f):
		return e.mathCall("NaN")
	case math.IsInf(f, 1):
		return e.mathCall("Inf", intLit("1"))
	case math.IsInf(f, -1):
		return e.mathCall("Inf", &ast.UnaryExpr{Op: token.SUB, X: intLit("1")})
	case f == 0 && math.Signbit(f):
		return e.mathCall("Copysign", &ast.BasicLit{Kind: token.FLOAT, Value: "0.0"}, &ast.UnaryExpr{Op: token.SUB, X: intLit("1")})
	}
	s := strconv.FormatFloat(math.Abs(f), 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	var lit ast.Expr = &ast.BasicLit{Kind: token.FLOAT, Value: s}
	if f < 0 {
		lit = &ast.UnaryExpr{Op: token.SUB, X: lit}
	}
	return lit
}

func (e *ValueEmitter) mathCall(fn string, args ...ast.Expr) ast.Expr {
	alias := e.types.UseModule(mathPackage)
	return &ast.CallExpr{
		Fun:  &ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(fn)},
		Args: args,
	}
}

// convert wraps x in a conversion to d.
func (e *ValueEmitter) convert(d *types.Descriptor, x ast.Expr) ast.Expr {
	var fun ast.Expr = e.types.ResolveTypeReference(d)
	switch fun.(type) {
	case *ast.StarExpr, *ast.FuncType:
		fun = &ast.ParenExpr{X: fun}
	}
	return &ast.CallExpr{Fun: fun, Args: []ast.Expr{x}}
}

func intLit(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.INT, Value: s}
}

// signedLit renders v; negative values become unary minus over the magnitude
// (spelled from the decimal string so math.MinInt64 survives).
func signedLit(v int64) ast.Expr {
	s := strconv.FormatInt(v, 10)
	if v < 0 {
		return &ast.UnaryExpr{Op: token.SUB, X: intLit(s[1:])}
	}
	return intLit(s)
}
