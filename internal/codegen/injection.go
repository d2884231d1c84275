package codegen

import (
	"go/ast"
	"strconv"
	"strings"
	"sync"

	"viewc/internal/diag"
	"viewc/internal/types"
)

// InjectionArg is an explicit constructor argument of an injected object.
type InjectionArg struct {
	Type *types.Descriptor
	Expr ast.Expr
}

// FactoryBuilder renders the initializer of a factory field creating t from
// explicit arguments of argTypes. The expression must evaluate to a
// controls.ObjectFactory.
type FactoryBuilder func(e *Emitter, t *types.Descriptor, argTypes []*types.Descriptor) (ast.Expr, error)

// DefaultFactoryBuilder emits controls.CreateFactory(reflect.TypeFor[T](), ...).
func DefaultFactoryBuilder(e *Emitter, t *types.Descriptor, argTypes []*types.Descriptor) (ast.Expr, error) {
	return e.Call(RuntimePackage, "CreateFactory",
		e.values.EmitTypeOf(t),
		e.values.EmitTypeArray(argTypes),
	), nil
}

type factoryKey struct {
	typ  string
	args string
}

// InjectionFactoryCache remembers the factory field created for each
// (type, argument types) combination of one unit.
type InjectionFactoryCache struct {
	mu sync.Mutex
	m  map[factoryKey]string
}

func NewInjectionFactoryCache() *InjectionFactoryCache {
	return &InjectionFactoryCache{m: make(map[factoryKey]string)}
}

func keyOf(t *types.Descriptor, argTypes []*types.Descriptor) factoryKey {
	parts := make([]string, len(argTypes))
	for i, a := range argTypes {
		parts[i] = a.FullName()
	}
	return factoryKey{typ: t.FullName(), args: strings.Join(parts, ";")}
}

// GetOrCreate returns the field cached for the key, calling create at most
// once per key.
func (c *InjectionFactoryCache) GetOrCreate(t *types.Descriptor, argTypes []*types.Descriptor, create func() (string, error)) (string, error) {
	key := keyOf(t, argTypes)
	c.mu.Lock()
	defer c.mu.Unlock()
	if name, ok := c.m[key]; ok {
		return name, nil
	}
	name, err := create()
	if err != nil {
		return "", err
	}
	c.m[key] = name
	return name, nil
}

// Len reports the number of cached factories.
func (c *InjectionFactoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

// EmitInjectionFactory creates an instance of t through a cached object
// factory, passing args explicitly and letting the factory resolve the rest
// from the service provider. It returns the variable holding the instance.
func (e *Emitter) EmitInjectionFactory(t *types.Descriptor, args ...InjectionArg) (string, error) {
	if _, err := e.current("EmitInjectionFactory"); err != nil {
		return "", err
	}
	if t == nil {
		return "", diag.Errorf(diag.EmitInvalidConstructor, "<nil>", "cannot inject a nil type")
	}
	argTypes := make([]*types.Descriptor, len(args))
	argExprs := make([]ast.Expr, len(args))
	for i, a := range args {
		argTypes[i] = a.Type
		argExprs[i] = a.Expr
	}
	name, err := e.factories.GetOrCreate(t, argTypes, func() (string, error) {
		init, err := e.opts.FactoryBuilder(e, t, argTypes)
		if err != nil {
			return "", err
		}
		name := "Obj_" + t.Underlying().Name + "_Factory_" + strconv.Itoa(len(e.fields))
		e.addField(name, init)
		return name, nil
	})
	if err != nil {
		return "", err
	}
	call := &ast.CallExpr{
		Fun: e.fieldRef(name),
		Args: []ast.Expr{
			ast.NewIdent(ServiceProviderParam),
			&ast.CompositeLit{Type: &ast.ArrayType{Elt: ast.NewIdent("any")}, Elts: argExprs},
		},
	}
	return e.CreateVariable(&ast.TypeAssertExpr{X: call, Type: e.types.ResolveTypeReference(t)})
}
