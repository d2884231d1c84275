package controls

import (
	"fmt"
	"reflect"
	"sync"
)

// Property is a dynamic property whose values live in ControlBase rather
// than in a struct field.
type Property struct {
	Name    string
	Owner   reflect.Type
	Type    reflect.Type
	Default any
	// Var is the exported package variable holding the property, if any.
	Var string

	Group  *PropertyGroup
	Member string
}

// PropertyOption customizes RegisterProperty.
type PropertyOption func(*Property)

// WithDefault sets the value GetValue reports before anything is stored.
func WithDefault(v any) PropertyOption {
	return func(p *Property) { p.Default = v }
}

// WithVar records the package variable that holds the property.
func WithVar(name string) PropertyOption {
	return func(p *Property) { p.Var = name }
}

func (p *Property) FullName() string {
	if p.Owner == nil {
		return p.Name
	}
	return p.Owner.Name() + "." + p.Name
}

func (p *Property) String() string { return p.FullName() }

func (p *Property) GetValue(c Control) any { return c.Base().GetValue(p) }

func (p *Property) SetValue(c Control, v any) { c.Base().SetValue(p, v) }

// GroupMode tells how members of a property group store their values.
type GroupMode uint8

const (
	// GroupPlain members are ordinary dynamic properties.
	GroupPlain GroupMode = iota
	// GroupValueCollection members are keys of a map field on the control.
	GroupValueCollection
)

// PropertyGroup is a family of properties sharing a name prefix, such as
// "Class-" or the catch-all HTML attribute group.
type PropertyGroup struct {
	Name      string
	Owner     reflect.Type
	ValueType reflect.Type
	Prefixes  []string
	Mode      GroupMode
	// Field is the map field for value collection groups.
	Field string
	Var   string

	mu      sync.Mutex
	members map[string]*Property
}

// GroupConfig describes a property group for RegisterPropertyGroup.
type GroupConfig struct {
	Prefixes []string
	Mode     GroupMode
	Field    string
	Var      string
}

// GetProperty returns the member property for name, creating it on first use.
// Repeated calls return the same *Property.
func (g *PropertyGroup) GetProperty(member string) *Property {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.members[member]; ok {
		return p
	}
	if g.members == nil {
		g.members = make(map[string]*Property)
	}
	p := &Property{
		Name:   g.Name + ":" + member,
		Owner:  g.Owner,
		Type:   g.ValueType,
		Group:  g,
		Member: member,
	}
	g.members[member] = p
	return p
}

var registry = struct {
	mu         sync.RWMutex
	properties map[reflect.Type][]*Property
	groups     map[reflect.Type][]*PropertyGroup
}{
	properties: make(map[reflect.Type][]*Property),
	groups:     make(map[reflect.Type][]*PropertyGroup),
}

// RegisterProperty declares a dynamic property named name on the control O
// with values of type T.
func RegisterProperty[O any, T any](name string, opts ...PropertyOption) *Property {
	p := &Property{
		Name:  name,
		Owner: reflect.TypeFor[O](),
		Type:  reflect.TypeFor[T](),
	}
	for _, opt := range opts {
		opt(p)
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	for _, prev := range registry.properties[p.Owner] {
		if prev.Name == name {
			panic(fmt.Errorf("controls: property %s registered twice", p.FullName()))
		}
	}
	registry.properties[p.Owner] = append(registry.properties[p.Owner], p)
	return p
}

// RegisterPropertyGroup declares a property group on the control O.
func RegisterPropertyGroup[O any, T any](name string, cfg GroupConfig) *PropertyGroup {
	g := &PropertyGroup{
		Name:      name,
		Owner:     reflect.TypeFor[O](),
		ValueType: reflect.TypeFor[T](),
		Prefixes:  append([]string(nil), cfg.Prefixes...),
		Mode:      cfg.Mode,
		Field:     cfg.Field,
		Var:       cfg.Var,
	}
	if g.Mode == GroupValueCollection && g.Field == "" {
		panic(fmt.Errorf("controls: value collection group %s needs a map field", name))
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.groups[g.Owner] = append(registry.groups[g.Owner], g)
	return g
}

// PropertiesOf returns the dynamic properties declared directly on owner.
func PropertiesOf(owner reflect.Type) []*Property {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return append([]*Property(nil), registry.properties[owner]...)
}

// GroupsOf returns the property groups declared directly on owner.
func GroupsOf(owner reflect.Type) []*PropertyGroup {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return append([]*PropertyGroup(nil), registry.groups[owner]...)
}
