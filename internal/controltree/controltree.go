// Package controltree describes resolved controls: their types, properties
// and the collaborators the resolver relies on to discover them.
package controltree

import (
	"sort"
	"strings"

	"viewc/internal/names"
	"viewc/internal/types"
)

// ControlType identifies a control the markup can instantiate. Values are
// comparable and used as cache keys.
type ControlType struct {
	// Type is the named struct type; generated variables hold *Type.
	Type *types.Descriptor
	// VirtualPath is set for controls defined in markup files.
	VirtualPath string
	DataContext *types.Descriptor
}

// IsMarkup reports whether the control is built by another view builder.
func (c ControlType) IsMarkup() bool { return c.VirtualPath != "" }

// Key renders a stable string form, used for in-flight deduplication.
func (c ControlType) Key() string {
	var b strings.Builder
	b.WriteString(c.Type.FullName())
	if c.VirtualPath != "" {
		b.WriteString("@")
		b.WriteString(c.VirtualPath)
	}
	if c.DataContext != nil {
		b.WriteString("#")
		b.WriteString(c.DataContext.FullName())
	}
	return b.String()
}

func (c ControlType) String() string { return c.Key() }

// PropertyKind is the closed set of property shapes.
type PropertyKind uint8

const (
	// PropertyMember is a struct field (or read-only accessor) of the control.
	PropertyMember PropertyKind = iota + 1
	// PropertyDynamic is stored through a runtime property descriptor.
	PropertyDynamic
	// PropertyGroupMember is one member of a property group.
	PropertyGroupMember
)

func (k PropertyKind) String() string {
	switch k {
	case PropertyMember:
		return "member"
	case PropertyDynamic:
		return "dynamic"
	case PropertyGroupMember:
		return "group member"
	}
	return "invalid"
}

// GroupMode mirrors the runtime group modes.
type GroupMode uint8

const (
	GroupPlain GroupMode = iota
	GroupValueCollection
)

// PropertyGroup describes a family of properties sharing a prefix.
type PropertyGroup struct {
	Name          string
	Prefixes      []string
	DeclaringType *types.Descriptor
	ValueType     *types.Descriptor
	Mode          GroupMode
	// Field is the map field of value collection groups.
	Field string
	// DescriptorField is the package variable holding the runtime group,
	// whose GetProperty produces member descriptors.
	DescriptorField string
	Runtime         any
}

// Member returns the property for one member of the group.
func (g *PropertyGroup) Member(name string) *Property {
	return &Property{
		Name:          name,
		Kind:          PropertyGroupMember,
		DeclaringType: g.DeclaringType,
		Type:          g.ValueType,
		Group:         g,
		MemberName:    name,
	}
}

// Property describes a settable control property.
type Property struct {
	Name          string
	Kind          PropertyKind
	DeclaringType *types.Descriptor
	Type          *types.Descriptor

	// Field is the struct field of a settable member.
	Field string
	// Getter is the accessor method of a read-only member.
	Getter string
	// DescriptorField is the package variable holding the runtime descriptor.
	DescriptorField string
	// Runtime is the runtime descriptor (*controls.Property), used when no
	// variable refers to it.
	Runtime any

	Group      *PropertyGroup
	MemberName string

	IsTemplate bool
	IsContent  bool
}

// FullName is "Owner.Name" for diagnostics.
func (p *Property) FullName() string {
	owner := "?"
	if p.DeclaringType != nil {
		owner = p.DeclaringType.Name
	}
	if p.Kind == PropertyGroupMember && p.Group != nil {
		return owner + "." + p.Group.Name + "[" + p.MemberName + "]"
	}
	return owner + "." + p.Name
}

// ReadOnly reports a member without a settable field.
func (p *Property) ReadOnly() bool {
	return p.Kind == PropertyMember && p.Field == ""
}

// Metadata is everything the compiler needs to know about a control type.
type Metadata struct {
	Type       ControlType
	Properties map[string]*Property
	Groups     []*PropertyGroup
	// DefaultContent receives child nodes when set.
	DefaultContent *Property
	// Bases lists the ancestor types, nearest first.
	Bases         []*types.Descriptor
	AllowsContent bool
	// RequiresInjection marks controls built by a dependency injection
	// factory instead of their constructor.
	RequiresInjection bool
}

// NewMetadata returns metadata with an empty property table.
func NewMetadata(ct ControlType) *Metadata {
	return &Metadata{Type: ct, Properties: make(map[string]*Property)}
}

// AddProperty indexes p by its case-folded name. Properties of derived types
// are added first and win over base declarations.
func (m *Metadata) AddProperty(p *Property) {
	key := names.Fold(p.Name)
	if _, ok := m.Properties[key]; ok {
		return
	}
	m.Properties[key] = p
	if p.IsContent && m.DefaultContent == nil {
		m.DefaultContent = p
	}
}

// FindProperty looks a property up by name, falling back to the property
// groups. Longer group prefixes are tried first so the catch-all "" prefix
// is matched last.
func (m *Metadata) FindProperty(name string) (*Property, bool) {
	if p, ok := m.Properties[names.Fold(name)]; ok {
		return p, true
	}
	type candidate struct {
		group  *PropertyGroup
		prefix string
	}
	var cands []candidate
	for _, g := range m.Groups {
		for _, prefix := range g.Prefixes {
			cands = append(cands, candidate{g, prefix})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return len(cands[i].prefix) > len(cands[j].prefix) })
	folded := names.Fold(name)
	for _, c := range cands {
		fp := names.Fold(c.prefix)
		if strings.HasPrefix(folded, fp) && len(name) > len(c.prefix) {
			return c.group.Member(name[len(c.prefix):]), true
		}
	}
	return nil, false
}

// SortedProperties lists the property table by name.
func (m *Metadata) SortedProperties() []*Property {
	out := make([]*Property, 0, len(m.Properties))
	for _, p := range m.Properties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ControlLocator finds control types named by configuration rules.
type ControlLocator interface {
	// FindCompiledControl looks tagName up in a Go package. found is false
	// when the package has no such control.
	FindCompiledControl(tagName, namespace, assembly string) (ct ControlType, found bool, err error)
	// FindMarkupControl loads the control defined by a markup file.
	FindMarkupControl(src string) (ControlType, error)
}

// MetadataBuilder builds Metadata for a control type.
type MetadataBuilder interface {
	BuildControlMetadata(ct ControlType) (*Metadata, error)
}
