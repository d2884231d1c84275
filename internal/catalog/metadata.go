package catalog

import (
	"reflect"
	"strings"

	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/internal/types"
	"viewc/runtime/controls"
)

// TagName is the struct tag declaring markup properties:
//
//	Text  string             `markup:"Text"`
//	Items *ControlCollection `markup:"Items,content"`
//	body  Template           `markup:"Body,template,getter=Body"`
//
// Untagged fields and fields tagged "-" are not visible to markup.
const TagName = "markup"

var (
	controlBaseType = reflect.TypeFor[controls.ControlBase]()
	templateType    = reflect.TypeFor[controls.Template]()
	policyType      = reflect.TypeFor[controls.ChildrenPolicy]()
	injectedType    = reflect.TypeFor[controls.Injected]()
)

type fieldTag struct {
	name     string
	content  bool
	template bool
	getter   string
}

func parseTag(tag string) (fieldTag, bool) {
	if tag == "" || tag == "-" {
		return fieldTag{}, false
	}
	parts := strings.Split(tag, ",")
	ft := fieldTag{name: strings.TrimSpace(parts[0])}
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "content":
			ft.content = true
		case opt == "template":
			ft.template = true
		case strings.HasPrefix(opt, "getter="):
			ft.getter = strings.TrimPrefix(opt, "getter=")
		}
	}
	return ft, ft.name != ""
}

// BuildControlMetadata reflects the properties of ct's type and every
// embedded ancestor. Declarations of derived types shadow their bases.
func (c *Catalog) BuildControlMetadata(ct controltree.ControlType) (*controltree.Metadata, error) {
	if ct.Type == nil {
		return nil, diag.Errorf(diag.ResolveUnknownType, "", "control type is missing")
	}
	rt := ct.Type.Reflect
	if rt == nil {
		return nil, diag.Errorf(diag.ResolveUnknownType, ct.Type.FullName(),
			"type %s is not linked into the compiler", ct.Type.FullName())
	}
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	md := controltree.NewMetadata(ct)
	for cur := rt; cur != nil; cur = embeddedBase(cur) {
		owner, err := c.registry.FromReflect(cur)
		if err != nil {
			return nil, diag.Wrap(diag.ResolveMetadata, cur.String(), err, "describe %s", cur)
		}
		if cur != rt {
			md.Bases = append(md.Bases, owner)
		}
		if cur == controlBaseType {
			md.AllowsContent = true
		}
		if err := c.addFields(md, cur, owner); err != nil {
			return nil, err
		}
		if err := c.addDynamic(md, cur, owner); err != nil {
			return nil, err
		}
	}
	if md.AllowsContent && reflect.PointerTo(rt).Implements(policyType) {
		md.AllowsContent = reflect.New(rt).Interface().(controls.ChildrenPolicy).AllowsChildren()
	}
	md.RequiresInjection = reflect.PointerTo(rt).Implements(injectedType)
	return md, nil
}

func embeddedBase(rt reflect.Type) reflect.Type {
	if rt.Kind() != reflect.Struct || rt.NumField() == 0 {
		return nil
	}
	f := rt.Field(0)
	if !f.Anonymous {
		return nil
	}
	t := f.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func (c *Catalog) addFields(md *controltree.Metadata, rt reflect.Type, owner *types.Descriptor) error {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.Anonymous {
			continue
		}
		tag, ok := parseTag(f.Tag.Get(TagName))
		if !ok {
			continue
		}
		if !f.IsExported() && tag.getter == "" {
			return diag.Errorf(diag.ResolveMetadata, owner.Name+"."+f.Name,
				"unexported field %s.%s needs a getter option to be used from markup", owner.Name, f.Name)
		}
		typ, err := c.registry.FromReflect(f.Type)
		if err != nil {
			return diag.Wrap(diag.ResolveMetadata, owner.Name+"."+tag.name, err, "property %s.%s", owner.Name, tag.name)
		}
		p := &controltree.Property{
			Name:          tag.name,
			Kind:          controltree.PropertyMember,
			DeclaringType: owner,
			Type:          typ,
			IsTemplate:    tag.template || f.Type == templateType,
			IsContent:     tag.content,
		}
		if f.IsExported() {
			p.Field = f.Name
		} else {
			p.Getter = tag.getter
		}
		md.AddProperty(p)
	}
	return nil
}

func (c *Catalog) addDynamic(md *controltree.Metadata, rt reflect.Type, owner *types.Descriptor) error {
	for _, rp := range controls.PropertiesOf(rt) {
		typ, err := c.registry.FromReflect(rp.Type)
		if err != nil {
			return diag.Wrap(diag.ResolveMetadata, rp.FullName(), err, "property %s", rp.FullName())
		}
		md.AddProperty(&controltree.Property{
			Name:            rp.Name,
			Kind:            controltree.PropertyDynamic,
			DeclaringType:   owner,
			Type:            typ,
			DescriptorField: rp.Var,
			Runtime:         rp,
			IsTemplate:      rp.Type == templateType,
		})
	}
	for _, rg := range controls.GroupsOf(rt) {
		vt, err := c.registry.FromReflect(rg.ValueType)
		if err != nil {
			return diag.Wrap(diag.ResolveMetadata, rg.Name, err, "property group %s", rg.Name)
		}
		mode := controltree.GroupPlain
		if rg.Mode == controls.GroupValueCollection {
			mode = controltree.GroupValueCollection
		}
		md.Groups = append(md.Groups, &controltree.PropertyGroup{
			Name:            rg.Name,
			Prefixes:        append([]string(nil), rg.Prefixes...),
			DeclaringType:   owner,
			ValueType:       vt,
			Mode:            mode,
			Field:           rg.Field,
			DescriptorField: rg.Var,
			Runtime:         rg,
		})
	}
	return nil
}
