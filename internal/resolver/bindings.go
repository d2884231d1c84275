package resolver

import (
	"viewc/internal/controltree"
	"viewc/internal/diag"
	"viewc/internal/names"
)

// ControlParameterName is the implicit parameter of control bindings.
const ControlParameterName = "_control"

var bindingOptions = func() map[string]controltree.BindingParserOptions {
	list := []controltree.BindingParserOptions{
		{Kind: controltree.BindingValue, Name: "value"},
		{Kind: controltree.BindingCommand, Name: "command"},
		{Kind: controltree.BindingControlProperty, Name: "controlProperty", ParameterName: ControlParameterName},
		{Kind: controltree.BindingControlCommand, Name: "controlCommand", ParameterName: ControlParameterName},
		{Kind: controltree.BindingResource, Name: "resource"},
		{Kind: controltree.BindingStaticCommand, Name: "staticCommand"},
	}
	m := make(map[string]controltree.BindingParserOptions, len(list))
	for _, o := range list {
		m[names.Fold(o.Name)] = o
	}
	return m
}()

// ResolveBinding maps a binding discriminator ("value", "command", ...) to
// its parser options. Matching is case-insensitive.
func ResolveBinding(name string) (controltree.BindingParserOptions, error) {
	if o, ok := bindingOptions[names.Fold(name)]; ok {
		return o, nil
	}
	return controltree.BindingParserOptions{}, diag.Errorf(diag.ResolveUnknownBinding, name,
		"the binding {%s: ... } is unknown", name)
}

// BindingNames lists the known discriminators.
func BindingNames() []string {
	return []string{"value", "command", "controlProperty", "controlCommand", "resource", "staticCommand"}
}
