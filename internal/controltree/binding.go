package controltree

// BindingKind enumerates the binding expression kinds.
type BindingKind uint8

const (
	BindingValue BindingKind = iota + 1
	BindingCommand
	BindingControlProperty
	BindingControlCommand
	BindingResource
	BindingStaticCommand
)

// BindingParserOptions tells how the expression of a binding is compiled.
type BindingParserOptions struct {
	Kind BindingKind
	// Name is the canonical discriminator ("value", "staticCommand").
	Name string
	// ParameterName is the implicit parameter the expression is bound to;
	// empty means the data context.
	ParameterName string
}

func (o BindingParserOptions) String() string { return o.Name }

// IsCommand reports bindings that run on user interaction.
func (o BindingParserOptions) IsCommand() bool {
	switch o.Kind {
	case BindingCommand, BindingControlCommand, BindingStaticCommand:
		return true
	}
	return false
}
