package controls

import "reflect"

// Symbols exports the identifiers of this package for interpreters of
// generated builders. Types are nil pointers, variables are addressable.
func Symbols() map[string]reflect.Value {
	return map[string]reflect.Value{
		// types
		"Binding":               reflect.ValueOf((*Binding)(nil)),
		"BindingExpression":     reflect.ValueOf((*BindingExpression)(nil)),
		"BuilderRegistry":       reflect.ValueOf((*BuilderRegistry)(nil)),
		"Button":                reflect.ValueOf((*Button)(nil)),
		"ButtonType":            reflect.ValueOf((*ButtonType)(nil)),
		"ChildrenPolicy":        reflect.ValueOf((*ChildrenPolicy)(nil)),
		"Control":               reflect.ValueOf((*Control)(nil)),
		"ControlBase":           reflect.ValueOf((*ControlBase)(nil)),
		"ControlBuilder":        reflect.ValueOf((*ControlBuilder)(nil)),
		"ControlBuilderFactory": reflect.ValueOf((*ControlBuilderFactory)(nil)),
		"ControlCollection":     reflect.ValueOf((*ControlCollection)(nil)),
		"DataContextStack":      reflect.ValueOf((*DataContextStack)(nil)),
		"DelegateTemplate":      reflect.ValueOf((*DelegateTemplate)(nil)),
		"GroupMode":             reflect.ValueOf((*GroupMode)(nil)),
		"HTMLGenericControl":    reflect.ValueOf((*HTMLGenericControl)(nil)),
		"Injected":              reflect.ValueOf((*Injected)(nil)),
		"KeyTranslator":         reflect.ValueOf((*KeyTranslator)(nil)),
		"Literal":               reflect.ValueOf((*Literal)(nil)),
		"MarkupControl":         reflect.ValueOf((*MarkupControl)(nil)),
		"ObjectFactory":         reflect.ValueOf((*ObjectFactory)(nil)),
		"Panel":                 reflect.ValueOf((*Panel)(nil)),
		"Property":              reflect.ValueOf((*Property)(nil)),
		"PropertyGroup":         reflect.ValueOf((*PropertyGroup)(nil)),
		"Repeater":              reflect.ValueOf((*Repeater)(nil)),
		"Resource":              reflect.ValueOf((*Resource)(nil)),
		"ServiceProvider":       reflect.ValueOf((*ServiceProvider)(nil)),
		"Services":              reflect.ValueOf((*Services)(nil)),
		"Template":              reflect.ValueOf((*Template)(nil)),
		"TemplateFunc":          reflect.ValueOf((*TemplateFunc)(nil)),
		"TextBox":               reflect.ValueOf((*TextBox)(nil)),
		"TextOptions":           reflect.ValueOf((*TextOptions)(nil)),
		"Translator":            reflect.ValueOf((*Translator)(nil)),
		"View":                  reflect.ValueOf((*View)(nil)),

		// functions
		"CreateFactory":         reflect.ValueOf(CreateFactory),
		"NewBindingExpression":  reflect.ValueOf(NewBindingExpression),
		"NewButton":             reflect.ValueOf(NewButton),
		"NewControlCollection":  reflect.ValueOf(NewControlCollection),
		"NewDataContextStack":   reflect.ValueOf(NewDataContextStack),
		"NewDelegateTemplate":   reflect.ValueOf(NewDelegateTemplate),
		"NewHTMLGenericControl": reflect.ValueOf(NewHTMLGenericControl),
		"NewLiteral":            reflect.ValueOf(NewLiteral),
		"NewMarkupControl":      reflect.ValueOf(NewMarkupControl),
		"NewPanel":              reflect.ValueOf(NewPanel),
		"NewRepeater":           reflect.ValueOf(NewRepeater),
		"NewResource":           reflect.ValueOf(NewResource),
		"NewTextBox":            reflect.ValueOf(NewTextBox),
		"NewView":               reflect.ValueOf(NewView),
		"RegisterBuilder":       reflect.ValueOf(RegisterBuilder),
		"RegisterConstructor":   reflect.ValueOf(RegisterConstructor),

		// variables
		"Builders":                          reflect.ValueOf(&Builders).Elem(),
		"ButtonClickProperty":               reflect.ValueOf(&ButtonClickProperty).Elem(),
		"HTMLGenericControlAttributesGroup": reflect.ValueOf(&HTMLGenericControlAttributesGroup).Elem(),
		"HTMLGenericControlClassGroup":      reflect.ValueOf(&HTMLGenericControlClassGroup).Elem(),
		"HTMLGenericControlVisibleProperty": reflect.ValueOf(&HTMLGenericControlVisibleProperty).Elem(),
		"LiteralTextProperty":               reflect.ValueOf(&LiteralTextProperty).Elem(),
		"PanelHeaderProperty":               reflect.ValueOf(&PanelHeaderProperty).Elem(),
		"RepeaterDataSourceProperty":        reflect.ValueOf(&RepeaterDataSourceProperty).Elem(),
		"TextBoxTextProperty":               reflect.ValueOf(&TextBoxTextProperty).Elem(),

		// constants
		"ButtonTypeButton":     reflect.ValueOf(ButtonTypeButton),
		"ButtonTypeReset":      reflect.ValueOf(ButtonTypeReset),
		"ButtonTypeSubmit":     reflect.ValueOf(ButtonTypeSubmit),
		"GroupPlain":           reflect.ValueOf(GroupPlain),
		"GroupValueCollection": reflect.ValueOf(GroupValueCollection),
		"TextOptionsLower":     reflect.ValueOf(TextOptionsLower),
		"TextOptionsNone":      reflect.ValueOf(TextOptionsNone),
		"TextOptionsTrim":      reflect.ValueOf(TextOptionsTrim),
		"TextOptionsUpper":     reflect.ValueOf(TextOptionsUpper),
	}
}
