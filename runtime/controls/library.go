package controls

import "reflect"

// View is the root control of a page.
type View struct {
	ControlBase
	Title string `markup:"Title"`
}

func NewView() *View {
	v := &View{}
	v.initBase()
	return v
}

// MarkupControl is the default base of controls defined in markup files.
type MarkupControl struct {
	ControlBase
}

func NewMarkupControl() *MarkupControl {
	c := &MarkupControl{}
	c.initBase()
	return c
}

// HTMLGenericControl renders an arbitrary HTML element.
type HTMLGenericControl struct {
	ControlBase
	TagName    string         `markup:"-"`
	Attributes map[string]any `markup:"-"`
}

var (
	// HTMLGenericControlAttributesGroup collects unknown attributes.
	HTMLGenericControlAttributesGroup = RegisterPropertyGroup[HTMLGenericControl, any]("Attributes", GroupConfig{
		Prefixes: []string{""},
		Mode:     GroupValueCollection,
		Field:    "Attributes",
		Var:      "HTMLGenericControlAttributesGroup",
	})
	// HTMLGenericControlClassGroup toggles CSS classes: Class-active="true".
	HTMLGenericControlClassGroup = RegisterPropertyGroup[HTMLGenericControl, bool]("CssClasses", GroupConfig{
		Prefixes: []string{"Class-"},
		Var:      "HTMLGenericControlClassGroup",
	})
	HTMLGenericControlVisibleProperty = RegisterProperty[HTMLGenericControl, bool]("Visible",
		WithDefault(true), WithVar("HTMLGenericControlVisibleProperty"))
)

func NewHTMLGenericControl(tagName string) *HTMLGenericControl {
	c := &HTMLGenericControl{TagName: tagName, Attributes: make(map[string]any)}
	c.initBase()
	return c
}

// Literal renders text.
type Literal struct {
	ControlBase
	RenderSpan bool `markup:"RenderSpan"`
}

var LiteralTextProperty = RegisterProperty[Literal, any]("Text", WithVar("LiteralTextProperty"))

// AllowsChildren reports that literals render text only.
func (*Literal) AllowsChildren() bool { return false }

func NewLiteral() *Literal {
	c := &Literal{}
	c.initBase()
	return c
}

// ButtonType selects the rendered button kind.
type ButtonType int

const (
	ButtonTypeSubmit ButtonType = iota
	ButtonTypeButton
	ButtonTypeReset
)

// Button raises a command.
type Button struct {
	HTMLGenericControl
	Text       string     `markup:"Text"`
	ButtonType ButtonType `markup:"ButtonType"`
}

var ButtonClickProperty = RegisterProperty[Button, Binding]("Click", WithVar("ButtonClickProperty"))

func NewButton() *Button {
	c := &Button{HTMLGenericControl: HTMLGenericControl{TagName: "button", Attributes: make(map[string]any)}}
	c.initBase()
	return c
}

// TextOptions is a set of value normalizations applied by TextBox.
type TextOptions uint8

const (
	TextOptionsNone  TextOptions = 0
	TextOptionsTrim  TextOptions = 1
	TextOptionsUpper TextOptions = 2
	TextOptionsLower TextOptions = 4
)

// TextBox edits a value.
type TextBox struct {
	HTMLGenericControl
	Options     TextOptions `markup:"Options"`
	MaxLength   int         `markup:"MaxLength"`
	Placeholder string      `markup:"Placeholder"`
	Step        float64     `markup:"Step"`
}

var TextBoxTextProperty = RegisterProperty[TextBox, any]("Text", WithVar("TextBoxTextProperty"))

func (*TextBox) AllowsChildren() bool { return false }

func NewTextBox() *TextBox {
	c := &TextBox{HTMLGenericControl: HTMLGenericControl{TagName: "input", Attributes: make(map[string]any)}}
	c.initBase()
	return c
}

// Panel groups content with an optional header and footer.
type Panel struct {
	ControlBase
	Items  *ControlCollection `markup:"Items,content"`
	footer *ControlCollection `markup:"Footer,getter=Footer"`
}

// PanelHeaderProperty holds the header controls.
var PanelHeaderProperty = RegisterProperty[Panel, *ControlCollection]("Header", WithVar("PanelHeaderProperty"))

func NewPanel() *Panel {
	c := &Panel{}
	c.initBase()
	return c
}

// Footer is read-only; it stays nil until SetFooter is called.
func (p *Panel) Footer() *ControlCollection { return p.footer }

func (p *Panel) SetFooter(c *ControlCollection) { p.footer = c }

// Repeater instantiates ItemTemplate for every item of DataSource.
type Repeater struct {
	ControlBase
	ItemTemplate Template `markup:"ItemTemplate,template"`
	WrapperTag   string   `markup:"WrapperTag"`
}

var RepeaterDataSourceProperty = RegisterProperty[Repeater, any]("DataSource", WithVar("RepeaterDataSourceProperty"))

func NewRepeater() *Repeater {
	c := &Repeater{WrapperTag: "div"}
	c.initBase()
	return c
}

// Translator looks up localized texts.
type Translator interface {
	Translate(key string) string
}

// KeyTranslator returns keys unchanged.
type KeyTranslator struct{}

func (KeyTranslator) Translate(key string) string { return key }

// Resource renders the localized text stored under Key.
type Resource struct {
	ControlBase
	Key        string `markup:"Key"`
	translator Translator
}

func (*Resource) RequiresInjection() {}

func (*Resource) AllowsChildren() bool { return false }

// NewResource is the registered constructor of *Resource; the translator
// comes from the service provider.
func NewResource(translator Translator) *Resource {
	c := &Resource{translator: translator}
	c.initBase()
	return c
}

// Text returns the localized text of Key.
func (r *Resource) Text() string {
	if r.translator == nil {
		return r.Key
	}
	return r.translator.Translate(r.Key)
}

func init() {
	RegisterConstructor(reflect.TypeFor[*Resource](), NewResource)
}

// ControlInfo describes a control type exported by this package.
// Injected controls have no Constructor: they are built by a factory.
type ControlInfo struct {
	Type        reflect.Type
	Constructor string
}

// EnumValue is one member of an exported enum.
type EnumValue struct {
	Name  string
	Ident string
	Value any
}

// EnumInfo describes an exported enum type.
type EnumInfo struct {
	Type    reflect.Type
	Flags   bool
	Members []EnumValue
}

// Library lists the controls of this package.
func Library() []ControlInfo {
	return []ControlInfo{
		{reflect.TypeFor[View](), "NewView"},
		{reflect.TypeFor[MarkupControl](), "NewMarkupControl"},
		{reflect.TypeFor[HTMLGenericControl](), "NewHTMLGenericControl"},
		{reflect.TypeFor[Literal](), "NewLiteral"},
		{reflect.TypeFor[Button](), "NewButton"},
		{reflect.TypeFor[TextBox](), "NewTextBox"},
		{reflect.TypeFor[Panel](), "NewPanel"},
		{reflect.TypeFor[Repeater](), "NewRepeater"},
		{reflect.TypeFor[Resource](), ""},
	}
}

// Enums lists the enum types of this package.
func Enums() []EnumInfo {
	return []EnumInfo{
		{
			Type: reflect.TypeFor[ButtonType](),
			Members: []EnumValue{
				{"Submit", "ButtonTypeSubmit", ButtonTypeSubmit},
				{"Button", "ButtonTypeButton", ButtonTypeButton},
				{"Reset", "ButtonTypeReset", ButtonTypeReset},
			},
		},
		{
			Type:  reflect.TypeFor[TextOptions](),
			Flags: true,
			Members: []EnumValue{
				{"None", "TextOptionsNone", TextOptionsNone},
				{"Trim", "TextOptionsTrim", TextOptionsTrim},
				{"Upper", "TextOptionsUpper", TextOptionsUpper},
				{"Lower", "TextOptionsLower", TextOptionsLower},
			},
		},
	}
}
