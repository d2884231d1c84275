// Package controls is the runtime library generated view builders link
// against: the control model, dynamic properties, bindings, templates and
// the builder registry.
package controls

// Control is implemented by every control through an embedded ControlBase.
type Control interface {
	Base() *ControlBase
	// Add appends child to the default children collection.
	Add(child Control)
}

// ChildrenPolicy is implemented by controls that reject child content.
type ChildrenPolicy interface {
	AllowsChildren() bool
}

// Injected is implemented by controls whose registered constructor takes
// services. Compiled views create them through an ObjectFactory.
type Injected interface {
	RequiresInjection()
}

// ControlBase carries the state shared by all controls.
type ControlBase struct {
	ID         string `markup:"ID"`
	Children   ControlCollection
	Directives map[string]string

	values map[*Property]any
}

func (c *ControlBase) Base() *ControlBase { return c }

func (c *ControlBase) Add(child Control) { c.Children.Add(child) }

func (c *ControlBase) initBase() {
	if c.Directives == nil {
		c.Directives = make(map[string]string)
	}
}

// GetValue returns the stored value of p or its default.
func (c *ControlBase) GetValue(p *Property) any {
	if v, ok := c.values[p]; ok {
		return v
	}
	return p.Default
}

// SetValue stores v for p.
func (c *ControlBase) SetValue(p *Property, v any) {
	if c.values == nil {
		c.values = make(map[*Property]any)
	}
	c.values[p] = v
}

// IsSet reports whether a value was stored for p.
func (c *ControlBase) IsSet(p *Property) bool {
	_, ok := c.values[p]
	return ok
}

// Properties returns the properties that hold a value.
func (c *ControlBase) Properties() []*Property {
	out := make([]*Property, 0, len(c.values))
	for p := range c.values {
		out = append(out, p)
	}
	return out
}

// ControlCollection is an ordered list of child controls.
type ControlCollection struct {
	items []Control
}

// NewControlCollection returns an empty collection.
func NewControlCollection() *ControlCollection { return &ControlCollection{} }

func (c *ControlCollection) Add(child Control) {
	c.items = append(c.items, child)
}

func (c *ControlCollection) Items() []Control { return c.items }

func (c *ControlCollection) Len() int { return len(c.items) }
