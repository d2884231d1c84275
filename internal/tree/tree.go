// Package tree holds the parsed markup of a view: a header with the base
// type, data context and directives, followed by a tree of control nodes.
//
// Views are stored as JSON or YAML documents:
//
//	baseType: viewc/runtime/controls.View
//	dataContext: example.com/app.PageModel
//	directives:
//	  - {name: masterPage, value: site.yaml}
//	nodes:
//	  - tag: Button
//	    prefix: ui
//	    attributes:
//	      - {name: Text, value: Save}
//	      - {name: Click, binding: {kind: command, expr: Save()}}
package tree

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Directive is an @name value line of the view header.
type Directive struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Binding is the {kind: expression} form of an attribute value.
type Binding struct {
	Kind       string `json:"kind" yaml:"kind"`
	Expression string `json:"expr" yaml:"expr"`
}

// Attribute sets a property from a literal or a binding.
type Attribute struct {
	Name    string   `json:"name" yaml:"name"`
	Value   string   `json:"value,omitempty" yaml:"value,omitempty"`
	Binding *Binding `json:"binding,omitempty" yaml:"binding,omitempty"`
}

// PropertyElement is a property written as a child element, holding
// controls (a collection) or a template body.
type PropertyElement struct {
	Name     string  `json:"name" yaml:"name"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// Node is an element (Tag set) or a text node (Text set).
type Node struct {
	Prefix     string            `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Tag        string            `json:"tag,omitempty" yaml:"tag,omitempty"`
	Text       string            `json:"text,omitempty" yaml:"text,omitempty"`
	Attributes []Attribute       `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Properties []PropertyElement `json:"properties,omitempty" yaml:"properties,omitempty"`
	Children   []*Node           `json:"children,omitempty" yaml:"children,omitempty"`
	// Line is the source line; YAML documents fill it in automatically.
	Line int `json:"line,omitempty" yaml:"line,omitempty"`
}

// IsText reports a text node.
func (n *Node) IsText() bool { return n.Tag == "" }

// Name renders prefix:tag for diagnostics.
func (n *Node) Name() string {
	if n.IsText() {
		return "#text"
	}
	if n.Prefix == "" {
		return n.Tag
	}
	return n.Prefix + ":" + n.Tag
}

// UnmarshalYAML records the line of the node mapping.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	type plain Node
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*n = Node(p)
	if n.Line == 0 {
		n.Line = value.Line
	}
	return nil
}

// View is one parsed view file.
type View struct {
	// Path is the virtual path the view is compiled and registered under.
	Path        string      `json:"-" yaml:"-"`
	BaseType    string      `json:"baseType,omitempty" yaml:"baseType,omitempty"`
	DataContext string      `json:"dataContext,omitempty" yaml:"dataContext,omitempty"`
	Directives  []Directive `json:"directives,omitempty" yaml:"directives,omitempty"`
	Nodes       []*Node     `json:"nodes,omitempty" yaml:"nodes,omitempty"`
}

// Directive returns the value of the named directive.
func (v *View) Directive(name string) (string, bool) {
	for _, d := range v.Directives {
		if d.Name == name {
			return d.Value, true
		}
	}
	return "", false
}

// Walk visits every node depth first, property element children included.
// The path argument is a slash separated list of node indices.
func Walk(nodes []*Node, fn func(path string, n *Node) error) error {
	return walk("", nodes, fn)
}

func walk(prefix string, nodes []*Node, fn func(string, *Node) error) error {
	for i, n := range nodes {
		path := prefix + "/" + strconv.Itoa(i)
		if err := fn(path, n); err != nil {
			return err
		}
		for _, pe := range n.Properties {
			if err := walk(path+"/"+pe.Name, pe.Children, fn); err != nil {
				return err
			}
		}
		if err := walk(path, n.Children, fn); err != nil {
			return err
		}
	}
	return nil
}
