package controls

import "strings"

// Binding is a value computed from the data context at request time.
type Binding interface {
	BindingKind() string
	Expr() string
}

// DataContextStack describes the chain of data context types a binding is
// evaluated against, innermost first.
type DataContextStack struct {
	Type   string
	Parent *DataContextStack
}

// NewDataContextStack builds a stack from types listed outermost first.
func NewDataContextStack(types ...string) *DataContextStack {
	var s *DataContextStack
	for _, t := range types {
		s = s.Push(t)
	}
	return s
}

// Types lists the frames outermost first, the order NewDataContextStack
// takes them in.
func (s *DataContextStack) Types() []string {
	out := make([]string, s.Depth())
	i := len(out)
	for cur := s; cur != nil; cur = cur.Parent {
		i--
		out[i] = cur.Type
	}
	return out
}

// Push returns a stack with typ on top of s.
func (s *DataContextStack) Push(typ string) *DataContextStack {
	return &DataContextStack{Type: typ, Parent: s}
}

// Depth counts the frames of the stack.
func (s *DataContextStack) Depth() int {
	n := 0
	for ; s != nil; s = s.Parent {
		n++
	}
	return n
}

func (s *DataContextStack) String() string {
	var parts []string
	for cur := s; cur != nil; cur = cur.Parent {
		parts = append(parts, cur.Type)
	}
	return strings.Join(parts, " <- ")
}

// BindingExpression is the compiled form of a {kind: expression} attribute.
type BindingExpression struct {
	Kind          string
	Expression    string
	ParameterName string
	DataContext   *DataContextStack
}

// NewBindingExpression is how generated code that does not share the
// compiler's object table recreates a binding.
func NewBindingExpression(kind, expression, parameterName string, dataContext *DataContextStack) *BindingExpression {
	return &BindingExpression{Kind: kind, Expression: expression, ParameterName: parameterName, DataContext: dataContext}
}

func (b *BindingExpression) BindingKind() string { return b.Kind }

func (b *BindingExpression) Expr() string { return b.Expression }

func (b *BindingExpression) String() string {
	return "{" + b.Kind + ": " + b.Expression + "}"
}
