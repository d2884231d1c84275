package codegen

import (
	"go/ast"
	"go/token"

	"viewc/internal/types"
)

// MethodKind selects how a method is rendered in the compilation unit.
type MethodKind uint8

const (
	// MethodInstance is a method on the builder type.
	MethodInstance MethodKind = iota
	// MethodStatic is a package function prefixed with the class name.
	MethodStatic
	// MethodOverride implements a runtime interface method; the builder
	// type gets a compile-time assertion against controls.ControlBuilder.
	MethodOverride
)

// Param is one parameter of an emitted method.
type Param struct {
	Name string
	Type *types.Descriptor
}

// Method is a method being built or already finished.
type Method struct {
	Name   string
	Result *types.Descriptor
	Params []Param
	Kind   MethodKind
	Body   []ast.Stmt

	// declared maps local names to their declaring statements.
	declared map[string]ast.Stmt
}

func (m *Method) append(stmt ast.Stmt) {
	m.Body = append(m.Body, stmt)
}

func (m *Method) declare(name string, stmt ast.Stmt) {
	if m.declared == nil {
		m.declared = make(map[string]ast.Stmt)
	}
	m.declared[name] = stmt
	m.append(stmt)
}

// finish inserts `_ = name` after every declaration nothing reads, so the
// unit compiles regardless of which handles the caller used.
func (m *Method) finish() {
	if len(m.declared) == 0 {
		return
	}
	uses := make(map[string]int, len(m.declared))
	for _, stmt := range m.Body {
		ast.Inspect(stmt, func(n ast.Node) bool {
			if id, ok := n.(*ast.Ident); ok {
				if _, tracked := m.declared[id.Name]; tracked {
					uses[id.Name]++
				}
			}
			return true
		})
	}
	body := make([]ast.Stmt, 0, len(m.Body))
	for _, stmt := range m.Body {
		body = append(body, stmt)
		for name, decl := range m.declared {
			// the declaring identifier counts as one occurrence
			if decl == stmt && uses[name] <= 1 {
				body = append(body, &ast.AssignStmt{
					Lhs: []ast.Expr{ast.NewIdent("_")},
					Tok: token.ASSIGN,
					Rhs: []ast.Expr{ast.NewIdent(name)},
				})
			}
		}
	}
	m.Body = body
	m.declared = nil
}

// MethodStack is the LIFO of methods under construction. Each Emitter owns
// its own stack.
type MethodStack struct {
	items []*Method
}

func (s *MethodStack) Push(m *Method) { s.items = append(s.items, m) }

// Pop removes the top method; ok is false on an empty stack.
func (s *MethodStack) Pop() (*Method, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	m := s.items[len(s.items)-1]
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
	return m, true
}

// Top returns the method currently receiving statements.
func (s *MethodStack) Top() (*Method, bool) {
	if len(s.items) == 0 {
		return nil, false
	}
	return s.items[len(s.items)-1], true
}

func (s *MethodStack) Len() int { return len(s.items) }
