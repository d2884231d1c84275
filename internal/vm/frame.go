package vm

import (
	"go/token"
	"reflect"
)

// LocalSlot holds one variable. V is always addressable so assignments
// write through.
type LocalSlot struct {
	Name string
	V    reflect.Value
}

// scope is a lexical block. Function literals keep the scope they were
// created in.
type scope struct {
	parent *scope
	locals map[string]*LocalSlot
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, locals: make(map[string]*LocalSlot)}
}

// define declares name with the type t and stores v into it.
func (s *scope) define(name string, t reflect.Type, v reflect.Value) *LocalSlot {
	slot := &LocalSlot{Name: name, V: reflect.New(t).Elem()}
	if v.IsValid() {
		slot.V.Set(v)
	}
	s.locals[name] = slot
	return slot
}

func (s *scope) lookup(name string) (*LocalSlot, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if slot, ok := cur.locals[name]; ok {
			return slot, true
		}
	}
	return nil, false
}

// Frame represents a function activation record on the call stack.
type Frame struct {
	Func string
	Pos  token.Pos // Current statement for error reporting
}
