package vm

import (
	"fmt"
	"go/token"
	"strings"
)

// PanicCode identifies the type of VM panic.
type PanicCode int

// Stable panic codes - do not change values.
const (
	PanicUnknownIdent    PanicCode = 1001 // VM1001: identifier not in scope
	PanicTypeMismatch    PanicCode = 1002 // VM1002: type mismatch
	PanicNilDereference  PanicCode = 1003 // VM1003: nil dereference
	PanicUnknownMember   PanicCode = 1004 // VM1004: no such field or method
	PanicUnknownPackage  PanicCode = 1005 // VM1005: import without exports
	PanicUnknownFunction PanicCode = 1006 // VM1006: no such function
	PanicArity           PanicCode = 1007 // VM1007: wrong number of values
	PanicExplicit        PanicCode = 1008 // VM1008: panic called by the program
	PanicRuntime         PanicCode = 1009 // VM1009: reflect level failure
	PanicUnimplemented   PanicCode = 1999 // VM1999: unsupported syntax
)

// String returns the code as "VM1001" format.
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// BacktraceFrame represents one frame in the panic backtrace.
type BacktraceFrame struct {
	FuncName string
	Pos      token.Position
}

// VMError represents a runtime panic in the VM.
type VMError struct {
	Code      PanicCode
	Message   string
	Pos       token.Position   // Location where panic occurred
	Backtrace []BacktraceFrame // Stack frames from top to bottom
}

// Error implements the error interface.
func (p *VMError) Error() string {
	return fmt.Sprintf("panic %s: %s", p.Code, p.Message)
}

// Format renders the panic with its location and backtrace.
func (p *VMError) Format() string {
	var sb strings.Builder

	// Header: panic VM1004: <message>
	sb.WriteString(fmt.Sprintf("panic %s: %s\n", p.Code, p.Message))
	sb.WriteString("at ")
	sb.WriteString(formatPos(p.Pos))
	sb.WriteString("\n")

	if len(p.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, frame := range p.Backtrace {
			sb.WriteString(fmt.Sprintf("  %d: %s at %s\n", i, frame.FuncName, formatPos(frame.Pos)))
		}
	}

	return sb.String()
}

// formatPos formats a position as "file:line:col" or "<no-pos>".
func formatPos(pos token.Position) string {
	if !pos.IsValid() {
		return "<no-pos>"
	}
	return pos.String()
}

// errorBuilder helps construct VMError values.
type errorBuilder struct {
	vm *VM
}

func (eb *errorBuilder) makeError(code PanicCode, msg string) *VMError {
	e := &VMError{
		Code:    code,
		Message: msg,
	}
	stack := eb.vm.Stack
	if len(stack) > 0 {
		e.Pos = eb.vm.position(stack[len(stack)-1].Pos)
	}

	// Build backtrace from stack (top to bottom)
	e.Backtrace = make([]BacktraceFrame, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		e.Backtrace[len(stack)-1-i] = BacktraceFrame{
			FuncName: stack[i].Func,
			Pos:      eb.vm.position(stack[i].Pos),
		}
	}
	return e
}

func (eb *errorBuilder) unknownIdent(name string) *VMError {
	return eb.makeError(PanicUnknownIdent, fmt.Sprintf("undefined: %s", name))
}

func (eb *errorBuilder) typeMismatch(expected, got string) *VMError {
	return eb.makeError(PanicTypeMismatch, fmt.Sprintf("expected %s, got %s", expected, got))
}

func (eb *errorBuilder) nilDereference(what string) *VMError {
	return eb.makeError(PanicNilDereference, fmt.Sprintf("nil dereference in %s", what))
}

func (eb *errorBuilder) unknownMember(typ, name string) *VMError {
	return eb.makeError(PanicUnknownMember, fmt.Sprintf("%s has no field or method %s", typ, name))
}

func (eb *errorBuilder) arity(what string, want, got int) *VMError {
	return eb.makeError(PanicArity, fmt.Sprintf("%s: want %d values, got %d", what, want, got))
}

func (eb *errorBuilder) unimplemented(what string) *VMError {
	return eb.makeError(PanicUnimplemented, fmt.Sprintf("unimplemented: %s", what))
}
