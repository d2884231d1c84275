package diag

import (
	"errors"
	"fmt"
	"strings"
)

// Location points at a node inside a view tree.
type Location struct {
	File string
	Line int
	// Path is the element path, e.g. "ui:Panel/ui:Button".
	Path string
}

func (l Location) IsZero() bool { return l.File == "" && l.Line == 0 && l.Path == "" }

func (l Location) String() string {
	var b strings.Builder
	b.WriteString(l.File)
	if l.Line > 0 {
		fmt.Fprintf(&b, ":%d", l.Line)
	}
	if l.Path != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("<" + l.Path + ">")
	}
	return b.String()
}

// Error is the structured failure returned by resolution and emission.
type Error struct {
	Severity Severity
	Code     Code
	Message  string
	// Subject names the offending tag, property, binding or type.
	Subject  string
	Location Location
	Cause    error
}

// Errorf builds an error-severity diagnostic.
func Errorf(code Code, subject, format string, args ...any) *Error {
	return &Error{
		Severity: SevError,
		Code:     code,
		Subject:  subject,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Wrap attaches cause to a new diagnostic.
func Wrap(code Code, subject string, cause error, format string, args ...any) *Error {
	e := Errorf(code, subject, format, args...)
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if !e.Location.IsZero() {
		b.WriteString(e.Location.String())
		b.WriteString(": ")
	}
	b.WriteString(e.Code.ID())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code so callers can write
// errors.Is(err, &diag.Error{Code: diag.ResolveUnknownTag}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// At returns a copy of e located at loc. An existing location is kept.
func (e *Error) At(loc Location) *Error {
	if !e.Location.IsZero() {
		return e
	}
	cp := *e
	cp.Location = loc
	return &cp
}

// CodeOf extracts the diagnostic code from err, or UnknownCode.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return UnknownCode
}

// Locate attaches loc to err. A *Error is located in place; an error that
// wraps one keeps its whole chain under a located diagnostic with the same
// code. Errors of other types are wrapped into an UnknownCode diagnostic.
func Locate(err error, loc Location) error {
	if err == nil {
		return nil
	}
	var de *Error
	if !errors.As(err, &de) {
		return Wrap(UnknownCode, "", err, "unexpected failure").At(loc)
	}
	if err == error(de) {
		return de.At(loc)
	}
	if !de.Location.IsZero() {
		return err
	}
	return &Error{Severity: de.Severity, Code: de.Code, Subject: de.Subject, Location: loc, Cause: err}
}
