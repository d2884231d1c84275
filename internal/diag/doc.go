// Package diag defines the error model shared by the resolver, the code
// emitter and the driver.
//
// Every failure that is meant for a user is an *Error carrying a numeric Code
// (see codes.go), the subject it is about (tag, property, binding name or
// type) and, once the view compiler knows it, the Location of the offending
// node. Codes are grouped by range:
//
//   - RES1xxx: control, property and binding resolution;
//   - EMT2xxx: code emission and compilation unit assembly;
//   - IO3xxx: loading views and configuration, writing outputs.
//
// An *Error aborts only the view being compiled. Shared caches never store
// failed results, so a later view hitting the same tag retries resolution.
//
// errors.Is compares diagnostics by code, errors.As exposes the full record.
package diag
