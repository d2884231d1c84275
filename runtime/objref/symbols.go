package objref

import "reflect"

// Symbols exports the identifiers of this package for interpreters of
// generated builders.
func Symbols() map[string]reflect.Value {
	return map[string]reflect.Value{
		"Table":   reflect.ValueOf((*Table)(nil)),
		"New":     reflect.ValueOf(New),
		"Default": reflect.ValueOf(&Default).Elem(),
	}
}
