package controls

import (
	"fmt"
	"reflect"
	"sync"
)

// ServiceProvider resolves dependencies by type.
type ServiceProvider interface {
	GetService(t reflect.Type) (any, bool)
}

// Services is a map based ServiceProvider.
type Services map[reflect.Type]any

func (s Services) GetService(t reflect.Type) (any, bool) {
	v, ok := s[t]
	return v, ok
}

// Provide registers v as the service for T.
func Provide[T any](s Services, v T) {
	s[reflect.TypeFor[T]()] = v
}

// ObjectFactory creates an instance given explicit constructor arguments.
// Remaining constructor parameters are taken from services.
type ObjectFactory func(services ServiceProvider, args []any) any

var constructors = struct {
	mu sync.RWMutex
	m  map[reflect.Type]reflect.Value
}{m: make(map[reflect.Type]reflect.Value)}

// RegisterConstructor registers fn as the way to build values of type t. fn
// must be a function whose first result is assignable to t.
func RegisterConstructor(t reflect.Type, fn any) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func || ft.NumOut() == 0 || !ft.Out(0).AssignableTo(t) {
		panic(fmt.Errorf("controls: constructor for %s must be a func returning %s, got %s", t, t, ft))
	}
	constructors.mu.Lock()
	defer constructors.mu.Unlock()
	constructors.m[t] = fv
}

// CreateFactory builds an ObjectFactory for t taking arguments of argTypes.
// It panics when no registered constructor fits, which surfaces while the
// generated package initializes.
func CreateFactory(t reflect.Type, argTypes []reflect.Type) ObjectFactory {
	constructors.mu.RLock()
	fn, ok := constructors.m[t]
	constructors.mu.RUnlock()
	if !ok {
		if t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct && len(argTypes) == 0 {
			return func(ServiceProvider, []any) any { return reflect.New(t.Elem()).Interface() }
		}
		panic(fmt.Errorf("controls: no constructor registered for %s", t))
	}
	ft := fn.Type()
	if ft.NumIn() < len(argTypes) {
		panic(fmt.Errorf("controls: constructor %s takes %d parameters, %d arguments given", ft, ft.NumIn(), len(argTypes)))
	}
	for i, at := range argTypes {
		if !at.AssignableTo(ft.In(i)) {
			panic(fmt.Errorf("controls: argument %d of %s: %s is not assignable to %s", i, t, at, ft.In(i)))
		}
	}
	return func(services ServiceProvider, args []any) any {
		in := make([]reflect.Value, ft.NumIn())
		for i := range in {
			pt := ft.In(i)
			if i < len(args) {
				if args[i] == nil {
					in[i] = reflect.Zero(pt)
				} else {
					in[i] = reflect.ValueOf(args[i])
				}
				continue
			}
			var svc any
			found := false
			if services != nil {
				svc, found = services.GetService(pt)
			}
			if !found {
				panic(fmt.Errorf("controls: %s: no service registered for %s", t, pt))
			}
			in[i] = reflect.ValueOf(svc)
		}
		return fn.Call(in)[0].Interface()
	}
}
