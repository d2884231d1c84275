package vm

import (
	"reflect"

	"viewc/internal/codegen"
	"viewc/runtime/controls"
)

// Builder runs a loaded builder file as a controls.ControlBuilder. Failures
// panic because the interface has no error channel, which matches how the
// compiled builder behaves.
type Builder struct {
	prog *Program
}

var _ controls.ControlBuilder = (*Builder)(nil)

// Builder adapts p.
func (p *Program) Builder() *Builder {
	return &Builder{prog: p}
}

func (b *Builder) BuildControl(controlBuilderFactory controls.ControlBuilderFactory, services controls.ServiceProvider) controls.Control {
	out, err := b.prog.Call(codegen.BuildControlMethod, controlBuilderFactory, services)
	if err != nil {
		panic(err)
	}
	c, _ := out[0].(controls.Control)
	return c
}

func (b *Builder) DataContextType() reflect.Type { return b.typeResult("DataContextType") }

func (b *Builder) ControlType() reflect.Type { return b.typeResult("ControlType") }

func (b *Builder) typeResult(method string) reflect.Type {
	out, err := b.prog.Call(method)
	if err != nil {
		panic(err)
	}
	t, _ := out[0].(reflect.Type)
	return t
}
