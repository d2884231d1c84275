package controls

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ControlBuilder builds the control tree of one compiled view.
type ControlBuilder interface {
	BuildControl(controlBuilderFactory ControlBuilderFactory, services ServiceProvider) Control
	DataContextType() reflect.Type
	ControlType() reflect.Type
}

// ControlBuilderFactory finds the builder of a markup file.
type ControlBuilderFactory interface {
	GetControlBuilder(virtualPath string) ControlBuilder
}

// BuilderRegistry maps virtual paths to builders.
type BuilderRegistry struct {
	mu       sync.RWMutex
	builders map[string]ControlBuilder
}

// Builders receives the builders registered by generated init functions.
var Builders = NewBuilderRegistry()

func NewBuilderRegistry() *BuilderRegistry {
	return &BuilderRegistry{builders: make(map[string]ControlBuilder)}
}

// RegisterBuilder adds b to Builders under virtualPath.
func RegisterBuilder(virtualPath string, b ControlBuilder) {
	Builders.Register(virtualPath, b)
}

func (r *BuilderRegistry) Register(virtualPath string, b ControlBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[virtualPath] = b
}

func (r *BuilderRegistry) Lookup(virtualPath string) (ControlBuilder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[virtualPath]
	return b, ok
}

// GetControlBuilder panics for unknown paths: generated code has no error
// channel and a missing builder means the build output is incomplete.
func (r *BuilderRegistry) GetControlBuilder(virtualPath string) ControlBuilder {
	b, ok := r.Lookup(virtualPath)
	if !ok {
		panic(fmt.Errorf("controls: no builder registered for %q", virtualPath))
	}
	return b
}

// Paths lists the registered virtual paths in order.
func (r *BuilderRegistry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for p := range r.builders {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Template produces content inside a container at request time.
type Template interface {
	BuildContent(controlBuilderFactory ControlBuilderFactory, services ServiceProvider, container Control)
}

// TemplateFunc is the shape of generated template bodies.
type TemplateFunc func(controlBuilderFactory ControlBuilderFactory, services ServiceProvider, templateContainer Control)

// DelegateTemplate adapts a generated template body to Template.
type DelegateTemplate struct {
	Build TemplateFunc
}

func NewDelegateTemplate(build TemplateFunc) *DelegateTemplate {
	return &DelegateTemplate{Build: build}
}

func (t *DelegateTemplate) BuildContent(controlBuilderFactory ControlBuilderFactory, services ServiceProvider, container Control) {
	t.Build(controlBuilderFactory, services, container)
}
