package node

import (
	"fmt"
	"sort"
	"sync"
)

// UnknownTypeError is returned when a declared node type has no registered
// implementation.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("no node type registered as %q", e.Type)
}

// Registration pairs a node type's factory with its accepted param schema.
type Registration struct {
	Factory Factory
	Schema  Schema
}

// Registry maps node type names to registrations. Registration is additive
// only; there is no removal. Populate at process start, read concurrently
// afterwards.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Registration
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Registration)}
}

// Register associates typeName with a factory and schema. Registering the
// same name twice replaces the earlier registration; custom node kinds may
// shadow built-ins this way.
func (r *Registry) Register(typeName string, factory Factory, schema Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[typeName] = Registration{Factory: factory, Schema: schema}
}

// Resolve returns the registration for typeName.
func (r *Registry) Resolve(typeName string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.types[typeName]
	if !ok {
		return Registration{}, &UnknownTypeError{Type: typeName}
	}
	return reg, nil
}

// Types returns all registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Default is the process-wide registry. Built-in node kinds register
// themselves here from init() in the nodes package; import it blank to
// activate them:
//
//	import _ "github.com/ravi-parthasarathy/conduit/pkg/nodes"
var Default = NewRegistry()

// Register adds a registration to the Default registry.
func Register(typeName string, factory Factory, schema Schema) {
	Default.Register(typeName, factory, schema)
}
