package tool

import (
	"fmt"
	"sync"
)

// Registry manages tool registration and lookup. List preserves
// registration order so tools/list output is stable.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
	order []string
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Descriptor),
	}
}

// Register adds a tool to the registry
func (r *Registry) Register(d Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}

	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.tools[name]
	return d, ok
}

// List returns all registered tools
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Names returns the registered tool names in order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}
