package agent

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Registry manages tool registration and lookup. Instances are
// independent; there is no process-wide registry.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolWithSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]ToolWithSchema{}}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(tool ToolWithSchema) error {
	if tool == nil || tool.Name() == "" {
		return errors.New("tool must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return errors.Errorf("tool %q already registered", tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// MustRegister registers all tools, panicking on conflicts. Used at
// startup where a duplicate name is a programming error.
func (r *Registry) MustRegister(tools ...ToolWithSchema) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the named tool.
func (r *Registry) Get(name string) (ToolWithSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools sorted by name.
func (r *Registry) List() []ToolWithSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolWithSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
