package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages workflow handlers by name.
type Registry struct {
	handlers map[string]Handler
	mu       sync.RWMutex
}

// NewRegistry creates a new workflow registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// NewDefaultRegistry returns a registry holding every built-in workflow.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, h := range []Handler{
		NewComputeMigrationHandler(),
		NewStorageReplicationHandler(),
		NewVolumeReplicationHandler(),
	} {
		// Built-in names are unique.
		_ = r.Register(h)
	}
	return r
}

// Register registers a workflow handler under its name.
func (r *Registry) Register(handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := handler.Name()
	if _, exists := r.handlers[key]; exists {
		return fmt.Errorf("workflow handler for %s already registered", key)
	}

	r.handlers[key] = handler
	return nil
}

// Get retrieves the workflow handler registered under name.
func (r *Registry) Get(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, exists := r.handlers[name]
	if !exists {
		return nil, fmt.Errorf("no workflow handler registered for %q (available: %v)", name, r.namesLocked())
	}

	return handler, nil
}

// List returns all registered workflow handlers sorted by name.
func (r *Registry) List() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := make([]Handler, 0, len(r.handlers))
	for _, name := range r.namesLocked() {
		handlers = append(handlers, r.handlers[name])
	}
	return handlers
}

// Names returns the registered workflow names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
