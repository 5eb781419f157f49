package outputs

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds registered output factories. The server uses it to build the
// configured GELF transport. Transport packages (e.g. gelfout) register their
// factories in init().
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// GlobalRegistry is the registry transports register into at init time.
var GlobalRegistry = NewRegistry()

// NewRegistry returns a new Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for an output type.
func (r *Registry) Register(factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factory.Name()] = factory
}

// Create builds an Output for the given type and config.
func (r *Registry) Create(name string, cfg Config) (Output, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown output type: %s", name)
	}
	return factory.Create(cfg)
}

// CreateFromSpec builds an Output described by spec.
func (r *Registry) CreateFromSpec(spec OutputSpec) (Output, error) {
	return r.Create(spec.Type, spec.ConfigWithDefaults())
}

// ListRegistered returns all registered output type names, sorted.
func (r *Registry) ListRegistered() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// GetTypeInfo returns the config spec for the given output type. ok is false if the type is not registered.
func (r *Registry) GetTypeInfo(name string) (info OutputTypeInfo, ok bool) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return OutputTypeInfo{}, false
	}
	return factory.ConfigSpec(), true
}

// AllTypesInfo returns config specs for all registered output types, sorted by type.
func (r *Registry) AllTypesInfo() []OutputTypeInfo {
	r.mu.RLock()
	out := make([]OutputTypeInfo, 0, len(r.factories))
	for _, factory := range r.factories {
		out = append(out, factory.ConfigSpec())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
