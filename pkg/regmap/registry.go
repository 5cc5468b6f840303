package regmap

import (
	"fmt"
	"sync"
)

// Registry holds the register maps of every supported generation
type Registry struct {
	mu   sync.RWMutex
	maps map[string]Map
}

// globalRegistry is the default registry, seeded with the built-in generations
var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		maps: make(map[string]Map),
	}
}

// Add adds a map to the global registry
func Add(m Map) error {
	return globalRegistry.Add(m)
}

// Get retrieves a map from the global registry
func Get(generation string) (Map, error) {
	return globalRegistry.Get(generation)
}

// List returns all registered generation names
func List() []string {
	return globalRegistry.List()
}

// Add validates and adds a map
func (r *Registry) Add(m Map) error {
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.maps[m.Generation]; exists {
		return fmt.Errorf("register map %q already registered", m.Generation)
	}

	r.maps[m.Generation] = m
	return nil
}

// Get retrieves a map by generation name
func (r *Registry) Get(generation string) (Map, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.maps[generation]
	if !exists {
		return Map{}, fmt.Errorf("register map %q not found", generation)
	}

	return m, nil
}

// List returns all generation names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.maps))
	for name := range r.maps {
		names = append(names, name)
	}
	return sorted(names)
}
