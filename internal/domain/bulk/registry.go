package bulk

import (
	"fmt"
	"sort"
	"sync"
)

// SchemaRegistry holds the entity schemas known to the engine.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*EntitySchema
}

// NewSchemaRegistry creates a registry and registers the given schemas.
func NewSchemaRegistry(schemas ...*EntitySchema) (*SchemaRegistry, error) {
	r := &SchemaRegistry{schemas: make(map[string]*EntitySchema, len(schemas))}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and adds a schema, replacing any schema with the same name.
func (r *SchemaRegistry) Register(s *EntitySchema) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("register schema: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schemas[s.Name] = s
	return nil
}

// Get returns the schema for entity or ErrUnknownEntity.
func (r *SchemaRegistry) Get(entity string) (*EntitySchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	return s, nil
}

// Names returns the registered entity names in sorted order.
func (r *SchemaRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
