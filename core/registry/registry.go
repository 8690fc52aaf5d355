// Package registry provides the process-wide entity lookup. The
// registry is explicit, injectable state: packages that need the
// shared lookup take a *Registry rather than reaching for a global,
// and Default exists for callers that genuinely want the process-wide
// one. Init is the first Create; teardown is an explicit Clear.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artpar/formgate/core/entity"
)

// Registry maps entity keys to live entities.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*entity.Entity
	log      zerolog.Logger
}

// Default is the process-wide registry.
var Default = New(zerolog.Nop())

// New creates an empty registry.
func New(log zerolog.Logger) *Registry {
	return &Registry{
		entities: make(map[string]*entity.Entity),
		log:      log,
	}
}

// Create builds an entity, registers it under the given key, and
// wires its Destroy to unregister it. An empty key gets a generated
// one. Registering over a live key is an error.
func (r *Registry) Create(key string, opts ...entity.Option) (*entity.Entity, error) {
	if key == "" {
		key = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entities[key]; exists {
		return nil, fmt.Errorf("entity %q already registered", key)
	}

	opts = append(opts,
		entity.WithKey(key),
		entity.WithUnregister(func() { r.drop(key) }),
	)
	e := entity.New(opts...)
	r.entities[key] = e

	r.log.Debug().Str("entity", key).Msg("entity registered")
	return e, nil
}

// Get returns the entity registered under the key.
func (r *Registry) Get(key string) (*entity.Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[key]
	return e, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.entities))
	for k := range r.entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// Remove drops a registration without destroying the entity, which
// stays valid standalone. Returns whether the key was registered.
func (r *Registry) Remove(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entities[key]; !ok {
		return false
	}
	delete(r.entities, key)
	return true
}

// Clear drops every registration. Registered entities stay valid.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = make(map[string]*entity.Entity)
}

// drop is the unregister hook handed to created entities.
func (r *Registry) drop(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entities, key)
	r.log.Debug().Str("entity", key).Msg("entity unregistered")
}
