// Package schema loads declarative shape files and serves named shape
// definitions to the platform components. The registry is the one shared
// mutable structure: lookups take a read lock, hot reload swaps the whole
// definition set atomically.
package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360studio/semlink/shape"
)

// Definition is one registered schema: a named root shape plus the class
// its instances are typed with.
type Definition struct {
	// Name is the registry key, used in resource ids and request routing.
	Name string

	// Class is the rdf:type IRI asserted for instances. May be empty for
	// schemas that constrain untyped documents.
	Class string

	// Shape is the root shape documents are validated against.
	Shape shape.Shape

	// Source is the file the definition was loaded from, for diagnostics.
	Source string
}

// Registry holds the current definition set.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds or replaces a single definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("register schema: name is required")
	}
	if def.Shape == nil {
		return fmt.Errorf("register schema %q: shape is required", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
	return nil
}

// Lookup returns the definition for a schema name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered schema names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.defs)
}

// Snapshot returns a copy of the current definition set. Mutating the copy
// does not affect the registry.
func (r *Registry) Snapshot() map[string]Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Definition, len(r.defs))
	for name, def := range r.defs {
		out[name] = def
	}
	return out
}

// ReplaceAll swaps the full definition set. Hot reload goes through here so
// readers never observe a partially loaded registry.
func (r *Registry) ReplaceAll(defs map[string]Definition) {
	next := make(map[string]Definition, len(defs))
	for name, def := range defs {
		next[name] = def
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = next
}
