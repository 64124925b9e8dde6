package dialect

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrAlreadyRegistered is returned when a dialect is registered twice.
var ErrAlreadyRegistered = errors.New("dialect already registered")

// ErrFrozen is returned when registering into a frozen registry.
var ErrFrozen = errors.New("registry is frozen")

// Registry records which dialects are available to passes and the verifier.
//
// Registration happens once at startup. After Freeze the registry is
// read-only and lookups take no lock.
type Registry struct {
	mu       sync.Mutex
	frozen   atomic.Bool
	dialects map[string]*Dialect
	ops      map[Kind]*OpDef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		dialects: make(map[string]*Dialect),
		ops:      make(map[Kind]*OpDef),
	}
}

// Register adds a dialect and all of its operations.
func (r *Registry) Register(d *Dialect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("register %s: %w", d.Name, ErrFrozen)
	}
	if _, ok := r.dialects[d.Name]; ok {
		return fmt.Errorf("register %s: %w", d.Name, ErrAlreadyRegistered)
	}
	for _, k := range d.Kinds {
		def := Def(k)
		if def == nil || def.Dialect != d.Name {
			return fmt.Errorf("register %s: op %s does not belong to the dialect", d.Name, k)
		}
	}

	r.dialects[d.Name] = d
	for _, k := range d.Kinds {
		r.ops[k] = Def(k)
	}
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup returns the definition of k if its dialect is registered.
func (r *Registry) Lookup(k Kind) (*OpDef, bool) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	def, ok := r.ops[k]
	return def, ok
}

// Dialect returns a registered dialect by name.
func (r *Registry) Dialect(name string) (*Dialect, bool) {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	d, ok := r.dialects[name]
	return d, ok
}

// Dialects returns the registered dialect names in sorted order.
func (r *Registry) Dialects() []string {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	names := make([]string, 0, len(r.dialects))
	for name := range r.dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
