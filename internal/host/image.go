// Package host provides an in-process host runtime image: interned
// symbols, runtime type objects and typed SSA bodies keyed by
// specialization.
//
// It stands in for a live runtime at the boundary brutus consumes:
// it implements interop.Resolver and the driver's typed-IR source, and it
// signals redefinitions so cached compilations can be invalidated.
package host

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/brutus/internal/ir"
)

// ErrUnavailable is returned when the image has no typed IR for a
// specialization.
var ErrUnavailable = errors.New("typed IR unavailable")

// Image is a host runtime image. It is safe for concurrent use.
type Image struct {
	mu       sync.RWMutex
	next     uint64
	symbols  map[string]ir.Handle
	types    map[string]ir.Handle
	bodies   map[ir.SpecKey]*ir.Body
	versions map[ir.SpecKey]int
	watchers []func(ir.Specialization)
}

// NewImage returns an empty image.
func NewImage() *Image {
	return &Image{
		symbols:  make(map[string]ir.Handle),
		types:    make(map[string]ir.Handle),
		bodies:   make(map[ir.SpecKey]*ir.Body),
		versions: make(map[ir.SpecKey]int),
	}
}

// NewStandardImage returns an image with the symbols and runtime types a
// real host always has: :call, :invoke and the compiler lattice types.
func NewStandardImage() *Image {
	im := NewImage()
	im.Symbol("call")
	im.Symbol("invoke")
	im.RuntimeType("Core.Compiler.Const")
	im.RuntimeType("Core.Compiler.PartialStruct")
	return im
}

// Symbol interns name and returns its handle.
func (im *Image) Symbol(name string) ir.Handle {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.intern(im.symbols, ir.HandleSymbol, name)
}

// RuntimeType registers the type object at path and returns its handle.
func (im *Image) RuntimeType(path string) ir.Handle {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.intern(im.types, ir.HandleRuntimeType, path)
}

func (im *Image) intern(table map[string]ir.Handle, kind ir.HandleKind, name string) ir.Handle {
	if h, ok := table[name]; ok {
		return h
	}
	im.next++
	h := ir.Handle{Kind: kind, Name: name, Token: im.next}
	table[name] = h
	return h
}

// ResolveSymbol looks up an interned symbol without creating it.
func (im *Image) ResolveSymbol(name string) (ir.Handle, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	h, ok := im.symbols[name]
	return h, ok
}

// ResolveRuntimeType looks up a runtime type object without creating it.
func (im *Image) ResolveRuntimeType(path string) (ir.Handle, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	h, ok := im.types[path]
	return h, ok
}

// Const returns the lattice element asserting the value is known to be v.
func (im *Image) Const(t ir.Type, v ir.IRValue) ir.Lattice {
	return ir.Lattice{Type: t, Tag: im.RuntimeType("Core.Compiler.Const"), Const: v}
}

// Define stores the typed IR for body.Spec. Redefining a specialization
// bumps its version and notifies watchers.
func (im *Image) Define(body *ir.Body) {
	key := body.Spec.Key()

	im.mu.Lock()
	_, existed := im.bodies[key]
	im.bodies[key] = body
	im.versions[key]++
	watchers := slices.Clone(im.watchers)
	im.mu.Unlock()

	if existed {
		for _, w := range watchers {
			w(body.Spec)
		}
	}
}

// Remove deletes the typed IR for spec and notifies watchers.
func (im *Image) Remove(spec ir.Specialization) {
	key := spec.Key()

	im.mu.Lock()
	_, existed := im.bodies[key]
	delete(im.bodies, key)
	watchers := slices.Clone(im.watchers)
	im.mu.Unlock()

	if existed {
		for _, w := range watchers {
			w(spec)
		}
	}
}

// OnRedefine registers fn to be called after a specialization's typed IR
// changes.
func (im *Image) OnRedefine(fn func(ir.Specialization)) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.watchers = append(im.watchers, fn)
}

// Version returns how many times spec has been defined.
func (im *Image) Version(spec ir.Specialization) int {
	im.mu.RLock()
	defer im.mu.RUnlock()
	return im.versions[spec.Key()]
}

// TypedIR returns the typed SSA body of spec.
func (im *Image) TypedIR(ctx context.Context, spec ir.Specialization) (*ir.Body, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	im.mu.RLock()
	defer im.mu.RUnlock()
	body, ok := im.bodies[spec.Key()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", spec, ErrUnavailable)
	}
	return body, nil
}

// Specializations returns every defined specialization sorted by key.
func (im *Image) Specializations() []ir.Specialization {
	im.mu.RLock()
	defer im.mu.RUnlock()
	out := make([]ir.Specialization, 0, len(im.bodies))
	for _, b := range im.bodies {
		out = append(out, b.Spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Lookup finds a defined specialization by method name ("Main.sum") or by
// full key ("Main.sum(Int64,Int64)"). A bare method name must be unique.
func (im *Image) Lookup(name string) (ir.Specialization, error) {
	var matches []ir.Specialization
	for _, spec := range im.Specializations() {
		if string(spec.Key()) == name {
			return spec, nil
		}
		if spec.Method.String() == name {
			matches = append(matches, spec)
		}
	}
	switch len(matches) {
	case 0:
		return ir.Specialization{}, fmt.Errorf("no specialization named %q", name)
	case 1:
		return matches[0], nil
	default:
		return ir.Specialization{}, fmt.Errorf("%q is ambiguous: %d specializations", name, len(matches))
	}
}
