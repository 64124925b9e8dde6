package interop

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

type fakeResolver struct {
	symbols map[string]ir.Handle
	types   map[string]ir.Handle
	calls   atomic.Int32
}

func (f *fakeResolver) ResolveSymbol(name string) (ir.Handle, bool) {
	f.calls.Add(1)
	h, ok := f.symbols[name]
	return h, ok
}

func (f *fakeResolver) ResolveRuntimeType(path string) (ir.Handle, bool) {
	f.calls.Add(1)
	h, ok := f.types[path]
	return h, ok
}

var (
	callH   = ir.Handle{Kind: ir.HandleSymbol, Name: "call", Token: 1}
	invokeH = ir.Handle{Kind: ir.HandleSymbol, Name: "invoke", Token: 2}
	constH  = ir.Handle{Kind: ir.HandleRuntimeType, Name: "Core.Compiler.Const", Token: 3}
)

func fullResolver() *fakeResolver {
	return &fakeResolver{
		symbols: map[string]ir.Handle{"call": callH, "invoke": invokeH},
		types:   map[string]ir.Handle{"Core.Compiler.Const": constH},
	}
}

func TestInitialize(t *testing.T) {
	rt := NewRuntime(fullResolver())
	s, err := rt.Initialize()
	require.NoError(t, err)

	assert.Equal(t, callH, s.CallSym())
	assert.Equal(t, invokeH, s.InvokeSym())
	assert.Equal(t, constH, s.ConstTag())
	assert.True(t, s.Registry().Frozen())
	assert.Equal(t, []string{"jlir", "std"}, s.Registry().Dialects())

	_, ok := s.Registry().Lookup(dialect.OpInvoke)
	assert.True(t, ok)
}

func TestInitializeRunsOnce(t *testing.T) {
	r := fullResolver()
	rt := NewRuntime(r)

	var wg sync.WaitGroup
	sessions := make([]*Session, 16)
	for i := range sessions {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i] = rt.MustInitialize()
		}(i)
	}
	wg.Wait()

	for _, s := range sessions {
		assert.Same(t, sessions[0], s)
	}
	assert.Equal(t, int32(3), r.calls.Load(), "three lookups, once")
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *fakeResolver)
		missing string
	}{
		{"no invoke", func(r *fakeResolver) { delete(r.symbols, "invoke") }, "invoke"},
		{"no call", func(r *fakeResolver) { delete(r.symbols, "call") }, "call"},
		{"no const type", func(r *fakeResolver) { delete(r.types, "Core.Compiler.Const") }, "Core.Compiler.Const"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fullResolver()
			tt.mutate(r)
			rt := NewRuntime(r)

			_, err := rt.Initialize()
			require.Error(t, err)
			assert.True(t, IsInitError(err))
			assert.Contains(t, err.Error(), tt.missing)

			// The failure is sticky.
			_, again := rt.Initialize()
			assert.Same(t, err, again)
			assert.Panics(t, func() { rt.MustInitialize() })
		})
	}
}

func TestInitializeRejectsAliasedSymbols(t *testing.T) {
	r := fullResolver()
	r.symbols["invoke"] = callH
	_, err := NewRuntime(r).Initialize()
	assert.True(t, IsInitError(err))
}

func TestFact(t *testing.T) {
	s := NewRuntime(fullResolver()).MustInitialize()

	v, ok := s.Fact(ir.Lattice{Type: ir.TypeInt64, Tag: constH, Const: ir.IRInt(3)})
	require.True(t, ok)
	assert.Equal(t, ir.IRInt(3), v)

	_, ok = s.Fact(ir.Widen(ir.TypeInt64))
	assert.False(t, ok, "no fact by default")

	other := ir.Handle{Kind: ir.HandleRuntimeType, Name: "Core.PartialStruct", Token: 9}
	_, ok = s.Fact(ir.Lattice{Type: ir.TypeInt64, Tag: other, Const: ir.IRInt(3)})
	assert.False(t, ok, "foreign lattice tags are widened")

	_, ok = s.Fact(ir.Lattice{Type: ir.TypeInt64, Tag: constH})
	assert.False(t, ok, "tag without value")
}
