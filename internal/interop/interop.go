// Package interop resolves the host runtime handles brutus depends on and
// registers the dialects, once per process.
//
// Every later stage assumes a *Session exists. Initialize is the only
// operation in brutus allowed to fail the whole subsystem rather than a
// single compilation.
package interop

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

// Names resolved at initialization.
const (
	SymCall        = "call"
	SymInvoke      = "invoke"
	ConstTypePath  = "Core.Compiler.Const"
	kindSymbol     = "symbol"
	kindRuntimeTyp = "runtime type"
)

// Resolver is the host runtime's lookup boundary. It is used only during
// Initialize.
type Resolver interface {
	// ResolveSymbol returns the interned symbol for name.
	ResolveSymbol(name string) (ir.Handle, bool)

	// ResolveRuntimeType returns the type object at a module path such as
	// Core.Compiler.Const.
	ResolveRuntimeType(path string) (ir.Handle, bool)
}

// InitError is a fatal initialization failure: a required handle could not
// be resolved or the dialects could not be registered.
type InitError struct {
	Kind string
	Name string
	Err  error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("interop: initialize: %v", e.Err)
	}
	return fmt.Sprintf("interop: cannot resolve %s %q", e.Kind, e.Name)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// IsInitError reports whether err is a fatal initialization error.
func IsInitError(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}

// Runtime owns the one-time initialization against a host Resolver.
type Runtime struct {
	resolver Resolver

	once    sync.Once
	session *Session
	err     error
}

// NewRuntime returns a Runtime that will resolve handles through r.
func NewRuntime(r Resolver) *Runtime {
	return &Runtime{resolver: r}
}

// Initialize resolves the call and invoke symbols and the constant lattice
// tag, then registers and freezes the jlir and std dialects. It runs exactly
// once; later calls return the same session or the same error.
func (rt *Runtime) Initialize() (*Session, error) {
	rt.once.Do(func() {
		rt.session, rt.err = initialize(rt.resolver)
		if rt.err != nil {
			slog.Error("interop initialization failed", "error", rt.err)
			return
		}
		slog.Info("interop initialized",
			"call", rt.session.call.String(),
			"invoke", rt.session.invoke.String(),
			"const_tag", rt.session.constTag.String(),
			"dialects", rt.session.registry.Dialects(),
		)
	})
	return rt.session, rt.err
}

// MustInitialize is like Initialize but panics on error.
func (rt *Runtime) MustInitialize() *Session {
	s, err := rt.Initialize()
	if err != nil {
		panic(err)
	}
	return s
}

func initialize(r Resolver) (*Session, error) {
	s := &Session{registry: dialect.NewRegistry()}

	var ok bool
	if s.invoke, ok = r.ResolveSymbol(SymInvoke); !ok {
		return nil, &InitError{Kind: kindSymbol, Name: SymInvoke}
	}
	if s.call, ok = r.ResolveSymbol(SymCall); !ok {
		return nil, &InitError{Kind: kindSymbol, Name: SymCall}
	}
	if s.constTag, ok = r.ResolveRuntimeType(ConstTypePath); !ok {
		return nil, &InitError{Kind: kindRuntimeTyp, Name: ConstTypePath}
	}
	if s.call == s.invoke {
		return nil, &InitError{Err: fmt.Errorf("call and invoke resolved to the same handle %s", s.call)}
	}

	for _, d := range []*dialect.Dialect{dialect.JLIR(), dialect.Std()} {
		if err := s.registry.Register(d); err != nil {
			return nil, &InitError{Err: err}
		}
	}
	s.registry.Freeze()
	return s, nil
}

// Session is the read-only state bound by Initialize. It is safe for
// concurrent use without locking.
type Session struct {
	call     ir.Handle
	invoke   ir.Handle
	constTag ir.Handle
	registry *dialect.Registry
}

// CallSym returns the dynamic-call dispatch symbol.
func (s *Session) CallSym() ir.Handle { return s.call }

// InvokeSym returns the specialized-invoke dispatch symbol.
func (s *Session) InvokeSym() ir.Handle { return s.invoke }

// ConstTag returns the runtime type that tags constant lattice facts.
func (s *Session) ConstTag() ir.Handle { return s.constTag }

// Registry returns the frozen dialect registry.
func (s *Session) Registry() *dialect.Registry { return s.registry }

// Fact returns the statically known value carried by l, if any.
func (s *Session) Fact(l ir.Lattice) (ir.IRValue, bool) {
	if l.Const == nil || l.Tag.IsZero() || l.Tag != s.constTag {
		return nil, false
	}
	return l.Const, true
}
