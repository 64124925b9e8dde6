// Package lower runs the lowering pipeline that turns a jlir function into
// a function of std operations only.
//
// Three passes run in order, once each:
//
//	dispatch-resolution        calls become intrinsic arithmetic, jl_invoke
//	                           or jl_apply_generic; types become native or boxed
//	constant-materialization   constants hoisted and de-duplicated; global
//	                           references resolved
//	structural-normalization   verification of the std function
//
// Every pass is a pure rewrite: the input function is never modified.
package lower

import (
	"log/slog"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/interop"
)

// Pass names.
const (
	PassDispatch  = "dispatch-resolution"
	PassConstants = "constant-materialization"
	PassNormalize = "structural-normalization"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithoutFastPaths disables intrinsic fast paths; every call goes through
// the runtime.
func WithoutFastPaths() Option {
	return func(p *Pipeline) {
		p.fastPaths = false
	}
}

// WithVerifyEach verifies the function after every pass, not only at the end.
func WithVerifyEach() Option {
	return func(p *Pipeline) {
		p.verifyEach = true
	}
}

// WithObserver calls fn with the result of every pass. fn must not modify
// the function.
func WithObserver(fn func(pass string, out *dialect.Function)) Option {
	return func(p *Pipeline) {
		p.observe = fn
	}
}

// Pipeline lowers jlir functions to std. It is immutable after New and safe
// for concurrent use.
type Pipeline struct {
	registry   *dialect.Registry
	fastPaths  bool
	verifyEach bool
	observe    func(string, *dialect.Function)
}

// New returns a pipeline bound to the session's dialect registry.
func New(s *interop.Session, opts ...Option) *Pipeline {
	p := &Pipeline{registry: s.Registry(), fastPaths: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Passes returns the pass names in execution order.
func (p *Pipeline) Passes() []string {
	return []string{PassDispatch, PassConstants, PassNormalize}
}

// Run lowers fn. The input must be a verified jlir function; a failure in
// any pass is a *VerifyError.
func (p *Pipeline) Run(fn *dialect.Function) (*dialect.Function, error) {
	if err := dialect.Verify(fn, dialect.VerifyOptions{Registry: p.registry, Dialect: dialect.JLIRName}); err != nil {
		return nil, verifyError(fn.Spec, "input", err)
	}

	cur := fn
	steps := []struct {
		name string
		run  func(*dialect.Function) (*dialect.Function, error)
	}{
		{PassDispatch, func(f *dialect.Function) (*dialect.Function, error) { return resolveDispatch(f, p.fastPaths) }},
		{PassConstants, materializeConstants},
		{PassNormalize, p.normalize},
	}
	for _, step := range steps {
		next, err := step.run(cur)
		if err != nil {
			return nil, verifyError(fn.Spec, step.name, err)
		}
		if p.verifyEach && step.name != PassNormalize {
			if err := dialect.Verify(next, dialect.VerifyOptions{Registry: p.registry}); err != nil {
				return nil, verifyError(fn.Spec, step.name, err)
			}
		}
		slog.Debug("lowering pass done",
			"spec", fn.Name,
			"pass", step.name,
			"ops", next.NumOps())
		if p.observe != nil {
			p.observe(step.name, next)
		}
		cur = next
	}
	return cur, nil
}

// MustRun is like Run but panics on error.
// Use only in tests or when inputs are known to be valid.
func (p *Pipeline) MustRun(fn *dialect.Function) *dialect.Function {
	out, err := p.Run(fn)
	if err != nil {
		panic(err)
	}
	return out
}

// normalize performs no restructuring. Irreducible control flow is
// accepted as is; the function must be reachable, in dominance order and
// contain std operations only.
func (p *Pipeline) normalize(fn *dialect.Function) (*dialect.Function, error) {
	if err := dialect.Verify(fn, dialect.VerifyOptions{Registry: p.registry, Dialect: dialect.StdName}); err != nil {
		return nil, err
	}
	return fn, nil
}
