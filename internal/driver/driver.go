// Package driver compiles specializations on demand and caches the
// results.
//
// Each specialization identity has at most one compilation in flight. The
// first request creates a cache entry and starts the compilation in its
// own goroutine; every request, the first included, then waits on that
// entry. A caller whose context ends stops waiting, but the compilation
// itself runs to completion and its result is cached:
//
//	Requested -> Translating -> Lowering -> Ready
//	                 |              |
//	                 +--------------+-----> Failed
//
// Both Ready and Failed are cached until Invalidate.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/interop"
	"github.com/roach88/brutus/internal/ir"
	"github.com/roach88/brutus/internal/lower"
	"github.com/roach88/brutus/internal/translate"
)

// TypedIRSource supplies the typed SSA IR of a specialization. It is the
// host compiler boundary and is implemented by host.Image.
type TypedIRSource interface {
	TypedIR(ctx context.Context, spec ir.Specialization) (*ir.Body, error)
}

// State is the compilation state of a specialization.
type State int32

const (
	StateAbsent State = iota
	StateRequested
	StateTranslating
	StateLowering
	StateReady
	StateFailed
)

var stateNames = [...]string{"absent", "requested", "translating", "lowering", "ready", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// Done reports whether s is final.
func (s State) Done() bool {
	return s == StateReady || s == StateFailed
}

type entry struct {
	spec  ir.Specialization
	state atomic.Int32
	done  chan struct{}

	// Written once before done is closed.
	fn  *dialect.Function
	err *CompileError
}

func (e *entry) setState(s State) { e.state.Store(int32(s)) }
func (e *entry) getState() State  { return State(e.state.Load()) }

// Option configures a Driver.
type Option func(*Driver)

// WithPipeline replaces the default lowering pipeline.
func WithPipeline(p *lower.Pipeline) Option {
	return func(d *Driver) {
		d.pipeline = p
	}
}

// WithJournal records every finished compilation in j.
func WithJournal(j Journal) Option {
	return func(d *Driver) {
		d.journal = j
	}
}

// WithMetrics registers the driver's counters with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *Driver) {
		d.registerer = reg
	}
}

// WithClock sets the clock that stamps journal records.
func WithClock(c Clock) Option {
	return func(d *Driver) {
		d.clock = c
	}
}

// WithRequestIDs sets the generator of compilation request ids.
func WithRequestIDs(g RequestIDGenerator) Option {
	return func(d *Driver) {
		d.ids = g
	}
}

// WithConcurrency bounds how many compilations CompileAll runs at once.
// Zero or negative means no limit.
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		d.concurrency = n
	}
}

// Driver is the compilation driver. It is safe for concurrent use.
type Driver struct {
	session     *interop.Session
	source      TypedIRSource
	pipeline    *lower.Pipeline
	journal     Journal
	registerer  prometheus.Registerer
	metrics     *metrics
	clock       Clock
	ids         RequestIDGenerator
	concurrency int

	mu      sync.Mutex
	entries map[ir.SpecKey]*entry
	wg      sync.WaitGroup
}

// New creates a driver that compiles typed IR from source. If source can
// report redefinitions (host.Image can), redefined specializations are
// invalidated automatically.
func New(s *interop.Session, source TypedIRSource, opts ...Option) *Driver {
	d := &Driver{
		session: s,
		source:  source,
		clock:   NewClock(),
		ids:     UUIDv7Generator{},
		entries: make(map[ir.SpecKey]*entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pipeline == nil {
		d.pipeline = lower.New(s)
	}
	d.metrics = newMetrics(d.registerer)

	if w, ok := source.(interface{ OnRedefine(func(ir.Specialization)) }); ok {
		w.OnRedefine(func(spec ir.Specialization) {
			if d.Invalidate(spec) {
				slog.Info("specialization redefined, cache entry dropped", "spec", spec.Key())
			}
		})
	}
	return d
}

// Compile returns the lowered function for spec, compiling it if no
// cached or in-flight result exists. Repeated requests return the same
// *dialect.Function or the same *CompileError. If ctx ends first, Compile
// returns ctx.Err() and the compilation continues in the background.
func (d *Driver) Compile(ctx context.Context, spec ir.Specialization) (*dialect.Function, error) {
	key := spec.Key()

	d.mu.Lock()
	e, ok := d.entries[key]
	if !ok {
		e = &entry{spec: ir.NewSpecialization(spec.Method, spec.Signature...), done: make(chan struct{})}
		e.setState(StateRequested)
		d.entries[key] = e
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if !ok {
		slog.Debug("compilation requested", "spec", key)
		go d.compile(context.WithoutCancel(ctx), e)
	} else {
		select {
		case <-e.done:
			d.metrics.cacheHits.Inc()
		default:
			d.metrics.inflightWaits.Inc()
		}
	}
	return d.wait(ctx, e)
}

func (d *Driver) wait(ctx context.Context, e *entry) (*dialect.Function, error) {
	select {
	case <-e.done:
		if e.err != nil {
			return nil, e.err
		}
		return e.fn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cache entry for spec and reports whether there was
// one. A compilation in flight is detached: its current waiters still get
// its result, but the next request compiles again. While a detached
// compilation is still running, that new request starts another, so at most
// one compilation is in flight per entry rather than per identity.
func (d *Driver) Invalidate(spec ir.Specialization) bool {
	key := spec.Key()
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[key]; !ok {
		return false
	}
	delete(d.entries, key)
	return true
}

// State returns the state of the cache entry for spec.
func (d *Driver) State(spec ir.Specialization) State {
	d.mu.Lock()
	e, ok := d.entries[spec.Key()]
	d.mu.Unlock()
	if !ok {
		return StateAbsent
	}
	return e.getState()
}

// Wait blocks until every compilation started so far has finished.
func (d *Driver) Wait() {
	d.wg.Wait()
}

// Result is the outcome of one specialization in CompileAll.
type Result struct {
	Spec ir.Specialization
	Func *dialect.Function
	Err  error
}

// CompileAll compiles the distinct specializations of specs in parallel.
// Results are in first-occurrence order. Compile failures are reported
// per result; the returned error is non-nil only if ctx ended.
func (d *Driver) CompileAll(ctx context.Context, specs []ir.Specialization) ([]Result, error) {
	seen := make(map[ir.SpecKey]bool, len(specs))
	var results []Result
	for _, s := range specs {
		if seen[s.Key()] {
			continue
		}
		seen[s.Key()] = true
		results = append(results, Result{Spec: s})
	}

	g, gctx := errgroup.WithContext(ctx)
	if d.concurrency > 0 {
		g.SetLimit(d.concurrency)
	}
	for i := range results {
		r := &results[i]
		g.Go(func() error {
			fn, err := d.Compile(gctx, r.Spec)
			if err != nil && gctx.Err() != nil {
				return err
			}
			r.Func, r.Err = fn, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// compile runs one compilation and publishes its result.
func (d *Driver) compile(ctx context.Context, e *entry) {
	defer d.wg.Done()
	start := time.Now()
	id := d.ids.Generate()

	fn, body, cerr := d.run(ctx, e)
	elapsed := time.Since(start)

	outcome := "ready"
	if cerr != nil {
		outcome = string(cerr.Kind)
	}
	d.metrics.compilations.WithLabelValues(outcome).Inc()
	d.logOutcome(e, id, fn, cerr, elapsed)
	d.record(ctx, e, id, body, fn, cerr, elapsed)

	e.fn, e.err = fn, cerr
	if cerr != nil {
		e.setState(StateFailed)
	} else {
		e.setState(StateReady)
	}
	close(e.done)
}

// run translates and lowers. A panic anywhere below becomes an internal
// compile error.
func (d *Driver) run(ctx context.Context, e *entry) (out *dialect.Function, body *ir.Body, cerr *CompileError) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			cerr = &CompileError{
				Spec:    e.spec,
				Kind:    KindInternal,
				Message: fmt.Sprintf("panic: %v", r),
				Err:     fmt.Errorf("panic: %v", r),
			}
		}
	}()

	e.setState(StateTranslating)
	body, err := d.source.TypedIR(ctx, e.spec)
	if err != nil {
		return nil, nil, &CompileError{Spec: e.spec, Kind: KindUnavailable, Message: err.Error(), Err: err}
	}
	if body == nil {
		err := fmt.Errorf("host returned no body for %s", e.spec)
		return nil, nil, &CompileError{Spec: e.spec, Kind: KindUnavailable, Message: err.Error(), Err: err}
	}

	fn, err := translate.Translate(d.session, body)
	if err != nil {
		ce := &CompileError{Spec: e.spec, Kind: KindTranslation, Message: err.Error(), Err: err}
		var te *translate.Error
		if errors.As(err, &te) {
			pos := te.Pos
			ce.Code, ce.Pos = te.Code, &pos
		}
		return nil, body, ce
	}

	e.setState(StateLowering)
	lowered, err := d.pipeline.Run(fn)
	if err != nil {
		ce := &CompileError{Spec: e.spec, Kind: KindVerification, Message: err.Error(), Err: err}
		var ve *lower.VerifyError
		if errors.As(err, &ve) {
			ce.Code = ve.Code
		}
		return nil, body, ce
	}
	return lowered, body, nil
}

func (d *Driver) logOutcome(e *entry, id string, fn *dialect.Function, cerr *CompileError, elapsed time.Duration) {
	key := e.spec.Key()
	switch {
	case cerr == nil:
		slog.Info("compilation ready",
			"spec", key,
			"request", id,
			"blocks", len(fn.Blocks),
			"ops", fn.NumOps(),
			"elapsed", elapsed)
	case cerr.Kind == KindVerification:
		slog.Error("lowering produced invalid IR",
			"error", cerr.Err,
			"spec", key,
			"request", id,
			"code", cerr.Code)
	case cerr.Kind == KindInternal:
		slog.Error("compilation panicked",
			"error", cerr.Err,
			"spec", key,
			"request", id)
	default:
		slog.Warn("compilation failed",
			"error", cerr.Err,
			"spec", key,
			"request", id,
			"kind", cerr.Kind)
	}
}

func (d *Driver) record(ctx context.Context, e *entry, id string, body *ir.Body, fn *dialect.Function, cerr *CompileError, elapsed time.Duration) {
	if d.journal == nil {
		return
	}
	rec := Record{
		Seq:       d.clock.Next(),
		RequestID: id,
		Spec:      e.spec,
		Outcome:   "ready",
		Elapsed:   elapsed,
	}
	h, err := ir.SpecHash(e.spec)
	if err != nil {
		slog.Error("hash specialization", "error", err, "spec", e.spec.Key(), "request", id)
	}
	rec.SpecHash = h
	if body != nil {
		h, err := ir.BodyHash(body)
		if err != nil {
			slog.Error("hash typed IR", "error", err, "spec", e.spec.Key(), "request", id)
		}
		rec.BodyHash = h
	}
	if cerr != nil {
		rec.Outcome = string(cerr.Kind)
		rec.Code = cerr.Code
		rec.Message = cerr.Message
	} else {
		rec.Blocks = len(fn.Blocks)
		rec.Ops = fn.NumOps()
		rec.Output = dialect.Print(fn)
	}
	if err := d.journal.Record(ctx, rec); err != nil {
		slog.Error("journal write failed",
			"error", err,
			"spec", e.spec.Key(),
			"request", id,
			"seq", rec.Seq)
	}
}
