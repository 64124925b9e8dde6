package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/driver"
	"github.com/roach88/brutus/internal/host"
	"github.com/roach88/brutus/internal/interop"
	"github.com/roach88/brutus/internal/ir"
	"github.com/roach88/brutus/internal/store"
	"github.com/roach88/brutus/internal/testutil"
	"github.com/roach88/brutus/internal/translate"
)

// Harness is the scenario execution environment. Steps run one at a time,
// so journal seqs and request ids follow step order.
type Harness struct {
	image   *host.Image
	session *interop.Session
	store   *store.Store
	driver  *driver.Driver
}

// Run executes a scenario and returns the result. Each run uses a fresh
// image and an in-memory journal. Expectation and assertion failures are
// reported in the result; the error is non-nil only if the scenario could
// not be executed at all.
func Run(scenario *Scenario) (*Result, error) {
	im, err := LoadFixtures(scenario.Fixtures)
	if err != nil {
		return nil, err
	}

	session, err := interop.NewRuntime(im).Initialize()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		image:   im,
		session: session,
		store:   st,
		driver: driver.New(session, im,
			driver.WithJournal(st),
			driver.WithClock(testutil.NewDeterministicClock()),
			driver.WithRequestIDs(testutil.NewSequentialIDs("req")),
		),
	}

	ctx := context.Background()
	result := NewResult()
	for i := range scenario.Steps {
		if err := h.executeStep(ctx, i, &scenario.Steps[i], result); err != nil {
			return nil, err
		}
	}
	h.driver.Wait()

	for _, msg := range h.evaluateAssertions(ctx, scenario.Assertions, result) {
		result.AddError(msg)
	}
	return result, nil
}

// LoadFixtures defines the bodies of every CUE file in a new standard
// image.
func LoadFixtures(paths []string) (*host.Image, error) {
	im := host.NewStandardImage()
	cctx := cuecontext.New()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fixture: %w", err)
		}
		v := cctx.CompileBytes(data, cue.Filename(path))
		if err := im.LoadValue(v); err != nil {
			return nil, fmt.Errorf("fixture %s: %w", path, err)
		}
	}
	return im, nil
}

func (h *Harness) executeStep(ctx context.Context, i int, step *Step, result *Result) error {
	if step.Invalidate != "" {
		spec, err := ResolveSpec(h.image, step.Invalidate)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Trace = append(result.Trace, TraceEvent{
			Type:        EventInvalidate,
			Spec:        string(spec.Key()),
			Invalidated: h.driver.Invalidate(spec),
		})
		return nil
	}

	spec, err := ResolveSpec(h.image, step.Compile)
	if err != nil {
		return fmt.Errorf("steps[%d]: %w", i, err)
	}
	ev := TraceEvent{Type: EventCompile, Spec: string(spec.Key()), Stage: step.Stage}

	var fn *dialect.Function
	switch step.Stage {
	case StageTranslate:
		fn, err = h.translate(ctx, spec)
	default:
		fn, err = h.driver.Compile(ctx, spec)
		if rec, ok, jerr := h.store.Latest(ctx, spec.Key()); jerr == nil && ok {
			ev.RequestID = rec.RequestID
		}
	}

	if err != nil {
		var ce *driver.CompileError
		if !errors.As(err, &ce) {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		ev.Outcome = string(ce.Kind)
		ev.Code = ce.Code
	} else {
		ev.Outcome = "ready"
		ev.Blocks = len(fn.Blocks)
		ev.Ops = fn.NumOps()
		ev.Output = dialect.Print(fn)
		if step.Stage == StageLower {
			result.lowered[spec.Key()] = fn
		}
	}
	result.Trace = append(result.Trace, ev)

	if step.Expect != nil {
		for _, msg := range checkExpect(i, step.Expect, &ev) {
			result.AddError(msg)
		}
	}
	return nil
}

// translate runs only the translator, reporting failures the way the
// driver does.
func (h *Harness) translate(ctx context.Context, spec ir.Specialization) (*dialect.Function, error) {
	body, err := h.image.TypedIR(ctx, spec)
	if err != nil {
		return nil, &driver.CompileError{Spec: spec, Kind: driver.KindUnavailable, Message: err.Error(), Err: err}
	}
	fn, err := translate.Translate(h.session, body)
	if err != nil {
		ce := &driver.CompileError{Spec: spec, Kind: driver.KindTranslation, Message: err.Error(), Err: err}
		var te *translate.Error
		if errors.As(err, &te) {
			ce.Code = te.Code
		}
		return nil, ce
	}
	return fn, nil
}

func checkExpect(i int, want *Expect, ev *TraceEvent) []string {
	var errs []string
	if ev.Outcome != want.Outcome {
		errs = append(errs, fmt.Sprintf("steps[%d]: %s: expected outcome %s, got %s", i, ev.Spec, want.Outcome, ev.Outcome))
	}
	if want.Code != "" && ev.Code != want.Code {
		errs = append(errs, fmt.Sprintf("steps[%d]: %s: expected code %s, got %q", i, ev.Spec, want.Code, ev.Code))
	}
	for _, s := range want.Contains {
		if !strings.Contains(ev.Output, s) {
			errs = append(errs, fmt.Sprintf("steps[%d]: %s: output does not contain %q", i, ev.Spec, s))
		}
	}
	return errs
}

// ResolveSpec finds a specialization by method name or key. A key that is
// not defined in the image is still returned, so unavailable
// specializations can be requested.
func ResolveSpec(im *host.Image, name string) (ir.Specialization, error) {
	spec, err := im.Lookup(name)
	if err == nil {
		return spec, nil
	}
	if spec, ok := ParseSpecKey(name); ok {
		return spec, nil
	}
	return ir.Specialization{}, err
}

// ParseSpecKey parses "Main.f(Int64,Bool)".
func ParseSpecKey(key string) (ir.Specialization, bool) {
	open := strings.IndexByte(key, '(')
	if open <= 0 || !strings.HasSuffix(key, ")") {
		return ir.Specialization{}, false
	}
	var sig []ir.Type
	if inner := key[open+1 : len(key)-1]; inner != "" {
		for _, t := range strings.Split(inner, ",") {
			sig = append(sig, ir.Type(strings.TrimSpace(t)))
		}
	}
	return ir.NewSpecialization(ir.ParseGlobal(key[:open]), sig...), true
}
