package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

func (h *Harness) evaluateAssertions(ctx context.Context, assertions []Assertion, result *Result) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOpCount:
			err = h.assertOps(a, result, func(op *dialect.Op) bool {
				return op.Kind.String() == a.Op
			})
		case AssertEntryCalls:
			err = h.assertOps(a, result, func(op *dialect.Op) bool {
				return op.Kind == dialect.OpStdCall && op.Attrs.Entry == a.Entry
			})
		case AssertJournalCount:
			err = h.assertJournal(ctx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertOps counts the ops of the spec's lowered function that match.
func (h *Harness) assertOps(a Assertion, result *Result, match func(*dialect.Op) bool) error {
	spec, err := ResolveSpec(h.image, a.Spec)
	if err != nil {
		return err
	}
	fn, ok := result.Lowered(spec.Key())
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("lowered function for %s", spec.Key()),
			Actual:   "not compiled",
		}
	}

	n := 0
	for _, blk := range fn.Blocks {
		for j := range blk.Ops {
			if match(&blk.Ops[j]) {
				n++
			}
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d matching ops in %s", a.Count, spec.Key()),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertJournal counts journal records, filtered by spec and outcome.
func (h *Harness) assertJournal(ctx context.Context, a Assertion) error {
	var key ir.SpecKey
	if a.Spec != "" {
		spec, err := ResolveSpec(h.image, a.Spec)
		if err != nil {
			return err
		}
		key = spec.Key()
	}
	recs, err := h.store.History(ctx, key, 0)
	if err != nil {
		return err
	}

	n := 0
	for _, rec := range recs {
		if a.Outcome == "" || rec.Outcome == a.Outcome {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d journal records (outcome %q, spec %q)", a.Count, a.Outcome, key),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}
