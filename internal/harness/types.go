package harness

import (
	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

// Event types.
const (
	EventCompile    = "compile"
	EventInvalidate = "invalidate"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Type      string `json:"type"` // "compile" or "invalidate"
	Spec      string `json:"spec"`
	Stage     string `json:"stage,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Blocks    int    `json:"blocks,omitempty"`
	Ops       int    `json:"ops,omitempty"`
	Output    string `json:"output,omitempty"`

	// Invalidated reports whether an invalidate step dropped an entry.
	Invalidated bool `json:"invalidated,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// lowered holds the last lowered function of each specialization.
	lowered map[ir.SpecKey]*dialect.Function
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		lowered: make(map[ir.SpecKey]*dialect.Function),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Lowered returns the last lowered function compiled for key.
func (r *Result) Lowered(key ir.SpecKey) (*dialect.Function, bool) {
	fn, ok := r.lowered[key]
	return fn, ok
}
