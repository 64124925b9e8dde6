package driver

import (
	"context"
	"time"

	"github.com/roach88/brutus/internal/ir"
)

// Record describes one finished compilation.
type Record struct {
	Seq       int64
	RequestID string
	Spec      ir.Specialization
	SpecHash  string
	BodyHash  string // empty when the host had no typed IR
	Outcome   string // "ready" or the ErrorKind
	Code      string
	Message   string
	Blocks    int
	Ops       int
	Output    string // printed lowered function when ready
	Elapsed   time.Duration
}

// Journal receives a record for every finished compilation. Implemented
// by store.Store. Record is called from compilation goroutines and must
// be safe for concurrent use.
type Journal interface {
	Record(ctx context.Context, rec Record) error
}
