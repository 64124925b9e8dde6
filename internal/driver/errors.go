package driver

import (
	"errors"
	"fmt"

	"github.com/roach88/brutus/internal/ir"
)

// ErrorKind categorizes compilation failures.
type ErrorKind string

const (
	// KindUnavailable means the host has no typed IR for the specialization.
	KindUnavailable ErrorKind = "unavailable"

	// KindTranslation means the typed IR was malformed or unsupported.
	KindTranslation ErrorKind = "translation"

	// KindVerification means lowering produced invalid IR: a pipeline bug.
	KindVerification ErrorKind = "verification"

	// KindInternal means the compilation panicked.
	KindInternal ErrorKind = "internal"
)

// CompileError is the cached failure of one specialization. It never
// affects other specializations.
type CompileError struct {
	Spec    ir.Specialization
	Kind    ErrorKind
	Code    string  // T1xx or V2xx when known
	Pos     *ir.Pos // input position of translation errors
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s: %s", e.Spec, e.Kind, e.Message)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// IsCompileError reports whether err is a *CompileError of the given kind.
// An empty kind matches any compile error.
func IsCompileError(err error, kind ErrorKind) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return kind == "" || ce.Kind == kind
	}
	return false
}
