package lower

import (
	"errors"
	"fmt"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

// ErrCodeRewrite marks a pass that could not produce a well-typed function.
// The remaining codes are the verifier's (V201-V211).
const ErrCodeRewrite = "V200"

// VerifyError reports lowering output that violates the std dialect's
// invariants. It always indicates a pipeline bug, never bad input.
type VerifyError struct {
	Spec ir.Specialization
	Pass string
	Code string
	Err  error
}

func (e *VerifyError) Error() string {
	if dialect.IsVerifyError(e.Err, "") {
		return fmt.Sprintf("lower %s: %s: %v", e.Spec, e.Pass, e.Err)
	}
	return fmt.Sprintf("lower %s: %s: %s: %v", e.Spec, e.Pass, e.Code, e.Err)
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// IsVerificationError reports whether err is a lowering *VerifyError.
func IsVerificationError(err error) bool {
	var ve *VerifyError
	return errors.As(err, &ve)
}

func verifyError(spec ir.Specialization, pass string, err error) *VerifyError {
	code := ErrCodeRewrite
	var de *dialect.VerifyError
	if errors.As(err, &de) {
		code = de.Code
	}
	return &VerifyError{Spec: spec, Pass: pass, Code: code, Err: err}
}
