package translate

import (
	"errors"
	"fmt"

	"github.com/roach88/brutus/internal/ir"
)

// Translation error codes (T100-T199)
const (
	ErrUnknownStmt       = "T101" // unrecognized statement kind
	ErrUnknownHead       = "T102" // expression head is neither call nor invoke
	ErrUndefinedValue    = "T103" // operand names a value or argument that does not exist
	ErrNotDominated      = "T104" // value used where its definition does not dominate
	ErrMalformedPhi      = "T105" // phi outside the block prologue or with bad edges
	ErrMalformedBranch   = "T106" // bad terminator placement or successor list
	ErrUnreachableBlock  = "T107" // block cannot be reached from the entry
	ErrMalformedInvoke   = "T108" // invoke without a method instance, or one used elsewhere
	ErrMalformedOperands = "T109" // wrong operand count or kind for the statement
	ErrMalformedBody     = "T110" // empty body or duplicate value ids
)

// Error reports malformed or unsupported input at a statement position.
type Error struct {
	Pos     ir.Pos `json:"pos"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Pos, e.Message)
}

// IsTranslationError reports whether err is a translation *Error.
func IsTranslationError(err error) bool {
	var te *Error
	return errors.As(err, &te)
}

func errorf(pos ir.Pos, code, format string, args ...any) *Error {
	return &Error{Pos: pos, Code: code, Message: fmt.Sprintf(format, args...)}
}
