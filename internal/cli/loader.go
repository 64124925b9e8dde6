package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/brutus/internal/host"
	"github.com/roach88/brutus/internal/interop"
	"github.com/roach88/brutus/internal/ir"
)

// Command-level error codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeLoadFailed  = "E004" // Fixture load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeInitFailed  = "E006" // Runtime interop initialization failed
	ErrCodeNoSpec      = "E007" // Requested specialization not defined
	ErrCodeJournal     = "E008" // Journal open/read failed
	ErrCodeCompileFail = "E010" // One or more compilations failed
)

// LoadError represents an error that occurred while loading fixtures.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Workspace is a loaded fixture image with an initialized session.
type Workspace struct {
	Image   *host.Image
	Session *interop.Session
}

// LoadWorkspace loads the CUE fixtures in dir and initializes the runtime
// interop session against them.
func LoadWorkspace(dir string) (*Workspace, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fixtures directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing fixtures directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	im, err := host.LoadDir(dir)
	if err != nil {
		le := &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		var he *host.LoadError
		if errors.As(err, &he) {
			le.Message = fmt.Sprintf("%s: %s", he.Field, he.Message)
			le.Pos = he.Pos
		}
		return nil, le
	}

	session, err := interop.NewRuntime(im).Initialize()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeInitFailed, Message: err.Error()}
	}
	return &Workspace{Image: im, Session: session}, nil
}

// Select returns the specializations named by methods, or every defined
// specialization if methods is empty. Names are method names or keys.
func (w *Workspace) Select(methods []string) ([]ir.Specialization, error) {
	if len(methods) == 0 {
		return w.Image.Specializations(), nil
	}
	specs := make([]ir.Specialization, 0, len(methods))
	for _, m := range methods {
		spec, err := w.Image.Lookup(m)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNoSpec, Message: err.Error()}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// commandError reports err through the formatter and returns it as a
// command-level exit error.
func commandError(f *OutputFormatter, err error) error {
	code, msg := ErrCodeGeneric, err.Error()
	var le *LoadError
	if errors.As(err, &le) {
		code, msg = le.Code, le.Message
		if le.Pos.IsValid() {
			msg = fmt.Sprintf("%s:%d:%d: %s", le.Pos.Filename(), le.Pos.Line(), le.Pos.Column(), le.Message)
		}
	}
	_ = f.Error(code, msg, nil)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, msg), nil)
}
