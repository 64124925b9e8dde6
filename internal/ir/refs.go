package ir

import (
	"fmt"
	"strings"
)

// HandleKind distinguishes the kinds of opaque host handles.
type HandleKind uint8

const (
	// HandleSymbol is an interned host symbol (e.g. :call, :invoke).
	HandleSymbol HandleKind = iota + 1
	// HandleRuntimeType is a runtime-internal type object (e.g. Core.Compiler.Const).
	HandleRuntimeType
)

// Handle is an opaque token obtained from the host runtime.
//
// brutus never assumes a memory layout for handles. Two handles are the same
// host object iff they compare equal; Name is kept for diagnostics only.
// The zero Handle is "no handle".
type Handle struct {
	Kind  HandleKind
	Name  string
	Token uint64
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	switch h.Kind {
	case HandleSymbol:
		return ":" + h.Name
	case HandleRuntimeType:
		return h.Name
	default:
		return "<nohandle>"
	}
}

// GlobalName is a module-qualified binding, e.g. Base.+ or Core.Intrinsics.add_int.
type GlobalName struct {
	Module string `json:"module"`
	Name   string `json:"name"`
}

// Global is a shorthand constructor for GlobalName.
func Global(module, name string) GlobalName {
	return GlobalName{Module: module, Name: name}
}

func (g GlobalName) String() string {
	if g.Module == "" {
		return g.Name
	}
	return fmt.Sprintf("%s.%s", g.Module, g.Name)
}

// ParseGlobal parses a module-qualified name. The last dot separates the
// binding, so "Core.Intrinsics.add_int" is module Core.Intrinsics.
// Operator names keep their dots: "Base.." is the binding "." of Base.
func ParseGlobal(s string) GlobalName {
	i := strings.LastIndexByte(s, '.')
	for i > 0 && s[i-1] == '.' {
		i--
	}
	if i <= 0 || i == len(s)-1 {
		return GlobalName{Name: s}
	}
	return GlobalName{Module: s[:i], Name: s[i+1:]}
}
