package dialect

import (
	"fmt"

	"github.com/roach88/brutus/internal/ir"
)

// TypeKind classifies dialect types.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	// TypeNone is the unit type of operations without a value.
	TypeNone
	// TypeJL is a host-typed value, !jlir<T>. Boxed or not is decided by lowering.
	TypeJL
	// TypeInt is a native integer of Bits width (i1 is Bool).
	TypeInt
	// TypeFloat is a native IEEE float of Bits width.
	TypeFloat
	// TypeBox is a pointer to a boxed host value.
	TypeBox
)

// Type is a dialect type. Types are small comparable values.
type Type struct {
	Kind TypeKind
	Bits int
	Host ir.Type
}

// JL returns !jlir<t>.
func JL(t ir.Type) Type { return Type{Kind: TypeJL, Host: t} }

// Int returns the native integer type of the given width.
func Int(bits int) Type { return Type{Kind: TypeInt, Bits: bits} }

// Float returns the native float type of the given width.
func Float(bits int) Type { return Type{Kind: TypeFloat, Bits: bits} }

// Common types.
var (
	None = Type{Kind: TypeNone}
	Box  = Type{Kind: TypeBox}
	I1   = Int(1)
	I64  = Int(64)
	F64  = Float(64)
)

// IsValid reports whether t is a usable type.
func (t Type) IsValid() bool {
	return t.Kind != TypeInvalid
}

// IsNative reports whether values of t live in registers unboxed.
func (t Type) IsNative() bool {
	return t.Kind == TypeInt || t.Kind == TypeFloat
}

func (t Type) String() string {
	switch t.Kind {
	case TypeNone:
		return "none"
	case TypeJL:
		return "!jlir<" + string(t.Host) + ">"
	case TypeInt:
		return fmt.Sprintf("i%d", t.Bits)
	case TypeFloat:
		return fmt.Sprintf("f%d", t.Bits)
	case TypeBox:
		return "!std.box"
	default:
		return "<invalid>"
	}
}
