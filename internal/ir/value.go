package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// IRValue is a sealed interface representing a boxed host constant.
// Only the types in this file implement it; lowering passes switch over
// them exhaustively.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNothing is the host's singleton "nothing" value.
type IRNothing struct{}

func (IRNothing) irValue() {}

// IRBool is a boxed Bool.
type IRBool bool

func (IRBool) irValue() {}

// IRInt is a boxed Int64.
type IRInt int64

func (IRInt) irValue() {}

// IRFloat is a boxed Float64.
type IRFloat float64

func (IRFloat) irValue() {}

// IRString is a boxed String.
type IRString string

func (IRString) irValue() {}

// IRSymbol is an interned host symbol used as a value (e.g. a quoted :x).
type IRSymbol string

func (IRSymbol) irValue() {}

// IRFunction is the singleton object of a host function, named by its binding.
type IRFunction GlobalName

func (IRFunction) irValue() {}

// IRArray is a boxed tuple/vector of constants.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is a string-keyed record of constants.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// NewIRFunction creates the function singleton bound at module.name.
func NewIRFunction(module, name string) IRFunction {
	return IRFunction(GlobalName{Module: module, Name: name})
}

// TypeOf returns the host type of a boxed constant.
func TypeOf(v IRValue) Type {
	switch val := v.(type) {
	case IRNothing:
		return TypeNothing
	case IRBool:
		return TypeBool
	case IRInt:
		return TypeInt64
	case IRFloat:
		return TypeFloat64
	case IRString:
		return TypeString
	case IRSymbol:
		return TypeSymbol
	case IRFunction:
		return Type("typeof(" + GlobalName(val).String() + ")")
	case IRArray:
		return Type("Tuple")
	default:
		return TypeAny
	}
}

// FormatValue renders a constant the way the printer shows it.
func FormatValue(v IRValue) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case IRNothing:
		return "nothing"
	case IRBool:
		return strconv.FormatBool(bool(val))
	case IRInt:
		return strconv.FormatInt(int64(val), 10)
	case IRFloat:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case IRString:
		return strconv.Quote(string(val))
	case IRSymbol:
		return ":" + string(val)
	case IRFunction:
		return GlobalName(val).String()
	case IRArray:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = FormatValue(elem)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case IRObject:
		keys := val.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + " = " + FormatValue(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// EqualValues reports whether two constants denote the same host object.
// Floats compare by bit pattern so NaN constants de-duplicate.
func EqualValues(a, b IRValue) bool {
	ka, errA := MarshalCanonical(a)
	kb, errB := MarshalCanonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ka) == string(kb)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for some inputs.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
