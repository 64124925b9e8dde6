package lower

import (
	"strings"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

// Runtime entry points called by lowered code.
const (
	EntryApplyGeneric = "jl_apply_generic"
	EntryInvoke       = "jl_invoke"
	EntryGetGlobal    = "jl_get_global"
	boxPrefix         = "jl_box_"
	unboxPrefix       = "jl_unbox_"
)

var nativeTypes = map[ir.Type]dialect.Type{
	ir.TypeBool:    dialect.I1,
	ir.TypeInt8:    dialect.Int(8),
	ir.TypeUInt8:   dialect.Int(8),
	ir.TypeInt16:   dialect.Int(16),
	ir.TypeUInt16:  dialect.Int(16),
	ir.TypeInt32:   dialect.Int(32),
	ir.TypeUInt32:  dialect.Int(32),
	ir.TypeInt64:   dialect.I64,
	ir.TypeUInt64:  dialect.I64,
	ir.TypeFloat32: dialect.Float(32),
	ir.TypeFloat64: dialect.F64,
}

// ConvertType maps a host type to its lowered representation: primitive
// bits types become native integers and floats, everything else a box.
func ConvertType(t ir.Type) dialect.Type {
	if n, ok := nativeTypes[t]; ok {
		return n
	}
	return dialect.Box
}

// lowerType converts a jlir type and leaves lowered types alone.
func lowerType(t dialect.Type) dialect.Type {
	if t.Kind == dialect.TypeJL {
		return ConvertType(t.Host)
	}
	return t
}

// concrete reports whether values of t have exactly that runtime type.
func concrete(t ir.Type) bool {
	return t != "" && t != ir.TypeAny && t != ir.TypeUnion && !strings.HasPrefix(string(t), "Union{")
}

// fitsNative reports whether constant v can be embedded unboxed as t.
func fitsNative(t dialect.Type, v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRBool:
		return t == dialect.I1
	case ir.IRInt:
		return t.Kind == dialect.TypeInt && t.Bits > 1
	case ir.IRFloat:
		return t.Kind == dialect.TypeFloat
	}
	return false
}

func boxEntry(host ir.Type) string   { return boxPrefix + strings.ToLower(string(host)) }
func unboxEntry(host ir.Type) string { return unboxPrefix + strings.ToLower(string(host)) }

// nativeHost is the host type assumed for a native value whose origin is
// unknown.
func nativeHost(t dialect.Type) ir.Type {
	for _, h := range []ir.Type{ir.TypeBool, ir.TypeInt8, ir.TypeInt16, ir.TypeInt32, ir.TypeInt64, ir.TypeFloat32, ir.TypeFloat64} {
		if nativeTypes[h] == t {
			return h
		}
	}
	return ir.TypeAny
}
