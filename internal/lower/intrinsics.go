package lower

import (
	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

type intrinsic struct {
	kind      dialect.Kind
	predicate string
}

// Host intrinsics with a direct std equivalent. They are reachable as
// Core.Intrinsics.<name> and through the Base re-export.
var intrinsics = map[string]intrinsic{
	"add_int":   {kind: dialect.OpAddI},
	"sub_int":   {kind: dialect.OpSubI},
	"mul_int":   {kind: dialect.OpMulI},
	"and_int":   {kind: dialect.OpAndI},
	"or_int":    {kind: dialect.OpOrI},
	"xor_int":   {kind: dialect.OpXorI},
	"eq_int":    {kind: dialect.OpCmpI, predicate: "eq"},
	"ne_int":    {kind: dialect.OpCmpI, predicate: "ne"},
	"slt_int":   {kind: dialect.OpCmpI, predicate: "slt"},
	"sle_int":   {kind: dialect.OpCmpI, predicate: "sle"},
	"ult_int":   {kind: dialect.OpCmpI, predicate: "ult"},
	"ule_int":   {kind: dialect.OpCmpI, predicate: "ule"},
	"add_float": {kind: dialect.OpAddF},
	"sub_float": {kind: dialect.OpSubF},
	"mul_float": {kind: dialect.OpMulF},
	"div_float": {kind: dialect.OpDivF},
	"eq_float":  {kind: dialect.OpCmpF, predicate: "oeq"},
	"ne_float":  {kind: dialect.OpCmpF, predicate: "one"},
	"lt_float":  {kind: dialect.OpCmpF, predicate: "olt"},
	"le_float":  {kind: dialect.OpCmpF, predicate: "ole"},
}

func lookupIntrinsic(g ir.GlobalName) (intrinsic, bool) {
	if g.Module != "Core.Intrinsics" && g.Module != "Base" {
		return intrinsic{}, false
	}
	in, ok := intrinsics[g.Name]
	return in, ok
}

// operandKind is the native type class an intrinsic operates on.
func (in intrinsic) operandKind() dialect.TypeKind {
	switch in.kind {
	case dialect.OpAddF, dialect.OpSubF, dialect.OpMulF, dialect.OpDivF, dialect.OpCmpF:
		return dialect.TypeFloat
	}
	return dialect.TypeInt
}

func (in intrinsic) compare() bool {
	return in.predicate != ""
}
