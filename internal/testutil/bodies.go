package testutil

import (
	"github.com/roach88/brutus/internal/host"
	"github.com/roach88/brutus/internal/ir"
)

// Sample bodies shared by package tests. Each returns a fresh builder so
// callers can Build or Define it.

// SumBody is Main.sum(Int64, Int64) = add_int(x, y).
func SumBody(im *host.Image) *Body {
	b := NewBody(im, "Main.sum", ir.TypeInt64, ir.TypeInt64).Returns(ir.TypeInt64)
	x := b.Call(ir.TypeInt64, Func("Core.Intrinsics.add_int"), b.Arg(1), b.Arg(2))
	b.Line(x, 2)
	b.Return(x)
	return b
}

// BranchBody is Main.pick(Bool, Int64): the entry block branches on the
// condition to two blocks that each return the result of a dynamic call.
func BranchBody(im *host.Image) *Body {
	b := NewBody(im, "Main.pick", ir.TypeBool, ir.TypeInt64).Returns(ir.TypeInt64)
	then, els := 1, 2
	b.GotoIfNot(b.Arg(1), then, els)

	b.Block()
	x := b.Call(ir.TypeInt64, Func("Base.+"), b.Arg(2), ir.Lit(ir.IRInt(1)))
	b.Return(x)

	b.Block()
	y := b.Call(ir.TypeInt64, Func("Base.-"), b.Arg(2), ir.Lit(ir.IRInt(1)))
	b.Return(y)
	return b
}

// LoopBody is Main.count(Int64): counts from 0 up to n. The entry block
// falls through to the loop header, whose phi merges the initial value and
// the back edge.
func LoopBody(im *host.Image) *Body {
	b := NewBody(im, "Main.count", ir.TypeInt64).Returns(ir.TypeInt64)

	header := b.Block()
	i := b.Phi(ir.TypeInt64, ir.PhiEdge{Pred: 0, Value: ir.Lit(ir.IRInt(0))})
	lt := b.Call(ir.TypeBool, Func("Core.Intrinsics.slt_int"), i, b.Arg(1))
	body, exit := header+1, header+2
	b.GotoIfNot(lt, body, exit)

	b.Block()
	next := b.Call(ir.TypeInt64, Func("Core.Intrinsics.add_int"), i, ir.Lit(ir.IRInt(1)))
	b.Edge(i, body, next)
	b.Goto(header)

	b.Block()
	b.Return(i)
	return b
}

// InvokeBody is Main.outer(Int64): one invoke whose target matches its
// argument types and one whose target does not.
func InvokeBody(im *host.Image) *Body {
	b := NewBody(im, "Main.outer", ir.TypeInt64).Returns(ir.TypeInt64)
	exact := b.Invoke(ir.TypeInt64, Method("Main.inner", ir.TypeInt64, ir.TypeInt64), Func("Main.inner"), b.Arg(1))
	b.Invoke(ir.TypeAny, Method("Main.widen", ir.TypeAny, ir.TypeFloat64), Func("Main.widen"), b.Arg(1))
	b.Return(exact)
	return b
}

// ConstBody is Main.limits(): calls and a global read whose values the
// optimizer proved. The first call is effect free, the second is not.
func ConstBody(im *host.Image) *Body {
	b := NewBody(im, "Main.limits").Returns(ir.TypeInt64)
	n := b.Call(ir.TypeInt64, Func("Base.length"), ir.GlobalOperand(ir.Global("Main", "table"), ir.Widen(ir.TypeAny)))
	b.EffectFree(b.Const(n, ir.IRInt(3)))
	logged := b.Call(ir.TypeNothing, Func("Main.log"), ir.Lit(ir.IRString("limits")))
	b.Const(logged, ir.IRNothing{})
	limit := b.Const(b.GlobalRef(ir.TypeInt64, "Main.limit"), ir.IRInt(10))
	sum := b.Call(ir.TypeInt64, Func("Core.Intrinsics.add_int"), n, limit)
	b.Return(sum)
	return b
}
