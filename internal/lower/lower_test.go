package lower_test

import (
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/host"
	"github.com/roach88/brutus/internal/interop"
	"github.com/roach88/brutus/internal/ir"
	"github.com/roach88/brutus/internal/lower"
	"github.com/roach88/brutus/internal/testutil"
	"github.com/roach88/brutus/internal/translate"
)

var samples = map[string]func(*host.Image) *testutil.Body{
	"sum":    testutil.SumBody,
	"branch": testutil.BranchBody,
	"loop":   testutil.LoopBody,
	"invoke": testutil.InvokeBody,
	"const":  testutil.ConstBody,
}

func lowered(t *testing.T, s *interop.Session, body *ir.Body, opts ...lower.Option) *dialect.Function {
	t.Helper()
	fn, err := translate.Translate(s, body)
	require.NoError(t, err)
	out, err := lower.New(s, opts...).Run(fn)
	require.NoError(t, err)
	return out
}

func ops(fn *dialect.Function, kind dialect.Kind) []*dialect.Op {
	var out []*dialect.Op
	for _, blk := range fn.Blocks {
		for i := range blk.Ops {
			if blk.Ops[i].Kind == kind {
				out = append(out, &blk.Ops[i])
			}
		}
	}
	return out
}

func calls(fn *dialect.Function, entry string) []*dialect.Op {
	var out []*dialect.Op
	for _, op := range ops(fn, dialect.OpStdCall) {
		if op.Attrs.Entry == entry {
			out = append(out, op)
		}
	}
	return out
}

func golden(t *testing.T, name string, fn *dialect.Function) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(dialect.Print(fn)))
}

func TestRun_BranchExample(t *testing.T) {
	im, s := testutil.Session(t)
	out := lowered(t, s, testutil.BranchBody(im).Build())

	require.Len(t, out.Blocks, 3)
	term := out.Blocks[0].Terminator()
	require.NotNil(t, term)
	assert.Equal(t, dialect.OpCondBr, term.Kind)
	assert.Equal(t, []int{1, 2}, out.Successors(0))
	assert.Nil(t, out.Successors(1))
	assert.Nil(t, out.Successors(2))

	generic := calls(out, lower.EntryApplyGeneric)
	require.Len(t, generic, 2)
	assert.Empty(t, ops(out, dialect.OpCall))
	golden(t, "branch", out)
}

func TestRun_Golden(t *testing.T) {
	for _, name := range []string{"sum", "loop"} {
		t.Run(name, func(t *testing.T) {
			im, s := testutil.Session(t)
			golden(t, name, lowered(t, s, samples[name](im).Build()))
		})
	}
}

func TestRun_OutputIsStd(t *testing.T) {
	for name, sample := range samples {
		t.Run(name, func(t *testing.T) {
			im, s := testutil.Session(t)
			body := sample(im).Build()
			out := lowered(t, s, body)

			require.Len(t, out.Blocks, len(body.Blocks))
			for i := range body.Blocks {
				assert.Equal(t, body.Successors(i), out.Successors(i), "block %d", i)
			}
			for _, blk := range out.Blocks {
				for _, op := range blk.Ops {
					assert.Equal(t, dialect.StdName, dialect.Def(op.Kind).Dialect, op.Kind.String())
				}
			}
			assert.NoError(t, dialect.Verify(out, dialect.VerifyOptions{Registry: s.Registry(), Dialect: dialect.StdName}))
		})
	}
}

func TestRun_DoesNotModifyInput(t *testing.T) {
	for name, sample := range samples {
		t.Run(name, func(t *testing.T) {
			im, s := testutil.Session(t)
			fn := translate.MustTranslate(s, sample(im).Build())
			before := dialect.Print(fn)

			p := lower.New(s)
			first := dialect.Print(p.MustRun(fn))
			assert.Equal(t, before, dialect.Print(fn))
			assert.Equal(t, first, dialect.Print(p.MustRun(fn)), "deterministic")
		})
	}
}

func TestRun_Invoke(t *testing.T) {
	im, s := testutil.Session(t)
	out := lowered(t, s, testutil.InvokeBody(im).Build())

	invokes := calls(out, lower.EntryInvoke)
	require.Len(t, invokes, 1)
	assert.Equal(t, ir.SpecKey("Main.inner(Int64)"), invokes[0].Attrs.Target.Spec.Key())

	// Main.widen(Float64) cannot be proven applicable to an Int64.
	generic := calls(out, lower.EntryApplyGeneric)
	require.Len(t, generic, 1)
	assert.Nil(t, generic[0].Attrs.Target)

	assert.Len(t, calls(out, "jl_unbox_int64"), 1, "exact invoke result is unboxed")
}

func TestRun_IntrinsicInvoke(t *testing.T) {
	im, s := testutil.Session(t)
	b := testutil.NewBody(im, "Main.twice", ir.TypeFloat64).Returns(ir.TypeFloat64)
	x := b.Invoke(ir.TypeFloat64, testutil.Method("Core.Intrinsics.mul_float", ir.TypeFloat64, ir.TypeFloat64, ir.TypeFloat64),
		testutil.Func("Core.Intrinsics.mul_float"), b.Arg(1), b.Arg(1))
	b.Return(x)

	out := lowered(t, s, b.Build())
	require.Len(t, ops(out, dialect.OpMulF), 1)
	assert.Empty(t, ops(out, dialect.OpStdCall))
}

func TestRun_WithoutFastPaths(t *testing.T) {
	im, s := testutil.Session(t)
	out := lowered(t, s, testutil.SumBody(im).Build(), lower.WithoutFastPaths())

	assert.Empty(t, ops(out, dialect.OpAddI))
	require.Len(t, calls(out, lower.EntryApplyGeneric), 1)
	assert.Len(t, calls(out, lower.EntryGetGlobal), 1, "callee is read at run time")
	assert.Len(t, calls(out, "jl_box_int64"), 2)
	assert.Len(t, calls(out, "jl_unbox_int64"), 1)
}

func TestRun_IntrinsicNeedsNativeOperands(t *testing.T) {
	im, s := testutil.Session(t)
	b := testutil.NewBody(im, "Main.addany", ir.TypeAny, ir.TypeAny)
	x := b.Call(ir.TypeAny, testutil.Func("Base.add_int"), b.Arg(1), b.Arg(2))
	b.Return(x)

	out := lowered(t, s, b.Build())
	assert.Empty(t, ops(out, dialect.OpAddI))
	assert.Len(t, calls(out, lower.EntryApplyGeneric), 1)
}

func TestRun_ConstantsHoistedAndDeduplicated(t *testing.T) {
	im, s := testutil.Session(t)
	out := lowered(t, s, testutil.BranchBody(im).Build())

	consts := ops(out, dialect.OpStdConstant)
	require.Len(t, consts, 1, "the literal 1 of both branches")
	assert.Equal(t, dialect.OpStdConstant, out.Blocks[0].Ops[0].Kind)
	assert.Equal(t, ir.IRInt(1), consts[0].Attrs.Value)
	assert.Equal(t, dialect.I64, out.Type(consts[0].Result))
}

func TestRun_ConstantFacts(t *testing.T) {
	im, s := testutil.Session(t)
	out := lowered(t, s, testutil.ConstBody(im).Build())

	var values []ir.IRValue
	for _, c := range ops(out, dialect.OpStdConstant) {
		values = append(values, c.Attrs.Value)
	}
	assert.Equal(t, []ir.IRValue{ir.IRInt(3), ir.IRString("limits"), ir.IRInt(10)}, values,
		"unused nothing constant dropped")

	add := ops(out, dialect.OpAddI)
	require.Len(t, add, 1)
	get := calls(out, lower.EntryGetGlobal)
	require.Len(t, get, 1)
	assert.Equal(t, ir.Global("Main", "log"), get[0].Attrs.Global)
}

func TestRun_FunctionConstantReplacesGlobalRef(t *testing.T) {
	im, s := testutil.Session(t)
	plus := ir.NewIRFunction("Base", "+")
	b := testutil.NewBody(im, "Main.apply")
	ref := b.GlobalRef("typeof(+)", "Base.+")
	callee := ir.GlobalOperand(ir.Global("Base", "+"), im.Const("typeof(+)", plus))
	r := b.Call(ir.TypeAny, callee, ref)
	b.Return(r)

	out := lowered(t, s, b.Build())
	assert.Empty(t, calls(out, lower.EntryGetGlobal))
	consts := ops(out, dialect.OpStdConstant)
	require.Len(t, consts, 1)
	assert.Equal(t, plus, consts[0].Attrs.Value)

	generic := calls(out, lower.EntryApplyGeneric)
	require.Len(t, generic, 1)
	assert.Equal(t, []dialect.Value{consts[0].Result, consts[0].Result}, generic[0].Operands)
}

func TestRun_PiAndBoxedConditions(t *testing.T) {
	im, s := testutil.Session(t)
	b := testutil.NewBody(im, "Main.narrow", ir.TypeAny, ir.TypeAny).Returns(ir.TypeInt64)
	b.GotoIfNot(b.Arg(2), 1, 2)
	b.Block()
	n := b.Pi(ir.TypeInt64, b.Arg(1))
	sum := b.Call(ir.TypeInt64, testutil.Func("Core.Intrinsics.add_int"), n, n)
	b.Return(sum)
	b.Block()
	b.Unreachable()

	out := lowered(t, s, b.Build())
	assert.Len(t, calls(out, "jl_unbox_bool"), 1)
	assert.Len(t, calls(out, "jl_unbox_int64"), 1)
	assert.Len(t, ops(out, dialect.OpAddI), 1)
	assert.Equal(t, dialect.OpStdUnreachable, out.Blocks[2].Terminator().Kind)
}

func TestRun_UndefAndEdgeConversion(t *testing.T) {
	im, s := testutil.Session(t)
	b := testutil.NewBody(im, "Main.merge", ir.TypeBool, ir.TypeAny).Returns(ir.TypeInt64)
	b.GotoIfNot(b.Arg(1), 1, 2)
	b.Block()
	b.Goto(3)
	b.Block()
	b.Goto(3)
	b.Block()
	x := b.Phi(ir.TypeInt64, ir.PhiEdge{Pred: 1, Value: b.Arg(2)})
	b.Return(x)

	out := lowered(t, s, b.Build())
	require.Len(t, out.Blocks[3].Args, 1)
	assert.Equal(t, dialect.I64, out.Type(out.Blocks[3].Args[0]))

	undef := ops(out, dialect.OpStdUndef)
	require.Len(t, undef, 1)
	assert.Equal(t, dialect.I64, out.Type(undef[0].Result))
	assert.Len(t, calls(out, "jl_unbox_int64"), 1, "boxed edge value converted")
}

func TestRun_Irreducible(t *testing.T) {
	im, s := testutil.Session(t)
	b := testutil.NewBody(im, "Main.irreducible", ir.TypeBool).Returns(ir.TypeNothing)
	b.GotoIfNot(b.Arg(1), 1, 2)
	b.Block()
	b.Goto(2)
	b.Block()
	b.GotoIfNot(b.Arg(1), 1, 3)
	b.Block()
	b.Return(ir.Lit(ir.IRNothing{}))

	out := lowered(t, s, b.Build(), lower.WithVerifyEach())
	assert.Equal(t, []int{2}, out.Successors(1))
	assert.Equal(t, []int{1, 3}, out.Successors(2))
}

func TestRun_RejectsNonJLIRInput(t *testing.T) {
	_, s := testutil.Session(t)
	fn := dialect.NewFunction(ir.NewSpecialization(ir.Global("Main", "f")), dialect.I64)
	fn.AddBlock()
	b := dialect.NewBuilder(fn)
	c := b.Emit(dialect.Op{Kind: dialect.OpStdConstant, Attrs: dialect.Attrs{Value: ir.IRInt(1), Type: dialect.I64}})
	b.Emit(dialect.Op{Kind: dialect.OpStdReturn, Operands: []dialect.Value{c}})
	require.NoError(t, b.Err())

	_, err := lower.New(s).Run(fn)
	require.Error(t, err)
	assert.True(t, lower.IsVerificationError(err))

	var ve *lower.VerifyError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "input", ve.Pass)
	assert.Equal(t, dialect.ErrCodeIllegalOp, ve.Code)
	assert.True(t, dialect.IsVerifyError(err, dialect.ErrCodeIllegalOp))
	assert.Contains(t, err.Error(), "lower Main.f(): input: V209")
}

func TestRun_Observer(t *testing.T) {
	im, s := testutil.Session(t)
	var seen []string
	p := lower.New(s, lower.WithObserver(func(pass string, fn *dialect.Function) {
		seen = append(seen, pass)
		assert.NotNil(t, fn)
	}))
	p.MustRun(translate.MustTranslate(s, testutil.LoopBody(im).Build()))
	assert.Equal(t, p.Passes(), seen)
}

func TestRun_Concurrent(t *testing.T) {
	im, s := testutil.Session(t)
	fn := translate.MustTranslate(s, testutil.LoopBody(im).Build())
	p := lower.New(s)
	want := dialect.Print(p.MustRun(fn))

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = dialect.Print(p.MustRun(fn))
		}(i)
	}
	wg.Wait()
	for _, r := range results {
		assert.Equal(t, want, r)
	}
}

func TestConvertType(t *testing.T) {
	tests := []struct {
		host ir.Type
		want dialect.Type
	}{
		{ir.TypeBool, dialect.I1},
		{ir.TypeInt32, dialect.Int(32)},
		{ir.TypeUInt8, dialect.Int(8)},
		{ir.TypeInt64, dialect.I64},
		{ir.TypeFloat32, dialect.Float(32)},
		{ir.TypeFloat64, dialect.F64},
		{ir.TypeAny, dialect.Box},
		{ir.TypeString, dialect.Box},
		{ir.TypeNothing, dialect.Box},
		{"typeof(+)", dialect.Box},
	}
	for _, tt := range tests {
		t.Run(string(tt.host), func(t *testing.T) {
			assert.Equal(t, tt.want, lower.ConvertType(tt.host))
		})
	}
}
