package translate_test

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/host"
	"github.com/roach88/brutus/internal/ir"
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

func TestTranslate_BranchExample(t *testing.T) {
	im, s := testutil.Session(t)
	fn, err := translate.Translate(s, testutil.BranchBody(im).Build())
	require.NoError(t, err)

	require.Len(t, fn.Blocks, 3)
	term := fn.Blocks[0].Terminator()
	require.NotNil(t, term)
	assert.Equal(t, dialect.OpGotoIfNot, term.Kind)
	assert.Equal(t, []int{1, 2}, fn.Successors(0))
	assert.Equal(t, dialect.OpReturn, fn.Blocks[1].Terminator().Kind)
	assert.Equal(t, dialect.OpReturn, fn.Blocks[2].Terminator().Kind)
	assert.Len(t, ops(fn, dialect.OpCall), 2)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "branch", []byte(dialect.Print(fn)))
}

func TestTranslate_LoopGolden(t *testing.T) {
	im, s := testutil.Session(t)
	fn, err := translate.Translate(s, testutil.LoopBody(im).Build())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "loop", []byte(dialect.Print(fn)))
}

func TestTranslate_StructuralPreservation(t *testing.T) {
	for name, sample := range samples {
		t.Run(name, func(t *testing.T) {
			im, s := testutil.Session(t)
			body := sample(im).Build()
			fn, err := translate.Translate(s, body)
			require.NoError(t, err)

			require.Len(t, fn.Blocks, len(body.Blocks))
			for i := range body.Blocks {
				assert.Equal(t, body.Successors(i), fn.Successors(i), "block %d", i)
			}
		})
	}
}

func TestTranslate_ValueCorrespondence(t *testing.T) {
	for name, sample := range samples {
		t.Run(name, func(t *testing.T) {
			im, s := testutil.Session(t)
			body := sample(im).Build()
			fn, err := translate.Translate(s, body)
			require.NoError(t, err)

			count := make(map[ir.ValueID]int)
			for _, info := range fn.Values {
				if info.Source != 0 {
					count[info.Source]++
				}
			}
			for _, blk := range body.Blocks {
				for _, st := range blk.Stmts {
					if st.ID != 0 {
						assert.Equal(t, 1, count[st.ID], "value %s", st.ID)
					}
				}
			}
			assert.Len(t, count, body.NumValues())
		})
	}
}

func TestTranslate_Deterministic(t *testing.T) {
	for name, sample := range samples {
		t.Run(name, func(t *testing.T) {
			im, s := testutil.Session(t)
			body := sample(im).Build()
			first := dialect.Print(translate.MustTranslate(s, body))
			for i := 0; i < 5; i++ {
				assert.Equal(t, first, dialect.Print(translate.MustTranslate(s, body)))
			}
		})
	}
}

func TestTranslate_ConstantFacts(t *testing.T) {
	im, s := testutil.Session(t)
	fn, err := translate.Translate(s, testutil.ConstBody(im).Build())
	require.NoError(t, err)

	// The effect-free call disappears. The effectful one stays.
	calls := ops(fn, dialect.OpCall)
	require.Len(t, calls, 2)
	logCallee := fn.Blocks[0].Ops[1]
	assert.Equal(t, dialect.OpGlobalRef, logCallee.Kind)
	assert.Equal(t, ir.Global("Main", "log"), logCallee.Attrs.Global)
	assert.Equal(t, ir.ValueID(0), fn.Source(calls[0].Result), "unused effectful result")

	var values []ir.IRValue
	for _, c := range ops(fn, dialect.OpConstant) {
		values = append(values, c.Attrs.Value)
	}
	assert.Equal(t, []ir.IRValue{
		ir.IRInt(3),
		ir.IRString("limits"),
		ir.IRNothing{},
		ir.IRInt(10),
	}, values)

	for _, ref := range ops(fn, dialect.OpGlobalRef) {
		assert.NotEqual(t, ir.Global("Main", "limit"), ref.Attrs.Global, "folds to a constant")
		assert.NotEqual(t, ir.Global("Main", "table"), ref.Attrs.Global, "operand of a removed call")
	}
}

func TestTranslate_Invoke(t *testing.T) {
	im, s := testutil.Session(t)
	fn, err := translate.Translate(s, testutil.InvokeBody(im).Build())
	require.NoError(t, err)

	invokes := ops(fn, dialect.OpInvoke)
	require.Len(t, invokes, 2)
	assert.Equal(t, ir.SpecKey("Main.inner(Int64)"), invokes[0].Attrs.Target.Spec.Key())
	assert.Equal(t, s.InvokeSym(), invokes[0].Attrs.Head)
	assert.Equal(t, []dialect.Value{1}, invokes[0].CallArgs())
	assert.Equal(t, dialect.JL(ir.TypeInt64), fn.Type(invokes[0].Result))
}

func TestTranslate_FallThroughGetsGoto(t *testing.T) {
	im, s := testutil.Session(t)
	fn, err := translate.Translate(s, testutil.LoopBody(im).Build())
	require.NoError(t, err)

	term := fn.Blocks[0].Terminator()
	require.NotNil(t, term)
	assert.Equal(t, dialect.OpGoto, term.Kind)
	require.Len(t, term.Succs, 1)
	assert.Equal(t, 1, term.Succs[0].Block)
	assert.Len(t, term.Succs[0].Args, 1, "passes the phi's initial value")
}

// diamond: bb0 branches to bb1 and bb2, which both jump to bb3.
func diamond(im *host.Image, join func(b *testutil.Body)) *ir.Body {
	b := testutil.NewBody(im, "Main.diamond", ir.TypeBool).Returns(ir.TypeInt64)
	b.GotoIfNot(b.Arg(1), 1, 2)
	b.Block()
	b.Goto(3)
	b.Block()
	b.Goto(3)
	b.Block()
	join(b)
	return b.Build()
}

func TestTranslate_MissingPhiEdgeIsUndef(t *testing.T) {
	im, s := testutil.Session(t)
	body := diamond(im, func(b *testutil.Body) {
		x := b.Phi(ir.TypeInt64, ir.PhiEdge{Pred: 1, Value: ir.Lit(ir.IRInt(5))})
		b.Return(x)
	})
	fn, err := translate.Translate(s, body)
	require.NoError(t, err)

	require.Len(t, fn.Blocks[3].Args, 1)
	undefs := ops(fn, dialect.OpUndef)
	require.Len(t, undefs, 1)
	assert.Equal(t, dialect.JL(ir.TypeInt64), fn.Type(undefs[0].Result))

	edge := fn.Blocks[2].Terminator().Succs[0]
	assert.Equal(t, []dialect.Value{undefs[0].Result}, edge.Args)
}

func TestTranslate_PhiWithConstantFact(t *testing.T) {
	im, s := testutil.Session(t)
	body := diamond(im, func(b *testutil.Body) {
		x := b.Phi(ir.TypeInt64,
			ir.PhiEdge{Pred: 1, Value: ir.Lit(ir.IRInt(5))},
			ir.PhiEdge{Pred: 2, Value: ir.Lit(ir.IRInt(5))})
		b.Const(x, ir.IRInt(5))
		b.Return(x)
	})
	fn, err := translate.Translate(s, body)
	require.NoError(t, err)

	arg := fn.Blocks[3].Args[0]
	assert.Equal(t, ir.ValueID(0), fn.Source(arg))
	first := fn.Blocks[3].Ops[0]
	assert.Equal(t, dialect.OpConstant, first.Kind)
	assert.Equal(t, ir.ValueID(1), fn.Source(first.Result))
	assert.Equal(t, []dialect.Value{first.Result}, fn.Blocks[3].Terminator().Operands)
}

func stmts(ss ...ir.Stmt) ir.Block { return ir.Block{Stmts: ss} }

var (
	retNothing = ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{ir.Lit(ir.IRNothing{})}}
	gotoBlock  = func(i int) ir.Stmt { return ir.Stmt{Kind: ir.StmtGoto, Succs: []int{i}} }
)

func TestTranslate_Errors(t *testing.T) {
	im, s := testutil.Session(t)
	call, invoke := im.Symbol("call"), im.Symbol("invoke")

	tests := []struct {
		name   string
		blocks []ir.Block
		code   string
		pos    ir.Pos
	}{
		{
			name:   "empty body",
			blocks: nil,
			code:   translate.ErrMalformedBody,
		},
		{
			name:   "duplicate id",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtLiteral, Args: []ir.Operand{ir.Lit(ir.IRInt(1))}}, ir.Stmt{ID: 1, Kind: ir.StmtLiteral, Args: []ir.Operand{ir.Lit(ir.IRInt(2))}}, retNothing)},
			code:   translate.ErrMalformedBody,
			pos:    ir.Pos{Block: 0, Stmt: 1},
		},
		{
			name:   "unknown statement kind",
			blocks: []ir.Block{stmts(ir.Stmt{Kind: ir.StmtKind(99)}, retNothing)},
			code:   translate.ErrUnknownStmt,
		},
		{
			name:   "unknown head",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtExpr, Head: im.Symbol("foreigncall"), Args: []ir.Operand{testutil.Func("Main.f")}}, retNothing)},
			code:   translate.ErrUnknownHead,
		},
		{
			name:   "undefined value",
			blocks: []ir.Block{stmts(ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{ir.SSA(7)}})},
			code:   translate.ErrUndefinedValue,
		},
		{
			name: "terminator defines a value",
			blocks: []ir.Block{
				stmts(ir.Stmt{ID: 7, Kind: ir.StmtGoto, Succs: []int{1}}),
				stmts(ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{ir.SSA(7)}}),
			},
			code: translate.ErrMalformedBody,
		},
		{
			name:   "undefined argument",
			blocks: []ir.Block{stmts(ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{ir.Arg(3)}})},
			code:   translate.ErrUndefinedValue,
		},
		{
			name: "not dominated",
			blocks: []ir.Block{
				stmts(ir.Stmt{Kind: ir.StmtGotoIfNot, Args: []ir.Operand{ir.Lit(ir.IRBool(true))}, Succs: []int{1, 2}}),
				stmts(ir.Stmt{ID: 1, Kind: ir.StmtLiteral, Args: []ir.Operand{ir.Lit(ir.IRInt(1))}}, gotoBlock(2)),
				stmts(ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{ir.SSA(1)}}),
			},
			code: translate.ErrNotDominated,
			pos:  ir.Pos{Block: 2, Stmt: 0},
		},
		{
			name:   "phi in entry",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtPhi}, retNothing)},
			code:   translate.ErrMalformedPhi,
		},
		{
			name: "phi edge from a non-predecessor",
			blocks: []ir.Block{
				stmts(gotoBlock(1)),
				stmts(ir.Stmt{ID: 1, Kind: ir.StmtPhi, Edges: []ir.PhiEdge{{Pred: 2, Value: ir.Lit(ir.IRInt(1))}}}, gotoBlock(2)),
				stmts(retNothing),
			},
			code: translate.ErrMalformedPhi,
			pos:  ir.Pos{Block: 1, Stmt: 0},
		},
		{
			name:   "branch to a missing block",
			blocks: []ir.Block{stmts(gotoBlock(5))},
			code:   translate.ErrMalformedBranch,
		},
		{
			name:   "branch to the entry",
			blocks: []ir.Block{stmts(gotoBlock(1)), stmts(gotoBlock(0))},
			code:   translate.ErrMalformedBranch,
			pos:    ir.Pos{Block: 1, Stmt: 0},
		},
		{
			name:   "terminator before the end",
			blocks: []ir.Block{stmts(retNothing, retNothing)},
			code:   translate.ErrMalformedBranch,
		},
		{
			name:   "falls off the end",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtLiteral, Args: []ir.Operand{ir.Lit(ir.IRInt(1))}})},
			code:   translate.ErrMalformedBranch,
			pos:    ir.Pos{Block: 0, Stmt: 1},
		},
		{
			name:   "unreachable block",
			blocks: []ir.Block{stmts(retNothing), stmts(retNothing)},
			code:   translate.ErrUnreachableBlock,
			pos:    ir.Pos{Block: 1},
		},
		{
			name:   "invoke without method instance",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtExpr, Head: invoke, Args: []ir.Operand{testutil.Func("Main.f"), ir.Arg(0)}}, retNothing)},
			code:   translate.ErrMalformedInvoke,
		},
		{
			name: "method instance as a call argument",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtExpr, Head: call, Args: []ir.Operand{
				testutil.Func("Main.f"), ir.MethodOperand(testutil.Method("Main.f", ir.TypeAny)),
			}}, retNothing)},
			code: translate.ErrMalformedInvoke,
		},
		{
			name:   "globalref of a literal",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtGlobalRef, Args: []ir.Operand{ir.Lit(ir.IRInt(1))}}, retNothing)},
			code:   translate.ErrMalformedOperands,
		},
		{
			name:   "call without callee",
			blocks: []ir.Block{stmts(ir.Stmt{ID: 1, Kind: ir.StmtExpr, Head: call}, retNothing)},
			code:   translate.ErrMalformedOperands,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := &ir.Body{
				Spec:   ir.NewSpecialization(ir.Global("Main", "bad")),
				Args:   []ir.ArgInfo{{Name: "#self#", Type: ir.Widen("typeof(bad)")}},
				Return: ir.TypeAny,
				Blocks: tt.blocks,
			}
			var fn *dialect.Function
			var err error
			require.NotPanics(t, func() { fn, err = translate.Translate(s, body) })
			require.Error(t, err)
			assert.Nil(t, fn)
			assert.True(t, translate.IsTranslationError(err))

			var te *translate.Error
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.code, te.Code, te.Error())
			assert.Equal(t, tt.pos, te.Pos)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	im, s := testutil.Session(t)
	body := &ir.Body{
		Spec: ir.NewSpecialization(ir.Global("Main", "bad")),
		Blocks: []ir.Block{stmts(
			ir.Stmt{ID: 1, Kind: ir.StmtExpr, Head: im.Symbol("foreigncall")},
			ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{ir.SSA(9)}},
		)},
	}
	errs := translate.Validate(s, body)
	require.Len(t, errs, 2)
	assert.Equal(t, translate.ErrUnknownHead, errs[0].Code)
	assert.Equal(t, translate.ErrUndefinedValue, errs[1].Code)
	assert.Equal(t, "[T103] bb0:1: use of undefined value %9", errs[1].Error())
}

func TestValidate_TerminatorResultIsNotADefinition(t *testing.T) {
	_, s := testutil.Session(t)
	body := &ir.Body{
		Spec: ir.NewSpecialization(ir.Global("Main", "bad")),
		Args: []ir.ArgInfo{{Name: "#self#", Type: ir.Widen("typeof(bad)")}},
		Blocks: []ir.Block{
			stmts(ir.Stmt{ID: 7, Kind: ir.StmtGoto, Succs: []int{1}}),
			stmts(ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{ir.SSA(7)}}),
		},
	}

	errs := translate.Validate(s, body)
	require.Len(t, errs, 2)
	assert.Equal(t, "[T110] bb0:0: goto cannot define value %7", errs[0].Error())
	assert.Equal(t, translate.ErrUndefinedValue, errs[1].Code)
	assert.Equal(t, ir.Pos{Block: 1, Stmt: 0}, errs[1].Pos)
}

func TestValidate_AcceptsIrreducible(t *testing.T) {
	im, s := testutil.Session(t)
	// bb0 -> bb1 | bb2, bb1 <-> bb2, bb2 -> bb3: the loop has two entries.
	b := testutil.NewBody(im, "Main.irreducible", ir.TypeBool).Returns(ir.TypeNothing)
	b.GotoIfNot(b.Arg(1), 1, 2)
	b.Block()
	b.Goto(2)
	b.Block()
	b.GotoIfNot(b.Arg(1), 1, 3)
	b.Block()
	b.Return(ir.Lit(ir.IRNothing{}))

	body := b.Build()
	assert.Empty(t, translate.Validate(s, body))
	fn, err := translate.Translate(s, body)
	require.NoError(t, err)
	assert.Len(t, fn.Blocks, 4)
}
