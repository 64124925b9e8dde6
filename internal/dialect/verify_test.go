package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brutus/internal/ir"
)

func graph(edges map[int][]int) func(int) []int {
	return func(b int) []int { return edges[b] }
}

func TestDominatorsDiamond(t *testing.T) {
	// 0 -> 1, 2; 1 -> 3; 2 -> 3
	dom := Dominators(4, graph(map[int][]int{0: {1, 2}, 1: {3}, 2: {3}}))
	assert.Equal(t, 0, dom.IDom(3))
	assert.True(t, dom.Dominates(0, 3))
	assert.False(t, dom.Dominates(1, 3))
	assert.True(t, dom.Dominates(3, 3))
	assert.Equal(t, 0, dom.ReversePostorder()[0])
}

func TestDominatorsIrreducible(t *testing.T) {
	// 0 -> 1, 2; 1 <-> 2; 2 -> 3. The 1/2 loop has two entries.
	dom := Dominators(4, graph(map[int][]int{0: {1, 2}, 1: {2}, 2: {1, 3}}))
	assert.Equal(t, 0, dom.IDom(1))
	assert.Equal(t, 0, dom.IDom(2))
	assert.Equal(t, 2, dom.IDom(3))
	assert.False(t, dom.Dominates(1, 2))
	assert.False(t, dom.Dominates(2, 1))
}

func TestDominatorsUnreachable(t *testing.T) {
	dom := Dominators(3, graph(map[int][]int{0: {1}}))
	assert.True(t, dom.Reachable(1))
	assert.False(t, dom.Reachable(2))
	assert.False(t, dom.Dominates(0, 2))
	assert.Len(t, dom.ReversePostorder(), 2)
}

func TestVerifyAcceptsWellFormed(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(JLIR()))
	reg.Freeze()
	assert.NoError(t, Verify(branchy(t), VerifyOptions{Registry: reg, Dialect: JLIRName}))
}

func TestVerifyAcceptsIrreducibleLoop(t *testing.T) {
	spec := ir.NewSpecialization(ir.Global("Main", "loop"), ir.TypeBool)
	fn := NewFunction(spec, JL(ir.TypeNothing))
	for i := 0; i < 4; i++ {
		fn.AddBlock()
	}
	fn.AddArg(0, JL("typeof(loop)"), 0)
	c := fn.AddArg(0, JL(ir.TypeBool), 0)

	b := NewBuilder(fn)
	b.Emit(Op{Kind: OpGotoIfNot, Operands: []Value{c}, Succs: []Successor{{Block: 1}, {Block: 2}}})
	b.SetBlock(1)
	b.Emit(Op{Kind: OpGoto, Succs: []Successor{{Block: 2}}})
	b.SetBlock(2)
	b.Emit(Op{Kind: OpGotoIfNot, Operands: []Value{c}, Succs: []Successor{{Block: 1}, {Block: 3}}})
	b.SetBlock(3)
	n := b.Emit(Op{Kind: OpConstant, Attrs: Attrs{Value: ir.IRNothing{}, Type: JL(ir.TypeNothing)}})
	b.Emit(Op{Kind: OpReturn, Operands: []Value{n}})
	require.NoError(t, b.Err())

	assert.NoError(t, Verify(fn, VerifyOptions{}))
}

func TestVerifyFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(fn *Function)
		opts   VerifyOptions
		code   string
	}{
		{
			name:   "illegal dialect",
			mutate: func(*Function) {},
			opts:   VerifyOptions{Dialect: StdName},
			code:   ErrCodeIllegalOp,
		},
		{
			name: "missing terminator",
			mutate: func(fn *Function) {
				fn.Blocks[2].Ops = nil
			},
			code: ErrCodeTerminator,
		},
		{
			name: "terminator not last",
			mutate: func(fn *Function) {
				blk := fn.Blocks[1]
				blk.Ops[0], blk.Ops[2] = blk.Ops[2], blk.Ops[0]
			},
			code: ErrCodeTerminator,
		},
		{
			name: "bad successor",
			mutate: func(fn *Function) {
				fn.Blocks[0].Ops[0].Succs[1].Block = 9
			},
			code: ErrCodeSuccessor,
		},
		{
			name: "edge args mismatch",
			mutate: func(fn *Function) {
				fn.Blocks[0].Ops[0].Succs[0].Args = []Value{2}
			},
			code: ErrCodeEdgeArgs,
		},
		{
			name: "unreachable block",
			mutate: func(fn *Function) {
				fn.Blocks[0].Ops[0].Succs[1].Block = 1
			},
			code: ErrCodeUnreachable,
		},
		{
			name: "result type mismatch",
			mutate: func(fn *Function) {
				fn.Values[4].Type = JL(ir.TypeFloat64)
			},
			code: ErrCodeTypeMismatch,
		},
		{
			name: "operand count",
			mutate: func(fn *Function) {
				fn.Blocks[2].Ops[0].Operands = nil
			},
			code: ErrCodeOperandCount,
		},
		{
			name: "undefined value",
			mutate: func(fn *Function) {
				fn.Blocks[2].Ops[0].Operands[0] = 42
			},
			code: ErrCodeUndefinedValue,
		},
		{
			name: "use not dominated",
			mutate: func(fn *Function) {
				fn.Blocks[2].Ops[0].Operands[0] = 4
			},
			code: ErrCodeDominance,
		},
		{
			name: "use before definition",
			mutate: func(fn *Function) {
				fn.Blocks[1].Ops[1].Operands[0] = 4
			},
			code: ErrCodeDominance,
		},
		{
			name: "redefined value",
			mutate: func(fn *Function) {
				fn.Blocks[1].Ops[1].Result = 3
			},
			code: ErrCodeRedefinedValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := branchy(t)
			tt.mutate(fn)
			err := Verify(fn, tt.opts)
			require.Error(t, err)
			assert.True(t, IsVerifyError(err, tt.code), "got %v", err)
		})
	}
}

func TestVerifyRequiresRegisteredDialect(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Std()))
	err := Verify(branchy(t), VerifyOptions{Registry: reg})
	assert.True(t, IsVerifyError(err, ErrCodeUnknownOp))
}

func TestVerifyErrorMessage(t *testing.T) {
	err := &VerifyError{Code: ErrCodeDominance, Block: 2, Op: 1, Message: "x"}
	assert.Equal(t, "V208: bb2:1: x", err.Error())
	err.Op = -1
	assert.Equal(t, "V208: bb2: x", err.Error())
}
