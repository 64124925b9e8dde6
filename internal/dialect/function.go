package dialect

import (
	"fmt"

	"github.com/roach88/brutus/internal/ir"
)

// ValueInfo records the type of a value and the input SSA value it stands
// for. Source is zero for synthesized values and block arguments that are
// method parameters.
type ValueInfo struct {
	Type   Type
	Source ir.ValueID
}

// Block is a basic block. Args are the block's incoming values (phi nodes
// in the input); the entry block's Args are the method parameters.
type Block struct {
	Args []Value
	Ops  []Op
}

// Terminator returns the last op if it is a terminator.
func (b *Block) Terminator() *Op {
	if len(b.Ops) == 0 {
		return nil
	}
	last := &b.Ops[len(b.Ops)-1]
	if d := Def(last.Kind); d == nil || !d.Terminator {
		return nil
	}
	return last
}

// Function is a function body in the jlir or std dialect.
type Function struct {
	Name   string
	Spec   ir.Specialization
	Result Type
	Blocks []*Block
	Values []ValueInfo
}

// NewFunction returns an empty function for spec.
func NewFunction(spec ir.Specialization, result Type) *Function {
	return &Function{
		Name:   spec.String(),
		Spec:   spec,
		Result: result,
	}
}

// AddBlock appends an empty block and returns its index.
func (f *Function) AddBlock() int {
	f.Blocks = append(f.Blocks, &Block{})
	return len(f.Blocks) - 1
}

// NewValue allocates a value.
func (f *Function) NewValue(t Type, src ir.ValueID) Value {
	f.Values = append(f.Values, ValueInfo{Type: t, Source: src})
	return Value(len(f.Values) - 1)
}

// AddArg appends a block argument.
func (f *Function) AddArg(block int, t Type, src ir.ValueID) Value {
	v := f.NewValue(t, src)
	b := f.Blocks[block]
	b.Args = append(b.Args, v)
	return v
}

// Type returns the type of v.
func (f *Function) Type(v Value) Type {
	if v < 0 || int(v) >= len(f.Values) {
		return Type{}
	}
	return f.Values[v].Type
}

// Source returns the input SSA value v stands for.
func (f *Function) Source(v Value) ir.ValueID {
	if v < 0 || int(v) >= len(f.Values) {
		return 0
	}
	return f.Values[v].Source
}

// Entry returns the entry block.
func (f *Function) Entry() *Block {
	return f.Blocks[0]
}

// Successors returns the successor block indices of block i in edge order.
func (f *Function) Successors(i int) []int {
	term := f.Blocks[i].Terminator()
	if term == nil || len(term.Succs) == 0 {
		return nil
	}
	out := make([]int, len(term.Succs))
	for j, s := range term.Succs {
		out[j] = s.Block
	}
	return out
}

// NumOps counts the operations of all blocks.
func (f *Function) NumOps() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Ops)
	}
	return n
}

// Uses counts the uses of every value, operands and edge arguments alike.
func (f *Function) Uses() []int {
	uses := make([]int, len(f.Values))
	for _, b := range f.Blocks {
		for i := range b.Ops {
			op := &b.Ops[i]
			for _, v := range op.Operands {
				if v >= 0 && int(v) < len(uses) {
					uses[v]++
				}
			}
			for _, s := range op.Succs {
				for _, v := range s.Args {
					if v >= 0 && int(v) < len(uses) {
						uses[v]++
					}
				}
			}
		}
	}
	return uses
}

// Clone returns a deep copy of f. Attribute values are immutable and shared.
func (f *Function) Clone() *Function {
	out := &Function{
		Name:   f.Name,
		Spec:   ir.NewSpecialization(f.Spec.Method, f.Spec.Signature...),
		Result: f.Result,
		Blocks: make([]*Block, len(f.Blocks)),
		Values: append([]ValueInfo(nil), f.Values...),
	}
	for i, b := range f.Blocks {
		nb := &Block{
			Args: append([]Value(nil), b.Args...),
			Ops:  make([]Op, len(b.Ops)),
		}
		for j, op := range b.Ops {
			op.Operands = append([]Value(nil), op.Operands...)
			succs := make([]Successor, len(op.Succs))
			for k, s := range op.Succs {
				succs[k] = Successor{Block: s.Block, Args: append([]Value(nil), s.Args...)}
			}
			if op.Succs == nil {
				succs = nil
			}
			op.Succs = succs
			nb.Ops[j] = op
		}
		out.Blocks[i] = nb
	}
	return out
}

// Builder appends operations to a Function, inferring result types from
// the static op definitions. The first inference failure is kept and
// reported by Err; building continues so callers check once at the end.
type Builder struct {
	fn    *Function
	block int
	err   error
}

// NewBuilder returns a builder positioned at block 0 of fn.
func NewBuilder(fn *Function) *Builder {
	return &Builder{fn: fn}
}

// Func returns the function being built.
func (b *Builder) Func() *Function {
	return b.fn
}

// SetBlock moves the insertion point to the end of block i.
func (b *Builder) SetBlock(i int) {
	b.block = i
}

// Block returns the index of the current block.
func (b *Builder) Block() int {
	return b.block
}

// Emit appends op to the current block and returns its result.
func (b *Builder) Emit(op Op) Value {
	return b.EmitFor(0, op)
}

// EmitFor is Emit for an op whose result stands for input value src.
func (b *Builder) EmitFor(src ir.ValueID, op Op) Value {
	def := Def(op.Kind)
	if def == nil {
		b.fail(fmt.Errorf("emit: unknown op kind %d", op.Kind))
		return NoValue
	}

	blk := b.fn.Blocks[b.block]
	if blk.Terminator() != nil {
		b.fail(fmt.Errorf("emit %s: block %d is already terminated", def.Name, b.block))
	}

	op.Result = NoValue
	if def.HasResult {
		operands := make([]Type, len(op.Operands))
		for i, v := range op.Operands {
			operands[i] = b.fn.Type(v)
		}
		t, err := def.InferType(operands, &op.Attrs)
		if err != nil {
			b.fail(fmt.Errorf("emit %s: %w", def.Name, err))
		}
		op.Result = b.fn.NewValue(t, src)
	}
	blk.Ops = append(blk.Ops, op)
	return op.Result
}

// Err returns the first error recorded while building.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
