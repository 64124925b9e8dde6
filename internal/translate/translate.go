// Package translate converts a host method's typed SSA IR into a jlir
// dialect function.
//
// The output has one block per input block, in the same order, with the
// same successor lists. Every input SSA value maps to exactly one dialect
// value: the op that computes it, the block argument that replaces its
// phi, or a jlir.constant when the optimizer proved its value.
package translate

import (
	"fmt"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/interop"
	"github.com/roach88/brutus/internal/ir"
)

// Translate converts body into a jlir function. Malformed or unsupported
// input yields the first *Error found by Validate; the process is never
// affected.
func Translate(s *interop.Session, body *ir.Body) (*dialect.Function, error) {
	if errs := Validate(s, body); len(errs) > 0 {
		return nil, errs[0]
	}

	t := &translator{
		s:    s,
		body: body,
		fn:   dialect.NewFunction(body.Spec, hostType(body.Return)),
		vals: make(map[ir.ValueID]dialect.Value, body.NumValues()),
	}
	t.b = dialect.NewBuilder(t.fn)
	t.run()
	if t.err != nil {
		return nil, t.err
	}
	if err := t.b.Err(); err != nil {
		return nil, fmt.Errorf("translate %s: %w", body.Spec, err)
	}

	opts := dialect.VerifyOptions{Registry: s.Registry(), Dialect: dialect.JLIRName}
	if err := dialect.Verify(t.fn, opts); err != nil {
		return nil, fmt.Errorf("translate %s: output: %w", body.Spec, err)
	}
	return t.fn, nil
}

// MustTranslate is like Translate but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustTranslate(s *interop.Session, body *ir.Body) *dialect.Function {
	fn, err := Translate(s, body)
	if err != nil {
		panic(err)
	}
	return fn
}

type translator struct {
	s    *interop.Session
	body *ir.Body
	fn   *dialect.Function
	b    *dialect.Builder
	args []dialect.Value
	vals map[ir.ValueID]dialect.Value
	err  *Error // first use of a value that was never bound
}

func hostType(t ir.Type) dialect.Type {
	if t == "" {
		return dialect.JL(ir.TypeAny)
	}
	return dialect.JL(t)
}

func (t *translator) run() {
	// Blocks and their arguments first: edges may target any block.
	for bi := range t.body.Blocks {
		t.fn.AddBlock()
		if bi == 0 {
			for _, a := range t.body.Args {
				t.args = append(t.args, t.fn.AddArg(0, hostType(a.Type.Type), 0))
			}
		}
		for _, st := range t.body.Blocks[bi].Stmts {
			if st.Kind != ir.StmtPhi {
				break
			}
			src := st.ID
			if _, ok := t.s.Fact(st.Type); ok {
				src = 0
			}
			arg := t.fn.AddArg(bi, hostType(st.Type.Type), src)
			if src != 0 {
				t.vals[st.ID] = arg
			}
		}
	}

	// Definitions must be emitted before uses; dominators come first.
	dom := dialect.Dominators(len(t.body.Blocks), t.body.Successors)
	for _, bi := range dom.Preorder() {
		t.b.SetBlock(bi)
		t.block(bi)
	}
}

func (t *translator) block(bi int) {
	blk := &t.body.Blocks[bi]
	for si := range blk.Stmts {
		st := &blk.Stmts[si]
		loc := dialect.At(ir.Pos{Block: bi, Stmt: si}, st.Line)
		switch st.Kind {
		case ir.StmtPhi:
			if fact, ok := t.s.Fact(st.Type); ok {
				t.vals[st.ID] = t.constant(st.ID, fact, st.Type.Type, loc)
			}
		case ir.StmtExpr:
			t.expr(st, loc)
		case ir.StmtGlobalRef:
			t.define(st, loc, func() dialect.Value {
				g := st.Args[0]
				return t.b.EmitFor(st.ID, dialect.Op{
					Kind:  dialect.OpGlobalRef,
					Attrs: dialect.Attrs{Global: g.Global, Type: hostType(st.Type.Type)},
					Loc:   loc,
				})
			})
		case ir.StmtLiteral:
			lit := st.Args[0].Literal
			t.define(st, loc, func() dialect.Value {
				return t.constant(st.ID, lit, st.Type.Type, loc)
			})
		case ir.StmtPi:
			t.define(st, loc, func() dialect.Value {
				x := t.operand(st.Args[0], loc)
				return t.b.EmitFor(st.ID, dialect.Op{
					Kind:     dialect.OpPi,
					Operands: []dialect.Value{x},
					Attrs:    dialect.Attrs{Type: hostType(st.Type.Type)},
					Loc:      loc,
				})
			})
		case ir.StmtGoto:
			t.b.Emit(dialect.Op{Kind: dialect.OpGoto, Succs: t.successors(bi, st.Succs, loc), Loc: loc})
		case ir.StmtGotoIfNot:
			cond := t.operand(st.Args[0], loc)
			t.b.Emit(dialect.Op{
				Kind:     dialect.OpGotoIfNot,
				Operands: []dialect.Value{cond},
				Succs:    t.successors(bi, st.Succs, loc),
				Loc:      loc,
			})
		case ir.StmtReturn:
			v := t.operand(st.Args[0], loc)
			t.b.Emit(dialect.Op{Kind: dialect.OpReturn, Operands: []dialect.Value{v}, Loc: loc})
		case ir.StmtUnreachable:
			t.b.Emit(dialect.Op{Kind: dialect.OpUnreachable, Loc: loc})
		}
	}

	if blk.Terminator() == nil {
		loc := dialect.At(ir.Pos{Block: bi, Stmt: len(blk.Stmts)}, 0)
		t.b.Emit(dialect.Op{Kind: dialect.OpGoto, Succs: t.successors(bi, []int{bi + 1}, loc), Loc: loc})
	}
}

// define maps a pure statement's value: to a constant when its value is
// known, otherwise to whatever emit produces.
func (t *translator) define(st *ir.Stmt, loc dialect.Loc, emit func() dialect.Value) {
	if fact, ok := t.s.Fact(st.Type); ok && st.ID != 0 {
		t.vals[st.ID] = t.constant(st.ID, fact, st.Type.Type, loc)
		return
	}
	v := emit()
	if st.ID != 0 {
		t.vals[st.ID] = v
	}
}

// expr translates :call and :invoke. With a constant fact the value maps
// to a jlir.constant; the call itself is kept unless the optimizer marked
// it effect-free.
func (t *translator) expr(st *ir.Stmt, loc dialect.Loc) {
	fact, known := t.s.Fact(st.Type)
	known = known && st.ID != 0
	if known && st.EffectFree() {
		t.vals[st.ID] = t.constant(st.ID, fact, st.Type.Type, loc)
		return
	}

	src := st.ID
	if known {
		src = 0
	}

	var result dialect.Value
	if st.Head == t.s.InvokeSym() {
		mi := st.Args[0].Method
		result = t.b.EmitFor(src, dialect.Op{
			Kind:     dialect.OpInvoke,
			Operands: t.operands(st.Args[1:], loc),
			Attrs:    dialect.Attrs{Head: st.Head, Target: mi, Type: hostType(st.Type.Type)},
			Loc:      loc,
		})
	} else {
		result = t.b.EmitFor(src, dialect.Op{
			Kind:     dialect.OpCall,
			Operands: t.operands(st.Args, loc),
			Attrs:    dialect.Attrs{Head: st.Head, Type: hostType(st.Type.Type)},
			Loc:      loc,
		})
	}

	switch {
	case known:
		t.vals[st.ID] = t.constant(st.ID, fact, st.Type.Type, loc)
	case st.ID != 0:
		t.vals[st.ID] = result
	}
}

func (t *translator) constant(src ir.ValueID, v ir.IRValue, typ ir.Type, loc dialect.Loc) dialect.Value {
	if typ == "" {
		typ = ir.TypeOf(v)
	}
	return t.b.EmitFor(src, dialect.Op{
		Kind:  dialect.OpConstant,
		Attrs: dialect.Attrs{Value: v, Type: hostType(typ)},
		Loc:   loc,
	})
}

func (t *translator) operands(os []ir.Operand, loc dialect.Loc) []dialect.Value {
	out := make([]dialect.Value, len(os))
	for i, o := range os {
		out[i] = t.operand(o, loc)
	}
	return out
}

// operand returns the dialect value for o, materializing literals and
// inline globals in the current block.
func (t *translator) operand(o ir.Operand, loc dialect.Loc) dialect.Value {
	switch o.Kind {
	case ir.OperandSSA:
		v, ok := t.vals[o.Value]
		if !ok {
			if t.err == nil {
				t.err = errorf(loc.Pos, ErrUndefinedValue, "use of unbound value %s", o.Value)
			}
			return dialect.NoValue
		}
		return v
	case ir.OperandArg:
		return t.args[o.Index]
	case ir.OperandLiteral:
		return t.constant(0, o.Literal, o.Type.Type, loc)
	case ir.OperandGlobal:
		if fact, ok := t.s.Fact(o.Type); ok {
			return t.constant(0, fact, o.Type.Type, loc)
		}
		return t.b.Emit(dialect.Op{
			Kind:  dialect.OpGlobalRef,
			Attrs: dialect.Attrs{Global: o.Global, Type: hostType(o.Type.Type)},
			Loc:   loc,
		})
	}
	return dialect.NoValue
}

// successors builds the edge list of block bi, passing each target's phi
// values for this predecessor. A phi with no incoming value on an edge
// receives jlir.undef.
func (t *translator) successors(bi int, targets []int, loc dialect.Loc) []dialect.Successor {
	out := make([]dialect.Successor, len(targets))
	for i, target := range targets {
		var args []dialect.Value
		for _, phi := range t.body.Blocks[target].Stmts {
			if phi.Kind != ir.StmtPhi {
				break
			}
			args = append(args, t.incoming(bi, &phi, loc))
		}
		out[i] = dialect.Successor{Block: target, Args: args}
	}
	return out
}

func (t *translator) incoming(pred int, phi *ir.Stmt, loc dialect.Loc) dialect.Value {
	for _, e := range phi.Edges {
		if e.Pred == pred {
			return t.operand(e.Value, loc)
		}
	}
	return t.b.Emit(dialect.Op{
		Kind:  dialect.OpUndef,
		Attrs: dialect.Attrs{Type: hostType(phi.Type.Type)},
		Loc:   loc,
	})
}
