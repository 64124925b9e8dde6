package lower

import (
	"fmt"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

// resolveDispatch rewrites every jlir operation into std, except
// jlir.constant and jlir.global_ref which keep their kind with lowered
// types for constant materialization.
func resolveDispatch(fn *dialect.Function, fastPaths bool) (*dialect.Function, error) {
	d := &dispatcher{
		in:    fn,
		out:   dialect.NewFunction(fn.Spec, lowerType(fn.Result)),
		defs:  make([]*dialect.Op, len(fn.Values)),
		vals:  make([]dialect.Value, len(fn.Values)),
		hosts: make(map[dialect.Value]ir.Type),
		fast:  fastPaths,
	}
	d.b = dialect.NewBuilder(d.out)
	return d.run()
}

type convKey struct {
	v    dialect.Value
	want dialect.Type
}

type dispatcher struct {
	in    *dialect.Function
	out   *dialect.Function
	b     *dialect.Builder
	defs  []*dialect.Op
	vals  []dialect.Value
	hosts map[dialect.Value]ir.Type
	conv  map[convKey]dialect.Value
	fast  bool
	err   error
}

func (d *dispatcher) run() (*dialect.Function, error) {
	for i := range d.vals {
		d.vals[i] = dialect.NoValue
	}
	for _, blk := range d.in.Blocks {
		for i := range blk.Ops {
			if r := blk.Ops[i].Result; r != dialect.NoValue {
				d.defs[r] = &blk.Ops[i]
			}
		}
	}

	for bi, blk := range d.in.Blocks {
		d.out.AddBlock()
		for _, a := range blk.Args {
			t := d.in.Type(a)
			d.define(a, d.out.AddArg(bi, lowerType(t), d.in.Source(a)), t.Host)
		}
	}

	dom := dialect.Dominators(len(d.in.Blocks), d.in.Successors)
	for _, bi := range dom.Preorder() {
		d.b.SetBlock(bi)
		d.conv = make(map[convKey]dialect.Value)
		for i := range d.in.Blocks[bi].Ops {
			d.rewrite(&d.in.Blocks[bi].Ops[i])
		}
	}

	if d.err != nil {
		return nil, d.err
	}
	if err := d.b.Err(); err != nil {
		return nil, err
	}
	return d.out, nil
}

func (d *dispatcher) define(in, out dialect.Value, host ir.Type) {
	d.vals[in] = out
	if out != dialect.NoValue && host != "" {
		d.hosts[out] = host
	}
}

func (d *dispatcher) value(in dialect.Value) dialect.Value {
	if in < 0 || int(in) >= len(d.vals) {
		return dialect.NoValue
	}
	return d.vals[in]
}

func (d *dispatcher) rewrite(op *dialect.Op) {
	src := ir.ValueID(0)
	if op.Result != dialect.NoValue {
		src = d.in.Source(op.Result)
	}
	host := op.Attrs.Type.Host

	switch op.Kind {
	case dialect.OpConstant:
		t := lowerType(op.Attrs.Type)
		if t.IsNative() && !fitsNative(t, op.Attrs.Value) {
			t = dialect.Box
		}
		r := d.b.EmitFor(src, dialect.Op{
			Kind:  dialect.OpConstant,
			Attrs: dialect.Attrs{Value: op.Attrs.Value, Type: t},
			Loc:   op.Loc,
		})
		d.define(op.Result, r, host)

	case dialect.OpGlobalRef:
		r := d.b.EmitFor(src, dialect.Op{
			Kind:  dialect.OpGlobalRef,
			Attrs: dialect.Attrs{Global: op.Attrs.Global, Type: dialect.Box},
			Loc:   op.Loc,
		})
		d.define(op.Result, d.coerce(r, lowerType(op.Attrs.Type), host, op.Loc), host)

	case dialect.OpUndef:
		r := d.b.EmitFor(src, dialect.Op{
			Kind:  dialect.OpStdUndef,
			Attrs: dialect.Attrs{Type: lowerType(op.Attrs.Type)},
			Loc:   op.Loc,
		})
		d.define(op.Result, r, host)

	case dialect.OpPi:
		x := d.value(op.Operands[0])
		d.define(op.Result, d.coerce(x, lowerType(op.Attrs.Type), host, op.Loc), host)

	case dialect.OpCall:
		d.call(op, src, nil)

	case dialect.OpInvoke:
		d.call(op, src, op.Attrs.Target)

	case dialect.OpGoto:
		succs := d.successors(op)
		d.b.Emit(dialect.Op{Kind: dialect.OpBr, Succs: succs, Loc: op.Loc})

	case dialect.OpGotoIfNot:
		cond := d.coerce(d.value(op.Operands[0]), dialect.I1, ir.TypeBool, op.Loc)
		succs := d.successors(op)
		d.b.Emit(dialect.Op{Kind: dialect.OpCondBr, Operands: []dialect.Value{cond}, Succs: succs, Loc: op.Loc})

	case dialect.OpReturn:
		v := d.coerce(d.value(op.Operands[0]), d.out.Result, d.in.Result.Host, op.Loc)
		d.b.Emit(dialect.Op{Kind: dialect.OpStdReturn, Operands: []dialect.Value{v}, Loc: op.Loc})

	case dialect.OpUnreachable:
		d.b.Emit(dialect.Op{Kind: dialect.OpStdUnreachable, Loc: op.Loc})

	default:
		d.fail(fmt.Errorf("%s: unexpected %s in jlir input", op.Loc.Pos, op.Kind))
	}
}

// call resolves a jlir.call or jlir.invoke: an intrinsic fast path when the
// operand types prove it legal, jl_invoke when target matches the argument
// types exactly, and jl_apply_generic otherwise.
func (d *dispatcher) call(op *dialect.Op, src ir.ValueID, target *ir.MethodInstance) {
	host := op.Attrs.Type.Host
	want := lowerType(op.Attrs.Type)
	args := op.CallArgs()

	if d.fast {
		if name, ok := d.calleeName(op.Callee(), target); ok {
			if r, ok := d.intrinsic(name, args, want, src, op.Loc); ok {
				d.define(op.Result, r, host)
				return
			}
		}
	}

	attrs := dialect.Attrs{Entry: EntryApplyGeneric, Type: dialect.Box}
	if target != nil && d.exact(target, args) {
		attrs.Entry = EntryInvoke
		attrs.Target = target
	}
	operands := make([]dialect.Value, 0, len(op.Operands))
	for _, v := range op.Operands {
		operands = append(operands, d.coerce(d.value(v), dialect.Box, "", op.Loc))
	}
	r := d.b.EmitFor(src, dialect.Op{Kind: dialect.OpStdCall, Operands: operands, Attrs: attrs, Loc: op.Loc})
	d.define(op.Result, d.coerce(r, want, host, op.Loc), host)
}

// calleeName identifies the function being called, if it is statically
// known: the invoke target, or a global or function constant callee.
func (d *dispatcher) calleeName(callee dialect.Value, target *ir.MethodInstance) (ir.GlobalName, bool) {
	if target != nil {
		return target.Spec.Method, true
	}
	if callee < 0 || int(callee) >= len(d.defs) || d.defs[callee] == nil {
		return ir.GlobalName{}, false
	}
	def := d.defs[callee]
	switch def.Kind {
	case dialect.OpGlobalRef:
		return def.Attrs.Global, true
	case dialect.OpConstant:
		if f, ok := def.Attrs.Value.(ir.IRFunction); ok {
			return ir.GlobalName(f), true
		}
	}
	return ir.GlobalName{}, false
}

func (d *dispatcher) intrinsic(name ir.GlobalName, args []dialect.Value, want dialect.Type, src ir.ValueID, loc dialect.Loc) (dialect.Value, bool) {
	in, ok := lookupIntrinsic(name)
	if !ok || len(args) != 2 {
		return dialect.NoValue, false
	}
	x, y := d.value(args[0]), d.value(args[1])
	tx, ty := d.out.Type(x), d.out.Type(y)
	if tx.Kind != in.operandKind() || tx != ty {
		return dialect.NoValue, false
	}
	if (in.compare() && want != dialect.I1) || (!in.compare() && want != tx) {
		return dialect.NoValue, false
	}
	r := d.b.EmitFor(src, dialect.Op{
		Kind:     in.kind,
		Operands: []dialect.Value{x, y},
		Attrs:    dialect.Attrs{Predicate: in.predicate},
		Loc:      loc,
	})
	return r, true
}

// exact reports whether target was specialized on exactly the concrete
// host types of args, so no dispatch lookup is needed.
func (d *dispatcher) exact(target *ir.MethodInstance, args []dialect.Value) bool {
	sig := target.Spec.Signature
	if len(sig) != len(args) {
		return false
	}
	for i, a := range args {
		t := d.in.Type(a)
		if t.Kind != dialect.TypeJL || t.Host != sig[i] || !concrete(sig[i]) {
			return false
		}
	}
	return true
}

func (d *dispatcher) successors(op *dialect.Op) []dialect.Successor {
	out := make([]dialect.Successor, len(op.Succs))
	for i, s := range op.Succs {
		params := d.out.Blocks[s.Block].Args
		args := make([]dialect.Value, len(s.Args))
		for j, a := range s.Args {
			p := params[j]
			args[j] = d.coerce(d.value(a), d.out.Type(p), d.hosts[p], op.Loc)
		}
		out[i] = dialect.Successor{Block: s.Block, Args: args}
	}
	return out
}

// coerce converts v to want, boxing or unboxing across the native/boxed
// boundary. host is the host type of the native side when unboxing.
func (d *dispatcher) coerce(v dialect.Value, want dialect.Type, host ir.Type, loc dialect.Loc) dialect.Value {
	if v == dialect.NoValue {
		return v
	}
	have := d.out.Type(v)
	if have == want {
		return v
	}
	key := convKey{v: v, want: want}
	if c, ok := d.conv[key]; ok {
		return c
	}

	var r dialect.Value
	switch {
	case have.IsNative() && want == dialect.Box:
		from, ok := d.hosts[v]
		if !ok || ConvertType(from) != have {
			from = nativeHost(have)
		}
		r = d.runtimeCall(boxEntry(from), dialect.Box, v, loc)
	case have == dialect.Box && want.IsNative():
		if ConvertType(host) != want {
			host = nativeHost(want)
		}
		r = d.runtimeCall(unboxEntry(host), want, v, loc)
		d.hosts[r] = host
	case have.IsNative() && want.IsNative():
		boxed := d.coerce(v, dialect.Box, "", loc)
		r = d.coerce(boxed, want, host, loc)
	default:
		d.fail(fmt.Errorf("%s: cannot convert %s to %s", loc.Pos, have, want))
		return v
	}
	d.conv[key] = r
	return r
}

func (d *dispatcher) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *dispatcher) runtimeCall(entry string, t dialect.Type, v dialect.Value, loc dialect.Loc) dialect.Value {
	return d.b.Emit(dialect.Op{
		Kind:     dialect.OpStdCall,
		Operands: []dialect.Value{v},
		Attrs:    dialect.Attrs{Entry: entry, Type: t},
		Loc:      loc,
	})
}
