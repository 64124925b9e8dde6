package testutil

import (
	"fmt"

	"github.com/roach88/brutus/internal/host"
	"github.com/roach88/brutus/internal/ir"
)

// Body builds typed SSA bodies for tests. Statements are appended to the
// current block; value ids are assigned from 1 in emission order.
//
//	b := testutil.NewBody(im, "Main.sum", ir.TypeInt64, ir.TypeInt64)
//	x := b.Call(ir.TypeInt64, testutil.Func("Base.+"), b.Arg(1), b.Arg(2))
//	b.Return(x)
//	body := b.Build()
type Body struct {
	im    *host.Image
	body  *ir.Body
	cur   int
	next  ir.ValueID
	sites map[ir.ValueID]ir.Pos
}

// NewBody starts a body for method specialized on sig. Argument 0 is the
// function itself; arguments 1..n have the signature's types. The body
// returns Any until Returns is called.
func NewBody(im *host.Image, method string, sig ...ir.Type) *Body {
	g := ir.ParseGlobal(method)
	body := &ir.Body{
		Spec:   ir.NewSpecialization(g, sig...),
		Return: ir.TypeAny,
		Args:   []ir.ArgInfo{{Name: "#self#", Type: ir.Widen(ir.Type("typeof(" + g.Name + ")"))}},
		Blocks: []ir.Block{{}},
	}
	for i, t := range sig {
		body.Args = append(body.Args, ir.ArgInfo{Name: fmt.Sprintf("x%d", i+1), Type: ir.Widen(t)})
	}
	return &Body{im: im, body: body, next: 1, sites: make(map[ir.ValueID]ir.Pos)}
}

// Func returns an inline global operand naming a function singleton.
func Func(name string) ir.Operand {
	g := ir.ParseGlobal(name)
	return ir.GlobalOperand(g, ir.Widen(ir.Type("typeof("+g.Name+")")))
}

// Method returns a specialized call target.
func Method(name string, ret ir.Type, sig ...ir.Type) *ir.MethodInstance {
	return &ir.MethodInstance{Spec: ir.NewSpecialization(ir.ParseGlobal(name), sig...), Return: ret}
}

// Returns sets the declared return type.
func (b *Body) Returns(t ir.Type) *Body {
	b.body.Return = t
	return b
}

// Arg refers to argument i.
func (b *Body) Arg(i int) ir.Operand { return ir.Arg(i) }

// Block starts a new block and returns its index.
func (b *Body) Block() int {
	b.body.Blocks = append(b.body.Blocks, ir.Block{})
	b.cur = len(b.body.Blocks) - 1
	return b.cur
}

// SetBlock continues appending to block i.
func (b *Body) SetBlock(i int) { b.cur = i }

func (b *Body) push(st ir.Stmt) *ir.Stmt {
	blk := &b.body.Blocks[b.cur]
	blk.Stmts = append(blk.Stmts, st)
	if st.ID != 0 {
		b.sites[st.ID] = ir.Pos{Block: b.cur, Stmt: len(blk.Stmts) - 1}
	}
	return &blk.Stmts[len(blk.Stmts)-1]
}

func (b *Body) value(st ir.Stmt) ir.Operand {
	st.ID = b.next
	b.next++
	b.push(st)
	return ir.SSA(st.ID)
}

func (b *Body) stmt(v ir.Operand) *ir.Stmt {
	p, ok := b.sites[v.Value]
	if v.Kind != ir.OperandSSA || !ok {
		panic(fmt.Sprintf("testutil: %s is not a value of this body", v))
	}
	return &b.body.Blocks[p.Block].Stmts[p.Stmt]
}

// Call appends a dynamic call of callee.
func (b *Body) Call(t ir.Type, callee ir.Operand, args ...ir.Operand) ir.Operand {
	return b.value(ir.Stmt{
		Kind: ir.StmtExpr,
		Head: b.im.Symbol("call"),
		Args: append([]ir.Operand{callee}, args...),
		Type: ir.Widen(t),
	})
}

// Invoke appends a call of the specialized target mi.
func (b *Body) Invoke(t ir.Type, mi *ir.MethodInstance, callee ir.Operand, args ...ir.Operand) ir.Operand {
	return b.value(ir.Stmt{
		Kind: ir.StmtExpr,
		Head: b.im.Symbol("invoke"),
		Args: append([]ir.Operand{ir.MethodOperand(mi), callee}, args...),
		Type: ir.Widen(t),
	})
}

// GlobalRef appends a read of a module binding.
func (b *Body) GlobalRef(t ir.Type, name string) ir.Operand {
	return b.value(ir.Stmt{
		Kind: ir.StmtGlobalRef,
		Args: []ir.Operand{ir.GlobalOperand(ir.ParseGlobal(name), ir.Widen(ir.TypeAny))},
		Type: ir.Widen(t),
	})
}

// Literal appends a constant statement.
func (b *Body) Literal(v ir.IRValue) ir.Operand {
	return b.value(ir.Stmt{Kind: ir.StmtLiteral, Args: []ir.Operand{ir.Lit(v)}, Type: ir.Widen(ir.TypeOf(v))})
}

// Pi appends a type narrowing of x.
func (b *Body) Pi(t ir.Type, x ir.Operand) ir.Operand {
	return b.value(ir.Stmt{Kind: ir.StmtPi, Args: []ir.Operand{x}, Type: ir.Widen(t)})
}

// Phi appends a phi node. Edges may be added later with Edge.
func (b *Body) Phi(t ir.Type, edges ...ir.PhiEdge) ir.Operand {
	return b.value(ir.Stmt{Kind: ir.StmtPhi, Edges: edges, Type: ir.Widen(t)})
}

// Edge adds an incoming value from pred to phi.
func (b *Body) Edge(phi ir.Operand, pred int, v ir.Operand) {
	st := b.stmt(phi)
	st.Edges = append(st.Edges, ir.PhiEdge{Pred: pred, Value: v})
}

// Const attaches a constant lattice fact to the statement defining v.
func (b *Body) Const(v ir.Operand, c ir.IRValue) ir.Operand {
	st := b.stmt(v)
	st.Type = b.im.Const(st.Type.Type, c)
	return v
}

// EffectFree marks the statement defining v as side-effect free.
func (b *Body) EffectFree(v ir.Operand) ir.Operand {
	b.stmt(v).Flags |= ir.FlagEffectFree
	return v
}

// Line sets the source line of the statement defining v.
func (b *Body) Line(v ir.Operand, line int) ir.Operand {
	b.stmt(v).Line = line
	return v
}

// Goto ends the current block with a jump.
func (b *Body) Goto(target int) {
	b.push(ir.Stmt{Kind: ir.StmtGoto, Succs: []int{target}})
}

// GotoIfNot ends the current block with a branch to then when cond holds
// and to els otherwise.
func (b *Body) GotoIfNot(cond ir.Operand, then, els int) {
	b.push(ir.Stmt{Kind: ir.StmtGotoIfNot, Args: []ir.Operand{cond}, Succs: []int{then, els}})
}

// Return ends the current block with a return of v.
func (b *Body) Return(v ir.Operand) {
	b.push(ir.Stmt{Kind: ir.StmtReturn, Args: []ir.Operand{v}})
}

// Unreachable ends the current block.
func (b *Body) Unreachable() {
	b.push(ir.Stmt{Kind: ir.StmtUnreachable})
}

// Build returns the body. The builder must not be used afterwards.
func (b *Body) Build() *ir.Body {
	return b.body
}

// Define builds the body and defines it in the image.
func (b *Body) Define() *ir.Body {
	b.im.Define(b.body)
	return b.body
}
