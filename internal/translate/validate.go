package translate

import (
	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/interop"
	"github.com/roach88/brutus/internal/ir"
)

type site struct {
	block, stmt int
	phi         bool
}

// Validate checks that body is well formed typed SSA that Translate
// understands. It returns all errors found (does not fail fast), in
// block and statement order.
func Validate(s *interop.Session, body *ir.Body) []*Error {
	v := &validator{s: s, body: body, defs: make(map[ir.ValueID]site)}
	return v.run()
}

type validator struct {
	s     *interop.Session
	body  *ir.Body
	defs  map[ir.ValueID]site
	preds [][]int
	errs  []*Error
}

func (v *validator) add(pos ir.Pos, code, format string, args ...any) {
	v.errs = append(v.errs, errorf(pos, code, format, args...))
}

func (v *validator) run() []*Error {
	body := v.body
	if len(body.Blocks) == 0 {
		v.add(ir.Pos{}, ErrMalformedBody, "body has no blocks")
		return v.errs
	}

	for bi, blk := range body.Blocks {
		for si, st := range blk.Stmts {
			if st.ID == 0 {
				continue
			}
			pos := ir.Pos{Block: bi, Stmt: si}
			if st.ID < 0 {
				v.add(pos, ErrMalformedBody, "invalid value id %d", st.ID)
				continue
			}
			if st.Kind.IsTerminator() {
				v.add(pos, ErrMalformedBody, "%s cannot define value %s", st.Kind, st.ID)
				continue
			}
			if _, dup := v.defs[st.ID]; dup {
				v.add(pos, ErrMalformedBody, "value %s is defined twice", st.ID)
				continue
			}
			v.defs[st.ID] = site{block: bi, stmt: si, phi: st.Kind == ir.StmtPhi}
		}
	}

	v.preds = make([][]int, len(body.Blocks))
	for bi := range body.Blocks {
		v.checkControl(bi)
		for _, s := range body.Successors(bi) {
			if s > 0 && s < len(body.Blocks) {
				v.preds[s] = append(v.preds[s], bi)
			}
		}
	}
	for bi := range body.Blocks {
		v.checkStmts(bi)
	}
	if len(v.errs) > 0 {
		return v.errs
	}

	dom := dialect.Dominators(len(body.Blocks), body.Successors)
	for bi := range body.Blocks {
		if !dom.Reachable(bi) {
			v.add(ir.Pos{Block: bi}, ErrUnreachableBlock, "block %d is unreachable from the entry", bi)
		}
	}
	if len(v.errs) > 0 {
		return v.errs
	}
	v.checkDominance(dom)
	return v.errs
}

func (v *validator) checkControl(bi int) {
	blk := &v.body.Blocks[bi]
	n := len(v.body.Blocks)
	for si, st := range blk.Stmts {
		if st.Kind.IsTerminator() && si != len(blk.Stmts)-1 {
			v.add(ir.Pos{Block: bi, Stmt: si}, ErrMalformedBranch, "%s is not the last statement of its block", st.Kind)
		}
	}

	term := blk.Terminator()
	if term == nil {
		if bi == n-1 {
			v.add(ir.Pos{Block: bi, Stmt: len(blk.Stmts)}, ErrMalformedBranch, "last block falls off the end of the body")
		}
		return
	}
	pos := ir.Pos{Block: bi, Stmt: len(blk.Stmts) - 1}
	want := map[ir.StmtKind]int{ir.StmtGoto: 1, ir.StmtGotoIfNot: 2}[term.Kind]
	if len(term.Succs) != want {
		v.add(pos, ErrMalformedBranch, "%s has %d successors, want %d", term.Kind, len(term.Succs), want)
		return
	}
	for _, s := range term.Succs {
		switch {
		case s < 0 || s >= n:
			v.add(pos, ErrMalformedBranch, "successor block %d does not exist", s)
		case s == 0:
			v.add(pos, ErrMalformedBranch, "the entry block cannot be a branch target")
		}
	}
}

func (v *validator) checkStmts(bi int) {
	blk := &v.body.Blocks[bi]
	prologue := true
	for si := range blk.Stmts {
		st := &blk.Stmts[si]
		pos := ir.Pos{Block: bi, Stmt: si}
		if st.Kind != ir.StmtPhi {
			prologue = false
		}

		switch st.Kind {
		case ir.StmtPhi:
			v.checkPhi(pos, st, prologue)
		case ir.StmtExpr:
			v.checkExpr(pos, st)
		case ir.StmtGlobalRef:
			if v.arity(pos, st, 1) && st.Args[0].Kind != ir.OperandGlobal {
				v.add(pos, ErrMalformedOperands, "globalref operand must be a global, got %s", st.Args[0])
			}
		case ir.StmtLiteral:
			if v.arity(pos, st, 1) && st.Args[0].Kind != ir.OperandLiteral {
				v.add(pos, ErrMalformedOperands, "literal operand must be a constant, got %s", st.Args[0])
			}
		case ir.StmtPi, ir.StmtGotoIfNot, ir.StmtReturn:
			v.arity(pos, st, 1)
		case ir.StmtGoto, ir.StmtUnreachable:
			v.arity(pos, st, 0)
		default:
			v.add(pos, ErrUnknownStmt, "unrecognized statement kind %s", st.Kind)
			continue
		}

		for i, o := range st.Args {
			if o.Kind == ir.OperandMethod && !(st.Kind == ir.StmtExpr && st.Head == v.s.InvokeSym() && i == 0) {
				v.add(pos, ErrMalformedInvoke, "method instance operand outside an invoke head")
				continue
			}
			v.checkOperand(pos, o)
		}
	}
}

func (v *validator) arity(pos ir.Pos, st *ir.Stmt, n int) bool {
	if len(st.Args) != n {
		v.add(pos, ErrMalformedOperands, "%s takes %d operands, got %d", st.Kind, n, len(st.Args))
		return false
	}
	return true
}

func (v *validator) checkPhi(pos ir.Pos, st *ir.Stmt, prologue bool) {
	switch {
	case pos.Block == 0:
		v.add(pos, ErrMalformedPhi, "phi in the entry block")
		return
	case !prologue:
		v.add(pos, ErrMalformedPhi, "phi after a non-phi statement")
		return
	case st.ID == 0:
		v.add(pos, ErrMalformedPhi, "phi defines no value")
		return
	case len(st.Args) != 0:
		v.add(pos, ErrMalformedPhi, "phi values must be given as edges")
		return
	}
	seen := make(map[int]bool, len(st.Edges))
	for _, e := range st.Edges {
		if seen[e.Pred] {
			v.add(pos, ErrMalformedPhi, "duplicate edge from block %d", e.Pred)
			continue
		}
		seen[e.Pred] = true
		if !contains(v.preds[pos.Block], e.Pred) {
			v.add(pos, ErrMalformedPhi, "block %d is not a predecessor", e.Pred)
			continue
		}
		if e.Value.Kind == ir.OperandMethod {
			v.add(pos, ErrMalformedInvoke, "method instance operand outside an invoke head")
			continue
		}
		v.checkOperand(pos, e.Value)
	}
}

func (v *validator) checkExpr(pos ir.Pos, st *ir.Stmt) {
	switch st.Head {
	case v.s.CallSym():
		if len(st.Args) < 1 {
			v.add(pos, ErrMalformedOperands, "call has no callee")
		}
	case v.s.InvokeSym():
		if len(st.Args) < 2 {
			v.add(pos, ErrMalformedInvoke, "invoke needs a method instance and a callee")
			return
		}
		if st.Args[0].Kind != ir.OperandMethod || st.Args[0].Method == nil {
			v.add(pos, ErrMalformedInvoke, "invoke head operand is %s, want a method instance", st.Args[0])
		}
	default:
		v.add(pos, ErrUnknownHead, "unrecognized expression head %s", st.Head)
	}
}

func (v *validator) checkOperand(pos ir.Pos, o ir.Operand) {
	switch o.Kind {
	case ir.OperandSSA:
		if _, ok := v.defs[o.Value]; !ok {
			v.add(pos, ErrUndefinedValue, "use of undefined value %s", o.Value)
		}
	case ir.OperandArg:
		if o.Index < 0 || o.Index >= len(v.body.Args) {
			v.add(pos, ErrUndefinedValue, "argument _%d does not exist", o.Index)
		}
	case ir.OperandLiteral:
		if o.Literal == nil {
			v.add(pos, ErrMalformedOperands, "literal operand without a value")
		}
	case ir.OperandGlobal:
		if o.Global.Name == "" {
			v.add(pos, ErrMalformedOperands, "global operand without a name")
		}
	case ir.OperandMethod:
		// Checked by the caller.
	default:
		v.add(pos, ErrMalformedOperands, "invalid operand")
	}
}

// checkDominance requires every SSA use to be dominated by its definition.
// A phi edge value is used at the end of its predecessor block.
func (v *validator) checkDominance(dom *dialect.DomTree) {
	dominated := func(id ir.ValueID, block, stmt int) bool {
		d := v.defs[id]
		if d.block == block {
			return d.stmt < stmt
		}
		return dom.Dominates(d.block, block)
	}
	for bi, blk := range v.body.Blocks {
		for si := range blk.Stmts {
			st := &blk.Stmts[si]
			pos := ir.Pos{Block: bi, Stmt: si}
			for _, o := range st.Args {
				if o.Kind == ir.OperandSSA && !dominated(o.Value, bi, si) {
					v.add(pos, ErrNotDominated, "definition of %s does not dominate its use", o.Value)
				}
			}
			for _, e := range st.Edges {
				if e.Value.Kind != ir.OperandSSA {
					continue
				}
				end := len(v.body.Blocks[e.Pred].Stmts)
				if !dominated(e.Value.Value, e.Pred, end) {
					v.add(pos, ErrNotDominated, "definition of %s does not dominate the edge from block %d", e.Value.Value, e.Pred)
				}
			}
		}
	}
}

func contains(xs []int, x int) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}
