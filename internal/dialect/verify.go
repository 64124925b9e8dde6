package dialect

import (
	"errors"
	"fmt"
)

// Verifier error codes.
const (
	ErrCodeUnknownOp      = "V201"
	ErrCodeTypeMismatch   = "V202"
	ErrCodeOperandCount   = "V203"
	ErrCodeTerminator     = "V204"
	ErrCodeSuccessor      = "V205"
	ErrCodeEdgeArgs       = "V206"
	ErrCodeUnreachable    = "V207"
	ErrCodeDominance      = "V208"
	ErrCodeIllegalOp      = "V209"
	ErrCodeUndefinedValue = "V210"
	ErrCodeRedefinedValue = "V211"
)

// VerifyError reports the first invariant violation found in a Function.
type VerifyError struct {
	Code    string
	Block   int
	Op      int // -1 when the error concerns the block itself
	Message string
}

func (e *VerifyError) Error() string {
	if e.Op < 0 {
		return fmt.Sprintf("%s: bb%d: %s", e.Code, e.Block, e.Message)
	}
	return fmt.Sprintf("%s: bb%d:%d: %s", e.Code, e.Block, e.Op, e.Message)
}

// IsVerifyError reports whether err is a *VerifyError with the given code.
// An empty code matches any verifier error.
func IsVerifyError(err error, code string) bool {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return code == "" || ve.Code == code
	}
	return false
}

// VerifyOptions configure Verify.
type VerifyOptions struct {
	// Registry, if set, requires every op's dialect to be registered.
	Registry *Registry

	// Dialect, if set, requires every op to belong to it.
	Dialect string
}

type defSite struct {
	block int
	index int // -1 for block arguments
}

// Verify checks the structural invariants of fn: op schemas and result
// types, terminator placement, successor and edge-argument shape,
// reachability of every block, and that every definition dominates its uses.
func Verify(fn *Function, opts VerifyOptions) error {
	v := &verifier{fn: fn, opts: opts}
	return v.run()
}

type verifier struct {
	fn   *Function
	opts VerifyOptions
	defs []defSite
}

func (v *verifier) errorf(code string, block, op int, format string, args ...any) error {
	return &VerifyError{Code: code, Block: block, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (v *verifier) run() error {
	fn := v.fn
	if len(fn.Blocks) == 0 {
		return v.errorf(ErrCodeTerminator, 0, -1, "function has no blocks")
	}
	if err := v.collectDefs(); err != nil {
		return err
	}
	for bi, blk := range fn.Blocks {
		if len(blk.Ops) == 0 {
			return v.errorf(ErrCodeTerminator, bi, -1, "block has no terminator")
		}
		for oi := range blk.Ops {
			if err := v.checkOp(bi, oi, &blk.Ops[oi], oi == len(blk.Ops)-1); err != nil {
				return err
			}
		}
	}

	dom := Dominators(len(fn.Blocks), fn.Successors)
	for bi := range fn.Blocks {
		if !dom.Reachable(bi) {
			return v.errorf(ErrCodeUnreachable, bi, -1, "block is unreachable from the entry")
		}
	}
	return v.checkDominance(dom)
}

func (v *verifier) collectDefs() error {
	fn := v.fn
	v.defs = make([]defSite, len(fn.Values))
	for i := range v.defs {
		v.defs[i] = defSite{block: -1}
	}
	define := func(val Value, site defSite) error {
		if val < 0 || int(val) >= len(v.defs) {
			return v.errorf(ErrCodeUndefinedValue, site.block, site.index, "value %s is not allocated", val)
		}
		if v.defs[val].block != -1 {
			return v.errorf(ErrCodeRedefinedValue, site.block, site.index, "value %s is defined twice", val)
		}
		v.defs[val] = site
		return nil
	}
	for bi, blk := range fn.Blocks {
		for _, a := range blk.Args {
			if err := define(a, defSite{block: bi, index: -1}); err != nil {
				return err
			}
		}
		for oi := range blk.Ops {
			if r := blk.Ops[oi].Result; r != NoValue {
				if err := define(r, defSite{block: bi, index: oi}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (v *verifier) defined(val Value) bool {
	return val >= 0 && int(val) < len(v.defs) && v.defs[val].block != -1
}

func (v *verifier) checkOp(bi, oi int, op *Op, last bool) error {
	fn := v.fn
	def := Def(op.Kind)
	if def == nil {
		return v.errorf(ErrCodeUnknownOp, bi, oi, "unknown op kind %d", op.Kind)
	}
	if v.opts.Registry != nil {
		if _, ok := v.opts.Registry.Lookup(op.Kind); !ok {
			return v.errorf(ErrCodeUnknownOp, bi, oi, "%s: dialect %s is not registered", def.Name, def.Dialect)
		}
	}
	if v.opts.Dialect != "" && def.Dialect != v.opts.Dialect {
		return v.errorf(ErrCodeIllegalOp, bi, oi, "%s is not legal in dialect %s", def.Name, v.opts.Dialect)
	}

	switch {
	case def.Operands >= 0 && len(op.Operands) != def.Operands:
		return v.errorf(ErrCodeOperandCount, bi, oi, "%s expects %d operands, got %d", def.Name, def.Operands, len(op.Operands))
	case def.Operands < 0 && len(op.Operands) < def.MinOperands:
		return v.errorf(ErrCodeOperandCount, bi, oi, "%s expects at least %d operands, got %d", def.Name, def.MinOperands, len(op.Operands))
	}
	operands := make([]Type, len(op.Operands))
	for i, val := range op.Operands {
		if !v.defined(val) {
			return v.errorf(ErrCodeUndefinedValue, bi, oi, "%s uses undefined value %s", def.Name, val)
		}
		operands[i] = fn.Type(val)
	}

	if def.HasResult != (op.Result != NoValue) {
		return v.errorf(ErrCodeTypeMismatch, bi, oi, "%s result presence does not match its definition", def.Name)
	}
	if def.HasResult {
		t, err := def.InferType(operands, &op.Attrs)
		if err != nil {
			return v.errorf(ErrCodeTypeMismatch, bi, oi, "%s: %v", def.Name, err)
		}
		if t != fn.Type(op.Result) {
			return v.errorf(ErrCodeTypeMismatch, bi, oi, "%s result %s has type %s, inferred %s", def.Name, op.Result, fn.Type(op.Result), t)
		}
	}

	if def.Terminator != last {
		if last {
			return v.errorf(ErrCodeTerminator, bi, oi, "block ends with non-terminator %s", def.Name)
		}
		return v.errorf(ErrCodeTerminator, bi, oi, "terminator %s is not the last op", def.Name)
	}
	if !def.Terminator {
		return nil
	}
	if err := v.checkTerminatorTypes(bi, oi, op, operands); err != nil {
		return err
	}
	return v.checkSuccessors(bi, oi, op, def)
}

func (v *verifier) checkTerminatorTypes(bi, oi int, op *Op, operands []Type) error {
	switch op.Kind {
	case OpGotoIfNot:
		if operands[0].Kind != TypeJL {
			return v.errorf(ErrCodeTypeMismatch, bi, oi, "condition has type %s, want a host type", operands[0])
		}
	case OpCondBr:
		if operands[0] != I1 {
			return v.errorf(ErrCodeTypeMismatch, bi, oi, "condition has type %s, want i1", operands[0])
		}
	case OpReturn:
		if operands[0].Kind != TypeJL {
			return v.errorf(ErrCodeTypeMismatch, bi, oi, "returned value has type %s, want a host type", operands[0])
		}
	case OpStdReturn:
		if operands[0] != v.fn.Result {
			return v.errorf(ErrCodeTypeMismatch, bi, oi, "returned value has type %s, want %s", operands[0], v.fn.Result)
		}
	}
	return nil
}

func (v *verifier) checkSuccessors(bi, oi int, op *Op, def *OpDef) error {
	fn := v.fn
	if len(op.Succs) != def.Succs {
		return v.errorf(ErrCodeSuccessor, bi, oi, "%s expects %d successors, got %d", def.Name, def.Succs, len(op.Succs))
	}
	for _, s := range op.Succs {
		if s.Block < 0 || s.Block >= len(fn.Blocks) {
			return v.errorf(ErrCodeSuccessor, bi, oi, "successor ^bb%d does not exist", s.Block)
		}
		if s.Block == 0 {
			return v.errorf(ErrCodeSuccessor, bi, oi, "the entry block cannot be a successor")
		}
		params := fn.Blocks[s.Block].Args
		if len(s.Args) != len(params) {
			return v.errorf(ErrCodeEdgeArgs, bi, oi, "edge to ^bb%d passes %d values, block takes %d", s.Block, len(s.Args), len(params))
		}
		for i, a := range s.Args {
			if !v.defined(a) {
				return v.errorf(ErrCodeUndefinedValue, bi, oi, "edge to ^bb%d uses undefined value %s", s.Block, a)
			}
			if !edgeCompatible(def.Dialect, fn.Type(a), fn.Type(params[i])) {
				return v.errorf(ErrCodeEdgeArgs, bi, oi, "edge to ^bb%d passes %s for argument of type %s", s.Block, fn.Type(a), fn.Type(params[i]))
			}
		}
	}
	return nil
}

// edgeCompatible reports whether a value of type from may flow into a
// block argument of type to. jlir values of any host type may merge; std
// is strictly typed.
func edgeCompatible(dialect string, from, to Type) bool {
	if dialect == JLIRName {
		return from.Kind == TypeJL && to.Kind == TypeJL
	}
	return from == to
}

func (v *verifier) checkDominance(dom *DomTree) error {
	for bi, blk := range v.fn.Blocks {
		for oi := range blk.Ops {
			op := &blk.Ops[oi]
			for _, val := range op.Operands {
				if !v.dominates(dom, val, bi, oi) {
					return v.errorf(ErrCodeDominance, bi, oi, "definition of %s does not dominate its use", val)
				}
			}
			for _, s := range op.Succs {
				for _, val := range s.Args {
					if !v.dominates(dom, val, bi, oi) {
						return v.errorf(ErrCodeDominance, bi, oi, "definition of %s does not dominate the edge to ^bb%d", val, s.Block)
					}
				}
			}
		}
	}
	return nil
}

func (v *verifier) dominates(dom *DomTree, val Value, block, index int) bool {
	site := v.defs[val]
	if site.block == block {
		return site.index < index
	}
	return dom.Dominates(site.block, block)
}
