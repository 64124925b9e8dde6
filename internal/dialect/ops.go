package dialect

import (
	"errors"
	"fmt"

	"github.com/roach88/brutus/internal/ir"
)

// Dialect names.
const (
	JLIRName = "jlir"
	StdName  = "std"
)

// Kind identifies an operation. The set is closed.
type Kind uint8

const (
	OpInvalid Kind = iota

	// jlir
	OpGlobalRef
	OpCall
	OpInvoke
	OpConstant
	OpUndef
	OpPi
	OpGoto
	OpGotoIfNot
	OpReturn
	OpUnreachable

	// std
	OpStdConstant
	OpStdCall
	OpAddI
	OpSubI
	OpMulI
	OpAndI
	OpOrI
	OpXorI
	OpCmpI
	OpAddF
	OpSubF
	OpMulF
	OpDivF
	OpCmpF
	OpStdUndef
	OpBr
	OpCondBr
	OpStdReturn
	OpStdUnreachable

	numKinds
)

// Value names an SSA value of a Function. Values are numbered densely from 0.
type Value int

// NoValue is the Result of operations that produce nothing.
const NoValue Value = -1

func (v Value) String() string {
	if v == NoValue {
		return "<novalue>"
	}
	return fmt.Sprintf("%%%d", int(v))
}

// Attrs is the static metadata of an operation. Which fields are meaningful
// depends on the Kind.
type Attrs struct {
	// Type is the declared result type of ops whose type is not derived
	// from their operands (global_ref, call, invoke, constant, undef, pi).
	Type Type

	// Global is the binding read by jlir.global_ref.
	Global ir.GlobalName

	// Value is the embedded constant of jlir.constant and std.constant.
	Value ir.IRValue

	// Head is the resolved dispatch symbol of jlir.call and jlir.invoke.
	Head ir.Handle

	// Target is the specialized call target of jlir.invoke, and of
	// std.call @jl_invoke after dispatch resolution.
	Target *ir.MethodInstance

	// Entry is the runtime entry point named by std.call.
	Entry string

	// Predicate is the comparison of std.cmpi and std.cmpf.
	Predicate string
}

// Successor is one outgoing edge of a terminator with the values passed to
// the target block's arguments.
type Successor struct {
	Block int
	Args  []Value
}

// Loc records the input instruction an operation was translated from.
type Loc struct {
	Pos   ir.Pos
	Line  int
	Known bool
}

// At returns the location of the input statement at pos.
func At(pos ir.Pos, line int) Loc {
	return Loc{Pos: pos, Line: line, Known: true}
}

// Op is one operation: a tagged variant of Kind plus typed attributes.
type Op struct {
	Kind     Kind
	Result   Value
	Operands []Value
	Attrs    Attrs
	Succs    []Successor
	Loc      Loc
}

// Callee returns the callee operand of jlir.call and jlir.invoke.
func (op *Op) Callee() Value {
	return op.Operands[0]
}

// CallArgs returns the call arguments of jlir.call, jlir.invoke and std.call.
func (op *Op) CallArgs() []Value {
	if op.Kind == OpCall || op.Kind == OpInvoke {
		return op.Operands[1:]
	}
	return op.Operands
}

// InferFunc computes a result type from operand types and attributes.
// It must be pure.
type InferFunc func(operands []Type, a *Attrs) (Type, error)

// OpDef is the static schema of one operation kind.
type OpDef struct {
	Kind       Kind
	Name       string
	Dialect    string
	Effectful  bool
	Terminator bool
	HasResult  bool

	// Operands is the exact operand count; -1 means at least MinOperands.
	Operands    int
	MinOperands int

	// Succs is the exact successor count of a terminator.
	Succs int

	// InferType is nil for ops without a result.
	InferType InferFunc
}

// Pure reports whether the op may be reordered or removed when unused.
func (d *OpDef) Pure() bool {
	return !d.Effectful && !d.Terminator
}

// Comparison predicates.
var (
	IntPredicates   = []string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}
	FloatPredicates = []string{"oeq", "one", "olt", "ole", "ogt", "oge"}
)

var errNoType = errors.New("missing declared result type")

func declared(_ []Type, a *Attrs) (Type, error) {
	if !a.Type.IsValid() {
		return Type{}, errNoType
	}
	return a.Type, nil
}

func globalRefType(ops []Type, a *Attrs) (Type, error) {
	if a.Global.Name == "" {
		return Type{}, errors.New("missing global attribute")
	}
	return declared(ops, a)
}

func constantType(ops []Type, a *Attrs) (Type, error) {
	if a.Value == nil {
		return Type{}, errors.New("missing value attribute")
	}
	return declared(ops, a)
}

func invokeType(ops []Type, a *Attrs) (Type, error) {
	if a.Target == nil {
		return Type{}, errors.New("missing target attribute")
	}
	return declared(ops, a)
}

func callEntryType(ops []Type, a *Attrs) (Type, error) {
	if a.Entry == "" {
		return Type{}, errors.New("missing entry attribute")
	}
	return declared(ops, a)
}

func sameOperands(ops []Type, kind TypeKind) (Type, error) {
	if ops[0].Kind != kind || ops[0] != ops[1] {
		return Type{}, fmt.Errorf("operand types %s and %s do not match", ops[0], ops[1])
	}
	return ops[0], nil
}

func intBinary(ops []Type, _ *Attrs) (Type, error) {
	return sameOperands(ops, TypeInt)
}

func floatBinary(ops []Type, _ *Attrs) (Type, error) {
	return sameOperands(ops, TypeFloat)
}

func compareWith(kind TypeKind, predicates []string) InferFunc {
	return func(ops []Type, a *Attrs) (Type, error) {
		if _, err := sameOperands(ops, kind); err != nil {
			return Type{}, err
		}
		for _, p := range predicates {
			if p == a.Predicate {
				return I1, nil
			}
		}
		return Type{}, fmt.Errorf("unknown predicate %q", a.Predicate)
	}
}

var defs = [numKinds]OpDef{
	OpGlobalRef:   {Name: "jlir.global_ref", Dialect: JLIRName, HasResult: true, InferType: globalRefType},
	OpCall:        {Name: "jlir.call", Dialect: JLIRName, Effectful: true, HasResult: true, Operands: -1, MinOperands: 1, InferType: declared},
	OpInvoke:      {Name: "jlir.invoke", Dialect: JLIRName, Effectful: true, HasResult: true, Operands: -1, MinOperands: 1, InferType: invokeType},
	OpConstant:    {Name: "jlir.constant", Dialect: JLIRName, HasResult: true, InferType: constantType},
	OpUndef:       {Name: "jlir.undef", Dialect: JLIRName, HasResult: true, InferType: declared},
	OpPi:          {Name: "jlir.pi", Dialect: JLIRName, HasResult: true, Operands: 1, InferType: declared},
	OpGoto:        {Name: "jlir.goto", Dialect: JLIRName, Terminator: true, Succs: 1},
	OpGotoIfNot:   {Name: "jlir.gotoifnot", Dialect: JLIRName, Terminator: true, Operands: 1, Succs: 2},
	OpReturn:      {Name: "jlir.return", Dialect: JLIRName, Terminator: true, Operands: 1},
	OpUnreachable: {Name: "jlir.unreachable", Dialect: JLIRName, Terminator: true},

	OpStdConstant:    {Name: "std.constant", Dialect: StdName, HasResult: true, InferType: constantType},
	OpStdCall:        {Name: "std.call", Dialect: StdName, Effectful: true, HasResult: true, Operands: -1, InferType: callEntryType},
	OpAddI:           {Name: "std.addi", Dialect: StdName, HasResult: true, Operands: 2, InferType: intBinary},
	OpSubI:           {Name: "std.subi", Dialect: StdName, HasResult: true, Operands: 2, InferType: intBinary},
	OpMulI:           {Name: "std.muli", Dialect: StdName, HasResult: true, Operands: 2, InferType: intBinary},
	OpAndI:           {Name: "std.andi", Dialect: StdName, HasResult: true, Operands: 2, InferType: intBinary},
	OpOrI:            {Name: "std.ori", Dialect: StdName, HasResult: true, Operands: 2, InferType: intBinary},
	OpXorI:           {Name: "std.xori", Dialect: StdName, HasResult: true, Operands: 2, InferType: intBinary},
	OpCmpI:           {Name: "std.cmpi", Dialect: StdName, HasResult: true, Operands: 2, InferType: compareWith(TypeInt, IntPredicates)},
	OpAddF:           {Name: "std.addf", Dialect: StdName, HasResult: true, Operands: 2, InferType: floatBinary},
	OpSubF:           {Name: "std.subf", Dialect: StdName, HasResult: true, Operands: 2, InferType: floatBinary},
	OpMulF:           {Name: "std.mulf", Dialect: StdName, HasResult: true, Operands: 2, InferType: floatBinary},
	OpDivF:           {Name: "std.divf", Dialect: StdName, HasResult: true, Operands: 2, InferType: floatBinary},
	OpCmpF:           {Name: "std.cmpf", Dialect: StdName, HasResult: true, Operands: 2, InferType: compareWith(TypeFloat, FloatPredicates)},
	OpStdUndef:       {Name: "std.undef", Dialect: StdName, HasResult: true, InferType: declared},
	OpBr:             {Name: "std.br", Dialect: StdName, Terminator: true, Succs: 1},
	OpCondBr:         {Name: "std.cond_br", Dialect: StdName, Terminator: true, Operands: 1, Succs: 2},
	OpStdReturn:      {Name: "std.return", Dialect: StdName, Terminator: true, Operands: 1},
	OpStdUnreachable: {Name: "std.unreachable", Dialect: StdName, Terminator: true},
}

func init() {
	for k := range defs {
		defs[k].Kind = Kind(k)
	}
}

// Def returns the static schema of k, or nil if k is not an operation.
func Def(k Kind) *OpDef {
	if k == OpInvalid || k >= numKinds {
		return nil
	}
	return &defs[k]
}

func (k Kind) String() string {
	if d := Def(k); d != nil {
		return d.Name
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// Dialect is a named, versioned set of operation kinds.
type Dialect struct {
	Name    string
	Version string
	Kinds   []Kind
}

func kindsOf(name string) []Kind {
	var out []Kind
	for k := OpInvalid + 1; k < numKinds; k++ {
		if defs[k].Dialect == name {
			out = append(out, k)
		}
	}
	return out
}

// JLIR returns the host-semantics dialect.
func JLIR() *Dialect {
	return &Dialect{Name: JLIRName, Version: "1", Kinds: kindsOf(JLIRName)}
}

// Std returns the target-independent dialect.
func Std() *Dialect {
	return &Dialect{Name: StdName, Version: "1", Kinds: kindsOf(StdName)}
}
