package ir

import (
	"fmt"
	"strings"
)

// Type is a host type name as printed by the host runtime (Int64, Any, typeof(+)).
type Type string

// Well-known host types.
const (
	TypeAny     Type = "Any"
	TypeBool    Type = "Bool"
	TypeInt8    Type = "Int8"
	TypeInt16   Type = "Int16"
	TypeInt32   Type = "Int32"
	TypeInt64   Type = "Int64"
	TypeUInt8   Type = "UInt8"
	TypeUInt16  Type = "UInt16"
	TypeUInt32  Type = "UInt32"
	TypeUInt64  Type = "UInt64"
	TypeFloat32 Type = "Float32"
	TypeFloat64 Type = "Float64"
	TypeNothing Type = "Nothing"
	TypeString  Type = "String"
	TypeSymbol  Type = "Symbol"
	TypeUnion   Type = "Union{}" // bottom: no value is ever produced
)

// Specialization identifies a method compiled for one concrete argument-type
// signature. It is the unit of compilation and is immutable once created;
// copy Signature before handing it to code that might retain it.
type Specialization struct {
	Method    GlobalName `json:"method"`
	Signature []Type     `json:"signature"`
}

// NewSpecialization builds a specialization, copying the signature.
func NewSpecialization(method GlobalName, signature ...Type) Specialization {
	sig := make([]Type, len(signature))
	copy(sig, signature)
	return Specialization{Method: method, Signature: sig}
}

// SpecKey is the comparable form of a Specialization, used as a map key.
type SpecKey string

// Key returns the cache key, e.g. "Main.sum(Int64,Int64)".
func (s Specialization) Key() SpecKey {
	return SpecKey(s.String())
}

func (s Specialization) String() string {
	parts := make([]string, len(s.Signature))
	for i, t := range s.Signature {
		parts[i] = string(t)
	}
	return fmt.Sprintf("%s(%s)", s.Method, strings.Join(parts, ","))
}

// MethodInstance is a specialized call target chosen by the host optimizer.
type MethodInstance struct {
	Spec   Specialization `json:"spec"`
	Return Type           `json:"return"`
}

func (mi *MethodInstance) String() string {
	if mi == nil {
		return "<nil>"
	}
	return mi.Spec.String()
}

// Lattice is the optimizer's type-lattice element for a value.
//
// A Lattice Constant Fact is present iff Tag is the runtime's constant
// lattice type (see interop.Session.Fact) and Const is set. Any other tag
// is an extended lattice element brutus does not understand and treats as
// the widened Type.
type Lattice struct {
	Type  Type
	Tag   Handle
	Const IRValue
}

// Widen returns the plain-type lattice element for t.
func Widen(t Type) Lattice {
	return Lattice{Type: t}
}

// ValueID numbers an SSA value within a Body (%1, %2, ...). Zero means no value.
type ValueID int

func (id ValueID) String() string {
	return fmt.Sprintf("%%%d", int(id))
}

// StmtKind identifies the kind of a typed SSA statement.
type StmtKind uint8

const (
	StmtInvalid StmtKind = iota
	// StmtExpr is a generic expression: Head selects its semantics (:call, :invoke, ...).
	StmtExpr
	// StmtGlobalRef loads a module binding.
	StmtGlobalRef
	// StmtLiteral is a quoted constant.
	StmtLiteral
	// StmtPi narrows the type of its operand.
	StmtPi
	// StmtPhi merges values from predecessor blocks. Only valid at block start.
	StmtPhi
	// StmtGoto jumps to Succs[0].
	StmtGoto
	// StmtGotoIfNot branches on Args[0]: Succs[0] when true, Succs[1] when false.
	StmtGotoIfNot
	// StmtReturn returns Args[0].
	StmtReturn
	// StmtUnreachable marks a point control never reaches.
	StmtUnreachable
)

var stmtKindNames = map[StmtKind]string{
	StmtExpr:        "expr",
	StmtGlobalRef:   "globalref",
	StmtLiteral:     "literal",
	StmtPi:          "pi",
	StmtPhi:         "phi",
	StmtGoto:        "goto",
	StmtGotoIfNot:   "gotoifnot",
	StmtReturn:      "return",
	StmtUnreachable: "unreachable",
}

func (k StmtKind) String() string {
	if name, ok := stmtKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("stmt(%d)", uint8(k))
}

// ParseStmtKind is the inverse of StmtKind.String.
func ParseStmtKind(s string) (StmtKind, bool) {
	for k, name := range stmtKindNames {
		if name == s {
			return k, true
		}
	}
	return StmtInvalid, false
}

// IsTerminator reports whether the statement kind ends a block.
func (k StmtKind) IsTerminator() bool {
	switch k {
	case StmtGoto, StmtGotoIfNot, StmtReturn, StmtUnreachable:
		return true
	}
	return false
}

// StmtFlags carries per-statement facts from the host optimizer.
type StmtFlags uint8

const (
	// FlagEffectFree marks a statement the optimizer proved has no side effects.
	FlagEffectFree StmtFlags = 1 << iota
	// FlagInbounds marks a statement executed with bounds checks elided.
	FlagInbounds
)

// OperandKind identifies how an operand refers to its value.
type OperandKind uint8

const (
	OperandInvalid OperandKind = iota
	// OperandSSA refers to the result of a statement (Value).
	OperandSSA
	// OperandArg refers to a method argument (Index).
	OperandArg
	// OperandLiteral embeds a constant (Literal).
	OperandLiteral
	// OperandGlobal names a module binding inline (Global); Type may carry a fact.
	OperandGlobal
	// OperandMethod carries a MethodInstance; only valid as the first :invoke operand.
	OperandMethod
)

// Operand is one argument of a statement.
type Operand struct {
	Kind    OperandKind
	Value   ValueID
	Index   int
	Literal IRValue
	Global  GlobalName
	Method  *MethodInstance
	Type    Lattice // lattice of inline globals/literals, as computed by the host
}

// SSA refers to the value defined by statement id.
func SSA(id ValueID) Operand { return Operand{Kind: OperandSSA, Value: id} }

// Arg refers to method argument i (0-based; argument 0 is the function itself).
func Arg(i int) Operand { return Operand{Kind: OperandArg, Index: i} }

// Lit embeds a constant.
func Lit(v IRValue) Operand {
	return Operand{Kind: OperandLiteral, Literal: v, Type: Widen(TypeOf(v))}
}

// GlobalOperand names a module binding whose lattice element is lat.
func GlobalOperand(g GlobalName, lat Lattice) Operand {
	return Operand{Kind: OperandGlobal, Global: g, Type: lat}
}

// MethodOperand wraps a specialized call target.
func MethodOperand(mi *MethodInstance) Operand {
	return Operand{Kind: OperandMethod, Method: mi}
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandSSA:
		return o.Value.String()
	case OperandArg:
		return fmt.Sprintf("_%d", o.Index)
	case OperandLiteral:
		return FormatValue(o.Literal)
	case OperandGlobal:
		return o.Global.String()
	case OperandMethod:
		return "MethodInstance(" + o.Method.String() + ")"
	default:
		return "<invalid>"
	}
}

// PhiEdge is one incoming value of a phi node.
type PhiEdge struct {
	Pred  int // predecessor block index
	Value Operand
}

// Stmt is one typed SSA instruction.
type Stmt struct {
	ID    ValueID // zero for statements without a result
	Kind  StmtKind
	Head  Handle // StmtExpr only
	Args  []Operand
	Edges []PhiEdge // StmtPhi only
	Succs []int     // terminators only
	Type  Lattice
	Flags StmtFlags
	Line  int
}

// EffectFree reports whether the host proved the statement side-effect free.
func (s *Stmt) EffectFree() bool {
	return s.Flags&FlagEffectFree != 0
}

// Block is a basic block of statements. The last statement is a terminator,
// or the block falls through to the next block.
type Block struct {
	Stmts []Stmt
}

// Terminator returns the block's terminator, or nil for a fall-through block.
func (b *Block) Terminator() *Stmt {
	if len(b.Stmts) == 0 {
		return nil
	}
	last := &b.Stmts[len(b.Stmts)-1]
	if !last.Kind.IsTerminator() {
		return nil
	}
	return last
}

// ArgInfo describes a method argument.
type ArgInfo struct {
	Name string
	Type Lattice
}

// Body is the typed SSA IR of one specialization, as supplied by the host.
// It is read-only input.
type Body struct {
	Spec   Specialization
	Args   []ArgInfo
	Return Type
	Blocks []Block
}

// Successors returns the successor block indices of block i in edge order.
// Fall-through blocks have the single successor i+1 (if any).
func (b *Body) Successors(i int) []int {
	term := b.Blocks[i].Terminator()
	if term == nil {
		if i+1 < len(b.Blocks) {
			return []int{i + 1}
		}
		return nil
	}
	return term.Succs
}

// NumValues counts the statements that define an SSA value.
func (b *Body) NumValues() int {
	n := 0
	for _, blk := range b.Blocks {
		for _, st := range blk.Stmts {
			if st.ID != 0 {
				n++
			}
		}
	}
	return n
}

// Pos identifies an input instruction: block index and statement index.
type Pos struct {
	Block int `json:"block"`
	Stmt  int `json:"stmt"`
}

func (p Pos) String() string {
	return fmt.Sprintf("bb%d:%d", p.Block, p.Stmt)
}
