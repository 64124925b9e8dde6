package host

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/brutus/internal/ir"
)

// Fixtures describe typed SSA bodies in CUE:
//
//	body: "Main.sum": {
//		signature: ["Int64", "Int64"]
//		return:    "Int64"
//		args: [{name: "#self#"}, {name: "x", type: "Int64"}, {name: "y", type: "Int64"}]
//		blocks: [[
//			{id: 1, kind: "expr", head: "call", type: "Int64",
//			 args: [{global: "Base.+", type: "typeof(+)"}, {arg: 1}, {arg: 2}]},
//			{kind: "return", args: [{ssa: 1}]},
//		]]
//	}
//
// The label is the method name unless a method field overrides it. A
// const field attaches a constant lattice fact. Constant values are CUE
// scalars, lists and structs; {sym: "x"}, {fn: "Base.+"} and
// {nothing: true} spell symbols, function singletons and nothing.

// LoadError reports an invalid fixture.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type fixtureBody struct {
	Method    string          `json:"method"`
	Signature []string        `json:"signature"`
	Return    string          `json:"return"`
	Args      []fixtureArg    `json:"args"`
	Blocks    [][]fixtureStmt `json:"blocks"`
}

type fixtureArg struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Const any    `json:"const"`
}

type fixtureStmt struct {
	ID         int              `json:"id"`
	Kind       string           `json:"kind"`
	Head       string           `json:"head"`
	Args       []fixtureOperand `json:"args"`
	Edges      []fixtureEdge    `json:"edges"`
	Succs      []int            `json:"succs"`
	Type       string           `json:"type"`
	Const      any              `json:"const"`
	EffectFree bool             `json:"effect_free"`
	Inbounds   bool             `json:"inbounds"`
	Line       int              `json:"line"`
}

type fixtureOperand struct {
	SSA    *int           `json:"ssa"`
	Arg    *int           `json:"arg"`
	Lit    any            `json:"lit"`
	Global string         `json:"global"`
	Type   string         `json:"type"`
	Const  any            `json:"const"`
	Method *fixtureMethod `json:"method"`
}

type fixtureEdge struct {
	Pred  int            `json:"pred"`
	Value fixtureOperand `json:"value"`
}

type fixtureMethod struct {
	Method    string   `json:"method"`
	Signature []string `json:"signature"`
	Return    string   `json:"return"`
}

// LoadDir builds the CUE package in dir and defines its bodies in a new
// standard image.
func LoadDir(dir string) (*Image, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixtures: not a directory: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("fixtures: no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("fixtures: no CUE instances loaded from %s", dir)
	}
	if err := instances[0].Err; err != nil {
		return nil, fmt.Errorf("fixtures: loading CUE files: %w", err)
	}
	value := ctx.BuildInstance(instances[0])

	im := NewStandardImage()
	if err := im.LoadValue(value); err != nil {
		return nil, err
	}
	return im, nil
}

// LoadString compiles CUE source and defines its bodies in a new standard
// image.
func LoadString(src string) (*Image, error) {
	im := NewStandardImage()
	if err := im.LoadValue(cuecontext.New().CompileString(src)); err != nil {
		return nil, err
	}
	return im, nil
}

// LoadValue defines every body under the value's body field, in label
// order.
func (im *Image) LoadValue(v cue.Value) error {
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	bodies := v.LookupPath(cue.ParsePath("body"))
	if !bodies.Exists() {
		return &LoadError{Field: "body", Message: "no bodies defined", Pos: v.Pos()}
	}
	iter, err := bodies.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		body, err := im.CompileBody(iter.Label(), iter.Value())
		if err != nil {
			return err
		}
		im.Define(body)
	}
	return nil
}

// CompileBody decodes one fixture body. Handles are interned in im.
func (im *Image) CompileBody(label string, v cue.Value) (*ir.Body, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	var fb fixtureBody
	if err := v.Decode(&fb); err != nil {
		return nil, formatCUEError(err)
	}

	method := fb.Method
	if method == "" {
		method = label
	}
	field := "body." + label
	if len(fb.Blocks) == 0 {
		return nil, &LoadError{Field: field + ".blocks", Message: "at least one block is required", Pos: v.Pos()}
	}

	body := &ir.Body{
		Spec:   ir.NewSpecialization(ir.ParseGlobal(method), types(fb.Signature)...),
		Return: ir.Type(fb.Return),
	}
	for i, a := range fb.Args {
		lat, err := im.lattice(a.Type, a.Const)
		if err != nil {
			pos := v.LookupPath(cue.MakePath(cue.Str("args"), cue.Index(i))).Pos()
			return nil, &LoadError{Field: fmt.Sprintf("%s.args[%d]", field, i), Message: err.Error(), Pos: pos}
		}
		body.Args = append(body.Args, ir.ArgInfo{Name: a.Name, Type: lat})
	}

	body.Blocks = make([]ir.Block, len(fb.Blocks))
	for bi, stmts := range fb.Blocks {
		for si, fs := range stmts {
			st, err := im.stmt(&fs)
			if err != nil {
				pos := v.LookupPath(cue.MakePath(cue.Str("blocks"), cue.Index(bi), cue.Index(si))).Pos()
				return nil, &LoadError{Field: fmt.Sprintf("%s.blocks[%d][%d]", field, bi, si), Message: err.Error(), Pos: pos}
			}
			body.Blocks[bi].Stmts = append(body.Blocks[bi].Stmts, st)
		}
	}
	return body, nil
}

func types(names []string) []ir.Type {
	out := make([]ir.Type, len(names))
	for i, n := range names {
		out[i] = ir.Type(n)
	}
	return out
}

func (im *Image) lattice(typ string, c any) (ir.Lattice, error) {
	if c == nil {
		return ir.Widen(ir.Type(typ)), nil
	}
	v, err := toValue(c)
	if err != nil {
		return ir.Lattice{}, fmt.Errorf("const: %w", err)
	}
	if typ == "" {
		typ = string(ir.TypeOf(v))
	}
	return im.Const(ir.Type(typ), v), nil
}

func (im *Image) stmt(fs *fixtureStmt) (ir.Stmt, error) {
	kind, ok := ir.ParseStmtKind(fs.Kind)
	if !ok {
		return ir.Stmt{}, fmt.Errorf("unknown statement kind %q", fs.Kind)
	}
	lat, err := im.lattice(fs.Type, fs.Const)
	if err != nil {
		return ir.Stmt{}, err
	}
	st := ir.Stmt{
		ID:    ir.ValueID(fs.ID),
		Kind:  kind,
		Succs: fs.Succs,
		Type:  lat,
		Line:  fs.Line,
	}
	if fs.EffectFree {
		st.Flags |= ir.FlagEffectFree
	}
	if fs.Inbounds {
		st.Flags |= ir.FlagInbounds
	}
	if kind == ir.StmtExpr {
		if fs.Head == "" {
			return ir.Stmt{}, fmt.Errorf("expr requires a head")
		}
		st.Head = im.Symbol(fs.Head)
	}
	for i := range fs.Args {
		o, err := im.operand(&fs.Args[i])
		if err != nil {
			return ir.Stmt{}, fmt.Errorf("args[%d]: %w", i, err)
		}
		st.Args = append(st.Args, o)
	}
	for i, e := range fs.Edges {
		o, err := im.operand(&e.Value)
		if err != nil {
			return ir.Stmt{}, fmt.Errorf("edges[%d]: %w", i, err)
		}
		st.Edges = append(st.Edges, ir.PhiEdge{Pred: e.Pred, Value: o})
	}
	return st, nil
}

func (im *Image) operand(fo *fixtureOperand) (ir.Operand, error) {
	switch {
	case fo.SSA != nil:
		return ir.SSA(ir.ValueID(*fo.SSA)), nil
	case fo.Arg != nil:
		return ir.Arg(*fo.Arg), nil
	case fo.Lit != nil:
		v, err := toValue(fo.Lit)
		if err != nil {
			return ir.Operand{}, fmt.Errorf("lit: %w", err)
		}
		return ir.Lit(v), nil
	case fo.Global != "":
		lat, err := im.lattice(fo.Type, fo.Const)
		if err != nil {
			return ir.Operand{}, err
		}
		if lat.Type == "" {
			lat.Type = ir.TypeAny
		}
		return ir.GlobalOperand(ir.ParseGlobal(fo.Global), lat), nil
	case fo.Method != nil:
		return ir.MethodOperand(&ir.MethodInstance{
			Spec:   ir.NewSpecialization(ir.ParseGlobal(fo.Method.Method), types(fo.Method.Signature)...),
			Return: ir.Type(fo.Method.Return),
		}), nil
	}
	return ir.Operand{}, fmt.Errorf("operand needs one of ssa, arg, lit, global or method")
}

// toValue converts a decoded CUE value into a boxed host constant.
func toValue(x any) (ir.IRValue, error) {
	switch v := x.(type) {
	case bool:
		return ir.IRBool(v), nil
	case int:
		return ir.IRInt(v), nil
	case int64:
		return ir.IRInt(v), nil
	case float64:
		return ir.IRFloat(v), nil
	case string:
		return ir.IRString(v), nil
	case []any:
		arr := make(ir.IRArray, len(v))
		for i, e := range v {
			ev, err := toValue(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		if len(v) == 1 {
			if s, ok := v["sym"].(string); ok {
				return ir.IRSymbol(s), nil
			}
			if s, ok := v["fn"].(string); ok {
				g := ir.ParseGlobal(s)
				return ir.NewIRFunction(g.Module, g.Name), nil
			}
			if b, ok := v["nothing"].(bool); ok && b {
				return ir.IRNothing{}, nil
			}
		}
		obj := make(ir.IRObject, len(v))
		for k, e := range v {
			ev, err := toValue(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	case nil:
		return nil, fmt.Errorf("null is not a value; use {nothing: true}")
	default:
		return nil, fmt.Errorf("unsupported value of type %T", x)
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
