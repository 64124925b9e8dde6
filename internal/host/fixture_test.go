package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brutus/internal/ir"
)

const sumFixture = `
body: "Main.sum": {
	signature: ["Int64", "Int64"]
	return:    "Int64"
	args: [{name: "#self#", type: "typeof(sum)"}, {name: "x", type: "Int64"}, {name: "y", type: "Int64"}]
	blocks: [[
		{id: 1, kind: "expr", head: "call", type: "Int64", line: 2,
			args: [{global: "Base.+", type: "typeof(+)"}, {arg: 1}, {arg: 2}]},
		{id: 2, kind: "globalref", type: "Int64", const: 10,
			args: [{global: "Main.limit"}]},
		{kind: "gotoifnot", args: [{lit: true}], succs: [1, 2]},
	], [
		{kind: "return", args: [{ssa: 1}]},
	], [
		{kind: "return", args: [{ssa: 2}]},
	]]
}
`

func TestLoadString(t *testing.T) {
	im, err := LoadString(sumFixture)
	require.NoError(t, err)

	spec := ir.NewSpecialization(ir.Global("Main", "sum"), ir.TypeInt64, ir.TypeInt64)
	b, err := im.TypedIR(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, ir.TypeInt64, b.Return)
	require.Len(t, b.Args, 3)
	assert.Equal(t, ir.Type("typeof(sum)"), b.Args[0].Type.Type)
	require.Len(t, b.Blocks, 3)

	call := b.Blocks[0].Stmts[0]
	assert.Equal(t, ir.StmtExpr, call.Kind)
	assert.Equal(t, im.Symbol("call"), call.Head)
	assert.Equal(t, 2, call.Line)
	require.Len(t, call.Args, 3)
	assert.Equal(t, ir.OperandGlobal, call.Args[0].Kind)
	assert.Equal(t, ir.Global("Base", "+"), call.Args[0].Global)
	assert.Equal(t, ir.Arg(1), call.Args[1])

	ref := b.Blocks[0].Stmts[1]
	assert.Equal(t, ir.IRInt(10), ref.Type.Const)
	c, _ := im.ResolveRuntimeType("Core.Compiler.Const")
	assert.Equal(t, c, ref.Type.Tag)
	assert.Equal(t, ir.TypeAny, ref.Args[0].Type.Type)

	br := b.Blocks[0].Stmts[2]
	assert.Equal(t, []int{1, 2}, br.Succs)
	assert.Equal(t, ir.IRBool(true), br.Args[0].Literal)
}

func TestLoadStringValues(t *testing.T) {
	im, err := LoadString(`
body: "Main.consts": {
	return: "Any"
	blocks: [[
		{id: 1, kind: "literal", args: [{lit: {sym: "a"}}]},
		{id: 2, kind: "literal", args: [{lit: {fn: "Base.+"}}]},
		{id: 3, kind: "literal", args: [{lit: {nothing: true}}]},
		{id: 4, kind: "literal", args: [{lit: [1, 2.5, "s"]}]},
		{id: 5, kind: "foreigncall", args: []},
	]]
}`)
	require.Error(t, err, "unknown statement kinds are rejected")
	assert.Nil(t, im)
	assert.Contains(t, err.Error(), "blocks[0][4]")

	im, err = LoadString(`
body: "Main.consts": {
	return: "Any"
	blocks: [[
		{id: 1, kind: "literal", args: [{lit: {sym: "a"}}]},
		{id: 2, kind: "literal", args: [{lit: {fn: "Base.+"}}]},
		{id: 3, kind: "literal", args: [{lit: {nothing: true}}]},
		{id: 4, kind: "literal", args: [{lit: [1, 2.5, "s"]}]},
		{id: 5, kind: "expr", head: "invoke", type: "Int64",
			args: [{method: {method: "Main.g", signature: ["Int64"], return: "Int64"}}, {global: "Main.g"}, {lit: 1}]},
		{kind: "return", args: [{ssa: 1}]},
	]]
}`)
	require.NoError(t, err)
	b, err := im.TypedIR(context.Background(), ir.NewSpecialization(ir.Global("Main", "consts")))
	require.NoError(t, err)

	stmts := b.Blocks[0].Stmts
	assert.Equal(t, ir.IRSymbol("a"), stmts[0].Args[0].Literal)
	assert.Equal(t, ir.NewIRFunction("Base", "+"), stmts[1].Args[0].Literal)
	assert.Equal(t, ir.IRNothing{}, stmts[2].Args[0].Literal)
	assert.Equal(t, ir.IRArray{ir.IRInt(1), ir.IRFloat(2.5), ir.IRString("s")}, stmts[3].Args[0].Literal)

	inv := stmts[4]
	assert.Equal(t, im.Symbol("invoke"), inv.Head)
	require.NotNil(t, inv.Args[0].Method)
	assert.Equal(t, ir.SpecKey("Main.g(Int64)"), inv.Args[0].Method.Spec.Key())
	assert.Equal(t, ir.TypeInt64, inv.Args[0].Method.Return)
}

func TestLoadStringErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no bodies", `other: 1`, "no bodies"},
		{"no blocks", `body: "Main.f": {return: "Any", blocks: []}`, "at least one block"},
		{"bad operand", `body: "Main.f": {blocks: [[{kind: "return", args: [{}]}]]}`, "operand needs"},
		{"null value", `body: "Main.f": {blocks: [[{kind: "return", args: [{lit: null}]}]]}`, "operand needs"},
		{"expr without head", `body: "Main.f": {blocks: [[{id: 1, kind: "expr", args: []}]]}`, "head"},
		{"cue syntax", `body: {`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sum.cue"), []byte("package fixtures\n"+sumFixture), 0o644))

	im, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, im.Specializations(), 1)

	_, err = LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no CUE files")

	_, err = LoadDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
