package dialect

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/brutus/internal/ir"
)

// Print renders fn as text. The output depends only on fn, so two
// structurally identical functions print byte-for-byte the same.
func Print(fn *Function) string {
	var buf bytes.Buffer
	_ = Fprint(&buf, fn)
	return buf.String()
}

// Fprint writes the text form of fn to w.
func Fprint(w io.Writer, fn *Function) error {
	var b strings.Builder
	fmt.Fprintf(&b, "func @%q -> %s {\n", fn.Name, fn.Result)
	for i, blk := range fn.Blocks {
		b.WriteString(blockHeader(fn, i, blk))
		for j := range blk.Ops {
			b.WriteString("  ")
			b.WriteString(FormatOp(fn, &blk.Ops[j]))
			b.WriteByte('\n')
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func blockHeader(fn *Function, i int, blk *Block) string {
	if len(blk.Args) == 0 {
		return fmt.Sprintf("^bb%d:\n", i)
	}
	args := make([]string, len(blk.Args))
	for j, v := range blk.Args {
		args[j] = fmt.Sprintf("%s: %s", v, fn.Type(v))
	}
	return fmt.Sprintf("^bb%d(%s):\n", i, strings.Join(args, ", "))
}

// FormatOp renders a single operation.
func FormatOp(fn *Function, op *Op) string {
	var b strings.Builder
	if op.Result != NoValue {
		fmt.Fprintf(&b, "%s = ", op.Result)
	}
	b.WriteString(op.Kind.String())

	var parts []string
	switch op.Kind {
	case OpCall, OpInvoke:
		parts = append(parts, fmt.Sprintf("%s(%s)", op.Callee(), joinValues(op.CallArgs())))
	case OpStdCall:
		parts = append(parts, fmt.Sprintf("@%s(%s)", op.Attrs.Entry, joinValues(op.Operands)))
	default:
		for _, v := range op.Operands {
			parts = append(parts, v.String())
		}
	}
	for _, s := range op.Succs {
		if len(s.Args) == 0 {
			parts = append(parts, fmt.Sprintf("^bb%d", s.Block))
		} else {
			parts = append(parts, fmt.Sprintf("^bb%d(%s)", s.Block, joinValues(s.Args)))
		}
	}
	if len(parts) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(parts, ", "))
	}

	if attrs := formatAttrs(&op.Attrs); attrs != "" {
		fmt.Fprintf(&b, " {%s}", attrs)
	}
	if op.Result != NoValue {
		fmt.Fprintf(&b, " : %s", fn.Type(op.Result))
	}
	return b.String()
}

func formatAttrs(a *Attrs) string {
	var kv []string
	if a.Global.Name != "" {
		kv = append(kv, "global = "+a.Global.String())
	}
	if a.Value != nil {
		kv = append(kv, "value = "+ir.FormatValue(a.Value))
	}
	if a.Target != nil {
		kv = append(kv, "target = "+a.Target.String())
	}
	if a.Predicate != "" {
		kv = append(kv, "predicate = "+a.Predicate)
	}
	return strings.Join(kv, ", ")
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
