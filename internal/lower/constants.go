package lower

import (
	"fmt"

	"github.com/roach88/brutus/internal/dialect"
	"github.com/roach88/brutus/internal/ir"
)

// materializeConstants hoists every jlir.constant to the top of the entry
// block as a std.constant, one per distinct (value, type), and resolves
// global references: unused ones and ones naming a function already held
// in a constant disappear, the rest become jl_get_global calls. Unused
// constants are dropped.
func materializeConstants(fn *dialect.Function) (*dialect.Function, error) {
	out := fn.Clone()
	subst := make(map[dialect.Value]dialect.Value)
	seen := make(map[string]dialect.Value)
	funcs := make(map[ir.GlobalName]dialect.Value)
	var hoisted []dialect.Op

	for _, blk := range out.Blocks {
		kept := blk.Ops[:0]
		for _, op := range blk.Ops {
			if op.Kind != dialect.OpConstant {
				kept = append(kept, op)
				continue
			}
			key, err := constantKey(&op)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op.Loc.Pos, err)
			}
			if v, ok := seen[key]; ok {
				subst[op.Result] = v
				continue
			}
			seen[key] = op.Result
			op.Kind = dialect.OpStdConstant
			hoisted = append(hoisted, op)
			if f, ok := op.Attrs.Value.(ir.IRFunction); ok && op.Attrs.Type == dialect.Box {
				funcs[ir.GlobalName(f)] = op.Result
			}
		}
		blk.Ops = kept
	}
	entry := out.Entry()
	entry.Ops = append(hoisted, entry.Ops...)

	for _, blk := range out.Blocks {
		kept := blk.Ops[:0]
		for _, op := range blk.Ops {
			if op.Kind == dialect.OpGlobalRef {
				if v, ok := funcs[op.Attrs.Global]; ok {
					subst[op.Result] = v
					continue
				}
			}
			kept = append(kept, op)
		}
		blk.Ops = kept
	}
	substitute(out, subst)

	uses := out.Uses()
	for _, blk := range out.Blocks {
		kept := blk.Ops[:0]
		for _, op := range blk.Ops {
			switch op.Kind {
			case dialect.OpStdConstant:
				if uses[op.Result] == 0 {
					continue
				}
			case dialect.OpGlobalRef:
				if uses[op.Result] == 0 {
					continue
				}
				op.Kind = dialect.OpStdCall
				op.Attrs.Entry = EntryGetGlobal
			}
			kept = append(kept, op)
		}
		blk.Ops = kept
	}
	return out, nil
}

func constantKey(op *dialect.Op) (string, error) {
	data, err := ir.MarshalCanonical(op.Attrs.Value)
	if err != nil {
		return "", err
	}
	return op.Attrs.Type.String() + " " + string(data), nil
}

func substitute(fn *dialect.Function, subst map[dialect.Value]dialect.Value) {
	if len(subst) == 0 {
		return
	}
	for _, blk := range fn.Blocks {
		for i := range blk.Ops {
			op := &blk.Ops[i]
			for j, v := range op.Operands {
				if r, ok := subst[v]; ok {
					op.Operands[j] = r
				}
			}
			for _, s := range op.Succs {
				for j, v := range s.Args {
					if r, ok := subst[v]; ok {
						s.Args[j] = r
					}
				}
			}
		}
	}
}
