package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows migrating the algorithm later.
const (
	DomainSpecialization = "brutus/specialization/v1"
	DomainBody           = "brutus/body/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SpecHash computes the content-addressed ID of a specialization.
func SpecHash(s Specialization) (string, error) {
	obj := map[string]any{
		"method":    s.Method.String(),
		"signature": s.Signature,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpecialization, canonical), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(s Specialization) string {
	h, err := SpecHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// BodyHash computes the content hash of a typed SSA body. Two bodies with
// the same hash translate to identical dialect functions.
func BodyHash(b *Body) (string, error) {
	blocks := make([]any, len(b.Blocks))
	for i, blk := range b.Blocks {
		stmts := make([]any, len(blk.Stmts))
		for j := range blk.Stmts {
			stmts[j] = stmtObject(&blk.Stmts[j])
		}
		blocks[i] = stmts
	}
	args := make([]any, len(b.Args))
	for i, a := range b.Args {
		args[i] = map[string]any{"name": a.Name, "type": latticeObject(a.Type)}
	}

	obj := map[string]any{
		"spec":   b.Spec.String(),
		"args":   args,
		"return": string(b.Return),
		"blocks": blocks,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("BodyHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainBody, canonical), nil
}

func stmtObject(st *Stmt) map[string]any {
	args := make([]any, len(st.Args))
	for i, o := range st.Args {
		args[i] = operandObject(o)
	}
	edges := make([]any, len(st.Edges))
	for i, e := range st.Edges {
		edges[i] = map[string]any{"pred": e.Pred, "value": operandObject(e.Value)}
	}
	succs := make([]any, len(st.Succs))
	for i, s := range st.Succs {
		succs[i] = s
	}
	return map[string]any{
		"id":    int(st.ID),
		"kind":  st.Kind.String(),
		"head":  st.Head.String(),
		"args":  args,
		"edges": edges,
		"succs": succs,
		"type":  latticeObject(st.Type),
		"flags": int(st.Flags),
	}
}

func operandObject(o Operand) map[string]any {
	obj := map[string]any{"kind": int(o.Kind), "text": o.String()}
	if o.Kind == OperandLiteral && o.Literal != nil {
		obj["literal"] = o.Literal
	}
	if o.Kind == OperandGlobal {
		obj["type"] = latticeObject(o.Type)
	}
	return obj
}

func latticeObject(l Lattice) map[string]any {
	obj := map[string]any{"type": string(l.Type), "tag": l.Tag.String()}
	if l.Const != nil {
		obj["const"] = l.Const
	}
	return obj
}
