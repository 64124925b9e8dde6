// Package dialect defines the IR that brutus translates into and lowers
// through.
//
// Two dialects share one representation:
//
//	jlir  host-language semantics: dynamic call, invoke of a specialized
//	      target, global reference, constant carrying a lattice fact,
//	      type narrowing (pi), undef, and unstructured terminators
//	std   target-independent operations ready for code generation:
//	      embedded constants, calls to named runtime entry points,
//	      integer/float arithmetic and block-based control flow
//
// DISPATCH AS DATA:
//
// An operation is a tagged variant (Op.Kind plus typed Attrs), not an
// interface hierarchy. The set of kinds is closed, so every pass is an
// exhaustive switch:
//
//	switch op.Kind {
//	case OpCall:
//	    // rewrite to a runtime call
//	case OpInvoke:
//	    // rewrite to jl_invoke or a fast path
//	...
//	}
//
// Every kind has a static OpDef declaring its dialect, its effects and its
// result type inference rule. The inference rule is a pure function of the
// operand types and the attributes; nothing in this package consults the
// host runtime.
//
// CONTROL FLOW:
//
// Blocks carry arguments (the translated phi nodes) and terminators carry
// explicit successor lists with per-edge operands. No structuredness is
// assumed: the verifier accepts irreducible graphs.
package dialect
