// Package harness runs compile scenarios against fixture images and
// compares their traces with golden files.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: branch
//	description: "Two-way branch lowers to cond_br"
//	fixtures:
//	  - ../fixtures/pick.cue
//	steps:
//	  - compile: Main.pick
//	    expect:
//	      outcome: ready
//	      contains: ["std.cond_br"]
//	  - compile: Main.pick
//	    stage: translate
//	  - invalidate: Main.pick
//	assertions:
//	  - type: entry_calls
//	    spec: Main.pick
//	    entry: jl_apply_generic
//	    count: 2
//	  - type: journal_count
//	    outcome: ready
//	    count: 1
//
// Fixture paths are relative to the scenario file. A step names a
// specialization either by method ("Main.pick"), which must be unique in
// the fixtures, or by key ("Main.pick(Bool,Int64)"), which need not be
// defined at all.
//
// # Assertion Types
//
//   - op_count: number of ops of a kind in the lowered function of spec
//   - entry_calls: number of std.call ops to a runtime entry in spec
//   - journal_count: number of journal records, optionally filtered by
//     outcome and spec
//
// # Deterministic Testing
//
// Each run uses a fresh host image, an in-memory journal, a
// testutil.DeterministicClock and testutil.SequentialIDs, so traces are
// identical across runs and can be compared with golden files.
package harness
