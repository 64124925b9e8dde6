// Package ir provides the host-side data model for brutus.
//
// This package contains the typed SSA IR handed over by the host runtime's
// optimizer, the specialization identity used as the unit of compilation,
// boxed constant values and the canonical encoding used for content hashes.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Typed SSA IR is read-only input; nothing in brutus mutates a Body
//   - Host handles (symbols, runtime types) are opaque: only identity matters
//   - Specialization identity is immutable and doubles as the cache key
//   - Content hashes use canonical JSON with domain separation
package ir
