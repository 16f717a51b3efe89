// Package model provides the shared data types for sigfuse.
//
// This package contains type definitions, canonical serialization and
// content hashing only. All other internal packages import model; model
// imports nothing internal. This keeps it the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - Complex vectors cross package and wire boundaries as ComplexVector
//     (parallel real/imaginary arrays), never as raw complex128 JSON
//   - All JSON tags use snake_case
//   - Ordering uses logical clocks (seq); wall-clock timestamps are recorded
//     for eviction and audit display only
package model
