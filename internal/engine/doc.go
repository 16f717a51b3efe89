// Package engine implements the sigfuse correlation and fusion engine.
//
// The engine owns the retained signal set, runs fusion rounds and keeps the
// round history, the entropy history and the audit log. It is the only
// component that mutates state.
//
// ARCHITECTURE:
//
// Single Writer:
// All mutation happens inside AddSignal, Fuse, the Evict* calls and Restore.
// Nothing runs in the background, nothing blocks, and there is no internal
// I/O, so the engine can be called from any execution context. It is NOT
// safe for concurrent mutation: hosts with several producers serialize calls,
// for example through an Ingestor, which drains a FIFO queue from one
// goroutine.
//
// Round Flow:
//  1. Encode every signal once, at AddSignal (state vectors never change)
//  2. Fuse: build the trace-normalized Gram matrix of all retained signals
//  3. Apply the configured update law (spectral or pairwise)
//  4. Record entropy and classify stability
//  5. Extract the confidence-weighted consensus vector
//  6. Append an immutable FusionResult and an audit entry
//
// Determinism:
// Every operation is stamped from a logical clock. Given the same call
// sequence, configuration, id generator and time source, results are
// reproducible bit for bit. Signal timestamps come from the TimeSource and
// are used only for age-based eviction.
//
// Resource Bounds:
// Fuse costs O(N³) in the number of retained signals. The engine never
// evicts on its own; callers bound N explicitly with EvictOlderThan or
// EvictToCapacity.
package engine
