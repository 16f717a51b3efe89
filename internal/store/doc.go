// Package store provides SQLite-backed durable storage for engine snapshots
// and the audit trail.
//
// The store holds:
//   - Snapshot: the latest exported engine state (header, signals, rounds),
//     replaced atomically by SaveSnapshot
//   - Audit log: the hash-chained audit entries, append-only across saves
//
// # Patterns
//
// Logical ordering: every query orders by seq (the engine's logical clock),
// never by timestamp, so reads are deterministic.
//
// Idempotent append: AppendAudit skips entries already stored with the same
// seq and hash, and reports a conflict when the hashes differ.
//
// Integrity: SaveSnapshot stores the snapshot fingerprint; LoadSnapshot
// recomputes it and rejects a mismatch.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single connection: SQLite allows one writer
package store
