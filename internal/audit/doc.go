// Package audit records an append-only, hash-chained log of engine
// operations.
//
// Each entry's Hash covers its seq, timestamp, operation, subjects, metrics
// and the previous entry's hash, using canonical JSON and SHA-256 with domain
// separation (see model.AuditHash). Editing, dropping or reordering any entry
// breaks the chain, which VerifyChain reports.
//
// The recorder keeps entries in memory only. Persistence belongs to an
// external collaborator that pulls entries with Since and writes them
// elsewhere (internal/store does this for SQLite); WriteJSONL and ReadJSONL
// provide a portable line-oriented export.
package audit
