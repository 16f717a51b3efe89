package model

import (
	"encoding/hex"
	"maps"
	"slices"
	"time"
)

// Operation names an audited engine call.
type Operation string

const (
	OpAddSignal Operation = "add_signal"
	OpFuse      Operation = "fuse"
	OpEvict     Operation = "evict"
	OpRestore   Operation = "restore"
)

// AuditEntry is one append-only record of an engine operation.
// Entries are totally ordered by Seq. Hash covers every other field and
// PrevHash links the entry to its predecessor.
type AuditEntry struct {
	Seq       int64              `json:"seq"`
	Timestamp time.Time          `json:"timestamp"`
	Operation Operation          `json:"operation"`
	Subjects  []string           `json:"subjects"`
	Metrics   map[string]float64 `json:"metrics"`
	PrevHash  string             `json:"prev_hash"`
	Hash      string             `json:"hash"`
}

// Clone returns a deep copy of the entry.
func (e AuditEntry) Clone() AuditEntry {
	out := e
	out.Subjects = slices.Clone(e.Subjects)
	out.Metrics = maps.Clone(e.Metrics)
	return out
}

// canonicalMap returns the hashed view of the entry (everything but Hash).
// Subjects are hex-encoded so the hash covers their exact bytes rather than
// their NFC form.
func (e AuditEntry) canonicalMap() map[string]any {
	subjects := make([]any, len(e.Subjects))
	for i, s := range e.Subjects {
		subjects[i] = hex.EncodeToString([]byte(s))
	}
	metrics := make(map[string]any, len(e.Metrics))
	for k, v := range e.Metrics {
		metrics[k] = v
	}
	return map[string]any{
		"seq":       e.Seq,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		"operation": string(e.Operation),
		"subjects":  subjects,
		"metrics":   metrics,
		"prev_hash": e.PrevHash,
	}
}
