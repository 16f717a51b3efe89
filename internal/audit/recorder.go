package audit

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/roach88/sigfuse/internal/model"
)

// ErrChainBroken is matched by every ChainError.
var ErrChainBroken = errors.New("audit: chain broken")

// ChainError identifies the first entry that fails verification.
type ChainError struct {
	Seq    int64
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return fmt.Sprintf("audit: chain broken at index %d (seq=%d): %s", e.Index, e.Seq, e.Reason)
}

// Is makes errors.Is(err, ErrChainBroken) true.
func (e *ChainError) Is(target error) bool {
	return target == ErrChainBroken
}

// Recorder is the append-only audit log.
// Not safe for concurrent use; the engine's single writer owns it.
type Recorder struct {
	entries []model.AuditEntry
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an entry. seq must be strictly greater than the previous
// entry's seq. Returns an error (and appends nothing) when ordering is
// violated or a metric cannot be hashed.
func (r *Recorder) Record(seq int64, at time.Time, op model.Operation, subjects []string, metrics map[string]float64) (model.AuditEntry, error) {
	if n := len(r.entries); n > 0 && seq <= r.entries[n-1].Seq {
		return model.AuditEntry{}, fmt.Errorf("audit: seq %d is not after %d", seq, r.entries[n-1].Seq)
	}

	entry := model.AuditEntry{
		Seq:       seq,
		Timestamp: at.UTC(),
		Operation: op,
		Subjects:  slices.Clone(subjects),
		Metrics:   maps.Clone(metrics),
		PrevHash:  r.LastHash(),
	}
	if entry.Subjects == nil {
		entry.Subjects = []string{}
	}
	if entry.Metrics == nil {
		entry.Metrics = map[string]float64{}
	}

	hash, err := model.AuditHash(entry)
	if err != nil {
		return model.AuditEntry{}, fmt.Errorf("audit: record %s: %w", op, err)
	}
	entry.Hash = hash

	r.entries = append(r.entries, entry)
	return entry.Clone(), nil
}

// LastHash returns the hash of the newest entry, or "" when empty.
func (r *Recorder) LastHash() string {
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Hash
}

// Len returns the number of entries.
func (r *Recorder) Len() int {
	return len(r.entries)
}

// Entries returns deep copies of all entries in insertion order.
func (r *Recorder) Entries() []model.AuditEntry {
	return cloneEntries(r.entries)
}

// Since returns deep copies of the entries with Seq > seq.
// Persistence collaborators use it to ship entries incrementally.
func (r *Recorder) Since(seq int64) []model.AuditEntry {
	i, _ := slices.BinarySearchFunc(r.entries, seq, func(e model.AuditEntry, s int64) int {
		switch {
		case e.Seq <= s:
			return -1
		default:
			return 1
		}
	})
	return cloneEntries(r.entries[i:])
}

// Verify checks the recorder's own chain.
func (r *Recorder) Verify() error {
	return VerifyChain(r.entries)
}

// Restore replaces the log with entries after verifying their chain.
func (r *Recorder) Restore(entries []model.AuditEntry) error {
	if err := VerifyChain(entries); err != nil {
		return err
	}
	r.entries = cloneEntries(entries)
	return nil
}

// VerifyChain checks ordering, linkage and hashes of a full chain starting
// at the genesis entry (empty PrevHash).
func VerifyChain(entries []model.AuditEntry) error {
	prev := ""
	var prevSeq int64
	for i, e := range entries {
		if i > 0 && e.Seq <= prevSeq {
			return &ChainError{Seq: e.Seq, Index: i, Reason: fmt.Sprintf("seq not increasing (previous %d)", prevSeq)}
		}
		if e.PrevHash != prev {
			return &ChainError{Seq: e.Seq, Index: i, Reason: "prev_hash does not match previous entry"}
		}
		want, err := model.AuditHash(e)
		if err != nil {
			return &ChainError{Seq: e.Seq, Index: i, Reason: err.Error()}
		}
		if e.Hash != want {
			return &ChainError{Seq: e.Seq, Index: i, Reason: "hash mismatch"}
		}
		prev = e.Hash
		prevSeq = e.Seq
	}
	return nil
}

func cloneEntries(in []model.AuditEntry) []model.AuditEntry {
	out := make([]model.AuditEntry, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
