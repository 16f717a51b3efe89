package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sigfuse/internal/model"
)

// ErrAuditConflict is returned when an entry's seq is already stored with a
// different hash, i.e. the entries come from a different chain.
var ErrAuditConflict = errors.New("store: audit entry conflicts with stored chain")

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AppendAudit stores entries in one transaction and returns how many were
// new. Entries already stored with the same seq and hash are skipped, so
// shipping an overlapping batch is safe.
func (s *Store) AppendAudit(ctx context.Context, entries []model.AuditEntry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("append audit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	n, err := appendAudit(ctx, tx, entries)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("append audit: commit: %w", err)
	}
	return n, nil
}

func appendAudit(ctx context.Context, db execer, entries []model.AuditEntry) (int, error) {
	inserted := 0
	for _, e := range entries {
		subjects, err := marshalSubjects(e.Subjects)
		if err != nil {
			return 0, fmt.Errorf("append audit seq %d: %w", e.Seq, err)
		}
		metrics, err := marshalMetrics(e.Metrics)
		if err != nil {
			return 0, fmt.Errorf("append audit seq %d: %w", e.Seq, err)
		}

		res, err := db.ExecContext(ctx, `
			INSERT INTO audit_log
			(seq, timestamp, operation, subjects, metrics, prev_hash, hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(seq) DO NOTHING
		`,
			e.Seq,
			formatTime(e.Timestamp),
			string(e.Operation),
			subjects,
			metrics,
			e.PrevHash,
			e.Hash,
		)
		if err != nil {
			return 0, fmt.Errorf("append audit seq %d: %w", e.Seq, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("append audit seq %d: rows affected: %w", e.Seq, err)
		}
		if affected == 1 {
			inserted++
			continue
		}

		var stored string
		if err := db.QueryRowContext(ctx, `SELECT hash FROM audit_log WHERE seq = ?`, e.Seq).Scan(&stored); err != nil {
			return 0, fmt.Errorf("append audit seq %d: %w", e.Seq, err)
		}
		if stored != e.Hash {
			return 0, fmt.Errorf("%w: seq %d", ErrAuditConflict, e.Seq)
		}
	}
	return inserted, nil
}

// ReadAudit returns stored entries with seq > sinceSeq, ordered by seq.
// A non-empty op restricts the result to that operation.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ReadAudit(ctx context.Context, sinceSeq int64, op model.Operation) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, timestamp, operation, subjects, metrics, prev_hash, hash
		FROM audit_log
		WHERE seq > ? AND (? = '' OR operation = ?)
		ORDER BY seq ASC
	`, sinceSeq, string(op), string(op))
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			e                 model.AuditEntry
			ts, opName        string
			subjects, metrics string
		)
		if err := rows.Scan(&e.Seq, &ts, &opName, &subjects, &metrics, &e.PrevHash, &e.Hash); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Operation = model.Operation(opName)
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("audit seq %d: %w", e.Seq, err)
		}
		if err := json.Unmarshal([]byte(subjects), &e.Subjects); err != nil {
			return nil, fmt.Errorf("audit seq %d: subjects: %w", e.Seq, err)
		}
		if err := json.Unmarshal([]byte(metrics), &e.Metrics); err != nil {
			return nil, fmt.Errorf("audit seq %d: metrics: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return entries, nil
}

// LastAuditSeq returns the highest stored audit seq, or 0 when empty.
func (s *Store) LastAuditSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM audit_log`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last audit seq: %w", err)
	}
	return seq.Int64, nil
}
