package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sigfuse/internal/model"
)

// ErrNoSnapshot is returned by LoadSnapshot when nothing has been saved.
var ErrNoSnapshot = errors.New("store: no snapshot saved")

// ErrCorruptSnapshot is returned by LoadSnapshot when the stored rows no
// longer match the fingerprint recorded at save time.
var ErrCorruptSnapshot = errors.New("store: snapshot fingerprint mismatch")

// SaveSnapshot replaces the stored engine state with snap in one
// transaction. Audit entries are appended (see AppendAudit); entries already
// stored are kept.
func (s *Store) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	fingerprint, err := snap.Fingerprint()
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	entropy, err := marshalJSON(snap.EntropyHistory)
	if err != nil {
		return fmt.Errorf("save snapshot: entropy history: %w", err)
	}

	config := string(snap.Config)
	if config == "" {
		config = "null"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, table := range []string{"snapshot", "signals", "rounds"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("save snapshot: clear %s: %w", table, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot
		(id, version, engine_version, config, state, clock, entropy_history, fingerprint)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.Version,
		snap.EngineVersion,
		config,
		string(snap.State),
		snap.Clock,
		entropy,
		fingerprint,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: header: %w", err)
	}

	for _, rec := range snap.Signals {
		if err := insertSignal(ctx, tx, rec); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	for _, r := range snap.History {
		if err := insertRound(ctx, tx, r); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	if _, err := appendAudit(ctx, tx, snap.Audit); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save snapshot: commit: %w", err)
	}
	return nil
}

func insertSignal(ctx context.Context, tx *sql.Tx, rec model.SignalRecord) error {
	re, err := marshalJSON(rec.State.Re)
	if err != nil {
		return fmt.Errorf("signal %s: state: %w", rec.ID, err)
	}
	im, err := marshalJSON(rec.State.Im)
	if err != nil {
		return fmt.Errorf("signal %s: state: %w", rec.ID, err)
	}
	meta, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("signal %s: %w", rec.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO signals
		(id, seq, source, timestamp, location_x, location_y, category,
		 magnitude, confidence, phase, state_re, state_im, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Seq,
		rec.Source.String(),
		formatTime(rec.Timestamp),
		rec.Location.X,
		rec.Location.Y,
		rec.Category,
		rec.Magnitude,
		rec.Confidence,
		rec.Phase,
		re,
		im,
		meta,
	)
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", rec.ID, err)
	}
	return nil
}

func insertRound(ctx context.Context, tx *sql.Tx, r model.FusionResult) error {
	result, err := marshalJSON(r)
	if err != nil {
		return fmt.Errorf("round %d: %w", r.Round, err)
	}
	degenerate := 0
	if r.Degenerate {
		degenerate = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds
		(round, seq, strategy, coherence, entropy, stability, degenerate, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Round,
		r.Seq,
		r.Strategy,
		r.CoherenceStrength,
		r.Entropy,
		string(r.Stability),
		degenerate,
		result,
	)
	if err != nil {
		return fmt.Errorf("insert round %d: %w", r.Round, err)
	}
	return nil
}

// LoadSnapshot rebuilds the most recently saved snapshot, including the full
// stored audit chain. Returns ErrNoSnapshot if none was saved and
// ErrCorruptSnapshot if the rows do not reproduce the saved fingerprint.
func (s *Store) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	var (
		snap        model.Snapshot
		config      string
		state       string
		entropy     string
		fingerprint string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT version, engine_version, config, state, clock, entropy_history, fingerprint
		FROM snapshot
		WHERE id = 1
	`).Scan(&snap.Version, &snap.EngineVersion, &config, &state, &snap.Clock, &entropy, &fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load snapshot: header: %w", err)
	}
	snap.Config = json.RawMessage(config)
	snap.State = model.EngineState(state)
	if err := json.Unmarshal([]byte(entropy), &snap.EntropyHistory); err != nil {
		return model.Snapshot{}, fmt.Errorf("load snapshot: entropy history: %w", err)
	}

	if snap.Signals, err = s.readSignals(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.History, err = s.readRounds(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if snap.Audit, err = s.ReadAudit(ctx, 0, ""); err != nil {
		return model.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	got, err := snap.Fingerprint()
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	if got != fingerprint {
		return model.Snapshot{}, ErrCorruptSnapshot
	}
	return snap, nil
}

// readSignals returns the stored signals ordered by seq.
func (s *Store) readSignals(ctx context.Context) ([]model.SignalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, source, timestamp, location_x, location_y, category,
		       magnitude, confidence, phase, state_re, state_im, metadata
		FROM signals
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	signals := []model.SignalRecord{}
	for rows.Next() {
		var (
			rec          model.SignalRecord
			source, ts   string
			re, im, meta string
		)
		if err := rows.Scan(&rec.ID, &rec.Seq, &source, &ts, &rec.Location.X, &rec.Location.Y,
			&rec.Category, &rec.Magnitude, &rec.Confidence, &rec.Phase, &re, &im, &meta); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if rec.Source, err = model.ParseSourceClass(source); err != nil {
			return nil, fmt.Errorf("signal %s: %w", rec.ID, err)
		}
		if rec.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("signal %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(re), &rec.State.Re); err != nil {
			return nil, fmt.Errorf("signal %s: state: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(im), &rec.State.Im); err != nil {
			return nil, fmt.Errorf("signal %s: state: %w", rec.ID, err)
		}
		if rec.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, fmt.Errorf("signal %s: %w", rec.ID, err)
		}
		signals = append(signals, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return signals, nil
}

// readRounds returns the stored fusion history ordered by round.
func (s *Store) readRounds(ctx context.Context) ([]model.FusionResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result
		FROM rounds
		ORDER BY round ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	history := []model.FusionResult{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		var r model.FusionResult
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal round: %w", err)
		}
		history = append(history, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return history, nil
}
