package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/sigfuse/internal/fusion"
	"github.com/roach88/sigfuse/internal/model"
)

// ErrInvalidSnapshot is returned by Restore for snapshots that cannot be
// rebuilt into an engine.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ExportState returns a complete deep copy of the engine state: config,
// signals with their encoded vectors, fusion history, entropy history,
// audit trail and logical clock.
func (e *Engine) ExportState() model.Snapshot {
	cfg, err := json.Marshal(e.cfg)
	if err != nil {
		// Config holds only validated finite numbers and a string.
		panic(fmt.Sprintf("engine: marshal config: %v", err))
	}

	signals := make([]model.SignalRecord, len(e.signals))
	for i, s := range e.signals {
		signals[i] = model.NewSignalRecord(s)
	}

	return model.Snapshot{
		Version:        model.SnapshotVersion,
		EngineVersion:  model.EngineVersion,
		Config:         cfg,
		State:          e.state,
		Clock:          e.clock.Current(),
		Signals:        signals,
		History:        e.History(),
		EntropyHistory: e.stability.History(),
		Audit:          e.recorder.Entries(),
	}
}

// Restore rebuilds an engine from a snapshot produced by ExportState.
// The logical clock resumes after the snapshot's clock and a restore entry
// is appended to the restored audit chain.
//
// Options apply as in New; a WithClock option replaces the resumed clock.
func Restore(snap model.Snapshot, opts ...EngineOption) (*Engine, error) {
	if snap.Version != model.SnapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, snap.Version)
	}

	cfg := DefaultConfig()
	if len(snap.Config) > 0 {
		if err := json.Unmarshal(snap.Config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: config: %v", ErrInvalidSnapshot, err)
		}
	}

	opts = append([]EngineOption{WithClock(NewClockAt(snap.Clock))}, opts...)
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	switch snap.State {
	case model.StateAccumulating, model.StateFused:
		e.state = snap.State
	default:
		return nil, fmt.Errorf("%w: unknown state %q", ErrInvalidSnapshot, snap.State)
	}

	if len(snap.EntropyHistory) != len(snap.History) {
		return nil, fmt.Errorf("%w: %d entropy values for %d rounds",
			ErrInvalidSnapshot, len(snap.EntropyHistory), len(snap.History))
	}

	var lastSeq int64
	for i, rec := range snap.Signals {
		if len(rec.State.Re) != cfg.FeatureDimension || len(rec.State.Im) != cfg.FeatureDimension {
			return nil, fmt.Errorf("%w: signal %s has state %d/%d (re/im), want %d",
				ErrInvalidSnapshot, rec.ID, len(rec.State.Re), len(rec.State.Im), cfg.FeatureDimension)
		}
		// Eviction treats slice order as age, so seq must strictly increase.
		if i > 0 && rec.Seq <= lastSeq {
			return nil, fmt.Errorf("%w: signal %s seq %d not after %d",
				ErrInvalidSnapshot, rec.ID, rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		s := rec.Signal()
		if s.Confidence < 0 || s.Confidence > 1 {
			return nil, fmt.Errorf("%w: signal %s: %w", ErrInvalidSnapshot, s.ID,
				fusion.NewInputError(fusion.ErrCodeConfidenceRange, "confidence", "%v is outside [0,1]", s.Confidence))
		}
		if _, dup := e.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: %w: %s", ErrInvalidSnapshot, ErrDuplicateSignal, s.ID)
		}
		if s.Seq > snap.Clock {
			return nil, fmt.Errorf("%w: signal %s seq %d ahead of clock %d", ErrInvalidSnapshot, s.ID, s.Seq, snap.Clock)
		}
		e.index[s.ID] = len(e.signals)
		e.signals = append(e.signals, s)
	}

	e.history = make([]model.FusionResult, len(snap.History))
	for i, r := range snap.History {
		e.history[i] = r.Clone()
	}
	e.stability.Restore(snap.EntropyHistory)

	if err := e.recorder.Restore(snap.Audit); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	seq := e.clock.Next()
	e.record(seq, e.now.Now().UTC(), model.OpRestore, nil, map[string]float64{
		"signals": float64(len(e.signals)),
		"rounds":  float64(len(e.history)),
		"clock":   float64(snap.Clock),
	})
	e.logger.Info("engine restored",
		"signals", len(e.signals),
		"rounds", len(e.history),
		"clock", snap.Clock,
	)
	return e, nil
}
