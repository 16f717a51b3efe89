package model

import (
	"encoding/json"
	"maps"
	"time"
)

// EngineState is the engine lifecycle state.
type EngineState string

const (
	// StateAccumulating means no fusion round has run yet.
	StateAccumulating EngineState = "ACCUMULATING"
	// StateFused means at least one fusion round has run.
	StateFused EngineState = "FUSED"
)

// SignalRecord is the export form of a Signal.
type SignalRecord struct {
	ID         string            `json:"id"`
	Source     SourceClass       `json:"source"`
	Timestamp  time.Time         `json:"timestamp"`
	Location   Location          `json:"location"`
	Category   string            `json:"category"`
	Magnitude  float64           `json:"magnitude"`
	Confidence float64           `json:"confidence"`
	Phase      float64           `json:"phase"`
	State      ComplexVector     `json:"state"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Seq        int64             `json:"seq"`
}

// NewSignalRecord converts a signal to its export form.
func NewSignalRecord(s Signal) SignalRecord {
	return SignalRecord{
		ID:         s.ID,
		Source:     s.Source,
		Timestamp:  s.Timestamp,
		Location:   s.Location,
		Category:   s.Category,
		Magnitude:  s.Magnitude,
		Confidence: s.Confidence,
		Phase:      s.Phase,
		State:      NewComplexVector(s.State),
		Metadata:   maps.Clone(s.Metadata),
		Seq:        s.Seq,
	}
}

// Signal converts the record back to a Signal.
func (r SignalRecord) Signal() Signal {
	return Signal{
		ID:         r.ID,
		Source:     r.Source,
		Timestamp:  r.Timestamp,
		Location:   r.Location,
		Category:   r.Category,
		Magnitude:  r.Magnitude,
		Confidence: r.Confidence,
		Phase:      r.Phase,
		State:      r.State.Complex(),
		Metadata:   maps.Clone(r.Metadata),
		Seq:        r.Seq,
	}
}

// Snapshot is a complete, lossless export of engine state.
// Config is kept as raw JSON so model does not depend on the engine's
// configuration type.
type Snapshot struct {
	Version        string          `json:"version"`
	EngineVersion  string          `json:"engine_version"`
	Config         json.RawMessage `json:"config"`
	State          EngineState     `json:"state"`
	Clock          int64           `json:"clock"`
	Signals        []SignalRecord  `json:"signals"`
	History        []FusionResult  `json:"history"`
	EntropyHistory []float64       `json:"entropy_history"`
	Audit          []AuditEntry    `json:"audit"`
}
