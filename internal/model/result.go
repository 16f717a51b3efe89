package model

import (
	"fmt"
	"slices"
	"time"
)

// Stability classifies the entropy trend between consecutive fusion rounds.
type Stability string

const (
	// StabilityStable means entropy stayed flat or fell: new evidence agreed.
	StabilityStable Stability = "STABLE"
	// StabilityDiverging means entropy rose past the configured threshold:
	// new evidence contradicts the current consensus.
	StabilityDiverging Stability = "DIVERGING"
)

// Degeneracy reasons reported on neutral fusion results.
const (
	ReasonNoSignals    = "no_signals"
	ReasonSingleSignal = "single_signal"
	ReasonZeroTrace    = "zero_trace"
	ReasonEigenFailed  = "eigen_failed"
)

// SignalScore is the per-signal outcome of one fusion round.
type SignalScore struct {
	ID         string  `json:"id"`
	Prior      float64 `json:"prior"`
	Posterior  float64 `json:"posterior"`
	Projection float64 `json:"projection"`
}

// Multiplier returns Posterior/Prior, or 1 when the prior is zero.
func (s SignalScore) Multiplier() float64 {
	if s.Prior == 0 {
		return 1
	}
	return s.Posterior / s.Prior
}

// FusionResult is the immutable snapshot of one fusion round.
// Accessors on the engine hand out deep copies; nothing mutates a result
// after it is appended to history.
type FusionResult struct {
	Round             int           `json:"round"`
	Seq               int64         `json:"seq"`
	Strategy          string        `json:"strategy"`
	Timestamp         time.Time     `json:"timestamp"`
	Scores            []SignalScore `json:"scores"`
	CoherenceStrength float64       `json:"coherence_strength"`
	Entropy           float64       `json:"entropy"`
	Stability         Stability     `json:"stability"`
	Consensus         []float64     `json:"consensus"`
	ReferencePattern  ComplexVector `json:"reference_pattern"`
	Eigenvalues       []float64     `json:"eigenvalues"`
	Degenerate        bool          `json:"degenerate"`
	Reason            string        `json:"reason,omitempty"`
}

// Confidences returns the posterior confidence of every scored signal.
func (r FusionResult) Confidences() map[string]float64 {
	out := make(map[string]float64, len(r.Scores))
	for _, s := range r.Scores {
		out[s.ID] = s.Posterior
	}
	return out
}

// Score returns the score for a signal id.
func (r FusionResult) Score(id string) (SignalScore, bool) {
	for _, s := range r.Scores {
		if s.ID == id {
			return s, true
		}
	}
	return SignalScore{}, false
}

// Clone returns a deep copy of the result.
func (r FusionResult) Clone() FusionResult {
	out := r
	out.Scores = slices.Clone(r.Scores)
	out.Consensus = slices.Clone(r.Consensus)
	out.ReferencePattern = r.ReferencePattern.Clone()
	out.Eigenvalues = slices.Clone(r.Eigenvalues)
	return out
}

// String renders a one-line summary for logs and text output.
func (r FusionResult) String() string {
	if r.Degenerate {
		return fmt.Sprintf("round %d: degenerate (%s), %d signals, stability=%s",
			r.Round, r.Reason, len(r.Scores), r.Stability)
	}
	return fmt.Sprintf("round %d: %d signals, coherence=%.4f entropy=%.4f stability=%s",
		r.Round, len(r.Scores), r.CoherenceStrength, r.Entropy, r.Stability)
}
