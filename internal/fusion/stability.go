package fusion

import (
	"math"
	"slices"

	"github.com/roach88/sigfuse/internal/model"
)

// DefaultEigenvalueFloor is the value below which eigenvalues count as zero.
const DefaultEigenvalueFloor = 1e-10

// Entropy returns H = -Σ λ·ln(λ) over the eigenvalues greater than floor.
// The result is clamped at zero so rounding can never make it negative.
func Entropy(eigenvalues []float64, floor float64) float64 {
	var h float64
	for _, l := range eigenvalues {
		if l <= floor {
			continue
		}
		h -= l * math.Log(l)
	}
	return math.Max(0, h)
}

// StabilityMonitor tracks eigenvalue entropy across fusion rounds and
// classifies the latest change.
//
// A flat or falling entropy means new evidence agreed with the consensus. A
// jump above Threshold means new evidence contradicts it; that is reported as
// DIVERGING for downstream review, never raised as an error.
type StabilityMonitor struct {
	threshold float64
	floor     float64
	history   []float64
}

// NewStabilityMonitor creates a monitor with an empty history.
func NewStabilityMonitor(threshold, floor float64) *StabilityMonitor {
	return &StabilityMonitor{threshold: threshold, floor: floor}
}

// Observe computes the entropy of eigenvalues, appends it to the history and
// returns it with the resulting classification.
func (m *StabilityMonitor) Observe(eigenvalues []float64) (float64, model.Stability) {
	h := Entropy(eigenvalues, m.floor)
	return h, m.Record(h)
}

// Record appends an entropy value and classifies the trend.
func (m *StabilityMonitor) Record(h float64) model.Stability {
	m.history = append(m.history, h)
	return m.Classify()
}

// Classify compares the two most recent entropy values. Fewer than two
// values is STABLE.
func (m *StabilityMonitor) Classify() model.Stability {
	n := len(m.history)
	if n < 2 {
		return model.StabilityStable
	}
	if m.history[n-1]-m.history[n-2] <= m.threshold {
		return model.StabilityStable
	}
	return model.StabilityDiverging
}

// History returns a copy of the entropy history, oldest first.
func (m *StabilityMonitor) History() []float64 {
	return slices.Clone(m.history)
}

// Restore replaces the history, used when rebuilding from a snapshot.
func (m *StabilityMonitor) Restore(history []float64) {
	m.history = slices.Clone(history)
}
