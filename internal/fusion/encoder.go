package fusion

import (
	"fmt"
	"math"
)

// DefaultPhasePeriod is the context period used when none is configured.
// With hour-of-day contexts, signals reported at similar times of day land
// near the same phase.
const DefaultPhasePeriod = 24.0

// Encoder maps raw signal records to fixed-dimension complex state vectors.
type Encoder struct {
	dimension int
	period    float64
}

// Encoded is the output of Encoder.Encode.
type Encoded struct {
	State     []complex128
	Phase     float64
	Magnitude float64
}

// NewEncoder creates an encoder for dimension D and context period.
// Panics if dimension or period is not positive: both are fixed by
// construction-time configuration, so a bad value is a programming error.
func NewEncoder(dimension int, period float64) Encoder {
	if dimension <= 0 {
		panic(fmt.Sprintf("fusion: feature dimension must be positive, got %d", dimension))
	}
	if !(period > 0) || math.IsInf(period, 0) {
		panic(fmt.Sprintf("fusion: phase period must be positive and finite, got %v", period))
	}
	return Encoder{dimension: dimension, period: period}
}

// Dimension returns D.
func (e Encoder) Dimension() int {
	return e.dimension
}

// Phase maps a context scalar onto [0, 2π).
func (e Encoder) Phase(context float64) float64 {
	r := math.Mod(context, e.period)
	if r < 0 {
		r += e.period
	}
	return r * 2 * math.Pi / e.period
}

// Encode truncates or zero-pads features to D, rotates every component by
// e^(i·phase) and scales the vector by confidence.
//
// Returns an InputError if confidence is outside [0,1], features is empty,
// or any numeric input is not finite.
func (e Encoder) Encode(features []float64, context, confidence float64) (Encoded, error) {
	if len(features) == 0 {
		return Encoded{}, NewInputError(ErrCodeEmptyFeatures, "features", "feature vector is empty")
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return Encoded{}, NewInputError(ErrCodeConfidenceRange, "confidence", "%v is outside [0,1]", confidence)
	}
	if math.IsNaN(context) || math.IsInf(context, 0) {
		return Encoded{}, NewInputError(ErrCodeNonFinite, "context", "%v is not finite", context)
	}
	for i, f := range features {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Encoded{}, NewInputError(ErrCodeNonFinite, fmt.Sprintf("features[%d]", i), "%v is not finite", f)
		}
	}

	phase := e.Phase(context)
	sin, cos := math.Sincos(phase)

	state := make([]complex128, e.dimension)
	var normSq float64
	for k := 0; k < e.dimension && k < len(features); k++ {
		f := features[k]
		normSq += f * f
		a := f * confidence
		state[k] = complex(a*cos, a*sin)
	}

	return Encoded{
		State:     state,
		Phase:     phase,
		Magnitude: math.Min(1, math.Sqrt(normSq)),
	}, nil
}
