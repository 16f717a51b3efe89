package fusion

import (
	"github.com/roach88/sigfuse/internal/linalg"
)

// traceEpsilon is the trace below which the signal set carries no data.
const traceEpsilon = 1e-12

// Correlation is the trace-normalized Gram matrix of the current signals.
// It is rebuilt from scratch every round because membership changes between
// rounds.
type Correlation struct {
	// Matrix is Hermitian and positive semi-definite; trace 1 unless NoData.
	Matrix *linalg.Hermitian

	// Trace is the trace before normalization (Σ‖ψ_i‖²).
	Trace float64

	// NoData is set when N=0 or every state is zero. Matrix is then the
	// zero matrix.
	NoData bool
}

// Size returns N.
func (c Correlation) Size() int {
	return c.Matrix.Size()
}

// BuildCorrelation stacks the states into S and returns S·Sᴴ / trace(S·Sᴴ).
// Panics if the states differ in length.
func BuildCorrelation(states [][]complex128) Correlation {
	m := linalg.Gram(states)
	tr := m.Trace()
	if tr <= traceEpsilon {
		return Correlation{Matrix: linalg.NewHermitian(len(states)), Trace: tr, NoData: true}
	}
	m.Scale(1 / tr)
	return Correlation{Matrix: m, Trace: tr}
}
