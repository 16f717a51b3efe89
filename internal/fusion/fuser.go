package fusion

import (
	"fmt"
	"slices"

	"github.com/roach88/sigfuse/internal/linalg"
	"github.com/roach88/sigfuse/internal/model"
)

// Strategy selects the confidence update law.
type Strategy string

const (
	// StrategySpectral updates each signal from its projection onto the
	// dominant eigenvector (an N-way consistency measure).
	StrategySpectral Strategy = "spectral"

	// StrategyPairwise updates each signal from its best pairwise fidelity.
	StrategyPairwise Strategy = "pairwise"
)

// ParseStrategy validates a strategy name. The empty string selects spectral.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", StrategySpectral:
		return StrategySpectral, nil
	case StrategyPairwise:
		return StrategyPairwise, nil
	default:
		return "", fmt.Errorf("unknown fusion strategy %q (want %q or %q)", name, StrategySpectral, StrategyPairwise)
	}
}

// hermitianTolerance bounds the accepted asymmetry handed to the eigensolver.
const hermitianTolerance = 1e-9

// Params holds the tunable constants of the update laws. The reference
// values are empirical; only their relative magnitudes carry meaning.
type Params struct {
	BoostFactor       float64
	SuppressionFactor float64
	NoiseThreshold    float64
	PairwiseThreshold float64
	PairwiseBoost     float64
}

// Outcome is the result of applying an update law to one round.
type Outcome struct {
	// Posteriors are the updated confidences, aligned with the priors.
	Posteriors []float64

	// Projections are the per-signal alignment scores the law used:
	// |v0[i]|² for spectral, best pairwise fidelity for pairwise.
	Projections []float64

	// Coherence is the leading eigenvalue λ0.
	Coherence float64

	// Eigenvalues are all eigenvalues in descending order.
	Eigenvalues []float64

	// Reference is the unit-norm dominant eigenvector v0.
	Reference []complex128

	// Degenerate is set when no decomposition was performed or it failed.
	Degenerate bool
	Reason     string
}

// Fuser applies a confidence update law to a correlation matrix.
type Fuser interface {
	// Strategy names the update law.
	Strategy() Strategy

	// Fuse returns updated confidences for priors, which must be aligned
	// with the rows of c.
	Fuse(c Correlation, priors []float64) Outcome
}

// NewFuser returns the fuser for a strategy.
func NewFuser(strategy Strategy, p Params) (Fuser, error) {
	switch strategy {
	case StrategySpectral, "":
		return SpectralFuser{params: p}, nil
	case StrategyPairwise:
		return PairwiseFuser{params: p}, nil
	default:
		return nil, fmt.Errorf("unknown fusion strategy %q", strategy)
	}
}

// decompose runs the shared eigendecomposition step. It returns a non-empty
// degeneracy reason when the round must be neutral.
func decompose(c Correlation) (linalg.Eigen, string) {
	switch {
	case c.Size() == 0:
		return linalg.Eigen{}, model.ReasonNoSignals
	case c.Size() == 1:
		return linalg.Eigen{}, model.ReasonSingleSignal
	case c.NoData:
		return linalg.Eigen{}, model.ReasonZeroTrace
	}
	eig, err := linalg.EigenHermitian(c.Matrix, hermitianTolerance)
	if err != nil {
		return linalg.Eigen{}, model.ReasonEigenFailed
	}
	return eig, ""
}

// neutral returns an outcome that leaves every confidence untouched.
func neutral(priors []float64, reason string) Outcome {
	return Outcome{
		Posteriors:  slices.Clone(priors),
		Projections: make([]float64, len(priors)),
		Eigenvalues: []float64{},
		Reference:   make([]complex128, len(priors)),
		Degenerate:  true,
		Reason:      reason,
	}
}

func checkAligned(c Correlation, priors []float64) {
	if len(priors) != c.Size() {
		panic(fmt.Sprintf("fusion: %d priors for a %dx%d correlation matrix", len(priors), c.Size(), c.Size()))
	}
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
