package fusion

import (
	"math/cmplx"
)

// SpectralFuser amplifies signals aligned with the globally dominant pattern
// and suppresses the rest.
//
// For each signal i with projection p_i = |v0[i]|²:
//
//	p_i >= NoiseThreshold: conf * (1 + λ0 * p_i * BoostFactor)
//	otherwise:             conf * SuppressionFactor
//
// both clamped to [0,1]. Because v0 is the leading eigenvector over every
// retained signal, two mutually similar signals that disagree with the rest
// of the evidence get small projections and cannot amplify each other.
type SpectralFuser struct {
	params Params
}

// NewSpectralFuser creates a spectral fuser.
func NewSpectralFuser(p Params) SpectralFuser {
	return SpectralFuser{params: p}
}

// Strategy implements Fuser.
func (f SpectralFuser) Strategy() Strategy {
	return StrategySpectral
}

// Fuse implements Fuser.
func (f SpectralFuser) Fuse(c Correlation, priors []float64) Outcome {
	checkAligned(c, priors)

	eig, reason := decompose(c)
	if reason != "" {
		return neutral(priors, reason)
	}

	lambda0 := eig.Values[0]
	out := Outcome{
		Posteriors:  make([]float64, len(priors)),
		Projections: make([]float64, len(priors)),
		Coherence:   lambda0,
		Eigenvalues: eig.Values,
		Reference:   eig.Leading,
	}
	for i, prior := range priors {
		a := cmplx.Abs(eig.Leading[i])
		p := a * a
		out.Projections[i] = p
		out.Posteriors[i] = f.adjust(prior, p, lambda0)
	}
	return out
}

// adjust applies the spectral update law to one signal.
func (f SpectralFuser) adjust(prior, projection, lambda0 float64) float64 {
	if projection >= f.params.NoiseThreshold {
		return clamp01(prior * (1 + lambda0*projection*f.params.BoostFactor))
	}
	return clamp01(prior * f.params.SuppressionFactor)
}
