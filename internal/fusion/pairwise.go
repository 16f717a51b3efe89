package fusion

import (
	"github.com/roach88/sigfuse/internal/linalg"
)

// PairwiseFuser is the nearest-neighbour variant of the update law.
//
// Each signal is scored by its best normalized overlap with any other
// signal, s_i = max_{j≠i} |M_ij|² / (M_ii·M_jj):
//
//	s_i >= PairwiseThreshold: conf * (1 + s_i * PairwiseBoost)
//	otherwise:                conf * SuppressionFactor
//
// clamped to [0,1]. Unlike SpectralFuser, two similar signals reinforce each
// other regardless of the rest of the evidence. The eigendecomposition still
// runs so coherence and entropy are reported the same way.
type PairwiseFuser struct {
	params Params
}

// NewPairwiseFuser creates a pairwise fuser.
func NewPairwiseFuser(p Params) PairwiseFuser {
	return PairwiseFuser{params: p}
}

// Strategy implements Fuser.
func (f PairwiseFuser) Strategy() Strategy {
	return StrategyPairwise
}

// Fuse implements Fuser.
func (f PairwiseFuser) Fuse(c Correlation, priors []float64) Outcome {
	checkAligned(c, priors)

	eig, reason := decompose(c)
	if reason != "" {
		return neutral(priors, reason)
	}

	n := c.Size()
	out := Outcome{
		Posteriors:  make([]float64, n),
		Projections: make([]float64, n),
		Coherence:   eig.Values[0],
		Eigenvalues: eig.Values,
		Reference:   eig.Leading,
	}
	for i := 0; i < n; i++ {
		var best float64
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if fid := linalg.Fidelity(c.Matrix, i, j); fid > best {
				best = fid
			}
		}
		out.Projections[i] = best
		if best >= f.params.PairwiseThreshold {
			out.Posteriors[i] = clamp01(priors[i] * (1 + best*f.params.PairwiseBoost))
		} else {
			out.Posteriors[i] = clamp01(priors[i] * f.params.SuppressionFactor)
		}
	}
	return out
}
