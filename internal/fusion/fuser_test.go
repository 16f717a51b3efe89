package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigfuse/internal/model"
)

var testParams = Params{
	BoostFactor:       5,
	SuppressionFactor: 0.1,
	NoiseThreshold:    0.05,
	PairwiseThreshold: 0.8,
	PairwiseBoost:     0.5,
}

func TestBuildCorrelation_TraceNormalized(t *testing.T) {
	c := BuildCorrelation([][]complex128{
		{1, 2i},
		{0.5, 0},
		{0, 1 - 1i},
	})

	assert.False(t, c.NoData)
	assert.InDelta(t, 5+0.25+2, c.Trace, 1e-12)
	assert.InDelta(t, 1, c.Matrix.Trace(), 1e-12)
	assert.True(t, c.Matrix.IsHermitian(1e-12))
}

func TestBuildCorrelation_NoData(t *testing.T) {
	assert.True(t, BuildCorrelation(nil).NoData)

	c := BuildCorrelation([][]complex128{{0, 0}, {0, 0}})
	assert.True(t, c.NoData)
	assert.Equal(t, 2, c.Size())
	assert.True(t, c.Matrix.IsZero())
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategySpectral, s)

	s, err = ParseStrategy("pairwise")
	require.NoError(t, err)
	assert.Equal(t, StrategyPairwise, s)

	_, err = ParseStrategy("vote")
	assert.Error(t, err)

	_, err = NewFuser("vote", testParams)
	assert.Error(t, err)
}

func TestSpectralFuser_DegenerateRounds(t *testing.T) {
	f := NewSpectralFuser(testParams)

	tests := []struct {
		name   string
		states [][]complex128
		reason string
	}{
		{"no signals", nil, model.ReasonNoSignals},
		{"single signal", [][]complex128{{1, 0}}, model.ReasonSingleSignal},
		{"zero trace", [][]complex128{{0, 0}, {0, 0}}, model.ReasonZeroTrace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			priors := make([]float64, len(tt.states))
			for i := range priors {
				priors[i] = 0.4
			}
			out := f.Fuse(BuildCorrelation(tt.states), priors)

			assert.True(t, out.Degenerate)
			assert.Equal(t, tt.reason, out.Reason)
			assert.Equal(t, priors, out.Posteriors)
			assert.Equal(t, 0.0, out.Coherence)
			assert.Empty(t, out.Eigenvalues)
		})
	}
}

func TestSpectralFuser_MonotonicBoost(t *testing.T) {
	// Equal priors; a carries more of the dominant pattern than b.
	states := [][]complex128{
		{0.9, 0.1, 0},
		{0.6, 0.4, 0},
		{0.7, 0.3, 0.1},
	}
	priors := []float64{0.1, 0.1, 0.1}

	out := NewSpectralFuser(testParams).Fuse(BuildCorrelation(states), priors)
	require.False(t, out.Degenerate)

	for i := range states {
		for j := range states {
			pi, pj := out.Projections[i], out.Projections[j]
			if pi > pj && pj >= testParams.NoiseThreshold {
				assert.GreaterOrEqual(t, out.Posteriors[i]/priors[i], out.Posteriors[j]/priors[j])
			}
		}
	}
}

func TestSpectralFuser_SuppressesNoise(t *testing.T) {
	states := [][]complex128{
		{1, 0, 0},
		{1, 0, 0},
		{0, 0, 0.01},
	}
	priors := []float64{0.5, 0.5, 0.8}

	out := NewSpectralFuser(testParams).Fuse(BuildCorrelation(states), priors)

	assert.Less(t, out.Projections[2], testParams.NoiseThreshold)
	assert.InDelta(t, 0.08, out.Posteriors[2], 1e-12)
	assert.Less(t, out.Posteriors[2]/priors[2], 1.0)
	assert.Greater(t, out.Posteriors[0], priors[0])

	var sum float64
	for _, p := range out.Projections {
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-9, "projections of a unit vector sum to 1")
}

func TestSpectralFuser_ClampsToOne(t *testing.T) {
	states := [][]complex128{{1}, {1}}
	out := NewSpectralFuser(testParams).Fuse(BuildCorrelation(states), []float64{0.9, 0.9})

	assert.Equal(t, []float64{1, 1}, out.Posteriors)
}

func TestPairwiseFuser_BestNeighbour(t *testing.T) {
	states := [][]complex128{
		{1, 0},
		{1i, 0}, // same pattern, different phase
		{0.6, 0.8},
	}
	priors := []float64{0.4, 0.4, 0.4}

	out := NewPairwiseFuser(testParams).Fuse(BuildCorrelation(states), priors)

	assert.Equal(t, StrategyPairwise, NewPairwiseFuser(testParams).Strategy())
	assert.InDelta(t, 1, out.Projections[0], 1e-12)
	assert.InDelta(t, 0.4*1.5, out.Posteriors[0], 1e-12)
	assert.InDelta(t, 0.4*1.5, out.Posteriors[1], 1e-12)

	// |<s2,s0>|²/(‖s2‖²‖s0‖²) = 0.36 < 0.8
	assert.InDelta(t, 0.36, out.Projections[2], 1e-12)
	assert.InDelta(t, 0.04, out.Posteriors[2], 1e-12)
	assert.Greater(t, out.Coherence, 0.0)
}

func TestFuser_PanicsOnMisalignedPriors(t *testing.T) {
	c := BuildCorrelation([][]complex128{{1}, {1}})
	assert.Panics(t, func() { NewSpectralFuser(testParams).Fuse(c, []float64{0.5}) })
}
