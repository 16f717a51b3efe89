package engine

import (
	"math"
	"strconv"

	"github.com/roach88/sigfuse/internal/fusion"
)

// Reference values for the tunable constants. They were chosen
// empirically; only their relative magnitudes carry meaning.
const (
	DefaultFeatureDimension          = 8
	DefaultBoostFactor               = 5.0
	DefaultSuppressionFactor         = 0.1
	DefaultNoiseThreshold            = 0.05
	DefaultEntropyStabilityThreshold = 0.5
	DefaultPairwiseThreshold         = 0.8
	DefaultPairwiseBoost             = 0.5
)

// Config is the construction-time configuration of an Engine.
// FeatureDimension is fixed for the lifetime of the engine.
type Config struct {
	FeatureDimension          int     `json:"feature_dimension"`
	Strategy                  string  `json:"strategy"`
	BoostFactor               float64 `json:"boost_factor"`
	SuppressionFactor         float64 `json:"suppression_factor"`
	NoiseThreshold            float64 `json:"noise_threshold"`
	EntropyStabilityThreshold float64 `json:"entropy_stability_threshold"`
	EigenvalueFloor           float64 `json:"eigenvalue_floor"`
	PhasePeriod               float64 `json:"phase_period"`
	PairwiseThreshold         float64 `json:"pairwise_threshold"`
	PairwiseBoost             float64 `json:"pairwise_boost"`
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		FeatureDimension:          DefaultFeatureDimension,
		Strategy:                  string(fusion.StrategySpectral),
		BoostFactor:               DefaultBoostFactor,
		SuppressionFactor:         DefaultSuppressionFactor,
		NoiseThreshold:            DefaultNoiseThreshold,
		EntropyStabilityThreshold: DefaultEntropyStabilityThreshold,
		EigenvalueFloor:           fusion.DefaultEigenvalueFloor,
		PhasePeriod:               fusion.DefaultPhasePeriod,
		PairwiseThreshold:         DefaultPairwiseThreshold,
		PairwiseBoost:             DefaultPairwiseBoost,
	}
}

// Validate checks every field and returns the first violation as a
// *ConfigError.
func (c Config) Validate() error {
	if c.FeatureDimension <= 0 {
		return &ConfigError{Field: "feature_dimension", Message: "must be positive"}
	}
	if _, err := fusion.ParseStrategy(c.Strategy); err != nil {
		return &ConfigError{Field: "strategy", Message: err.Error()}
	}

	checks := []struct {
		field    string
		value    float64
		min, max float64
		minOpen  bool
		maxOpen  bool
	}{
		{"boost_factor", c.BoostFactor, 0, math.Inf(1), false, true},
		{"suppression_factor", c.SuppressionFactor, 0, 1, false, true},
		{"noise_threshold", c.NoiseThreshold, 0, 1, false, false},
		{"entropy_stability_threshold", c.EntropyStabilityThreshold, 0, math.Inf(1), false, true},
		{"eigenvalue_floor", c.EigenvalueFloor, 0, 1, true, true},
		{"phase_period", c.PhasePeriod, 0, math.Inf(1), true, true},
		{"pairwise_threshold", c.PairwiseThreshold, 0, 1, false, false},
		{"pairwise_boost", c.PairwiseBoost, 0, math.Inf(1), false, true},
	}
	for _, ck := range checks {
		v := ck.value
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigError{Field: ck.field, Message: "must be finite"}
		}
		if v < ck.min || (ck.minOpen && v == ck.min) || v > ck.max || (ck.maxOpen && v == ck.max) {
			return &ConfigError{Field: ck.field, Message: "out of range " + interval(ck.min, ck.max, ck.minOpen, ck.maxOpen)}
		}
	}
	return nil
}

// Params returns the update-law constants.
func (c Config) Params() fusion.Params {
	return fusion.Params{
		BoostFactor:       c.BoostFactor,
		SuppressionFactor: c.SuppressionFactor,
		NoiseThreshold:    c.NoiseThreshold,
		PairwiseThreshold: c.PairwiseThreshold,
		PairwiseBoost:     c.PairwiseBoost,
	}
}

func interval(lo, hi float64, loOpen, hiOpen bool) string {
	l, r := "[", "]"
	if loOpen {
		l = "("
	}
	if hiOpen {
		r = ")"
	}
	return l + formatBound(lo) + ", " + formatBound(hi) + r
}

func formatBound(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
