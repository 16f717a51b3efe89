package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero dimension", func(c *Config) { c.FeatureDimension = 0 }, "feature_dimension"},
		{"unknown strategy", func(c *Config) { c.Strategy = "majority" }, "strategy"},
		{"negative boost", func(c *Config) { c.BoostFactor = -1 }, "boost_factor"},
		{"suppression of one", func(c *Config) { c.SuppressionFactor = 1 }, "suppression_factor"},
		{"noise above one", func(c *Config) { c.NoiseThreshold = 1.01 }, "noise_threshold"},
		{"nan threshold", func(c *Config) { c.EntropyStabilityThreshold = math.NaN() }, "entropy_stability_threshold"},
		{"zero floor", func(c *Config) { c.EigenvalueFloor = 0 }, "eigenvalue_floor"},
		{"zero period", func(c *Config) { c.PhasePeriod = 0 }, "phase_period"},
		{"pairwise threshold", func(c *Config) { c.PairwiseThreshold = 2 }, "pairwise_threshold"},
		{"infinite pairwise boost", func(c *Config) { c.PairwiseBoost = math.Inf(1) }, "pairwise_boost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestConfig_ValidateBoundaries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SuppressionFactor = 0
	cfg.NoiseThreshold = 1
	cfg.PairwiseThreshold = 0
	cfg.BoostFactor = 0
	assert.NoError(t, cfg.Validate())
}

func TestConfigError_Message(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EigenvalueFloor = 1
	err := cfg.Validate()
	assert.EqualError(t, err, "invalid config: eigenvalue_floor: out of range (0, 1)")
}
