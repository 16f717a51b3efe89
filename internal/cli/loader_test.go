package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigfuse/internal/model"
)

func TestLoadSignals_JSONL(t *testing.T) {
	inputs, err := LoadSignals("testdata/signals.jsonl")
	require.NoError(t, err)
	require.Len(t, inputs, 2, "comments and blank lines are skipped")

	assert.Equal(t, []float64{1, 0, 0, 0}, inputs[0].Features)
	assert.Equal(t, 0.9, inputs[0].Confidence)
	assert.Equal(t, model.SourceSensor, inputs[0].Source)
	assert.Equal(t, model.Location{X: 1, Y: 2}, inputs[0].Location)
	assert.Equal(t, model.SourceCommunity, inputs[1].Source)
	assert.Equal(t, map[string]string{"station": "north"}, inputs[1].Metadata)
}

func TestLoadSignals_YAML(t *testing.T) {
	inputs, err := LoadSignals("testdata/signals.yaml")
	require.NoError(t, err)
	require.Len(t, inputs, 3)

	assert.Equal(t, 12.0, inputs[2].Context)
	assert.Equal(t, model.SourceAnonymous, inputs[2].Source)
	assert.Equal(t, "thermal", inputs[1].Category)
}

func TestLoadSignals_JSONList(t *testing.T) {
	inputs, err := LoadSignals("testdata/signals.json")
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, model.SourceVerified, inputs[1].Source)
}

func TestLoadSignals_EmptyYAML(t *testing.T) {
	inputs, err := LoadSignals("testdata/empty.yaml")
	require.NoError(t, err)
	assert.Empty(t, inputs)
}

func TestLoadSignals_UnknownFieldReportsRecord(t *testing.T) {
	for _, path := range []string{"testdata/unknown_field.jsonl", "testdata/unknown_field.yaml"} {
		t.Run(path, func(t *testing.T) {
			_, err := LoadSignals(path)
			require.Error(t, err)

			var sfe *SignalFileError
			require.ErrorAs(t, err, &sfe)
			assert.Equal(t, 2, sfe.Record)
			assert.Contains(t, err.Error(), "record 2")
		})
	}
}

func TestLoadSignals_UnsupportedFormat(t *testing.T) {
	_, err := LoadSignals("testdata/config.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported signals format ".csv"`)
}

func TestLoadSignals_MissingFile(t *testing.T) {
	_, err := LoadSignals("testdata/nope.jsonl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open signals file")
}
