package harness

import (
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sigfuse/internal/model"
)

// Report is the golden view of a scenario run. Floats are rounded to four
// decimals so reports survive harmless floating-point noise.
type Report struct {
	ScenarioName string
	Rounds       []model.FusionResult
}

// toCanonicalMap converts a Report to a map[string]any for canonical JSON.
func (r *Report) toCanonicalMap() map[string]any {
	rounds := make([]any, len(r.Rounds))
	for i, res := range r.Rounds {
		confidences := make(map[string]string, len(res.Scores))
		for _, s := range res.Scores {
			confidences[s.ID] = formatFixed(s.Posterior)
		}
		consensus := make([]string, len(res.Consensus))
		for j, c := range res.Consensus {
			consensus[j] = formatFixed(c)
		}

		round := map[string]any{
			"round":       res.Round,
			"coherence":   formatFixed(res.CoherenceStrength),
			"entropy":     formatFixed(res.Entropy),
			"stability":   string(res.Stability),
			"confidences": confidences,
			"consensus":   consensus,
		}
		if res.Degenerate {
			round["degenerate"] = res.Reason
		}
		rounds[i] = round
	}

	return map[string]any{
		"scenario_name": r.ScenarioName,
		"rounds":        rounds,
	}
}

// Marshal renders the report as canonical JSON.
func (r *Report) Marshal() ([]byte, error) {
	return model.MarshalCanonical(r.toCanonicalMap())
}

// formatFixed renders f with four decimals; negative zero prints as 0.
func formatFixed(f float64) string {
	s := strconv.FormatFloat(f, 'f', 4, 64)
	if s == "-0.0000" {
		return "0.0000"
	}
	return s
}

// RunWithGolden executes a scenario and compares its report against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	report := Report{ScenarioName: scenarioName, Rounds: result.Rounds}
	data, err := report.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
