package harness

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sigfuse/internal/config"
	"github.com/roach88/sigfuse/internal/engine"
	"github.com/roach88/sigfuse/internal/testutil"
)

// Harness executes one scenario against a fresh engine.
type Harness struct {
	engine *engine.Engine
	ids    *testutil.SequenceGenerator
	time   *testutil.FakeTime
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Resolve the config overrides through the config schema
//  2. Build an engine with deterministic ids and clocks
//  3. Execute steps in order
//  4. Evaluate assertions
//
// A non-nil error means the scenario could not run (bad config or an
// input the engine rejected); assertion failures are reported on the
// result instead.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := scenarioConfig(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	h := &Harness{
		ids:    testutil.NewSequenceGenerator(),
		time:   testutil.NewFakeTime(testutil.Epoch),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	h.engine, err = engine.New(cfg,
		engine.WithIDGenerator(h.ids),
		engine.WithTimeSource(h.time),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(i, step, result); err != nil {
			return nil, fmt.Errorf("scenario %s: steps[%d] (%s): %w", scenario.Name, i, step.Action, err)
		}
	}
	result.Final = h.engine.Signals()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeStep(index int, step Step, result *Result) error {
	event := StepEvent{Index: index, Action: step.Action}

	switch step.Action {
	case ActionAdd:
		if step.ID != "" {
			h.ids.Push(step.ID)
		}
		id, err := h.engine.AddSignal(step.SignalInput)
		if err != nil {
			return err
		}
		event.ID = id
		result.Initial[id] = step.Confidence

	case ActionFuse:
		res := h.engine.Fuse()
		result.Rounds = append(result.Rounds, res)
		event.Round = res.Round

	case ActionAdvance:
		h.time.Advance(step.By)

	case ActionEvictOlderThan:
		event.Evicted = h.engine.EvictOlderThan(step.MaxAge)

	case ActionEvictToCapacity:
		event.Evicted = h.engine.EvictToCapacity(step.Capacity)

	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}

	result.Steps = append(result.Steps, event)
	return nil
}

// scenarioConfig overlays the scenario's overrides on the schema defaults.
func scenarioConfig(s *Scenario) (engine.Config, error) {
	if len(s.Config) == 0 {
		return config.Default()
	}
	data, err := json.Marshal(s.Config)
	if err != nil {
		return engine.Config{}, fmt.Errorf("failed to encode config overrides: %w", err)
	}
	return config.LoadBytes(s.Name+".json", data)
}
