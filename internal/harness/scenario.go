package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sigfuse/internal/engine"
	"github.com/roach88/sigfuse/internal/model"
)

// Scenario is a scripted sequence of engine operations plus the
// expectations checked once it has run.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides individual fields of the reference configuration.
	// It is validated against the same schema as config files.
	Config map[string]any `yaml:"config,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step actions.
const (
	ActionAdd             = "add"
	ActionFuse            = "fuse"
	ActionAdvance         = "advance"
	ActionEvictOlderThan  = "evict_older_than"
	ActionEvictToCapacity = "evict_to_capacity"
)

// Step is one engine operation.
type Step struct {
	Action string `yaml:"action"`

	// ID is the signal id assigned by an add step.
	ID string `yaml:"id,omitempty"`

	engine.SignalInput `yaml:",inline"`

	// By is the wall-clock advance of an advance step.
	By time.Duration `yaml:"by,omitempty"`

	// MaxAge bounds an evict_older_than step.
	MaxAge time.Duration `yaml:"max_age,omitempty"`

	// Capacity bounds an evict_to_capacity step.
	Capacity int `yaml:"capacity,omitempty"`
}

// Assertion types.
const (
	AssertConfidenceIncreased = "confidence_increased"
	AssertConfidenceDecreased = "confidence_decreased"
	AssertCoherence           = "coherence"
	AssertEntropy             = "entropy"
	AssertStability           = "stability"
	AssertSignalCount         = "signal_count"
	AssertDegenerate          = "degenerate"
)

// Assertion validates the outcome of a scenario.
type Assertion struct {
	Type string `yaml:"type"`

	// Signal is the signal id (confidence_increased, confidence_decreased).
	Signal string `yaml:"signal,omitempty"`

	// Round selects a fusion round, 1-based. Zero means the last round.
	Round int `yaml:"round,omitempty"`

	// Min and Max bound coherence and entropy. Either may be omitted.
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// Value is the expected stability label.
	Value string `yaml:"value,omitempty"`

	// Count is the expected number of retained signals.
	Count *int `yaml:"count,omitempty"`

	// Expect is the expected degenerate flag; it defaults to true.
	Expect *bool `yaml:"expect,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadDir loads every *.yaml and *.yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	ids := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, &step, ids); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, ids); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step, ids map[string]bool) error {
	switch step.Action {
	case ActionAdd:
		if step.ID != "" {
			if ids[step.ID] {
				return fmt.Errorf("steps[%d]: duplicate signal id %q", index, step.ID)
			}
			ids[step.ID] = true
		}
	case ActionFuse:
	case ActionAdvance:
		if step.By <= 0 {
			return fmt.Errorf("steps[%d]: by must be positive for advance", index)
		}
	case ActionEvictOlderThan:
		if step.MaxAge < 0 {
			return fmt.Errorf("steps[%d]: max_age must be non-negative", index)
		}
	case ActionEvictToCapacity:
		if step.Capacity < 0 {
			return fmt.Errorf("steps[%d]: capacity must be non-negative", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}
	return nil
}

func validateAssertion(index int, a *Assertion, ids map[string]bool) error {
	if a.Round < 0 {
		return fmt.Errorf("assertions[%d]: round must be non-negative", index)
	}

	switch a.Type {
	case AssertConfidenceIncreased, AssertConfidenceDecreased:
		if a.Signal == "" {
			return fmt.Errorf("assertions[%d]: signal is required for %s", index, a.Type)
		}
		if !ids[a.Signal] {
			return fmt.Errorf("assertions[%d]: signal %q is never added", index, a.Signal)
		}
	case AssertCoherence, AssertEntropy:
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for %s", index, a.Type)
		}
	case AssertStability:
		switch model.Stability(a.Value) {
		case model.StabilityStable, model.StabilityDiverging:
		default:
			return fmt.Errorf("assertions[%d]: value must be %s or %s",
				index, model.StabilityStable, model.StabilityDiverging)
		}
	case AssertSignalCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for signal_count", index)
		}
	case AssertDegenerate:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
