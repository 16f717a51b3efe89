package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/sigfuse/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Rounds   []model.FusionResult
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rounds) > 0 {
		fmt.Fprintf(&buf, "\nRounds:\n")
		for _, r := range e.Rounds {
			fmt.Fprintf(&buf, "  %s\n", r)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions passed.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	errs := []string{}
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertConfidenceIncreased, AssertConfidenceDecreased:
		return assertConfidenceMoved(result, a)
	case AssertCoherence:
		return assertRoundRange(result, a, "coherence", func(r model.FusionResult) float64 {
			return r.CoherenceStrength
		})
	case AssertEntropy:
		return assertRoundRange(result, a, "entropy", func(r model.FusionResult) float64 {
			return r.Entropy
		})
	case AssertStability:
		return assertStability(result, a)
	case AssertSignalCount:
		return assertSignalCount(result, a)
	case AssertDegenerate:
		return assertDegenerate(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertConfidenceMoved compares a signal's confidence before and after.
// Without a round it compares the final confidence with the confidence the
// signal was added with; with a round it compares that round's posterior
// with its prior.
func assertConfidenceMoved(result *Result, a Assertion) error {
	increase := a.Type == AssertConfidenceIncreased
	direction := "decrease"
	if increase {
		direction = "increase"
	}

	var before, after float64
	if a.Round > 0 {
		r, err := roundFor(result, a)
		if err != nil {
			return err
		}
		score, ok := r.Score(a.Signal)
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("signal %s scored in round %d", a.Signal, a.Round),
				Actual:   "not scored",
				Rounds:   result.Rounds,
			}
		}
		before, after = score.Prior, score.Posterior
	} else {
		initial, ok := result.Initial[a.Signal]
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("signal %s added", a.Signal),
				Actual:   "never added",
			}
		}
		final, ok := result.FinalConfidence(a.Signal)
		if !ok {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("signal %s retained", a.Signal),
				Actual:   "evicted",
				Rounds:   result.Rounds,
			}
		}
		before, after = initial, final
	}

	if (increase && after > before) || (!increase && after < before) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("confidence of %s to %s from %.4f", a.Signal, direction, before),
		Actual:   fmt.Sprintf("%.4f", after),
		Rounds:   result.Rounds,
	}
}

func assertRoundRange(result *Result, a Assertion, name string, value func(model.FusionResult) float64) error {
	r, err := roundFor(result, a)
	if err != nil {
		return err
	}
	v := value(r)
	if (a.Min == nil || v >= *a.Min) && (a.Max == nil || v <= *a.Max) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s of round %d within %s", name, r.Round, describeRange(a.Min, a.Max)),
		Actual:   fmt.Sprintf("%.4f", v),
		Rounds:   result.Rounds,
	}
}

func assertStability(result *Result, a Assertion) error {
	r, err := roundFor(result, a)
	if err != nil {
		return err
	}
	if r.Stability == model.Stability(a.Value) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("round %d %s", r.Round, a.Value),
		Actual:   string(r.Stability),
		Rounds:   result.Rounds,
	}
}

func assertSignalCount(result *Result, a Assertion) error {
	if a.Count == nil {
		return fmt.Errorf("count is required for signal_count")
	}
	if len(result.Final) == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d signals", *a.Count),
		Actual:   fmt.Sprintf("%d signals", len(result.Final)),
	}
}

func assertDegenerate(result *Result, a Assertion) error {
	r, err := roundFor(result, a)
	if err != nil {
		return err
	}
	want := true
	if a.Expect != nil {
		want = *a.Expect
	}
	if r.Degenerate == want {
		return nil
	}
	actual := "not degenerate"
	if r.Degenerate {
		actual = "degenerate (" + r.Reason + ")"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("round %d degenerate=%t", r.Round, want),
		Actual:   actual,
		Rounds:   result.Rounds,
	}
}

func roundFor(result *Result, a Assertion) (model.FusionResult, error) {
	r, ok := result.round(a.Round)
	if !ok {
		want := "a fusion round"
		if a.Round > 0 {
			want = fmt.Sprintf("round %d", a.Round)
		}
		return model.FusionResult{}, &AssertionError{
			Type:     a.Type,
			Expected: want,
			Actual:   fmt.Sprintf("%d rounds", len(result.Rounds)),
		}
	}
	return r, nil
}

func describeRange(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return fmt.Sprintf("[%g, %g]", *lo, *hi)
	case lo != nil:
		return fmt.Sprintf("[%g, +inf)", *lo)
	default:
		return fmt.Sprintf("(-inf, %g]", *hi)
	}
}
