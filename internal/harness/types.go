package harness

import "github.com/roach88/sigfuse/internal/model"

// StepEvent records what one step did.
type StepEvent struct {
	Index   int      `json:"index"`
	Action  string   `json:"action"`
	ID      string   `json:"id,omitempty"`
	Round   int      `json:"round,omitempty"`
	Evicted []string `json:"evicted,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Errors contains assertion failure messages.
	Errors []string `json:"errors,omitempty"`

	// Steps has one event per executed step.
	Steps []StepEvent `json:"steps"`

	// Rounds holds every fusion result in order.
	Rounds []model.FusionResult `json:"rounds"`

	// Initial maps each added signal id to the confidence it was added with.
	Initial map[string]float64 `json:"initial"`

	// Final holds the retained signals after the last step.
	Final []model.Signal `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Errors:  []string{},
		Steps:   []StepEvent{},
		Rounds:  []model.FusionResult{},
		Initial: make(map[string]float64),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// FinalConfidence returns the retained confidence of a signal.
func (r *Result) FinalConfidence(id string) (float64, bool) {
	for _, s := range r.Final {
		if s.ID == id {
			return s.Confidence, true
		}
	}
	return 0, false
}

// round returns the 1-based round n, or the last round when n is zero.
func (r *Result) round(n int) (model.FusionResult, bool) {
	if len(r.Rounds) == 0 {
		return model.FusionResult{}, false
	}
	if n == 0 {
		return r.Rounds[len(r.Rounds)-1], true
	}
	if n > len(r.Rounds) {
		return model.FusionResult{}, false
	}
	return r.Rounds[n-1], true
}
