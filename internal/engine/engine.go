package engine

import (
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sigfuse/internal/audit"
	"github.com/roach88/sigfuse/internal/fusion"
	"github.com/roach88/sigfuse/internal/model"
)

// SignalInput is a raw signal record handed to AddSignal.
type SignalInput struct {
	Features   []float64         `json:"features" yaml:"features"`
	Context    float64           `json:"context" yaml:"context"`
	Location   model.Location    `json:"location" yaml:"location"`
	Category   string            `json:"category" yaml:"category"`
	Confidence float64           `json:"confidence" yaml:"confidence"`
	Source     model.SourceClass `json:"source" yaml:"source"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Engine is the single-writer correlation and fusion engine.
//
// Thread-safety model:
//   - every method must be called from one goroutine at a time
//   - accessors return deep copies, so callers may keep them freely
//
// INVARIANTS:
//   - signals are kept in ingestion order; index maps id -> position
//   - every confidence stays within [0,1]
//   - history and audit entries are append-only
type Engine struct {
	cfg       Config
	encoder   fusion.Encoder
	fuser     fusion.Fuser
	stability *fusion.StabilityMonitor
	recorder  *audit.Recorder

	clock  SeqClock
	now    TimeSource
	ids    IDGenerator
	logger *slog.Logger

	signals []model.Signal
	index   map[string]int
	history []model.FusionResult
	state   model.EngineState
}

// EngineOption configures optional collaborators.
type EngineOption func(*Engine)

// WithIDGenerator overrides the UUIDv7 signal id generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithTimeSource overrides the system wall clock.
func WithTimeSource(ts TimeSource) EngineOption {
	return func(e *Engine) {
		e.now = ts
	}
}

// WithClock overrides the logical clock.
func WithClock(c SeqClock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger overrides slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine in the ACCUMULATING state.
// Returns a *ConfigError if cfg is invalid.
func New(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	strategy, _ := fusion.ParseStrategy(cfg.Strategy)
	fuser, err := fusion.NewFuser(strategy, cfg.Params())
	if err != nil {
		return nil, &ConfigError{Field: "strategy", Message: err.Error()}
	}
	cfg.Strategy = string(strategy)

	e := &Engine{
		cfg:       cfg,
		encoder:   fusion.NewEncoder(cfg.FeatureDimension, cfg.PhasePeriod),
		fuser:     fuser,
		stability: fusion.NewStabilityMonitor(cfg.EntropyStabilityThreshold, cfg.EigenvalueFloor),
		recorder:  audit.NewRecorder(),
		clock:     NewClock(),
		now:       SystemTime{},
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		index:     make(map[string]int),
		state:     model.StateAccumulating,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AddSignal validates and encodes a raw signal and appends it to the
// retained set. Valid in every state.
//
// Returns an *InputError (matching ErrInvalidInput) when confidence is
// outside [0,1], features are empty, the location or any number is not
// finite, or the source class is undeclared. Nothing is mutated on error.
func (e *Engine) AddSignal(in SignalInput) (string, error) {
	if !in.Location.Finite() {
		return "", fusion.NewInputError(fusion.ErrCodeMalformedLocation, "location",
			"coordinates (%v, %v) must be finite", in.Location.X, in.Location.Y)
	}
	if !in.Source.Valid() {
		return "", fusion.NewInputError(fusion.ErrCodeUnknownSource, "source", "undeclared source class %d", int(in.Source))
	}
	enc, err := e.encoder.Encode(in.Features, in.Context, in.Confidence)
	if err != nil {
		return "", err
	}

	id := e.ids.Generate()
	if _, exists := e.index[id]; exists {
		return "", fmt.Errorf("add signal %s: %w", id, ErrDuplicateSignal)
	}

	seq := e.clock.Next()
	sig := model.Signal{
		ID:         id,
		Source:     in.Source,
		Timestamp:  e.now.Now().UTC(),
		Location:   in.Location,
		Category:   norm.NFC.String(in.Category),
		Magnitude:  enc.Magnitude,
		Confidence: in.Confidence,
		Phase:      enc.Phase,
		State:      enc.State,
		Metadata:   normalizeMetadata(in.Metadata),
		Seq:        seq,
	}
	e.index[id] = len(e.signals)
	e.signals = append(e.signals, sig)

	e.record(seq, sig.Timestamp, model.OpAddSignal, []string{id}, map[string]float64{
		"confidence": sig.Confidence,
		"magnitude":  sig.Magnitude,
		"phase":      sig.Phase,
		"signals":    float64(len(e.signals)),
	})

	e.logger.Debug("signal added",
		"id", id,
		"source", sig.Source.String(),
		"category", sig.Category,
		"confidence", sig.Confidence,
		"phase", sig.Phase,
		"seq", seq,
	)
	return id, nil
}

// Fuse runs one fusion round over every retained signal, updates their
// confidences and returns the round's immutable result. Valid in every
// state; moves ACCUMULATING to FUSED.
//
// Fuse never fails: empty or degenerate rounds return a neutral result with
// zero coherence and entropy and unchanged confidences.
func (e *Engine) Fuse() model.FusionResult {
	n := len(e.signals)
	states := make([][]complex128, n)
	priors := make([]float64, n)
	ids := make([]string, n)
	for i, s := range e.signals {
		states[i] = s.State
		priors[i] = s.Confidence
		ids[i] = s.ID
	}

	corr := fusion.BuildCorrelation(states)
	outcome := e.fuser.Fuse(corr, priors)

	var (
		entropy   float64
		stability model.Stability
	)
	if outcome.Degenerate {
		stability = e.stability.Record(0)
	} else {
		entropy, stability = e.stability.Observe(outcome.Eigenvalues)
	}

	scores := make([]model.SignalScore, n)
	var boosted, suppressed int
	for i := range e.signals {
		post := outcome.Posteriors[i]
		scores[i] = model.SignalScore{
			ID:         ids[i],
			Prior:      priors[i],
			Posterior:  post,
			Projection: outcome.Projections[i],
		}
		switch {
		case post > priors[i]:
			boosted++
		case post < priors[i]:
			suppressed++
		}
		e.signals[i].Confidence = post
	}

	seq := e.clock.Next()
	result := model.FusionResult{
		Round:             len(e.history) + 1,
		Seq:               seq,
		Strategy:          string(e.fuser.Strategy()),
		Timestamp:         e.now.Now().UTC(),
		Scores:            scores,
		CoherenceStrength: outcome.Coherence,
		Entropy:           entropy,
		Stability:         stability,
		Consensus:         fusion.ExtractPattern(states, outcome.Posteriors, e.cfg.FeatureDimension),
		ReferencePattern:  model.NewComplexVector(outcome.Reference),
		Eigenvalues:       outcome.Eigenvalues,
		Degenerate:        outcome.Degenerate,
		Reason:            outcome.Reason,
	}
	e.history = append(e.history, result)
	e.state = model.StateFused

	e.record(seq, result.Timestamp, model.OpFuse, ids, map[string]float64{
		"signals":    float64(n),
		"coherence":  result.CoherenceStrength,
		"entropy":    result.Entropy,
		"boosted":    float64(boosted),
		"suppressed": float64(suppressed),
		"degenerate": boolMetric(result.Degenerate),
		"diverging":  boolMetric(result.Stability == model.StabilityDiverging),
	})

	switch {
	case result.Degenerate:
		e.logger.Debug("fusion round degenerate",
			"round", result.Round,
			"reason", result.Reason,
			"signals", n,
		)
	case result.Stability == model.StabilityDiverging:
		e.logger.Warn("fusion round diverging",
			"round", result.Round,
			"entropy", result.Entropy,
			"coherence", result.CoherenceStrength,
			"signals", n,
		)
	default:
		e.logger.Info("fusion round complete",
			"round", result.Round,
			"coherence", result.CoherenceStrength,
			"entropy", result.Entropy,
			"boosted", boosted,
			"suppressed", suppressed,
		)
	}

	return result.Clone()
}

// Signal returns a copy of a retained signal.
func (e *Engine) Signal(id string) (model.Signal, error) {
	i, ok := e.index[id]
	if !ok {
		return model.Signal{}, fmt.Errorf("%w: %s", ErrSignalNotFound, id)
	}
	return e.signals[i].Clone(), nil
}

// Signals returns copies of every retained signal in ingestion order.
func (e *Engine) Signals() []model.Signal {
	out := make([]model.Signal, len(e.signals))
	for i, s := range e.signals {
		out[i] = s.Clone()
	}
	return out
}

// Len returns the number of retained signals.
func (e *Engine) Len() int {
	return len(e.signals)
}

// History returns copies of every fusion result, oldest first.
func (e *Engine) History() []model.FusionResult {
	out := make([]model.FusionResult, len(e.history))
	for i, r := range e.history {
		out[i] = r.Clone()
	}
	return out
}

// EntropyHistory returns the entropy recorded for every round.
func (e *Engine) EntropyHistory() []float64 {
	return e.stability.History()
}

// State returns the lifecycle state.
func (e *Engine) State() model.EngineState {
	return e.state
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// AuditLog returns copies of every audit entry.
func (e *Engine) AuditLog() []model.AuditEntry {
	return e.recorder.Entries()
}

// AuditSince returns copies of the audit entries with seq greater than seq.
func (e *Engine) AuditSince(seq int64) []model.AuditEntry {
	return e.recorder.Since(seq)
}

// VerifyAudit checks the audit hash chain.
func (e *Engine) VerifyAudit() error {
	return e.recorder.Verify()
}

// record appends an audit entry. A failure here means a metric could not be
// hashed; the operation itself already succeeded, so it is logged and the
// engine continues.
func (e *Engine) record(seq int64, at time.Time, op model.Operation, subjects []string, metrics map[string]float64) {
	if _, err := e.recorder.Record(seq, at, op, subjects, metrics); err != nil {
		e.logger.Error("audit record failed",
			"error", err,
			"operation", op,
			"seq", seq,
		)
	}
}

func normalizeMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[norm.NFC.String(k)] = norm.NFC.String(v)
	}
	return out
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
