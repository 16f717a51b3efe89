package engine

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigfuse/internal/fusion"
	"github.com/roach88/sigfuse/internal/model"
	"github.com/roach88/sigfuse/internal/testutil"
)

const tol = 1e-9

type harness struct {
	engine *Engine
	time   *testutil.FakeTime
	ids    *testutil.SequenceGenerator
}

func newTestEngine(t *testing.T, cfg Config, ids ...string) *harness {
	t.Helper()
	h := &harness{
		time: testutil.NewFakeTime(testutil.Epoch),
		ids:  testutil.NewSequenceGenerator(ids...),
	}
	e, err := New(cfg,
		WithTimeSource(h.time),
		WithIDGenerator(h.ids),
		WithClock(testutil.NewDeterministicClock()),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	require.NoError(t, err)
	h.engine = e
	return h
}

func dim4() Config {
	cfg := DefaultConfig()
	cfg.FeatureDimension = 4
	return cfg
}

func input(features []float64, context, confidence float64) SignalInput {
	return SignalInput{
		Features:   features,
		Context:    context,
		Confidence: confidence,
		Source:     model.SourceSensor,
		Category:   "thermal",
	}
}

func mustAdd(t *testing.T, e *Engine, in SignalInput) string {
	t.Helper()
	id, err := e.AddSignal(in)
	require.NoError(t, err)
	return id
}

func confidence(t *testing.T, e *Engine, id string) float64 {
	t.Helper()
	s, err := e.Signal(id)
	require.NoError(t, err)
	return s.Confidence
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SuppressionFactor = 1.5

	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "suppression_factor", ce.Field)
}

func TestNew_StartsAccumulating(t *testing.T) {
	h := newTestEngine(t, DefaultConfig())
	assert.Equal(t, model.StateAccumulating, h.engine.State())
	assert.Equal(t, 0, h.engine.Len())
	assert.Empty(t, h.engine.History())
	assert.Equal(t, "spectral", h.engine.Config().Strategy)
}

// Two identical, in-phase features: the weaker one is corroborated.
func TestScenario_CorroboratingPair(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")
	e := h.engine

	a := mustAdd(t, e, input([]float64{1, 0, 0, 0}, 0, 0.9))
	b := mustAdd(t, e, input([]float64{1, 0, 0, 0}, 0, 0.3))

	res := e.Fuse()

	assert.False(t, res.Degenerate)
	assert.InDelta(t, 1.0, res.CoherenceStrength, tol)
	assert.InDelta(t, 0.0, res.Entropy, tol)
	assert.Equal(t, model.StabilityStable, res.Stability)

	assert.Greater(t, confidence(t, e, b), 0.3)
	assert.InDelta(t, 0.45, confidence(t, e, b), tol)
	assert.InDelta(t, 1.0, confidence(t, e, a), tol)

	require.Len(t, res.Consensus, 4)
	assert.InDelta(t, (1.0*0.9+0.45*0.3)/1.45, res.Consensus[0], tol)
	assert.Equal(t, model.StateFused, e.State())
}

// An orthogonal, out-of-phase signal is suppressed.
func TestScenario_OrthogonalSignalSuppressed(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b", "c")
	e := h.engine

	mustAdd(t, e, input([]float64{1, 0, 0, 0}, 0, 0.9))
	mustAdd(t, e, input([]float64{1, 0, 0, 0}, 0, 0.3))
	e.Fuse()

	c := mustAdd(t, e, input([]float64{0, 0, 0, 1}, 12, 0.5))
	res := e.Fuse()

	assert.Less(t, confidence(t, e, c), 0.5)
	assert.InDelta(t, 0.05, confidence(t, e, c), tol)

	score, ok := res.Score(c)
	require.True(t, ok)
	assert.InDelta(t, 0.0, score.Projection, 1e-9)
	assert.Less(t, score.Multiplier(), 1.0)

	// The new, contradicting evidence raises entropy from 0 to ~0.52.
	assert.InDelta(t, 0.9/1.15, res.CoherenceStrength, 1e-9)
	assert.Greater(t, res.Entropy, 0.5)
	assert.Equal(t, model.StabilityDiverging, res.Stability)
}

// With a repeated leading eigenvalue the reference pattern is whichever
// vector of the tied eigenspace the solver returns. For the embedding of a
// diagonal matrix that is the first basis vector, so the earlier signal wins.
func TestFuse_TiedLeadingEigenvalueFavoursFirstSignal(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")
	e := h.engine

	a := mustAdd(t, e, input([]float64{1, 0, 0, 0}, 0, 0.5))
	b := mustAdd(t, e, input([]float64{0, 1, 0, 0}, 0, 0.5))
	res := e.Fuse()

	require.False(t, res.Degenerate)
	require.Len(t, res.Eigenvalues, 2)
	assert.InDelta(t, 0.5, res.Eigenvalues[0], 1e-9)
	assert.InDelta(t, 0.5, res.Eigenvalues[1], 1e-9)

	assert.InDelta(t, 1.0, confidence(t, e, a), tol)
	assert.InDelta(t, 0.05, confidence(t, e, b), tol)
}

func TestScenario_EvictOldestOnly(t *testing.T) {
	h := newTestEngine(t, dim4(), "old", "mid", "new")
	e := h.engine

	mustAdd(t, e, input([]float64{1, 0, 0, 0}, 0, 0.5))
	h.time.Advance(time.Hour)
	mustAdd(t, e, input([]float64{0, 1, 0, 0}, 0, 0.5))
	h.time.Advance(time.Hour)
	mustAdd(t, e, input([]float64{0, 0, 1, 0}, 0, 0.5))
	e.Fuse()
	before := e.Signals()

	removed := e.EvictOlderThan(90 * time.Minute)

	assert.Equal(t, []string{"old"}, removed)
	require.Equal(t, 2, e.Len())
	after := e.Signals()
	assert.Equal(t, before[1:], after)

	_, err := e.Signal("old")
	assert.ErrorIs(t, err, ErrSignalNotFound)
	assert.Len(t, e.History(), 1, "eviction leaves history untouched")
}

func TestScenario_FuseWithNoSignals(t *testing.T) {
	h := newTestEngine(t, dim4())

	res := h.engine.Fuse()

	assert.True(t, res.Degenerate)
	assert.Equal(t, model.ReasonNoSignals, res.Reason)
	assert.Equal(t, 0.0, res.Entropy)
	assert.Equal(t, 0.0, res.CoherenceStrength)
	assert.Equal(t, []float64{0, 0, 0, 0}, res.Consensus)
	assert.Empty(t, res.Scores)
	assert.Equal(t, model.StabilityStable, res.Stability)
	assert.Equal(t, model.StateFused, h.engine.State())
}

func TestFuse_SingleSignalIsNeutral(t *testing.T) {
	h := newTestEngine(t, dim4(), "only")
	mustAdd(t, h.engine, input([]float64{0.2, 0.4, 0, 0}, 3, 0.6))

	res := h.engine.Fuse()

	assert.True(t, res.Degenerate)
	assert.Equal(t, model.ReasonSingleSignal, res.Reason)
	assert.Equal(t, 0.6, confidence(t, h.engine, "only"))
}

func TestFuse_ZeroTraceIsNeutral(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0))
	mustAdd(t, h.engine, input([]float64{0, 1, 0, 0}, 0, 0))

	res := h.engine.Fuse()

	assert.True(t, res.Degenerate)
	assert.Equal(t, model.ReasonZeroTrace, res.Reason)
	assert.Equal(t, []float64{0, 0, 0, 0}, res.Consensus)
}

func TestFuse_EigenvaluesSumToOne(t *testing.T) {
	h := newTestEngine(t, dim4())
	mustAdd(t, h.engine, input([]float64{1, 0.5, 0, 0}, 1, 0.7))
	mustAdd(t, h.engine, input([]float64{0, 1, 0.5, 0}, 5, 0.4))
	mustAdd(t, h.engine, input([]float64{0.3, 0, 0, 1}, 17, 0.9))

	res := h.engine.Fuse()

	var sum float64
	for _, l := range res.Eigenvalues {
		assert.GreaterOrEqual(t, l, -1e-9)
		sum += l
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, res.Eigenvalues[0], res.CoherenceStrength, 0)
}

func TestFuse_Deterministic(t *testing.T) {
	run := func() []model.FusionResult {
		h := newTestEngine(t, dim4())
		mustAdd(t, h.engine, input([]float64{1, 0.2, 0, 0}, 2, 0.8))
		mustAdd(t, h.engine, input([]float64{0.9, 0.1, 0, 0.1}, 3, 0.4))
		mustAdd(t, h.engine, input([]float64{0, 0, 1, 0}, 20, 0.6))
		return []model.FusionResult{h.engine.Fuse(), h.engine.Fuse()}
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestFuse_ConfidencesStayBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for _, strategy := range []fusion.Strategy{fusion.StrategySpectral, fusion.StrategyPairwise} {
		t.Run(string(strategy), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Strategy = string(strategy)
			cfg.BoostFactor = 50
			h := newTestEngine(t, cfg)

			for round := 0; round < 10; round++ {
				for i := 0; i < 3; i++ {
					features := make([]float64, cfg.FeatureDimension)
					for k := range features {
						features[k] = rng.NormFloat64()
					}
					mustAdd(t, h.engine, input(features, rng.Float64()*48, rng.Float64()))
				}
				res := h.engine.Fuse()
				for _, s := range res.Scores {
					assert.GreaterOrEqual(t, s.Posterior, 0.0)
					assert.LessOrEqual(t, s.Posterior, 1.0)
				}
				assert.GreaterOrEqual(t, res.Entropy, 0.0)
			}
		})
	}
}

func TestFuse_PairwiseStrategy(t *testing.T) {
	cfg := dim4()
	cfg.Strategy = "pairwise"
	h := newTestEngine(t, cfg, "a", "b", "c")
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.5))
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.5))
	mustAdd(t, h.engine, input([]float64{0, 0, 1, 0}, 0, 0.5))

	res := h.engine.Fuse()

	assert.Equal(t, "pairwise", res.Strategy)
	assert.InDelta(t, 0.75, confidence(t, h.engine, "a"), tol)
	assert.InDelta(t, 0.75, confidence(t, h.engine, "b"), tol)
	assert.InDelta(t, 0.05, confidence(t, h.engine, "c"), tol)
}

func TestAddSignal_InvalidInputDoesNotMutate(t *testing.T) {
	tests := []struct {
		name string
		in   SignalInput
		code fusion.InputErrorCode
	}{
		{"confidence above one", input([]float64{1}, 0, 1.2), fusion.ErrCodeConfidenceRange},
		{"negative confidence", input([]float64{1}, 0, -0.1), fusion.ErrCodeConfidenceRange},
		{"empty features", input(nil, 0, 0.5), fusion.ErrCodeEmptyFeatures},
		{"nan feature", input([]float64{math.NaN()}, 0, 0.5), fusion.ErrCodeNonFinite},
		{"infinite context", input([]float64{1}, math.Inf(1), 0.5), fusion.ErrCodeNonFinite},
		{"bad location", func() SignalInput {
			in := input([]float64{1}, 0, 0.5)
			in.Location = model.Location{X: math.NaN()}
			return in
		}(), fusion.ErrCodeMalformedLocation},
		{"undeclared source", func() SignalInput {
			in := input([]float64{1}, 0, 0.5)
			in.Source = model.SourceClass(42)
			return in
		}(), fusion.ErrCodeUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestEngine(t, dim4())
			before := h.engine.ExportState()

			_, err := h.engine.AddSignal(tt.in)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.True(t, IsInvalidInput(err))
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.code, ie.Code)
			assert.Equal(t, before, h.engine.ExportState())
		})
	}
}

func TestAddSignal_NormalizesText(t *testing.T) {
	h := newTestEngine(t, dim4(), "s")
	in := input([]float64{1, 0, 0, 0}, 0, 0.5)
	in.Category = "cafe\u0301"
	in.Metadata = map[string]string{"re\u0301gion": "nord"}

	mustAdd(t, h.engine, in)

	s, err := h.engine.Signal("s")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", s.Category)
	assert.Equal(t, map[string]string{"r\u00e9gion": "nord"}, s.Metadata)
	assert.Equal(t, testutil.Epoch, s.Timestamp)
	assert.Equal(t, int64(1), s.Seq)
}

func TestAddSignal_DuplicateID(t *testing.T) {
	h := newTestEngine(t, dim4(), "same", "same")
	mustAdd(t, h.engine, input([]float64{1}, 0, 0.5))

	_, err := h.engine.AddSignal(input([]float64{1}, 0, 0.5))
	assert.ErrorIs(t, err, ErrDuplicateSignal)
	assert.Equal(t, 1, h.engine.Len())
}

func TestAccessors_ReturnCopies(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.9))
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.3))
	h.engine.Fuse()

	sigs := h.engine.Signals()
	sigs[0].State[0] = 99
	hist := h.engine.History()
	hist[0].Consensus[0] = 99

	s, _ := h.engine.Signal("a")
	assert.NotEqual(t, complex(99, 0), s.State[0])
	assert.NotEqual(t, 99.0, h.engine.History()[0].Consensus[0])
}

func TestEvictToCapacity(t *testing.T) {
	h := newTestEngine(t, dim4(), "s1", "s2", "s3", "s4")
	for i := 0; i < 4; i++ {
		mustAdd(t, h.engine, input([]float64{1, float64(i), 0, 0}, 0, 0.5))
	}

	removed := h.engine.EvictToCapacity(2)

	assert.Equal(t, []string{"s1", "s2"}, removed)
	ids := []string{}
	for _, s := range h.engine.Signals() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"s3", "s4"}, ids)

	assert.Empty(t, h.engine.EvictToCapacity(10))
	assert.Panics(t, func() { h.engine.EvictToCapacity(-1) })
}

func TestAudit_RecordsEveryOperation(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.9))
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.3))
	h.engine.Fuse()
	h.engine.EvictToCapacity(1)

	log := h.engine.AuditLog()
	require.Len(t, log, 4)
	assert.Equal(t, model.OpAddSignal, log[0].Operation)
	assert.Equal(t, []string{"a"}, log[0].Subjects)
	assert.Equal(t, model.OpFuse, log[2].Operation)
	assert.Equal(t, []string{"a", "b"}, log[2].Subjects)
	assert.InDelta(t, 1.0, log[2].Metrics["coherence"], tol)
	assert.Equal(t, 2.0, log[2].Metrics["boosted"])
	assert.Equal(t, model.OpEvict, log[3].Operation)
	assert.Equal(t, []string{"a"}, log[3].Subjects)

	for i, entry := range log {
		assert.Equal(t, int64(i+1), entry.Seq)
	}
	require.NoError(t, h.engine.VerifyAudit())
	assert.Len(t, h.engine.AuditSince(2), 2)
}

func TestExportRestore_Lossless(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b", "c")
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.9))
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 3, 0.3))
	h.engine.Fuse()
	in := input([]float64{0, 0.5, 0, 1}, 12, 0.5)
	in.Metadata = map[string]string{"station": "n-7"}
	in.Location = model.Location{X: 12.5, Y: -3.25}
	mustAdd(t, h.engine, in)
	h.engine.Fuse()

	snap := h.engine.ExportState()
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded model.Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := Restore(decoded, WithTimeSource(h.time))
	require.NoError(t, err)

	assert.Equal(t, h.engine.Signals(), restored.Signals())
	assert.Equal(t, h.engine.History(), restored.History())
	assert.Equal(t, h.engine.EntropyHistory(), restored.EntropyHistory())
	assert.Equal(t, h.engine.Config(), restored.Config())
	assert.Equal(t, model.StateFused, restored.State())

	log := restored.AuditLog()
	require.Len(t, log, len(snap.Audit)+1)
	assert.Equal(t, snap.Audit, log[:len(snap.Audit)])
	assert.Equal(t, model.OpRestore, log[len(log)-1].Operation)
	assert.Equal(t, snap.Clock+1, log[len(log)-1].Seq)
	require.NoError(t, restored.VerifyAudit())

	// Both engines continue identically.
	assert.Equal(t, h.engine.Fuse().Scores, restored.Fuse().Scores)
}

func TestRestore_RejectsBadSnapshots(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.9))
	mustAdd(t, h.engine, input([]float64{0, 1, 0, 0}, 0, 0.4))

	tests := []struct {
		name   string
		mutate func(*model.Snapshot)
	}{
		{"version", func(s *model.Snapshot) { s.Version = "0" }},
		{"state", func(s *model.Snapshot) { s.State = "BROKEN" }},
		{"dimension", func(s *model.Snapshot) {
			s.Signals[0].State = model.NewComplexVector([]complex128{1})
		}},
		{"re/im length mismatch", func(s *model.Snapshot) {
			s.Signals[0].State.Im = s.Signals[0].State.Im[:3]
		}},
		{"seq out of order", func(s *model.Snapshot) {
			s.Signals[0], s.Signals[1] = s.Signals[1], s.Signals[0]
		}},
		{"repeated seq", func(s *model.Snapshot) { s.Signals[1].Seq = s.Signals[0].Seq }},
		{"entropy history length", func(s *model.Snapshot) {
			s.EntropyHistory = append(s.EntropyHistory, 0.3)
		}},
		{"confidence", func(s *model.Snapshot) { s.Signals[0].Confidence = 2 }},
		{"tampered audit", func(s *model.Snapshot) { s.Audit[0].Metrics["confidence"] = 0.1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := h.engine.ExportState()
			tt.mutate(&snap)
			var err error
			require.NotPanics(t, func() { _, err = Restore(snap) })
			assert.ErrorIs(t, err, ErrInvalidSnapshot)
		})
	}
}

func TestRestore_CapacityEvictsOldestBySeq(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")
	mustAdd(t, h.engine, input([]float64{1, 0, 0, 0}, 0, 0.9))
	mustAdd(t, h.engine, input([]float64{0, 1, 0, 0}, 0, 0.4))

	restored, err := Restore(h.engine.ExportState())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, restored.EvictToCapacity(1))
	assert.Equal(t, 1, restored.Len())
	_, err = restored.Signal("b")
	assert.NoError(t, err)
}
