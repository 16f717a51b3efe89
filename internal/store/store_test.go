package store

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sigfuse/internal/engine"
	"github.com/roach88/sigfuse/internal/model"
	"github.com/roach88/sigfuse/internal/testutil"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// buildEngine runs a short fusion session and returns the engine.
func buildEngine(t *testing.T) (*engine.Engine, *testutil.FakeTime) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.FeatureDimension = 4
	ft := testutil.NewFakeTime(testutil.Epoch)
	e, err := engine.New(cfg,
		engine.WithTimeSource(ft),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("a", "b", "c")),
		engine.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	)
	require.NoError(t, err)

	add := func(features []float64, context, conf float64, meta map[string]string) {
		_, err := e.AddSignal(engine.SignalInput{
			Features:   features,
			Context:    context,
			Confidence: conf,
			Source:     model.SourceOfficial,
			Category:   "seismic",
			Location:   model.Location{X: 10.25, Y: -4},
			Metadata:   meta,
		})
		require.NoError(t, err)
		ft.Advance(time.Minute)
	}
	add([]float64{1, 0, 0, 0}, 0, 0.9, map[string]string{"station": "alpha"})
	add([]float64{1, 0.1, 0, 0}, 1, 0.3, nil)
	e.Fuse()
	add([]float64{0, 0, 0, 1}, 12, 0.5, nil)
	e.Fuse()
	return e, ft
}

func TestOpen_AppliesPragmasAndMigrations(t *testing.T) {
	s := createTestStore(t)

	require.NoError(t, s.checkPragma("journal_mode", "wal"))
	require.NoError(t, s.checkPragma("synchronous", "1"))
	require.NoError(t, s.checkPragma("busy_timeout", "5000"))
	require.NoError(t, s.checkPragma("user_version", "1"))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.userVersion()
	require.NoError(t, err)
	assert.Equal(t, schemaVersion, version)
}

func TestCheckPragma_Mismatch(t *testing.T) {
	s := createTestStore(t)

	err := s.checkPragma("busy_timeout", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `busy_timeout = "5000", want "1"`)
}

func TestLoadSnapshot_Empty(t *testing.T) {
	s := createTestStore(t)
	_, err := s.LoadSnapshot(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e, _ := buildEngine(t)
	snap := e.ExportState()

	require.NoError(t, s.SaveSnapshot(ctx, snap))
	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, snap, got)

	restored, err := engine.Restore(got)
	require.NoError(t, err)
	assert.Equal(t, e.Signals(), restored.Signals())
	assert.Equal(t, e.History(), restored.History())
}

func TestSnapshot_SaveReplacesState(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e, ft := buildEngine(t)

	require.NoError(t, s.SaveSnapshot(ctx, e.ExportState()))

	ft.Advance(time.Hour)
	e.EvictToCapacity(1)
	e.Fuse()
	second := e.ExportState()
	require.NoError(t, s.SaveSnapshot(ctx, second))

	got, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)
	assert.Len(t, got.Signals, 1)
	assert.Len(t, got.History, 3)
}

func TestSnapshot_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e, _ := buildEngine(t)
	require.NoError(t, s.SaveSnapshot(ctx, e.ExportState()))

	_, err := s.DB().Exec(`UPDATE signals SET confidence = 0.99 WHERE id = 'c'`)
	require.NoError(t, err)

	_, err = s.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestAppendAudit_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e, _ := buildEngine(t)
	log := e.AuditLog()

	n, err := s.AppendAudit(ctx, log[:3])
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.AppendAudit(ctx, log)
	require.NoError(t, err)
	assert.Equal(t, len(log)-3, n)

	stored, err := s.ReadAudit(ctx, 0, "")
	require.NoError(t, err)
	assert.Equal(t, log, stored)

	last, err := s.LastAuditSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, log[len(log)-1].Seq, last)
}

func TestAppendAudit_RejectsForeignChain(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e, _ := buildEngine(t)
	log := e.AuditLog()
	_, err := s.AppendAudit(ctx, log)
	require.NoError(t, err)

	forged := log[0].Clone()
	forged.Hash = "f00d"
	_, err = s.AppendAudit(ctx, []model.AuditEntry{forged})
	assert.ErrorIs(t, err, ErrAuditConflict)
}

func TestReadAudit_Filters(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e, _ := buildEngine(t)
	_, err := s.AppendAudit(ctx, e.AuditLog())
	require.NoError(t, err)

	fuses, err := s.ReadAudit(ctx, 0, model.OpFuse)
	require.NoError(t, err)
	require.Len(t, fuses, 2)
	for _, f := range fuses {
		assert.Equal(t, model.OpFuse, f.Operation)
	}

	tail, err := s.ReadAudit(ctx, fuses[0].Seq, "")
	require.NoError(t, err)
	assert.Equal(t, e.AuditSince(fuses[0].Seq), tail)

	none, err := s.ReadAudit(ctx, 1000, "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLastAuditSeq_Empty(t *testing.T) {
	seq, err := createTestStore(t).LastAuditSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}
