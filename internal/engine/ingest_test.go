package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(Request{Kind: RequestEvictToCapacity, Capacity: i}))
	}
	assert.Equal(t, 3, q.Len())

	for i := 1; i <= 3; i++ {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, i, r.Capacity)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestRequestQueue_ClosedRejectsEnqueue(t *testing.T) {
	q := newRequestQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(Request{Kind: RequestFuse}))
	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}

func TestRequestKind_String(t *testing.T) {
	assert.Equal(t, "add", RequestAdd.String())
	assert.Equal(t, "fuse", RequestFuse.String())
	assert.Equal(t, "evict_older_than", RequestEvictOlderThan.String())
	assert.Equal(t, "evict_to_capacity", RequestEvictToCapacity.String())
	assert.Equal(t, "unknown", RequestKind(0).String())
}

func TestIngestor_AppliesInOrderAndDrainsOnClose(t *testing.T) {
	h := newTestEngine(t, dim4(), "a", "b")

	var outcomes []Outcome
	ing := NewIngestor(h.engine, func(o Outcome) { outcomes = append(outcomes, o) })

	require.NoError(t, ing.Submit(Request{Kind: RequestAdd, Signal: input([]float64{1, 0, 0, 0}, 0, 0.9)}))
	require.NoError(t, ing.Submit(Request{Kind: RequestAdd, Signal: input([]float64{1, 0, 0, 0}, 0, 0.3)}))
	require.NoError(t, ing.Submit(Request{Kind: RequestAdd, Signal: input(nil, 0, 0.3)}))
	require.NoError(t, ing.Submit(Request{Kind: RequestFuse}))
	require.NoError(t, ing.Submit(Request{Kind: RequestEvictToCapacity, Capacity: 1}))
	assert.Equal(t, 5, ing.Pending())
	ing.Close()

	require.NoError(t, ing.Run(context.Background()))

	require.Len(t, outcomes, 5)
	assert.Equal(t, "a", outcomes[0].ID)
	assert.Equal(t, "b", outcomes[1].ID)
	assert.ErrorIs(t, outcomes[2].Err, ErrInvalidInput)
	require.NotNil(t, outcomes[3].Result)
	assert.InDelta(t, 1.0, outcomes[3].Result.CoherenceStrength, tol)
	assert.Equal(t, []string{"a"}, outcomes[4].Evicted)

	assert.Equal(t, 1, h.engine.Len())
	assert.ErrorIs(t, ing.Submit(Request{Kind: RequestFuse}), ErrIngestorClosed)
}

func TestIngestor_ConcurrentSubmit(t *testing.T) {
	h := newTestEngine(t, dim4())

	var mu sync.Mutex
	added := 0
	ing := NewIngestor(h.engine, func(o Outcome) {
		if o.Request.Kind == RequestAdd && o.Err == nil {
			mu.Lock()
			added++
			mu.Unlock()
		}
	})

	done := make(chan error, 1)
	go func() { done <- ing.Run(context.Background()) }()

	const producers, perProducer = 8, 25
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				_ = ing.Submit(Request{Kind: RequestAdd, Signal: input([]float64{float64(p), float64(i), 1, 0}, float64(i), 0.5)})
			}
		}(p)
	}
	wg.Wait()
	ing.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor did not stop")
	}

	assert.Equal(t, producers*perProducer, added)
	assert.Equal(t, producers*perProducer, h.engine.Len())
	require.NoError(t, h.engine.VerifyAudit())
}

func TestIngestor_StopsOnCancel(t *testing.T) {
	h := newTestEngine(t, dim4())
	ing := NewIngestor(h.engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor did not stop")
	}
	assert.ErrorIs(t, ing.Submit(Request{Kind: RequestFuse}), ErrIngestorClosed)
}

func TestIngestor_RejectsNegativeBounds(t *testing.T) {
	h := newTestEngine(t, dim4())
	var outcomes []Outcome
	ing := NewIngestor(h.engine, func(o Outcome) { outcomes = append(outcomes, o) })

	require.NoError(t, ing.Submit(Request{Kind: RequestEvictOlderThan, MaxAge: -time.Second}))
	require.NoError(t, ing.Submit(Request{Kind: RequestEvictToCapacity, Capacity: -1}))
	require.NoError(t, ing.Submit(Request{Kind: RequestKind(99)}))
	ing.Close()
	require.NoError(t, ing.Run(context.Background()))

	require.Len(t, outcomes, 3)
	assert.ErrorIs(t, outcomes[0].Err, ErrInvalidInput)
	assert.ErrorIs(t, outcomes[1].Err, ErrInvalidInput)
	assert.Error(t, outcomes[2].Err)
	assert.Empty(t, h.engine.AuditLog())
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(41), c.Current())
	assert.Equal(t, int64(42), c.Next())
	assert.Equal(t, int64(42), c.Current())
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.Generate()
		assert.Len(t, id, 36)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
