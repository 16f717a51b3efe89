package engine

import (
	"slices"
	"time"

	"github.com/roach88/sigfuse/internal/model"
)

// EvictOlderThan removes every signal whose timestamp is more than maxAge
// before the current time and returns their ids in ingestion order.
// Fusion history is untouched. An audit entry is recorded even when nothing
// was removed.
//
// Panics if maxAge is negative.
func (e *Engine) EvictOlderThan(maxAge time.Duration) []string {
	if maxAge < 0 {
		panic("engine: negative eviction age")
	}
	cutoff := e.now.Now().UTC().Add(-maxAge)
	return e.evict(func(i int, s model.Signal) bool {
		return s.Timestamp.Before(cutoff)
	}, "max_age_seconds", maxAge.Seconds())
}

// EvictToCapacity removes the oldest signals (by sequence) until at most max
// remain and returns the removed ids.
//
// Panics if max is negative.
func (e *Engine) EvictToCapacity(max int) []string {
	if max < 0 {
		panic("engine: negative capacity")
	}
	excess := len(e.signals) - max
	return e.evict(func(i int, _ model.Signal) bool {
		return i < excess
	}, "capacity", float64(max))
}

// evict drops the signals matching drop and rebuilds the index.
// Signals are stored in sequence order, so index position is age rank.
func (e *Engine) evict(drop func(int, model.Signal) bool, param string, value float64) []string {
	var removed []string
	kept := e.signals[:0:0]
	for i, s := range e.signals {
		if drop(i, s) {
			removed = append(removed, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	e.signals = slices.Clip(kept)
	e.index = make(map[string]int, len(e.signals))
	for i, s := range e.signals {
		e.index[s.ID] = i
	}

	seq := e.clock.Next()
	e.record(seq, e.now.Now().UTC(), model.OpEvict, removed, map[string]float64{
		param:       value,
		"removed":   float64(len(removed)),
		"remaining": float64(len(e.signals)),
	})
	if len(removed) > 0 {
		e.logger.Info("signals evicted",
			"removed", len(removed),
			"remaining", len(e.signals),
			param, value,
		)
	}
	return removed
}
