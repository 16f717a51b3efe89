package engine

import (
	"sync/atomic"
	"time"
)

// SeqClock stamps operations with strictly increasing sequence numbers.
// Ordering everywhere in the engine uses these numbers, never wall time.
type SeqClock interface {
	Next() int64
	Current() int64
}

// Clock is the default monotonic logical clock.
//
// Safe for concurrent use (atomic), although the single-writer engine is
// the only caller in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next() returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
// Used when restoring from a snapshot.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies wall-clock timestamps for signals and audit entries.
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the system wall clock.
type SystemTime struct{}

// Now returns time.Now() in UTC.
func (SystemTime) Now() time.Time {
	return time.Now().UTC()
}
