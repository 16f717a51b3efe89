package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of FakeTime.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// FakeTime is a manually advanced wall clock. It satisfies
// engine.TimeSource.
type FakeTime struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeTime creates a clock frozen at start.
func NewFakeTime(start time.Time) *FakeTime {
	return &FakeTime{now: start.UTC()}
}

// Now returns the current fake time.
func (f *FakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d and returns the new time.
func (f *FakeTime) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

// Set jumps the clock to t.
func (f *FakeTime) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
