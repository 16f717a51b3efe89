package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_NextAndReset(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const goroutines, calls = 50, 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				clock.Next()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(goroutines*calls), clock.Current())
}

func TestFakeTime_Advance(t *testing.T) {
	ft := NewFakeTime(Epoch)
	assert.Equal(t, Epoch, ft.Now())

	got := ft.Advance(90 * time.Minute)
	assert.Equal(t, Epoch.Add(90*time.Minute), got)
	assert.Equal(t, got, ft.Now())

	ft.Set(Epoch)
	assert.Equal(t, Epoch, ft.Now())
}

func TestSequenceGenerator_PresetThenFallback(t *testing.T) {
	g := NewSequenceGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Equal(t, "sig-3", g.Generate())

	g.Push("late")
	assert.Equal(t, "late", g.Generate())

	g = NewSequenceGenerator().WithPrefix("x")
	assert.Equal(t, "x-1", g.Generate())
}
