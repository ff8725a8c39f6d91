package workflow

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTickerStopsAtCeiling(t *testing.T) {
	var progress atomic.Int64
	ticker := NewProgressTicker()
	ticker.Start(time.Millisecond, 2, 10, func(step, ceiling int) bool {
		next := min(int(progress.Load())+step, ceiling)
		progress.Store(int64(next))
		return next < ceiling
	})

	require.Eventually(t, func() bool { return !ticker.running() }, time.Second, time.Millisecond)
	assert.Equal(t, int64(10), progress.Load())
	ticker.Stop()
}

func TestProgressTickerStopWaitsForLastTick(t *testing.T) {
	var ticks atomic.Int64
	ticker := NewProgressTicker()
	ticker.Start(time.Millisecond, 1, 1000, func(step, ceiling int) bool {
		ticks.Add(1)
		return true
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	ticker.Stop()
	assert.False(t, ticker.running())

	stopped := ticks.Load()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, ticks.Load(), "no tick may land after Stop returns")
}

func TestProgressTickerStopIsIdempotent(t *testing.T) {
	ticker := NewProgressTicker()
	assert.NotPanics(t, ticker.Stop)

	ticker.Start(time.Millisecond, 1, 5, func(int, int) bool { return true })
	assert.NotPanics(t, func() {
		ticker.Stop()
		ticker.Stop()
	})

	var nilTicker *ProgressTicker
	assert.NotPanics(t, nilTicker.Stop)
	assert.False(t, nilTicker.running())
}

func TestProgressTickerIgnoresInvalidInterval(t *testing.T) {
	called := false
	ticker := NewProgressTicker()
	ticker.Start(0, 1, 5, func(int, int) bool { called = true; return true })

	assert.False(t, ticker.running())
	time.Sleep(5 * time.Millisecond)
	assert.False(t, called)
}
