package workflow

import (
	"sync"
	"time"
)

// AdvanceFunc applies one tick. Returning false ends the ticker.
type AdvanceFunc func(step, ceiling int) bool

// ProgressTicker periodically advances simulated progress until stopped
type ProgressTicker struct {
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewProgressTicker creates an idle ticker
func NewProgressTicker() *ProgressTicker {
	return &ProgressTicker{}
}

// Start begins ticking every interval. It is a no-op if the ticker is already
// running or interval is not positive.
func (t *ProgressTicker) Start(interval time.Duration, step, ceiling int, advance AdvanceFunc) {
	if interval <= 0 || advance == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(interval, step, ceiling, advance, t.stop, t.done)
}

func (t *ProgressTicker) loop(interval time.Duration, step, ceiling int, advance AdvanceFunc, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !advance(step, ceiling) {
				return
			}
		}
	}
}

// Stop halts the ticker and returns once the tick goroutine has exited.
// It is safe to call more than once and on a nil ticker.
func (t *ProgressTicker) Stop() {
	if t == nil {
		return
	}

	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done = nil, nil
	t.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// running reports whether the tick goroutine is still alive
func (t *ProgressTicker) running() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
