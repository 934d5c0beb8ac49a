package overlay

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultThrottleInterval bounds how often scroll and resize recompute positions
const DefaultThrottleInterval = 100 * time.Millisecond

// Throttler runs fn at most once per interval. The first trigger in a quiet period runs
// immediately and the last trigger inside a busy period runs when the interval ends.
type Throttler struct {
	clock    clock.Clock
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	last    time.Time
	hasLast bool
	timer   *clock.Timer
	gen     int
}

// NewThrottler creates a throttler for fn
func NewThrottler(c clock.Clock, interval time.Duration, fn func()) *Throttler {
	return &Throttler{clock: c, interval: interval, fn: fn}
}

// Trigger requests a call of fn
func (t *Throttler) Trigger() {
	t.mu.Lock()
	now := t.clock.Now()
	if !t.hasLast || now.Sub(t.last) >= t.interval {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.last = now
		t.hasLast = true
		t.mu.Unlock()
		t.fn()
		return
	}
	if t.timer == nil {
		gen := t.gen
		wait := t.interval - now.Sub(t.last)
		t.timer = t.clock.AfterFunc(wait, func() { t.fire(gen) })
	}
	t.mu.Unlock()
}

// Cancel drops any pending trailing call and resets the quiet period
func (t *Throttler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.hasLast = false
	t.gen++
}

func (t *Throttler) fire(gen int) {
	t.mu.Lock()
	if gen != t.gen || t.timer == nil {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.last = t.clock.Now()
	t.hasLast = true
	t.mu.Unlock()
	t.fn()
}
