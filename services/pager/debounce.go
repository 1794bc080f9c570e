package pager

import (
	"sync"
	"time"
)

// DebounceDelay is the quiet period scroll events must observe before a
// trigger fires.
const DebounceDelay = 200 * time.Millisecond

// Debouncer coalesces bursts of scroll events: the callback runs once, after
// no trigger has arrived for the delay. Each Trigger restarts the wait.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	timer   *time.Timer
	stopped bool
	fn      func()
}

// NewDebouncer creates a debouncer with the standard scroll delay.
func NewDebouncer(fn func()) *Debouncer {
	return NewDebouncerWithDelay(DebounceDelay, fn)
}

// NewDebouncerWithDelay creates a debouncer with a custom delay. Used in
// tests.
func NewDebouncerWithDelay(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger schedules the callback after the quiet period, replacing any
// pending schedule.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fn)
}

// Stop cancels any pending callback and refuses further triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
