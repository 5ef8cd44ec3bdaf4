package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of filesystem events into a single
// callback invocation. Each Trigger resets the timer; the callback
// fires once the events go quiet for the configured interval.
type Debouncer struct {
	interval time.Duration
	fn       func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a Debouncer that invokes fn after interval of
// quiet following the last Trigger.
func NewDebouncer(interval time.Duration, fn func()) *Debouncer {
	return &Debouncer{interval: interval, fn: fn}
}

// Trigger records an event, scheduling or postponing the callback.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fn)
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
