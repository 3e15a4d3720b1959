package socketio

import (
	"sync"
	"time"
)

// PushDebouncer collapses rapid playback and status updates into batched
// pushes. Triggers within the window restart the timer; a flush is never
// deferred past maxWindow after the first pending trigger, so a continuous
// stream of property changes still produces periodic pushes.
type PushDebouncer struct {
	window    time.Duration
	maxWindow time.Duration
	flushFn   func(playback, status bool)

	mu              sync.Mutex
	pendingPlayback bool
	pendingStatus   bool
	deadline        time.Time
	timer           *time.Timer
	stopped         bool
}

// NewPushDebouncer creates a debouncer with the given window durations.
// flushFn is called with the pending kinds once the window elapses.
// Non-positive windows fall back to 250ms and 1s.
func NewPushDebouncer(window, maxWindow time.Duration, flushFn func(playback, status bool)) *PushDebouncer {
	if window <= 0 {
		window = 250 * time.Millisecond
	}
	if maxWindow <= 0 {
		maxWindow = time.Second
	}
	if maxWindow < window {
		maxWindow = window
	}
	return &PushDebouncer{
		window:    window,
		maxWindow: maxWindow,
		flushFn:   flushFn,
	}
}

// TriggerPlayback records that a playback push is due.
func (d *PushDebouncer) TriggerPlayback() {
	d.trigger(true, false)
}

// TriggerStatus records that a status line push is due.
func (d *PushDebouncer) TriggerStatus() {
	d.trigger(false, true)
}

func (d *PushDebouncer) trigger(playback, status bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if !d.pendingPlayback && !d.pendingStatus {
		d.deadline = time.Now().Add(d.maxWindow)
	}
	d.pendingPlayback = d.pendingPlayback || playback
	d.pendingStatus = d.pendingStatus || status

	wait := d.window
	if until := time.Until(d.deadline); until < wait {
		wait = until
	}
	if wait < 0 {
		wait = 0
	}

	// Reset the timer
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(wait, d.flush)
}

// flush fires the callback for any pending kinds and resets them.
// The callback runs outside the lock.
func (d *PushDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	playback := d.pendingPlayback
	status := d.pendingStatus
	d.pendingPlayback = false
	d.pendingStatus = false
	d.timer = nil
	d.mu.Unlock()

	if (playback || status) && d.flushFn != nil {
		d.flushFn(playback, status)
	}
}

// Stop prevents any further flushes from firing.
func (d *PushDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pendingPlayback = false
	d.pendingStatus = false
}
