// Package clock provides the monotonic time source and cooperative timer
// handles the rest of the client schedules against, plus per-DC
// server-time delta tracking. time.AfterFunc is wrapped in an explicit
// Handle type (rather than a bare *time.Timer) so cancellation and
// substituting a fake clock in tests are first-class.
package clock

import (
	"sync"
	"time"
)

// Source abstracts wall-clock reads so tests can substitute a fake one
// without real sleeps. The zero value of realSource (below) is the
// production default.
type Source interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Handle
}

// Handle is a cancellable, (re)startable timer.
type Handle interface {
	// Start (re)arms the timer to fire after d, cancelling any pending fire.
	Start(d time.Duration)
	// Cancel stops the timer. A no-op if already stopped or fired.
	Cancel()
}

// realSource is the production Source backed by time.AfterFunc.
type realSource struct{}

// Real is the production clock source.
var Real Source = realSource{}

func (realSource) Now() time.Time { return time.Now() }

func (realSource) AfterFunc(d time.Duration, f func()) Handle {
	return &realHandle{timer: time.AfterFunc(d, f), fn: f}
}

type realHandle struct {
	mu    sync.Mutex
	timer *time.Timer
	fn    func()
}

func (h *realHandle) Start(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(d, h.fn)
}

func (h *realHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}

// CreateTimer builds a Handle bound to callback on the given Source
// without arming it; the caller must call Start.
func CreateTimer(src Source, callback func()) Handle {
	if src == nil {
		src = Real
	}
	// A timer created but not yet started: fire impossibly far out, then
	// Start re-arms it with the real duration. time.AfterFunc requires a
	// duration up front, so we park it stopped until Start is called.
	h := src.AfterFunc(time.Hour*24*365*100, callback)
	h.Cancel()
	return h
}
