// Package async provides the single-threaded event loop the scheduler runs
// on top of: one-shot delayed calls, a post primitive, and a run/stop
// lifecycle. Pinning every callback to one loop goroutine keeps the
// scheduler's data structures free of locking across actor state.
package async

import (
	"sync"
	"time"
)

// Cancelable is a handle to a scheduled, not-yet-fired callback.
type Cancelable interface {
	Cancel()
	Active() bool
}

// Driver is the cooperative, single-threaded event loop the scheduler's
// tasks and event-API methods all execute on, one at a time, to completion.
type Driver interface {
	// Now returns the driver's notion of the current time.
	Now() time.Time
	// ScheduleAfter arms fn to run on the loop goroutine after delay.
	ScheduleAfter(delay time.Duration, fn func()) Cancelable
	// Post is shorthand for ScheduleAfter(0, fn); used by external event-API
	// callers to funnel work onto the loop goroutine without touching
	// scheduler state from their own goroutine.
	Post(fn func()) Cancelable
	// Run blocks, executing posted/scheduled callbacks serially, until Stop
	// is called.
	Run()
	// Stop requests the loop to exit after its current callback returns.
	Stop()
}

type timerHandle struct {
	mu        sync.Mutex
	cancelled bool
	timer     *time.Timer
}

func (h *timerHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
	}
}

func (h *timerHandle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.cancelled
}

// LoopDriver is the production Driver: a single goroutine drains an
// operations channel, so every callback --- whether armed by a timer firing
// on its own goroutine or posted directly by an external caller --- runs
// serialized on the loop goroutine.
type LoopDriver struct {
	ops      chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoopDriver creates a ready-to-run driver. Call Run on the goroutine
// that should host the event loop.
func NewLoopDriver() *LoopDriver {
	return &LoopDriver{
		ops:  make(chan func(), 1024),
		done: make(chan struct{}),
	}
}

func (d *LoopDriver) Now() time.Time { return time.Now() }

func (d *LoopDriver) ScheduleAfter(delay time.Duration, fn func()) Cancelable {
	h := &timerHandle{}
	post := func() {
		if !h.Active() {
			return
		}
		select {
		case d.ops <- fn:
		case <-d.done:
		}
	}
	h.timer = time.AfterFunc(delay, post)
	return h
}

func (d *LoopDriver) Post(fn func()) Cancelable {
	return d.ScheduleAfter(0, fn)
}

func (d *LoopDriver) Run() {
	for {
		select {
		case fn := <-d.ops:
			fn()
		case <-d.done:
			return
		}
	}
}

func (d *LoopDriver) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}
