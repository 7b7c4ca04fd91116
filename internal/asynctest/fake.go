// Package asynctest provides a virtual-clock implementation of async.Driver
// for deterministic scheduler and monitor tests, mirroring the "advance
// virtual clock" scenarios in the scheduler's test plan: nothing here uses
// a real goroutine or wall-clock timer, so tests can assert exact firing
// order without sleeping.
package asynctest

import (
	"sort"
	"time"

	"github.com/nodeflow/calvinrt/internal/async"
)

type handle struct {
	cancelled bool
}

func (h *handle) Cancel()      { h.cancelled = true }
func (h *handle) Active() bool { return !h.cancelled }

type item struct {
	at  time.Time
	seq int
	fn  func()
	h   *handle
}

// Driver is a single-threaded, manually-advanced stand-in for the real
// event loop. All calls are expected from one goroutine (the test).
type Driver struct {
	now   time.Time
	seq   int
	items []*item
}

// New creates a fake driver with its virtual clock at start.
func New(start time.Time) *Driver {
	return &Driver{now: start}
}

func (d *Driver) Now() time.Time { return d.now }

func (d *Driver) ScheduleAfter(delay time.Duration, fn func()) async.Cancelable {
	h := &handle{}
	d.items = append(d.items, &item{at: d.now.Add(delay), seq: d.seq, fn: fn, h: h})
	d.seq++
	return h
}

func (d *Driver) Post(fn func()) async.Cancelable {
	return d.ScheduleAfter(0, fn)
}

// Run is a no-op: the test drives time with Advance instead of blocking.
func (d *Driver) Run()  {}
func (d *Driver) Stop() {}

// Bump moves the virtual clock forward without dispatching any callbacks,
// letting a test simulate time elapsing inside a callback body (e.g. an
// actor whose Fire takes longer than the fire budget).
func (d *Driver) Bump(delay time.Duration) {
	d.now = d.now.Add(delay)
}

// Pending reports how many not-yet-fired, not-cancelled callbacks remain.
func (d *Driver) Pending() int {
	n := 0
	for _, it := range d.items {
		if !it.h.cancelled {
			n++
		}
	}
	return n
}

// Advance moves the virtual clock forward by delay, running every callback
// due at or before the new time in (deadline, insertion-order) order,
// including callbacks newly armed as a side effect of an earlier one.
func (d *Driver) Advance(delay time.Duration) {
	target := d.now.Add(delay)
	for {
		idx := d.nextDueIndex(target)
		if idx == -1 {
			break
		}
		it := d.items[idx]
		d.items = append(d.items[:idx], d.items[idx+1:]...)
		if it.at.After(d.now) {
			d.now = it.at
		}
		it.fn()
	}
	if target.After(d.now) {
		d.now = target
	}
}

func (d *Driver) nextDueIndex(target time.Time) int {
	candidates := make([]int, 0, len(d.items))
	for i, it := range d.items {
		if it.h.cancelled {
			continue
		}
		if it.at.After(target) {
			continue
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return -1
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := d.items[candidates[i]], d.items[candidates[j]]
		if !a.at.Equal(b.at) {
			return a.at.Before(b.at)
		}
		return a.seq < b.seq
	})
	return candidates[0]
}
