// Package queue implements the time-ordered task queue and single-timer
// dispatcher shared by every scheduler strategy. It owns exactly one
// outstanding async.Driver timer at any point where the scheduler is
// quiescent, and coalesces redundant zero-delay re-enqueues of the same
// callable.
package queue

import (
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nodeflow/calvinrt/internal/async"
	"github.com/nodeflow/calvinrt/internal/observability"
)

// Func is a queued callable. Two Funcs are considered the "same task" for
// coalescing purposes when they share a code pointer, so repeated enqueues
// of the same method value collapse regardless of closure identity.
type Func func()

func identity(fn Func) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

type task struct {
	deadline time.Time
	fn       Func
}

// Dispatcher is the time-ordered task queue plus its single armed timer.
type Dispatcher struct {
	driver       async.Driver
	watchdog     Func
	watchdogWait time.Duration
	log          zerolog.Logger

	mu        sync.Mutex
	tasks     []task
	scheduled async.Cancelable
}

// New creates a Dispatcher. watchdog is enqueued at watchdogWait whenever
// the queue drains to empty, so a missed wake-up can never leave the
// runtime idle forever.
func New(driver async.Driver, watchdog Func, watchdogWait time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		driver:       driver,
		watchdog:     watchdog,
		watchdogWait: watchdogWait,
		log:          log,
	}
}

// Len reports the number of currently queued tasks, for metrics/tests.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// InsertTask enqueues fn to run no earlier than delay from now, keeping the
// queue sorted by non-decreasing deadline, ties broken FIFO. A zero-delay
// insert of a Func already queued immediately ahead of the insertion point
// is dropped.
func (d *Dispatcher) InsertTask(fn Func, delay time.Duration) {
	d.mu.Lock()
	t := d.driver.Now().Add(delay)
	index := len(d.tasks)
	for i, ti := range d.tasks {
		if ti.deadline.After(t) {
			index = i
			break
		}
	}
	if index > 0 && delay == 0 && identity(d.tasks[index-1].fn) == identity(fn) {
		d.mu.Unlock()
		return
	}
	d.tasks = append(d.tasks, task{})
	copy(d.tasks[index+1:], d.tasks[index:])
	d.tasks[index] = task{deadline: t, fn: fn}
	becameHead := index == 0
	depth := len(d.tasks)
	d.mu.Unlock()

	observability.TaskQueueDepth.Set(float64(depth))
	if becameHead {
		d.scheduleNext(delay, d.processNext)
	}
}

// scheduleNext cancels any outstanding timer and arms a fresh one. Never
// call directly except from InsertTask/processNext.
func (d *Dispatcher) scheduleNext(delay time.Duration, fn Func) {
	d.mu.Lock()
	prev := d.scheduled
	d.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
	h := d.driver.ScheduleAfter(delay, func() { fn() })
	d.mu.Lock()
	d.scheduled = h
	d.mu.Unlock()
}

// processNext is the timer callback: pop and run the head task, then
// re-arm for the new head, or arm the watchdog if the queue drained empty.
func (d *Dispatcher) processNext() {
	d.mu.Lock()
	if len(d.tasks) == 0 {
		d.mu.Unlock()
		return
	}
	todo := d.tasks[0].fn
	d.tasks = d.tasks[1:]
	depth := len(d.tasks)
	d.mu.Unlock()
	observability.TaskQueueDepth.Set(float64(depth))

	todo()

	d.mu.Lock()
	hasMore := len(d.tasks) > 0
	var delay time.Duration
	if hasMore {
		delay = d.tasks[0].deadline.Sub(d.driver.Now())
		if delay < 0 {
			delay = 0
		}
	}
	d.mu.Unlock()

	if hasMore {
		d.scheduleNext(delay, d.processNext)
	} else {
		d.InsertTask(d.watchdog, d.watchdogWait)
	}

	d.mu.Lock()
	armed := d.scheduled != nil && d.scheduled.Active()
	d.mu.Unlock()
	if !armed {
		d.log.Error().Msg("scheduler invariant violated: no task armed after process_next")
		panic("scheduler: no task armed after process_next")
	}
}
