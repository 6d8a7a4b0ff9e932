// Package reactor provides the cooperative scheduling substrate for the
// sensor pipeline: a monotonic clock, deferred callbacks executed in
// submission order, repeating timers, and single-assignment completions.
package reactor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Clock sentinels, in seconds on the reactor's monotonic timescale.
const (
	NOW   = 0.0
	NEVER = 9999999999999999.0
)

var ErrReactorClosed = errors.New("reactor: reactor closed")

// Callback is a unit of deferred work. It receives the monotonic time at
// which it was dequeued.
type Callback func(eventtime float64)

// TimerCallback is invoked when a timer fires and returns the next wake
// time. Return NEVER to stop the timer.
type TimerCallback func(eventtime float64) float64

// Completion is a single-assignment future. Only the first call to
// Complete stores a result; later calls are ignored.
type Completion struct {
	result any
	done   chan struct{}
	once   sync.Once
}

// NewCompletion creates an unfulfilled completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Test reports whether the completion has been fulfilled.
func (c *Completion) Test() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Complete fulfills the completion.
func (c *Completion) Complete(result any) {
	c.once.Do(func() {
		c.result = result
		close(c.done)
	})
}

// Result returns the stored result, or nil if not yet fulfilled.
func (c *Completion) Result() any {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

// Wait blocks until the completion is fulfilled or the timeout elapses,
// returning timeoutResult in the latter case.
func (c *Completion) Wait(timeout time.Duration, timeoutResult any) any {
	select {
	case <-c.done:
		return c.result
	case <-time.After(timeout):
		return timeoutResult
	}
}

type timer struct {
	id       uint64
	callback TimerCallback
	waketime float64
}

// Reactor drives deferred callbacks and timers from a single goroutine.
// Callbacks run strictly in registration order and never concurrently
// with each other or with timer callbacks.
type Reactor struct {
	mu          sync.Mutex
	timers      []*timer
	nextTimerID uint64

	queue chan Callback

	ctx    context.Context
	cancel context.CancelFunc

	running   atomic.Bool
	wg        sync.WaitGroup
	startTime time.Time
}

// New creates a reactor. Call Run to start dispatching.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		queue:     make(chan Callback, 256),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Monotonic returns the current monotonic time in seconds.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

// Completion creates a new unfulfilled completion.
func (r *Reactor) Completion() *Completion {
	return NewCompletion()
}

// RegisterCallback queues a callback for execution on the dispatch
// goroutine. Safe to call from any goroutine, including from inside
// another callback.
func (r *Reactor) RegisterCallback(cb Callback) {
	select {
	case r.queue <- cb:
	case <-r.ctx.Done():
	}
}

// RegisterTimer registers a timer that first fires at waketime.
func (r *Reactor) RegisterTimer(cb TimerCallback, waketime float64) {
	r.mu.Lock()
	r.nextTimerID++
	r.timers = append(r.timers, &timer{id: r.nextTimerID, callback: cb, waketime: waketime})
	r.mu.Unlock()
}

// Run starts the dispatch loop.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return
	}
	r.wg.Add(1)
	go r.dispatchLoop()
}

// End stops the dispatch loop.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait blocks until the dispatch loop has exited.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) dispatchLoop() {
	defer r.wg.Done()

	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()

	for r.running.Load() {
		select {
		case cb := <-r.queue:
			cb(r.Monotonic())
		case <-tick.C:
			r.checkTimers(r.Monotonic())
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reactor) checkTimers(eventtime float64) {
	r.mu.Lock()
	due := make([]*timer, 0, len(r.timers))
	for _, t := range r.timers {
		if eventtime >= t.waketime {
			due = append(due, t)
		}
	}
	r.mu.Unlock()

	for _, t := range due {
		next := t.callback(eventtime)

		r.mu.Lock()
		if next >= NEVER {
			for i, cur := range r.timers {
				if cur.id == t.id {
					r.timers = append(r.timers[:i], r.timers[i+1:]...)
					break
				}
			}
		} else {
			t.waketime = next
		}
		r.mu.Unlock()
	}
}
