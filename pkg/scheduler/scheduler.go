// Package scheduler provides the cooperative scheduler every engine component runs on.
//
// Time is virtual: nothing happens until Advance is called, either by a
// real-time driver (see internal/worker) or directly by tests. Timer callbacks
// and functions passed to Do never run concurrently with each other, so engine
// state mutated only from them needs no further locking.
//
// Callbacks may call After and Timer.Stop freely. They must not call Do or
// Advance, which would deadlock.
package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler orders timer callbacks on a virtual clock.
type Scheduler struct {
	exec sync.Mutex // held while a callback or Do body runs

	mu    sync.Mutex // guards now, seq and queue
	now   time.Duration
	seq   uint64
	queue timerQueue
}

// Timer is a single scheduled callback.
type Timer struct {
	s     *Scheduler
	at    time.Duration
	seq   uint64
	fn    func()
	index int
}

// New creates a scheduler whose clock starts at zero.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the current virtual time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of timers waiting to fire.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// After schedules fn to run once d has elapsed on the virtual clock.
// Negative durations are treated as zero.
func (s *Scheduler) After(d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &Timer{s: s, at: s.now + d, seq: s.seq, fn: fn}
	heap.Push(&s.queue, t)
	return t
}

// Stop cancels the timer. It reports whether the timer was still pending.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&s.queue, t.index)
	return true
}

// Due returns the virtual time at which the timer fires.
func (t *Timer) Due() time.Duration {
	return t.at
}

// Advance moves the clock forward by d, running every timer that falls due.
// Timers run in due-time order; timers due at the same instant run in the
// order they were scheduled. Returns the number of callbacks run.
func (s *Scheduler) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	s.exec.Lock()
	defer s.exec.Unlock()

	s.mu.Lock()
	target := s.now + d
	fired := 0
	for len(s.queue) > 0 && s.queue[0].at <= target {
		t := heap.Pop(&s.queue).(*Timer)
		s.now = t.at
		s.mu.Unlock()

		t.fn()
		fired++

		s.mu.Lock()
	}
	if target > s.now {
		s.now = target
	}
	s.mu.Unlock()
	return fired
}

// Do runs fn exclusively with respect to timer callbacks.
func (s *Scheduler) Do(fn func()) {
	s.exec.Lock()
	defer s.exec.Unlock()
	fn()
}

type timerQueue []*Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*Timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
