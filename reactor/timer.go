// File: reactor/timer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Delayed calls: a binary heap ordered by deadline, ties broken by
// scheduling order.

package reactor

import (
	"container/heap"
	"time"

	"github.com/momentics/twine/metrics"
)

// TimerHandle identifies one delayed call scheduled with CallLater.
type TimerHandle struct {
	when  time.Time
	seq   uint64
	fn    func()
	index int
	owner *timerQueue
}

// Active reports whether the call is still pending.
func (h *TimerHandle) Active() bool { return h.index >= 0 }

// Cancel withdraws a pending call. Cancelling a handle that already
// fired or was cancelled is a no-op.
func (h *TimerHandle) Cancel() {
	if h.index < 0 {
		return
	}
	heap.Remove(h.owner, h.index)
	h.fn = nil
}

// CallLater schedules fn to run on the loop goroutine once delay has
// elapsed. A non-positive delay fires on the next iteration. Calls
// sharing a deadline fire in scheduling order.
func (r *Reactor) CallLater(delay time.Duration, fn func()) *TimerHandle {
	if delay < 0 {
		delay = 0
	}
	h := &TimerHandle{
		when:  r.now().Add(delay),
		seq:   r.timerSeq,
		fn:    fn,
		owner: &r.timers,
	}
	r.timerSeq++
	heap.Push(&r.timers, h)
	return h
}

// fireDueTimers runs the calls due at the instant the dispatch phase
// ended. The round is bounded by the queue length at entry, so a call
// scheduled by a firing timer runs no earlier than the next
// iteration and the loop stays fair.
func (r *Reactor) fireDueTimers() {
	now := r.now()
	n := r.timers.Len()
	for i := 0; i < n && r.timers.Len() > 0; i++ {
		next, _ := r.timers.peekWhen()
		if next.After(now) {
			return
		}
		h := heap.Pop(&r.timers).(*TimerHandle)
		metrics.TimersFiredTotal.Inc()
		r.invokeTimer(h)
	}
}

// invokeTimer isolates a panicking call from the loop.
func (r *Reactor) invokeTimer(h *TimerHandle) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warnf("reactor: panic in delayed call: %v", rec)
		}
	}()
	h.fn()
}

type timerQueue []*TimerHandle

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].when.Equal(q[j].when) {
		return q[i].seq < q[j].seq
	}
	return q[i].when.Before(q[j].when)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	h := x.(*TimerHandle)
	h.index = len(*q)
	*q = append(*q, h)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*q = old[:n-1]
	return h
}

func (q timerQueue) peekWhen() (time.Time, bool) {
	if len(q) == 0 {
		return time.Time{}, false
	}
	return q[0].when, true
}
