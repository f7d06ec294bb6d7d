// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"container/heap"
	"sync"
	"time"

	"code.hybscloud.com/kont"
)

// Timer is a single-shot alarm (spec §4.7, "Timer"). C receives exactly
// one value, the alarm's firing time, when it expires; it is an
// ordinary capacity-1 [Channel], so a Timer composes with [SelectEff]
// and everything else built on channels without any special case.
type Timer struct {
	C *Channel[time.Time]
	a *alarm
}

// alarm is one entry in the timer service's heap.
type alarm struct {
	when     time.Time
	fire     func(time.Time)
	idx      int // heap.Interface index; -1 when not in the heap
	canceled bool
}

// alarmHeap is a container/heap min-heap ordered by firing time (spec
// §3, "the timer service's priority queue").
type alarmHeap []*alarm

func (h alarmHeap) Len() int            { return len(h) }
func (h alarmHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h alarmHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].idx = i; h[j].idx = j }
func (h *alarmHeap) Push(x any) {
	a := x.(*alarm)
	a.idx = len(*h)
	*h = append(*h, a)
}
func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.idx = -1
	*h = old[:n-1]
	return a
}

// timerService is the single process-wide goroutine that owns the
// alarm heap (spec §3, "a single timer service shared by every task").
// It is started lazily on first use and never stopped, matching the
// scheduler's own process-wide Default().
type timerService struct {
	mu   sync.Mutex
	heap alarmHeap
	wake chan struct{}

	startOnce sync.Once
}

var globalTimerService = &timerService{wake: make(chan struct{}, 1)}

func (ts *timerService) ensureStarted() {
	ts.startOnce.Do(func() { go ts.run() })
}

// run waits for either the nearest alarm's deadline or a wake signal
// (a new, sooner alarm was scheduled, or one was canceled), re-reading
// the heap's head each time around.
func (ts *timerService) run() {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	for {
		ts.mu.Lock()
		var d time.Duration
		if len(ts.heap) == 0 {
			d = time.Hour
		} else {
			d = time.Until(ts.heap[0].when)
			if d < 0 {
				d = 0
			}
		}
		ts.mu.Unlock()
		t.Reset(d)

		select {
		case now := <-t.C:
			ts.fireDue(now)
		case <-ts.wake:
			if !t.Stop() {
				select {
				case <-t.C:
				default:
				}
			}
		}
	}
}

// fireDue pops and fires every alarm due at or before now. Firing
// happens outside ts.mu so a fire callback (a channel send, which may
// release a parked task) never runs with the timer service's own lock
// held.
func (ts *timerService) fireDue(now time.Time) {
	ts.mu.Lock()
	var due []*alarm
	for len(ts.heap) > 0 && !ts.heap[0].when.After(now) {
		due = append(due, heap.Pop(&ts.heap).(*alarm))
	}
	ts.mu.Unlock()
	for _, a := range due {
		if !a.canceled {
			a.fire(now)
		}
	}
}

func (ts *timerService) schedule(a *alarm) {
	ts.ensureStarted()
	ts.mu.Lock()
	heap.Push(&ts.heap, a)
	ts.mu.Unlock()
	select {
	case ts.wake <- struct{}{}:
	default:
	}
}

// cancel removes a from the heap if it is still pending. Reports false
// if a has already fired (or was already canceled) — the same
// cancel/expire race every timer API has to resolve one way (spec §7,
// "canceling an already-fired timer is not an error, but does not undo
// the firing").
func (ts *timerService) cancel(a *alarm) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if a.idx < 0 {
		return false
	}
	a.canceled = true
	heap.Remove(&ts.heap, a.idx)
	return true
}

// NewTimer creates a Timer that fires once, after d.
func NewTimer(d time.Duration) *Timer {
	ch := NewChannel[time.Time](1)
	a := &alarm{
		when: time.Now().Add(d),
		idx:  -1,
		fire: func(when time.Time) { ch.TrySend(when) },
	}
	t := &Timer{C: ch, a: a}
	globalTimerService.schedule(a)
	return t
}

// Stop cancels t. Reports false if t had already fired.
func (t *Timer) Stop() bool {
	return globalTimerService.cancel(t.a)
}

// Reset reschedules t to fire after d from now, as if it were a freshly
// created Timer. Any pending firing from before the reset is canceled.
func (t *Timer) Reset(d time.Duration) {
	globalTimerService.cancel(t.a)
	t.a.when = time.Now().Add(d)
	t.a.canceled = false
	globalTimerService.schedule(t.a)
}

// After returns a channel that receives the current time once, after
// d (spec §4.7, "after"). Equivalent to NewTimer(d).C.
func After(d time.Duration) *Channel[time.Time] {
	return NewTimer(d).C
}

// SleepEff suspends the calling task for at least d (spec §4.7,
// "sleep"), built directly on After so a sleeping task parks through
// the same selector machinery as any channel receive.
func SleepEff(d time.Duration) kont.Eff[time.Time] {
	return RecvEff(After(d))
}
