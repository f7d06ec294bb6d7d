// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// taskDispatcher is the structural interface every suspension-capable
// effect operation implements (spec §4.5: "an explicit state tag
// (ready/waiting) and a resume entry point"). tryOrPark either resolves
// the effect immediately (returning its resume value) or installs the
// task's wait state and reports that the task must park — mirroring
// the teacher's sessionDispatcher pattern, but driving real suspension
// through the scheduler instead of a non-blocking retry loop, because
// this runtime's effects can take unbounded real time to become ready
// (a channel send waiting for an unrelated receiver, a timer).
type taskDispatcher interface {
	tryOrPark(t *Task) (kont.Resumed, bool)
}

// Task is a cooperative coroutine scheduled by the runtime (spec §3,
// "Task"). Its body is a [code.hybscloud.com/kont.Eff] composition,
// reified once at creation and then driven one suspension at a time by
// the [Scheduler] via [code.hybscloud.com/kont.StepExpr] and
// [code.hybscloud.com/kont.Suspension.Resume] — see SPEC_FULL.md's
// "Open Questions" for why task bodies are kont compositions rather
// than plain imperative closures.
//
// mu is the task's private promise mutex (spec §4.5): it guards sel and
// is held across the entire park sequence (set substate, enqueue on
// every channel, release) so a racing notifier can never observe a
// half-installed wait. Futures and timers are both built as ordinary
// channels (future.go, timer.go), so every suspension a task can make
// flows through this one substate.
type Task struct {
	mu sync.Mutex

	sched *Scheduler

	sel *pendingSelect // operation-selector substate (select.go)

	// winner is the claimed winning position of the current selection
	// (select.go's noWinner until one is claimed). A plain atomix.Int64
	// rather than a field inside sel guarded by mu: claiming it must not
	// require mu, since the claimer already holds a channel lock (see
	// Task.tryClaim's doc comment for the deadlock this avoids).
	winner atomix.Int64

	advance func(resume kont.Resumed) (taskDispatcher, bool)
	pending kont.Resumed

	doneCh chan struct{}
}

// resume hands v to the task as the value of its most recent
// suspension and re-enqueues it onto the scheduler's ready queues
// (spec §4.6, "Resume(handle): move the task from the waiting set back
// into the ready queue" — this runtime has no separate waiting-set
// structure to unlink from; a parked task is simply absent from every
// ready queue until some wait-side event calls resume).
func (t *Task) resume(v kont.Resumed) {
	t.pending = v
	t.sched.pushReady(t)
}

// step advances the task by exactly one effect (spec §4.6 worker loop:
// "Run the popped task one step"). If the task's body has completed, it
// reports done=true and the caller must not call step again. Otherwise
// the effect either resolved immediately (in which case the task is
// re-pushed onto the ready queue with the resume value already in
// hand) or parked itself (in which case some future wait-side event
// will call resume).
func (t *Task) step() (done bool) {
	disp, ok := t.advance(t.pending)
	if !ok {
		close(t.doneCh)
		return true
	}
	if v, immediate := disp.tryOrPark(t); immediate {
		t.pending = v
		t.sched.pushReady(t)
	}
	return false
}

// Handle is the typed result of [Go] or [Start]: a task plus the box
// its final result is written into just before doneCh closes.
type Handle[R any] struct {
	t      *Task
	result *R
}

// Done reports task completion, mirroring the promise's
// waiting→ready→(gone) lifecycle externally as a receive-once channel.
func (h Handle[R]) Done() <-chan struct{} { return h.t.doneCh }

// Result returns the task's final value. Valid only after Done() has
// fired; reading it earlier observes the zero value.
func (h Handle[R]) Result() R { return *h.result }

// newTask reifies body once (spec §9, "Exception/error carrying...":
// the same Reify/Reflect bridge the teacher uses to move between
// closure-based and defunctionalized evaluation) and builds the
// type-erased stepping closure the scheduler drives.
func newTask[R any](sched *Scheduler, body kont.Eff[R]) (*Task, *R) {
	t := &Task{sched: sched, doneCh: make(chan struct{})}
	expr := kont.Reify(body)
	var result R
	var susp *kont.Suspension[R]
	started := false

	t.advance = func(v kont.Resumed) (taskDispatcher, bool) {
		var res R
		if !started {
			started = true
			res, susp = kont.StepExpr(expr)
		} else {
			res, susp = susp.Resume(v)
		}
		if susp == nil {
			result = res
			return nil, false
		}
		disp, ok := susp.Op().(taskDispatcher)
		if !ok {
			panic("coro: unhandled effect in task")
		}
		return disp, true
	}
	return t, &result
}

// Go submits body to sched as a new task and returns immediately (spec
// §6, "go(callable, args...)"). The task begins running the first time
// a worker pops it off a ready queue.
func Go[R any](sched *Scheduler, body kont.Eff[R]) Handle[R] {
	t, box := newTask(sched, body)
	sched.pushReady(t)
	return Handle[R]{t: t, result: box}
}

// Start is a synonym for [Go] (spec §6 names both "go" and "start" as
// the task-launch entry point; this runtime draws no distinction
// between them).
func Start[R any](sched *Scheduler, body kont.Eff[R]) Handle[R] {
	return Go(sched, body)
}
