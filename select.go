// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"math/rand/v2"
	"sort"

	"code.hybscloud.com/kont"
)

// pendingSelect is a parked task's operation-selector substate (spec §3,
// "Operation-selector substate"): the lock-ordered, deduplicated view of
// its operations and their original positions. Owned by the Task it
// belongs to; installed and cleared only under that task's mu. The
// winner itself is tracked separately, on Task.winner, so that claiming
// it (see [Task.tryClaim]) never needs the task mutex — see that
// method's doc comment for why.
type pendingSelect struct {
	ops []Op
	pos []int // pos[i] is ops[i]'s original array index
}

// noWinner is Task.winner's sentinel value before any operation in the
// current selection has been claimed.
const noWinner = -1

// dedupSort copies ops into lock order, collapsing exact repeats of the
// same operation (spec §4.3 step 1, and §9 second bullet: "duplicate
// operations (same channel, same kind, same value pointer) are
// deliberately collapsed" — a duplicate op's original index is not
// independently satisfiable, only the first occurrence's position
// survives). The identity that matters is the Op value itself, not just
// its (channel, direction) pair: a SendOp or RecvOp is comparable
// because it is always a pointer to its concrete type, and that pointer
// is exactly the "value pointer" spec §9 names, since Value/Result lives
// inside the struct it addresses. Two distinct *SendOp (or *RecvOp)
// instances on the same channel and direction are two genuinely
// different attempts and must both survive, even though they share a
// (chanID, kind) pair.
func dedupSort(ops []Op) (uops []Op, upos []int) {
	type entry struct {
		op  Op
		pos int
	}
	seen := make(map[Op]bool, len(ops))
	entries := make([]entry, 0, len(ops))
	for i, op := range ops {
		if seen[op] {
			continue
		}
		seen[op] = true
		entries = append(entries, entry{op, i})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].op.chanID() < entries[j].op.chanID()
	})
	uops = make([]Op, len(entries))
	upos = make([]int, len(entries))
	for i, e := range entries {
		uops[i] = e.op
		upos[i] = e.pos
	}
	return uops, upos
}

// lockAll locks every distinct channel among ops exactly once, in the
// canonical order dedupSort already sorted ops into. Two distinct ops on
// the same channel (e.g. two *SendOp on one channel, per dedupSort's doc
// comment on why it does not collapse them) land adjacent with
// equal chanID; locking each op's channel unconditionally would lock
// the same non-reentrant sync.Mutex twice from this goroutine and
// deadlock. Grounded on original_source/task.cpp's Task::Promise::lock,
// which tracks the previously locked channel and skips a repeat the
// same way.
func lockAll(ops []Op) {
	var prev chanID
	first := true
	for _, op := range ops {
		id := op.chanID()
		if !first && id == prev {
			continue
		}
		op.lock()
		prev = id
		first = false
	}
}

// unlockAll is lockAll's mirror: each distinct channel is unlocked
// exactly once, in reverse order.
func unlockAll(ops []Op) {
	var prev chanID
	first := true
	for i := len(ops) - 1; i >= 0; i-- {
		id := ops[i].chanID()
		if !first && id == prev {
			continue
		}
		ops[i].unlock()
		prev = id
		first = false
	}
}

// tryPick performs spec §4.3 step 3 ("Pick ready"): assumes every op in
// ops is already locked. It counts the ready operations and, if any,
// commits to one chosen uniformly at random. Returns ok=false if none
// were ready, or if the randomly chosen one turned stale between the
// readiness check and execution (a third party claimed the opposing
// waiter first — see [Task.tryClaim]); callers treat that the same as
// "none ready" rather than rescanning, which keeps the protocol simple
// at the cost of an occasional extra parking round trip under heavy
// contention.
func tryPick(ops []Op, pos []int) (winnerPos int, notify func(), ok bool) {
	var ready []int
	for i, op := range ops {
		if op.isReadyLocked() {
			ready = append(ready, i)
		}
	}
	if len(ready) == 0 {
		return 0, nil, false
	}
	idx := ready[rand.IntN(len(ready))]
	notify, executed := ops[idx].executeLocked()
	if !executed {
		return 0, nil, false
	}
	return pos[idx], notify, true
}

// parkSelect performs spec §4.3 step 4 ("Enqueue"): assumes ops is
// already locked in order. Installs t's operation-selector substate and
// enqueues every operation before returning — t.mu stays held across
// both, per spec §9 first bullet, so a racing notifier can never find a
// half-installed task.
func parkSelect(t *Task, ops []Op, pos []int) {
	sel := &pendingSelect{ops: ops, pos: pos}
	t.mu.Lock()
	t.sel = sel
	t.winner.Store(noWinner)
	for i, op := range ops {
		op.enqueueLocked(t, pos[i])
	}
	t.mu.Unlock()
}

// TrySelect is the non-suspending selection entry point (spec §4.3,
// "try_select"): steps 1-3 only. Returns the winning operation's
// original position, or (-1, false) if none was ready. Safe to call
// from any goroutine, task-bound or not.
func TrySelect(ops ...Op) (int, bool) {
	uops, upos := dedupSort(ops)
	lockAll(uops)
	winnerPos, notify, ok := tryPick(uops, upos)
	unlockAll(uops)
	if !ok {
		return -1, false
	}
	if notify != nil {
		notify()
	}
	return winnerPos, true
}

// selectOp is the kont effect operation backing [SelectEff], [SendEff],
// and [RecvEff] (those are one-operation selects). Its Phantom carries
// the winner's original position as the effect's result type, matching
// the teacher's convention of embedding kont.Phantom[R] on effect
// structs (see op.go in the teacher package).
type selectOp struct {
	kont.Phantom[int]
	ops []Op
}

// SelectEff performs a full multi-way select from within a task body
// (spec §4.3, "select"): commits to exactly one ready operation, chosen
// uniformly at random among those ready, or parks until a counterparty
// completes one of them. The returned Eff resumes with the winning
// operation's original index into ops.
func SelectEff(ops ...Op) kont.Eff[int] {
	return kont.Perform(selectOp{ops: ops})
}

// SendEff performs a single suspending send from within a task body.
func SendEff[T any](ch *Channel[T], v T) kont.Eff[struct{}] {
	op := NewSendOp(ch, v)
	return kont.Map(kont.Perform(selectOp{ops: []Op{op}}), func(int) struct{} { return struct{}{} })
}

// RecvEff performs a single suspending receive from within a task body.
func RecvEff[T any](ch *Channel[T]) kont.Eff[T] {
	op := NewRecvOp(ch)
	return kont.Map(kont.Perform(selectOp{ops: []Op{op}}), func(int) T { return op.Result })
}

// tryOrPark implements the taskDispatcher contract used by the
// scheduler's stepping loop (task.go): attempt the full select
// protocol, returning (winnerPos, true) if it resolved immediately, or
// (nil, false) if the task is now parked awaiting a notifyComplete.
func (s selectOp) tryOrPark(t *Task) (kont.Resumed, bool) {
	uops, upos := dedupSort(s.ops)
	lockAll(uops)
	winnerPos, notify, ok := tryPick(uops, upos)
	if ok {
		unlockAll(uops)
		if notify != nil {
			notify()
		}
		return winnerPos, true
	}
	parkSelect(t, uops, upos)
	unlockAll(uops)
	return nil, false
}

// tryClaim attempts to become the sole winner for pos on t's currently
// parked selection. Exactly one caller ever succeeds for a given
// selection; this is what makes select atomic (spec §8, "Select
// atomicity") even when two counterparties on two different channels
// race to complete two of t's enqueued operations at once — the loser
// must not transfer its value at all, which is why channel.go's
// completeSendLocked/completeReceiveLocked call this before writing
// through a task waiter's slot, not after.
//
// This is a bare CAS on Task.winner, deliberately not guarded by t.mu:
// the caller already holds the popped waiter's channel lock (it is
// mid-way through completeSendLocked/completeReceiveLocked), and
// notifyComplete, below, takes t.mu and then *sibling* channel locks
// one at a time (releasing t.mu before the first of them). If tryClaim
// also took t.mu while a channel lock was held, a notifier that kept
// t.mu across the sibling dequeues would give two orderings
// (channel→task here, task→channel there) that could deadlock against
// each other across two channels shared by the same selection — spec §5's "a task mutex is never held while
// acquiring a channel lock except transiently inside notify_complete"
// only grants that exception to notify_complete itself, not to the
// claim step. A lock-free CAS sidesteps the conflict entirely.
func (t *Task) tryClaim(pos int) bool {
	return t.winner.CompareAndSwap(noWinner, int64(pos))
}

// notifyComplete finalizes a select that tryClaim already won: it
// cancels every other still-enqueued sibling operation and resumes t.
// Called with no channel lock held by the caller (spec §4.3 step 5
// ordering note). t.mu is held only long enough to detach sel — the
// sibling-dequeue loop runs after it is released, so a sibling
// channel's lock is never held concurrently with t.mu, keeping the two
// lock orders (channel→task in parkSelect, task→channel nowhere) from
// ever meeting.
func (t *Task) notifyComplete(winnerPos int) {
	t.mu.Lock()
	sel := t.sel
	t.sel = nil
	t.mu.Unlock()
	if sel == nil {
		return
	}
	for i, op := range sel.ops {
		if sel.pos[i] == winnerPos {
			continue
		}
		op.dequeue(t, sel.pos[i])
	}
	t.resume(winnerPos)
}
