// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"sync"

	"code.hybscloud.com/iox"
)

// Channel is a bounded, typed rendezvous point (spec §3, "Channel<T>").
// A zero capacity is a pure rendezvous: a send only completes when a
// receiver is already waiting, and vice versa.
//
// Every Channel carries one mutex guarding its ring buffer and its two
// wait queues. Reference lifetime is left to the Go garbage collector
// rather than hand-rolled reference counting (the original's "last
// handle drops" ownership model is exactly what GC already gives a Go
// value — see DESIGN.md).
type Channel[T any] struct {
	mu   sync.Mutex
	cond sync.Cond
	id   chanID

	capacity int
	buf      []T
	head     int
	count    int

	senders   waitQueue[T]
	receivers waitQueue[T]
}

// NewChannel creates a channel with the given capacity (default 0, a
// pure rendezvous). A negative capacity is an invalid argument (spec
// §7) and panics at the call site, matching the teacher's convention of
// failing loudly on caller misuse rather than returning an error for
// programming mistakes.
func NewChannel[T any](capacity ...int) *Channel[T] {
	c := 0
	if len(capacity) > 0 {
		c = capacity[0]
	}
	if c < 0 {
		panic("coro: negative channel capacity")
	}
	ch := &Channel[T]{id: nextChanID(), capacity: c}
	ch.cond.L = &ch.mu
	if c > 0 {
		ch.buf = make([]T, c)
	}
	return ch
}

// ID returns the channel's stable identity, used by the selector to
// impose a canonical lock order across distinct channels (spec §3).
func (c *Channel[T]) ID() chanID { return c.id }

func (c *Channel[T]) bufPush(v T) {
	idx := (c.head + c.count) % c.capacity
	c.buf[idx] = v
	c.count++
}

func (c *Channel[T]) bufPop() T {
	v := c.buf[c.head]
	var zero T
	c.buf[c.head] = zero // avoid pinning the popped value
	c.head = (c.head + 1) % c.capacity
	c.count--
	return v
}

// sendReadyLocked reports whether a send would complete without
// parking (spec §4.1 rules 1-2). Caller holds mu.
func (c *Channel[T]) sendReadyLocked() bool {
	if !c.receivers.empty() {
		return true
	}
	return c.capacity > 0 && c.count < c.capacity
}

// recvReadyLocked reports whether a receive would complete without
// parking (spec §4.1 rules 3-4). Caller holds mu.
func (c *Channel[T]) recvReadyLocked() bool {
	return c.count > 0 || !c.senders.empty()
}

// completeSendLocked performs rule 1 or 2. If a task waiter was
// released, it is returned for the caller to notify once mu is no
// longer held (thread waiters are released inline via Cond.Broadcast,
// since that never risks a cross-channel lock). Caller holds mu.
//
// A popped task waiter may belong to a multi-operation select that is
// also enqueued on other channels; tryClaim settles, atomically, which
// one of its enqueued operations (if any) actually wins, so this loop
// must win that claim before writing through the waiter's slot, and
// must move on to the next-oldest waiter rather than transfer the
// value if it loses (spec §8, "Select atomicity").
func (c *Channel[T]) completeSendLocked(v T) (released *waiter[T], ok bool) {
	for {
		w := c.receivers.popFront()
		if w == nil {
			break
		}
		if w.kind == waiterTask {
			if !w.owner.tryClaim(w.pos) {
				continue
			}
			*w.slot = v
			return w, true
		}
		*w.slot = v
		*w.released = true
		c.cond.Broadcast()
		return nil, true
	}
	if c.capacity > 0 && c.count < c.capacity {
		c.bufPush(v)
		return nil, true
	}
	return nil, false
}

// completeReceiveLocked performs rule 3 or 4, writing the received
// value into dest. Buffer compaction (spec §4.1 rule 3: pulling the
// oldest parked sender into the freed slot) may additionally release a
// sender; that release is returned the same way as completeSendLocked,
// and is subject to the same claim-before-transfer requirement. Caller
// holds mu.
func (c *Channel[T]) completeReceiveLocked(dest *T) (released *waiter[T], ok bool) {
	if c.count > 0 {
		*dest = c.bufPop()
		for {
			w := c.senders.popFront()
			if w == nil {
				break
			}
			if w.kind == waiterTask {
				if !w.owner.tryClaim(w.pos) {
					continue
				}
				c.bufPush(w.take())
				return w, true
			}
			c.bufPush(w.take())
			*w.released = true
			c.cond.Broadcast()
			return nil, true
		}
		return nil, true
	}
	for {
		w := c.senders.popFront()
		if w == nil {
			break
		}
		if w.kind == waiterTask {
			if !w.owner.tryClaim(w.pos) {
				continue
			}
			*dest = w.take()
			return w, true
		}
		*dest = w.take()
		*w.released = true
		c.cond.Broadcast()
		return nil, true
	}
	return nil, false
}

// notifyReleased delivers the completion to a released task waiter.
// Must be called with the channel's mutex NOT held (the task's
// notifyComplete may lock sibling channels from a select; holding our
// own lock here would risk a same-goroutine relock if this completer
// is itself a multi-channel select that shares a channel with the
// released task).
func notifyReleased[T any](w *waiter[T]) {
	if w != nil {
		w.owner.notifyComplete(w.pos)
	}
}

// TrySend attempts a non-blocking send (spec §4.1, "Non-blocking").
// Returns [code.hybscloud.com/iox.ErrWouldBlock] if the buffer is full
// and no receiver is waiting.
func (c *Channel[T]) TrySend(v T) error {
	c.mu.Lock()
	w, ok := c.completeSendLocked(v)
	c.mu.Unlock()
	if !ok {
		return iox.ErrWouldBlock
	}
	notifyReleased(w)
	return nil
}

// TryReceive attempts a non-blocking receive. Returns
// [code.hybscloud.com/iox.ErrWouldBlock] if the buffer is empty and no
// sender is waiting.
func (c *Channel[T]) TryReceive() (T, error) {
	var v T
	c.mu.Lock()
	w, ok := c.completeReceiveLocked(&v)
	c.mu.Unlock()
	if !ok {
		var zero T
		return zero, iox.ErrWouldBlock
	}
	notifyReleased(w)
	return v, nil
}

// SyncSend blocks the calling OS thread until v is delivered (spec
// §4.1, "Blocking-thread"). Safe to mix with task-suspending sends and
// receives on the same channel; ordering is strict arrival-order FIFO
// regardless of waiter kind (spec §9).
func (c *Channel[T]) SyncSend(v T) {
	c.mu.Lock()
	if w, ok := c.completeSendLocked(v); ok {
		c.mu.Unlock()
		notifyReleased(w)
		return
	}
	released := false
	value := v
	c.senders.pushThread(&value, false, &released)
	for !released {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// SyncReceive blocks the calling OS thread until a value is available.
func (c *Channel[T]) SyncReceive() T {
	c.mu.Lock()
	var dest T
	if w, ok := c.completeReceiveLocked(&dest); ok {
		c.mu.Unlock()
		notifyReleased(w)
		return dest
	}
	released := false
	c.receivers.pushThread(&dest, false, &released)
	for !released {
		c.cond.Wait()
	}
	c.mu.Unlock()
	return dest
}
