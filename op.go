// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

// opKind distinguishes a send attempt from a receive attempt within an
// Op (spec §3, "Channel operation": kind ∈ {send, receive}).
type opKind int

const (
	kindSend opKind = iota
	kindRecv
)

// Op is the uniform descriptor for one attempted send or receive (spec
// §4.2). Concrete implementations are [*SendOp] and [*RecvOp]; both are
// generic over the channel's element type, but Op itself is not, so a
// [SelectEff] or [TrySelect] call can mix operations over channels of different element
// types in one array — mirroring the original's "abstract lockable
// channel base" (spec §9).
//
// Every method except dequeue assumes the underlying channel's mutex is
// already held by the caller (via lock/unlock); dequeue is self-locking
// since it is invoked independently, after the initial ordered
// acquisition has ended.
type Op interface {
	kind() opKind
	chanID() chanID

	lock()
	unlock()

	// isReadyLocked reports whether executeLocked would succeed right
	// now, without parking.
	isReadyLocked() bool

	// executeLocked performs the ready completion. If a task waiter on
	// the other side was released, notify is non-nil and must be
	// invoked once every lock the selecting call holds has been released
	// (see notifyReleased).
	executeLocked() (notify func(), ok bool)

	// enqueueLocked parks owner's operation at pos on this channel's
	// wait queue for this op's direction.
	enqueueLocked(owner *Task, pos int)

	// dequeue removes the entry previously enqueued for (owner, pos),
	// if still present. Reports whether an entry was removed.
	dequeue(owner *Task, pos int) bool
}

// SendOp is a send attempt on Ch with Value as the value to deliver.
// Movable distinguishes [NewSendOp]'s copying hand-off from
// [NewMovableSendOp]'s moving one (original_source/channel.hpp's
// Channel_send(Handle, const T*) vs Channel_send(Handle, T*)): a movable
// send's Value is zeroed once delivered, so the op cannot be resent or
// inspected for its old contents afterward.
type SendOp[T any] struct {
	Ch      *Channel[T]
	Value   T
	Movable bool
}

// NewSendOp constructs a send operation descriptor for use with
// [SelectEff] or [TrySelect]. The sent value is copied; Value still holds
// it after delivery.
func NewSendOp[T any](ch *Channel[T], v T) *SendOp[T] {
	return &SendOp[T]{Ch: ch, Value: v}
}

// NewMovableSendOp is [NewSendOp]'s moving counterpart: once v is
// delivered, Value is reset to the zero value, mirroring the original's
// non-const Channel_send(Handle, T*) overload, which hands off the
// pointed-to object rather than reading through a const one. Go has no
// move semantics to enforce this at the type level, so it is a
// best-effort mirror: nothing stops a caller from reading Value in the
// narrow window between delivery and the zeroing, which both happen
// while the channel's lock is held.
func NewMovableSendOp[T any](ch *Channel[T], v T) *SendOp[T] {
	return &SendOp[T]{Ch: ch, Value: v, Movable: true}
}

func (s *SendOp[T]) kind() opKind        { return kindSend }
func (s *SendOp[T]) chanID() chanID      { return s.Ch.id }
func (s *SendOp[T]) lock()               { s.Ch.mu.Lock() }
func (s *SendOp[T]) unlock()             { s.Ch.mu.Unlock() }
func (s *SendOp[T]) isReadyLocked() bool { return s.Ch.sendReadyLocked() }

func (s *SendOp[T]) executeLocked() (func(), bool) {
	w, ok := s.Ch.completeSendLocked(s.Value)
	if !ok {
		return nil, false
	}
	if s.Movable {
		var zero T
		s.Value = zero
	}
	if w == nil {
		return nil, true
	}
	return func() { notifyReleased(w) }, true
}

func (s *SendOp[T]) enqueueLocked(owner *Task, pos int) {
	s.Ch.senders.pushTask(&s.Value, s.Movable, owner, pos)
}

func (s *SendOp[T]) dequeue(owner *Task, pos int) bool {
	s.Ch.mu.Lock()
	w := s.Ch.senders.removeTask(owner, pos)
	s.Ch.mu.Unlock()
	return w != nil
}

// RecvOp is a receive attempt on Ch. On success, Result holds the
// delivered value.
type RecvOp[T any] struct {
	Ch     *Channel[T]
	Result T
}

// NewRecvOp constructs a receive operation descriptor for use with
// [SelectEff] or [TrySelect].
func NewRecvOp[T any](ch *Channel[T]) *RecvOp[T] {
	return &RecvOp[T]{Ch: ch}
}

func (r *RecvOp[T]) kind() opKind        { return kindRecv }
func (r *RecvOp[T]) chanID() chanID      { return r.Ch.id }
func (r *RecvOp[T]) lock()               { r.Ch.mu.Lock() }
func (r *RecvOp[T]) unlock()             { r.Ch.mu.Unlock() }
func (r *RecvOp[T]) isReadyLocked() bool { return r.Ch.recvReadyLocked() }

func (r *RecvOp[T]) executeLocked() (func(), bool) {
	w, ok := r.Ch.completeReceiveLocked(&r.Result)
	if !ok {
		return nil, false
	}
	if w == nil {
		return nil, true
	}
	return func() { notifyReleased(w) }, true
}

func (r *RecvOp[T]) enqueueLocked(owner *Task, pos int) {
	r.Ch.receivers.pushTask(&r.Result, false, owner, pos)
}

func (r *RecvOp[T]) dequeue(owner *Task, pos int) bool {
	r.Ch.mu.Lock()
	w := r.Ch.receivers.removeTask(owner, pos)
	r.Ch.mu.Unlock()
	return w != nil
}
