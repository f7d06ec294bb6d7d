// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"sync"

	"code.hybscloud.com/kont"
)

// Future is a read-only handle to a value that will arrive exactly
// once, either as a value or as an error (spec §3, "Future<T>"). It is
// built directly out of two capacity-1 channels rather than a bespoke
// synchronization primitive, so every operation a task can perform on
// a Future — suspending get, non-blocking try_get, multi-future await —
// rides the same selector machinery as plain channel sends and
// receives (select.go).
type Future[T any] struct {
	valueCh *Channel[T]
	errCh   *Channel[error]
}

// NewPromise creates a Future together with the resolve/reject
// functions that settle it (spec §4.4, "Promise/Future pair"). Only the
// first call to either function has any effect; later calls, on either
// function, are silently ignored, matching "exactly one of them will
// ever deliver, and only once".
func NewPromise[T any]() (fut *Future[T], resolve func(T), reject func(error)) {
	valueCh := NewChannel[T](1)
	errCh := NewChannel[error](1)
	var once sync.Once
	resolve = func(v T) { once.Do(func() { valueCh.TrySend(v) }) }
	reject = func(err error) { once.Do(func() { errCh.TrySend(err) }) }
	return &Future[T]{valueCh: valueCh, errCh: errCh}, resolve, reject
}

// GetEff suspends the calling task until fut settles, resuming with
// Right(value) or Left(err) (spec §4.4, "get"). It is exactly a
// two-operation select between fut's value and error channels, so it
// composes with everything else built on [SelectEff].
func GetEff[T any](fut *Future[T]) kont.Eff[kont.Either[error, T]] {
	valOp := NewRecvOp(fut.valueCh)
	errOp := NewRecvOp(fut.errCh)
	return kont.Map(SelectEff(valOp, errOp), func(winner int) kont.Either[error, T] {
		if winner == 0 {
			return kont.Right[error, T](valOp.Result)
		}
		return kont.Left[error, T](errOp.Result)
	})
}

// Equal reports whether fut and other are the same future (spec §6,
// "comparison by underlying channel identity"), not merely two futures
// that happen to settle to equal values. Two [NewPromise] calls always
// produce distinct futures, even if their values later compare equal.
func (fut *Future[T]) Equal(other *Future[T]) bool {
	if fut == nil || other == nil {
		return fut == other
	}
	return fut.valueCh.ID() == other.valueCh.ID()
}

// TryGet is the non-suspending counterpart to GetEff (spec §4.4,
// "try_get"). The second return value is false if fut has not yet
// settled.
func (fut *Future[T]) TryGet() (kont.Either[error, T], bool) {
	valOp := NewRecvOp(fut.valueCh)
	errOp := NewRecvOp(fut.errCh)
	winner, ok := TrySelect(valOp, errOp)
	if !ok {
		var zero kont.Either[error, T]
		return zero, false
	}
	if winner == 0 {
		return kont.Right[error, T](valOp.Result), true
	}
	return kont.Left[error, T](errOp.Result), true
}
