// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"errors"
	"time"

	"code.hybscloud.com/kont"
)

// ErrAwaitTimeout is the error recorded for every future still pending
// when an [AwaitAllEff] timeout elapses (spec §4.4, "optional timeout").
var ErrAwaitTimeout = errors.New("coro: await timed out")

// AnyResult is the outcome of [AwaitAnyEff]: which future settled, and
// what it settled to. A timed-out call reports Index -1 and a zero
// Value.
type AnyResult[T any] struct {
	Index int
	Value kont.Either[error, T]
}

// AwaitAnyEff suspends until the first of futs settles, resuming with
// its index and settled value (spec §4.4, "await_any"). Built as one
// flat select over every future's value and error channel, so the same
// uniform-random tie-break that governs plain channel selects also
// governs which future wins when two settle at once.
//
// An optional timeout extends the select with one more branch, a
// [Timer] channel (spec §4.4, "optional timeout"): if it fires before
// any future settles, AwaitAnyEff resumes with Index -1 rather than
// waiting forever. Passing more than one timeout is a caller error;
// only the first is honored.
func AwaitAnyEff[T any](futs []*Future[T], timeout ...time.Duration) kont.Eff[AnyResult[T]] {
	ops := make([]Op, 0, len(futs)*2+1)
	valOps := make([]*RecvOp[T], len(futs))
	errOps := make([]*RecvOp[error], len(futs))
	for i, f := range futs {
		valOps[i] = NewRecvOp(f.valueCh)
		errOps[i] = NewRecvOp(f.errCh)
		ops = append(ops, valOps[i], errOps[i])
	}
	timerPos := -1
	if len(timeout) > 0 {
		timerPos = len(ops)
		ops = append(ops, NewRecvOp(After(timeout[0])))
	}
	return kont.Map(SelectEff(ops...), func(winner int) AnyResult[T] {
		if timerPos >= 0 && winner == timerPos {
			var zero kont.Either[error, T]
			return AnyResult[T]{Index: -1, Value: zero}
		}
		idx := winner / 2
		if winner%2 == 0 {
			return AnyResult[T]{Index: idx, Value: kont.Right[error, T](valOps[idx].Result)}
		}
		return AnyResult[T]{Index: idx, Value: kont.Left[error, T](errOps[idx].Result)}
	})
}

// AwaitAllEff suspends until every future in futs has settled, resuming
// with their results in futs' original order (spec §4.4, "await_all").
// Unlike AwaitAnyEff this cannot be a single select: each round commits
// to exactly one winner and must drop that future from the pool before
// selecting again, so the futures that settle later are not starved by
// always re-racing against an already-settled one. Built on [Loop],
// with the still-pending future indices as the loop state.
//
// An optional timeout (spec §4.4, "optional timeout") bounds the whole
// wait, not any single round: the same [Timer] channel is added as one
// more branch to every round's select, so if it fires before the pool
// drains, every future still remaining gets [ErrAwaitTimeout] in its
// result slot and AwaitAllEff returns immediately instead of waiting
// out the rest of the pool.
func AwaitAllEff[T any](futs []*Future[T], timeout ...time.Duration) kont.Eff[[]kont.Either[error, T]] {
	results := make([]kont.Either[error, T], len(futs))
	remaining := make([]int, len(futs))
	for i := range remaining {
		remaining[i] = i
	}
	var timerCh *Channel[time.Time]
	if len(timeout) > 0 {
		timerCh = After(timeout[0])
	}
	type state = []int
	type final = []kont.Either[error, T]
	return Loop(remaining, func(rem state) kont.Eff[kont.Either[state, final]] {
		if len(rem) == 0 {
			return kont.Pure(kont.Right[state, final](results))
		}
		ops := make([]Op, 0, len(rem)*2+1)
		valOps := make([]*RecvOp[T], len(rem))
		errOps := make([]*RecvOp[error], len(rem))
		for i, fi := range rem {
			valOps[i] = NewRecvOp(futs[fi].valueCh)
			errOps[i] = NewRecvOp(futs[fi].errCh)
			ops = append(ops, valOps[i], errOps[i])
		}
		timerPos := -1
		if timerCh != nil {
			timerPos = len(ops)
			ops = append(ops, NewRecvOp(timerCh))
		}
		return kont.Map(SelectEff(ops...), func(winner int) kont.Either[state, final] {
			if timerPos >= 0 && winner == timerPos {
				for _, fi := range rem {
					results[fi] = kont.Left[error, T](ErrAwaitTimeout)
				}
				return kont.Right[state, final](results)
			}
			slot := winner / 2
			fi := rem[slot]
			if winner%2 == 0 {
				results[fi] = kont.Right[error, T](valOps[slot].Result)
			} else {
				results[fi] = kont.Left[error, T](errOps[slot].Result)
			}
			next := make(state, 0, len(rem)-1)
			for _, r := range rem {
				if r != fi {
					next = append(next, r)
				}
			}
			return kont.Left[state, final](next)
		})
	})
}
