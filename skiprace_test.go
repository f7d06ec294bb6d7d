// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package coro_test

import "testing"

// skipRace skips tests that stress the scheduler's lfq.MPMC ready
// queues under heavy contention. The race detector tracks per-variable
// happens-before and cannot see lfq's cross-variable memory ordering
// (store-release on a slot, load-acquire on its sequence number),
// producing false positives rather than real findings here.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: lfq.MPMC uses cross-variable memory ordering")
}
