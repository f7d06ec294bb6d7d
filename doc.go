// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package coro provides a user-space structured-concurrency runtime:
// cooperative tasks ("coroutines") communicating through typed, bounded
// channels with a fair multi-way selection primitive, plus composable
// futures and a single timer service.
//
// # Architecture
//
//   - Channel: bounded FIFO buffer + two wait queues (senders, receivers)
//     guarded by one mutex per channel. Three access modes: non-blocking
//     ([Channel.TrySend]/[Channel.TryReceive]), OS-thread-blocking
//     ([Channel.SyncSend]/[Channel.SyncReceive]), and task-suspending
//     ([SendEff]/[RecvEff], or [SelectEff] with a single [Op]).
//   - Selection: [SelectEff] and [TrySelect] take a slice of [Op] values
//     (one per candidate channel send/receive), lock every distinct
//     channel in a canonical order, and commit to exactly one ready
//     operation, chosen uniformly at random among those ready.
//   - Tasks: a task body is a [code.hybscloud.com/kont.Eff] composition.
//     [Go] and [Start] submit it to the [Scheduler] passed as their
//     first argument (there is no implicit default; [Default] returns
//     the process-wide one), which drives
//     it with [code.hybscloud.com/kont.StepExpr] and
//     [code.hybscloud.com/kont.Suspension.Resume] one effect at a time —
//     the task suspends only at an explicit channel, select, future, or
//     timer point, never preemptively.
//   - Futures: [Future] pairs a value channel with an error channel;
//     [GetEff] awaits either, [Future.Equal] compares by that channel
//     identity. [AwaitAnyEff] and [AwaitAllEff] extend selection to N
//     futures plus an optional timeout.
//   - Timers: one dedicated goroutine owns a priority queue of alarms and
//     delivers each expiry onto a [Timer]'s channel. There is no direct
//     task alarm: a task waiting on a timer is woken by receiving from
//     that channel, like any other channel receive.
//
// # Non-goals
//
// Preemption, task migration beyond a single neighbor-queue steal
// attempt, priority scheduling, persistent state, cross-process IPC, and
// selection across event sources other than channels and one optional
// timeout. RPC/marshalling, per-task local storage, and logging/
// diagnostics are external collaborators, referenced only by interface.
//
// # Example
//
//	sched := coro.NewScheduler()
//	defer sched.Shutdown()
//
//	right := coro.NewChannel[int](50)
//	left := coro.NewChannel[int](50)
//	h := coro.Go(sched, kont.Bind(coro.RecvEff(right), func(n int) kont.Eff[struct{}] {
//		return coro.SendEff(left, n+1)
//	}))
//	<-h.Done()
package coro
