// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro_test

import (
	"sync/atomic"
	"testing"

	coro "code.hybscloud.com/corochan"
	"code.hybscloud.com/kont"
)

// TestSchedulerManyTasksComplete hammers every worker's ready queue with
// far more tasks than workers, relying on work-stealing to drain queues
// that would otherwise back up behind a single busy worker. Stresses the
// same lfq.MPMC queues skipRace exists for.
func TestSchedulerManyTasksComplete(t *testing.T) {
	skipRace(t)

	sched := coro.NewScheduler(coro.WithWorkers(4))
	defer sched.Shutdown()

	const n = 5000
	var completed int64
	handles := make([]coro.Handle[int], n)
	for i := 0; i < n; i++ {
		i := i
		handles[i] = coro.Go(sched, kont.Map(kont.Pure(i), func(v int) int {
			atomic.AddInt64(&completed, 1)
			return v
		}))
	}
	for i, h := range handles {
		<-h.Done()
		if h.Result() != i {
			t.Fatalf("task %d: result = %d, want %d", i, h.Result(), i)
		}
	}
	if got := atomic.LoadInt64(&completed); got != n {
		t.Fatalf("completed %d tasks, want %d", got, n)
	}
}

// TestQueueConservation is spec §8's "Queue conservation": every value
// sent through a chain of relay stages arrives exactly once at the far
// end, regardless of how many workers are racing to run the stages.
func TestQueueConservation(t *testing.T) {
	sched := coro.NewScheduler(coro.WithWorkers(8))
	defer sched.Shutdown()

	in := coro.NewChannel[int](4)
	out := coro.NewChannel[int](4)
	const stages = 5
	prev := in
	for i := 0; i < stages; i++ {
		next := out
		if i < stages-1 {
			next = coro.NewChannel[int](4)
		}
		coro.Go(sched, coro.Loop(struct{}{}, relayStep(prev, next)))
		prev = next
	}

	const n = 200
	go func() {
		for i := 0; i < n; i++ {
			in.SyncSend(i)
		}
	}()
	seen := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		v := out.SyncReceive()
		if seen[v-stages] {
			t.Fatalf("value %d observed twice", v-stages)
		}
		seen[v-stages] = true
	}
	if len(seen) != n {
		t.Fatalf("observed %d distinct values, want %d", len(seen), n)
	}
}

// relayStep is relay's repeating counterpart: receive x, send x+1, loop
// forever. Used where a stage must forward more than one value.
func relayStep(right, left *coro.Channel[int]) func(struct{}) kont.Eff[kont.Either[struct{}, struct{}]] {
	return func(struct{}) kont.Eff[kont.Either[struct{}, struct{}]] {
		return kont.Bind(coro.RecvEff(right), func(x int) kont.Eff[kont.Either[struct{}, struct{}]] {
			return kont.Bind(coro.SendEff(left, x+1), func(struct{}) kont.Eff[kont.Either[struct{}, struct{}]] {
				return kont.Pure(kont.Left[struct{}, struct{}](struct{}{}))
			})
		})
	}
}
