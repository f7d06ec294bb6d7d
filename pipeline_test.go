// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro_test

import (
	"testing"
	"time"

	coro "code.hybscloud.com/corochan"
	"code.hybscloud.com/kont"
)

// TestPipelineChain is spec §8 scenario 1: a chain of N tasks, each
// receiving x on its right-hand channel and sending x+1 on its
// left-hand one, seeded with 0 at the tail; the head must observe
// exactly N.
func TestPipelineChain(t *testing.T) {
	for _, n := range []int{0, 1, 1000} {
		n := n
		t.Run(nameForN(n), func(t *testing.T) {
			sched := coro.NewScheduler(coro.WithWorkers(4))
			defer sched.Shutdown()

			head := coro.NewChannel[int](50)
			tail := head
			for i := 0; i < n; i++ {
				right := tail
				left := coro.NewChannel[int](50)
				coro.Go(sched, relay(right, left))
				tail = left
			}
			tail.SyncSend(0)
			got := head.SyncReceive()
			if n == 0 {
				if got != 0 {
					t.Fatalf("N=0: got %d, want 0", got)
				}
				return
			}
			if got != n {
				t.Fatalf("N=%d: got %d, want %d", n, got, n)
			}
		})
	}
}

func nameForN(n int) string {
	switch n {
	case 0:
		return "N=0"
	case 1:
		return "N=1"
	default:
		return "N=1000"
	}
}

// relay is one pipeline stage: x <- right.receive(); left.send(x+1).
func relay(right, left *coro.Channel[int]) kont.Eff[struct{}] {
	return kont.Bind(coro.RecvEff(right), func(x int) kont.Eff[struct{}] {
		return coro.SendEff(left, x+1)
	})
}

// TestSelectTwoSources is spec §8 scenario 2: a task selects between
// a.recv and b.recv, then forwards the winner to r; sending on a after
// a short delay must deliver a's value to r, and vice versa.
func TestSelectTwoSources(t *testing.T) {
	for _, sendOnA := range []bool{true, false} {
		sendOnA := sendOnA
		t.Run(map[bool]string{true: "a", false: "b"}[sendOnA], func(t *testing.T) {
			sched := coro.NewScheduler(coro.WithWorkers(2))
			defer sched.Shutdown()

			a := coro.NewChannel[int](1)
			b := coro.NewChannel[int](1)
			r := coro.NewChannel[int](1)

			coro.Go(sched, forwardFirst(a, b, r))

			go func() {
				time.Sleep(5 * time.Millisecond)
				if sendOnA {
					_ = a.TrySend(1)
				} else {
					_ = b.TrySend(2)
				}
			}()

			got := r.SyncReceive()
			want := 1
			if !sendOnA {
				want = 2
			}
			if got != want {
				t.Fatalf("got %d, want %d", got, want)
			}
		})
	}
}

func forwardFirst(a, b, r *coro.Channel[int]) kont.Eff[struct{}] {
	aOp := coro.NewRecvOp(a)
	bOp := coro.NewRecvOp(b)
	return kont.Bind(coro.SelectEff(aOp, bOp), func(winner int) kont.Eff[struct{}] {
		if winner == 0 {
			return coro.SendEff(r, aOp.Result)
		}
		return coro.SendEff(r, bOp.Result)
	})
}

// TestUnbufferedRendezvous is spec §8 scenario 3: a capacity-0 channel
// with one sending task and one receiving task must both complete,
// with the receiver observing exactly what the sender sent.
func TestUnbufferedRendezvous(t *testing.T) {
	sched := coro.NewScheduler(coro.WithWorkers(2))
	defer sched.Shutdown()

	ch := coro.NewChannel[int]()
	sender := coro.Go(sched, coro.SendEff(ch, 42))
	receiver := coro.Go(sched, coro.RecvEff(ch))

	<-sender.Done()
	<-receiver.Done()
	if got := receiver.Result(); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

// TestTimeout is spec §8 scenario 5: selecting between an empty
// channel and a 10ms timer must take the timer branch; sending on the
// channel within 1ms must take the channel branch instead.
func TestTimeout(t *testing.T) {
	t.Run("timer fires first", func(t *testing.T) {
		sched := coro.NewScheduler(coro.WithWorkers(2))
		defer sched.Shutdown()

		c := coro.NewChannel[int](1)
		cOp := coro.NewRecvOp(c)
		timerOp := coro.NewRecvOp(coro.After(10 * time.Millisecond))
		h := coro.Go(sched, coro.SelectEff(cOp, timerOp))
		<-h.Done()
		if h.Result() != 1 {
			t.Fatalf("winner = %d, want 1 (timer)", h.Result())
		}
	})

	t.Run("channel fires first", func(t *testing.T) {
		sched := coro.NewScheduler(coro.WithWorkers(2))
		defer sched.Shutdown()

		c := coro.NewChannel[int](1)
		cOp := coro.NewRecvOp(c)
		timerOp := coro.NewRecvOp(coro.After(50 * time.Millisecond))
		h := coro.Go(sched, coro.SelectEff(cOp, timerOp))
		go func() {
			time.Sleep(1 * time.Millisecond)
			_ = c.TrySend(5)
		}()
		<-h.Done()
		if h.Result() != 0 {
			t.Fatalf("winner = %d, want 0 (channel)", h.Result())
		}
		if cOp.Result != 5 {
			t.Fatalf("cOp.Result = %d, want 5", cOp.Result)
		}
	})
}
