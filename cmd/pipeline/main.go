// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command pipeline is a small illustrative fan-out/fan-in chain: one
// generator task, several doubling worker tasks racing to receive from
// a shared channel, and one collector task that gives up after an idle
// timeout instead of waiting forever.
package main

import (
	"fmt"
	"time"

	coro "code.hybscloud.com/corochan"
	"code.hybscloud.com/kont"
)

func main() {
	sched := coro.NewScheduler(coro.WithWorkers(4))
	defer sched.Shutdown()

	in := coro.NewChannel[int](8)
	out := coro.NewChannel[int](8)

	coro.Go(sched, coro.Loop(0, genStep(in)))

	const stages = 3
	for i := 0; i < stages; i++ {
		coro.Go(sched, coro.Loop(struct{}{}, doubleStep(in, out)))
	}

	h := coro.Go(sched, collect(out, 10))
	<-h.Done()
	fmt.Println("collected", h.Result(), "values")
}

// genStep sends 0..9 into in, one per iteration, then finishes.
func genStep(in *coro.Channel[int]) func(int) kont.Eff[kont.Either[int, struct{}]] {
	return func(i int) kont.Eff[kont.Either[int, struct{}]] {
		if i >= 10 {
			return kont.Pure(kont.Right[int, struct{}](struct{}{}))
		}
		return kont.Bind(coro.SendEff(in, i), func(struct{}) kont.Eff[kont.Either[int, struct{}]] {
			return kont.Pure(kont.Left[int, struct{}](i + 1))
		})
	}
}

// doubleStep receives a value from in, sends its double to out, and
// loops forever; several instances run concurrently and race for each
// value arriving on in.
func doubleStep(in, out *coro.Channel[int]) func(struct{}) kont.Eff[kont.Either[struct{}, struct{}]] {
	return func(struct{}) kont.Eff[kont.Either[struct{}, struct{}]] {
		return kont.Bind(coro.RecvEff(in), func(n int) kont.Eff[kont.Either[struct{}, struct{}]] {
			return kont.Bind(coro.SendEff(out, n*2), func(struct{}) kont.Eff[kont.Either[struct{}, struct{}]] {
				return kont.Pure(kont.Left[struct{}, struct{}](struct{}{}))
			})
		})
	}
}

// collect receives up to n values from out, printing each, and returns
// early if two seconds pass without one arriving.
func collect(out *coro.Channel[int], n int) kont.Eff[int] {
	return coro.Loop(0, func(count int) kont.Eff[kont.Either[int, int]] {
		if count >= n {
			return kont.Pure(kont.Right[int, int](count))
		}
		valOp := coro.NewRecvOp(out)
		timeoutOp := coro.NewRecvOp(coro.After(2 * time.Second))
		return kont.Map(coro.SelectEff(valOp, timeoutOp), func(winner int) kont.Either[int, int] {
			if winner == 1 {
				return kont.Right[int, int](count)
			}
			fmt.Println("collected:", valOp.Result)
			return kont.Left[int, int](count + 1)
		})
	})
}
