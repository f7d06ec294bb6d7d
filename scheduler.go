// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import (
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
	"code.hybscloud.com/spin"
)

// defaultReadyQueueCapacity bounds each worker's ready queue. Rounded
// up to the next power of 2 by lfq; 1024 covers a deeply fanned-out
// pipeline without forcing pushReady's producer-side backoff loop.
const defaultReadyQueueCapacity = 1024

// Scheduler is a fixed pool of OS-thread-backed workers driving tasks
// to completion (spec §3, "Scheduler"), grounded in the teacher's
// Run/RunExpr cooperative interleaving loop but generalized from two
// fixed sides to an arbitrary, dynamically growing population of
// tasks. Every worker owns one lfq.MPMC ready queue — many wait-side
// events across many channels, futures, and timers push into it, and
// every worker (including its owner) may pop from it, which is what
// makes it a work-stealing pool rather than a strict round-robin one.
type Scheduler struct {
	queues []*lfq.MPMC[*Task]
	next   atomix.Uint64

	doorMu   sync.Mutex
	doorbell sync.Cond

	shutdown chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Scheduler at construction time (spec §9,
// functional-options configuration, matching the ambient convention
// used across the teacher's own constructors).
type Option func(*schedulerConfig)

type schedulerConfig struct {
	workers       int
	queueCapacity int
}

// WithWorkers sets the fixed worker-goroutine count. Defaults to
// runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *schedulerConfig) { c.workers = n }
}

// WithReadyQueueCapacity sets each worker's ready-queue capacity.
// Defaults to defaultReadyQueueCapacity.
func WithReadyQueueCapacity(n int) Option {
	return func(c *schedulerConfig) { c.queueCapacity = n }
}

// NewScheduler starts a worker pool. Callers must call Shutdown when
// done to release the pool's goroutines.
func NewScheduler(opts ...Option) *Scheduler {
	cfg := schedulerConfig{
		workers:       runtime.GOMAXPROCS(0),
		queueCapacity: defaultReadyQueueCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	s := &Scheduler{
		queues:   make([]*lfq.MPMC[*Task], cfg.workers),
		shutdown: make(chan struct{}),
	}
	s.doorbell.L = &s.doorMu
	for i := range s.queues {
		s.queues[i] = lfq.NewMPMC[*Task](cfg.queueCapacity)
	}

	s.wg.Add(cfg.workers)
	for i := 0; i < cfg.workers; i++ {
		go s.workerLoop(i)
	}
	return s
}

// Shutdown signals every worker to stop after draining its current
// step and waits for them to exit. Tasks still parked on a channel,
// future, or timer at the time of Shutdown never resume.
func (s *Scheduler) Shutdown() {
	close(s.shutdown)
	s.doorMu.Lock()
	s.doorbell.Broadcast()
	s.doorMu.Unlock()
	s.wg.Wait()
}

// pushReady enqueues t onto one of the pool's ready queues (spec §4.6,
// "Enqueue(task): append to the ready queue") and wakes one idle
// worker. The target queue is chosen round-robin at submission time;
// from then on any worker may pick t up via work-stealing, so the
// initial choice only affects which queue briefly holds the entry, not
// which worker eventually runs it.
//
// A full preferred queue does not block the submitter right away: every
// other queue is tried first, round-robin starting just past the
// preferred one, matching original_source/task.cpp's Task_queue_array
// ::push (try_push across every queue before falling back to a
// blocking push on the preferred one) — siblings any worker can steal
// from anyway have the same claim on this task as the preferred queue
// does. Only once every queue has refused does the submitter fall back
// to retrying the preferred queue with iox.Backoff.
func (s *Scheduler) pushReady(t *Task) {
	idx := int(s.next.Add(1) % uint64(len(s.queues)))
	n := len(s.queues)
	for i := 0; i < n; i++ {
		if s.queues[(idx+i)%n].Enqueue(&t) == nil {
			s.signalDoorbell()
			return
		}
	}
	q := s.queues[idx]
	var bo iox.Backoff
	for q.Enqueue(&t) != nil {
		bo.Wait()
	}
	s.signalDoorbell()
}

func (s *Scheduler) signalDoorbell() {
	s.doorMu.Lock()
	s.doorbell.Signal()
	s.doorMu.Unlock()
}

// popAny tries the worker's own queue first, then steals from every
// other queue in round-robin order starting just past its own (spec
// §4.6, "Steal: a worker with an empty ready queue may pop from
// another worker's queue").
func (s *Scheduler) popAny(self int) (*Task, bool) {
	n := len(s.queues)
	for i := 0; i < n; i++ {
		q := s.queues[(self+i)%n]
		if t, err := q.Dequeue(); err == nil {
			return t, true
		}
		spin.Pause()
	}
	return nil, false
}

// waitForWork parks worker self on the shared doorbell until new work
// appears or Shutdown closes the pool. It re-checks popAny itself, under
// doorMu, before every Wait(): a pushReady between this worker's earlier
// failed popAny and the doorMu.Lock() here would otherwise signal the
// doorbell while nobody is blocked on it yet, and that wakeup is lost
// forever (sync.Cond keeps no memory of a Signal/Broadcast that found no
// waiter) — the standard condvar idiom is to hold the lock the signaler
// also acquires (doorMu) across both the work recheck and the Wait call,
// so there is no gap for the push to land in. Returns ok=false only when
// the pool is shutting down.
func (s *Scheduler) waitForWork(self int) (*Task, bool) {
	s.doorMu.Lock()
	defer s.doorMu.Unlock()
	for {
		if t, ok := s.popAny(self); ok {
			return t, true
		}
		select {
		case <-s.shutdown:
			return nil, false
		default:
		}
		s.doorbell.Wait()
	}
}

// workerLoop is one pool worker (spec §4.6 worker loop): pop a ready
// task, run it one step, repeat; park on the doorbell when every queue
// is momentarily empty.
func (s *Scheduler) workerLoop(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.shutdown:
			return
		default:
		}
		t, ok := s.popAny(id)
		if !ok {
			t, ok = s.waitForWork(id)
			if !ok {
				return
			}
		}
		t.step()
	}
}

var (
	defaultOnce sync.Once
	defaultSched *Scheduler
)

// Default returns the process-wide scheduler (spec §4.6, "the
// runtime's scheduler instance"), creating it with default options on
// first use. Programs that need isolated pools (tests, benchmarks)
// should construct their own via NewScheduler instead.
func Default() *Scheduler {
	defaultOnce.Do(func() { defaultSched = NewScheduler() })
	return defaultSched
}
