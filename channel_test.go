// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	coro "code.hybscloud.com/corochan"
	"code.hybscloud.com/iox"
)

func TestTrySendTryReceiveWouldBlock(t *testing.T) {
	ch := coro.NewChannel[int](1)
	if _, err := ch.TryReceive(); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("TryReceive on empty channel: got err %v, want ErrWouldBlock", err)
	}
	if err := ch.TrySend(7); err != nil {
		t.Fatalf("TrySend into empty slot: got err %v, want nil", err)
	}
	if err := ch.TrySend(8); !errors.Is(err, iox.ErrWouldBlock) {
		t.Fatalf("TrySend into full buffer: got err %v, want ErrWouldBlock", err)
	}
	v, err := ch.TryReceive()
	if err != nil || v != 7 {
		t.Fatalf("TryReceive: got (%d, %v), want (7, nil)", v, err)
	}
}

// TestChannelFIFO checks spec §8's "FIFO on channel": two sends
// completed in order A then B are received in that same order.
func TestChannelFIFO(t *testing.T) {
	ch := coro.NewChannel[int](4)
	for i := 0; i < 4; i++ {
		if err := ch.TrySend(i); err != nil {
			t.Fatalf("TrySend(%d): %v", i, err)
		}
	}
	for i := 0; i < 4; i++ {
		v, err := ch.TryReceive()
		if err != nil || v != i {
			t.Fatalf("TryReceive #%d: got (%d, %v), want (%d, nil)", i, v, err, i)
		}
	}
}

// TestBufferCompaction checks spec §8's "Buffer-compaction": once a
// full buffer has a parked sender behind it, a receive pulls one value
// out of the buffer and the parked sender's value immediately refills
// it, rather than leaving the buffer one short until the sender is
// independently rescheduled.
func TestBufferCompaction(t *testing.T) {
	ch := coro.NewChannel[int](2)
	if err := ch.TrySend(1); err != nil {
		t.Fatal(err)
	}
	if err := ch.TrySend(2); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch.SyncSend(3) // parks: buffer is full
	}()
	time.Sleep(10 * time.Millisecond) // give the sender a chance to park

	v, err := ch.TryReceive()
	if err != nil || v != 1 {
		t.Fatalf("first receive: got (%d, %v), want (1, nil)", v, err)
	}
	wg.Wait() // the parked send must now have completed

	v, err = ch.TryReceive()
	if err != nil || v != 2 {
		t.Fatalf("second receive: got (%d, %v), want (2, nil)", v, err)
	}
	v, err = ch.TryReceive()
	if err != nil || v != 3 {
		t.Fatalf("third receive: got (%d, %v), want (3, nil)", v, err)
	}
}

// TestMovableSendZeroesSourceAfterHandoff checks the moving variant of
// a send operation (original_source/channel.hpp's Channel_send(Handle,
// T*) overload): once [coro.NewMovableSendOp]'s value is delivered, the
// op's own Value is reset to the zero value rather than left holding a
// stale copy of what was handed off.
func TestMovableSendZeroesSourceAfterHandoff(t *testing.T) {
	ch := coro.NewChannel[[]int](1)
	op := coro.NewMovableSendOp(ch, []int{1, 2, 3})

	winner, ok := coro.TrySelect(op)
	if !ok {
		t.Fatal("expected a ready winner")
	}
	if winner != 0 {
		t.Fatalf("winner = %d, want 0", winner)
	}
	if op.Value != nil {
		t.Fatalf("op.Value = %v after a movable send, want nil (zeroed on hand-off)", op.Value)
	}

	got, err := ch.TryReceive()
	if err != nil {
		t.Fatalf("TryReceive: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("got %v, want [1 2 3] (the receiver's copy must be unaffected by the source zeroing)", got)
	}
}

// TestSyncSendSyncReceiveRendezvous exercises a pure, capacity-0
// rendezvous between two OS threads (spec §8 scenario 3's thread-bound
// analogue).
func TestSyncSendSyncReceiveRendezvous(t *testing.T) {
	ch := coro.NewChannel[int]()
	done := make(chan int, 1)
	go func() { done <- ch.SyncReceive() }()
	ch.SyncSend(42)
	if got := <-done; got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}
