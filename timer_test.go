// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro_test

import (
	"testing"
	"time"

	coro "code.hybscloud.com/corochan"
)

// TestTimerMonotonicity is spec §8's "Timer monotonicity": alarms fire
// in non-decreasing expiry order regardless of the order they were
// scheduled in.
func TestTimerMonotonicity(t *testing.T) {
	const n = 20
	chans := make([]*coro.Channel[time.Time], n)
	// Schedule out of order: reverse, so the last one scheduled has the
	// earliest deadline.
	for i := 0; i < n; i++ {
		d := time.Duration(n-i) * 5 * time.Millisecond
		chans[i] = coro.After(d)
	}

	var fireTimes []time.Time
	for i := n - 1; i >= 0; i-- {
		fireTimes = append(fireTimes, chans[i].SyncReceive())
	}
	for i := 1; i < len(fireTimes); i++ {
		if fireTimes[i].Before(fireTimes[i-1]) {
			t.Fatalf("fire %d (%v) precedes fire %d (%v): not monotonic", i, fireTimes[i], i-1, fireTimes[i-1])
		}
	}
}

// TestTimerStopBeforeFire checks the cancel/expire race documented in
// spec §7: stopping a timer before it fires reports true and no value
// ever arrives on its channel.
func TestTimerStopBeforeFire(t *testing.T) {
	timer := coro.NewTimer(50 * time.Millisecond)
	if !timer.Stop() {
		t.Fatal("Stop on a not-yet-fired timer should report true")
	}
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if _, err := timer.C.TryReceive(); err == nil {
			t.Fatal("stopped timer must not deliver a value")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
