// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !race

package coro_test

import "testing"

// skipRace is a no-op outside -race builds; see skiprace_test.go for the
// race-build variant that actually skips.
func skipRace(tb testing.TB) {
	tb.Helper()
}
