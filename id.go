// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package coro

import "code.hybscloud.com/atomix"

// chanID is a process-unique, monotonically increasing channel identity.
// Channels compare and order by chanID, never by Go pointer value, so
// the ordering survives relocation-free generic instantiation and gives
// the selector a stable total order for lock acquisition (spec §3,
// "Channel identity").
type chanID = uint64

// idCounter is the global monotonic counter assigning channel identities.
var idCounter atomix.Uint64

// nextChanID returns the next monotonically increasing channel identity.
func nextChanID() chanID {
	return idCounter.Add(1)
}
