//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"time"
)

// IPCFlag selects how threads blocked on an IPC object are woken.
type IPCFlag uint8

const (
	// IPCFIFO wakes waiters in arrival order (RT_IPC_FLAG_FIFO).
	IPCFIFO IPCFlag = 0x00
	// IPCPriority wakes the highest priority waiter first (RT_IPC_FLAG_PRIO).
	IPCPriority IPCFlag = 0x01
)

// String returns the flag name.
func (f IPCFlag) String() string {
	switch f {
	case IPCFIFO:
		return "fifo"
	case IPCPriority:
		return "prio"
	default:
		return "unknown"
	}
}

// Timeouts for blocking IPC calls, in ticks.
const (
	WaitForever int32 = -1 // RT_WAITING_FOREVER
	NoWait      int32 = 0  // RT_WAITING_NO
)

// TimeoutFrom converts d to a tick timeout for Take. A negative d waits
// forever; zero does not wait.
func TimeoutFrom(d time.Duration) int32 {
	switch {
	case d < 0:
		return WaitForever
	case d == 0:
		return NoWait
	}
	ticks := TickFromDuration(d)
	if ticks == 0 {
		// Round sub-tick waits up instead of turning them into polls.
		return 1
	}
	if ticks > 1<<31-1 {
		return 1<<31 - 1
	}
	return int32(ticks)
}
