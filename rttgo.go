//go:build !ios && !android && (amd64 || arm64)

// Package rttgo provides Go bindings to the RT-Thread real-time kernel.
// It wraps threads, timers, mutexes, semaphores, devices, the kernel heap
// and the console without cgo, using purego to call into a kernel built as
// a shared library (for example the POSIX simulator BSP).
//
// Go closures are handed to the kernel as thread entries and timer
// timeouts through package callback. Go types implementing DeviceOps can be
// registered as kernel devices with CreateDevice.
//
// Resource handles (Thread, Timer, Mutex, Semaphore, Device) are small
// copyable values. They are never freed implicitly: call Delete, Detach or
// Destroy when the kernel object is no longer needed.
package rttgo

import (
	"time"

	"github.com/obinnaokechukwu/rttgo/callback"
	"github.com/obinnaokechukwu/rttgo/internal/bindings"
)

// Options configures how the kernel library is located.
type Options struct {
	// LibraryPath is the kernel shared library to load. When empty the
	// RTTGO_LIBRARY environment variable is consulted, then the standard
	// search paths (RTTGO_LIB_DIR first).
	LibraryPath string
}

// Init loads the kernel library from the default locations and binds the
// kernel API. It is safe to call multiple times.
func Init() error {
	return InitWithOptions(Options{})
}

// InitWithOptions is Init with an explicit library location. Only the first
// successful load takes effect.
func InitWithOptions(opts Options) error {
	if err := bindings.LoadFrom(opts.LibraryPath); err != nil {
		return err
	}
	return registerBindings()
}

// IsLoaded returns true if the kernel library has been loaded and bound.
func IsLoaded() bool {
	return bindingsRegistered
}

// LibraryPath returns the path the kernel library was loaded from.
func LibraryPath() string {
	return bindings.Path()
}

func init() {
	callback.SetPanicHandler(Fault)
	callback.SetMissHandler(func(p callback.Parameter) {
		logf(LogWarning, "callback %#x invoked but not registered (already run or released)", uintptr(p))
	})
}

// Tick is a count of kernel ticks (rt_tick_t).
type Tick uint32

// DefaultTickPerSecond is RT_TICK_PER_SECOND of the stock BSP configuration.
// It is only used to convert durations before the kernel is loaded.
const DefaultTickPerSecond = 1000

// TickGet returns the current kernel tick count, or 0 if the kernel is not
// loaded.
func TickGet() Tick {
	if ready() != nil {
		return 0
	}
	return Tick(rtTickGet())
}

// TickFromMillisecond converts milliseconds to ticks using the kernel's
// configured tick rate. A negative ms yields the all-ones tick, which the
// kernel reads as RT_WAITING_FOREVER.
func TickFromMillisecond(ms int32) Tick {
	if ready() != nil {
		if ms < 0 {
			return ^Tick(0)
		}
		return Tick(int64(ms) * DefaultTickPerSecond / 1000)
	}
	return Tick(rtTickFromMillisecond(ms))
}

// TickFromDuration converts d to ticks, rounding down to whole milliseconds.
func TickFromDuration(d time.Duration) Tick {
	return TickFromMillisecond(clampMillis(d))
}

func clampMillis(d time.Duration) int32 {
	ms := d.Milliseconds()
	switch {
	case ms < 0:
		return -1
	case ms > 1<<31-1:
		return 1<<31 - 1
	}
	return int32(ms)
}
