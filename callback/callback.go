//go:build !ios && !android && (amd64 || arm64)

// Package callback turns Go closures into the single opaque word that the
// RT-Thread kernel carries through thread entries and timer timeouts.
//
// The kernel entry signature is void (*)(void *parameter). A Go closure can
// not be stored in kernel memory, so FromClosure registers it and returns
// its registry id as the parameter word. The kernel later calls the fixed
// trampoline at Entry(), which takes the closure out of the registry and
// runs it. Taking removes the registration, so a closure runs at most once
// and leaves nothing behind.
//
// Contract for single-use parameters: pass a word produced by FromClosure to
// exactly one kernel object, together with Entry(). A word that never
// reaches the trampoline stays registered (Pending counts it) until Release
// is called.
package callback

import (
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/rttgo/internal/handles"
)

// Parameter is the opaque word handed to the kernel as a callback parameter.
type Parameter uintptr

type once struct{ fn func() }

type repeat struct{ fn func() }

// FromClosure registers fn for a single invocation through Entry().
// A nil fn yields the zero Parameter.
func FromClosure(fn func()) Parameter {
	if fn == nil {
		return 0
	}
	return Parameter(handles.Register(&once{fn: fn}))
}

// FromFunc registers fn for repeated invocation through RepeatEntry().
// The registration lives until Release is called.
func FromFunc(fn func()) Parameter {
	if fn == nil {
		return 0
	}
	return Parameter(handles.Register(&repeat{fn: fn}))
}

// FromPointer wraps a raw pointer. p must not point into Go memory.
func FromPointer(p unsafe.Pointer) Parameter {
	return Parameter(uintptr(p))
}

// FromUint wraps a plain integer.
func FromUint(v uintptr) Parameter {
	return Parameter(v)
}

// Uintptr returns the word passed to the kernel.
func (p Parameter) Uintptr() uintptr {
	return uintptr(p)
}

// Release drops a registration made by FromClosure or FromFunc without
// running it. Releasing a consumed or raw parameter is a no-op.
func Release(p Parameter) {
	if p == 0 {
		return
	}
	switch handles.Lookup(uintptr(p)).(type) {
	case *once, *repeat:
		handles.Unregister(uintptr(p))
	}
}

// Pending returns the number of registered closures and functions that have
// not been consumed or released. Other values in the handle registry, such
// as device operation tables, are not counted.
func Pending() int {
	return handles.CountFunc(func(v any) bool {
		switch v.(type) {
		case *once, *repeat:
			return true
		}
		return false
	})
}

var (
	hookMu       sync.RWMutex
	panicHandler = defaultPanicHandler
	missHandler  = func(Parameter) {}
)

// SetPanicHandler installs the function called with the recovered value when
// a callback panics. The handler must not return control to the kernel in a
// corrupt state; the default prints the value and halts the calling thread.
func SetPanicHandler(h func(v any)) {
	if h == nil {
		h = defaultPanicHandler
	}
	hookMu.Lock()
	panicHandler = h
	hookMu.Unlock()
}

// SetMissHandler installs the function called when the trampoline receives
// a word with no registered callback, e.g. a second invocation of a
// single-use closure.
func SetMissHandler(h func(p Parameter)) {
	if h == nil {
		h = func(Parameter) {}
	}
	hookMu.Lock()
	missHandler = h
	hookMu.Unlock()
}

func defaultPanicHandler(v any) {
	fmt.Fprintf(os.Stderr, "panic: %v\n", v)
	for {
		time.Sleep(time.Hour)
	}
}

// Invoke is the body of the Entry() trampoline: it consumes the closure
// registered under p and runs it. A word that is not registered (never
// created, already run, or released) is reported to the miss handler and
// nothing runs. A panic in the closure goes to the panic handler and never
// propagates to the caller.
func Invoke(p Parameter) {
	v, ok := handles.TakeIf(uintptr(p), func(v any) bool {
		_, isOnce := v.(*once)
		return isOnce
	})
	if !ok {
		reportMiss(p)
		return
	}
	run(v.(*once).fn)
}

// Call is the body of the RepeatEntry() trampoline: it runs the function
// registered under p without consuming it.
func Call(p Parameter) {
	cb, ok := handles.Lookup(uintptr(p)).(*repeat)
	if !ok {
		reportMiss(p)
		return
	}
	run(cb.fn)
}

func run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			hookMu.RLock()
			h := panicHandler
			hookMu.RUnlock()
			h(r)
		}
	}()
	fn()
}

func reportMiss(p Parameter) {
	hookMu.RLock()
	h := missHandler
	hookMu.RUnlock()
	h(p)
}

// Pre-registered trampolines. purego has a fixed budget of callbacks, so the
// two entry points are created once and shared by every kernel object.
var (
	entriesOnce sync.Once
	entryPtr    uintptr
	repeatPtr   uintptr
)

func initEntries() {
	entriesOnce.Do(func() {
		// void entry(void *parameter)
		entryPtr = purego.NewCallback(func(_ purego.CDecl, parameter uintptr) {
			Invoke(Parameter(parameter))
		})
		repeatPtr = purego.NewCallback(func(_ purego.CDecl, parameter uintptr) {
			Call(Parameter(parameter))
		})
	})
}

// Entry returns the C address of the single-use trampoline, suitable as a
// thread entry or one-shot timer timeout function.
func Entry() uintptr {
	initEntries()
	return entryPtr
}

// RepeatEntry returns the C address of the repeating trampoline, used for
// periodic timers.
func RepeatEntry() uintptr {
	initEntries()
	return repeatPtr
}
