//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"sync"
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/callback"
)

// Callback registrations made on behalf of a kernel object, keyed by the
// object address. Deleting or detaching the object releases the
// registration if the kernel never consumed it.
var (
	ownedMu     sync.Mutex
	ownedParams = make(map[unsafe.Pointer]callback.Parameter)
)

// own records p for obj. A stale registration left by a freed object at the
// same address is released.
func own(obj unsafe.Pointer, p callback.Parameter) {
	ownedMu.Lock()
	old, ok := ownedParams[obj]
	ownedParams[obj] = p
	ownedMu.Unlock()
	if ok && old != p {
		callback.Release(old)
	}
}

// disown releases the registration held for obj, if any.
func disown(obj unsafe.Pointer) {
	ownedMu.Lock()
	p, ok := ownedParams[obj]
	delete(ownedParams, obj)
	ownedMu.Unlock()
	if ok {
		callback.Release(p)
	}
}

// callbackEntry and callbackRepeatEntry return the trampoline addresses handed
// to the kernel.
var (
	callbackEntry       = callback.Entry
	callbackRepeatEntry = callback.RepeatEntry
)
