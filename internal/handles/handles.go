// Package handles provides a thread-safe handle system for storing Go values
// that the kernel carries around in its opaque user-data words.
//
// The kernel only stores a raw machine word for thread parameters, timer
// parameters and device user data. Go pointers must not be kept in kernel
// memory, so values are registered here and the returned id travels through
// the kernel instead.
//
// An id is either looked up (device operation tables, repeating callbacks)
// or taken (single-use closures). Take removes the entry in the same critical
// section as the lookup, so a given id can be consumed at most once.
package handles

import (
	"sync"
)

var (
	mu      sync.RWMutex
	handles         = make(map[uintptr]any)
	nextID  uintptr = 1
)

// Register stores a Go value and returns a non-zero handle id.
// The value stays reachable until Take or Unregister is called with the id.
//
// Thread-safe.
func Register(v any) uintptr {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handles[id] = v
	return id
}

// Lookup retrieves a value by its handle id without removing it.
// Returns nil if the handle is not registered.
//
// Thread-safe.
func Lookup(id uintptr) any {
	mu.RLock()
	defer mu.RUnlock()
	return handles[id]
}

// Take retrieves and removes the value registered under id.
// The second result is false if the id was never registered or has already
// been taken or unregistered.
//
// Thread-safe.
func Take(id uintptr) (any, bool) {
	mu.Lock()
	defer mu.Unlock()
	v, ok := handles[id]
	if ok {
		delete(handles, id)
	}
	return v, ok
}

// TakeIf is Take restricted to values accepted by match. A rejected value
// stays registered and TakeIf reports it with ok false.
//
// Thread-safe.
func TakeIf(id uintptr, match func(any) bool) (v any, ok bool) {
	mu.Lock()
	defer mu.Unlock()
	v, ok = handles[id]
	if !ok || !match(v) {
		return v, false
	}
	delete(handles, id)
	return v, true
}

// Unregister removes a handle and allows the value to be garbage collected.
// Unregistering an unknown id is a no-op.
//
// Thread-safe.
func Unregister(id uintptr) {
	mu.Lock()
	defer mu.Unlock()
	delete(handles, id)
}

// Count returns the number of currently registered handles.
// Tests use it to check that callbacks do not leak.
//
// Thread-safe.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(handles)
}

// CountFunc returns the number of registered handles whose value is accepted
// by match.
//
// Thread-safe.
func CountFunc(match func(any) bool) int {
	mu.RLock()
	defer mu.RUnlock()
	n := 0
	for _, v := range handles {
		if match(v) {
			n++
		}
	}
	return n
}
