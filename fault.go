//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	faultMu      sync.RWMutex
	faultHandler = haltHandler
)

// SetFaultHandler replaces the process fault handler. It is called with the
// recovered value of a panic in a thread entry, timer callback or device
// operation, and with a description of fatal conditions such as kernel heap
// exhaustion. Pass nil to restore the default, which prints the value to the
// console and halts the calling thread forever.
func SetFaultHandler(h func(v any)) {
	if h == nil {
		h = haltHandler
	}
	faultMu.Lock()
	faultHandler = h
	faultMu.Unlock()
}

// Fault reports a fatal condition to the fault handler. With the default
// handler it never returns.
func Fault(v any) {
	faultMu.RLock()
	h := faultHandler
	faultMu.RUnlock()
	h(v)
}

func haltHandler(v any) {
	msg := fmt.Sprintf("panic: %v\n", v)
	if ready() == nil {
		Console.WriteString(msg)
	} else {
		fmt.Fprint(os.Stderr, msg)
	}
	for {
		time.Sleep(time.Hour)
	}
}
