//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"fmt"
	"unsafe"
)

// StackAlign is the alignment of stacks returned by AllocStack.
const StackAlign = 8

// Malloc allocates size bytes aligned to align from the kernel heap. Memory
// from the kernel heap is not managed by the Go garbage collector and must be
// released with Free.
//
// Heap exhaustion is fatal: it is reported to the fault handler.
func Malloc(size, align uintptr) unsafe.Pointer {
	if err := bound(rtMallocAlign != nil, "rt_malloc_align"); err != nil {
		Fault(err)
		return nil
	}
	if align == 0 {
		align = StackAlign
	}
	p := rtMallocAlign(uint(size), uint(align))
	if p == nil && size > 0 {
		Fault(fmt.Sprintf("allocation error: size %d align %d", size, align))
		return nil
	}
	return p
}

// Free returns memory obtained from Malloc to the kernel heap.
func Free(p unsafe.Pointer) {
	if p == nil || rtFreeAlign == nil {
		return
	}
	rtFreeAlign(p)
}

// AllocStack allocates a thread stack of size bytes on the kernel heap, for
// StaticThread.Init. Release it with FreeStack after the thread is detached.
func AllocStack(size int) []byte {
	if size <= 0 {
		return nil
	}
	p := Malloc(uintptr(size), StackAlign)
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), size)
}

// FreeStack releases a stack from AllocStack.
func FreeStack(stack []byte) {
	if len(stack) == 0 {
		return
	}
	Free(unsafe.Pointer(unsafe.SliceData(stack)))
}
