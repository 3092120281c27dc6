//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"runtime"
	"unsafe"
)

// noCopy may be embedded into structs which must not be copied after first
// use. See go vet's copylocks check.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// staticCell holds storage for a kernel object that the kernel initializes
// in place (rt_*_init) and keeps linked into its lists until rt_*_detach.
// The storage is pinned while the kernel references it. Pinning is a no-op
// for package-level variables, which is how static resources are normally
// declared.
type staticCell[S any] struct {
	_ noCopy

	storage S
	pinner  runtime.Pinner
	pinned  bool
}

// ptr pins the storage and returns its address.
func (c *staticCell[S]) ptr() unsafe.Pointer {
	if !c.pinned {
		c.pinner.Pin(&c.storage)
		c.pinned = true
	}
	return unsafe.Pointer(&c.storage)
}

// pin keeps an additional Go allocation the kernel object refers to, such as
// a thread stack, in place until release.
func (c *staticCell[S]) pin(p unsafe.Pointer) {
	c.pinner.Pin(p)
}

// addr returns the address of the storage without pinning it.
func (c *staticCell[S]) addr() unsafe.Pointer {
	return unsafe.Pointer(&c.storage)
}

// release unpins the storage once the kernel no longer references it.
func (c *staticCell[S]) release() {
	if c.pinned {
		c.pinner.Unpin()
		c.pinned = false
	}
}
