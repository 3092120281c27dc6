//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/rterr"
)

// Semaphore is a handle to a kernel counting semaphore.
//
// The zero Semaphore is invalid. Copies refer to the same kernel object.
type Semaphore struct {
	object
}

// CreateSemaphore allocates a semaphore with the given initial value on the
// kernel heap.
func CreateSemaphore(name string, value uint32, flag IPCFlag) (Semaphore, error) {
	if err := bound(rtSemCreate != nil, "rt_sem_create"); err != nil {
		return Semaphore{}, err
	}
	n := makeName(name)
	p := rtSemCreate(n.ptr(), value, uint8(flag))
	if p == nil {
		return Semaphore{}, rterr.New(rterr.KindError, "rt_sem_create")
	}
	return Semaphore{object{p}}, nil
}

func (s Semaphore) call(fn func(unsafe.Pointer) int, op string) error {
	if s.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(fn != nil, op); err != nil {
		return err
	}
	return check(fn(s.ptr), op)
}

// Take decrements the semaphore, waiting up to timeout ticks.
func (s Semaphore) Take(timeout int32) error {
	if s.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(rtSemTake != nil, "rt_sem_take"); err != nil {
		return err
	}
	return check(rtSemTake(s.ptr, timeout), "rt_sem_take")
}

// TryTake decrements the semaphore if it is positive and fails with
// KindTimeout otherwise.
func (s Semaphore) TryTake() error {
	return s.call(rtSemTrytake, "rt_sem_trytake")
}

// Release increments the semaphore, waking one waiter.
func (s Semaphore) Release() error {
	return s.call(rtSemRelease, "rt_sem_release")
}

// Delete frees a semaphore created with CreateSemaphore.
func (s Semaphore) Delete() error {
	return s.call(rtSemDelete, "rt_sem_delete")
}

// Name returns the kernel object name.
func (s Semaphore) Name() string { return s.name() }

// Class returns the kernel object class, or ObjectClassNull for a zero
// handle.
func (s Semaphore) Class() ObjectClass { return s.class() }

// Valid reports whether s refers to a kernel object.
func (s Semaphore) Valid() bool { return s.ptr != nil }

// StaticSemaphore is a semaphore whose control block lives in Go memory.
// It must not be copied after Init.
type StaticSemaphore struct {
	cell staticCell[semaphoreStorage]
}

// Init initializes the semaphore in place with the given value.
func (s *StaticSemaphore) Init(name string, value uint32, flag IPCFlag) error {
	if err := bound(rtSemInit != nil, "rt_sem_init"); err != nil {
		return err
	}
	n := makeName(name)
	err := check(rtSemInit(s.cell.ptr(), n.ptr(), value, uint8(flag)), "rt_sem_init")
	if err != nil {
		s.cell.release()
	}
	return err
}

// Detach removes the semaphore from the kernel.
func (s *StaticSemaphore) Detach() error {
	if err := s.Get().call(rtSemDetach, "rt_sem_detach"); err != nil {
		return err
	}
	s.cell.release()
	return nil
}

// Get returns a handle to the semaphore.
func (s *StaticSemaphore) Get() Semaphore {
	return Semaphore{object{s.cell.addr()}}
}
