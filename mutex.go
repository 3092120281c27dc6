//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/rterr"
)

// Mutex is a handle to a kernel mutex. Kernel mutexes are recursive for the
// owning thread and use priority inheritance.
//
// The zero Mutex is invalid. Copies refer to the same kernel object.
type Mutex struct {
	object
}

// CreateMutex allocates a mutex on the kernel heap.
func CreateMutex(name string, flag IPCFlag) (Mutex, error) {
	if err := bound(rtMutexCreate != nil, "rt_mutex_create"); err != nil {
		return Mutex{}, err
	}
	n := makeName(name)
	p := rtMutexCreate(n.ptr(), uint8(flag))
	if p == nil {
		return Mutex{}, rterr.New(rterr.KindError, "rt_mutex_create")
	}
	return Mutex{object{p}}, nil
}

func (m Mutex) call(fn func(unsafe.Pointer) int, op string) error {
	if m.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(fn != nil, op); err != nil {
		return err
	}
	return check(fn(m.ptr), op)
}

// Take locks the mutex, waiting up to timeout ticks (WaitForever, NoWait or
// a tick count). A timeout elapsing yields KindTimeout.
func (m Mutex) Take(timeout int32) error {
	if m.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(rtMutexTake != nil, "rt_mutex_take"); err != nil {
		return err
	}
	return check(rtMutexTake(m.ptr, timeout), "rt_mutex_take")
}

// Release unlocks the mutex. Only the owning thread may release it.
func (m Mutex) Release() error {
	return m.call(rtMutexRelease, "rt_mutex_release")
}

// Delete frees a mutex created with CreateMutex. Threads waiting on it are
// woken with an error.
func (m Mutex) Delete() error {
	return m.call(rtMutexDelete, "rt_mutex_delete")
}

// Name returns the kernel object name.
func (m Mutex) Name() string { return m.name() }

// Class returns the kernel object class, or ObjectClassNull for a zero
// handle.
func (m Mutex) Class() ObjectClass { return m.class() }

// Valid reports whether m refers to a kernel object.
func (m Mutex) Valid() bool { return m.ptr != nil }

// StaticMutex is a mutex whose control block lives in Go memory, normally a
// package-level variable:
//
//	var lock rttgo.StaticMutex
//
//	func setup() error {
//		return lock.Init("lock", rttgo.IPCFIFO)
//	}
//
// A StaticMutex must not be copied after Init.
type StaticMutex struct {
	cell staticCell[mutexStorage]
}

// Init initializes the mutex in place. Calling Init again without Detach is
// not allowed.
func (s *StaticMutex) Init(name string, flag IPCFlag) error {
	if err := bound(rtMutexInit != nil, "rt_mutex_init"); err != nil {
		return err
	}
	n := makeName(name)
	err := check(rtMutexInit(s.cell.ptr(), n.ptr(), uint8(flag)), "rt_mutex_init")
	if err != nil {
		s.cell.release()
	}
	return err
}

// Detach removes the mutex from the kernel. The storage may be reused by a
// later Init.
func (s *StaticMutex) Detach() error {
	if err := s.Get().call(rtMutexDetach, "rt_mutex_detach"); err != nil {
		return err
	}
	s.cell.release()
	return nil
}

// Get returns a handle to the mutex.
func (s *StaticMutex) Get() Mutex {
	return Mutex{object{s.cell.addr()}}
}
