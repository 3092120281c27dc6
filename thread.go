//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"time"
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/callback"
	"github.com/obinnaokechukwu/rttgo/rterr"
)

// Thread is a handle to a kernel thread.
//
// Go code running on a kernel thread cannot be unwound from outside: deleting
// or suspending a thread that holds Go resources leaks them.
type Thread struct {
	object
}

// CreateThread creates a thread with a kernel-allocated stack. entry is the C
// address of a void (*)(void *) function and param is passed to it. The
// thread does not run until Startup.
func CreateThread(name string, entry uintptr, param callback.Parameter, stackSize uint32, priority uint8, tick uint32) (Thread, error) {
	if err := ready(); err != nil {
		return Thread{}, err
	}
	n := makeName(name)
	p := rtThreadCreate(n.ptr(), entry, param.Uintptr(), stackSize, priority, tick)
	if p == nil {
		return Thread{}, rterr.New(rterr.KindError, "rt_thread_create")
	}
	return Thread{object{p}}, nil
}

// CreateThreadFunc creates a thread that runs fn once. If the thread is
// deleted before it runs, fn is released without running.
func CreateThreadFunc(name string, fn func(), stackSize uint32, priority uint8, tick uint32) (Thread, error) {
	if err := ready(); err != nil {
		return Thread{}, err
	}
	param := callback.FromClosure(fn)
	t, err := CreateThread(name, callbackEntry(), param, stackSize, priority, tick)
	if err != nil {
		callback.Release(param)
		return Thread{}, err
	}
	own(t.ptr, param)
	return t, nil
}

// CurrentThread returns the calling kernel thread.
func CurrentThread() (Thread, error) {
	if err := ready(); err != nil {
		return Thread{}, err
	}
	p := rtThreadSelf()
	if p == nil {
		return Thread{}, rterr.New(rterr.KindError, "rt_thread_self")
	}
	return Thread{object{p}}, nil
}

// FindThread looks a thread up by name. It must not be called from
// interrupt context.
func FindThread(name string) (Thread, error) {
	if err := ready(); err != nil {
		return Thread{}, err
	}
	n := makeName(name)
	p := rtThreadFind(n.ptr())
	if p == nil {
		return Thread{}, rterr.New(rterr.KindError, "rt_thread_find")
	}
	return Thread{object{p}}, nil
}

func (t Thread) call(fn func(unsafe.Pointer) int, op string) error {
	if t.ptr == nil {
		return ErrNullHandle
	}
	if err := ready(); err != nil {
		return err
	}
	return check(fn(t.ptr), op)
}

// Startup puts the thread on the ready queue.
func (t Thread) Startup() error {
	return t.call(rtThreadStartup, "rt_thread_startup")
}

// Delete removes a thread created with CreateThread. The kernel reclaims it
// in the idle thread.
func (t Thread) Delete() error {
	if err := t.call(rtThreadDelete, "rt_thread_delete"); err != nil {
		return err
	}
	disown(t.ptr)
	return nil
}

// Suspend takes the thread off the ready queue. Suspending the calling
// thread requires a reschedule, e.g. Yield.
func (t Thread) Suspend() error {
	return t.call(rtThreadSuspend, "rt_thread_suspend")
}

// Resume puts a suspended thread back on the ready queue.
func (t Thread) Resume() error {
	return t.call(rtThreadResume, "rt_thread_resume")
}

// SetPriority changes the thread priority. 0 is the highest priority.
func (t Thread) SetPriority(priority uint8) error {
	if t.ptr == nil {
		return ErrNullHandle
	}
	if err := ready(); err != nil {
		return err
	}
	return check(rtThreadControl(t.ptr, rtThreadCtrlChangePriority, unsafe.Pointer(&priority)), "rt_thread_control")
}

// Name returns the thread name.
func (t Thread) Name() string { return t.name() }

// Class returns the kernel object class, or ObjectClassNull for a zero
// handle.
func (t Thread) Class() ObjectClass { return t.class() }

// Valid reports whether t refers to a kernel object.
func (t Thread) Valid() bool { return t.ptr != nil }

// IsSystemObject reports whether the thread was initialized in place rather
// than created on the kernel heap.
func (t Thread) IsSystemObject() bool { return t.isSystemObject() }

// Yield gives up the processor to the next ready thread of the same
// priority.
func Yield() error {
	if err := ready(); err != nil {
		return err
	}
	return check(rtThreadYield(), "rt_thread_yield")
}

// Delay blocks the calling thread for tick ticks.
func Delay(tick Tick) error {
	if err := ready(); err != nil {
		return err
	}
	return check(rtThreadDelay(uint32(tick)), "rt_thread_delay")
}

// MDelay blocks the calling thread for ms milliseconds.
func MDelay(ms int32) error {
	if err := ready(); err != nil {
		return err
	}
	return check(rtThreadMdelay(ms), "rt_thread_mdelay")
}

// Sleep blocks the calling kernel thread for d, rounded down to whole
// milliseconds.
func Sleep(d time.Duration) error {
	if d <= 0 {
		return Yield()
	}
	return MDelay(clampMillis(d))
}

// StaticThread is a thread whose control block lives in Go memory. The stack
// is supplied by the caller, normally from AllocStack.
//
// A StaticThread must not be copied after Init.
type StaticThread struct {
	cell staticCell[threadStorage]
}

// Init initializes the thread in place. stack must stay valid until Detach;
// a stack in Go memory is pinned for that long.
func (s *StaticThread) Init(name string, entry uintptr, param callback.Parameter, stack []byte, priority uint8, tick uint32) error {
	if err := ready(); err != nil {
		return err
	}
	if len(stack) == 0 {
		return rterr.New(rterr.KindInval, "rt_thread_init")
	}
	n := makeName(name)
	ptr := s.cell.ptr()
	stackPtr := unsafe.Pointer(unsafe.SliceData(stack))
	s.cell.pin(stackPtr)
	err := check(rtThreadInit(ptr, n.ptr(), entry, param.Uintptr(), stackPtr, uint32(len(stack)), priority, tick), "rt_thread_init")
	if err != nil {
		s.cell.release()
	}
	return err
}

// InitFunc initializes the thread to run fn once.
func (s *StaticThread) InitFunc(name string, fn func(), stack []byte, priority uint8, tick uint32) error {
	if err := ready(); err != nil {
		return err
	}
	param := callback.FromClosure(fn)
	if err := s.Init(name, callbackEntry(), param, stack, priority, tick); err != nil {
		callback.Release(param)
		return err
	}
	own(s.cell.addr(), param)
	return nil
}

// Detach removes the thread from the kernel. A closure that never ran is
// released.
func (s *StaticThread) Detach() error {
	if err := s.Get().call(rtThreadDetach, "rt_thread_detach"); err != nil {
		return err
	}
	disown(s.cell.addr())
	s.cell.release()
	return nil
}

// Get returns a handle to the thread.
func (s *StaticThread) Get() Thread {
	return Thread{object{s.cell.addr()}}
}
