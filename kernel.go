//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/internal/bindings"
	"github.com/obinnaokechukwu/rttgo/internal/platform"
	"github.com/obinnaokechukwu/rttgo/rterr"
)

// NameMax is RT_NAME_MAX from rtconfig.h: the size of an object name
// including its terminating NUL.
const NameMax = 8

// Kernel function bindings. They are nil until Init succeeds.
var (
	rtThreadCreate  func(name *byte, entry, parameter uintptr, stackSize uint32, priority uint8, tick uint32) unsafe.Pointer
	rtThreadInit    func(thread unsafe.Pointer, name *byte, entry, parameter uintptr, stackStart unsafe.Pointer, stackSize uint32, priority uint8, tick uint32) int
	rtThreadSelf    func() unsafe.Pointer
	rtThreadFind    func(name *byte) unsafe.Pointer
	rtThreadStartup func(thread unsafe.Pointer) int
	rtThreadDelete  func(thread unsafe.Pointer) int
	rtThreadDetach  func(thread unsafe.Pointer) int
	rtThreadSuspend func(thread unsafe.Pointer) int
	rtThreadResume  func(thread unsafe.Pointer) int
	rtThreadControl func(thread unsafe.Pointer, cmd int32, arg unsafe.Pointer) int
	rtThreadYield   func() int
	rtThreadDelay   func(tick uint32) int
	rtThreadMdelay  func(ms int32) int

	rtTickGet             func() uint32
	rtTickFromMillisecond func(ms int32) uint32

	rtTimerCreate  func(name *byte, timeout, parameter uintptr, time uint32, flag uint8) unsafe.Pointer
	rtTimerInit    func(timer unsafe.Pointer, name *byte, timeout, parameter uintptr, time uint32, flag uint8)
	rtTimerDelete  func(timer unsafe.Pointer) int
	rtTimerDetach  func(timer unsafe.Pointer) int
	rtTimerStart   func(timer unsafe.Pointer) int
	rtTimerStop    func(timer unsafe.Pointer) int
	rtTimerControl func(timer unsafe.Pointer, cmd int32, arg unsafe.Pointer) int

	rtMutexCreate  func(name *byte, flag uint8) unsafe.Pointer
	rtMutexInit    func(mutex unsafe.Pointer, name *byte, flag uint8) int
	rtMutexDelete  func(mutex unsafe.Pointer) int
	rtMutexDetach  func(mutex unsafe.Pointer) int
	rtMutexTake    func(mutex unsafe.Pointer, timeout int32) int
	rtMutexRelease func(mutex unsafe.Pointer) int

	rtSemCreate  func(name *byte, value uint32, flag uint8) unsafe.Pointer
	rtSemInit    func(sem unsafe.Pointer, name *byte, value uint32, flag uint8) int
	rtSemDelete  func(sem unsafe.Pointer) int
	rtSemDetach  func(sem unsafe.Pointer) int
	rtSemTake    func(sem unsafe.Pointer, timeout int32) int
	rtSemTrytake func(sem unsafe.Pointer) int
	rtSemRelease func(sem unsafe.Pointer) int

	rtDeviceCreate     func(typ int32, attachSize int32) unsafe.Pointer
	rtDeviceDestroy    func(dev unsafe.Pointer)
	rtDeviceFind       func(name *byte) unsafe.Pointer
	rtDeviceRegister   func(dev unsafe.Pointer, name *byte, flags uint16) int
	rtDeviceUnregister func(dev unsafe.Pointer) int
	rtDeviceInit       func(dev unsafe.Pointer) int
	rtDeviceOpen       func(dev unsafe.Pointer, oflag uint16) int
	rtDeviceClose      func(dev unsafe.Pointer) int
	rtDeviceRead       func(dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) uint
	rtDeviceWrite      func(dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) uint
	rtDeviceControl    func(dev unsafe.Pointer, cmd int32, arg unsafe.Pointer) int

	rtGetErrno func() int
	rtSetErrno func(errno int)

	rtKputs func(str *byte)

	rtMallocAlign func(size, align uint) unsafe.Pointer
	rtFreeAlign   func(ptr unsafe.Pointer)

	rtHwInterruptDisable func() int
	rtHwInterruptEnable  func(level int)
	rtEnterCritical      func()
	rtExitCritical       func()

	rtObjectGetType        func(object unsafe.Pointer) uint8
	rtObjectIsSystemobject func(object unsafe.Pointer) int

	bindingsMu         sync.Mutex
	bindingsRegistered bool
)

type symbol struct {
	fptr     any
	name     string
	optional bool // absent when the kernel feature is disabled in rtconfig.h
}

func kernelSymbols() []symbol {
	return []symbol{
		{&rtThreadCreate, "rt_thread_create", false},
		{&rtThreadInit, "rt_thread_init", false},
		{&rtThreadSelf, "rt_thread_self", false},
		{&rtThreadFind, "rt_thread_find", false},
		{&rtThreadStartup, "rt_thread_startup", false},
		{&rtThreadDelete, "rt_thread_delete", false},
		{&rtThreadDetach, "rt_thread_detach", false},
		{&rtThreadSuspend, "rt_thread_suspend", false},
		{&rtThreadResume, "rt_thread_resume", false},
		{&rtThreadControl, "rt_thread_control", false},
		{&rtThreadYield, "rt_thread_yield", false},
		{&rtThreadDelay, "rt_thread_delay", false},
		{&rtThreadMdelay, "rt_thread_mdelay", false},

		{&rtTickGet, "rt_tick_get", false},
		{&rtTickFromMillisecond, "rt_tick_from_millisecond", false},

		{&rtTimerCreate, "rt_timer_create", false},
		{&rtTimerInit, "rt_timer_init", false},
		{&rtTimerDelete, "rt_timer_delete", false},
		{&rtTimerDetach, "rt_timer_detach", false},
		{&rtTimerStart, "rt_timer_start", false},
		{&rtTimerStop, "rt_timer_stop", false},
		{&rtTimerControl, "rt_timer_control", false},

		{&rtMutexCreate, "rt_mutex_create", true},
		{&rtMutexInit, "rt_mutex_init", true},
		{&rtMutexDelete, "rt_mutex_delete", true},
		{&rtMutexDetach, "rt_mutex_detach", true},
		{&rtMutexTake, "rt_mutex_take", true},
		{&rtMutexRelease, "rt_mutex_release", true},

		{&rtSemCreate, "rt_sem_create", true},
		{&rtSemInit, "rt_sem_init", true},
		{&rtSemDelete, "rt_sem_delete", true},
		{&rtSemDetach, "rt_sem_detach", true},
		{&rtSemTake, "rt_sem_take", true},
		{&rtSemTrytake, "rt_sem_trytake", true},
		{&rtSemRelease, "rt_sem_release", true},

		{&rtDeviceCreate, "rt_device_create", true},
		{&rtDeviceDestroy, "rt_device_destroy", true},
		{&rtDeviceFind, "rt_device_find", true},
		{&rtDeviceRegister, "rt_device_register", true},
		{&rtDeviceUnregister, "rt_device_unregister", true},
		{&rtDeviceInit, "rt_device_init", true},
		{&rtDeviceOpen, "rt_device_open", true},
		{&rtDeviceClose, "rt_device_close", true},
		{&rtDeviceRead, "rt_device_read", true},
		{&rtDeviceWrite, "rt_device_write", true},
		{&rtDeviceControl, "rt_device_control", true},

		{&rtGetErrno, "rt_get_errno", false},
		{&rtSetErrno, "rt_set_errno", false},

		{&rtKputs, "rt_kputs", false},

		{&rtMallocAlign, "rt_malloc_align", true},
		{&rtFreeAlign, "rt_free_align", true},

		{&rtHwInterruptDisable, "rt_hw_interrupt_disable", false},
		{&rtHwInterruptEnable, "rt_hw_interrupt_enable", false},
		{&rtEnterCritical, "rt_enter_critical", false},
		{&rtExitCritical, "rt_exit_critical", false},

		{&rtObjectGetType, "rt_object_get_type", false},
		{&rtObjectIsSystemobject, "rt_object_is_systemobject", false},
	}
}

// registerBindings binds every kernel symbol. A missing required symbol is an
// error; a missing optional symbol leaves its binding nil, and the wrappers
// using it report KindNoSys.
func registerBindings() error {
	bindingsMu.Lock()
	defer bindingsMu.Unlock()

	if bindingsRegistered {
		return nil
	}
	if err := checkMirrors(); err != nil {
		return err
	}

	for _, sym := range kernelSymbols() {
		if err := bindings.RegisterFunc(sym.fptr, sym.name); err != nil {
			if sym.optional {
				logf(LogDebug, "optional kernel symbol %s not available", sym.name)
				continue
			}
			return fmt.Errorf("rttgo: binding kernel: %w", err)
		}
	}

	bindingsRegistered = true
	return nil
}

// ready reports whether the kernel has been bound.
func ready() error {
	if !bindingsRegistered {
		return ErrNotLoaded
	}
	return nil
}

// bound is ready plus a check that the optional symbol behind op exists.
func bound(present bool, op string) error {
	if err := ready(); err != nil {
		return err
	}
	if !present {
		return rterr.New(rterr.KindNoSys, op)
	}
	return nil
}

// checkMirrors verifies the pointer-size assumptions behind rtObject and
// rtDevice. rt_base_t, rt_size_t and the list links are all pointer sized.
func checkMirrors() error {
	if !platform.Is64Bit {
		return fmt.Errorf("rttgo: kernel mirrors need 8-byte pointers, have %d", platform.PointerSize)
	}
	header := (NameMax + 2 + platform.PointerSize - 1) &^ (platform.PointerSize - 1)
	if unsafe.Sizeof(rtObject{}) != header+2*platform.PointerSize {
		return fmt.Errorf("rttgo: rt_object mirror is %d bytes", unsafe.Sizeof(rtObject{}))
	}
	var dev rtDevice
	if unsafe.Offsetof(dev.userData) != unsafe.Offsetof(dev.rxIndicate)+8*platform.PointerSize {
		return fmt.Errorf("rttgo: rt_device operation slots are misplaced")
	}
	return nil
}

// rtObject mirrors struct rt_object (RT_USING_MODULE disabled).
type rtObject struct {
	name [NameMax]byte
	typ  uint8
	flag uint8
	list [2]uintptr
}

// rtDevice mirrors struct rt_device with the operation slots stored inline
// (RT_USING_DEVICE_OPS and RT_USING_POSIX_DEVIO disabled).
type rtDevice struct {
	parent rtObject

	typ      int32
	flag     uint16
	openFlag uint16
	refCount uint8
	deviceID uint8

	rxIndicate uintptr
	txComplete uintptr

	init    uintptr
	open    uintptr
	close   uintptr
	read    uintptr
	write   uintptr
	control uintptr

	userData uintptr
}

// Opaque storage sizes for statically allocated kernel objects. Each is at
// least as large as the matching kernel struct on a 64-bit build.
type (
	threadStorage    [128]uint64
	timerStorage     [16]uint64
	mutexStorage     [16]uint64
	semaphoreStorage [12]uint64
)

// Thread control commands (rt_thread_control).
const rtThreadCtrlChangePriority = 0x02

// Timer control commands (rt_timer_control).
const (
	rtTimerCtrlSetTime     = 0x0
	rtTimerCtrlGetTime     = 0x1
	rtTimerCtrlSetOneshot  = 0x2
	rtTimerCtrlSetPeriodic = 0x3
)

// Block device control commands.
const (
	rtDeviceCtrlBlkGetGeome = 0x10
	rtDeviceCtrlBlkSync     = 0x11
	rtDeviceCtrlBlkErase    = 0x12
)
