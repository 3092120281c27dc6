//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"reflect"
	"sync"
	"testing"
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/callback"
	"github.com/obinnaokechukwu/rttgo/rterr"
)

// Addresses handed out instead of real trampolines. The fake kernel
// recognises them and calls the Go bodies directly.
const (
	fakeEntry       uintptr = 0xe1
	fakeRepeatEntry uintptr = 0xe2

	fakeDevInit    uintptr = 0xd1
	fakeDevOpen    uintptr = 0xd2
	fakeDevClose   uintptr = 0xd3
	fakeDevRead    uintptr = 0xd4
	fakeDevWrite   uintptr = 0xd5
	fakeDevControl uintptr = 0xd6
)

// fakeObject is the fake kernel's bookkeeping for one kernel object. The
// object memory itself holds a real rt_object header so name and type reads
// go through the same code as with a real kernel.
type fakeObject struct {
	class   ObjectClass
	static  bool
	deleted bool

	// threads and timers
	entry, param uintptr
	priority     uint8
	started      bool
	suspended    bool

	// timers
	period  uint32
	flag    uint8
	running bool

	// mutexes and semaphores
	value int
}

// fakeKernel is an in-memory stand-in for the kernel library.
type fakeKernel struct {
	mu sync.Mutex

	objects map[unsafe.Pointer]*fakeObject
	keep    []any // object memory allocated by the fake

	devices map[string]unsafe.Pointer

	errno    int
	tick     uint32
	kputs    []string
	irqLevel int
	irqCalls int
	critical int

	heap      map[unsafe.Pointer][]byte
	failAlloc bool

	self unsafe.Pointer
}

// installFakeKernel replaces every kernel binding with the fake for the
// duration of the test.
func installFakeKernel(t *testing.T) *fakeKernel {
	t.Helper()

	saved := saveBindings()
	savedEntry, savedRepeat, savedDev := callbackEntry, callbackRepeatEntry, deviceTrampolines
	t.Cleanup(func() {
		restoreBindings(saved)
		callbackEntry, callbackRepeatEntry, deviceTrampolines = savedEntry, savedRepeat, savedDev
		SetFaultHandler(nil)
		SetLogCallback(nil)
	})

	k := &fakeKernel{
		objects: make(map[unsafe.Pointer]*fakeObject),
		devices: make(map[string]unsafe.Pointer),
		heap:    make(map[unsafe.Pointer][]byte),
	}
	k.self = k.alloc(ObjectClassThread, "main", false)

	callbackEntry = func() uintptr { return fakeEntry }
	callbackRepeatEntry = func() uintptr { return fakeRepeatEntry }
	deviceTrampolines = func() deviceEntries {
		return deviceEntries{
			init: fakeDevInit, open: fakeDevOpen, close: fakeDevClose,
			read: fakeDevRead, write: fakeDevWrite, control: fakeDevControl,
		}
	}

	k.bindThreads()
	k.bindTimers()
	k.bindIPC()
	k.bindDevices()
	k.bindMisc()

	// Fault reports in tests are recorded instead of halting.
	SetFaultHandler(func(v any) { t.Errorf("unexpected fault: %v", v) })
	bindingsRegistered = true
	return k
}

// savedBindings snapshots the binding variables so tests can restore them.
type savedBindings struct {
	values     []any
	registered bool
}

func saveBindings() savedBindings {
	var s savedBindings
	for _, sym := range kernelSymbols() {
		s.values = append(s.values, derefFunc(sym.fptr))
	}
	s.registered = bindingsRegistered
	return s
}

func restoreBindings(s savedBindings) {
	for i, sym := range kernelSymbols() {
		setFunc(sym.fptr, s.values[i])
	}
	bindingsRegistered = s.registered
}

// derefFunc returns the function stored in the variable fptr points to.
func derefFunc(fptr any) any {
	return reflect.ValueOf(fptr).Elem().Interface()
}

// setFunc stores fn into the variable fptr points to.
func setFunc(fptr any, fn any) {
	reflect.ValueOf(fptr).Elem().Set(reflect.ValueOf(fn))
}

func (k *fakeKernel) alloc(class ObjectClass, name string, static bool) unsafe.Pointer {
	mem := new(threadStorage)
	p := unsafe.Pointer(mem)
	k.keep = append(k.keep, mem)
	k.initHeader(p, name, class, static)
	return p
}

func (k *fakeKernel) initHeader(p unsafe.Pointer, name string, class ObjectClass, static bool) {
	hdr := (*rtObject)(p)
	hdr.name = [NameMax]byte{}
	copy(hdr.name[:NameMax-1], name)
	hdr.typ = uint8(class)
	if static {
		hdr.typ |= objectClassStatic
	}
	k.objects[p] = &fakeObject{class: class, static: static}
}

func (k *fakeKernel) object(p unsafe.Pointer) *fakeObject {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.objects[p]
}

// goString reads a NUL-terminated string the way the kernel would.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	var b []byte
	for i := 0; i < 256; i++ {
		c := *(*byte)(unsafe.Add(unsafe.Pointer(p), i))
		if c == 0 {
			break
		}
		b = append(b, c)
	}
	return string(b)
}

// runEntry calls a thread entry or timer timeout the way the kernel would.
func (k *fakeKernel) runEntry(entry, param uintptr) {
	switch entry {
	case fakeEntry:
		callback.Invoke(callback.Parameter(param))
	case fakeRepeatEntry:
		callback.Call(callback.Parameter(param))
	}
}

func (k *fakeKernel) bindThreads() {
	rtThreadCreate = func(name *byte, entry, parameter uintptr, stackSize uint32, priority uint8, tick uint32) unsafe.Pointer {
		k.mu.Lock()
		defer k.mu.Unlock()
		if stackSize == 0 {
			return nil
		}
		p := k.alloc(ObjectClassThread, goString(name), false)
		o := k.objects[p]
		o.entry, o.param, o.priority = entry, parameter, priority
		return p
	}
	rtThreadInit = func(thread unsafe.Pointer, name *byte, entry, parameter uintptr, stackStart unsafe.Pointer, stackSize uint32, priority uint8, tick uint32) int {
		k.mu.Lock()
		defer k.mu.Unlock()
		if stackStart == nil || stackSize == 0 {
			return -rterr.EERROR
		}
		k.initHeader(thread, goString(name), ObjectClassThread, true)
		o := k.objects[thread]
		o.entry, o.param, o.priority = entry, parameter, priority
		return 0
	}
	rtThreadSelf = func() unsafe.Pointer { return k.self }
	rtThreadFind = func(name *byte) unsafe.Pointer {
		k.mu.Lock()
		defer k.mu.Unlock()
		want := goString(name)
		for p, o := range k.objects {
			if o.class == ObjectClassThread && !o.deleted && cString((*rtObject)(p).name[:]) == want {
				return p
			}
		}
		return nil
	}
	// Startup runs the entry to completion on the calling goroutine.
	rtThreadStartup = func(thread unsafe.Pointer) int {
		o := k.object(thread)
		if o == nil || o.started || o.deleted {
			return -rterr.EERROR
		}
		o.started = true
		k.runEntry(o.entry, o.param)
		return 0
	}
	remove := func(static bool) func(unsafe.Pointer) int {
		return func(thread unsafe.Pointer) int {
			o := k.object(thread)
			if o == nil || o.deleted || o.static != static {
				return -rterr.EERROR
			}
			o.deleted = true
			return 0
		}
	}
	rtThreadDelete = remove(false)
	rtThreadDetach = remove(true)
	rtThreadSuspend = func(thread unsafe.Pointer) int {
		o := k.object(thread)
		if o == nil || o.suspended {
			return -rterr.EERROR
		}
		o.suspended = true
		return 0
	}
	rtThreadResume = func(thread unsafe.Pointer) int {
		o := k.object(thread)
		if o == nil || !o.suspended {
			return -rterr.EERROR
		}
		o.suspended = false
		return 0
	}
	rtThreadControl = func(thread unsafe.Pointer, cmd int32, arg unsafe.Pointer) int {
		o := k.object(thread)
		if o == nil {
			return -rterr.EERROR
		}
		if cmd != rtThreadCtrlChangePriority {
			return -rterr.EINVAL
		}
		o.priority = *(*uint8)(arg)
		return 0
	}
	rtThreadYield = func() int { return 0 }
	rtThreadDelay = func(tick uint32) int {
		k.mu.Lock()
		k.tick += tick
		k.mu.Unlock()
		return 0
	}
	rtThreadMdelay = func(ms int32) int {
		if ms < 0 {
			return -rterr.EINVAL
		}
		return rtThreadDelay(uint32(ms))
	}
	rtTickGet = func() uint32 {
		k.mu.Lock()
		defer k.mu.Unlock()
		return k.tick
	}
	// 100 ticks per second.
	rtTickFromMillisecond = func(ms int32) uint32 {
		if ms < 0 {
			return ^uint32(0)
		}
		return uint32((ms + 9) / 10)
	}
}

func (k *fakeKernel) bindTimers() {
	rtTimerCreate = func(name *byte, timeout, parameter uintptr, time uint32, flag uint8) unsafe.Pointer {
		k.mu.Lock()
		defer k.mu.Unlock()
		p := k.alloc(ObjectClassTimer, goString(name), false)
		o := k.objects[p]
		o.entry, o.param, o.period, o.flag = timeout, parameter, time, flag
		return p
	}
	rtTimerInit = func(timer unsafe.Pointer, name *byte, timeout, parameter uintptr, time uint32, flag uint8) {
		k.mu.Lock()
		defer k.mu.Unlock()
		k.initHeader(timer, goString(name), ObjectClassTimer, true)
		o := k.objects[timer]
		o.entry, o.param, o.period, o.flag = timeout, parameter, time, flag
	}
	remove := func(static bool) func(unsafe.Pointer) int {
		return func(timer unsafe.Pointer) int {
			o := k.object(timer)
			if o == nil || o.deleted || o.static != static {
				return -rterr.EERROR
			}
			o.deleted, o.running = true, false
			return 0
		}
	}
	rtTimerDelete = remove(false)
	rtTimerDetach = remove(true)
	rtTimerStart = func(timer unsafe.Pointer) int {
		o := k.object(timer)
		if o == nil || o.deleted {
			return -rterr.EERROR
		}
		o.running = true
		return 0
	}
	rtTimerStop = func(timer unsafe.Pointer) int {
		o := k.object(timer)
		if o == nil || !o.running {
			return -rterr.EERROR
		}
		o.running = false
		return 0
	}
	rtTimerControl = func(timer unsafe.Pointer, cmd int32, arg unsafe.Pointer) int {
		o := k.object(timer)
		if o == nil {
			return -rterr.EERROR
		}
		switch cmd {
		case rtTimerCtrlSetTime:
			o.period = *(*uint32)(arg)
		case rtTimerCtrlGetTime:
			*(*uint32)(arg) = o.period
		case rtTimerCtrlSetOneshot:
			o.flag &^= uint8(TimerPeriodic)
		case rtTimerCtrlSetPeriodic:
			o.flag |= uint8(TimerPeriodic)
		default:
			return -rterr.EINVAL
		}
		return 0
	}
}

// fire expires a running timer once, as the timer thread would.
func (k *fakeKernel) fire(t Timer) bool {
	o := k.object(t.ptr)
	if o == nil || !o.running {
		return false
	}
	if TimerFlag(o.flag)&TimerPeriodic == 0 {
		o.running = false
	}
	k.runEntry(o.entry, o.param)
	return true
}

func (k *fakeKernel) bindIPC() {
	create := func(class ObjectClass, value int) func(name *byte) unsafe.Pointer {
		return func(name *byte) unsafe.Pointer {
			k.mu.Lock()
			defer k.mu.Unlock()
			p := k.alloc(class, goString(name), false)
			k.objects[p].value = value
			return p
		}
	}
	initObj := func(p unsafe.Pointer, name *byte, class ObjectClass, value int) int {
		k.mu.Lock()
		defer k.mu.Unlock()
		k.initHeader(p, goString(name), class, true)
		k.objects[p].value = value
		return 0
	}
	remove := func(static bool) func(unsafe.Pointer) int {
		return func(p unsafe.Pointer) int {
			o := k.object(p)
			if o == nil || o.deleted || o.static != static {
				return -rterr.EERROR
			}
			o.deleted = true
			return 0
		}
	}

	// Mutex value is the recursion count of the single fake owner.
	rtMutexCreate = func(name *byte, flag uint8) unsafe.Pointer {
		return create(ObjectClassMutex, 0)(name)
	}
	rtMutexInit = func(mutex unsafe.Pointer, name *byte, flag uint8) int {
		return initObj(mutex, name, ObjectClassMutex, 0)
	}
	rtMutexDelete = remove(false)
	rtMutexDetach = remove(true)
	rtMutexTake = func(mutex unsafe.Pointer, timeout int32) int {
		o := k.object(mutex)
		if o == nil || o.deleted {
			return -rterr.EERROR
		}
		o.value++
		return 0
	}
	rtMutexRelease = func(mutex unsafe.Pointer) int {
		o := k.object(mutex)
		if o == nil || o.deleted || o.value == 0 {
			return -rterr.EERROR
		}
		o.value--
		return 0
	}

	rtSemCreate = func(name *byte, value uint32, flag uint8) unsafe.Pointer {
		return create(ObjectClassSemaphore, int(value))(name)
	}
	rtSemInit = func(sem unsafe.Pointer, name *byte, value uint32, flag uint8) int {
		return initObj(sem, name, ObjectClassSemaphore, int(value))
	}
	rtSemDelete = remove(false)
	rtSemDetach = remove(true)
	rtSemTake = func(sem unsafe.Pointer, timeout int32) int {
		o := k.object(sem)
		if o == nil || o.deleted {
			return -rterr.EERROR
		}
		if o.value == 0 {
			return -rterr.ETIMEOUT
		}
		o.value--
		return 0
	}
	rtSemTrytake = func(sem unsafe.Pointer) int {
		return rtSemTake(sem, 0)
	}
	rtSemRelease = func(sem unsafe.Pointer) int {
		o := k.object(sem)
		if o == nil || o.deleted {
			return -rterr.EERROR
		}
		if o.value == 0xffff {
			return -rterr.EFULL
		}
		o.value++
		return 0
	}
}

func (k *fakeKernel) bindDevices() {
	rtDeviceCreate = func(typ int32, attachSize int32) unsafe.Pointer {
		k.mu.Lock()
		defer k.mu.Unlock()
		dev := &rtDevice{typ: typ}
		p := unsafe.Pointer(dev)
		k.keep = append(k.keep, dev)
		k.objects[p] = &fakeObject{class: ObjectClassDevice}
		return p
	}
	rtDeviceDestroy = func(dev unsafe.Pointer) {
		if o := k.object(dev); o != nil {
			o.deleted = true
		}
	}
	rtDeviceFind = func(name *byte) unsafe.Pointer {
		k.mu.Lock()
		defer k.mu.Unlock()
		return k.devices[goString(name)]
	}
	rtDeviceRegister = func(dev unsafe.Pointer, name *byte, flags uint16) int {
		k.mu.Lock()
		defer k.mu.Unlock()
		n := goString(name)
		if _, ok := k.devices[n]; ok {
			return -rterr.EERROR
		}
		raw := (*rtDevice)(dev)
		copy(raw.parent.name[:NameMax-1], n)
		raw.parent.typ = uint8(ObjectClassDevice) | objectClassStatic
		raw.flag = flags
		k.devices[n] = dev
		return 0
	}
	rtDeviceUnregister = func(dev unsafe.Pointer) int {
		k.mu.Lock()
		defer k.mu.Unlock()
		n := cString((*rtDevice)(dev).parent.name[:])
		if k.devices[n] != dev {
			return -rterr.EERROR
		}
		delete(k.devices, n)
		return 0
	}
	rtDeviceInit = func(dev unsafe.Pointer) int {
		raw := (*rtDevice)(dev)
		if raw.flag&uint16(FlagActivated) != 0 {
			return 0
		}
		if raw.init == fakeDevInit {
			if code := deviceInit(dev); code != 0 {
				return code
			}
		}
		raw.flag |= uint16(FlagActivated)
		return 0
	}
	rtDeviceOpen = func(dev unsafe.Pointer, oflag uint16) int {
		raw := (*rtDevice)(dev)
		if code := rtDeviceInit(dev); code != 0 {
			return code
		}
		if raw.open == fakeDevOpen {
			if code := deviceOpen(dev, oflag); code != 0 {
				return code
			}
		}
		raw.openFlag = oflag | uint16(OpenOpen)
		raw.refCount++
		return 0
	}
	rtDeviceClose = func(dev unsafe.Pointer) int {
		raw := (*rtDevice)(dev)
		if raw.refCount == 0 {
			return -rterr.EERROR
		}
		raw.refCount--
		if raw.refCount > 0 {
			return 0
		}
		if raw.close == fakeDevClose {
			if code := deviceClose(dev); code != 0 {
				return code
			}
		}
		raw.openFlag = uint16(OpenClose)
		return 0
	}
	rtDeviceRead = func(dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) uint {
		raw := (*rtDevice)(dev)
		if raw.refCount == 0 {
			k.setErrno(-rterr.EERROR)
			return 0
		}
		if raw.read != fakeDevRead {
			k.setErrno(-rterr.ENOSYS)
			return 0
		}
		return deviceRead(dev, pos, buffer, size)
	}
	rtDeviceWrite = func(dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) uint {
		raw := (*rtDevice)(dev)
		if raw.refCount == 0 {
			k.setErrno(-rterr.EERROR)
			return 0
		}
		if raw.write != fakeDevWrite {
			k.setErrno(-rterr.ENOSYS)
			return 0
		}
		return deviceWrite(dev, pos, buffer, size)
	}
	rtDeviceControl = func(dev unsafe.Pointer, cmd int32, arg unsafe.Pointer) int {
		raw := (*rtDevice)(dev)
		if raw.control != fakeDevControl {
			return -rterr.ENOSYS
		}
		return deviceControl(dev, cmd, arg)
	}
}

func (k *fakeKernel) setErrno(code int) {
	k.mu.Lock()
	k.errno = code
	k.mu.Unlock()
}

func (k *fakeKernel) bindMisc() {
	rtGetErrno = func() int {
		k.mu.Lock()
		defer k.mu.Unlock()
		return k.errno
	}
	rtSetErrno = k.setErrno

	rtKputs = func(str *byte) {
		k.mu.Lock()
		k.kputs = append(k.kputs, goString(str))
		k.mu.Unlock()
	}

	rtMallocAlign = func(size, align uint) unsafe.Pointer {
		k.mu.Lock()
		defer k.mu.Unlock()
		if k.failAlloc {
			return nil
		}
		mem := make([]byte, size+align)
		base := uintptr(unsafe.Pointer(&mem[0]))
		off := (align - uint(base%uintptr(align))) % align
		p := unsafe.Pointer(&mem[off])
		k.heap[p] = mem
		return p
	}
	rtFreeAlign = func(ptr unsafe.Pointer) {
		k.mu.Lock()
		delete(k.heap, ptr)
		k.mu.Unlock()
	}

	rtHwInterruptDisable = func() int {
		k.mu.Lock()
		defer k.mu.Unlock()
		level := k.irqLevel
		k.irqLevel++
		k.irqCalls++
		return level
	}
	rtHwInterruptEnable = func(level int) {
		k.mu.Lock()
		k.irqLevel = level
		k.mu.Unlock()
	}
	rtEnterCritical = func() {
		k.mu.Lock()
		k.critical++
		k.mu.Unlock()
	}
	rtExitCritical = func() {
		k.mu.Lock()
		k.critical--
		k.mu.Unlock()
	}

	rtObjectGetType = func(object unsafe.Pointer) uint8 {
		return (*rtObject)(object).typ
	}
	rtObjectIsSystemobject = func(object unsafe.Pointer) int {
		if (*rtObject)(object).typ&objectClassStatic != 0 {
			return 1
		}
		return 0
	}
}

// console returns everything written through rt_kputs.
func (k *fakeKernel) console() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	var s string
	for _, c := range k.kputs {
		s += c
	}
	return s
}

// withoutKernel makes the kernel look unloaded for the duration of the test.
func withoutKernel(t *testing.T) {
	t.Helper()
	saved := bindingsRegistered
	bindingsRegistered = false
	t.Cleanup(func() { bindingsRegistered = saved })
}
