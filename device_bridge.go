//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/rttgo/internal/handles"
	"github.com/obinnaokechukwu/rttgo/rterr"
)

// DeviceOps implements a kernel device in Go. The kernel calls these methods
// from whichever thread uses the device, so implementations must be safe for
// concurrent use if the device is shared.
//
// Read and Write receive pos and size in the kernel's units: blocks for
// DeviceClassBlock, bytes otherwise. buf holds exactly size units. They
// return the number of units transferred.
//
// An error returned from any method reaches the kernel as a negative code
// (see ErrorCode); Read and Write report it through the kernel errno.
type DeviceOps interface {
	Init(dev Device) error
	Open(dev Device, oflag OpenFlag) error
	Close(dev Device) error
	Read(dev Device, pos int, buf []byte, size int) (int, error)
	Write(dev Device, pos int, buf []byte, size int) (int, error)
	Control(dev Device, cmd int32, arg unsafe.Pointer) error
}

// BlockSizer is implemented by block device ops whose block size is not
// 512 bytes.
type BlockSizer interface {
	BlockSize() int
}

// DefaultBlockSize is the block size assumed for block devices whose ops do
// not implement BlockSizer.
const DefaultBlockSize = 512

// CreateDevice creates a kernel device of the given class backed by ops.
// The device still has to be registered with Register before the kernel
// can find it. Destroy releases both the kernel device and ops.
func CreateDevice(class DeviceClass, ops DeviceOps) (Device, error) {
	if err := bound(rtDeviceCreate != nil, "rt_device_create"); err != nil {
		return Device{}, err
	}
	if ops == nil {
		return Device{}, rterr.New(rterr.KindInval, "rt_device_create")
	}
	p := rtDeviceCreate(int32(class), 0)
	if p == nil {
		return Device{}, rterr.New(rterr.KindError, "rt_device_create")
	}

	entries := deviceTrampolines()
	raw := (*rtDevice)(p)
	raw.userData = handles.Register(ops)
	raw.init = entries.init
	raw.open = entries.open
	raw.close = entries.close
	raw.read = entries.read
	raw.write = entries.write
	raw.control = entries.control

	return Device{object{p}}, nil
}

// Destroy frees a device made with CreateDevice and drops its ops. The
// device must be unregistered and closed first. Destroying a device twice,
// or one not made with CreateDevice, is not allowed.
func (d Device) Destroy() error {
	if d.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(rtDeviceDestroy != nil, "rt_device_destroy"); err != nil {
		return err
	}
	raw := d.raw()
	if _, ok := handles.Lookup(raw.userData).(DeviceOps); ok {
		handles.Unregister(raw.userData)
	}
	raw.userData = 0
	rtDeviceDestroy(d.ptr)
	return nil
}

// Ops returns the Go implementation behind a device made with CreateDevice,
// or nil for devices implemented in C.
func (d Device) Ops() DeviceOps {
	if d.ptr == nil {
		return nil
	}
	ops, _ := handles.Lookup(d.raw().userData).(DeviceOps)
	return ops
}

// lookupOps resolves the ops registered for a kernel device pointer.
func lookupOps(dev unsafe.Pointer, op string) (DeviceOps, bool) {
	if dev == nil {
		logf(LogError, "device %s called with NULL device", op)
		return nil, false
	}
	ops, ok := handles.Lookup((*rtDevice)(dev).userData).(DeviceOps)
	if !ok {
		logf(LogError, "device %s: no Go operations registered for %q", op, cString((*rtDevice)(dev).parent.name[:]))
	}
	return ops, ok
}

// blockUnit is the number of bytes per kernel unit for dev.
func blockUnit(dev unsafe.Pointer, ops DeviceOps) int {
	if DeviceClass((*rtDevice)(dev).typ) != DeviceClassBlock {
		return 1
	}
	if bs, ok := ops.(BlockSizer); ok && bs.BlockSize() > 0 {
		return bs.BlockSize()
	}
	return DefaultBlockSize
}

// recoverCode turns a panic in a device operation into a fault report and an
// error code for the kernel.
func recoverCode(code *int) {
	if r := recover(); r != nil {
		Fault(r)
		*code = -rterr.EERROR
	}
}

// recoverSize is recoverCode for read and write, which report errors
// through errno.
func recoverSize(n *uint) {
	if r := recover(); r != nil {
		Fault(r)
		setErrno(-rterr.EERROR)
		*n = 0
	}
}

func setErrno(code int) {
	if rtSetErrno != nil {
		rtSetErrno(code)
	}
}

func deviceInit(dev unsafe.Pointer) (code int) {
	defer recoverCode(&code)
	ops, ok := lookupOps(dev, "init")
	if !ok {
		return -rterr.EERROR
	}
	return rterr.ToCode(ops.Init(Device{object{dev}}))
}

func deviceOpen(dev unsafe.Pointer, oflag uint16) (code int) {
	defer recoverCode(&code)
	ops, ok := lookupOps(dev, "open")
	if !ok {
		return -rterr.EERROR
	}
	return rterr.ToCode(ops.Open(Device{object{dev}}, OpenFlag(oflag)))
}

func deviceClose(dev unsafe.Pointer) (code int) {
	defer recoverCode(&code)
	ops, ok := lookupOps(dev, "close")
	if !ok {
		return -rterr.EERROR
	}
	return rterr.ToCode(ops.Close(Device{object{dev}}))
}

func deviceRead(dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) (n uint) {
	defer recoverSize(&n)
	ops, ok := lookupOps(dev, "read")
	if !ok {
		setErrno(-rterr.EERROR)
		return 0
	}
	if size == 0 {
		return 0
	}
	if buffer == nil {
		setErrno(-rterr.EINVAL)
		return 0
	}
	buf := unsafe.Slice((*byte)(buffer), int(size)*blockUnit(dev, ops))
	read, err := ops.Read(Device{object{dev}}, pos, buf, int(size))
	if err != nil {
		setErrno(rterr.ToCode(err))
		return 0
	}
	return clampCount(read, size)
}

func deviceWrite(dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) (n uint) {
	defer recoverSize(&n)
	ops, ok := lookupOps(dev, "write")
	if !ok {
		setErrno(-rterr.EERROR)
		return 0
	}
	if size == 0 {
		return 0
	}
	if buffer == nil {
		setErrno(-rterr.EINVAL)
		return 0
	}
	buf := unsafe.Slice((*byte)(buffer), int(size)*blockUnit(dev, ops))
	written, err := ops.Write(Device{object{dev}}, pos, buf, int(size))
	if err != nil {
		setErrno(rterr.ToCode(err))
		return 0
	}
	return clampCount(written, size)
}

// clampCount bounds a count returned by DeviceOps to what the kernel asked
// for.
func clampCount(n int, size uint) uint {
	if n <= 0 {
		return 0
	}
	if uint(n) > size {
		return size
	}
	return uint(n)
}

func deviceControl(dev unsafe.Pointer, cmd int32, arg unsafe.Pointer) (code int) {
	defer recoverCode(&code)
	ops, ok := lookupOps(dev, "control")
	if !ok {
		return -rterr.EERROR
	}
	return rterr.ToCode(ops.Control(Device{object{dev}}, cmd, arg))
}

// deviceEntries holds the C addresses of the six operation wrappers.
type deviceEntries struct {
	init, open, close, read, write, control uintptr
}

var (
	deviceEntriesOnce sync.Once
	deviceEntriesVal  deviceEntries
)

// deviceTrampolines returns the wrapper addresses installed into every
// device made with CreateDevice.
var deviceTrampolines = func() deviceEntries {
	deviceEntriesOnce.Do(func() {
		deviceEntriesVal = deviceEntries{
			// rt_err_t (*init)(rt_device_t dev)
			init: purego.NewCallback(func(_ purego.CDecl, dev unsafe.Pointer) int {
				return deviceInit(dev)
			}),
			// rt_err_t (*open)(rt_device_t dev, rt_uint16_t oflag)
			open: purego.NewCallback(func(_ purego.CDecl, dev unsafe.Pointer, oflag uint16) int {
				return deviceOpen(dev, oflag)
			}),
			// rt_err_t (*close)(rt_device_t dev)
			close: purego.NewCallback(func(_ purego.CDecl, dev unsafe.Pointer) int {
				return deviceClose(dev)
			}),
			// rt_size_t (*read)(rt_device_t dev, rt_off_t pos, void *buffer, rt_size_t size)
			read: purego.NewCallback(func(_ purego.CDecl, dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) uint {
				return deviceRead(dev, pos, buffer, size)
			}),
			// rt_size_t (*write)(rt_device_t dev, rt_off_t pos, const void *buffer, rt_size_t size)
			write: purego.NewCallback(func(_ purego.CDecl, dev unsafe.Pointer, pos int, buffer unsafe.Pointer, size uint) uint {
				return deviceWrite(dev, pos, buffer, size)
			}),
			// rt_err_t (*control)(rt_device_t dev, int cmd, void *args)
			control: purego.NewCallback(func(_ purego.CDecl, dev unsafe.Pointer, cmd int32, arg unsafe.Pointer) int {
				return deviceControl(dev, cmd, arg)
			}),
		}
	})
	return deviceEntriesVal
}
