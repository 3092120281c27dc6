//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"unsafe"

	"github.com/obinnaokechukwu/rttgo/rterr"
)

// DeviceClass is the kernel device class (enum rt_device_class_type).
type DeviceClass int32

// Device classes.
const (
	DeviceClassChar DeviceClass = iota
	DeviceClassBlock
	DeviceClassNetIf
	DeviceClassMTD
	DeviceClassCAN
	DeviceClassRTC
	DeviceClassSound
	DeviceClassGraphic
	DeviceClassI2CBUS
	DeviceClassUSBDevice
	DeviceClassUSBHost
	DeviceClassSPIBUS
	DeviceClassSPIDevice
	DeviceClassSDIO
	DeviceClassPM
	DeviceClassPipe
	DeviceClassPortal
	DeviceClassTimer
	DeviceClassMisc
	DeviceClassSensor
	DeviceClassTouch
	DeviceClassUnknown
)

var deviceClassNames = [...]string{
	"char", "block", "netif", "mtd", "can", "rtc", "sound", "graphic",
	"i2c-bus", "usb-device", "usb-host", "spi-bus", "spi-device", "sdio",
	"pm", "pipe", "portal", "timer", "misc", "sensor", "touch", "unknown",
}

// String returns the class name.
func (c DeviceClass) String() string {
	if c >= 0 && int(c) < len(deviceClassNames) {
		return deviceClassNames[c]
	}
	return "unknown"
}

// OpenFlag is the mode a device is opened with (RT_DEVICE_OFLAG_*).
type OpenFlag uint16

const (
	OpenClose  OpenFlag = 0x000 // closed (internal use)
	OpenRDOnly OpenFlag = 0x001
	OpenWROnly OpenFlag = 0x002
	OpenRDWR   OpenFlag = 0x003
	OpenOpen   OpenFlag = 0x008 // opened (internal use)
	OpenStream OpenFlag = 0x040
	OpenIntRX  OpenFlag = 0x100
	OpenDMARX  OpenFlag = 0x200
	OpenIntTX  OpenFlag = 0x400
	OpenDMATX  OpenFlag = 0x800
)

// RegisterFlag describes device capabilities at registration
// (RT_DEVICE_FLAG_*).
type RegisterFlag uint16

const (
	FlagRDOnly     RegisterFlag = 0x001
	FlagWROnly     RegisterFlag = 0x002
	FlagRDWR       RegisterFlag = 0x003
	FlagRemovable  RegisterFlag = 0x004
	FlagStandalone RegisterFlag = 0x008
	FlagActivated  RegisterFlag = 0x010
	FlagSuspended  RegisterFlag = 0x020
	FlagStream     RegisterFlag = 0x040
	FlagIntRX      RegisterFlag = 0x100
	FlagDMARX      RegisterFlag = 0x200
	FlagIntTX      RegisterFlag = 0x400
	FlagDMATX      RegisterFlag = 0x800
)

// Device is a handle to a kernel device. Devices found with FindDevice are
// owned by the kernel; devices made with CreateDevice are destroyed with
// Destroy.
type Device struct {
	object
}

func (d Device) raw() *rtDevice {
	return (*rtDevice)(d.ptr)
}

// FindDevice looks a registered device up by name.
func FindDevice(name string) (Device, error) {
	if err := bound(rtDeviceFind != nil, "rt_device_find"); err != nil {
		return Device{}, err
	}
	n := makeName(name)
	p := rtDeviceFind(n.ptr())
	if p == nil {
		return Device{}, rterr.New(rterr.KindError, "rt_device_find")
	}
	return Device{object{p}}, nil
}

func (d Device) call(fn func(unsafe.Pointer) int, op string) error {
	if d.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(fn != nil, op); err != nil {
		return err
	}
	return check(fn(d.ptr), op)
}

// Register adds the device to the kernel registry under name.
func (d Device) Register(name string, flags RegisterFlag) error {
	if d.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(rtDeviceRegister != nil, "rt_device_register"); err != nil {
		return err
	}
	n := makeName(name)
	return check(rtDeviceRegister(d.ptr, n.ptr(), uint16(flags)), "rt_device_register")
}

// Unregister removes the device from the kernel registry.
func (d Device) Unregister() error {
	return d.call(rtDeviceUnregister, "rt_device_unregister")
}

// Init initializes the device. The kernel also does this on first Open.
func (d Device) Init() error {
	return d.call(rtDeviceInit, "rt_device_init")
}

// Open opens the device.
func (d Device) Open(oflag OpenFlag) error {
	if d.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(rtDeviceOpen != nil, "rt_device_open"); err != nil {
		return err
	}
	return check(rtDeviceOpen(d.ptr, uint16(oflag)), "rt_device_open")
}

// Close closes the device.
func (d Device) Close() error {
	return d.call(rtDeviceClose, "rt_device_close")
}

// unitBytes returns the number of bytes covered by one unit of pos and size:
// the block size for block devices, 1 otherwise. Go-backed devices use the
// size the bridge hands their ops; C devices report it in their geometry.
func (d Device) unitBytes(op string) (int, error) {
	if d.Type() != DeviceClassBlock {
		return 1, nil
	}
	if ops := d.Ops(); ops != nil {
		return blockUnit(d.ptr, ops), nil
	}
	geo, err := Geometry(d)
	if err != nil {
		return 0, err
	}
	if geo.BlockSize == 0 {
		return 0, rterr.New(rterr.KindInval, op)
	}
	return int(geo.BlockSize), nil
}

// fits fails with KindInval unless buf holds size units. The kernel and the
// driver trust size, so a short buf would be overrun.
func (d Device) fits(buf []byte, size int, op string) error {
	unit, err := d.unitBytes(op)
	if err != nil {
		return err
	}
	if len(buf)/unit < size {
		return rterr.New(rterr.KindInval, op)
	}
	return nil
}

// Read reads size units starting at pos into buf. For block devices pos and
// size count blocks, for other devices bytes. buf must hold size units.
// It returns the number of units read.
func (d Device) Read(pos int, buf []byte, size int) (int, error) {
	if d.ptr == nil {
		return 0, ErrNullHandle
	}
	if err := bound(rtDeviceRead != nil, "rt_device_read"); err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, rterr.New(rterr.KindInval, "rt_device_read")
	}
	if size == 0 {
		return 0, nil
	}
	if err := d.fits(buf, size, "rt_device_read"); err != nil {
		return 0, err
	}
	rtSetErrno(0)
	n := rtDeviceRead(d.ptr, pos, unsafe.Pointer(unsafe.SliceData(buf)), uint(size))
	if n == 0 {
		if errno := rtGetErrno(); errno != 0 {
			return 0, check(errno, "rt_device_read")
		}
	}
	return int(n), nil
}

// Write writes size units from buf starting at pos. Units are as for Read.
// It returns the number of units written.
func (d Device) Write(pos int, buf []byte, size int) (int, error) {
	if d.ptr == nil {
		return 0, ErrNullHandle
	}
	if err := bound(rtDeviceWrite != nil, "rt_device_write"); err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, rterr.New(rterr.KindInval, "rt_device_write")
	}
	if size == 0 {
		return 0, nil
	}
	if err := d.fits(buf, size, "rt_device_write"); err != nil {
		return 0, err
	}
	rtSetErrno(0)
	n := rtDeviceWrite(d.ptr, pos, unsafe.Pointer(unsafe.SliceData(buf)), uint(size))
	if n == 0 {
		if errno := rtGetErrno(); errno != 0 {
			return 0, check(errno, "rt_device_write")
		}
	}
	return int(n), nil
}

// Control sends cmd to the device. The command's argument is only valid
// for the duration of the call.
func (d Device) Control(cmd Command) error {
	if d.ptr == nil {
		return ErrNullHandle
	}
	if err := bound(rtDeviceControl != nil, "rt_device_control"); err != nil {
		return err
	}
	return check(rtDeviceControl(d.ptr, cmd.Cmd(), cmd.Arg()), "rt_device_control")
}

// Type returns the device class.
func (d Device) Type() DeviceClass {
	if d.ptr == nil {
		return DeviceClassUnknown
	}
	return DeviceClass(d.raw().typ)
}

// Name returns the registered device name.
func (d Device) Name() string { return d.name() }

// Class returns the kernel object class, or ObjectClassNull for a zero
// handle.
func (d Device) Class() ObjectClass { return d.class() }

// Valid reports whether d refers to a kernel object.
func (d Device) Valid() bool { return d.ptr != nil }

// RefCount returns the number of times the device is currently opened.
func (d Device) RefCount() int {
	if d.ptr == nil {
		return 0
	}
	return int(d.raw().refCount)
}
