//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"unsafe"
)

// Command is a (command code, argument pointer) pair for rt_device_control.
type Command interface {
	Cmd() int32
	Arg() unsafe.Pointer
}

// Controller executes device commands. Device implements it.
type Controller interface {
	Control(cmd Command) error
}

// RawCommand passes an arbitrary command code and argument to the driver.
// Arg must stay valid for the duration of the call and must not point to
// Go memory that contains Go pointers.
type RawCommand struct {
	Code     int32
	Argument unsafe.Pointer
}

// Cmd returns the command code.
func (c RawCommand) Cmd() int32 { return c.Code }

// Arg returns the argument pointer.
func (c RawCommand) Arg() unsafe.Pointer { return c.Argument }

// BlkGeometry mirrors struct rt_device_blk_geometry. The field order and
// widths must match the kernel exactly.
type BlkGeometry struct {
	SectorCount    uint32 // count of sectors
	BytesPerSector uint32 // number of bytes per sector
	BlockSize      uint32 // number of bytes to erase one block
}

// GeometryArg interprets the argument of a RT_DEVICE_CTRL_BLK_GETGEOME
// command. Drivers implementing DeviceOps use it in Control to fill in the
// result.
func GeometryArg(arg unsafe.Pointer) *BlkGeometry {
	return (*BlkGeometry)(arg)
}

// GetGeometry queries the geometry of a block device.
type GetGeometry struct {
	result BlkGeometry
}

// Cmd returns RT_DEVICE_CTRL_BLK_GETGEOME.
func (g *GetGeometry) Cmd() int32 { return rtDeviceCtrlBlkGetGeome }

// Arg returns the result storage the driver fills in.
func (g *GetGeometry) Arg() unsafe.Pointer { return unsafe.Pointer(&g.result) }

// Exec runs the command on c and returns the geometry. No result is
// returned if the control call fails.
func (g *GetGeometry) Exec(c Controller) (BlkGeometry, error) {
	g.result = BlkGeometry{}
	if err := c.Control(g); err != nil {
		return BlkGeometry{}, err
	}
	return g.result, nil
}

// Geometry returns the geometry of a block device.
func Geometry(c Controller) (BlkGeometry, error) {
	var g GetGeometry
	return g.Exec(c)
}

// SyncCommand flushes a block device's write cache (RT_DEVICE_CTRL_BLK_SYNC).
type SyncCommand struct{}

// Cmd returns RT_DEVICE_CTRL_BLK_SYNC.
func (SyncCommand) Cmd() int32 { return rtDeviceCtrlBlkSync }

// Arg returns nil.
func (SyncCommand) Arg() unsafe.Pointer { return nil }

// EraseCommand erases the blocks in [Start, End] (RT_DEVICE_CTRL_BLK_ERASE).
type EraseCommand struct {
	addrs [2]uint32
}

// NewEraseCommand returns a command erasing blocks start through end
// inclusive.
func NewEraseCommand(start, end uint32) *EraseCommand {
	return &EraseCommand{addrs: [2]uint32{start, end}}
}

// Cmd returns RT_DEVICE_CTRL_BLK_ERASE.
func (e *EraseCommand) Cmd() int32 { return rtDeviceCtrlBlkErase }

// Arg returns the start/end pair.
func (e *EraseCommand) Arg() unsafe.Pointer { return unsafe.Pointer(&e.addrs) }

// Range returns the first and last block to erase.
func (e *EraseCommand) Range() (start, end uint32) { return e.addrs[0], e.addrs[1] }

// EraseArg interprets the argument of a RT_DEVICE_CTRL_BLK_ERASE command.
func EraseArg(arg unsafe.Pointer) (start, end uint32) {
	addrs := (*[2]uint32)(arg)
	return addrs[0], addrs[1]
}
