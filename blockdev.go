//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"io"

	"github.com/obinnaokechukwu/rttgo/rterr"
	"tinygo.org/x/tinyfs"
)

// DeviceIO is the unit-based transfer interface of a kernel device.
// Device implements it.
type DeviceIO interface {
	Type() DeviceClass
	Read(pos int, buf []byte, size int) (int, error)
	Write(pos int, buf []byte, size int) (int, error)
}

// BlockIO is a DeviceIO that also accepts control commands, which block
// devices need for their geometry.
type BlockIO interface {
	DeviceIO
	Controller
}

type blockStatus uint8

const (
	blockUninit blockStatus = iota // buffer does not hold the current block
	blockClean                     // buffer matches the device
	blockDirty                     // buffer has unwritten changes
)

// BlockDevice gives byte-level access to a block device. It keeps one block
// buffered: partial blocks are read, modified and written back when the
// cursor leaves the block, on Flush, or on Seek to another block. Whole
// blocks are transferred directly.
//
// BlockDevice implements io.Reader, io.Writer, io.Seeker, io.ReaderAt,
// io.WriterAt and tinyfs.BlockDevice. It is not safe for concurrent use.
type BlockDevice struct {
	dev       BlockIO
	geometry  BlkGeometry
	blockSize int

	blockPos int // current block
	bytePos  int // offset in the current block, blockSize when at its end
	buf      []byte
	status   blockStatus
}

var _ tinyfs.BlockDevice = (*BlockDevice)(nil)

// NewBlockDevice wraps dev. It fails with KindNoSys if dev is not a block
// device; the block size comes from the device geometry.
func NewBlockDevice(dev BlockIO) (*BlockDevice, error) {
	if dev.Type() != DeviceClassBlock {
		return nil, rterr.New(rterr.KindNoSys, "block device")
	}
	geo, err := Geometry(dev)
	if err != nil {
		return nil, err
	}
	if geo.BlockSize == 0 {
		return nil, rterr.New(rterr.KindInval, "block device geometry")
	}
	return &BlockDevice{
		dev:       dev,
		geometry:  geo,
		blockSize: int(geo.BlockSize),
	}, nil
}

// BlockSize returns the size of one device block in bytes.
func (b *BlockDevice) BlockSize() int { return b.blockSize }

// Geometry returns the geometry reported when the device was opened.
func (b *BlockDevice) Geometry() BlkGeometry { return b.geometry }

func (b *BlockDevice) atEnd() bool   { return b.bytePos == b.blockSize }
func (b *BlockDevice) atBegin() bool { return b.bytePos == 0 }

func (b *BlockDevice) offset() int64 {
	return int64(b.blockPos)*int64(b.blockSize) + int64(b.bytePos)
}

// load fills the buffer with the current block unless it already holds it.
func (b *BlockDevice) load() error {
	if b.buf == nil {
		b.buf = make([]byte, b.blockSize)
	}
	if b.status != blockUninit {
		return nil
	}
	n, err := b.dev.Read(b.blockPos, b.buf, 1)
	if err != nil {
		return err
	}
	if n < 1 {
		return io.EOF
	}
	b.status = blockClean
	return nil
}

func (b *BlockDevice) writeBlock(data []byte) (int, error) {
	if err := b.load(); err != nil {
		return 0, err
	}
	n := copy(b.buf[b.bytePos:], data)
	b.bytePos += n
	b.status = blockDirty
	return n, nil
}

func (b *BlockDevice) readBlock(data []byte) (int, error) {
	if err := b.load(); err != nil {
		return 0, err
	}
	n := copy(data, b.buf[b.bytePos:])
	b.bytePos += n
	return n, nil
}

// writeBack writes a dirty buffer to the current block.
func (b *BlockDevice) writeBack() error {
	if b.status != blockDirty {
		return nil
	}
	n, err := b.dev.Write(b.blockPos, b.buf, 1)
	if err != nil {
		return err
	}
	if n < 1 {
		return io.ErrShortWrite
	}
	b.status = blockClean
	return nil
}

// forward moves the cursor steps blocks, first stepping past the current
// block if the cursor is at its end. Leaving a block writes it back if dirty.
func (b *BlockDevice) forward(steps int) error {
	bytePos := b.bytePos
	if b.atEnd() {
		steps++
		bytePos = 0
	}
	if steps == 0 {
		return nil
	}
	next := b.blockPos + steps
	if next < 0 {
		return rterr.New(rterr.KindInval, "block device seek")
	}
	if err := b.writeBack(); err != nil {
		return err
	}
	b.status = blockUninit
	b.blockPos = next
	b.bytePos = bytePos
	return nil
}

// Write writes p at the cursor.
func (b *BlockDevice) Write(p []byte) (int, error) {
	written := 0
	if len(p) == 0 {
		return 0, nil
	}
	if !b.atBegin() {
		n, err := b.writeBlock(p)
		written += n
		p = p[n:]
		if err != nil {
			return written, err
		}
		if err := b.forward(0); err != nil {
			return written, err
		}
	}

	if len(p) >= b.blockSize {
		// The buffered copy of the current block is about to be overwritten.
		if err := b.writeBack(); err != nil {
			return written, err
		}
		b.status = blockUninit
	}
	advanced := 0
	var err error
	for len(p) >= b.blockSize {
		count := len(p) / b.blockSize
		var n int
		n, err = b.dev.Write(b.blockPos+advanced, p[:count*b.blockSize], count)
		if err == nil && n < 1 {
			err = io.ErrShortWrite
		}
		if err != nil {
			break
		}
		n = min(n, count)
		written += n * b.blockSize
		p = p[n*b.blockSize:]
		advanced += n
	}
	if ferr := b.forward(advanced); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return written, err
	}

	if len(p) > 0 {
		n, err := b.writeBlock(p)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Read reads into p from the cursor. It returns io.EOF when the device has
// no more blocks.
func (b *BlockDevice) Read(p []byte) (int, error) {
	read := 0
	if len(p) == 0 {
		return 0, nil
	}
	if !b.atBegin() {
		n, err := b.readBlock(p)
		read += n
		p = p[n:]
		if err != nil {
			return read, eofIfNone(read, err)
		}
		if err := b.forward(0); err != nil {
			return read, err
		}
	}

	if len(p) >= b.blockSize {
		// Unwritten changes must reach the device before it is read directly.
		if err := b.writeBack(); err != nil {
			return read, err
		}
	}
	advanced := 0
	var err error
	for len(p) >= b.blockSize {
		count := len(p) / b.blockSize
		var n int
		n, err = b.dev.Read(b.blockPos+advanced, p[:count*b.blockSize], count)
		if err == nil && n < 1 {
			err = io.EOF
		}
		if err != nil {
			break
		}
		n = min(n, count)
		read += n * b.blockSize
		p = p[n*b.blockSize:]
		advanced += n
	}
	if ferr := b.forward(advanced); ferr != nil && err == nil {
		err = ferr
	}
	if err != nil {
		return read, eofIfNone(read, err)
	}

	if len(p) > 0 {
		n, err := b.readBlock(p)
		read += n
		if err != nil {
			return read, eofIfNone(read, err)
		}
	}
	return read, nil
}

// eofIfNone hides io.EOF behind a short read that returned data.
func eofIfNone(n int, err error) error {
	if err == io.EOF && n > 0 {
		return nil
	}
	return err
}

// Flush writes the buffered block back if it has unwritten changes.
func (b *BlockDevice) Flush() error {
	return b.writeBack()
}

// Sync flushes the buffer and asks the driver to flush its own cache.
func (b *BlockDevice) Sync() error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.dev.Control(SyncCommand{})
}

// Seek moves the cursor. io.SeekEnd needs a device that reports its size in
// its geometry, otherwise it fails with KindInval.
func (b *BlockDevice) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = b.offset() + offset
	case io.SeekEnd:
		size := b.Size()
		if size == 0 {
			return 0, rterr.New(rterr.KindInval, "block device seek")
		}
		abs = size + offset
	default:
		return 0, rterr.New(rterr.KindInval, "block device seek")
	}
	if abs < 0 {
		return 0, rterr.New(rterr.KindInval, "block device seek")
	}

	block := int(abs / int64(b.blockSize))
	if block != b.blockPos {
		if err := b.Flush(); err != nil {
			return 0, err
		}
		b.blockPos = block
		b.status = blockUninit
	}
	b.bytePos = int(abs % int64(b.blockSize))
	return abs, nil
}

// ReadAt reads len(p) bytes at off. The cursor is left where it was.
func (b *BlockDevice) ReadAt(p []byte, off int64) (int, error) {
	saved := b.offset()
	if _, err := b.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(b, p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if _, serr := b.Seek(saved, io.SeekStart); err == nil {
		err = serr
	}
	return n, err
}

// WriteAt writes p at off and flushes it to the device. The cursor is left
// where it was.
func (b *BlockDevice) WriteAt(p []byte, off int64) (int, error) {
	saved := b.offset()
	if _, err := b.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := b.Write(p)
	if err == nil {
		err = b.Flush()
	}
	if _, serr := b.Seek(saved, io.SeekStart); err == nil {
		err = serr
	}
	return n, err
}

// Size returns the device capacity in bytes, or 0 if the geometry does not
// report it.
func (b *BlockDevice) Size() int64 {
	unit := int64(b.geometry.BytesPerSector)
	if unit == 0 {
		unit = int64(b.blockSize)
	}
	return int64(b.geometry.SectorCount) * unit
}

// WriteBlockSize returns the block size: the smallest unit the device
// writes.
func (b *BlockDevice) WriteBlockSize() int64 {
	return int64(b.blockSize)
}

// EraseBlockSize returns the block size.
func (b *BlockDevice) EraseBlockSize() int64 {
	return int64(b.blockSize)
}

// EraseBlocks erases count blocks starting at block start. A buffered block
// inside the range is discarded.
func (b *BlockDevice) EraseBlocks(start, count int64) error {
	if count <= 0 {
		return nil
	}
	if start < 0 || start+count-1 > 1<<32-1 {
		return rterr.New(rterr.KindInval, "block device erase")
	}
	if err := b.dev.Control(NewEraseCommand(uint32(start), uint32(start+count-1))); err != nil {
		return err
	}
	if pos := int64(b.blockPos); pos >= start && pos < start+count {
		b.status = blockUninit
	}
	return nil
}

// CharDevice gives byte-stream access to a non-block device with a byte
// cursor.
type CharDevice struct {
	dev DeviceIO
	pos int
}

// NewCharDevice wraps dev. It fails with KindNoSys for block devices.
func NewCharDevice(dev DeviceIO) (*CharDevice, error) {
	if dev.Type() == DeviceClassBlock {
		return nil, rterr.New(rterr.KindNoSys, "char device")
	}
	return &CharDevice{dev: dev}, nil
}

// Write writes p at the cursor.
func (c *CharDevice) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.dev.Write(c.pos, p, len(p))
	c.pos += n
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, err
}

// Read reads into p from the cursor. A device with no data returns io.EOF.
func (c *CharDevice) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.dev.Read(c.pos, p, len(p))
	c.pos += n
	if err == nil && n == 0 {
		err = io.EOF
	}
	return n, err
}

// Seek moves the cursor. io.SeekEnd is not supported.
func (c *CharDevice) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(c.pos) + offset
	default:
		return 0, rterr.New(rterr.KindInval, "char device seek")
	}
	if abs < 0 {
		return 0, rterr.New(rterr.KindInval, "char device seek")
	}
	c.pos = int(abs)
	return abs, nil
}
