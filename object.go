//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"unsafe"
)

// ObjectClass is the kernel object class (enum rt_object_class_type).
type ObjectClass uint8

// Object classes. The static flag (0x80) is stripped by Type.
const (
	ObjectClassNull         ObjectClass = 0x00
	ObjectClassThread       ObjectClass = 0x01
	ObjectClassSemaphore    ObjectClass = 0x02
	ObjectClassMutex        ObjectClass = 0x03
	ObjectClassEvent        ObjectClass = 0x04
	ObjectClassMailBox      ObjectClass = 0x05
	ObjectClassMessageQueue ObjectClass = 0x06
	ObjectClassMemHeap      ObjectClass = 0x07
	ObjectClassMemPool      ObjectClass = 0x08
	ObjectClassDevice       ObjectClass = 0x09
	ObjectClassTimer        ObjectClass = 0x0a
)

const objectClassStatic = 0x80

// objectName is a NUL-terminated name buffer of the kernel's name size.
type objectName [NameMax]byte

// makeName copies name into a kernel-sized buffer, truncating it to
// NameMax-1 bytes so the terminator always fits.
func makeName(name string) objectName {
	var buf objectName
	copy(buf[:NameMax-1], name)
	return buf
}

func (n *objectName) ptr() *byte {
	return &n[0]
}

// cString returns the bytes of a NUL-terminated name up to the terminator.
func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// object is the part of every resource handle that views the rt_object
// header.
type object struct {
	ptr unsafe.Pointer
}

func (o object) header() *rtObject {
	return (*rtObject)(o.ptr)
}

func (o object) name() string {
	if o.ptr == nil {
		return ""
	}
	return cString(o.header().name[:])
}

func (o object) class() ObjectClass {
	if o.ptr == nil || ready() != nil {
		return ObjectClassNull
	}
	return ObjectClass(rtObjectGetType(o.ptr)) &^ objectClassStatic
}

func (o object) isSystemObject() bool {
	if o.ptr == nil || ready() != nil {
		return false
	}
	return rtObjectIsSystemobject(o.ptr) != 0
}
