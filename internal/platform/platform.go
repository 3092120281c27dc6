//go:build !ios && !android && (amd64 || arm64)

// Package platform provides platform detection for rttgo.
// It decides how the kernel shared library is named on the host and which
// pointer-size assumptions the bindings can make.
package platform

import (
	"fmt"
	"runtime"
	"unsafe"
)

// Is64Bit indicates whether the platform is 64-bit.
// The bindings map C long (rt_base_t, rt_err_t, rt_size_t) onto Go int and
// uint, which is only valid on LP64 targets.
const Is64Bit = unsafe.Sizeof(uintptr(0)) == 8

// PointerSize is the size in bytes of a kernel pointer and of rt_base_t.
const PointerSize = unsafe.Sizeof(uintptr(0))

// LibraryExtension is the file extension for shared libraries on this platform.
var LibraryExtension string

// LibraryPrefix is the prefix for shared library names on this platform.
var LibraryPrefix string

func init() {
	switch runtime.GOOS {
	case "darwin":
		LibraryExtension = ".dylib"
		LibraryPrefix = "lib"
	case "windows":
		LibraryExtension = ".dll"
		LibraryPrefix = ""
	default: // linux, freebsd, etc.
		LibraryExtension = ".so"
		LibraryPrefix = "lib"
	}
}

// FormatLibraryName returns the platform-specific library filename.
// If version is 0, returns the unversioned library name.
//
// Examples:
//   - Linux:   FormatLibraryName("rtthread", 4) -> "librtthread.so.4"
//   - macOS:   FormatLibraryName("rtthread", 4) -> "librtthread.4.dylib"
//   - Windows: FormatLibraryName("rtthread", 4) -> "rtthread-4.dll"
func FormatLibraryName(name string, version int) string {
	switch runtime.GOOS {
	case "darwin":
		if version > 0 {
			return fmt.Sprintf("%s%s.%d%s", LibraryPrefix, name, version, LibraryExtension)
		}
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	case "windows":
		if version > 0 {
			return fmt.Sprintf("%s%s-%d%s", LibraryPrefix, name, version, LibraryExtension)
		}
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	default: // linux, freebsd
		if version > 0 {
			return fmt.Sprintf("%s%s%s.%d", LibraryPrefix, name, LibraryExtension, version)
		}
		return fmt.Sprintf("%s%s%s", LibraryPrefix, name, LibraryExtension)
	}
}
