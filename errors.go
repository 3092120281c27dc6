//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"errors"

	"github.com/obinnaokechukwu/rttgo/internal/bindings"
	"github.com/obinnaokechukwu/rttgo/rterr"
)

// Error is a failed kernel call. It carries the error kind, the raw kernel
// code and the kernel function that failed.
type Error = rterr.Error

// ErrorKind classifies kernel errors. Kinds are errors themselves and match
// any *Error of the same kind with errors.Is.
type ErrorKind = rterr.Kind

// Error kinds re-exported from rterr.
const (
	KindError   = rterr.KindError
	KindTimeout = rterr.KindTimeout
	KindFull    = rterr.KindFull
	KindEmpty   = rterr.KindEmpty
	KindNoMem   = rterr.KindNoMem
	KindNoSys   = rterr.KindNoSys
	KindBusy    = rterr.KindBusy
	KindIO      = rterr.KindIO
	KindIntr    = rterr.KindIntr
	KindInval   = rterr.KindInval
	KindUnknown = rterr.KindUnknown
)

// Common errors
var (
	// ErrNotLoaded indicates the kernel library is not loaded.
	ErrNotLoaded = bindings.ErrNotLoaded

	// ErrNullHandle indicates an operation on a zero resource handle.
	ErrNullHandle = errors.New("rttgo: null handle")
)

// NewError creates an Error from a kernel code.
// Returns nil if code is 0.
func NewError(code int, op string) error {
	return rterr.NewError(code, op)
}

// ErrorCode returns the kernel code for err as a driver would return it:
// 0 for nil, negative otherwise.
func ErrorCode(err error) int {
	return rterr.ToCode(err)
}

// KindOf returns the kind of a kernel error, KindError for foreign errors.
func KindOf(err error) ErrorKind {
	return rterr.KindOfError(err)
}

// IsTimeout returns true if err is a kernel timeout.
func IsTimeout(err error) bool {
	return rterr.IsTimeout(err)
}

// check converts a kernel return code into an error.
func check(code int, op string) error {
	return rterr.NewError(code, op)
}
