//go:build !ios && !android && (amd64 || arm64)

// Package rterr maps RT-Thread kernel return codes onto Go errors.
//
// Kernel calls return a signed code: 0 is success and the magnitude of any
// other value selects one of a small closed set of error kinds. Every call
// site in rttgo translates the code here, so raw codes never leave the
// binding layer.
package rterr

import (
	"errors"
	"fmt"
)

// Kernel error codes (RT_EOK .. RT_EINVAL in rtdef.h). Kernel functions
// return them negated.
const (
	EOK      = 0
	EERROR   = 1
	ETIMEOUT = 2
	EFULL    = 3
	EEMPTY   = 4
	ENOMEM   = 5
	ENOSYS   = 6
	EBUSY    = 7
	EIO      = 8
	EINTR    = 9
	EINVAL   = 10
)

// unknownCode is what a bare KindUnknown encodes to. It is outside the
// kernel table, so it decodes back to KindUnknown.
const unknownCode = 255

// Kind classifies a kernel error. Kind values are themselves errors, so they
// can be used as sentinels with errors.Is:
//
//	if errors.Is(err, rterr.KindTimeout) { ... }
type Kind uint8

const (
	OK Kind = iota
	KindError
	KindTimeout
	KindFull
	KindEmpty
	KindNoMem
	KindNoSys
	KindBusy
	KindIO
	KindIntr
	KindInval
	KindUnknown
)

var kindNames = [...]string{
	OK:          "ok",
	KindError:   "generic error",
	KindTimeout: "timed out",
	KindFull:    "resource full",
	KindEmpty:   "resource empty",
	KindNoMem:   "out of memory",
	KindNoSys:   "not supported",
	KindBusy:    "busy",
	KindIO:      "I/O error",
	KindIntr:    "interrupted",
	KindInval:   "invalid argument",
	KindUnknown: "unknown error",
}

// Error implements the error interface.
func (k Kind) Error() string {
	if int(k) < len(kindNames) {
		return "rtthread: " + kindNames[k]
	}
	return fmt.Sprintf("rtthread: kind %d", uint8(k))
}

// String returns the short name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Code returns the positive kernel code for the kind.
func (k Kind) Code() int {
	switch k {
	case OK:
		return EOK
	case KindError:
		return EERROR
	case KindTimeout:
		return ETIMEOUT
	case KindFull:
		return EFULL
	case KindEmpty:
		return EEMPTY
	case KindNoMem:
		return ENOMEM
	case KindNoSys:
		return ENOSYS
	case KindBusy:
		return EBUSY
	case KindIO:
		return EIO
	case KindIntr:
		return EINTR
	case KindInval:
		return EINVAL
	default:
		return unknownCode
	}
}

// KindOf maps a kernel code to its kind. The sign of code is ignored.
// 0 maps to OK and codes outside the table map to KindUnknown.
func KindOf(code int) Kind {
	if code < 0 {
		code = -code
	}
	switch code {
	case EOK:
		return OK
	case EERROR:
		return KindError
	case ETIMEOUT:
		return KindTimeout
	case EFULL:
		return KindFull
	case EEMPTY:
		return KindEmpty
	case ENOMEM:
		return KindNoMem
	case ENOSYS:
		return KindNoSys
	case EBUSY:
		return KindBusy
	case EIO:
		return KindIO
	case EINTR:
		return KindIntr
	case EINVAL:
		return KindInval
	default:
		return KindUnknown
	}
}

// Error is a failed kernel call.
type Error struct {
	Kind Kind   // Classified error kind
	Code int    // Raw kernel code, negative
	Op   string // Kernel function that failed
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("rtthread: %s (code %d)", e.Kind.String(), e.Code)
	}
	return fmt.Sprintf("rtthread %s: %s (code %d)", e.Op, e.Kind.String(), e.Code)
}

// Unwrap returns the error kind so errors.Is matches Kind sentinels.
func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError creates an Error from a kernel code.
// Returns nil if code is 0.
func NewError(code int, op string) error {
	kind := KindOf(code)
	if kind == OK {
		return nil
	}
	if code > 0 {
		code = -code
	}
	return &Error{Kind: kind, Code: code, Op: op}
}

// New creates an Error of the given kind that was not produced by a kernel
// call, e.g. a NULL object returned by a create function.
func New(kind Kind, op string) error {
	if kind == OK {
		return nil
	}
	return &Error{Kind: kind, Code: -kind.Code(), Op: op}
}

// KindOfError returns the kind carried by err: OK for nil, the kind of an
// *Error or Kind in the chain, and KindError for any other error.
func KindOfError(err error) Kind {
	if err == nil {
		return OK
	}
	var rtErr *Error
	if errors.As(err, &rtErr) {
		return rtErr.Kind
	}
	var kind Kind
	if errors.As(err, &kind) {
		return kind
	}
	return KindError
}

// ToCode encodes err as a negative kernel code, the form device drivers
// return to the kernel. nil encodes to 0. The raw code of an *Error is kept,
// so KindOf(ToCode(err)) == KindOfError(err) for every err.
func ToCode(err error) int {
	if err == nil {
		return EOK
	}
	var rtErr *Error
	if errors.As(err, &rtErr) && rtErr.Kind != OK {
		if rtErr.Code != 0 && KindOf(rtErr.Code) == rtErr.Kind {
			return -abs(rtErr.Code)
		}
		return -rtErr.Kind.Code()
	}
	kind := KindOfError(err)
	if kind == OK {
		return -EERROR
	}
	return -kind.Code()
}

// Code returns the raw kernel code from an error, or 0 if err is not an *Error.
func Code(err error) int {
	var rtErr *Error
	if errors.As(err, &rtErr) {
		return rtErr.Code
	}
	return 0
}

// IsTimeout returns true if err is a kernel timeout.
// Take and Delay return it when a finite timeout elapses.
func IsTimeout(err error) bool {
	return errors.Is(err, KindTimeout)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
