//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"fmt"
	"os"
	"sync"
)

// LogLevel is the severity of a binding-layer diagnostic. The values follow
// the kernel's ulog levels.
type LogLevel int32

// Log level constants matching ulog's LOG_LVL_* values.
const (
	LogQuiet   LogLevel = -1
	LogAssert  LogLevel = 0 // Fatal conditions
	LogError   LogLevel = 3 // Something went wrong, recovery possible
	LogWarning LogLevel = 4 // Something unexpected but recovery possible
	LogInfo    LogLevel = 6 // Standard information
	LogDebug   LogLevel = 7 // Stuff for debugging
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch {
	case l < LogAssert:
		return "quiet"
	case l < LogError:
		return "assert"
	case l < LogWarning:
		return "error"
	case l < LogInfo:
		return "warning"
	case l < LogDebug:
		return "info"
	default:
		return "debug"
	}
}

// LogCallback is called for each diagnostic at or above the current level.
// level is the log level, message is the formatted message.
type LogCallback func(level LogLevel, message string)

var (
	logMu       sync.Mutex
	logCallback LogCallback
	logLevel    = LogWarning
)

// SetLogLevel sets the most verbose level that is still reported.
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	logLevel = level
	logMu.Unlock()
}

// GetLogLevel returns the current log level.
func GetLogLevel() LogLevel {
	logMu.Lock()
	defer logMu.Unlock()
	return logLevel
}

// SetLogCallback sets a custom handler for binding-layer diagnostics such as
// a callback invoked twice or a device without operations.
// Pass nil to restore the default, which writes to the kernel console, or
// to stderr before the kernel is loaded.
func SetLogCallback(cb LogCallback) {
	logMu.Lock()
	logCallback = cb
	logMu.Unlock()
}

func logf(level LogLevel, format string, args ...any) {
	logMu.Lock()
	cb, limit := logCallback, logLevel
	logMu.Unlock()

	if level > limit {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if cb != nil {
		cb(level, msg)
		return
	}

	line := "[rttgo] " + level.String() + ": " + msg + "\n"
	if ready() == nil {
		Console.WriteString(line)
		return
	}
	fmt.Fprint(os.Stderr, line)
}
