//go:build !ios && !android && (amd64 || arm64)

package rttgo

import (
	"fmt"
)

// consoleChunk is the number of bytes handed to rt_kputs per call. The
// kernel console formats into small fixed buffers, so long output is split.
const consoleChunk = 31

// ConsoleWriter writes to the kernel console through rt_kputs.
type ConsoleWriter struct{}

// Console is the kernel console. It implements io.Writer and io.StringWriter.
var Console ConsoleWriter

// Write sends p to the console in chunks of at most 31 bytes. Bytes after an
// embedded NUL in a chunk are not printed by the kernel.
func (ConsoleWriter) Write(p []byte) (int, error) {
	if err := ready(); err != nil {
		return 0, err
	}
	var buf [consoleChunk + 1]byte
	for off := 0; off < len(p); off += consoleChunk {
		n := copy(buf[:consoleChunk], p[off:])
		buf[n] = 0
		rtKputs(&buf[0])
	}
	return len(p), nil
}

// WriteString is Write for strings.
func (c ConsoleWriter) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// Print formats using the default formats and writes to the console.
func Print(args ...any) {
	fmt.Fprint(Console, args...)
}

// Printf formats according to a format specifier and writes to the console.
func Printf(format string, args ...any) {
	fmt.Fprintf(Console, format, args...)
}

// Println formats using the default formats, appends a newline and writes to
// the console.
func Println(args ...any) {
	fmt.Fprintln(Console, args...)
}
