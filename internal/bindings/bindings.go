//go:build !ios && !android && (amd64 || arm64)

// Package bindings handles locating and loading the RT-Thread kernel shared
// library with purego.
//
// The kernel is expected to be built as a shared library, for example the
// POSIX simulator BSP linked as librtthread.so. Symbol registration lives
// with the code that uses the symbols; this package only owns the library
// handle.
package bindings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
	"github.com/obinnaokechukwu/rttgo/internal/platform"
)

// ErrNotLoaded is returned when kernel functions are called before Load().
var ErrNotLoaded = errors.New("rttgo: kernel library not loaded; call rttgo.Init() first")

// ErrLibraryNotFound is returned when the kernel library cannot be found.
var ErrLibraryNotFound = errors.New("rttgo: kernel library not found")

// LibraryName is the base name of the kernel shared library.
const LibraryName = "rtthread"

// Environment variables consulted while searching for the library.
const (
	// EnvLibrary names the library file directly and skips the search.
	EnvLibrary = "RTTGO_LIBRARY"
	// EnvLibDir is searched before any other directory.
	EnvLibDir = "RTTGO_LIB_DIR"
)

// Library versions tried, most recent first.
var libraryVersions = []int{5, 4}

var (
	libKernel uintptr
	libPath   string

	loaded   bool
	loadOnce sync.Once
	loadErr  error
)

// IsLoaded returns true if the kernel library has been successfully loaded.
func IsLoaded() bool {
	return loaded
}

// Load loads the kernel library from the default search locations.
// It is safe to call multiple times; subsequent calls are no-ops.
func Load() error {
	return LoadFrom("")
}

// LoadFrom loads the kernel library from path, or searches for it when path
// is empty. Only the first call to Load or LoadFrom has an effect.
func LoadFrom(path string) error {
	loadOnce.Do(func() {
		loadErr = doLoad(path)
		if loadErr == nil {
			loaded = true
		}
	})
	return loadErr
}

func doLoad(path string) error {
	if path == "" {
		path = os.Getenv(EnvLibrary)
	}
	if path != "" {
		lib, err := tryOpen(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		libKernel, libPath = lib, path
		return nil
	}

	lib, found, err := loadLibrary(LibraryName, libraryVersions)
	if err != nil {
		return fmt.Errorf("loading lib%s: %w", LibraryName, err)
	}
	libKernel, libPath = lib, found
	return nil
}

// loadLibrary attempts to load a library by trying versioned names in every
// search path, then lets the dynamic loader resolve the bare names.
func loadLibrary(name string, versions []int) (uintptr, string, error) {
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range versions {
			fullPath := filepath.Join(searchPath, platform.FormatLibraryName(name, ver))
			if lib, err := tryOpen(fullPath); err == nil {
				return lib, fullPath, nil
			}
		}

		fullPath := filepath.Join(searchPath, platform.FormatLibraryName(name, 0))
		if lib, err := tryOpen(fullPath); err == nil {
			return lib, fullPath, nil
		}
	}

	for _, ver := range versions {
		libName := platform.FormatLibraryName(name, ver)
		if lib, err := tryOpen(libName); err == nil {
			return lib, libName, nil
		}
	}

	libName := platform.FormatLibraryName(name, 0)
	if lib, err := tryOpen(libName); err == nil {
		return lib, libName, nil
	}

	return 0, "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// tryOpen opens a library with RTLD_NOW | RTLD_GLOBAL so that BSP drivers
// linked as separate objects resolve kernel symbols from it.
func tryOpen(path string) (uintptr, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	return lib, nil
}

// FindLibrary searches for the kernel library and returns its full path
// without loading it. This is useful for diagnostics.
func FindLibrary() (string, error) {
	if path := os.Getenv(EnvLibrary); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	for _, searchPath := range LibrarySearchPaths() {
		for _, ver := range libraryVersions {
			fullPath := filepath.Join(searchPath, platform.FormatLibraryName(LibraryName, ver))
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath, nil
			}
		}
		fullPath := filepath.Join(searchPath, platform.FormatLibraryName(LibraryName, 0))
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, LibraryName)
}

// LibrarySearchPaths returns the directories searched for the kernel library,
// starting with RTTGO_LIB_DIR.
func LibrarySearchPaths() []string {
	var paths []string

	if dir := os.Getenv(EnvLibDir); dir != "" {
		paths = append(paths, dir)
	}

	switch runtime.GOOS {
	case "linux", "freebsd":
		if ldPath := os.Getenv("LD_LIBRARY_PATH"); ldPath != "" {
			paths = append(paths, filepath.SplitList(ldPath)...)
		}
		paths = append(paths,
			"/usr/local/lib",
			"/usr/lib",
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
		)

	case "darwin":
		if dyldPath := os.Getenv("DYLD_LIBRARY_PATH"); dyldPath != "" {
			paths = append(paths, filepath.SplitList(dyldPath)...)
		}
		paths = append(paths,
			"/opt/homebrew/lib",
			"/usr/local/lib",
		)

	case "windows":
		if winPath := os.Getenv("PATH"); winPath != "" {
			paths = append(paths, filepath.SplitList(winPath)...)
		}
	}

	if exe, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Dir(exe))
	}
	if wd, err := os.Getwd(); err == nil {
		paths = append(paths, wd)
	}

	return paths
}

// Lib returns the kernel library handle, or 0 if not loaded.
func Lib() uintptr {
	return libKernel
}

// Path returns the path the kernel library was loaded from.
func Path() string {
	return libPath
}

// RegisterFunc binds the C symbol name from the kernel library to fptr.
// It returns an error instead of panicking when the symbol is missing, so
// optional kernel features (disabled in rtconfig.h) can be detected.
func RegisterFunc(fptr any, name string) (err error) {
	if libKernel == 0 {
		return ErrNotLoaded
	}
	defer func() {
		if r := recover(); r != nil { // purego.RegisterLibFunc panics if symbol is missing
			err = fmt.Errorf("rttgo: symbol %s: %v", name, r)
		}
	}()
	purego.RegisterLibFunc(fptr, libKernel, name)
	return nil
}
