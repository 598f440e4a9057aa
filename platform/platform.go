// Package platform implements the platform-layer external interface
// (§6): time, sleep, path normalization, file existence/reading, and the
// per-OS dynamic-library file extension. Dynamic-library load/unload/
// symbol-lookup, also named in §6, is instead satisfied by package ffi
// (github.com/ebitengine/purego) — repeating it here would just be a
// second, worse wrapper over the same OS calls.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// DynlibExt returns the current platform's dynamic-library file
// extension, used by the Process Registry's load() to classify a path
// as a driver (§4.5).
func DynlibExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// Now returns the current wall-clock time.
func Now() time.Time { return time.Now() }

// Sleep blocks the calling goroutine for d. The core never calls this
// itself (§5: no suspension points in the core); it exists for the CLI
// launcher's render/event loop pacing.
func Sleep(d time.Duration) { time.Sleep(d) }

// AbsPath normalizes path to an absolute, cleaned form.
func AbsPath(path string) (string, error) {
	return filepath.Abs(path)
}

// FileExists reports whether path names an existing filesystem entry.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads the entirety of path.
func ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
