// Package ffi implements the FFI Marshaller (§4.2): it opens native
// dynamic libraries and performs ABI-correct calls against them given
// only a domain.Signature and a slice of domain.Values, with no
// compile-time knowledge of the callee's real Go/C type.
//
// It is built on github.com/ebitengine/purego, which gives cgo-free
// dlopen/dlsym plus a reflection-driven calling convention
// (purego.RegisterFunc) that already handles the platform ABI's
// floating-point and string-marshalling quirks — exactly the "mature FFI
// crate" §9's design notes ask for, so this package is a thin policy
// layer over it rather than a reimplementation.
package ffi

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// Library is a dynamically loaded native shared object (§3 Driver
// Process State: "a handle to an OS-level dynamic library opened at
// load time, plus a lookup table (optional) of resolved symbol
// pointers").
type Library struct {
	handle  uintptr
	path    string
	symbols map[string]uintptr
}

// Open dlopen(3)s path and returns a Library wrapping the handle.
func Open(path string) (*Library, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("ffi: dlopen %s: %w", path, err)
	}
	return &Library{handle: h, path: path, symbols: make(map[string]uintptr)}, nil
}

// Path returns the path Library was opened from.
func (l *Library) Path() string { return l.path }

// Symbol resolves and caches the address of name (§4.6 driver symbol
// resolution rule).
func (l *Library) Symbol(name string) (uintptr, error) {
	if addr, ok := l.symbols[name]; ok {
		return addr, nil
	}
	addr, err := purego.Dlsym(l.handle, name)
	if err != nil {
		return 0, fmt.Errorf("ffi: symbol %q not found in %s: %w", name, l.path, err)
	}
	l.symbols[name] = addr
	return addr, nil
}

// Close releases no OS resource today. Unloading a native library mid-run
// is not required here (reload is permitted but live patching is not),
// and purego does not expose a portable dlclose; the handle is simply
// dropped, and the owning process's Destroyed state is what prevents
// further calls through it.
func (l *Library) Close() error { return nil }
