package ffi

import (
	"runtime"
	"testing"

	"github.com/mrmaniac/vos/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openLibc tries well-known paths for the C library on hosts this
// kernel is expected to run on. The FFI marshaller is exercised against
// libc's own `abs` function instead of a purpose-built fixture library,
// since libc is present on essentially every POSIX host and needs no
// build step (this repo's tests must not invoke the Go toolchain to
// produce a .so fixture).
func openLibc(t *testing.T) *Library {
	t.Helper()

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"/usr/lib/libSystem.B.dylib", "/usr/lib/libSystem.dylib"}
	case "linux":
		candidates = []string{"libc.so.6", "/lib/x86_64-linux-gnu/libc.so.6", "/usr/lib/libc.so.6"}
	default:
		t.Skipf("no known libc path for GOOS=%s", runtime.GOOS)
	}

	for _, path := range candidates {
		if lib, err := Open(path); err == nil {
			return lib
		}
	}
	t.Skip("could not dlopen libc on this host")
	return nil
}

func TestCallNativeIdentityLikeRoundTrip(t *testing.T) {
	lib := openLibc(t)

	addr, err := lib.Symbol("abs")
	require.NoError(t, err)

	s := domain.Signature{Name: "abs", Args: []domain.ValueKind{domain.KindI32}, Return: domain.KindI32}

	result := Call(addr, s, []domain.Value{domain.ValueI32(-55)})
	require.False(t, result.IsError(), "abs(-55) returned error: %s", result.Err)
	assert.Equal(t, int32(55), result.I32())
}

func TestCallArgumentCountMismatch(t *testing.T) {
	lib := openLibc(t)
	addr, err := lib.Symbol("abs")
	require.NoError(t, err)

	s := domain.Signature{Name: "abs", Args: []domain.ValueKind{domain.KindI32}, Return: domain.KindI32}
	result := Call(addr, s, nil)
	assert.True(t, result.IsError())
}
