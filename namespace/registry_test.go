package namespace

import (
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/process"
	"github.com/mrmaniac/vos/script"
)

// stubAPI is a no-op script.KernelAPI, sufficient for process.NewRegistry
// to install host bindings into a script process under test; none of
// these tests exercise `kernel.*` from script source.
type stubAPI struct{}

func (stubAPI) ResolveSignature(string) (domain.Signature, bool) { return domain.Signature{}, false }
func (stubAPI) Call(string, ...domain.Value) domain.Value        { return domain.ValueVoid() }
func (stubAPI) DefineNamespaceFunction(domain.ProcessRef, *script.Runtime, string, string, *lua.LFunction) error {
	return nil
}
func (stubAPI) Listen(domain.ProcessRef, *script.Runtime, int, *lua.LFunction) error { return nil }
func (stubAPI) Unlisten(domain.ProcessRef, *script.Runtime, int, *lua.LFunction) bool {
	return false
}
func (stubAPI) FindProcess(string) (domain.ProcessRef, bool) { return nil, false }
func (stubAPI) Log(string, string)                           {}

func loadScript(t *testing.T, src string) *process.Process {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "p.lua")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	reg := process.NewRegistry(stubAPI{}, ".lua")
	p, err := reg.Load(path)
	require.NoError(t, err)
	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))
	return p
}

func TestNamespaceGetOrCreate(t *testing.T) {
	r := NewRegistry()
	a := r.Namespace("math")
	b := r.Namespace("math")
	assert.Same(t, a, b)
}

func TestDefineQueryAndCall(t *testing.T) {
	p := loadScript(t, `function fib(n) if n < 2 then return n end return n end`)

	r := NewRegistry()
	ns := r.Namespace("math")
	require.NoError(t, r.DefineQuery(ns, p, "fib(i32)i32"))

	result := r.Call("math.fib", domain.ValueI32(10))
	require.False(t, result.IsError(), "math.fib: %s", result.Err)
	assert.Equal(t, int32(10), result.I32())
}

func TestDefineDuplicateRejected(t *testing.T) {
	p := loadScript(t, `function foo() end`)

	r := NewRegistry()
	ns := r.Namespace("sys")
	require.NoError(t, r.DefineQuery(ns, p, "foo()void"))
	assert.Error(t, r.DefineQuery(ns, p, "foo()void"))

	_, ok := ns.Lookup("foo")
	assert.True(t, ok, "the first definition must remain resolvable")
}

func TestCallUnknownNamespaceOrFunction(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Call("missing.fn").IsError())

	ns := r.Namespace("sys")
	_ = ns
	assert.True(t, r.Call("sys.missing").IsError())
}

func TestCallMalformedQualifiedName(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Call("noDot").IsError())
	assert.True(t, r.Call(".fn").IsError())
	assert.True(t, r.Call("ns.").IsError())
}

func TestDefineQueryNonCallableGlobalErrorsAtCallTime(t *testing.T) {
	p := loadScript(t, `notAFunction = 5`)

	r := NewRegistry()
	ns := r.Namespace("sys")
	require.NoError(t, r.DefineQuery(ns, p, "notAFunction()void"))

	result := r.Call("sys.notAFunction")
	assert.True(t, result.IsError())
}
