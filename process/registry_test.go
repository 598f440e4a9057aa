package process

import (
	"os"
	"path/filepath"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/script"
)

type fakeKernelAPI struct{}

func (fakeKernelAPI) ResolveSignature(string) (domain.Signature, bool) { return domain.Signature{}, false }
func (fakeKernelAPI) Call(string, ...domain.Value) domain.Value        { return domain.ValueVoid() }
func (fakeKernelAPI) DefineNamespaceFunction(domain.ProcessRef, *script.Runtime, string, string, *lua.LFunction) error {
	return nil
}
func (fakeKernelAPI) Listen(domain.ProcessRef, *script.Runtime, int, *lua.LFunction) error {
	return nil
}
func (fakeKernelAPI) Unlisten(domain.ProcessRef, *script.Runtime, int, *lua.LFunction) bool {
	return false
}
func (fakeKernelAPI) FindProcess(string) (domain.ProcessRef, bool) { return nil, false }
func (fakeKernelAPI) Log(string, string)                           {}

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestLoadScriptAndRun(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "greeter.lua", `
		function _init_self() end
		function greet(n) return n end
	`)

	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	p, err := reg.Load(path)
	require.NoError(t, err)
	assert.Equal(t, domain.StateUninitialized, p.State())
	assert.Equal(t, "greeter", p.Name())

	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))
	assert.Equal(t, domain.StateRunning, p.State())

	// idempotent
	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))
	assert.Equal(t, domain.StateRunning, p.State())
}

func TestLoadScriptWithoutInitSelfRunsAnyway(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "noinit.lua", `function f() end`)

	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	p, err := reg.Load(path)
	require.NoError(t, err)

	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))
	assert.Equal(t, domain.StateRunning, p.State())
}

func TestLoadUnrecognizedSuffix(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "data.txt", "hello")

	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	_, err := reg.Load(path)
	assert.Error(t, err)
	assert.Equal(t, 0, reg.Count())
}

func TestLoadMissingFile(t *testing.T) {
	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	_, err := reg.Load("/nonexistent/path.lua")
	assert.Error(t, err)
}

func TestFindByPrefix(t *testing.T) {
	dir := t.TempDir()
	p1 := writeScript(t, dir, "alpha.lua", "")
	p2 := writeScript(t, dir, "alphabet.lua", "")

	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	a, err := reg.Load(p1)
	require.NoError(t, err)
	_, err = reg.Load(p2)
	require.NoError(t, err)

	found := reg.Find("alpha")
	require.NotNil(t, found)
	assert.Equal(t, a.ID(), found.ID(), "first match in insertion order wins")

	assert.Nil(t, reg.Find("zzz"))
}

func TestGetBoundsChecked(t *testing.T) {
	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	assert.Nil(t, reg.Get(-1))
	assert.Nil(t, reg.Get(0))
}

func TestFindAndGetYieldNilAfterDestroy(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "d.lua", "")

	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	p, err := reg.Load(path)
	require.NoError(t, err)
	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))

	reg.Destroy(p)

	assert.Nil(t, reg.Find("d"))
	assert.Nil(t, reg.Get(p.ID()))
}

func TestLifecycleTransitions(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "life.lua", `function _init_self() end`)

	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	p, err := reg.Load(path)
	require.NoError(t, err)
	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))

	require.NoError(t, reg.Pause(p))
	assert.Equal(t, domain.StatePaused, p.State())
	assert.Error(t, reg.Pause(p), "cannot pause twice")

	require.NoError(t, reg.Resume(p))
	assert.Equal(t, domain.StateRunning, p.State())

	require.NoError(t, reg.Terminate(p))
	assert.Equal(t, domain.StateStopped, p.State())

	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))
	assert.Equal(t, domain.StateRunning, p.State())

	reg.Destroy(p)
	assert.Equal(t, domain.StateDestroyed, p.State())
	assert.Error(t, reg.Pause(p))
}

func TestDestroyAll(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "a.lua", "")

	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	p, err := reg.Load(path)
	require.NoError(t, err)
	require.NoError(t, reg.Run(p, domain.ValuePointer(nil)))

	reg.DestroyAll()
	assert.Equal(t, domain.StateDestroyed, p.State())
}

func TestMaxProcessesBound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping slow exhaustive-slots test in -short mode")
	}
	dir := t.TempDir()
	reg := NewRegistry(fakeKernelAPI{}, ".lua")
	for i := 0; i < domain.MaxProcesses; i++ {
		path := writeScript(t, dir, filepathName(i), "")
		_, err := reg.Load(path)
		require.NoError(t, err)
	}
	_, err := reg.Load(writeScript(t, dir, "overflow.lua", ""))
	assert.Error(t, err)
}

func filepathName(i int) string {
	return "p" + itoa(i) + ".lua"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	return string(b)
}
