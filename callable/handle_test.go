package callable

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/script"
)

type fakeProcess struct {
	id    int
	name  string
	state domain.ProcessState
}

func (p *fakeProcess) ID() int                  { return p.id }
func (p *fakeProcess) Name() string             { return p.name }
func (p *fakeProcess) State() domain.ProcessState { return p.state }

func TestCallNullHandle(t *testing.T) {
	result := Call(nil, domain.ValueI32(1))
	assert.True(t, result.IsError())
}

func TestCallOwnerNotRunning(t *testing.T) {
	owner := &fakeProcess{id: 1, name: "p", state: domain.StateStopped}
	h := NewNative(owner, domain.Signature{Name: "f", Return: domain.KindVoid}, 0)
	result := Call(h)
	assert.True(t, result.IsError())
}

func TestCallScriptedDispatch(t *testing.T) {
	owner := &fakeProcess{id: 1, name: "p", state: domain.StateRunning}
	rt := script.NewRuntime()
	defer rt.Close()

	require.NoError(t, rt.LoadSource(`function double(n) return n * 2 end`))
	fn, ok := rt.Global("double").(*lua.LFunction)
	require.True(t, ok)

	sig := domain.Signature{Name: "double", Args: []domain.ValueKind{domain.KindI32}, Return: domain.KindI32}
	h := NewScripted(owner, sig, rt, fn)

	result := Call(h, domain.ValueI32(21))
	require.False(t, result.IsError(), "double: %s", result.Err)
	assert.Equal(t, int32(42), result.I32())
}

func TestWrapScriptFunctionUsesAnonymousCallbackSignature(t *testing.T) {
	owner := &fakeProcess{id: 1, name: "p", state: domain.StateRunning}
	rt := script.NewRuntime()
	defer rt.Close()

	require.NoError(t, rt.LoadSource(`function onCallback(a, b) end`))
	fn := rt.Global("onCallback").(*lua.LFunction)

	h := WrapScriptFunction(owner, rt, fn)
	assert.Equal(t, []domain.ValueKind{domain.KindPointer, domain.KindPointer}, h.Sig.Args)
	assert.Equal(t, domain.KindVoid, h.Sig.Return)

	_, ok := rt.Callback(0)
	assert.True(t, ok, "wrapped function should be registered in the callback registry")
}

func TestWrapScriptListenerDecodesBoolReturn(t *testing.T) {
	owner := &fakeProcess{id: 1, name: "p", state: domain.StateRunning}
	rt := script.NewRuntime()
	defer rt.Close()

	require.NoError(t, rt.LoadSource(`function onEvent(data, ctx) return true end`))
	fn := rt.Global("onEvent").(*lua.LFunction)

	h := WrapScriptListener(owner, rt, fn)
	assert.Equal(t, domain.KindBool, h.Sig.Return)

	result := Call(h, domain.ValuePointer(nil), domain.ValuePointer(nil))
	require.False(t, result.IsError(), "onEvent: %s", result.Err)
	assert.True(t, result.AsBool(), "a listener returning true must be decoded as a consuming result")
}

func TestWrapScriptListenerWithoutReturnIsNotConsumed(t *testing.T) {
	owner := &fakeProcess{id: 1, name: "p", state: domain.StateRunning}
	rt := script.NewRuntime()
	defer rt.Close()

	require.NoError(t, rt.LoadSource(`function onEvent(data, ctx) end`))
	fn := rt.Global("onEvent").(*lua.LFunction)

	h := WrapScriptListener(owner, rt, fn)
	result := Call(h, domain.ValuePointer(nil), domain.ValuePointer(nil))
	assert.False(t, result.AsBool())
}

func TestCallRecoversFromPanic(t *testing.T) {
	owner := &fakeProcess{id: 1, name: "p", state: domain.StateRunning}

	// Produce a real callable value, but attach it to a nil Runtime so
	// dispatch reaches past the "is it callable" check and dereferences a
	// nil pointer; Call must recover that into an error result rather
	// than letting it propagate.
	scratch := script.NewRuntime()
	defer scratch.Close()
	require.NoError(t, scratch.LoadSource(`function crasher() end`))
	fn := scratch.Global("crasher").(*lua.LFunction)

	sig := domain.Signature{Name: "crasher", Return: domain.KindVoid}
	h := NewScripted(owner, sig, nil, fn)

	result := Call(h)
	assert.True(t, result.IsError())
}
