package event

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrmaniac/vos/callable"
	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/script"
)

type fakeProcess struct{ state domain.ProcessState }

func (p *fakeProcess) ID() int                    { return 1 }
func (p *fakeProcess) Name() string                { return "p" }
func (p *fakeProcess) State() domain.ProcessState { return p.state }

// trackedHandle builds a listener that, besides returning `consumes`,
// appends its name to a shared `log` table so tests can observe
// invocation order and short-circuiting.
func trackedHandle(t *testing.T, rt *script.Runtime, name string, consumes bool) *callable.FunctionHandle {
	t.Helper()
	src := name + " = function(ctx, data) log[#log+1] = '" + name + "'; return " + boolLit(consumes) + " end"
	require.NoError(t, rt.LoadSource(src))
	fn, ok := rt.Global(name).(*lua.LFunction)
	require.True(t, ok)

	owner := &fakeProcess{state: domain.StateRunning}
	sig := domain.Signature{Name: name, Args: []domain.ValueKind{domain.KindPointer, domain.KindPointer}, Return: domain.KindBool}
	return callable.NewScripted(owner, sig, rt, fn)
}

func boolLit(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func callLog(t *testing.T, rt *script.Runtime) []string {
	t.Helper()
	tbl, ok := rt.Global("log").(*lua.LTable)
	require.True(t, ok)
	var out []string
	tbl.ForEach(func(_ lua.LValue, v lua.LValue) {
		out = append(out, v.String())
	})
	return out
}

func TestListenInsertionOrderNoneConsume(t *testing.T) {
	rt := script.NewRuntime()
	defer rt.Close()
	require.NoError(t, rt.LoadSource(`log = {}`))

	a := trackedHandle(t, rt, "a", false)
	b := trackedHandle(t, rt, "b", false)
	c := trackedHandle(t, rt, "c", false)

	bus := NewBus()
	require.NoError(t, bus.Listen(7, a, domain.ValueVoid()))
	require.NoError(t, bus.Listen(7, b, domain.ValueVoid()))
	require.NoError(t, bus.Listen(7, c, domain.ValueVoid()))

	consumed := bus.Trigger(7, Data{})
	assert.False(t, consumed)
	assert.Equal(t, []string{"a", "b", "c"}, callLog(t, rt))
}

func TestTriggerShortCircuitsOnConsumption(t *testing.T) {
	rt := script.NewRuntime()
	defer rt.Close()
	require.NoError(t, rt.LoadSource(`log = {}`))

	a := trackedHandle(t, rt, "a", false)
	b := trackedHandle(t, rt, "b", true)
	c := trackedHandle(t, rt, "c", false)

	bus := NewBus()
	require.NoError(t, bus.Listen(7, a, domain.ValueVoid()))
	require.NoError(t, bus.Listen(7, b, domain.ValueVoid()))
	require.NoError(t, bus.Listen(7, c, domain.ValueVoid()))

	consumed := bus.Trigger(7, Data{})
	assert.True(t, consumed)
	assert.Equal(t, []string{"a", "b"}, callLog(t, rt), "c must not be invoked after b consumes")
}

func TestUnlistenByIdentity(t *testing.T) {
	rt := script.NewRuntime()
	defer rt.Close()
	require.NoError(t, rt.LoadSource(`log = {}`))

	h1 := trackedHandle(t, rt, "f", false)
	h2 := trackedHandle(t, rt, "g", false)

	bus := NewBus()
	require.NoError(t, bus.Listen(3, h1, domain.ValueVoid()))
	require.NoError(t, bus.Listen(3, h2, domain.ValueVoid()))

	assert.True(t, bus.Unlisten(3, h1))
	assert.False(t, bus.Unlisten(3, h1), "already removed")
	require.Len(t, bus.bags[3], 1)
	assert.Equal(t, h2, bus.bags[3][0].handle)
}

func TestListenUnlistenRoundTripLeavesUnchanged(t *testing.T) {
	rt := script.NewRuntime()
	defer rt.Close()
	require.NoError(t, rt.LoadSource(`log = {}`))

	h := trackedHandle(t, rt, "f", false)

	bus := NewBus()
	require.NoError(t, bus.Listen(3, h, domain.ValueVoid()))
	before := len(bus.bags[3])

	require.True(t, bus.Unlisten(3, h))
	require.NoError(t, bus.Listen(3, h, domain.ValueVoid()))
	after := len(bus.bags[3])

	assert.Equal(t, before, after)
}

func TestListenBoundaryCodes(t *testing.T) {
	rt := script.NewRuntime()
	defer rt.Close()
	require.NoError(t, rt.LoadSource(`log = {}`))
	h := trackedHandle(t, rt, "f", false)

	bus := NewBus()
	assert.NoError(t, bus.Listen(MaxEventCode-1, h, domain.ValueVoid()))
	assert.Error(t, bus.Listen(MaxEventCode, h, domain.ValueVoid()))
	assert.Error(t, bus.Listen(-1, h, domain.ValueVoid()))
}

func TestTriggerNoListenersReturnsFalse(t *testing.T) {
	bus := NewBus()
	assert.False(t, bus.Trigger(5, Data{}))
}
