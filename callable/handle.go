// Package callable implements the Function Handle (§4.4): a tagged
// callable bundling a typed signature with either a native code pointer
// (dispatched through ffi) or a scripting-runtime reference (dispatched
// through script). It is the single point every cross-process call,
// namespace entry, and event listener passes through.
package callable

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/ffi"
	"github.com/mrmaniac/vos/script"
)

// tag discriminates a FunctionHandle's callable payload (§9 redesign
// note: "Function Handle's callable payload is likewise a sum —
// Native(code_ptr) | Scripted(runtime_ref, registry_index)").
type tag int

const (
	tagNative tag = iota
	tagScripted
)

// FunctionHandle is a Function Handle (§3). Exactly one of the native or
// scripted payload fields is meaningful, selected by tag.
type FunctionHandle struct {
	Owner domain.ProcessRef
	Sig   domain.Signature

	tag tag

	nativeAddr uintptr

	scriptRuntime *script.Runtime
	scriptValue   lua.LValue
}

// NewNative builds a handle over a resolved native symbol address, owned
// by owner (§4.2/§4.4, driver side).
func NewNative(owner domain.ProcessRef, sig domain.Signature, addr uintptr) *FunctionHandle {
	return &FunctionHandle{Owner: owner, Sig: sig, tag: tagNative, nativeAddr: addr}
}

// NewScripted builds a handle over a script-runtime value, owned by
// owner (§4.4, script side — e.g. produced by `kernel.namespace(ns).
// define(query, fn)`, §4.8, or by §4.6's define_query resolving a
// non-function global). value need not be callable: per §4.6, "if the
// global is not callable, the handle is still created but calls will
// error when invoked" — that check happens in script.Runtime.Invoke.
func NewScripted(owner domain.ProcessRef, sig domain.Signature, rt *script.Runtime, value lua.LValue) *FunctionHandle {
	return &FunctionHandle{Owner: owner, Sig: sig, tag: tagScripted, scriptRuntime: rt, scriptValue: value}
}

// anonymousCallbackSignature is the implementation-chosen default
// signature WrapScriptFunction gives a Lua function value (§4.3, §9 open
// question 1). kernel.call does not use it for function values passed
// as pointer arguments; it passes a callback-registry index instead. Two
// opaque pointer slots mirror Event Data's "two opaque pointers"
// interpretation (§3): callers that need a richer payload than two words
// agree on its shape out of band, the same way event data already works.
var anonymousCallbackSignature = domain.Signature{
	Name:   "<anonymous callback>",
	Args:   []domain.ValueKind{domain.KindPointer, domain.KindPointer},
	Return: domain.KindVoid,
}

// WrapScriptFunction implements §4.3's anonymous callback creation: fn is
// registered in rt's callback registry (so it survives past the call that
// produced it) and wrapped in a handle using anonymousCallbackSignature.
func WrapScriptFunction(owner domain.ProcessRef, rt *script.Runtime, fn *lua.LFunction) *FunctionHandle {
	rt.RegisterCallback(fn)
	return NewScripted(owner, anonymousCallbackSignature, rt, fn)
}

// listenerCallbackSignature specializes anonymousCallbackSignature for
// event listeners: its declared return kind is KindBool rather than
// KindVoid, so a script listener that returns true is decoded rather
// than discarded, letting it participate in §4.7's short-circuit
// consumption. A listener that returns nothing decodes as an
// error-typed result, which Event Bus Trigger already treats as "not
// consumed" along with every other non-true result.
var listenerCallbackSignature = domain.Signature{
	Name:   "<event listener>",
	Args:   []domain.ValueKind{domain.KindPointer, domain.KindPointer},
	Return: domain.KindBool,
}

// WrapScriptListener is WrapScriptFunction specialized for event
// listeners (§4.7), using listenerCallbackSignature so a consuming
// `return true` is actually observed by the bus.
func WrapScriptListener(owner domain.ProcessRef, rt *script.Runtime, fn *lua.LFunction) *FunctionHandle {
	rt.RegisterCallback(fn)
	return NewScripted(owner, listenerCallbackSignature, rt, fn)
}

// Call is the Function Handle dispatch entry point (§4.4):
//  1. null handle or non-running owner -> error-typed result.
//  2. dispatch on tag to ffi.Call or script.Runtime.Invoke.
//  3. recover a native-call panic (e.g. a bad pointer dereferenced across
//     the FFI boundary) into an error-typed result, same as any other
//     failure mode (§7).
func Call(h *FunctionHandle, args ...domain.Value) (result domain.Value) {
	if h == nil {
		return domain.ValueError("callable: call through a null handle")
	}
	if h.Owner == nil || h.Owner.State() != domain.StateRunning {
		return domain.ValueError(fmt.Sprintf("callable: %s: owning process is not running", h.Sig.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			result = domain.ValueError(fmt.Sprintf("callable: %s: panic: %v", h.Sig.Name, r))
		}
	}()

	switch h.tag {
	case tagNative:
		return ffi.Call(h.nativeAddr, h.Sig, args)
	case tagScripted:
		return h.scriptRuntime.Invoke(h.scriptValue, h.Sig, args)
	default:
		return domain.ValueError(fmt.Sprintf("callable: %s: handle has no callable payload", h.Sig.Name))
	}
}
