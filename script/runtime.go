// Package script implements the embedded-scripting half of the kernel:
// the Script Process backing state (§3), the Script Bridge's value
// marshalling (§4.3), and the Scripting Host Binding (§4.8).
//
// It is built on github.com/yuin/gopher-lua, a pure-Go (no cgo) Lua VM.
// No repository in this project's retrieval pack embeds a scripting
// language, so gopher-lua is adopted directly on the strength of §9's
// design note ("depend on a mature scripting-runtime embedding crate
// (Lua or similar) with a safe API") rather than grounded on in-pack
// precedent; see DESIGN.md.
package script

import (
	"fmt"
	"unsafe"

	lua "github.com/yuin/gopher-lua"

	"github.com/mrmaniac/vos/domain"
)

// uintptrToPointer and toUnsafePointer exist only to keep the single
// permitted unsafe conversion point for script-side pointer tokens in
// one place; LUserData.Value is declared as interface{} by gopher-lua,
// so the round trip always goes through these two.
func uintptrToPointer(u uintptr) unsafe.Pointer {
	return unsafe.Pointer(u) //nolint:govet
}

func toUnsafePointer(v interface{}) unsafe.Pointer {
	switch p := v.(type) {
	case unsafe.Pointer:
		return p
	case uintptr:
		return unsafe.Pointer(p) //nolint:govet
	default:
		return nil
	}
}

// Runtime is one script process's private scripting-runtime instance
// (§3 Script Process State). Every script process owns exactly one
// Runtime; cross-process calls never touch another process's Runtime
// directly, only through Function Handles (§5 shared-resource policy).
type Runtime struct {
	L *lua.LState

	nextCallback int
	callbacks    map[int]*lua.LFunction
}

// NewRuntime allocates a fresh, isolated Lua state.
func NewRuntime() *Runtime {
	return &Runtime{
		L:         lua.NewState(),
		callbacks: make(map[int]*lua.LFunction),
	}
}

// Close tears down the Lua state. Safe to call once per Runtime, during
// process destruction (§4.5 destroy releases "script runtime instance,
// if any").
func (r *Runtime) Close() {
	r.L.Close()
}

// LoadFile executes a script file's top level, populating its globals.
func (r *Runtime) LoadFile(path string) error {
	return r.L.DoFile(path)
}

// LoadSource executes script source text's top level.
func (r *Runtime) LoadSource(src string) error {
	return r.L.DoString(src)
}

// Global fetches a top-level global by name, or lua.LNil if unset.
func (r *Runtime) Global(name string) lua.LValue {
	return r.L.GetGlobal(name)
}

// IsCallable reports whether v can be invoked (§4.6: "if the global is
// not callable, the handle is still created but calls will error when
// invoked" — callers use this to decide, not to refuse handle creation).
func IsCallable(v lua.LValue) bool {
	_, ok := v.(*lua.LFunction)
	return ok
}

// RegisterCallback stores fn under a fresh index in this runtime's
// callback registry so it survives past the call that produced it (§4.3
// anonymous callback creation: "stores a strong reference in the
// runtime's registry so it survives beyond the immediate call").
func (r *Runtime) RegisterCallback(fn *lua.LFunction) int {
	id := r.nextCallback
	r.nextCallback++
	r.callbacks[id] = fn
	return id
}

// Callback looks up a previously registered callback by index.
func (r *Runtime) Callback(id int) (*lua.LFunction, bool) {
	fn, ok := r.callbacks[id]
	return fn, ok
}

// Invoke is the Script Bridge's call-in contract (§4.3): push args onto
// the runtime's call stack in signature order, invoke fn, and decode at
// most one return value. The runtime's call stack is balanced on every
// exit path because gopher-lua's CallByParam with Protect:true already
// guarantees that.
func (r *Runtime) Invoke(v lua.LValue, sig domain.Signature, args []domain.Value) domain.Value {
	fn, ok := v.(*lua.LFunction)
	if !ok {
		return domain.ValueError(fmt.Sprintf("script: %s: global is not callable (got %s)", sig.Name, v.Type().String()))
	}
	if len(args) != len(sig.Args) {
		return domain.ValueError(fmt.Sprintf("script: %s: expected %d arguments, got %d", sig.Name, len(sig.Args), len(args)))
	}

	luaArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		lv, err := r.toLua(a)
		if err != nil {
			return domain.ValueError(fmt.Sprintf("script: %s: arg %d: %v", sig.Name, i, err))
		}
		luaArgs[i] = lv
	}

	nret := 0
	if sig.Return != domain.KindVoid {
		nret = 1
	}

	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, luaArgs...); err != nil {
		return domain.ValueError(fmt.Sprintf("script: %s: %v", sig.Name, err))
	}

	if nret == 0 {
		return domain.ValueVoid()
	}

	result := r.L.Get(-1)
	r.L.Pop(1)

	v, err := r.ToDomain(result, sig.Return, nil)
	if err != nil {
		return domain.ValueError(fmt.Sprintf("script: %s: return: %v", sig.Name, err))
	}
	return v
}

// toLua converts a domain.Value into its runtime representation (§4.3
// mapping table, host-to-script direction).
func (r *Runtime) toLua(v domain.Value) (lua.LValue, error) {
	switch v.Kind {
	case domain.KindI32:
		return lua.LNumber(v.I32()), nil
	case domain.KindU32:
		return lua.LNumber(v.U32()), nil
	case domain.KindI64:
		return lua.LNumber(v.I64), nil
	case domain.KindU64:
		return lua.LNumber(v.U64()), nil
	case domain.KindF32:
		return lua.LNumber(v.F32Val()), nil
	case domain.KindF64:
		return lua.LNumber(v.F64), nil
	case domain.KindBool:
		return lua.LBool(v.Bool), nil
	case domain.KindString:
		return lua.LString(v.Str), nil
	case domain.KindPointer:
		return &lua.LUserData{Value: v.Ptr}, nil
	case domain.KindVoid:
		return lua.LNil, nil
	default:
		return nil, fmt.Errorf("unsupported value kind %q", v.Kind)
	}
}

// ToDomain converts a runtime value into a domain.Value per kind (§4.3
// mapping table, script-to-host direction), with integer<->float
// coercion of compatible width permitted since gopher-lua has a single
// numeric type.
//
// wrap, if non-nil, is consulted when kind is KindPointer and lv is a
// Lua function value: this is the anonymous-callback path (§4.3). wrap
// registers the function and returns a stable token (kernel.call's wrap
// returns the callback-registry index); ToDomain encodes that token as
// the Pointer value. wrap
// is nil when decoding a return value, since anonymous callbacks are
// only created from call arguments.
func (r *Runtime) ToDomain(lv lua.LValue, kind domain.ValueKind, wrap func(*lua.LFunction) (uintptr, error)) (domain.Value, error) {
	switch kind {
	case domain.KindI32, domain.KindU32, domain.KindI64, domain.KindU64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected a number, got %s", lv.Type().String())
		}
		switch kind {
		case domain.KindI32:
			return domain.ValueI32(int32(n)), nil
		case domain.KindU32:
			return domain.ValueU32(uint32(n)), nil
		case domain.KindI64:
			return domain.ValueI64(int64(n)), nil
		default:
			return domain.ValueU64(uint64(n)), nil
		}
	case domain.KindF32, domain.KindF64:
		n, ok := lv.(lua.LNumber)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected a number, got %s", lv.Type().String())
		}
		if kind == domain.KindF32 {
			return domain.ValueF32(float32(n)), nil
		}
		return domain.ValueF64(float64(n)), nil
	case domain.KindBool:
		b, ok := lv.(lua.LBool)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected a boolean, got %s", lv.Type().String())
		}
		return domain.ValueBool(bool(b)), nil
	case domain.KindString:
		s, ok := lv.(lua.LString)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected a string, got %s", lv.Type().String())
		}
		return domain.ValueString(string(s)), nil
	case domain.KindPointer:
		if fn, ok := lv.(*lua.LFunction); ok {
			if wrap == nil {
				return domain.Value{}, fmt.Errorf("function values cannot be decoded as a return pointer")
			}
			token, err := wrap(fn)
			if err != nil {
				return domain.Value{}, err
			}
			return domain.ValuePointer(uintptrToPointer(token)), nil
		}
		ud, ok := lv.(*lua.LUserData)
		if !ok {
			return domain.Value{}, fmt.Errorf("expected userdata (pointer), got %s", lv.Type().String())
		}
		return domain.Value{Kind: domain.KindPointer, Ptr: toUnsafePointer(ud.Value)}, nil
	default:
		return domain.Value{}, fmt.Errorf("unsupported value kind %q", kind)
	}
}
