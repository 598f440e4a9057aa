package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/mrmaniac/vos/domain"
)

// KernelAPI is the narrow slice of the Kernel Facade (§4.9) that the
// Scripting Host Binding needs. It is declared here, not in domain,
// because it names operations (Call, DefineNamespaceFunction, Listen)
// that only make sense once process/namespace/event machinery exists;
// putting it in domain would pull those packages down into the bottom
// layer. kernel.Kernel implements it; script never imports kernel.
type KernelAPI interface {
	// ResolveSignature looks up the Function Signature a qualified
	// "ns.fn" name currently resolves to, without invoking it.
	ResolveSignature(qualifiedName string) (domain.Signature, bool)

	// Call dispatches a fully-marshalled call through the namespace
	// registry (§4.6).
	Call(qualifiedName string, args ...domain.Value) domain.Value

	// DefineNamespaceFunction publishes fn, owned by owner and callable
	// through rt, under ns.query (§4.6 define).
	DefineNamespaceFunction(owner domain.ProcessRef, rt *Runtime, ns, query string, fn *lua.LFunction) error

	// Listen registers fn as an event listener for code (§4.7 listen).
	Listen(owner domain.ProcessRef, rt *Runtime, code int, fn *lua.LFunction) error

	// Unlisten removes a previously registered listener, by identity
	// (§4.7 unlisten). Reports whether a matching listener was found.
	Unlisten(owner domain.ProcessRef, rt *Runtime, code int, fn *lua.LFunction) bool

	// FindProcess implements the process-registry find operation (§4.5)
	// for the supplemented `kernel.find` binding.
	FindProcess(namePrefix string) (domain.ProcessRef, bool)

	// Log writes a diagnostic line through the kernel's console (§6),
	// for the supplemented `kernel.log` binding.
	Log(level, msg string)
}

// InstallHostBindings installs the `kernel` global table into rt, bound
// to api and owned by owner (§4.8 Scripting Host Binding). It must be
// called once per script process, before that process's entry point
// runs.
func InstallHostBindings(rt *Runtime, api KernelAPI, owner domain.ProcessRef) {
	tbl := rt.L.NewTable()

	rt.L.SetField(tbl, "call", rt.L.NewFunction(hostCall(rt, api)))
	rt.L.SetField(tbl, "namespace", rt.L.NewFunction(hostNamespace(rt, api, owner)))
	rt.L.SetField(tbl, "listen", rt.L.NewFunction(hostListen(rt, api, owner)))
	rt.L.SetField(tbl, "unlisten", rt.L.NewFunction(hostUnlisten(rt, api, owner)))
	rt.L.SetField(tbl, "find", rt.L.NewFunction(hostFind(rt, api)))
	rt.L.SetField(tbl, "log", rt.L.NewFunction(hostLog(rt, api)))

	rt.L.SetGlobal("kernel", tbl)
}

// hostCall implements `kernel.call(name, ...)` (§4.8): it resolves
// name's signature first so arguments can be converted with the
// inverse of §4.3's mapping. A bare function value passed where a
// pointer argument is declared is stored in rt's callback registry and
// its registry index is passed as the pointer value; no Function Handle
// is built for it, so the callee receives an index token, not a
// callable handle.
func hostCall(rt *Runtime, api KernelAPI) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		sig, ok := api.ResolveSignature(name)
		if !ok {
			L.Push(lua.LNil)
			L.Push(lua.LString(fmt.Sprintf("kernel.call: %q is not defined", name)))
			return 2
		}

		top := L.GetTop()
		nargs := top - 1
		if nargs != len(sig.Args) {
			L.Push(lua.LNil)
			L.Push(lua.LString(fmt.Sprintf("kernel.call: %s: expected %d arguments, got %d", name, len(sig.Args), nargs)))
			return 2
		}

		args := make([]domain.Value, nargs)
		for i := 0; i < nargs; i++ {
			lv := L.Get(i + 2)
			v, err := rt.ToDomain(lv, sig.Args[i], func(fn *lua.LFunction) (uintptr, error) {
				return uintptr(rt.RegisterCallback(fn)), nil
			})
			if err != nil {
				L.Push(lua.LNil)
				L.Push(lua.LString(fmt.Sprintf("kernel.call: %s: arg %d: %v", name, i, err)))
				return 2
			}
			args[i] = v
		}

		result := api.Call(name, args...)
		if result.IsError() {
			L.Push(lua.LNil)
			L.Push(lua.LString(result.Err))
			return 2
		}

		lv, err := rt.toLua(result)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lv)
		return 1
	}
}

// hostNamespace implements `kernel.namespace(name)`, returning a small
// table whose `define(query, fn)` method publishes fn under name.query
// (§4.8: "kernel.namespace(ns).define(query, fn)").
func hostNamespace(rt *Runtime, api KernelAPI, owner domain.ProcessRef) lua.LGFunction {
	return func(L *lua.LState) int {
		ns := L.CheckString(1)

		handle := L.NewTable()
		L.SetField(handle, "define", L.NewFunction(func(L *lua.LState) int {
			query := L.CheckString(1)
			fn := L.CheckFunction(2)
			if err := api.DefineNamespaceFunction(owner, rt, ns, query, fn); err != nil {
				L.Push(lua.LFalse)
				L.Push(lua.LString(err.Error()))
				return 2
			}
			L.Push(lua.LTrue)
			return 1
		}))
		L.Push(handle)
		return 1
	}
}

// hostListen implements `kernel.listen(code, fn)` (§6 supplement: scripts
// may listen for events from their own initialization code).
func hostListen(rt *Runtime, api KernelAPI, owner domain.ProcessRef) lua.LGFunction {
	return func(L *lua.LState) int {
		code := L.CheckInt(1)
		fn := L.CheckFunction(2)
		if err := api.Listen(owner, rt, code, fn); err != nil {
			L.Push(lua.LFalse)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		L.Push(lua.LTrue)
		return 1
	}
}

// hostUnlisten implements `kernel.unlisten(code, fn)`.
func hostUnlisten(rt *Runtime, api KernelAPI, owner domain.ProcessRef) lua.LGFunction {
	return func(L *lua.LState) int {
		code := L.CheckInt(1)
		fn := L.CheckFunction(2)
		L.Push(lua.LBool(api.Unlisten(owner, rt, code, fn)))
		return 1
	}
}

// hostFind implements the supplemented `kernel.find(prefix)` binding,
// returning the matching process's name or nil.
func hostFind(rt *Runtime, api KernelAPI) lua.LGFunction {
	return func(L *lua.LState) int {
		prefix := L.CheckString(1)
		proc, ok := api.FindProcess(prefix)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(proc.Name()))
		return 1
	}
}

// hostLog implements the supplemented `kernel.log(level, message)`
// binding, routing through the kernel's own console (§6).
func hostLog(rt *Runtime, api KernelAPI) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		msg := L.CheckString(2)
		api.Log(level, msg)
		return 0
	}
}
