// Package kernel implements the Kernel Facade (§4.9): the singleton that
// aggregates the Process Registry, Namespace Registry, and Event Bus,
// wires the Scripting Host Binding into every loaded script process, and
// is the one type the CLI launcher (cmd/voskernel) talks to.
//
// Service wiring follows a conventional Go daemon setup: one constructor
// per service, a single Setup-shaped aggregation point (here Create),
// and a facade that owns every service's lifetime.
package kernel

import (
	"fmt"
	"unsafe"

	lua "github.com/yuin/gopher-lua"

	"github.com/mrmaniac/vos/callable"
	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/event"
	"github.com/mrmaniac/vos/introspect"
	"github.com/mrmaniac/vos/namespace"
	"github.com/mrmaniac/vos/platform"
	"github.com/mrmaniac/vos/process"
	"github.com/mrmaniac/vos/script"
	"github.com/mrmaniac/vos/sig"
	"github.com/mrmaniac/vos/vfs"
)

// EventKernelRender is the event code the CLI launcher's render/event
// loop fires every frame (§6 CLI/launcher contract), carrying a
// RenderEventData payload.
const EventKernelRender = 0

// current is the package-level singleton slot: a Kernel is created
// exactly once per application run. The facade enforces single creation
// itself rather than relying on callers to track a handle.
var current *Kernel

// Kernel is the Kernel Facade (§4.9).
type Kernel struct {
	initialized bool
	destroyed   bool
	rootPath    string

	processes  *process.Registry
	namespaces *namespace.Registry
	events     *event.Bus
	introspect *introspect.Index
	vfs        *vfs.VFS
	console    *platform.Console

	scriptListeners map[int][]scriptListener
}

type scriptListener struct {
	value  lua.LValue
	handle *callable.FunctionHandle
}

// Create allocates the singleton, initializes empty registries and event
// bags, and marks it initialized (§4.9 create). console is the
// diagnostics sink every service logs through; backing is the VFS
// collaborator used to resolve process paths and, if drivers/scripts
// choose to, their own data files. A second call while one Kernel is
// already live is a no-op that logs a warning and returns the existing
// instance, matching "double-init ... no-op with a warning".
func Create(rootPath string, console *platform.Console, backing *vfs.VFS) *Kernel {
	if current != nil {
		console.Warnf("kernel: create called while already initialized, ignoring")
		return current
	}

	k := &Kernel{
		initialized:     true,
		rootPath:        rootPath,
		namespaces:      namespace.NewRegistry(),
		events:          event.NewBus(),
		introspect:      introspect.New(),
		vfs:             backing,
		console:         console,
		scriptListeners: make(map[int][]scriptListener),
	}
	k.processes = process.NewRegistry(k, "")
	current = k
	return k
}

// Destroy transitions every live process to destroyed, then releases all
// registries (§4.9 destroy). A second call, or a call on an already
// destroyed Kernel, is a no-op that logs a warning.
func Destroy(k *Kernel) {
	if k == nil || k.destroyed {
		if k != nil {
			k.console.Warnf("kernel: destroy called on an already-destroyed kernel, ignoring")
		}
		return
	}
	k.processes.DestroyAll()
	k.destroyed = true
	if current == k {
		current = nil
	}
}

// ResolvePath resolves relOrAbs against the kernel's root path if it is
// not already absolute (original_source/kernel/kernel.c: the root path
// is "used purely as an informational base directory for resolving
// relative process paths").
func (k *Kernel) ResolvePath(relOrAbs string) string {
	if len(relOrAbs) > 0 && relOrAbs[0] == '/' {
		return relOrAbs
	}
	joined, err := platform.AbsPath(k.rootPath + "/" + relOrAbs)
	if err != nil {
		return relOrAbs
	}
	return joined
}

// Load resolves path against the kernel's root and loads it as a new
// process (§4.5 load via §4.9 process_load).
func (k *Kernel) Load(path string) (*process.Process, error) {
	p, err := k.processes.Load(k.ResolvePath(path))
	if err != nil {
		return nil, err
	}
	k.introspect.RegisterProcess(p.Name())
	return p, nil
}

// Run invokes p's entry point, passing this Kernel's own address as the
// opaque kernel pointer a driver's _init_self receives (§6).
func (k *Kernel) Run(p *process.Process) error {
	return k.processes.Run(p, domain.ValuePointer(unsafe.Pointer(k)))
}

// Get, Find, Pause, Resume, Terminate, and ProcessDestroy forward
// directly to the Process Registry (§4.5, surfaced at the facade per
// §4.9's "etc.").
func (k *Kernel) Get(pid int) *process.Process          { return k.processes.Get(pid) }
func (k *Kernel) Find(namePrefix string) *process.Process { return k.processes.Find(namePrefix) }
func (k *Kernel) Pause(p *process.Process) error        { return k.processes.Pause(p) }
func (k *Kernel) Resume(p *process.Process) error       { return k.processes.Resume(p) }
func (k *Kernel) Terminate(p *process.Process) error    { return k.processes.Terminate(p) }
func (k *Kernel) ProcessDestroy(p *process.Process)     { k.processes.Destroy(p) }
func (k *Kernel) ProcessCount() int                     { return k.processes.Count() }

// Namespace is the get-or-create namespace operation (§4.6), surfaced at
// the facade so the CLI launcher and drivers never need to import
// `namespace` directly.
func (k *Kernel) Namespace(name string) *namespace.Namespace {
	return k.namespaces.Namespace(name)
}

// DefineQuery parses query, resolves it against proc, and publishes it
// under ns (§4.6 define_query), recording it in the introspection index.
func (k *Kernel) DefineQuery(ns *namespace.Namespace, proc *process.Process, query string) error {
	if err := k.namespaces.DefineQuery(ns, proc, query); err != nil {
		return err
	}
	k.introspect.RegisterFunction(ns.Name() + "." + sig.Parse(query).Name)
	return nil
}

// Call dispatches a fully-qualified "ns.fn" call (§4.6 call, §4.9 call).
func (k *Kernel) Call(qualifiedName string, args ...domain.Value) domain.Value {
	return k.namespaces.Call(qualifiedName, args...)
}

// ListenHandle subscribes an already-built handle to code (§4.7 listen),
// for Go-side callers (drivers, the CLI launcher, tests) that already
// hold a Function Handle rather than a bare script function value. The
// script.KernelAPI-shaped Listen below is the entry point scripts use
// through the `kernel` global table (§4.8).
func (k *Kernel) ListenHandle(code int, handle *callable.FunctionHandle, context domain.Value) error {
	return k.events.Listen(code, handle, context)
}

// UnlistenHandle removes handle from code's bag (§4.7 unlisten). See
// ListenHandle.
func (k *Kernel) UnlistenHandle(code int, handle *callable.FunctionHandle) bool {
	return k.events.Unlisten(code, handle)
}

// Trigger fires code with data (§4.7 trigger).
func (k *Kernel) Trigger(code int, data event.Data) bool {
	return k.events.Trigger(code, data)
}

// RenderEventData packs a render frame's time and context pointer into
// the two-word Event Data the render loop's EVENT_KERNEL_RENDER trigger
// carries (§6 CLI/launcher contract).
func RenderEventData(nanos int64, ctx unsafe.Pointer) event.Data {
	return event.Data{Lo: uint64(nanos), Hi: uint64(uintptr(ctx))}
}

// Console returns the kernel's diagnostics sink.
func (k *Kernel) Console() *platform.Console { return k.console }

// Introspect returns the kernel's read-only introspection index.
func (k *Kernel) Introspect() *introspect.Index { return k.introspect }

// VFS returns the kernel's filesystem collaborator.
func (k *Kernel) VFS() *vfs.VFS { return k.vfs }

// The remaining methods implement script.KernelAPI (§4.8), letting
// process.NewRegistry install this Kernel directly into every script
// process's `kernel` global table.

// ResolveSignature implements script.KernelAPI.
func (k *Kernel) ResolveSignature(qualifiedName string) (domain.Signature, bool) {
	handle, ok := k.namespaces.Resolve(qualifiedName)
	if !ok {
		return domain.Signature{}, false
	}
	return handle.Sig, true
}

// DefineNamespaceFunction implements script.KernelAPI: publishes fn
// directly (not resolved by name lookup — fn is the value the script
// passed, which need not be a global) under ns.query.
func (k *Kernel) DefineNamespaceFunction(owner domain.ProcessRef, rt *script.Runtime, ns, query string, fn *lua.LFunction) error {
	s := sig.Parse(query)
	if s.Malformed() {
		return fmt.Errorf("kernel: define: malformed signature %q", query)
	}
	handle := callable.NewScripted(owner, s, rt, fn)
	if err := k.namespaces.Define(k.namespaces.Namespace(ns), handle); err != nil {
		return err
	}
	k.introspect.RegisterFunction(ns + "." + s.Name)
	return nil
}

// Listen implements script.KernelAPI: wraps fn as an event listener
// under code, tracked by identity so a later Unlisten can find it again.
// The handle decodes a boolean return (WrapScriptListener) rather than
// discarding it, so a script handler that returns true can consume the
// event like a native one.
func (k *Kernel) Listen(owner domain.ProcessRef, rt *script.Runtime, code int, fn *lua.LFunction) error {
	handle := callable.WrapScriptListener(owner, rt, fn)
	if err := k.events.Listen(code, handle, domain.ValueVoid()); err != nil {
		return err
	}
	k.scriptListeners[code] = append(k.scriptListeners[code], scriptListener{value: fn, handle: handle})
	return nil
}

// Unlisten implements script.KernelAPI: finds the handle previously
// wrapped for fn under code, by identity, and removes it from both the
// bus and this tracking table.
func (k *Kernel) Unlisten(owner domain.ProcessRef, rt *script.Runtime, code int, fn *lua.LFunction) bool {
	entries := k.scriptListeners[code]
	for i, e := range entries {
		if e.value == fn {
			k.scriptListeners[code] = append(entries[:i], entries[i+1:]...)
			return k.events.Unlisten(code, e.handle)
		}
	}
	return false
}

// FindProcess implements script.KernelAPI.
func (k *Kernel) FindProcess(namePrefix string) (domain.ProcessRef, bool) {
	p := k.processes.Find(namePrefix)
	if p == nil {
		return nil, false
	}
	return p, true
}

// Log implements script.KernelAPI, routing through the kernel's console.
func (k *Kernel) Log(level, msg string) {
	switch level {
	case "debug":
		k.console.Debugf("%s", msg)
	case "warning", "warn":
		k.console.Warnf("%s", msg)
	case "error":
		k.console.Errorf("%s", msg)
	default:
		k.console.Infof("%s", msg)
	}
}
