package process

import (
	"fmt"
	"strings"
	"unsafe"

	lua "github.com/yuin/gopher-lua"

	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/ffi"
	"github.com/mrmaniac/vos/platform"
	"github.com/mrmaniac/vos/script"
)

// initSelfName is the fixed well-known initializer signature name (§6
// Process entry conventions).
const initSelfName = "_init_self"

// deinitSelfName is the optional teardown counterpart (original_source's
// phost.c), invoked best-effort during Destroy before backing resources
// are released. Unlike _init_self its result is never consulted: it
// cannot veto destruction.
const deinitSelfName = "_deinit_self"

// Registry is the Process Registry (§4.5). Ids are dense and
// monotonically assigned, bounded at domain.MaxProcesses (§3, §8
// "Process identifier density").
type Registry struct {
	slots [domain.MaxProcesses]*Process
	count int

	scriptExt string
	api       script.KernelAPI
}

// NewRegistry builds an empty registry. api is the Kernel Facade cast to
// its script.KernelAPI view, installed into every script process's
// `kernel` global table (§4.8) as it is loaded; scriptExt overrides the
// default ".lua" script-file suffix (§4.5: "the configured script
// extension").
func NewRegistry(api script.KernelAPI, scriptExt string) *Registry {
	if scriptExt == "" {
		scriptExt = ".lua"
	}
	return &Registry{scriptExt: scriptExt, api: api}
}

// Load examines path's suffix and creates a process in the
// uninitialized state (§4.5 load). No slot is consumed on error.
func (r *Registry) Load(path string) (*Process, error) {
	if !platform.FileExists(path) {
		return nil, fmt.Errorf("process: load %s: file not found", path)
	}
	if r.count >= domain.MaxProcesses {
		return nil, fmt.Errorf("process: load %s: too many processes (limit %d)", path, domain.MaxProcesses)
	}

	var p *Process
	switch {
	case strings.HasSuffix(path, platform.DynlibExt()):
		lib, err := ffi.Open(path)
		if err != nil {
			return nil, fmt.Errorf("process: load %s: %w", path, err)
		}
		p = &Process{typ: domain.ProcessDriver, lib: lib}

	case strings.HasSuffix(path, r.scriptExt):
		rt := script.NewRuntime()
		p = &Process{typ: domain.ProcessScript, runtime: rt}
		if err := rt.LoadFile(path); err != nil {
			return nil, fmt.Errorf("process: load %s: script failed to initialize: %w", path, err)
		}

	default:
		return nil, fmt.Errorf("process: load %s: unrecognized suffix", path)
	}

	p.id = r.count
	p.path = path
	p.name = displayName(path)
	p.state = domain.StateUninitialized
	r.slots[p.id] = p
	r.count++

	if p.typ == domain.ProcessScript {
		script.InstallHostBindings(p.runtime, r.api, p)
	}

	return p, nil
}

// Run looks up and invokes the process's initializer per §6's entry
// conventions, transitioning it to running, destroyed, or leaving it
// where it is if already running (§4.5: "Idempotent when already
// running"). kernelPtr is the opaque kernel back-reference drivers
// receive as _init_self's first argument.
func (r *Registry) Run(p *Process, kernelPtr domain.Value) error {
	switch p.state {
	case domain.StateRunning:
		return nil
	case domain.StateStopped:
		p.state = domain.StateRunning
		return nil
	case domain.StateUninitialized:
		// fall through to the initializer dance below
	default:
		return fmt.Errorf("process: run %s: cannot run from state %s", p.name, p.state)
	}

	switch p.typ {
	case domain.ProcessDriver:
		addr, err := p.lib.Symbol(initSelfName)
		if err != nil {
			p.state = domain.StateDestroyed
			return nil
		}
		sig := domain.Signature{Name: initSelfName, Args: []domain.ValueKind{domain.KindPointer, domain.KindPointer}, Return: domain.KindBool}
		selfPtr := domain.ValuePointer(unsafe.Pointer(p))
		// Called directly through ffi, not callable.Call: the process is
		// not running yet, and callable.Call rejects non-running owners.
		result := domain.ValueError("process: _init_self panicked")
		func() {
			defer func() { recover() }()
			result = ffi.Call(addr, sig, []domain.Value{kernelPtr, selfPtr})
		}()
		if result.IsError() || !result.Bool {
			p.state = domain.StateDestroyed
			return nil
		}
		p.state = domain.StateRunning

	case domain.ProcessScript:
		global := p.runtime.Global(initSelfName)
		fn, ok := global.(*lua.LFunction)
		if !ok {
			// §6: existence is optional for scripts; no truthy check applies.
			p.state = domain.StateRunning
			return nil
		}
		sig := domain.Signature{Name: initSelfName, Return: domain.KindVoid}
		result := p.runtime.Invoke(fn, sig, nil)
		if result.IsError() {
			p.state = domain.StateDestroyed
			return nil
		}
		p.state = domain.StateRunning
	}
	return nil
}

// Get returns the process at pid, or nil if pid is out of range, was
// never assigned, or has been destroyed (§4.5 get: tombstone/null for
// unused or destroyed slots). A destroyed process must not be
// referenced again by identifier.
func (r *Registry) Get(pid int) *Process {
	if pid < 0 || pid >= r.count {
		return nil
	}
	p := r.slots[pid]
	if p != nil && p.state == domain.StateDestroyed {
		return nil
	}
	return p
}

// Find returns the first non-destroyed process, in insertion (id)
// order, whose display name has the given prefix (§4.5 find). A
// destroyed process must not be referenced again by identifier, so
// destroyed slots are skipped rather than matched.
func (r *Registry) Find(namePrefix string) *Process {
	for i := 0; i < r.count; i++ {
		if p := r.slots[i]; p != nil && p.state != domain.StateDestroyed && strings.HasPrefix(p.name, namePrefix) {
			return p
		}
	}
	return nil
}

// Pause transitions a running process to paused.
func (r *Registry) Pause(p *Process) error {
	if p.state != domain.StateRunning {
		return fmt.Errorf("process: pause %s: not running", p.name)
	}
	p.state = domain.StatePaused
	return nil
}

// Resume transitions a paused process back to running.
func (r *Registry) Resume(p *Process) error {
	if p.state != domain.StatePaused {
		return fmt.Errorf("process: resume %s: not paused", p.name)
	}
	p.state = domain.StateRunning
	return nil
}

// Terminate transitions a running process to stopped (the diagram's
// "stop" edge); a later Run resumes it without re-invoking its
// initializer.
func (r *Registry) Terminate(p *Process) error {
	if p.state != domain.StateRunning {
		return fmt.Errorf("process: terminate %s: not running", p.name)
	}
	p.state = domain.StateStopped
	return nil
}

// Destroy invokes p's optional teardown callback, releases p's owned
// backing resources, and marks it destroyed from any state. Per the
// lazy-cleanup decision in DESIGN.md (§9 open question 2), namespace and
// event tables are not walked here; stale handles are rejected at call
// time instead because callable.Call checks Owner.State() != Running.
func (r *Registry) Destroy(p *Process) {
	if p.state == domain.StateDestroyed {
		return
	}

	runDeinit(p)

	if p.lib != nil {
		p.lib.Close()
	}
	if p.runtime != nil {
		p.runtime.Close()
	}
	p.state = domain.StateDestroyed
}

// runDeinit looks up _deinit_self and invokes it if present, ignoring
// both absence and failure (original_source/kernel/phost.c).
func runDeinit(p *Process) {
	switch p.typ {
	case domain.ProcessDriver:
		addr, err := p.lib.Symbol(deinitSelfName)
		if err != nil {
			return
		}
		sig := domain.Signature{Name: deinitSelfName, Args: []domain.ValueKind{domain.KindPointer, domain.KindPointer}, Return: domain.KindVoid}
		// Called directly through ffi, not callable.Call: the owner may
		// already be paused or stopped here, and teardown must still run.
		func() {
			defer func() { recover() }()
			ffi.Call(addr, sig, []domain.Value{domain.ValuePointer(nil), domain.ValuePointer(unsafe.Pointer(p))})
		}()

	case domain.ProcessScript:
		global := p.runtime.Global(deinitSelfName)
		fn, ok := global.(*lua.LFunction)
		if !ok {
			return
		}
		sig := domain.Signature{Name: deinitSelfName, Return: domain.KindVoid}
		p.runtime.Invoke(fn, sig, nil)
	}
}

// DestroyAll transitions every live process to destroyed (§4.9 Kernel
// Facade destroy: "transitions every live process to destroyed").
func (r *Registry) DestroyAll() {
	for i := 0; i < r.count; i++ {
		if p := r.slots[i]; p != nil {
			r.Destroy(p)
		}
	}
}

// Count reports how many process slots have ever been assigned.
func (r *Registry) Count() int { return r.count }
