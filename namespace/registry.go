// Package namespace implements the Namespace Registry (§4.6): a
// dotted-name directory of Function Handles grouped by namespace, and
// the "ns.fn" call-dispatch split.
package namespace

import (
	"fmt"
	"strings"

	"github.com/mrmaniac/vos/callable"
	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/process"
	"github.com/mrmaniac/vos/sig"
)

// Namespace is a named directory mapping function name -> Function
// Handle (§3). Names are unique within one namespace; re-definition is
// rejected rather than overwriting.
type Namespace struct {
	name    string
	entries map[string]*callable.FunctionHandle
}

func (ns *Namespace) Name() string { return ns.name }

// Registry is the Namespace Registry (§4.6).
type Registry struct {
	namespaces map[string]*Namespace
}

// NewRegistry builds an empty Namespace Registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]*Namespace)}
}

// Namespace is the get-or-create operation (§4.6 namespace(name)):
// calling it twice with the same name returns the same Namespace value
// (§8 round-trip property), insertion order is irrelevant.
func (r *Registry) Namespace(name string) *Namespace {
	if ns, ok := r.namespaces[name]; ok {
		return ns
	}
	ns := &Namespace{name: name, entries: make(map[string]*callable.FunctionHandle)}
	r.namespaces[name] = ns
	return ns
}

// Define inserts handle under ns, keyed by handle.Sig.Name. Re-defining
// an existing name is rejected; the original handle remains resolvable
// (§4.6 define, §8 scenario 4).
func (r *Registry) Define(ns *Namespace, handle *callable.FunctionHandle) error {
	if _, exists := ns.entries[handle.Sig.Name]; exists {
		return fmt.Errorf("namespace: %s.%s already defined", ns.name, handle.Sig.Name)
	}
	ns.entries[handle.Sig.Name] = handle
	return nil
}

// DefineQuery implements §4.6 define_query: parses query (§4.1),
// resolves the named symbol or script global inside proc per the §4.6
// symbol-resolution rules, builds a Function Handle, and defines it
// under ns.
func (r *Registry) DefineQuery(ns *Namespace, proc *process.Process, query string) error {
	s := sig.Parse(query)
	if s.Malformed() {
		return fmt.Errorf("namespace: define_query: malformed signature %q", query)
	}

	handle, err := resolveHandle(proc, s)
	if err != nil {
		return err
	}
	return r.Define(ns, handle)
}

func resolveHandle(proc *process.Process, s domain.Signature) (*callable.FunctionHandle, error) {
	switch proc.Type() {
	case domain.ProcessDriver:
		addr, err := proc.Library().Symbol(s.Name)
		if err != nil {
			return nil, fmt.Errorf("namespace: define_query: %w", err)
		}
		return callable.NewNative(proc, s, addr), nil

	case domain.ProcessScript:
		// §4.6: "retrieve the global value named by signature.name ...
		// If the global is not callable, the handle is still created but
		// calls will error when invoked" — script.Runtime.Invoke performs
		// that callability check at call time.
		global := proc.Runtime().Global(s.Name)
		return callable.NewScripted(proc, s, proc.Runtime(), global), nil

	default:
		return nil, fmt.Errorf("namespace: define_query: process %q has no resolvable backing state", proc.Name())
	}
}

// Lookup resolves a single function name within ns.
func (ns *Namespace) Lookup(name string) (*callable.FunctionHandle, bool) {
	h, ok := ns.entries[name]
	return h, ok
}

// Call splits qualifiedName on its first '.', resolves the namespace and
// function, and dispatches through callable.Call (§4.6 call).
func (r *Registry) Call(qualifiedName string, args ...domain.Value) domain.Value {
	nsName, fnName, ok := splitQualified(qualifiedName)
	if !ok {
		return domain.ValueError(fmt.Sprintf("namespace: %q is not a qualified ns.fn name", qualifiedName))
	}

	ns, ok := r.namespaces[nsName]
	if !ok {
		return domain.ValueError(fmt.Sprintf("namespace: unknown namespace %q", nsName))
	}

	handle, ok := ns.Lookup(fnName)
	if !ok {
		return domain.ValueError(fmt.Sprintf("namespace: unknown function %q in namespace %q", fnName, nsName))
	}

	return callable.Call(handle, args...)
}

// Resolve returns the handle qualifiedName currently resolves to, or
// false, without invoking it (used by the Scripting Host Binding to
// learn a target signature before converting arguments, §4.8).
func (r *Registry) Resolve(qualifiedName string) (*callable.FunctionHandle, bool) {
	nsName, fnName, ok := splitQualified(qualifiedName)
	if !ok {
		return nil, false
	}
	ns, ok := r.namespaces[nsName]
	if !ok {
		return nil, false
	}
	return ns.Lookup(fnName)
}

func splitQualified(qualifiedName string) (ns, fn string, ok bool) {
	i := strings.IndexByte(qualifiedName, '.')
	if i <= 0 || i == len(qualifiedName)-1 {
		return "", "", false
	}
	return qualifiedName[:i], qualifiedName[i+1:], true
}
