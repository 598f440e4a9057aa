// Package process implements the Process Registry (§4.5): loading
// heterogeneous participants from disk, classifying them by suffix,
// assigning dense monotonic identifiers, running their lifecycle state
// machine, and tearing them down.
package process

import (
	"path/filepath"
	"strings"

	"github.com/mrmaniac/vos/domain"
	"github.com/mrmaniac/vos/ffi"
	"github.com/mrmaniac/vos/script"
)

// Process is one loaded participant (§3 Process). It implements
// domain.ProcessRef so the callable/namespace/event layers can depend on
// "some process" without importing this package.
type Process struct {
	id    int
	name  string
	path  string
	typ   domain.ProcessType
	state domain.ProcessState

	// Driver backing state (§3 Driver Process State).
	lib *ffi.Library

	// Script backing state (§3 Script Process State).
	runtime *script.Runtime

	userData interface{}
}

func (p *Process) ID() int                    { return p.id }
func (p *Process) Name() string                { return p.name }
func (p *Process) State() domain.ProcessState  { return p.state }
func (p *Process) Path() string                { return p.path }
func (p *Process) Type() domain.ProcessType    { return p.typ }

// Library returns the process's native library handle, or nil for a
// script process.
func (p *Process) Library() *ffi.Library { return p.lib }

// Runtime returns the process's scripting-runtime instance, or nil for
// a driver process.
func (p *Process) Runtime() *script.Runtime { return p.runtime }

// UserData returns implementation-defined data a driver or script may
// stash on its own process record (supplemented from original_source's
// per-process user-data slot; not named by the core spec but used by
// real drivers to keep private state between calls without a global).
func (p *Process) UserData() interface{} { return p.userData }

// SetUserData stores v as the process's user data.
func (p *Process) SetUserData(v interface{}) { p.userData = v }

// displayName derives the §3 "display name derived from the path":
// the file's base name with its extension stripped.
func displayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
