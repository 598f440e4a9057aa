// Package introspect implements the Kernel Introspection Console: a
// read-only, prefix-searchable index over every registered "ns.fn"
// qualified function name and every loaded process name, for CLI
// debugging and shell-style autocomplete. Names are never removed, so
// a destroyed process's name stays listed. It is purely additive — no §4
// operation reads from it, and nothing in the core depends on it being
// kept up to date.
//
// It is grounded directly on handler/handlerDB.go's use of
// github.com/hashicorp/go-immutable-radix for longest-prefix lookup and
// Walk-based enumeration, just retargeted from filesystem paths to
// dotted function names.
package introspect

import (
	iradix "github.com/hashicorp/go-immutable-radix"
)

// Index is the Kernel Introspection Console's backing store. The zero
// value is not usable; build one with New.
type Index struct {
	functions *iradix.Tree
	processes *iradix.Tree
}

// New builds an empty Index.
func New() *Index {
	return &Index{functions: iradix.New(), processes: iradix.New()}
}

// RegisterFunction records that qualifiedName ("ns.fn") now resolves to
// something. Called by the kernel facade every time namespace.Registry.
// DefineQuery succeeds; re-registering the same name is harmless (the
// tree already de-duplicates keys).
func (idx *Index) RegisterFunction(qualifiedName string) {
	tree, _, _ := idx.functions.Insert([]byte(qualifiedName), struct{}{})
	idx.functions = tree
}

// RegisterProcess records a loaded process's display name.
func (idx *Index) RegisterProcess(name string) {
	tree, _, _ := idx.processes.Insert([]byte(name), struct{}{})
	idx.processes = tree
}

// Functions returns every registered qualified function name with the
// given prefix, in radix (lexicographic) order.
func (idx *Index) Functions(prefix string) []string {
	return walk(idx.functions, prefix)
}

// Processes returns every registered process display name with the
// given prefix, in radix (lexicographic) order.
func (idx *Index) Processes(prefix string) []string {
	return walk(idx.processes, prefix)
}

func walk(tree *iradix.Tree, prefix string) []string {
	var out []string
	tree.Root().WalkPrefix([]byte(prefix), func(k []byte, _ interface{}) bool {
		out = append(out, string(k))
		return false
	})
	return out
}
