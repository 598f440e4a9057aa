// Package vfs adapts github.com/spf13/afero into the VFS external
// collaborator contract (§6): the core never implements a filesystem
// itself, it only consumes path existence, type discrimination, and raw
// byte buffers through Handles this package produces.
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// HandleType discriminates what a Handle names (§6: "type
// (file|directory|symlink)").
type HandleType int

const (
	TypeFile HandleType = iota
	TypeDirectory
	TypeSymlink
)

// Status is a Handle's lifecycle state (§6: "status
// (not_found|found|loaded|needs_reload|needs_write|needs_delete)").
type Status int

const (
	StatusNotFound Status = iota
	StatusFound
	StatusLoaded
	StatusNeedsReload
	StatusNeedsWrite
	StatusNeedsDelete
)

// Handle is the VFS collaborator's produced value (§6). Exactly one of
// Data (file) or Children (directory) is populated, depending on Type.
type Handle struct {
	Name   string
	Path   string
	Type   HandleType
	Status Status

	Data     []byte
	Children map[string]*Handle
}

// VFS wraps an afero.Fs, giving it the load/get/read/write/mkdir/mkfile/
// rm/commit operation set §6 names.
type VFS struct {
	fs afero.Fs
}

// NewOS builds a VFS backed by the real operating-system filesystem
// (afero.NewOsFs), the production backing used for non-test runs.
func NewOS() *VFS { return &VFS{fs: afero.NewOsFs()} }

// NewMem builds a VFS backed by an in-memory filesystem
// (afero.NewMemMapFs), used in tests to avoid touching the real
// filesystem.
func NewMem() *VFS { return &VFS{fs: afero.NewMemMapFs()} }

// Load stats absPath and returns a Handle describing it, without
// reading file contents (§6: the core "calls read on demand"). A
// nonexistent path is not an error: it produces a StatusNotFound
// handle, consistent with the VFS owning all status transitions.
func (v *VFS) Load(absPath string) (*Handle, error) {
	info, err := v.fs.Stat(absPath)
	if os.IsNotExist(err) {
		return &Handle{Name: filepath.Base(absPath), Path: absPath, Status: StatusNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vfs: load %s: %w", absPath, err)
	}

	h := &Handle{Name: filepath.Base(absPath), Path: absPath, Status: StatusFound}
	switch {
	case info.IsDir():
		h.Type = TypeDirectory
	case info.Mode()&os.ModeSymlink != 0:
		h.Type = TypeSymlink
	default:
		h.Type = TypeFile
	}
	return h, nil
}

// Get resolves relPath against root and loads it (§6 get(vfs, rel_path)).
func (v *VFS) Get(root *Handle, relPath string) (*Handle, error) {
	return v.Load(filepath.Join(root.Path, relPath))
}

// Read populates h's Data (files) or Children (directories), and
// transitions Status to StatusLoaded. Calling it again re-reads,
// clearing a StatusNeedsReload marker.
func (v *VFS) Read(h *Handle) error {
	switch h.Type {
	case TypeDirectory:
		entries, err := afero.ReadDir(v.fs, h.Path)
		if err != nil {
			return fmt.Errorf("vfs: read %s: %w", h.Path, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		h.Children = make(map[string]*Handle, len(entries))
		for _, e := range entries {
			child, err := v.Load(filepath.Join(h.Path, e.Name()))
			if err != nil {
				return err
			}
			h.Children[e.Name()] = child
		}

	default:
		data, err := afero.ReadFile(v.fs, h.Path)
		if err != nil {
			return fmt.Errorf("vfs: read %s: %w", h.Path, err)
		}
		h.Data = data
	}

	h.Status = StatusLoaded
	return nil
}

// Write stages data into h and marks it StatusNeedsWrite; Commit
// performs the actual persistence. Splitting the two matches §6's
// status enumeration having a distinct needs_write state rather than
// writing through synchronously.
func (v *VFS) Write(h *Handle, data []byte) error {
	if h.Type != TypeFile {
		return fmt.Errorf("vfs: write %s: not a file handle", h.Path)
	}
	h.Data = data
	h.Status = StatusNeedsWrite
	return nil
}

// Commit flushes a StatusNeedsWrite handle's staged data to the backing
// filesystem (§6 commit).
func (v *VFS) Commit(h *Handle) error {
	if h.Status != StatusNeedsWrite {
		return nil
	}
	if err := afero.WriteFile(v.fs, h.Path, h.Data, 0o644); err != nil {
		return fmt.Errorf("vfs: commit %s: %w", h.Path, err)
	}
	h.Status = StatusLoaded
	return nil
}

// Mkdir creates path (and any missing parents) and returns its Handle.
func (v *VFS) Mkdir(path string) (*Handle, error) {
	if err := v.fs.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("vfs: mkdir %s: %w", path, err)
	}
	return v.Load(path)
}

// Mkfile creates an empty file at path and returns its Handle.
func (v *VFS) Mkfile(path string) (*Handle, error) {
	f, err := v.fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("vfs: mkfile %s: %w", path, err)
	}
	f.Close()
	return v.Load(path)
}

// Rm removes h's backing path (recursively for directories) and marks
// it StatusNotFound.
func (v *VFS) Rm(h *Handle) error {
	if err := v.fs.RemoveAll(h.Path); err != nil {
		return fmt.Errorf("vfs: rm %s: %w", h.Path, err)
	}
	h.Status = StatusNotFound
	h.Data = nil
	h.Children = nil
	return nil
}
