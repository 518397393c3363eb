// Package safeio confines file reads to a fixed root directory. Every path,
// relative or absolute, is resolved through symlinks and rejected when it
// lands outside the root.
package safeio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SafeFS is a read-only view of one directory tree.
type SafeFS struct {
	absRoot string // absolute, symlink-free
}

var (
	defaultFSMu sync.RWMutex
	defaultFS   *SafeFS
)

func init() {
	if fsys, err := New("."); err == nil {
		defaultFS = fsys
	}
}

// SetDefault replaces the process-wide default SafeFS used by packages without
// explicit dependency injection (scan, wordidx). Passing nil clears it.
func SetDefault(fs *SafeFS) {
	defaultFSMu.Lock()
	defaultFS = fs
	defaultFSMu.Unlock()
}

// Default returns the process-wide SafeFS (if any).
func Default() *SafeFS {
	defaultFSMu.RLock()
	defer defaultFSMu.RUnlock()
	return defaultFS
}

// New binds a SafeFS to root, which must be an existing directory.
func New(root string) (*SafeFS, error) {
	if root == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("safeio: root is not a directory")
	}
	return &SafeFS{absRoot: abs}, nil
}

// Root returns the absolute root directory bound to this SafeFS.
func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.absRoot
}

// ReadFile reads a regular file under the root.
func (s *SafeFS) ReadFile(userPath string) ([]byte, error) {
	p, err := s.resolveFile(userPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

// OpenFile opens a regular file under the root for reading.
func (s *SafeFS) OpenFile(userPath string) (*os.File, error) {
	p, err := s.resolveFile(userPath)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Stat returns metadata for a file or directory under the root.
func (s *SafeFS) Stat(userPath string) (fs.FileInfo, error) {
	p, err := s.resolve(userPath)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// ReadDir lists entries of a directory under the root.
func (s *SafeFS) ReadDir(userPath string) ([]fs.DirEntry, error) {
	dir, err := s.resolve(userPath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("safeio: path is not a directory")
	}
	return os.ReadDir(dir)
}

// Open implements fs.FS (names use "/" separators).
func (s *SafeFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, fs.ErrInvalid
	}
	return s.OpenFile(filepath.FromSlash(name))
}

// resolveFile resolves userPath and requires it to be a regular file.
func (s *SafeFS) resolveFile(userPath string) (string, error) {
	p, err := s.resolve(userPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.New("safeio: path is a directory")
	}
	return p, nil
}

// resolve maps userPath to an absolute, symlink-free path and verifies it
// stays under the root. Absolute inputs are accepted when they land inside.
func (s *SafeFS) resolve(userPath string) (string, error) {
	if s == nil {
		return "", errors.New("safeio: filesystem not configured")
	}
	if userPath == "" {
		return "", errors.New("safeio: empty path")
	}
	p := filepath.Clean(userPath)
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.absRoot, p)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.absRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("safeio: %s resolves outside root %s", userPath, s.absRoot)
	}
	return resolved, nil
}
