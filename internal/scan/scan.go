package scan

import (
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

// FileVisit carries per-entry metadata to user callbacks.
type FileVisit struct {
	// Repo-relative path using forward slashes (e.g., "src/app.go").
	Path string
	// Absolute filesystem path.
	AbsPath string
	// True when the entry is a directory.
	IsDir bool
	// Lowercased extension (e.g., ".go", ".md"); empty for dirs or no-ext files.
	Ext string
	// File size in bytes; 0 for dirs or when stat fails.
	Size int64
}

// VisitFunc is invoked for every visited entry.
// Use a closure to accumulate custom stats (e.g., extension counts).
type VisitFunc func(f FileVisit)

// Options controls repository traversal.
type Options struct {
	// MaxDepth limits directory depth relative to the root; 0 means unlimited.
	MaxDepth int
	// IgnoreDirs lists additional directory basenames to skip.
	IgnoreDirs []string
	// BypassCache forces a fresh walk even when a cached listing exists.
	BypassCache bool
}

// Directories that never contain first-party sources.
var defaultSkip = map[string]struct{}{
	".git": {}, ".hg": {}, ".svn": {}, "node_modules": {}, "vendor": {},
	"target": {}, "build": {}, "dist": {}, ".next": {}, ".cache": {},
}

var (
	listMu    sync.RWMutex
	listCache = map[string][]FileVisit{} // key: root + "|" + options signature
)

// Scan walks root with default options.
func Scan(root string, cb VisitFunc) error {
	return ScanWithOptions(root, Options{}, cb)
}

// ScanWithOptions walks the repository rooted at root and invokes cb for every
// entry (directories included). Listings are cached per (root, options) unless
// BypassCache is set.
func ScanWithOptions(root string, opts Options, cb VisitFunc) error {
	if root == "" {
		root = "."
	}
	root = filepath.Clean(root)
	key := cacheSig(root, opts)

	if !opts.BypassCache {
		listMu.RLock()
		cached, ok := listCache[key]
		listMu.RUnlock()
		if ok {
			if cb != nil {
				for _, fv := range cached {
					cb(fv)
				}
			}
			return nil
		}
	}

	ignore := make(map[string]struct{}, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		d = strings.TrimSpace(d)
		if d != "" {
			ignore[d] = struct{}{}
		}
	}

	var visits []FileVisit
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			base := filepath.Base(path)
			if rel != "." {
				if _, skip := defaultSkip[base]; skip {
					return filepath.SkipDir
				}
				if _, skip := ignore[base]; skip {
					return filepath.SkipDir
				}
				if opts.MaxDepth > 0 && pathDepth(rel) >= opts.MaxDepth {
					visits = append(visits, FileVisit{Path: rel, AbsPath: path, IsDir: true})
					return filepath.SkipDir
				}
			}
			if rel == "." {
				return nil
			}
			visits = append(visits, FileVisit{Path: rel, AbsPath: path, IsDir: true})
			return nil
		}

		size := int64(0)
		if info, e := d.Info(); e == nil {
			size = info.Size()
		}
		visits = append(visits, FileVisit{
			Path:    rel,
			AbsPath: path,
			Ext:     strings.ToLower(filepath.Ext(rel)),
			Size:    size,
		})
		return nil
	})
	if err != nil {
		return err
	}

	if !opts.BypassCache {
		listMu.Lock()
		listCache[key] = visits
		listMu.Unlock()
	}
	if cb != nil {
		for _, fv := range visits {
			cb(fv)
		}
	}
	return nil
}

// ClearScanCache drops all cached directory listings.
func ClearScanCache() {
	listMu.Lock()
	listCache = map[string][]FileVisit{}
	listMu.Unlock()
}

func cacheSig(root string, opts Options) string {
	ig := append([]string(nil), opts.IgnoreDirs...)
	var b strings.Builder
	b.WriteString(filepath.ToSlash(root))
	b.WriteByte('|')
	b.WriteString(strings.Join(ig, ","))
	b.WriteByte('|')
	if opts.MaxDepth > 0 {
		b.WriteString("d")
		for i := 0; i < opts.MaxDepth; i++ {
			b.WriteByte('+')
		}
	}
	return b.String()
}

// pathDepth counts path segments of a repo-relative slash path ("a/b" -> 2).
func pathDepth(rel string) int {
	if rel == "" || rel == "." {
		return 0
	}
	return strings.Count(rel, "/") + 1
}
