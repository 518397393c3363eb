package scan

import (
	"os"
	"path/filepath"
	"testing"

	"archmap/internal/safeio"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func useRepoFS(t *testing.T, root string) {
	t.Helper()
	fs, err := safeio.New(root)
	if err != nil {
		t.Fatal(err)
	}
	SetSafeFS(fs)
	t.Cleanup(func() {
		SetSafeFS(nil)
		ClearScanCache()
		ClearFileInfoCache()
	})
}

func TestScanSkipsVendoredDirs(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.go":              "package main",
		"node_modules/x/x.js":  "x",
		".git/config":          "x",
		"internal/core/app.go": "package core",
	})
	useRepoFS(t, dir)

	var files []string
	err := ScanWithOptions(dir, Options{BypassCache: true}, func(f FileVisit) {
		if !f.IsDir {
			files = append(files, f.Path)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"main.go": true, "internal/core/app.go": true}
	if len(files) != len(want) {
		t.Fatalf("unexpected files: %v", files)
	}
	for _, f := range files {
		if !want[f] {
			t.Fatalf("unexpected file %q", f)
		}
	}
}

func TestScanMaxDepth(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"top.txt":     "x",
		"a/mid.txt":   "x",
		"a/b/low.txt": "x",
	})
	useRepoFS(t, dir)

	var files []string
	err := ScanWithOptions(dir, Options{MaxDepth: 1, BypassCache: true}, func(f FileVisit) {
		if !f.IsDir {
			files = append(files, f.Path)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != "top.txt" {
		t.Fatalf("depth limit not applied: %v", files)
	}
}

func TestScanUsesListingCache(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a.go": "package a"})
	useRepoFS(t, dir)

	n1 := 0
	if err := ScanWithOptions(dir, Options{}, func(f FileVisit) { n1++ }); err != nil {
		t.Fatal(err)
	}

	// New file after a cached scan: cached listing must not see it,
	// bypass must.
	writeTree(t, dir, map[string]string{"b.go": "package b"})

	n2 := 0
	if err := ScanWithOptions(dir, Options{}, func(f FileVisit) { n2++ }); err != nil {
		t.Fatal(err)
	}
	if n2 != n1 {
		t.Fatalf("expected cached listing (%d), got %d", n1, n2)
	}

	n3 := 0
	if err := ScanWithOptions(dir, Options{BypassCache: true}, func(f FileVisit) { n3++ }); err != nil {
		t.Fatal(err)
	}
	if n3 <= n1 {
		t.Fatalf("bypass scan should see the new file: before=%d after=%d", n1, n3)
	}
}

func TestFileInfoPreview(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"doc.md": "hello world"})
	useRepoFS(t, dir)

	entry, preview, err := FileInfo(dir, "doc.md", 5)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Path != "doc.md" || entry.Size != int64(len("hello world")) {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if preview != "hello" {
		t.Fatalf("unexpected preview: %q", preview)
	}

	// Larger limit expands the cached preview.
	_, preview, err = FileInfo(dir, "doc.md", 11)
	if err != nil {
		t.Fatal(err)
	}
	if preview != "hello world" {
		t.Fatalf("unexpected expanded preview: %q", preview)
	}
}

func TestFilesWithExtensions(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"a.go":     "package a",
		"b.ts":     "let b",
		"c.md":     "# c",
		"d/e.GO":   "package e",
		"d/f.tsx":  "let f",
		"d/g.json": "{}",
	})
	useRepoFS(t, dir)

	got, err := FilesWithExtensions(dir, []string{"go", ".ts"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.go", "b.ts", "d/e.GO"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
