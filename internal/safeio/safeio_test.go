package safeio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}

func TestReadFileWithinRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	b, err := fs.ReadFile("a.go")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(b) != "package a" {
		t.Fatalf("unexpected content: %q", b)
	}
}

func TestReadFileRejectsTraversal(t *testing.T) {
	parent := t.TempDir()
	sub := filepath.Join(parent, "repo")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("s"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := New(sub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.ReadFile("../secret.txt"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestReadFileAcceptsAbsolutePathUnderRoot(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	if err := os.WriteFile(target, []byte("package a"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.ReadFile(filepath.Join(fs.Root(), "a.go")); err != nil {
		t.Fatalf("absolute path under root rejected: %v", err)
	}
}

func TestReadFileRejectsSymlinkEscape(t *testing.T) {
	parent := t.TempDir()
	sub := filepath.Join(parent, "repo")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	secret := filepath.Join(parent, "secret.txt")
	if err := os.WriteFile(secret, []byte("s"), 0o644); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(sub, "link.txt")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	fs, err := New(sub)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.ReadFile("link.txt"); err == nil {
		t.Fatalf("expected symlink escape to be rejected")
	}
}

func TestReadFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatal(err)
	}
	fs, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.ReadFile("pkg"); err == nil {
		t.Fatalf("expected error when reading a directory")
	}
}

func TestSetDefaultRoundTrip(t *testing.T) {
	old := Default()
	defer SetDefault(old)

	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	SetDefault(fs)
	if Default() != fs {
		t.Fatalf("Default did not return the configured SafeFS")
	}
}
